// Package chains holds chain identity helpers shared by the engine: chain to
// platform mapping, universal addresses and Circle CCTP domains.
package chains

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var (
	ErrUnknownChain   = errors.New("unknown chain")
	ErrInvalidAddress = errors.New("invalid address")
)

// Platform is a chain family sharing one adapter implementation.
type Platform string

const (
	Evm    Platform = "Evm"
	Solana Platform = "Solana"
	Sui    Platform = "Sui"
	Aptos  Platform = "Aptos"
)

// Network selects mainnet or testnet deployments.
type Network string

const (
	Mainnet Network = "Mainnet"
	Testnet Network = "Testnet"
)

var platforms = map[vaaLib.ChainID]Platform{
	vaaLib.ChainIDSolana:          Solana,
	vaaLib.ChainIDEthereum:        Evm,
	vaaLib.ChainIDBSC:             Evm,
	vaaLib.ChainIDPolygon:         Evm,
	vaaLib.ChainIDAvalanche:       Evm,
	vaaLib.ChainIDFantom:          Evm,
	vaaLib.ChainIDCelo:            Evm,
	vaaLib.ChainIDMoonbeam:        Evm,
	vaaLib.ChainIDArbitrum:        Evm,
	vaaLib.ChainIDOptimism:        Evm,
	vaaLib.ChainIDBase:            Evm,
	vaaLib.ChainIDSepolia:         Evm,
	vaaLib.ChainIDArbitrumSepolia: Evm,
	vaaLib.ChainIDBaseSepolia:     Evm,
	vaaLib.ChainIDOptimismSepolia: Evm,
	vaaLib.ChainIDSui:             Sui,
	vaaLib.ChainIDAptos:           Aptos,
}

// PlatformOf returns the platform a chain runs on.
func PlatformOf(chain vaaLib.ChainID) (Platform, error) {
	p, ok := platforms[chain]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownChain, uint16(chain))
	}
	return p, nil
}

// ChainAddress is an address on a specific chain.
type ChainAddress struct {
	Chain   vaaLib.ChainID
	Address vaaLib.Address
}

func (a ChainAddress) String() string {
	return fmt.Sprintf("%s:0x%s", a.Chain, hex.EncodeToString(a.Address[:]))
}

// TokenID identifies a token by its chain and address. The zero address
// denotes the chain's native gas token.
type TokenID struct {
	Chain   vaaLib.ChainID
	Address vaaLib.Address
}

// Native returns the native token of chain.
func Native(chain vaaLib.ChainID) TokenID {
	return TokenID{Chain: chain}
}

func (t TokenID) IsNative() bool {
	return t.Address == vaaLib.Address{}
}

func (t TokenID) String() string {
	if t.IsNative() {
		return fmt.Sprintf("%s:native", t.Chain)
	}
	return ChainAddress(t).String()
}

// FromEVM left-pads a 20-byte EVM address into a universal address.
func FromEVM(addr common.Address) vaaLib.Address {
	var out vaaLib.Address
	copy(out[12:], addr[:])
	return out
}

// ToEVM converts a universal address to an EVM address. The leading 12 bytes
// must be zero.
func ToEVM(addr vaaLib.Address) (common.Address, error) {
	for _, b := range addr[:12] {
		if b != 0 {
			return common.Address{}, fmt.Errorf("%w: %x is not an EVM address", ErrInvalidAddress, addr[:])
		}
	}
	return common.BytesToAddress(addr[12:]), nil
}

// ParseUniversal parses a hex address of up to 32 bytes, with or without 0x,
// left-padding it to 32 bytes.
func ParseUniversal(s string) (vaaLib.Address, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) > 32 {
		return vaaLib.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	var out vaaLib.Address
	copy(out[32-len(b):], b)
	return out, nil
}

// circleChains maps CCTP domains to chains per network. Solana and Avalanche
// keep one chain id on both networks.
var circleChains = map[Network]map[uint32]vaaLib.ChainID{
	Mainnet: {
		0: vaaLib.ChainIDEthereum,
		1: vaaLib.ChainIDAvalanche,
		2: vaaLib.ChainIDOptimism,
		3: vaaLib.ChainIDArbitrum,
		5: vaaLib.ChainIDSolana,
		6: vaaLib.ChainIDBase,
		7: vaaLib.ChainIDPolygon,
	},
	Testnet: {
		0: vaaLib.ChainIDSepolia,
		1: vaaLib.ChainIDAvalanche,
		2: vaaLib.ChainIDOptimismSepolia,
		3: vaaLib.ChainIDArbitrumSepolia,
		5: vaaLib.ChainIDSolana,
		6: vaaLib.ChainIDBaseSepolia,
		7: vaaLib.ChainIDPolygonSepolia,
	},
}

var circleDomains = func() map[vaaLib.ChainID]uint32 {
	out := make(map[vaaLib.ChainID]uint32)
	for _, domains := range circleChains {
		for domain, chain := range domains {
			out[chain] = domain
		}
	}
	return out
}()

// CircleDomain returns the CCTP domain of chain.
func CircleDomain(chain vaaLib.ChainID) (uint32, bool) {
	d, ok := circleDomains[chain]
	return d, ok
}

// CircleChain returns the chain behind a CCTP domain on network.
func CircleChain(network Network, domain uint32) (vaaLib.ChainID, bool) {
	chain, ok := circleChains[network][domain]
	return chain, ok
}
