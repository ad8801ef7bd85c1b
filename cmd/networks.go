package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/platforms/evm"
	solanaPlatform "github.com/wormhole-demo/connect/internal/platforms/solana"
)

// EVMChainConfig holds the defaults of one EVM chain.
type EVMChainConfig struct {
	DefaultRPCURL string
	Contracts     evm.Contracts
	USDC          common.Address
}

// NetworkConfig holds the defaults of one Wormhole network.
type NetworkConfig struct {
	APIURL         string
	CircleAPIURL   string
	SolanaRPCURL   string
	SolanaPrograms solanaPlatform.Programs
	EVM            map[vaaLib.ChainID]EVMChainConfig
}

var NetworkConfigs = map[chains.Network]NetworkConfig{
	chains.Mainnet: {
		APIURL:       "https://api.wormholescan.io",
		CircleAPIURL: "https://iris-api.circle.com",
		SolanaRPCURL: "https://api.mainnet-beta.solana.com",
		SolanaPrograms: solanaPlatform.Programs{
			Core:        solana.MustPublicKeyFromBase58("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth"),
			TokenBridge: solana.MustPublicKeyFromBase58("wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb"),
		},
		EVM: map[vaaLib.ChainID]EVMChainConfig{
			vaaLib.ChainIDEthereum: {
				DefaultRPCURL: "https://ethereum-rpc.publicnode.com",
				Contracts: evm.Contracts{
					Core:               common.HexToAddress("0x98f3c9e6E3fAce36bAAd05FE09d375Ef1464288B"),
					TokenBridge:        common.HexToAddress("0x3ee18B2214AFF97000D974cf647E7C347E8fa585"),
					TokenBridgeRelayer: common.HexToAddress("0xcafd2f0a35a4459fa40c0517e17e6fa2939441ca"),
					TokenMessenger:     common.HexToAddress("0xBd3fa81B58Ba92a82136038B25aDec7066af3155"),
					MessageTransmitter: common.HexToAddress("0x0a992d191DEeC32aFe36203Ad87D7d289a738F81"),
					CircleRelayer:      common.HexToAddress("0x4cb69FaE7e7Af841e44E1A1c30Af640739378bb2"),
					WrappedNative:      common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
				},
				USDC: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			},
			vaaLib.ChainIDArbitrum: {
				DefaultRPCURL: "https://arb1.arbitrum.io/rpc",
				Contracts: evm.Contracts{
					Core:               common.HexToAddress("0xa5f208e072434bC67592E4C49C1B991BA79BCA46"),
					TokenBridge:        common.HexToAddress("0x0b2402144Bb366A632D14B83F244D2e0e21bD39c"),
					TokenBridgeRelayer: common.HexToAddress("0xcafd2f0a35a4459fa40c0517e17e6fa2939441ca"),
					TokenMessenger:     common.HexToAddress("0x19330d10D9Cc8751218eaf51E8885D058642E08A"),
					MessageTransmitter: common.HexToAddress("0xC30362313FBBA5cf9163F0bb16a0e01f01A896ca"),
					CircleRelayer:      common.HexToAddress("0x4cb69FaE7e7Af841e44E1A1c30Af640739378bb2"),
					WrappedNative:      common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
				},
				USDC: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
			},
			vaaLib.ChainIDBase: {
				DefaultRPCURL: "https://mainnet.base.org",
				Contracts: evm.Contracts{
					Core:               common.HexToAddress("0xbebdb6C8ddC678FfA9f8748f85C815C556Dd8ac6"),
					TokenBridge:        common.HexToAddress("0x8d2de8d2f73F1F4cAB472AC9A881C9b123C79627"),
					TokenBridgeRelayer: common.HexToAddress("0xaE8dc4a7438801Ec4edC0B035EcCCcF3807F4CC1"),
					TokenMessenger:     common.HexToAddress("0x1682Ae6375C4E4A97e4B583BC394c861A46D8962"),
					MessageTransmitter: common.HexToAddress("0xAD09780d193884d503182aD4588450C416D6F9D4"),
					CircleRelayer:      common.HexToAddress("0x4cb69FaE7e7Af841e44E1A1c30Af640739378bb2"),
					WrappedNative:      common.HexToAddress("0x4200000000000000000000000000000000000006"),
				},
				USDC: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			},
		},
	},
	chains.Testnet: {
		APIURL:       "https://api.testnet.wormholescan.io",
		CircleAPIURL: "https://iris-api-sandbox.circle.com",
		SolanaRPCURL: "https://api.devnet.solana.com",
		SolanaPrograms: solanaPlatform.Programs{
			Core:        solana.MustPublicKeyFromBase58("3u8hJUVTA4jH1wYAyUur7FFZVQ8H635K3tSHHF4ssjQ5"),
			TokenBridge: solana.MustPublicKeyFromBase58("DZnkkTmCiFWfYTfT41X3Rd1kDgozqzxWaHqsw6W4x2oe"),
		},
		EVM: map[vaaLib.ChainID]EVMChainConfig{
			vaaLib.ChainIDSepolia: {
				DefaultRPCURL: "https://ethereum-sepolia-rpc.publicnode.com",
				Contracts: evm.Contracts{
					Core:               common.HexToAddress("0x4a8bc80Ed5a4067f1CCf107057b8270E0cC11A78"),
					TokenBridge:        common.HexToAddress("0xDB5492265f6038831E89f495670FF909aDe94bd9"),
					TokenBridgeRelayer: common.HexToAddress("0x7Fb0D63258caF51D8A35130d3f7A7fd1EE893969"),
					TokenMessenger:     common.HexToAddress("0x9f3B8679c73C2Fef8b59B4f3444d4e156fb70AA5"),
					MessageTransmitter: common.HexToAddress("0x7865fAfC2db2093669d92c0F33AeEF291086BEFD"),
					WrappedNative:      common.HexToAddress("0xeef12A83EE5b7161D3873317c8E0E7B76e0B5D9c"),
				},
				USDC: common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
			},
			vaaLib.ChainIDArbitrumSepolia: {
				DefaultRPCURL: "https://sepolia-rollup.arbitrum.io/rpc",
				Contracts: evm.Contracts{
					Core:               common.HexToAddress("0x6b9C8671cdDC8dEab9c719bB87cBd3e782bA6a35"),
					TokenBridge:        common.HexToAddress("0xC7A204bDBFe983FCD8d8E61D02b475D4073fF97e"),
					TokenMessenger:     common.HexToAddress("0x9f3B8679c73C2Fef8b59B4f3444d4e156fb70AA5"),
					MessageTransmitter: common.HexToAddress("0xaCF1ceeF35caAc005e15888dDb8A3515C41B4872"),
				},
				USDC: common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d"),
			},
			vaaLib.ChainIDBaseSepolia: {
				DefaultRPCURL: "https://sepolia.base.org",
				Contracts: evm.Contracts{
					Core:               common.HexToAddress("0x79A1027a6A159502049F10906D333EC57E95F083"),
					TokenBridge:        common.HexToAddress("0x86F55A04690fd7815A3D802bD587e83eA888B239"),
					TokenMessenger:     common.HexToAddress("0x9f3B8679c73C2Fef8b59B4f3444d4e156fb70AA5"),
					MessageTransmitter: common.HexToAddress("0x7865fAfC2db2093669d92c0F33AeEF291086BEFD"),
				},
				USDC: common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			},
		},
	},
}

// networkConfig returns the defaults of a network given by name.
func networkConfig(name string) (chains.Network, NetworkConfig, error) {
	for network, cfg := range NetworkConfigs {
		if strings.EqualFold(string(network), name) {
			return network, cfg, nil
		}
	}
	return "", NetworkConfig{}, fmt.Errorf("unsupported network: %s (valid: mainnet, testnet)", name)
}

// parseChain accepts a chain name such as "ethereum" or a numeric chain id.
func parseChain(s string) (vaaLib.ChainID, error) {
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return vaaLib.ChainID(n), nil
	}
	chain, err := vaaLib.ChainIDFromString(strings.ToLower(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", chains.ErrUnknownChain, s)
	}
	return chain, nil
}

// circleTokens lists the USDC address of every chain with one.
func (n NetworkConfig) circleTokens() map[vaaLib.ChainID]vaaLib.Address {
	out := make(map[vaaLib.ChainID]vaaLib.Address)
	for chain, cfg := range n.EVM {
		if cfg.USDC != (common.Address{}) {
			out[chain] = chains.FromEVM(cfg.USDC)
		}
	}
	return out
}
