package vaa

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/layout"
)

// NttTransceiverMessage returns the transceiver message carried by an NTT
// VAA, unwrapping a standard relayer delivery.
func NttTransceiverMessage(v *VAA) (layout.Fields, error) {
	switch v.Literal() {
	case NttWormholeTransfer:
		return v.Payload, nil
	case NttWormholeTransferStandardRelayer:
		return v.Payload.Struct("payload")
	}
	return nil, fmt.Errorf("%w: %s is not an NTT transfer", ErrUnknownPayload, v.Literal())
}

// NttMessageDigest is the key under which a destination NTT manager records
// an executed message: keccak256 of the source chain and the encoded manager
// message.
func NttMessageDigest(sourceChain vaaLib.ChainID, managerMessage layout.Fields) (common.Hash, error) {
	raw, err := layout.Encode(nttManagerMessageLayout(), managerMessage)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode NTT manager message: %w", err)
	}
	return crypto.Keccak256Hash(binary.BigEndian.AppendUint16(nil, uint16(sourceChain)), raw), nil
}

// PorticoFlagSet is the routing word of a Portico trade.
type PorticoFlagSet struct {
	RecipientChain     vaaLib.ChainID
	BridgeNonce        uint32
	FeeTierStart       uint32
	FeeTierFinish      uint32
	ShouldWrapNative   bool
	ShouldUnwrapNative bool
}

const (
	porticoWrapNative   = 1 << 0
	porticoUnwrapNative = 1 << 1
)

// Encode packs f the way Portico contracts read it.
func (f PorticoFlagSet) Encode() ([32]byte, error) {
	var flags uint64
	if f.ShouldWrapNative {
		flags |= porticoWrapNative
	}
	if f.ShouldUnwrapNative {
		flags |= porticoUnwrapNative
	}
	raw, err := layout.Encode(porticoFlagSetLayout(), layout.Fields{
		"recipientChain": f.RecipientChain,
		"bridgeNonce":    f.BridgeNonce,
		"feeTierStart":   f.FeeTierStart,
		"feeTierFinish":  f.FeeTierFinish,
		"flags":          flags,
	})
	if err != nil {
		return [32]byte{}, err
	}
	return [32]byte(raw), nil
}

// ParsePorticoFlagSet reads the decoded flag set of a Portico payload.
func ParsePorticoFlagSet(fields layout.Fields) (PorticoFlagSet, error) {
	var out PorticoFlagSet
	for name, dst := range map[string]*uint32{
		"bridgeNonce":   &out.BridgeNonce,
		"feeTierStart":  &out.FeeTierStart,
		"feeTierFinish": &out.FeeTierFinish,
	} {
		v, err := fields.Uint64(name)
		if err != nil {
			return PorticoFlagSet{}, err
		}
		*dst = uint32(v)
	}
	chain, err := fields.Uint64("recipientChain")
	if err != nil {
		return PorticoFlagSet{}, err
	}
	flags, err := fields.Uint64("flags")
	if err != nil {
		return PorticoFlagSet{}, err
	}
	out.RecipientChain = vaaLib.ChainID(chain)
	out.ShouldWrapNative = flags&porticoWrapNative != 0
	out.ShouldUnwrapNative = flags&porticoUnwrapNative != 0
	return out, nil
}
