package vaa

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/layout"
)

// CircleMessageLayout is the CCTP message emitted by the MessageTransmitter
// for a burn, with the TokenMessenger burn body inlined.
var CircleMessageLayout = layout.Layout{
	{Name: "version", Item: layout.U32()},
	{Name: "sourceDomain", Item: layout.U32()},
	{Name: "destinationDomain", Item: layout.U32()},
	{Name: "nonce", Item: layout.U64()},
	{Name: "sender", Item: UniversalAddressItem()},
	{Name: "recipient", Item: UniversalAddressItem()},
	{Name: "destinationCaller", Item: UniversalAddressItem()},
	{Name: "payload", Item: layout.Bytes{Layout: layout.Layout{
		{Name: "version", Item: layout.U32()},
		{Name: "burnToken", Item: UniversalAddressItem()},
		{Name: "mintRecipient", Item: UniversalAddressItem()},
		{Name: "amount", Item: AmountItem()},
		{Name: "messageSender", Item: UniversalAddressItem()},
	}}},
}

// CircleMessage is a decoded CCTP burn message.
type CircleMessage struct {
	Version           uint32
	SourceDomain      uint32
	DestinationDomain uint32
	Nonce             uint64
	Sender            vaaLib.Address
	Recipient         vaaLib.Address
	DestinationCaller vaaLib.Address

	BodyVersion   uint32
	BurnToken     vaaLib.Address
	MintRecipient vaaLib.Address
	Amount        *uint256.Int
	MessageSender vaaLib.Address
}

// ParseCircleMessage decodes a CCTP burn message and returns it with its
// keccak256 hash, the key the Circle attestation service indexes by.
func ParseCircleMessage(data []byte) (*CircleMessage, common.Hash, error) {
	f, err := layout.Decode(CircleMessageLayout, data)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("decode circle message: %w", err)
	}
	body := f["payload"].(layout.Fields)
	m := &CircleMessage{
		Version:           uint32(f["version"].(uint64)),
		SourceDomain:      uint32(f["sourceDomain"].(uint64)),
		DestinationDomain: uint32(f["destinationDomain"].(uint64)),
		Nonce:             f["nonce"].(uint64),
		Sender:            f["sender"].(vaaLib.Address),
		Recipient:         f["recipient"].(vaaLib.Address),
		DestinationCaller: f["destinationCaller"].(vaaLib.Address),
		BodyVersion:       uint32(body["version"].(uint64)),
		BurnToken:         body["burnToken"].(vaaLib.Address),
		MintRecipient:     body["mintRecipient"].(vaaLib.Address),
		Amount:            body["amount"].(*uint256.Int),
		MessageSender:     body["messageSender"].(vaaLib.Address),
	}
	return m, crypto.Keccak256Hash(data), nil
}

// Serialize encodes m back into its wire form.
func (m *CircleMessage) Serialize() ([]byte, error) {
	amount := m.Amount
	if amount == nil {
		amount = new(uint256.Int)
	}
	return layout.Encode(CircleMessageLayout, layout.Fields{
		"version":           uint64(m.Version),
		"sourceDomain":      uint64(m.SourceDomain),
		"destinationDomain": uint64(m.DestinationDomain),
		"nonce":             m.Nonce,
		"sender":            m.Sender,
		"recipient":         m.Recipient,
		"destinationCaller": m.DestinationCaller,
		"payload": layout.Fields{
			"version":       uint64(m.BodyVersion),
			"burnToken":     m.BurnToken,
			"mintRecipient": m.MintRecipient,
			"amount":        amount,
			"messageSender": m.MessageSender,
		},
	})
}

// UsedNonceKey is the key the destination MessageTransmitter records a
// redeemed message under: keccak256(sourceDomain ‖ nonce).
func (m *CircleMessage) UsedNonceKey() common.Hash {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], m.SourceDomain)
	binary.BigEndian.PutUint64(b[4:12], m.Nonce)
	return crypto.Keccak256Hash(b[:])
}
