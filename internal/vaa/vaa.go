// Package vaa models Wormhole VAAs on top of the layout engine and keeps the
// registry of payload layouts addressed by "Protocol:Name" literals.
package vaa

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/layout"
)

// SupportedVersion is the only VAA version this package reads and writes.
const SupportedVersion = 1

var ErrNoPayloadMatch = errors.New("no registered payload matches")

// Signature is a guardian's secp256k1 signature over the VAA digest.
type Signature struct {
	GuardianIndex uint8
	R             [32]byte
	S             [32]byte
	RecoveryID    uint8
}

// MessageID identifies a Wormhole message independently of its signatures.
type MessageID struct {
	Chain    vaaLib.ChainID
	Emitter  vaaLib.Address
	Sequence uint64
}

// String renders the id as chain/emitter/sequence, the form used by the
// attestation API.
func (id MessageID) String() string {
	return fmt.Sprintf("%d/%s/%d", uint16(id.Chain), hex.EncodeToString(id.Emitter[:]), id.Sequence)
}

// ParseMessageID reads the chain/emitter/sequence form produced by String.
// The emitter may carry a 0x prefix.
func ParseMessageID(s string) (MessageID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return MessageID{}, fmt.Errorf("invalid message id %q: want chain/emitter/sequence", s)
	}
	chain, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid chain in message id %q: %w", s, err)
	}
	emitter, err := hex.DecodeString(strings.TrimPrefix(parts[1], "0x"))
	if err != nil || len(emitter) != 32 {
		return MessageID{}, fmt.Errorf("invalid emitter in message id %q", s)
	}
	sequence, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid sequence in message id %q: %w", s, err)
	}
	id := MessageID{Chain: vaaLib.ChainID(chain), Sequence: sequence}
	copy(id.Emitter[:], emitter)
	return id, nil
}

// VAA is a decoded Verified Action Approval. It is never mutated after its
// hash is computed.
type VAA struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []Signature

	Timestamp        uint32
	Nonce            uint32
	EmitterChain     vaaLib.ChainID
	EmitterAddress   vaaLib.Address
	Sequence         uint64
	ConsistencyLevel uint8

	// Protocol and PayloadName form the literal the payload was decoded with.
	Protocol    string
	PayloadName string
	// Payload is nil for raw payloads.
	Payload    layout.Fields
	RawPayload []byte

	hash common.Hash
}

// Literal returns the payload literal, or RawLiteral.
func (v *VAA) Literal() string {
	if v.Payload == nil {
		return RawLiteral
	}
	return Literal(v.Protocol, v.PayloadName)
}

// ID returns the message identity.
func (v *VAA) ID() MessageID {
	return MessageID{Chain: v.EmitterChain, Emitter: v.EmitterAddress, Sequence: v.Sequence}
}

// Hash is keccak256 of the body (envelope and payload). Signatures do not
// contribute, so re-signed copies of a message hash identically.
func (v *VAA) Hash() common.Hash { return v.hash }

// Digest is keccak256 of Hash: the value guardians sign and contracts use to
// key redemptions.
func (v *VAA) Digest() common.Hash {
	return crypto.Keccak256Hash(v.hash[:])
}

var signatureLayout = layout.Layout{
	{Name: "guardianIndex", Item: layout.U8()},
	{Name: "r", Item: layout.Bytes{Size: 32}},
	{Name: "s", Item: layout.Bytes{Size: 32}},
	{Name: "v", Item: layout.U8()},
}

var headerLayout = layout.Layout{
	{Name: "version", Item: layout.Uint{Size: 1, Fixed: uint64(SupportedVersion)}},
	{Name: "guardianSet", Item: layout.U32()},
	{Name: "signatures", Item: layout.Array{LengthSize: 1, Layout: signatureLayout}},
}

var envelopeLayout = layout.Layout{
	{Name: "timestamp", Item: layout.U32()},
	{Name: "nonce", Item: layout.U32()},
	{Name: "emitterChain", Item: ChainItem()},
	{Name: "emitterAddress", Item: UniversalAddressItem()},
	{Name: "sequence", Item: layout.U64()},
	{Name: "consistencyLevel", Item: layout.U8()},
}

// EnvelopeSize is the encoded size of the body before the payload.
var EnvelopeSize = func() int {
	n, ok := layout.StaticSize(envelopeLayout)
	if !ok {
		panic("vaa: envelope layout is not statically sized")
	}
	return n
}()

// Deserialize decodes a serialized VAA, decoding its payload with the layout
// registered for literal (or leaving it raw for RawLiteral).
func (r *Registry) Deserialize(literal string, data []byte) (*VAA, error) {
	v, err := parseFrame(data)
	if err != nil {
		return nil, err
	}
	if literal == RawLiteral {
		return v, nil
	}
	if err := r.attach(v, literal); err != nil {
		return nil, err
	}
	return v, nil
}

// DeserializeProtocol decodes a VAA whose payload belongs to protocol,
// trying each of the protocol's payloads in registration order.
func (r *Registry) DeserializeProtocol(protocol string, data []byte) (*VAA, error) {
	v, err := parseFrame(data)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, lit := range r.byProtocol[protocol] {
		if err := r.attach(v, lit); err == nil {
			return v, nil
		} else {
			errs = append(errs, err)
		}
	}
	return nil, fmt.Errorf("%w: protocol %s: %w", ErrNoPayloadMatch, protocol, errors.Join(errs...))
}

// Decode re-decodes the payload of a raw VAA with literal, returning a copy.
func (r *Registry) Decode(v *VAA, literal string) (*VAA, error) {
	out := *v
	out.Payload = nil
	if err := r.attach(&out, literal); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Registry) attach(v *VAA, literal string) error {
	protocol, name, err := ParseLiteral(literal)
	if err != nil {
		return err
	}
	fields, err := r.DecodePayload(literal, v.RawPayload)
	if err != nil {
		return err
	}
	v.Protocol, v.PayloadName, v.Payload = protocol, name, fields
	return nil
}

func parseFrame(data []byte) (*VAA, error) {
	header, n, err := layout.DecodePrefix(headerLayout, data)
	if err != nil {
		return nil, fmt.Errorf("decode vaa header: %w", err)
	}
	body := data[n:]
	if len(body) < EnvelopeSize {
		return nil, fmt.Errorf("decode vaa envelope: %w", &layout.Error{Path: "envelope", Offset: n, Err: layout.ErrShortBuffer})
	}
	envelope, err := layout.Decode(envelopeLayout, body[:EnvelopeSize])
	if err != nil {
		return nil, fmt.Errorf("decode vaa envelope: %w", err)
	}

	v := &VAA{
		Version:          uint8(header["version"].(uint64)),
		GuardianSetIndex: uint32(header["guardianSet"].(uint64)),
		Timestamp:        uint32(envelope["timestamp"].(uint64)),
		Nonce:            uint32(envelope["nonce"].(uint64)),
		EmitterChain:     envelope["emitterChain"].(vaaLib.ChainID),
		EmitterAddress:   envelope["emitterAddress"].(vaaLib.Address),
		Sequence:         envelope["sequence"].(uint64),
		ConsistencyLevel: uint8(envelope["consistencyLevel"].(uint64)),
		RawPayload:       append([]byte(nil), body[EnvelopeSize:]...),
		hash:             crypto.Keccak256Hash(body),
	}
	for _, s := range header["signatures"].([]layout.Fields) {
		sig := Signature{
			GuardianIndex: uint8(s["guardianIndex"].(uint64)),
			RecoveryID:    uint8(s["v"].(uint64)),
		}
		copy(sig.R[:], s["r"].([]byte))
		copy(sig.S[:], s["s"].([]byte))
		v.Signatures = append(v.Signatures, sig)
	}
	return v, nil
}

// Serialize encodes v. A decoded payload is re-encoded through its layout;
// a raw payload is written as is.
func (r *Registry) Serialize(v *VAA) ([]byte, error) {
	header, err := layout.Encode(headerLayout, headerFields(v))
	if err != nil {
		return nil, fmt.Errorf("encode vaa header: %w", err)
	}
	body, err := r.body(v)
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

func (r *Registry) body(v *VAA) ([]byte, error) {
	envelope, err := layout.Encode(envelopeLayout, envelopeFields(v))
	if err != nil {
		return nil, fmt.Errorf("encode vaa envelope: %w", err)
	}
	payload := v.RawPayload
	if v.Payload != nil {
		payload, err = r.EncodePayload(Literal(v.Protocol, v.PayloadName), v.Payload)
		if err != nil {
			return nil, err
		}
	}
	return append(envelope, payload...), nil
}

func headerFields(v *VAA) layout.Fields {
	sigs := make([]layout.Fields, len(v.Signatures))
	for i, s := range v.Signatures {
		sigs[i] = layout.Fields{
			"guardianIndex": uint64(s.GuardianIndex),
			"r":             s.R[:],
			"s":             s.S[:],
			"v":             uint64(s.RecoveryID),
		}
	}
	f := layout.Fields{
		"guardianSet": uint64(v.GuardianSetIndex),
		"signatures":  sigs,
	}
	if v.Version != 0 {
		f["version"] = uint64(v.Version)
	}
	return f
}

func envelopeFields(v *VAA) layout.Fields {
	return layout.Fields{
		"timestamp":        uint64(v.Timestamp),
		"nonce":            uint64(v.Nonce),
		"emitterChain":     v.EmitterChain,
		"emitterAddress":   v.EmitterAddress,
		"sequence":         v.Sequence,
		"consistencyLevel": uint64(v.ConsistencyLevel),
	}
}

// Create describes a VAA to synthesize. Fields with derivable values
// (version, payload ids, length prefixes, discriminants) may be left out.
type Create struct {
	GuardianSetIndex uint32
	Signatures       []Signature
	Timestamp        uint32
	Nonce            uint32
	EmitterChain     vaaLib.ChainID
	EmitterAddress   vaaLib.Address
	Sequence         uint64
	ConsistencyLevel uint8
	// Payload is used for registered literals, RawPayload for RawLiteral.
	Payload    layout.Fields
	RawPayload []byte
}

// Create synthesizes a VAA, filling derivable fields and computing its hash.
// It is used for test fixtures and locally built messages awaiting signatures.
func (r *Registry) Create(literal string, c Create) (*VAA, error) {
	v := &VAA{
		Version:          SupportedVersion,
		GuardianSetIndex: c.GuardianSetIndex,
		Signatures:       append([]Signature(nil), c.Signatures...),
		Timestamp:        c.Timestamp,
		Nonce:            c.Nonce,
		EmitterChain:     c.EmitterChain,
		EmitterAddress:   c.EmitterAddress,
		Sequence:         c.Sequence,
		ConsistencyLevel: c.ConsistencyLevel,
		RawPayload:       append([]byte(nil), c.RawPayload...),
	}
	if literal != RawLiteral {
		protocol, name, err := ParseLiteral(literal)
		if err != nil {
			return nil, err
		}
		l, ok := r.layouts[literal]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, literal)
		}
		full, err := layout.Complete(l, c.Payload)
		if err != nil {
			return nil, fmt.Errorf("complete %s: %w", literal, err)
		}
		raw, err := layout.Encode(l, full)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", literal, err)
		}
		v.Protocol, v.PayloadName, v.Payload, v.RawPayload = protocol, name, full, raw
	}
	body, err := r.body(v)
	if err != nil {
		return nil, err
	}
	v.hash = crypto.Keccak256Hash(body)
	return v, nil
}

// WithSignatures returns a copy of v carrying sigs. The hash is unchanged.
func (v *VAA) WithSignatures(sigs []Signature) *VAA {
	out := *v
	out.Signatures = append([]Signature(nil), sigs...)
	return &out
}
