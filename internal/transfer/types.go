package transfer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/vaa"
)

var (
	ErrInvalidState           = errors.New("invalid transfer state")
	ErrAttestationTimeout     = errors.New("attestation not available before timeout")
	ErrAutomaticTransfer      = errors.New("automatic transfers are completed by a relayer")
	ErrNoMessages             = errors.New("transaction emitted no messages")
	ErrUnsupportedAttestation = errors.New("unsupported attestation")
	ErrNotTransfer            = errors.New("VAA is not a transfer")
)

// State is the progress of a transfer. States other than Failed are ordered.
type State int

const (
	Created State = iota
	SourceInitiated
	SourceFinalized
	Attested
	DestinationInitiated
	DestinationFinalized
	Failed
)

var stateNames = [...]string{
	Created:              "Created",
	SourceInitiated:      "SourceInitiated",
	SourceFinalized:      "SourceFinalized",
	Attested:             "Attested",
	DestinationInitiated: "DestinationInitiated",
	DestinationFinalized: "DestinationFinalized",
	Failed:               "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// AtLeast reports whether s has reached o. Failed has reached nothing.
func (s State) AtLeast(o State) bool {
	return s != Failed && s >= o
}

// StateError is returned when an operation is called in a state it is not
// legal in.
type StateError struct {
	Op    string
	State State
	Want  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: transfer is %s, want %s", e.Op, e.State, e.Want)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// AttestationID identifies a proof that a source-chain event happened.
type AttestationID interface {
	fmt.Stringer
	isAttestationID()
}

// WormholeMessageID identifies a Wormhole message, attested by a VAA.
type WormholeMessageID vaa.MessageID

func (id WormholeMessageID) String() string { return vaa.MessageID(id).String() }
func (WormholeMessageID) isAttestationID()  {}

// CircleMessageID identifies a CCTP burn message, attested by Circle. Message
// may be empty until it is derived from the source transaction.
type CircleMessageID struct {
	Message []byte
	Hash    common.Hash
}

func (id CircleMessageID) String() string { return "circle/" + id.Hash.Hex() }
func (CircleMessageID) isAttestationID()  {}

// NewCircleMessageID hashes a burn message into its id.
func NewCircleMessageID(message []byte) CircleMessageID {
	return CircleMessageID{Message: message, Hash: crypto.Keccak256Hash(message)}
}

// IbcMessageID identifies an IBC packet.
type IbcMessageID struct {
	Chain    vaaLib.ChainID
	Port     string
	Channel  string
	Sequence uint64
}

func (id IbcMessageID) String() string {
	return fmt.Sprintf("ibc/%d/%s/%s/%d", uint16(id.Chain), id.Port, id.Channel, id.Sequence)
}
func (IbcMessageID) isAttestationID() {}

// Attestation is a resolved AttestationID.
type Attestation struct {
	ID AttestationID
	// Raw holds the signed VAA or Circle's attestation signature.
	Raw []byte
	// VAA is set for Wormhole messages.
	VAA *vaa.VAA
	// Circle is set for CCTP burn messages.
	Circle *vaa.CircleMessage
}

// Details describe what a transfer moves. Amount is in base units of the
// source token; for transfers recovered from a VAA it is the amount carried
// on the wire.
type Details struct {
	Token     chains.TokenID
	Amount    *big.Int
	From      chains.ChainAddress
	To        chains.ChainAddress
	Automatic bool
	Payload   []byte
	NativeGas *big.Int
}

// TransactionID is a submitted transaction.
type TransactionID struct {
	Chain vaaLib.ChainID
	TxID  string
}

// Receipt is a snapshot of a transfer.
type Receipt struct {
	State          State
	Details        Details
	OriginTxs      []TransactionID
	DestinationTxs []TransactionID
	AttestationIDs []AttestationID
	Attestations   []*Attestation
}

// UnsignedTx is a transaction a chain adapter built and a signer will sign.
// Parallelizable transactions may be signed and sent in one batch with
// those around them.
type UnsignedTx struct {
	Chain          vaaLib.ChainID
	Description    string
	Parallelizable bool
	Tx             any
}

// Signer signs a batch of transactions, submits them and waits for them to
// confirm, returning their ids in order.
type Signer interface {
	Chain() vaaLib.ChainID
	Address() vaaLib.Address
	SignAndSend(ctx context.Context, txs []UnsignedTx) ([]string, error)
}

// TransactionParser extracts the messages a transaction emitted.
type TransactionParser interface {
	ParseTransaction(ctx context.Context, txid string) ([]AttestationID, error)
}

// SourceClient builds the transactions that start a transfer.
type SourceClient interface {
	Transfer(ctx context.Context, d Details) iter.Seq2[UnsignedTx, error]
}

// Messageless is implemented by source clients whose transfers are final on
// the source chain without an attested message.
type Messageless interface {
	Messageless() bool
}

// CompletionChecker reports whether a transfer was already redeemed.
type CompletionChecker interface {
	IsTransferCompleted(ctx context.Context, atts []*Attestation) (bool, error)
}

// DestinationClient builds the transactions that redeem a transfer.
type DestinationClient interface {
	CompletionChecker
	Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*Attestation) iter.Seq2[UnsignedTx, error]
}

// AttestationFetcher polls the attestation network.
type AttestationFetcher interface {
	FetchVAA(ctx context.Context, id vaa.MessageID, timeout time.Duration) ([]byte, bool, error)
	FetchCircleAttestation(ctx context.Context, messageHash common.Hash, timeout time.Duration) ([]byte, bool, error)
	FetchDeliveryStatus(ctx context.Context, id vaa.MessageID, timeout time.Duration) (*attestation.DeliveryStatus, bool, error)
}
