// Package transfer drives a cross-chain transfer from source submission
// through attestation to destination redemption.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/protocols"
	"github.com/wormhole-demo/connect/internal/vaa"
)

// Deps are the collaborators a transfer uses.
type Deps struct {
	// Protocols resolves the chain clients of the transfer's protocol.
	Protocols *protocols.Registry
	// Payloads decodes VAAs. Defaults to vaa.Default().
	Payloads *vaa.Registry
	Fetcher  AttestationFetcher
	Network  chains.Network
	// PollInterval paces on-chain redemption checks. Defaults to
	// attestation.DefaultInterval.
	PollInterval time.Duration
	Logger       *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Payloads == nil {
		d.Payloads = vaa.Default()
	}
	if d.PollInterval <= 0 {
		d.PollInterval = attestation.DefaultInterval
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Transfer is one transfer attempt. It is not safe for concurrent use.
type Transfer struct {
	deps     Deps
	protocol protocols.Name
	details  Details
	state    State

	originTxs      []TransactionID
	destinationTxs []TransactionID
	ids            []AttestationID
	attestations   map[string]*Attestation

	logger *zap.Logger
}

func newTransfer(protocol protocols.Name, details Details, deps Deps, state State) *Transfer {
	deps = deps.withDefaults()
	return &Transfer{
		deps:         deps,
		protocol:     protocol,
		details:      details,
		state:        state,
		attestations: make(map[string]*Attestation),
		logger: deps.Logger.With(
			zap.String("component", "Transfer"),
			zap.String("protocol", string(protocol)),
			zap.Stringer("from", details.From.Chain),
			zap.Stringer("to", details.To.Chain)),
	}
}

// New creates a transfer in the Created state.
func New(protocol protocols.Name, details Details, deps Deps) (*Transfer, error) {
	if details.Amount == nil || details.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}
	if deps.Protocols == nil {
		return nil, fmt.Errorf("transfer needs a protocol registry")
	}
	if !deps.Protocols.Supports(details.From.Chain, protocol) {
		return nil, fmt.Errorf("%w: %s on %s", protocols.ErrUnsupported, protocol, details.From.Chain)
	}
	return newTransfer(protocol, details, deps, Created), nil
}

// FromVAA recovers an attested transfer from a signed transfer VAA.
func FromVAA(raw []byte, deps Deps) (*Transfer, error) {
	deps = deps.withDefaults()
	v, protocol, err := decodeTransferVAA(deps.Payloads, raw)
	if err != nil {
		return nil, err
	}
	details, err := detailsFromVAA(v, deps.Network)
	if err != nil {
		return nil, fmt.Errorf("recover transfer details from %s: %w", v.ID(), err)
	}
	t := newTransfer(protocol, details, deps, Attested)
	id := WormholeMessageID(v.ID())
	t.ids = []AttestationID{id}
	t.attestations[id.String()] = &Attestation{ID: id, Raw: raw, VAA: v}
	return t, nil
}

// FromMessageID recovers a transfer from the id of its Wormhole message. It
// lands in Attested when the VAA is available within timeout and in
// SourceFinalized otherwise.
func FromMessageID(ctx context.Context, id vaa.MessageID, deps Deps, timeout time.Duration) (*Transfer, error) {
	deps = deps.withDefaults()
	raw, found, err := deps.Fetcher.FetchVAA(ctx, id, timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch VAA %s: %w", id, err)
	}
	if found {
		return FromVAA(raw, deps)
	}
	t := newTransfer("", Details{From: chains.ChainAddress{Chain: id.Chain, Address: id.Emitter}}, deps, SourceFinalized)
	t.ids = []AttestationID{WormholeMessageID(id)}
	return t, nil
}

// FromTransaction recovers a transfer from the transaction that started it.
// A transaction whose only message is a CCTP burn lands in SourceInitiated
// with the burn's Circle id; its details come from the burn message.
func FromTransaction(ctx context.Context, chain vaaLib.ChainID, txid string, deps Deps, timeout time.Duration) (*Transfer, error) {
	deps = deps.withDefaults()
	ids, err := parseTransaction(ctx, deps.Protocols, chain, txid)
	if err != nil {
		return nil, err
	}
	origin := TransactionID{Chain: chain, TxID: txid}

	var circle []AttestationID
	for _, id := range ids {
		switch id := id.(type) {
		case WormholeMessageID:
			t, err := FromMessageID(ctx, vaa.MessageID(id), deps, timeout)
			if err != nil {
				return nil, err
			}
			t.originTxs = append(t.originTxs, origin)
			t.mergeIDs(ids)
			return t, nil
		case CircleMessageID:
			circle = append(circle, id)
		}
	}
	if len(circle) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoMessages, txid, chain)
	}

	burn := circle[0].(CircleMessageID)
	msg, _, err := vaa.ParseCircleMessage(burn.Message)
	if err != nil {
		return nil, err
	}
	details, err := detailsFromCircle(msg, deps.Network)
	if err != nil {
		return nil, err
	}
	t := newTransfer(protocols.CircleBridge, details, deps, SourceInitiated)
	t.originTxs = []TransactionID{origin}
	t.ids = circle
	return t, nil
}

func parseTransaction(ctx context.Context, reg *protocols.Registry, chain vaaLib.ChainID, txid string) ([]AttestationID, error) {
	parser, err := protocols.Client[TransactionParser](ctx, reg, chain, protocols.WormholeCore)
	if err != nil {
		return nil, err
	}
	ids, err := parser.ParseTransaction(ctx, txid)
	if err != nil {
		return nil, fmt.Errorf("parse transaction %s on %s: %w", txid, chain, err)
	}
	return ids, nil
}

func (t *Transfer) mergeIDs(ids []AttestationID) {
	for _, id := range ids {
		known := false
		for _, have := range t.ids {
			if have.String() == id.String() {
				known = true
				break
			}
		}
		if !known {
			t.ids = append(t.ids, id)
		}
	}
}

func (t *Transfer) State() State             { return t.state }
func (t *Transfer) Protocol() protocols.Name { return t.protocol }
func (t *Transfer) Details() Details         { return t.details }

// Receipt returns a snapshot of the transfer.
func (t *Transfer) Receipt() Receipt {
	r := Receipt{
		State:          t.state,
		Details:        t.details,
		OriginTxs:      append([]TransactionID(nil), t.originTxs...),
		DestinationTxs: append([]TransactionID(nil), t.destinationTxs...),
		AttestationIDs: append([]AttestationID(nil), t.ids...),
	}
	for _, id := range t.ids {
		if a, ok := t.attestations[id.String()]; ok {
			r.Attestations = append(r.Attestations, a)
		}
	}
	return r
}

func (t *Transfer) advance(s State) {
	if s == t.state {
		return
	}
	t.logger.Info("Transfer advanced", zap.Stringer("from", t.state), zap.Stringer("to", s))
	t.state = s
}

// InitiateTransfer builds and submits the source transactions. It is legal
// only in Created.
func (t *Transfer) InitiateTransfer(ctx context.Context, signer Signer) ([]TransactionID, error) {
	if t.state != Created {
		return nil, &StateError{Op: "initiate transfer", State: t.state, Want: Created.String()}
	}
	src, err := protocols.Client[SourceClient](ctx, t.deps.Protocols, t.details.From.Chain, t.protocol)
	if err != nil {
		return nil, err
	}

	txids, err := signSend(ctx, signer, src.Transfer(ctx, t.details))
	for _, id := range txids {
		t.originTxs = append(t.originTxs, TransactionID{Chain: t.details.From.Chain, TxID: id})
	}
	if err != nil {
		t.logger.Error("Failed to initiate transfer", zap.Error(err), zap.Int("submitted", len(txids)))
		t.advance(Failed)
		return t.originTxs, fmt.Errorf("initiate transfer: %w", err)
	}

	if m, ok := src.(Messageless); ok && m.Messageless() {
		t.advance(SourceFinalized)
	} else {
		t.advance(SourceInitiated)
	}
	return t.originTxs, nil
}

// signSend consumes txs, batching parallelizable transactions and flushing
// the batch through the signer at every non-parallelizable one, before the
// next transaction is requested.
func signSend(ctx context.Context, signer Signer, txs iter.Seq2[UnsignedTx, error]) ([]string, error) {
	var (
		out     []string
		pending []UnsignedTx
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := pending
		pending = nil
		ids, err := signer.SignAndSend(ctx, batch)
		out = append(out, ids...)
		return err
	}
	for tx, err := range txs {
		if err != nil {
			return out, err
		}
		pending = append(pending, tx)
		if !tx.Parallelizable {
			if err := flush(); err != nil {
				return out, err
			}
		}
	}
	return out, flush()
}

// FetchAttestation resolves every attestation of the transfer that is not
// yet known. It is legal from SourceInitiated through Attested. When an
// attestation is not available within timeout it returns
// ErrAttestationTimeout and leaves the state unchanged.
func (t *Transfer) FetchAttestation(ctx context.Context, timeout time.Duration) ([]AttestationID, error) {
	if !t.state.AtLeast(SourceInitiated) || t.state.AtLeast(DestinationInitiated) {
		return nil, &StateError{Op: "fetch attestation", State: t.state, Want: "SourceInitiated..Attested"}
	}

	if len(t.ids) == 0 {
		if err := t.parseOrigin(ctx); err != nil {
			return nil, err
		}
	}

	for i, id := range t.ids {
		if _, ok := t.attestations[id.String()]; ok {
			continue
		}
		a, err := t.fetch(ctx, id, timeout)
		if err != nil {
			return nil, err
		}
		// the Circle id may have gained its message
		t.ids[i] = a.ID
		t.attestations[a.ID.String()] = a
	}

	if t.state.AtLeast(SourceInitiated) && !t.state.AtLeast(Attested) {
		t.advance(Attested)
	}
	return append([]AttestationID(nil), t.ids...), nil
}

func (t *Transfer) parseOrigin(ctx context.Context) error {
	for _, tx := range t.originTxs {
		ids, err := parseTransaction(ctx, t.deps.Protocols, tx.Chain, tx.TxID)
		if err != nil {
			return err
		}
		t.mergeIDs(ids)
	}
	if len(t.ids) == 0 {
		return fmt.Errorf("%w: %d origin transactions", ErrNoMessages, len(t.originTxs))
	}
	return nil
}

func (t *Transfer) fetch(ctx context.Context, id AttestationID, timeout time.Duration) (*Attestation, error) {
	switch id := id.(type) {
	case WormholeMessageID:
		raw, found, err := t.deps.Fetcher.FetchVAA(ctx, vaa.MessageID(id), timeout)
		if err != nil {
			return nil, fmt.Errorf("fetch VAA %s: %w", id, err)
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrAttestationTimeout, id)
		}
		v, protocol, err := decodeTransferVAA(t.deps.Payloads, raw)
		if err != nil {
			return nil, err
		}
		if t.protocol == "" {
			t.protocol = protocol
			if d, err := detailsFromVAA(v, t.deps.Network); err == nil {
				t.details = d
			}
		}
		t.logger.Debug("VAA attested", zap.Stringer("id", id))
		vaa.LogVAA(t.logger, v)
		return &Attestation{ID: id, Raw: raw, VAA: v}, nil

	case CircleMessageID:
		if len(id.Message) == 0 {
			derived, err := t.circleMessage(ctx, id)
			if err != nil {
				return nil, err
			}
			id = derived
		}
		msg, _, err := vaa.ParseCircleMessage(id.Message)
		if err != nil {
			return nil, err
		}
		att, found, err := t.deps.Fetcher.FetchCircleAttestation(ctx, id.Hash, timeout)
		if err != nil {
			return nil, fmt.Errorf("fetch Circle attestation %s: %w", id, err)
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrAttestationTimeout, id)
		}
		t.logger.Debug("Circle message attested", zap.Stringer("id", id))
		return &Attestation{ID: id, Raw: att, Circle: msg}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAttestation, id)
}

// circleMessage derives the burn message of id from the origin transactions.
func (t *Transfer) circleMessage(ctx context.Context, id CircleMessageID) (CircleMessageID, error) {
	for _, tx := range t.originTxs {
		ids, err := parseTransaction(ctx, t.deps.Protocols, tx.Chain, tx.TxID)
		if err != nil {
			return CircleMessageID{}, err
		}
		for _, parsed := range ids {
			if c, ok := parsed.(CircleMessageID); ok && c.Hash == id.Hash && len(c.Message) > 0 {
				return c, nil
			}
		}
	}
	return CircleMessageID{}, fmt.Errorf("%w: burn message %s not found in origin transactions", ErrNoMessages, id.Hash)
}

// CompleteTransfer redeems a manual transfer on the destination chain. It is
// legal only once the transfer is attested.
func (t *Transfer) CompleteTransfer(ctx context.Context, signer Signer) ([]TransactionID, error) {
	if !t.state.AtLeast(Attested) {
		return nil, &StateError{Op: "complete transfer", State: t.state, Want: "at least " + Attested.String()}
	}
	if t.details.Automatic {
		return nil, ErrAutomaticTransfer
	}
	dst, err := protocols.Client[DestinationClient](ctx, t.deps.Protocols, t.details.To.Chain, t.protocol)
	if err != nil {
		return nil, err
	}

	txids, err := signSend(ctx, signer, dst.Redeem(ctx, t.details.To, t.Receipt().Attestations))
	var submitted []TransactionID
	for _, id := range txids {
		tx := TransactionID{Chain: t.details.To.Chain, TxID: id}
		t.destinationTxs = append(t.destinationTxs, tx)
		submitted = append(submitted, tx)
	}
	if err != nil {
		return submitted, fmt.Errorf("complete transfer: %w", err)
	}
	if !t.state.AtLeast(DestinationInitiated) {
		t.advance(DestinationInitiated)
	}
	return submitted, nil
}

// isTimeout reports whether err only means the attestation is still pending.
func isTimeout(err error) bool {
	return errors.Is(err, ErrAttestationTimeout)
}
