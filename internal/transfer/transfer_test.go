package transfer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/layout"
	"github.com/wormhole-demo/connect/internal/protocols"
	"github.com/wormhole-demo/connect/internal/vaa"
)

var (
	tokenBridgeEmitter = vaaLib.Address{31: 0x01}
	sender             = vaaLib.Address{31: 0xaa}
	recipient          = vaaLib.Address{31: 0xbb}
	usdc               = vaaLib.Address{31: 0xcc}
)

type recorder struct {
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

type fakeSigner struct {
	rec   *recorder
	chain vaaLib.ChainID
	fail  error
}

func (s *fakeSigner) Chain() vaaLib.ChainID   { return s.chain }
func (s *fakeSigner) Address() vaaLib.Address { return sender }

func (s *fakeSigner) SignAndSend(ctx context.Context, txs []UnsignedTx) ([]string, error) {
	var names, ids []string
	for _, tx := range txs {
		names = append(names, tx.Description)
		ids = append(ids, "0x"+tx.Description)
	}
	s.rec.add("sign %s", strings.Join(names, ","))
	if s.fail != nil {
		return nil, s.fail
	}
	return ids, nil
}

// fakeClient serves as source and destination client on every chain.
type fakeClient struct {
	rec         *recorder
	txs         []UnsignedTx
	completed   bool
	checks      int
	redeemed    [][]*Attestation
	messageless bool
}

func (c *fakeClient) Transfer(ctx context.Context, d Details) iter.Seq2[UnsignedTx, error] {
	return func(yield func(UnsignedTx, error) bool) {
		for _, tx := range c.txs {
			c.rec.add("build %s", tx.Description)
			if !yield(tx, nil) {
				return
			}
		}
	}
}

func (c *fakeClient) Redeem(ctx context.Context, to chains.ChainAddress, atts []*Attestation) iter.Seq2[UnsignedTx, error] {
	c.redeemed = append(c.redeemed, atts)
	return func(yield func(UnsignedTx, error) bool) {
		yield(UnsignedTx{Chain: to.Chain, Description: "redeem"}, nil)
	}
}

func (c *fakeClient) IsTransferCompleted(ctx context.Context, atts []*Attestation) (bool, error) {
	c.checks++
	return c.completed, nil
}

type messagelessClient struct{ *fakeClient }

func (messagelessClient) Messageless() bool { return true }

type fakeParser struct {
	ids   map[string][]AttestationID
	calls int
}

func (p *fakeParser) ParseTransaction(ctx context.Context, txid string) ([]AttestationID, error) {
	p.calls++
	return p.ids[txid], nil
}

type fakeFetcher struct {
	vaas        map[string][]byte
	circle      map[common.Hash][]byte
	delivery    *attestation.DeliveryStatus
	vaaCalls    int
	circleCalls int
}

func (f *fakeFetcher) FetchVAA(ctx context.Context, id vaa.MessageID, timeout time.Duration) ([]byte, bool, error) {
	f.vaaCalls++
	raw, ok := f.vaas[id.String()]
	return raw, ok, nil
}

func (f *fakeFetcher) FetchCircleAttestation(ctx context.Context, hash common.Hash, timeout time.Duration) ([]byte, bool, error) {
	f.circleCalls++
	att, ok := f.circle[hash]
	return att, ok, nil
}

func (f *fakeFetcher) FetchDeliveryStatus(ctx context.Context, id vaa.MessageID, timeout time.Duration) (*attestation.DeliveryStatus, bool, error) {
	return f.delivery, f.delivery != nil, nil
}

type harness struct {
	rec     *recorder
	client  *fakeClient
	parser  *fakeParser
	fetcher *fakeFetcher
	deps    Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		rec:     &recorder{},
		parser:  &fakeParser{ids: map[string][]AttestationID{}},
		fetcher: &fakeFetcher{vaas: map[string][]byte{}, circle: map[common.Hash][]byte{}},
	}
	h.client = &fakeClient{rec: h.rec}

	b := protocols.NewBuilder()
	clientFactory := func(ctx context.Context, chain vaaLib.ChainID) (any, error) { return h.client, nil }
	for _, p := range []chains.Platform{chains.Evm, chains.Solana} {
		for _, name := range []protocols.Name{protocols.TokenBridge, protocols.AutomaticTokenBridge, protocols.CircleBridge} {
			require.NoError(t, b.Register(p, name, clientFactory))
		}
		require.NoError(t, b.Register(p, protocols.WormholeCore, func(ctx context.Context, chain vaaLib.ChainID) (any, error) {
			return h.parser, nil
		}))
	}
	require.NoError(t, b.Register(chains.Evm, "Messageless", func(ctx context.Context, chain vaaLib.ChainID) (any, error) {
		return messagelessClient{h.client}, nil
	}))

	h.deps = Deps{
		Protocols:    b.Build(),
		Fetcher:      h.fetcher,
		Network:      chains.Mainnet,
		PollInterval: time.Millisecond,
		Logger:       zap.NewNop(),
	}
	return h
}

func (h *harness) signer() *fakeSigner {
	return &fakeSigner{rec: h.rec, chain: vaaLib.ChainIDEthereum}
}

func manualDetails() Details {
	return Details{
		Token:  chains.TokenID{Chain: vaaLib.ChainIDEthereum, Address: usdc},
		Amount: big.NewInt(1_000_000),
		From:   chains.ChainAddress{Chain: vaaLib.ChainIDEthereum, Address: sender},
		To:     chains.ChainAddress{Chain: vaaLib.ChainIDSolana, Address: recipient},
	}
}

func transferVAA(t *testing.T, sequence uint64) (*vaa.VAA, []byte) {
	t.Helper()
	r := vaa.Default()
	v, err := r.Create(vaa.TokenBridgeTransfer, vaa.Create{
		Timestamp:      1700000000,
		EmitterChain:   vaaLib.ChainIDEthereum,
		EmitterAddress: tokenBridgeEmitter,
		Sequence:       sequence,
		Payload: layout.Fields{
			"token": layout.Fields{"amount": uint64(100), "address": usdc, "chain": vaaLib.ChainIDEthereum},
			"to":    layout.Fields{"address": recipient, "chain": vaaLib.ChainIDSolana},
			"fee":   uint64(0),
		},
	})
	require.NoError(t, err)
	raw, err := r.Serialize(v)
	require.NoError(t, err)
	return v, raw
}

func relayVAA(t *testing.T, sequence uint64) []byte {
	t.Helper()
	r := vaa.Default()
	v, err := r.Create(vaa.TokenBridgeTransferWithRelay, vaa.Create{
		EmitterChain:   vaaLib.ChainIDEthereum,
		EmitterAddress: tokenBridgeEmitter,
		Sequence:       sequence,
		Payload: layout.Fields{
			"token": layout.Fields{"amount": uint64(500), "address": usdc, "chain": vaaLib.ChainIDEthereum},
			"to":    layout.Fields{"address": vaaLib.Address{31: 0xee}, "chain": vaaLib.ChainIDSolana},
			"from":  sender,
			"payload": layout.Fields{
				"targetRelayerFee":    uint64(10),
				"toNativeTokenAmount": uint64(5),
				"targetRecipient":     recipient,
			},
		},
	})
	require.NoError(t, err)
	raw, err := r.Serialize(v)
	require.NoError(t, err)
	return raw
}

func circleBurn(t *testing.T) []byte {
	t.Helper()
	m := &vaa.CircleMessage{
		SourceDomain:      0,
		DestinationDomain: 6,
		Nonce:             42,
		Sender:            vaaLib.Address{31: 0x11},
		Recipient:         vaaLib.Address{31: 0x22},
		BurnToken:         usdc,
		MintRecipient:     recipient,
		Amount:            uint256.NewInt(2_500_000),
		MessageSender:     sender,
	}
	raw, err := m.Serialize()
	require.NoError(t, err)
	return raw
}

func TestInitiateTransferBatchesParallelizable(t *testing.T) {
	h := newHarness(t)
	h.client.txs = []UnsignedTx{
		{Description: "a", Parallelizable: true},
		{Description: "b", Parallelizable: true},
		{Description: "c"},
		{Description: "d", Parallelizable: true},
	}
	tr, err := New(protocols.TokenBridge, manualDetails(), h.deps)
	require.NoError(t, err)

	txs, err := tr.InitiateTransfer(context.Background(), h.signer())
	require.NoError(t, err)
	require.Equal(t, []string{"build a", "build b", "build c", "sign a,b,c", "build d", "sign d"}, h.rec.events)
	require.Len(t, txs, 4)
	require.Equal(t, "0xa", txs[0].TxID)
	require.Equal(t, vaaLib.ChainIDEthereum, txs[0].Chain)
	require.Equal(t, SourceInitiated, tr.State())
}

func TestInitiateTransferSignsEachSequentialTx(t *testing.T) {
	h := newHarness(t)
	h.client.txs = []UnsignedTx{{Description: "approve"}, {Description: "transfer"}}
	tr, err := New(protocols.TokenBridge, manualDetails(), h.deps)
	require.NoError(t, err)

	_, err = tr.InitiateTransfer(context.Background(), h.signer())
	require.NoError(t, err)
	require.Equal(t, []string{"build approve", "sign approve", "build transfer", "sign transfer"}, h.rec.events)
}

func TestInitiateTransferTwiceFails(t *testing.T) {
	h := newHarness(t)
	h.client.txs = []UnsignedTx{{Description: "transfer"}}
	tr, err := New(protocols.TokenBridge, manualDetails(), h.deps)
	require.NoError(t, err)

	_, err = tr.InitiateTransfer(context.Background(), h.signer())
	require.NoError(t, err)

	_, err = tr.InitiateTransfer(context.Background(), h.signer())
	require.ErrorIs(t, err, ErrInvalidState)
	var se *StateError
	require.ErrorAs(t, err, &se)
	require.Equal(t, SourceInitiated, se.State)
	require.Equal(t, []string{"build transfer", "sign transfer"}, h.rec.events)
}

func TestInitiateTransferSignerFailure(t *testing.T) {
	h := newHarness(t)
	h.client.txs = []UnsignedTx{{Description: "transfer"}}
	tr, err := New(protocols.TokenBridge, manualDetails(), h.deps)
	require.NoError(t, err)

	signer := h.signer()
	signer.fail = errors.New("rejected")
	_, err = tr.InitiateTransfer(context.Background(), signer)
	require.ErrorContains(t, err, "rejected")
	require.Equal(t, Failed, tr.State())
}

func TestInitiateMessagelessTransfer(t *testing.T) {
	h := newHarness(t)
	h.client.txs = []UnsignedTx{{Description: "transfer"}}
	tr, err := New("Messageless", manualDetails(), h.deps)
	require.NoError(t, err)

	_, err = tr.InitiateTransfer(context.Background(), h.signer())
	require.NoError(t, err)
	require.Equal(t, SourceFinalized, tr.State())
}

func TestNewRejectsUnsupportedProtocol(t *testing.T) {
	h := newHarness(t)
	_, err := New(protocols.AutomaticCircleBridge, manualDetails(), h.deps)
	require.ErrorIs(t, err, protocols.ErrUnsupported)

	d := manualDetails()
	d.Amount = big.NewInt(0)
	_, err = New(protocols.TokenBridge, d, h.deps)
	require.Error(t, err)
}

func TestFetchAttestationFetchesEachIDOnce(t *testing.T) {
	h := newHarness(t)
	h.client.txs = []UnsignedTx{{Description: "transfer"}}
	v, raw := transferVAA(t, 9)
	h.parser.ids["0xtransfer"] = []AttestationID{WormholeMessageID(v.ID())}

	tr, err := New(protocols.TokenBridge, manualDetails(), h.deps)
	require.NoError(t, err)
	_, err = tr.InitiateTransfer(context.Background(), h.signer())
	require.NoError(t, err)

	_, err = tr.FetchAttestation(context.Background(), time.Second)
	require.ErrorIs(t, err, ErrAttestationTimeout)
	require.Equal(t, SourceInitiated, tr.State())
	require.Equal(t, 1, h.fetcher.vaaCalls)

	h.fetcher.vaas[v.ID().String()] = raw
	ids, err := tr.FetchAttestation(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, []AttestationID{WormholeMessageID(v.ID())}, ids)
	require.Equal(t, Attested, tr.State())
	require.Equal(t, 2, h.fetcher.vaaCalls)

	_, err = tr.FetchAttestation(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, h.fetcher.vaaCalls)
	require.Equal(t, 1, h.parser.calls)

	r := tr.Receipt()
	require.Len(t, r.Attestations, 1)
	require.Equal(t, v.Hash(), r.Attestations[0].VAA.Hash())
}

func TestFetchAttestationRequiresInitiated(t *testing.T) {
	h := newHarness(t)
	tr, err := New(protocols.TokenBridge, manualDetails(), h.deps)
	require.NoError(t, err)
	_, err = tr.FetchAttestation(context.Background(), time.Second)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteTransferBeforeAttestedFails(t *testing.T) {
	h := newHarness(t)
	h.client.txs = []UnsignedTx{{Description: "transfer"}}
	tr, err := New(protocols.TokenBridge, manualDetails(), h.deps)
	require.NoError(t, err)

	_, err = tr.CompleteTransfer(context.Background(), h.signer())
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = tr.InitiateTransfer(context.Background(), h.signer())
	require.NoError(t, err)
	_, err = tr.CompleteTransfer(context.Background(), h.signer())
	require.ErrorIs(t, err, ErrInvalidState)
	require.Empty(t, h.client.redeemed)
}

func TestCompleteManualTransfer(t *testing.T) {
	h := newHarness(t)
	v, raw := transferVAA(t, 3)
	tr, err := FromVAA(raw, h.deps)
	require.NoError(t, err)
	require.Equal(t, Attested, tr.State())
	require.Equal(t, protocols.TokenBridge, tr.Protocol())

	txs, err := tr.CompleteTransfer(context.Background(), h.signer())
	require.NoError(t, err)
	require.Equal(t, []TransactionID{{Chain: vaaLib.ChainIDSolana, TxID: "0xredeem"}}, txs)
	require.Equal(t, DestinationInitiated, tr.State())
	require.Len(t, h.client.redeemed, 1)
	require.Equal(t, v.Hash(), h.client.redeemed[0][0].VAA.Hash())
}

func TestCompleteAutomaticTransferFails(t *testing.T) {
	h := newHarness(t)
	tr, err := FromVAA(relayVAA(t, 4), h.deps)
	require.NoError(t, err)
	require.Equal(t, protocols.AutomaticTokenBridge, tr.Protocol())

	d := tr.Details()
	require.True(t, d.Automatic)
	require.Equal(t, recipient, d.To.Address)
	require.Equal(t, big.NewInt(5), d.NativeGas)
	require.Equal(t, sender, d.From.Address)

	_, err = tr.CompleteTransfer(context.Background(), h.signer())
	require.ErrorIs(t, err, ErrAutomaticTransfer)
}

func TestFromVAADetails(t *testing.T) {
	h := newHarness(t)
	_, raw := transferVAA(t, 5)
	tr, err := FromVAA(raw, h.deps)
	require.NoError(t, err)

	d := tr.Details()
	require.Equal(t, chains.TokenID{Chain: vaaLib.ChainIDEthereum, Address: usdc}, d.Token)
	require.Equal(t, big.NewInt(100), d.Amount)
	require.Equal(t, chains.ChainAddress{Chain: vaaLib.ChainIDSolana, Address: recipient}, d.To)
	require.False(t, d.Automatic)
}

func nttTransferVAA(t *testing.T, relayed bool) []byte {
	t.Helper()
	payload := layout.Fields{
		"sourceNttManager":    vaaLib.Address{31: 0x31},
		"recipientNttManager": vaaLib.Address{31: 0x32},
		"nttManagerPayload": layout.Fields{
			"id":     make([]byte, 32),
			"sender": sender,
			"payload": layout.Fields{
				"decimals":    uint64(8),
				"amount":      uint64(4200),
				"sourceToken": usdc,
				"to":          recipient,
				"toChain":     vaaLib.ChainIDSolana,
			},
		},
		"transceiverPayload": []byte{},
	}
	literal := vaa.NttWormholeTransfer
	if relayed {
		literal = vaa.NttWormholeTransferStandardRelayer
		payload = layout.Fields{
			"targetChain":            vaaLib.ChainIDSolana,
			"targetAddress":          vaaLib.Address{31: 0x33},
			"payload":                payload,
			"requestedReceiverValue": uint256.NewInt(0),
			"extraReceiverValue":     uint256.NewInt(0),
			"executionInfo":          []byte{},
			"refundChain":            vaaLib.ChainIDEthereum,
			"refundAddress":          sender,
			"refundDeliveryProvider": vaaLib.Address{31: 0x34},
			"sourceDeliveryProvider": vaaLib.Address{31: 0x34},
			"senderAddress":          vaaLib.Address{31: 0x31},
			"messageKeys":            []layout.Fields{},
		}
	}
	r := vaa.Default()
	v, err := r.Create(literal, vaa.Create{EmitterChain: vaaLib.ChainIDEthereum, Sequence: 8, Payload: payload})
	require.NoError(t, err)
	raw, err := r.Serialize(v)
	require.NoError(t, err)
	return raw
}

func TestFromVAANttDetails(t *testing.T) {
	h := newHarness(t)
	for relayed, protocol := range map[bool]protocols.Name{false: protocols.Ntt, true: protocols.AutomaticNtt} {
		tr, err := FromVAA(nttTransferVAA(t, relayed), h.deps)
		require.NoError(t, err)
		require.Equal(t, protocol, tr.Protocol())

		d := tr.Details()
		require.Equal(t, chains.TokenID{Chain: vaaLib.ChainIDEthereum, Address: usdc}, d.Token)
		require.Equal(t, big.NewInt(4200), d.Amount)
		require.Equal(t, chains.ChainAddress{Chain: vaaLib.ChainIDEthereum, Address: sender}, d.From)
		require.Equal(t, chains.ChainAddress{Chain: vaaLib.ChainIDSolana, Address: recipient}, d.To)
		require.Equal(t, relayed, d.Automatic)
	}
}

func TestFromVAAPorticoDetails(t *testing.T) {
	h := newHarness(t)
	flags, err := vaa.PorticoFlagSet{RecipientChain: vaaLib.ChainIDBase, BridgeNonce: 9}.Encode()
	require.NoError(t, err)
	finalToken := vaaLib.Address{31: 0x45}
	var trade []byte
	for _, part := range [][]byte{
		flags[:],
		finalToken[:],
		recipient[:],
		uint256.NewInt(700).PaddedBytes(32),
		uint256.NewInt(0).PaddedBytes(32),
		uint256.NewInt(3).PaddedBytes(32),
	} {
		trade = append(trade, part...)
	}
	r := vaa.Default()
	v, err := r.Create(vaa.TokenBridgeTransferWithPayload, vaa.Create{
		EmitterChain:   vaaLib.ChainIDEthereum,
		EmitterAddress: tokenBridgeEmitter,
		Sequence:       11,
		Payload: layout.Fields{
			"token": layout.Fields{"amount": uint64(700), "address": usdc, "chain": vaaLib.ChainIDEthereum},
			"to":    layout.Fields{"address": vaaLib.Address{31: 0x44}, "chain": vaaLib.ChainIDBase},
			"from":  sender,
			"payload": trade,
		},
	})
	require.NoError(t, err)
	raw, err := r.Serialize(v)
	require.NoError(t, err)

	tr, err := FromVAA(raw, h.deps)
	require.NoError(t, err)
	require.Equal(t, protocols.Portico, tr.Protocol())
	d := tr.Details()
	require.Equal(t, big.NewInt(700), d.Amount)
	require.Equal(t, chains.ChainAddress{Chain: vaaLib.ChainIDEthereum, Address: sender}, d.From)
	require.Equal(t, chains.ChainAddress{Chain: vaaLib.ChainIDBase, Address: recipient}, d.To)
	require.True(t, d.Automatic)
}

func TestFromMessageID(t *testing.T) {
	h := newHarness(t)
	v, raw := transferVAA(t, 6)

	tr, err := FromMessageID(context.Background(), v.ID(), h.deps, time.Second)
	require.NoError(t, err)
	require.Equal(t, SourceFinalized, tr.State())

	h.fetcher.vaas[v.ID().String()] = raw
	_, err = tr.FetchAttestation(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, Attested, tr.State())
	require.Equal(t, protocols.TokenBridge, tr.Protocol())
	require.Equal(t, big.NewInt(100), tr.Details().Amount)

	again, err := FromMessageID(context.Background(), v.ID(), h.deps, time.Second)
	require.NoError(t, err)
	require.Equal(t, Attested, again.State())
}

func TestFromTransactionCircleBurn(t *testing.T) {
	h := newHarness(t)
	burn := circleBurn(t)
	id := NewCircleMessageID(burn)
	h.parser.ids["0xburn"] = []AttestationID{id}

	tr, err := FromTransaction(context.Background(), vaaLib.ChainIDEthereum, "0xburn", h.deps, time.Second)
	require.NoError(t, err)
	require.Equal(t, SourceInitiated, tr.State())
	require.Equal(t, protocols.CircleBridge, tr.Protocol())
	require.Zero(t, h.fetcher.vaaCalls)

	r := tr.Receipt()
	require.Equal(t, []AttestationID{id}, r.AttestationIDs)
	require.Equal(t, []TransactionID{{Chain: vaaLib.ChainIDEthereum, TxID: "0xburn"}}, r.OriginTxs)
	require.Equal(t, vaaLib.ChainIDBase, r.Details.To.Chain)
	require.Equal(t, recipient, r.Details.To.Address)
	require.Equal(t, big.NewInt(2_500_000), r.Details.Amount)
	require.Equal(t, sender, r.Details.From.Address)

	h.fetcher.circle[id.Hash] = []byte{0x01}
	_, err = tr.FetchAttestation(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, Attested, tr.State())
	require.Zero(t, h.fetcher.vaaCalls)
	require.Equal(t, 1, h.fetcher.circleCalls)
	require.Equal(t, uint64(42), tr.Receipt().Attestations[0].Circle.Nonce)
}

func TestFetchAttestationDerivesCircleMessage(t *testing.T) {
	h := newHarness(t)
	burn := circleBurn(t)
	full := NewCircleMessageID(burn)
	h.parser.ids["0xburn"] = []AttestationID{full}

	tr := newTransfer(protocols.CircleBridge, manualDetails(), h.deps, SourceInitiated)
	tr.originTxs = []TransactionID{{Chain: vaaLib.ChainIDEthereum, TxID: "0xburn"}}
	tr.ids = []AttestationID{CircleMessageID{Hash: full.Hash}}
	h.fetcher.circle[full.Hash] = []byte{0x02}

	ids, err := tr.FetchAttestation(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, burn, ids[0].(CircleMessageID).Message)
}

func TestFromTransactionWithoutMessages(t *testing.T) {
	h := newHarness(t)
	_, err := FromTransaction(context.Background(), vaaLib.ChainIDEthereum, "0xnothing", h.deps, time.Second)
	require.ErrorIs(t, err, ErrNoMessages)
}

func collect(t *testing.T, seq iter.Seq2[Receipt, error]) []State {
	t.Helper()
	var states []State
	for r, err := range seq {
		require.NoError(t, err)
		states = append(states, r.State)
	}
	return states
}

func TestTrackManualTransfer(t *testing.T) {
	h := newHarness(t)
	h.client.txs = []UnsignedTx{{Description: "transfer"}}
	v, raw := transferVAA(t, 12)
	h.parser.ids["0xtransfer"] = []AttestationID{WormholeMessageID(v.ID())}

	tr, err := New(protocols.TokenBridge, manualDetails(), h.deps)
	require.NoError(t, err)
	require.Empty(t, collect(t, tr.Track(context.Background(), time.Second)))

	_, err = tr.InitiateTransfer(context.Background(), h.signer())
	require.NoError(t, err)
	require.Empty(t, collect(t, tr.Track(context.Background(), time.Second)))

	h.fetcher.vaas[v.ID().String()] = raw
	require.Equal(t, []State{Attested}, collect(t, tr.Track(context.Background(), time.Second)))

	_, err = tr.CompleteTransfer(context.Background(), h.signer())
	require.NoError(t, err)
	h.client.completed = true
	require.Equal(t, []State{DestinationFinalized}, collect(t, tr.Track(context.Background(), time.Second)))
	require.Empty(t, collect(t, tr.Track(context.Background(), time.Second)))
}

func TestTrackAutomaticTransfer(t *testing.T) {
	h := newHarness(t)
	tr, err := FromVAA(relayVAA(t, 13), h.deps)
	require.NoError(t, err)

	require.Empty(t, collect(t, tr.Track(context.Background(), time.Second)))

	h.fetcher.delivery = &attestation.DeliveryStatus{Status: "success", ToTxHash: "0xdelivered"}
	h.client.completed = true
	states := collect(t, tr.Track(context.Background(), time.Second))
	require.Equal(t, []State{DestinationInitiated, DestinationFinalized}, states)
	require.Equal(t, []TransactionID{{Chain: vaaLib.ChainIDSolana, TxID: "0xdelivered"}}, tr.Receipt().DestinationTxs)
}

func TestTrackFailedDelivery(t *testing.T) {
	h := newHarness(t)
	tr, err := FromVAA(relayVAA(t, 14), h.deps)
	require.NoError(t, err)

	h.fetcher.delivery = &attestation.DeliveryStatus{Status: "failed"}
	require.Equal(t, []State{Failed}, collect(t, tr.Track(context.Background(), time.Second)))
}

func TestTrackStopsWhenConsumerStops(t *testing.T) {
	h := newHarness(t)
	tr, err := FromVAA(relayVAA(t, 15), h.deps)
	require.NoError(t, err)
	h.fetcher.delivery = &attestation.DeliveryStatus{Status: "success"}
	h.client.completed = true

	for r := range tr.Track(context.Background(), time.Second) {
		require.Equal(t, DestinationInitiated, r.State)
		break
	}
	require.Equal(t, DestinationInitiated, tr.State())
}

func TestStateOrdering(t *testing.T) {
	require.True(t, Attested.AtLeast(SourceInitiated))
	require.False(t, SourceInitiated.AtLeast(Attested))
	require.False(t, Failed.AtLeast(Created))
	require.Equal(t, "DestinationFinalized", DestinationFinalized.String())
}
