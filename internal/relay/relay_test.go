package relay

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/layout"
	"github.com/wormhole-demo/connect/internal/protocols"
	"github.com/wormhole-demo/connect/internal/transfer"
	"github.com/wormhole-demo/connect/internal/vaa"
)

var (
	tokenBridgeEmitter = vaaLib.Address{31: 0x01}
	usdc               = vaaLib.Address{31: 0xcc}
	recipient          = vaaLib.Address{31: 0xbb}
)

type fakeDestination struct {
	mu        sync.Mutex
	completed bool
	checkErr  error
	redeemed  int
}

func (d *fakeDestination) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed, d.checkErr
}

func (d *fakeDestination) Redeem(ctx context.Context, to chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		d.mu.Lock()
		d.redeemed++
		d.mu.Unlock()
		yield(transfer.UnsignedTx{Chain: to.Chain, Description: "redeem"}, nil)
	}
}

type fakeSigner struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func (s *fakeSigner) Chain() vaaLib.ChainID   { return vaaLib.ChainIDSolana }
func (s *fakeSigner) Address() vaaLib.Address { return recipient }

func (s *fakeSigner) SignAndSend(ctx context.Context, txs []transfer.UnsignedTx) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.sent = append(s.sent, tx.Description)
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	return []string{"5sig"}, nil
}

// fakeSource emits its VAAs, then blocks until ctx is done.
type fakeSource struct {
	raws [][]byte
}

func (s *fakeSource) Run(ctx context.Context, handler attestation.Handler) error {
	r := vaa.Default()
	for _, raw := range s.raws {
		v, err := r.Deserialize(vaa.RawLiteral, raw)
		if err != nil {
			return err
		}
		handler(ctx, v, raw)
	}
	<-ctx.Done()
	return nil
}

func transferVAA(t *testing.T, literal string, to vaaLib.ChainID, sequence uint64) []byte {
	t.Helper()
	payload := layout.Fields{
		"token": layout.Fields{"amount": uint64(100), "address": usdc, "chain": vaaLib.ChainIDEthereum},
		"to":    layout.Fields{"address": recipient, "chain": to},
		"fee":   uint64(0),
	}
	switch literal {
	case vaa.TokenBridgeTransferWithPayload:
		payload = layout.Fields{
			"token":   layout.Fields{"amount": uint64(100), "address": usdc, "chain": vaaLib.ChainIDEthereum},
			"to":      layout.Fields{"address": recipient, "chain": to},
			"from":    vaaLib.Address{31: 0xaa},
			"payload": []byte("memo"),
		}
	case vaa.TokenBridgeTransferWithRelay:
		payload = layout.Fields{
			"token": layout.Fields{"amount": uint64(100), "address": usdc, "chain": vaaLib.ChainIDEthereum},
			"to":    layout.Fields{"address": vaaLib.Address{31: 0xee}, "chain": to},
			"from":  vaaLib.Address{31: 0xaa},
			"payload": layout.Fields{
				"targetRelayerFee":    uint64(1),
				"toNativeTokenAmount": uint64(0),
				"targetRecipient":     recipient,
			},
		}
	}
	r := vaa.Default()
	v, err := r.Create(literal, vaa.Create{
		EmitterChain:   vaaLib.ChainIDEthereum,
		EmitterAddress: tokenBridgeEmitter,
		Sequence:       sequence,
		Payload:        payload,
	})
	require.NoError(t, err)
	raw, err := r.Serialize(v)
	require.NoError(t, err)
	return raw
}

func newTestRelayer(t *testing.T, source Source, dst *fakeDestination, signer *fakeSigner) *Relayer {
	t.Helper()
	b := protocols.NewBuilder()
	require.NoError(t, b.Register(chains.Solana, protocols.TokenBridge, func(ctx context.Context, chain vaaLib.ChainID) (any, error) {
		return dst, nil
	}))
	r, err := New(zap.NewNop(), source, transfer.Deps{Protocols: b.Build(), Network: chains.Mainnet}, signer)
	require.NoError(t, err)
	return r
}

func TestProcessRedeemsTransfer(t *testing.T) {
	dst := &fakeDestination{}
	signer := &fakeSigner{}
	r := newTestRelayer(t, nil, dst, signer)

	txs, err := r.Process(context.Background(), transferVAA(t, vaa.TokenBridgeTransfer, vaaLib.ChainIDSolana, 1))
	require.NoError(t, err)
	require.Equal(t, []transfer.TransactionID{{Chain: vaaLib.ChainIDSolana, TxID: "5sig"}}, txs)
	require.Equal(t, 1, dst.redeemed)
	require.Equal(t, []string{"redeem"}, signer.sent)

	_, err = r.Process(context.Background(), transferVAA(t, vaa.TokenBridgeTransfer, vaaLib.ChainIDSolana, 1))
	require.ErrorIs(t, err, ErrSkipped)
	require.Equal(t, 1, dst.redeemed)
}

func TestProcessSkips(t *testing.T) {
	dst := &fakeDestination{}
	r := newTestRelayer(t, nil, dst, &fakeSigner{})
	ctx := context.Background()

	upgrade, err := vaa.Default().Create(vaa.RawLiteral, vaa.Create{EmitterChain: vaaLib.ChainIDSolana, RawPayload: []byte{1, 2, 3}})
	require.NoError(t, err)
	raw, err := vaa.Default().Serialize(upgrade)
	require.NoError(t, err)

	for name, raw := range map[string][]byte{
		"not a transfer":    raw,
		"other destination": transferVAA(t, vaa.TokenBridgeTransfer, vaaLib.ChainIDArbitrum, 2),
		"automatic":         transferVAA(t, vaa.TokenBridgeTransferWithRelay, vaaLib.ChainIDSolana, 3),
		"with payload":      transferVAA(t, vaa.TokenBridgeTransferWithPayload, vaaLib.ChainIDSolana, 6),
	} {
		_, err := r.Process(ctx, raw)
		require.ErrorIs(t, err, ErrSkipped, name)
	}

	dst.completed = true
	_, err = r.Process(ctx, transferVAA(t, vaa.TokenBridgeTransfer, vaaLib.ChainIDSolana, 4))
	require.ErrorIs(t, err, ErrSkipped)
	require.Zero(t, dst.redeemed)

	_, err = r.Process(ctx, []byte{0x01})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrSkipped))
}

func TestProcessRetriesAfterFailedCheck(t *testing.T) {
	dst := &fakeDestination{checkErr: errors.New("rpc down")}
	r := newTestRelayer(t, nil, dst, &fakeSigner{})
	raw := transferVAA(t, vaa.TokenBridgeTransfer, vaaLib.ChainIDSolana, 5)

	_, err := r.Process(context.Background(), raw)
	require.ErrorContains(t, err, "rpc down")

	dst.checkErr = nil
	_, err = r.Process(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 1, dst.redeemed)
}

func TestStartRedeemsStreamedVAAs(t *testing.T) {
	done := make(chan struct{})
	dst := &fakeDestination{}
	signer := &fakeSigner{done: done}
	source := &fakeSource{raws: [][]byte{
		transferVAA(t, vaa.TokenBridgeTransfer, vaaLib.ChainIDArbitrum, 10),
		transferVAA(t, vaa.TokenBridgeTransfer, vaaLib.ChainIDSolana, 11),
	}}
	r := newTestRelayer(t, source, dst, signer)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("transfer was not redeemed")
	}
	cancel()
	require.NoError(t, <-errc)
	require.Equal(t, 1, dst.redeemed)
}

func TestNewNeedsRegistry(t *testing.T) {
	_, err := New(zap.NewNop(), nil, transfer.Deps{}, &fakeSigner{})
	require.Error(t, err)
}
