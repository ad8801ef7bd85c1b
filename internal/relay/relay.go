// Package relay redeems token bridge transfers as soon as their VAAs appear
// on a guardian spy stream.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/protocols"
	"github.com/wormhole-demo/connect/internal/transfer"
	"github.com/wormhole-demo/connect/internal/vaa"
)

const (
	processTimeout = 5 * time.Minute
	seenCacheSize  = 10000
)

// ErrSkipped marks a VAA the relayer does not redeem.
var ErrSkipped = errors.New("skipped")

// Source streams signed VAAs. *attestation.SpyWatcher implements it.
type Source interface {
	Run(ctx context.Context, handler attestation.Handler) error
}

// Relayer completes manual token bridge transfers bound for one chain.
type Relayer struct {
	source      Source
	deps        transfer.Deps
	signer      transfer.Signer
	destination vaaLib.ChainID
	seen        *lru.Cache
	logger      *zap.Logger
}

// New creates a relayer that redeems with signer on signer's chain.
func New(logger *zap.Logger, source Source, deps transfer.Deps, signer transfer.Signer) (*Relayer, error) {
	if deps.Protocols == nil {
		return nil, fmt.Errorf("relayer needs a protocol registry")
	}
	seen, err := lru.New(seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen cache: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Relayer{
		source:      source,
		deps:        deps,
		signer:      signer,
		destination: signer.Chain(),
		seen:        seen,
		logger:      logger.With(zap.String("component", "Relayer"), zap.Stringer("destination", signer.Chain())),
	}, nil
}

// Start processes VAAs from the source until ctx is done. In-flight
// redemptions are cancelled and awaited before it returns.
func (r *Relayer) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	processingCtx, cancelProcessing := context.WithCancel(context.Background())
	defer cancelProcessing()

	r.logger.Info("Starting relayer")
	err := r.source.Run(ctx, func(_ context.Context, _ *vaa.VAA, raw []byte) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.processVAA(processingCtx, raw)
		}()
	})

	cancelProcessing()
	r.logger.Info("Waiting for all VAA processing to complete")
	wg.Wait()
	r.logger.Info("Shutdown complete")
	return err
}

func (r *Relayer) processVAA(ctx context.Context, raw []byte) {
	select {
	case <-ctx.Done():
		r.logger.Debug("Processing cancelled for VAA")
		return
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	txs, err := r.Process(ctx, raw)
	switch {
	case errors.Is(err, ErrSkipped):
		r.logger.Debug("VAA skipped", zap.Error(err))
	case err != nil:
		r.logger.Error("Error processing VAA", zap.Error(err))
	default:
		r.logger.Info("Transfer redeemed", zap.Int("transactions", len(txs)))
	}
}

// Process redeems the transfer carried by a signed VAA. It returns an error
// wrapping ErrSkipped for VAAs that are not manual token bridge transfers to
// the destination chain, were seen before, or are already redeemed.
func (r *Relayer) Process(ctx context.Context, raw []byte) ([]transfer.TransactionID, error) {
	t, err := transfer.FromVAA(raw, r.deps)
	if errors.Is(err, transfer.ErrNotTransfer) {
		return nil, fmt.Errorf("%w: %v", ErrSkipped, err)
	}
	if err != nil {
		return nil, err
	}
	receipt := t.Receipt()
	id := receipt.AttestationIDs[0].String()
	logger := r.logger.With(zap.String("id", id), zap.String("protocol", string(t.Protocol())))

	d := t.Details()
	switch {
	case t.Protocol() != protocols.TokenBridge:
		return nil, fmt.Errorf("%w: %s is a %s transfer", ErrSkipped, id, t.Protocol())
	case literal(receipt) != vaa.TokenBridgeTransfer:
		// Payload transfers can only be redeemed by their recipient.
		return nil, fmt.Errorf("%w: %s is a %s", ErrSkipped, id, literal(receipt))
	case d.To.Chain != r.destination:
		return nil, fmt.Errorf("%w: %s is bound for %s", ErrSkipped, id, d.To.Chain)
	}
	if seen, _ := r.seen.ContainsOrAdd(id, struct{}{}); seen {
		return nil, fmt.Errorf("%w: %s already handled", ErrSkipped, id)
	}

	dst, err := protocols.Client[transfer.DestinationClient](ctx, r.deps.Protocols, r.destination, t.Protocol())
	if err != nil {
		r.seen.Remove(id)
		return nil, err
	}
	done, err := dst.IsTransferCompleted(ctx, receipt.Attestations)
	if err != nil {
		r.seen.Remove(id)
		return nil, fmt.Errorf("check redemption of %s: %w", id, err)
	}
	if done {
		return nil, fmt.Errorf("%w: %s already redeemed", ErrSkipped, id)
	}

	logger.Info("Redeeming transfer", zap.Stringer("token", d.Token), zap.Stringer("amount", d.Amount), zap.Stringer("recipient", d.To))
	txs, err := t.CompleteTransfer(ctx, r.signer)
	if err != nil {
		r.seen.Remove(id)
		return txs, err
	}
	return txs, nil
}

func literal(receipt transfer.Receipt) string {
	for _, a := range receipt.Attestations {
		if a.VAA != nil {
			return a.VAA.Literal()
		}
	}
	return ""
}
