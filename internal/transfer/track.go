package transfer

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/protocols"
	"github.com/wormhole-demo/connect/internal/vaa"
)

// Track performs the one check appropriate to the current state, yields a
// receipt whenever the transfer advances and stops once no further progress
// is observable. It may be called again later to resume.
func (t *Transfer) Track(ctx context.Context, timeout time.Duration) iter.Seq2[Receipt, error] {
	return func(yield func(Receipt, error) bool) {
		for {
			before := t.state
			err := t.step(ctx, timeout)
			if err != nil {
				yield(t.Receipt(), err)
				return
			}
			if t.state == before {
				return
			}
			if !yield(t.Receipt(), nil) {
				return
			}
		}
	}
}

func (t *Transfer) step(ctx context.Context, timeout time.Duration) error {
	switch t.state {
	case SourceInitiated, SourceFinalized:
		_, err := t.FetchAttestation(ctx, timeout)
		if isTimeout(err) {
			t.logger.Debug("Attestation still pending", zap.Error(err))
			return nil
		}
		return err

	case Attested:
		return t.discoverDestination(ctx, timeout)

	case DestinationInitiated:
		done, err := t.pollCompleted(ctx, timeout)
		if err != nil || !done {
			return err
		}
		t.advance(DestinationFinalized)
	}
	return nil
}

// discoverDestination asks the relay network about automatic transfers for
// half the budget, then checks the destination chain once.
func (t *Transfer) discoverDestination(ctx context.Context, timeout time.Duration) error {
	if t.details.Automatic {
		if id, ok := t.wormholeID(); ok {
			status, found, err := t.deps.Fetcher.FetchDeliveryStatus(ctx, id, timeout/2)
			if err != nil {
				return err
			}
			if found {
				t.logger.Debug("Delivery status", zap.String("status", status.Status), zap.String("detail", status.Detail))
				if status.Failed() {
					t.advance(Failed)
					return nil
				}
				if status.ToTxHash != "" {
					t.destinationTxs = append(t.destinationTxs, TransactionID{Chain: t.details.To.Chain, TxID: status.ToTxHash})
				}
				t.advance(DestinationInitiated)
				return nil
			}
		}
	}

	done, err := t.isCompleted(ctx)
	if err != nil || !done {
		return err
	}
	t.advance(DestinationFinalized)
	return nil
}

func (t *Transfer) wormholeID() (vaa.MessageID, bool) {
	for _, id := range t.ids {
		if w, ok := id.(WormholeMessageID); ok {
			return vaa.MessageID(w), true
		}
	}
	return vaa.MessageID{}, false
}

func (t *Transfer) isCompleted(ctx context.Context) (bool, error) {
	dst, err := protocols.Client[DestinationClient](ctx, t.deps.Protocols, t.details.To.Chain, t.protocol)
	if err != nil {
		return false, err
	}
	return dst.IsTransferCompleted(ctx, t.Receipt().Attestations)
}

func (t *Transfer) pollCompleted(ctx context.Context, timeout time.Duration) (bool, error) {
	_, found, err := attestation.Retry(ctx, t.logger, "check redemption", func(ctx context.Context) (struct{}, bool, error) {
		done, err := t.isCompleted(ctx)
		return struct{}{}, done, err
	}, t.deps.PollInterval, timeout)
	return found, err
}
