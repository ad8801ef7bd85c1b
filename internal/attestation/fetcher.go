package attestation

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/vaa"
)

// DefaultInterval is the polling interval of a Fetcher.
const DefaultInterval = 2 * time.Second

// VAASource returns signed VAAs that are already at hand, such as those a
// SpyWatcher has cached.
type VAASource interface {
	Lookup(id vaa.MessageID) ([]byte, bool)
}

// Fetcher polls the attestation network for VAAs, Circle attestations and
// relay delivery status.
type Fetcher struct {
	api      *APIClient
	circle   *CircleClient
	spy      VAASource
	interval time.Duration
	logger   *zap.Logger
}

// NewFetcher creates a fetcher. circle and spy may be nil.
func NewFetcher(logger *zap.Logger, api *APIClient, circle *CircleClient, spy VAASource) *Fetcher {
	return &Fetcher{
		api:      api,
		circle:   circle,
		spy:      spy,
		interval: DefaultInterval,
		logger:   logger.With(zap.String("component", "Fetcher")),
	}
}

// WithInterval returns a copy of f polling every interval.
func (f *Fetcher) WithInterval(interval time.Duration) *Fetcher {
	out := *f
	out.interval = interval
	return &out
}

// FetchVAA polls for the signed VAA of id, consulting the spy cache before
// the API on every attempt.
func (f *Fetcher) FetchVAA(ctx context.Context, id vaa.MessageID, timeout time.Duration) ([]byte, bool, error) {
	return Retry(ctx, f.logger, "fetch VAA "+id.String(), func(ctx context.Context) ([]byte, bool, error) {
		if f.spy != nil {
			if raw, ok := f.spy.Lookup(id); ok {
				return raw, true, nil
			}
		}
		if f.api == nil {
			return nil, false, nil
		}
		return f.api.GetVAA(ctx, id)
	}, f.interval, timeout)
}

// FetchCircleAttestation polls for the attestation of a CCTP burn message.
func (f *Fetcher) FetchCircleAttestation(ctx context.Context, messageHash common.Hash, timeout time.Duration) ([]byte, bool, error) {
	if f.circle == nil {
		return nil, false, nil
	}
	return Retry(ctx, f.logger, "fetch Circle attestation "+messageHash.Hex(), func(ctx context.Context) ([]byte, bool, error) {
		return f.circle.GetAttestation(ctx, messageHash)
	}, f.interval, timeout)
}

// FetchDeliveryStatus polls for the relay status of an automatic transfer.
// A status is reported as soon as the relay has finished, delivered or not.
func (f *Fetcher) FetchDeliveryStatus(ctx context.Context, id vaa.MessageID, timeout time.Duration) (*DeliveryStatus, bool, error) {
	if f.api == nil {
		return nil, false, nil
	}
	return Retry(ctx, f.logger, "fetch delivery status "+id.String(), func(ctx context.Context) (*DeliveryStatus, bool, error) {
		s, found, err := f.api.GetDeliveryStatus(ctx, id)
		if err != nil || !found {
			return nil, false, err
		}
		if !s.Delivered() && !s.Failed() {
			return nil, false, nil
		}
		return s, true, nil
	}, f.interval, timeout)
}

// FetchDestinationTx polls for the destination transaction of id.
func (f *Fetcher) FetchDestinationTx(ctx context.Context, id vaa.MessageID, timeout time.Duration) (*TransactionStatus, bool, error) {
	if f.api == nil {
		return nil, false, nil
	}
	return Retry(ctx, f.logger, "fetch destination tx "+id.String(), func(ctx context.Context) (*TransactionStatus, bool, error) {
		return f.api.GetTransactionStatus(ctx, id)
	}, f.interval, timeout)
}
