package attestation

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	publicrpcv1 "github.com/certusone/wormhole/node/pkg/proto/publicrpc/v1"
	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/vaa"
)

const (
	subscribeRetries    = 5
	subscribeRetryDelay = 2 * time.Second
	streamRetryDelay    = 5 * time.Second
)

// Handler receives every VAA the spy streams.
type Handler func(ctx context.Context, v *vaa.VAA, raw []byte)

// SpyWatcher subscribes to a guardian spy's signed VAA stream and keeps the
// most recent VAAs in memory, keyed by message id.
type SpyWatcher struct {
	endpoint string
	emitters []chains.ChainAddress
	registry *vaa.Registry
	cache    *lru.Cache
	logger   *zap.Logger
}

// NewSpyWatcher creates a watcher for the spy at endpoint. When emitters are
// given, the spy only streams VAAs they emitted.
func NewSpyWatcher(logger *zap.Logger, endpoint string, cacheSize int, emitters ...chains.ChainAddress) (*SpyWatcher, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create VAA cache: %w", err)
	}
	return &SpyWatcher{
		endpoint: endpoint,
		emitters: emitters,
		registry: vaa.Default(),
		cache:    cache,
		logger:   logger.With(zap.String("component", "SpyWatcher")),
	}, nil
}

// Lookup returns a cached signed VAA.
func (w *SpyWatcher) Lookup(id vaa.MessageID) ([]byte, bool) {
	v, ok := w.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (w *SpyWatcher) request() *spyv1.SubscribeSignedVAARequest {
	req := &spyv1.SubscribeSignedVAARequest{}
	for _, e := range w.emitters {
		req.Filters = append(req.Filters, &spyv1.FilterEntry{
			Filter: &spyv1.FilterEntry_EmitterFilter{
				EmitterFilter: &spyv1.EmitterFilter{
					ChainId:        publicrpcv1.ChainID(e.Chain),
					EmitterAddress: hex.EncodeToString(e.Address[:]),
				},
			},
		})
	}
	return req
}

type subscription struct {
	conn   *grpc.ClientConn
	stream spyv1.SpyRPCService_SubscribeSignedVAAClient
}

// subscribe opens a fresh connection and stream, retrying a few times.
func (w *SpyWatcher) subscribe(ctx context.Context) (*subscription, error) {
	w.logger.Debug("Subscribing to signed VAAs", zap.String("endpoint", w.endpoint))

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(subscribeRetryDelay), subscribeRetries-1), ctx)
	notify := func(err error, next time.Duration) {
		w.logger.Warn("Subscribe attempt failed", zap.Error(err), zap.Duration("retryIn", next))
	}
	sub, err := backoff.RetryNotifyWithData(func() (*subscription, error) {
		conn, err := grpc.NewClient(w.endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to connect to spy: %w", err))
		}
		stream, err := spyv1.NewSpyRPCServiceClient(conn).SubscribeSignedVAA(ctx, w.request())
		if err != nil {
			conn.Close()
			return nil, err
		}
		return &subscription{conn: conn, stream: stream}, nil
	}, b, notify)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe after %d attempts: %w", subscribeRetries, err)
	}
	return sub, nil
}

// Run streams VAAs until ctx is done, caching each one and passing it to
// handler when handler is not nil. A broken stream is re-subscribed.
func (w *SpyWatcher) Run(ctx context.Context, handler Handler) error {
	sub, err := w.subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if sub != nil {
			sub.conn.Close()
		}
	}()

	w.logger.Info("Listening for VAAs", zap.String("endpoint", w.endpoint), zap.Int("emitterFilters", len(w.emitters)))

	for {
		resp, err := sub.stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Spy watcher stopped")
				return nil
			}
			w.logger.Warn("Stream error, resubscribing", zap.Error(err), zap.Duration("retryIn", streamRetryDelay))
			sub.conn.Close()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(streamRetryDelay):
			}
			if sub, err = w.subscribe(ctx); err != nil {
				return fmt.Errorf("subscribe to VAA stream after retry: %w", err)
			}
			continue
		}

		v, ok := w.observe(resp.VaaBytes)
		if ok && handler != nil {
			handler(ctx, v, resp.VaaBytes)
		}
	}
}

func (w *SpyWatcher) observe(raw []byte) (*vaa.VAA, bool) {
	v, err := w.registry.Deserialize(vaa.RawLiteral, raw)
	if err != nil {
		w.logger.Error("Failed to parse VAA", zap.Error(err))
		return nil, false
	}
	w.cache.Add(v.ID(), append([]byte(nil), raw...))
	w.logger.Debug("Observed VAA",
		zap.Uint16("chain", uint16(v.EmitterChain)),
		zap.String("emitter", hex.EncodeToString(v.EmitterAddress[:])),
		zap.Uint64("sequence", v.Sequence))
	return v, true
}
