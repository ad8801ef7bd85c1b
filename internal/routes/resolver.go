package routes

import (
	"context"

	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/protocols"
)

// Route names.
const (
	AutomaticNtt         = "AutomaticNtt"
	ManualNtt            = "ManualNtt"
	AutomaticCCTP        = "AutomaticCCTP"
	ManualCCTP           = "ManualCCTP"
	AutomaticTokenBridge = "AutomaticTokenBridge"
	ManualTokenBridge    = "ManualTokenBridge"
	Portico              = "Portico"
)

// Resolver finds the routes able to serve a request, in priority order.
type Resolver struct {
	routes []*Route
	logger *zap.Logger
}

func NewResolver(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c := &cfg
	return &Resolver{
		routes: []*Route{
			newRoute(c, AutomaticNtt, protocols.AutomaticNtt, true, false),
			newRoute(c, ManualNtt, protocols.Ntt, false, false),
			newRoute(c, AutomaticCCTP, protocols.AutomaticCircleBridge, true, true),
			newRoute(c, ManualCCTP, protocols.CircleBridge, false, false),
			newRoute(c, AutomaticTokenBridge, protocols.AutomaticTokenBridge, true, true),
			newRoute(c, ManualTokenBridge, protocols.TokenBridge, false, false),
			newRoute(c, Portico, protocols.Portico, true, false),
		},
		logger: cfg.Logger.With(zap.String("component", "Resolver")),
	}
}

// Routes returns every route in priority order.
func (r *Resolver) Routes() []*Route {
	return append([]*Route(nil), r.routes...)
}

// Route returns the route called name.
func (r *Resolver) Route(name string) (*Route, bool) {
	for _, rt := range r.routes {
		if rt.Name == name {
			return rt, true
		}
	}
	return nil, false
}

// Find returns the routes that support req and are available now.
func (r *Resolver) Find(ctx context.Context, req Request) []*Route {
	var out []*Route
	for _, rt := range r.routes {
		if !rt.IsSupported(req) {
			continue
		}
		if !rt.IsAvailable(ctx, req) {
			continue
		}
		out = append(out, rt)
	}
	r.logger.Debug("Found routes", zap.Int("count", len(out)), zap.Stringer("from", req.From.Chain), zap.Stringer("to", req.To.Chain))
	return out
}
