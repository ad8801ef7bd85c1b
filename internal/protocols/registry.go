// Package protocols maps (platform, protocol) pairs to client factories. It is
// the seam through which chain adapters plug into the engine.
package protocols

import (
	"context"
	"errors"
	"fmt"
	"sort"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/chains"
)

var (
	ErrDuplicateProtocol = errors.New("protocol already registered")
	ErrUnsupported       = errors.New("protocol not supported")
)

// Name is a protocol name.
type Name string

const (
	WormholeCore          Name = "WormholeCore"
	TokenBridge           Name = "TokenBridge"
	AutomaticTokenBridge  Name = "AutomaticTokenBridge"
	CircleBridge          Name = "CircleBridge"
	AutomaticCircleBridge Name = "AutomaticCircleBridge"
	Ntt                   Name = "Ntt"
	AutomaticNtt          Name = "AutomaticNtt"
	Portico               Name = "Portico"
)

// Factory builds a protocol client for chain.
type Factory func(ctx context.Context, chain vaaLib.ChainID) (any, error)

type key struct {
	platform chains.Platform
	protocol Name
}

// Builder collects factories before they are frozen into a Registry.
type Builder struct {
	factories map[key]Factory
}

func NewBuilder() *Builder {
	return &Builder{factories: make(map[key]Factory)}
}

// Register adds a factory. Registering the same pair twice is an error.
func (b *Builder) Register(platform chains.Platform, protocol Name, f Factory) error {
	k := key{platform, protocol}
	if _, ok := b.factories[k]; ok {
		return fmt.Errorf("%w: %s on %s", ErrDuplicateProtocol, protocol, platform)
	}
	b.factories[k] = f
	return nil
}

// MustRegister is Register for wiring code where a duplicate is a build defect.
func (b *Builder) MustRegister(platform chains.Platform, protocol Name, f Factory) {
	if err := b.Register(platform, protocol, f); err != nil {
		panic(err)
	}
}

// Build freezes the registered factories.
func (b *Builder) Build() *Registry {
	r := &Registry{factories: make(map[key]Factory, len(b.factories))}
	for k, f := range b.factories {
		r.factories[k] = f
	}
	return r
}

// Registry is a read-only factory table, safe for concurrent use.
type Registry struct {
	factories map[key]Factory
}

// Has reports whether protocol is available on platform.
func (r *Registry) Has(platform chains.Platform, protocol Name) bool {
	_, ok := r.factories[key{platform, protocol}]
	return ok
}

// Get returns the factory for protocol on platform.
func (r *Registry) Get(platform chains.Platform, protocol Name) (Factory, error) {
	f, ok := r.factories[key{platform, protocol}]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupported, protocol, platform)
	}
	return f, nil
}

// Protocols lists the protocols registered for platform, sorted by name.
func (r *Registry) Protocols(platform chains.Platform) []Name {
	var out []Name
	for k := range r.factories {
		if k.platform == platform {
			out = append(out, k.protocol)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supports reports whether chain's platform registers protocol.
func (r *Registry) Supports(chain vaaLib.ChainID, protocol Name) bool {
	p, err := chains.PlatformOf(chain)
	return err == nil && r.Has(p, protocol)
}

// Client instantiates protocol for chain and asserts it implements T.
func Client[T any](ctx context.Context, r *Registry, chain vaaLib.ChainID, protocol Name) (T, error) {
	var zero T
	p, err := chains.PlatformOf(chain)
	if err != nil {
		return zero, err
	}
	f, err := r.Get(p, protocol)
	if err != nil {
		return zero, err
	}
	c, err := f(ctx, chain)
	if err != nil {
		return zero, fmt.Errorf("create %s client for %s: %w", protocol, chain, err)
	}
	t, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s client for %s is %T, want %T", ErrUnsupported, protocol, chain, c, zero)
	}
	return t, nil
}
