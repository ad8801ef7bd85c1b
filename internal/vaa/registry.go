package vaa

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wormhole-demo/connect/internal/layout"
)

// RawLiteral addresses payloads that are left undecoded.
const RawLiteral = "Raw"

var (
	ErrDuplicatePayload = errors.New("payload already registered")
	ErrUnknownPayload   = errors.New("unknown payload literal")
	ErrInvalidLiteral   = errors.New("invalid payload literal")
)

// Payload is a named payload layout of a protocol.
type Payload struct {
	Name   string
	Layout layout.Layout
}

// Literal joins a protocol and payload name into a "Protocol:Name" literal.
func Literal(protocol, name string) string {
	return protocol + ":" + name
}

// ParseLiteral splits a "Protocol:Name" literal.
func ParseLiteral(literal string) (protocol, name string, err error) {
	protocol, name, ok := strings.Cut(literal, ":")
	if !ok || protocol == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLiteral, literal)
	}
	return protocol, name, nil
}

// RegistryBuilder collects payload layouts. It is append-only; Build freezes it.
type RegistryBuilder struct {
	layouts    map[string]layout.Layout
	byProtocol map[string][]string
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		layouts:    make(map[string]layout.Layout),
		byProtocol: make(map[string][]string),
	}
}

// Register adds payloads under protocol. Registering the same protocol and
// payload name twice is an error.
func (b *RegistryBuilder) Register(protocol string, payloads ...Payload) error {
	for _, p := range payloads {
		lit := Literal(protocol, p.Name)
		if _, _, err := ParseLiteral(lit); err != nil {
			return err
		}
		if _, ok := b.layouts[lit]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatePayload, lit)
		}
		b.layouts[lit] = p.Layout
		b.byProtocol[protocol] = append(b.byProtocol[protocol], lit)
	}
	return nil
}

// Build returns an immutable registry holding everything registered so far.
func (b *RegistryBuilder) Build() *Registry {
	r := &Registry{
		layouts:    make(map[string]layout.Layout, len(b.layouts)),
		byProtocol: make(map[string][]string, len(b.byProtocol)),
	}
	for k, v := range b.layouts {
		r.layouts[k] = v
	}
	for k, v := range b.byProtocol {
		r.byProtocol[k] = append([]string(nil), v...)
	}
	return r
}

// Registry maps payload literals to layouts. It is read-only and safe for
// concurrent use.
type Registry struct {
	layouts    map[string]layout.Layout
	byProtocol map[string][]string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of built-in payloads.
func Default() *Registry {
	defaultOnce.Do(func() {
		b := NewRegistryBuilder()
		if err := RegisterBuiltins(b); err != nil {
			panic(err)
		}
		defaultRegistry = b.Build()
	})
	return defaultRegistry
}

// Layout returns the payload layout registered for literal.
func (r *Registry) Layout(literal string) (layout.Layout, bool) {
	l, ok := r.layouts[literal]
	return l, ok
}

// Has reports whether literal is registered.
func (r *Registry) Has(literal string) bool {
	_, ok := r.layouts[literal]
	return ok
}

// Payloads lists the literals registered under protocol in registration order.
func (r *Registry) Payloads(protocol string) []string {
	return append([]string(nil), r.byProtocol[protocol]...)
}

// DecodePayload decodes a bare payload.
func (r *Registry) DecodePayload(literal string, payload []byte) (layout.Fields, error) {
	l, ok := r.layouts[literal]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, literal)
	}
	fields, err := layout.Decode(l, payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", literal, err)
	}
	return fields, nil
}

// EncodePayload encodes a bare payload, deriving fixed fields.
func (r *Registry) EncodePayload(literal string, fields layout.Fields) ([]byte, error) {
	l, ok := r.layouts[literal]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, literal)
	}
	b, err := layout.Encode(l, fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", literal, err)
	}
	return b, nil
}
