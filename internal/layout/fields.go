package layout

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Fields is a decoded layout value keyed by field name. Nested structs are
// Fields, arrays are []Fields.
type Fields map[string]any

// Get resolves a dot-separated path such as "token.amount".
func (f Fields) Get(path string) (any, bool) {
	var cur any = f
	for _, name := range strings.Split(path, ".") {
		m, ok := cur.(Fields)
		if !ok {
			return nil, false
		}
		cur, ok = m[name]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Value returns the value at path converted to T.
func Value[T any](f Fields, path string) (T, error) {
	var zero T
	v, ok := f.Get(path)
	if !ok {
		return zero, fmt.Errorf("%s: %w", path, ErrMissingField)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s: %w: have %T, want %T", path, ErrInvalidValue, v, zero)
	}
	return t, nil
}

func (f Fields) Uint64(path string) (uint64, error) { return Value[uint64](f, path) }

func (f Fields) Bytes(path string) ([]byte, error) { return Value[[]byte](f, path) }

func (f Fields) Struct(path string) (Fields, error) { return Value[Fields](f, path) }

func (f Fields) Uint256(path string) (*uint256.Int, error) { return Value[*uint256.Int](f, path) }

// Big returns the integer at path as a big.Int regardless of its width.
func (f Fields) Big(path string) (*big.Int, error) {
	v, ok := f.Get(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingField)
	}
	u, err := toUint256(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u.ToBig(), nil
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func toUint256(v any) (*uint256.Int, error) {
	switch n := v.(type) {
	case uint64:
		return uint256.NewInt(n), nil
	case uint32:
		return uint256.NewInt(uint64(n)), nil
	case uint16:
		return uint256.NewInt(uint64(n)), nil
	case uint8:
		return uint256.NewInt(uint64(n)), nil
	case int:
		if n < 0 {
			return nil, ErrOutOfRange
		}
		return uint256.NewInt(uint64(n)), nil
	case *uint256.Int:
		if n == nil {
			return nil, ErrInvalidValue
		}
		return n.Clone(), nil
	case uint256.Int:
		return n.Clone(), nil
	case *big.Int:
		if n == nil {
			return nil, ErrInvalidValue
		}
		u, overflow := uint256.FromBig(n)
		if overflow || n.Sign() < 0 {
			return nil, ErrOutOfRange
		}
		return u, nil
	}
	return nil, fmt.Errorf("%w: %T is not an integer", ErrInvalidValue, v)
}
