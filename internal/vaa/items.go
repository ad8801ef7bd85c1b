package vaa

import (
	"bytes"
	"fmt"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/layout"
)

// UniversalAddressItem is a 32-byte address decoded to vaaLib.Address.
func UniversalAddressItem() layout.Bytes {
	return layout.Bytes{Size: 32, Custom: &addressConversion}
}

// ChainItem is a two-byte Wormhole chain id decoded to vaaLib.ChainID.
func ChainItem() layout.Uint {
	return layout.Uint{Size: 2, Custom: &chainConversion}
}

// AmountItem is a u256 token amount.
func AmountItem() layout.Uint {
	return layout.U256()
}

// LittleEndianItem is a size-byte little-endian unsigned integer decoded to
// uint64.
func LittleEndianItem(size int) layout.Bytes {
	return layout.Bytes{Size: size, Custom: &layout.Conversion{
		Decode: func(wire any) (any, error) {
			b := wire.([]byte)
			var v uint64
			for i := len(b) - 1; i >= 0; i-- {
				v = v<<8 | uint64(b[i])
			}
			return v, nil
		},
		Encode: func(value any) (any, error) {
			var v uint64
			switch n := value.(type) {
			case uint64:
				v = n
			case uint32:
				v = uint64(n)
			case uint16:
				v = uint64(n)
			case vaaLib.ChainID:
				v = uint64(n)
			case int:
				if n < 0 {
					return nil, fmt.Errorf("%w: %d", layout.ErrOutOfRange, n)
				}
				v = uint64(n)
			default:
				return nil, fmt.Errorf("%w: %T is not an integer", layout.ErrInvalidValue, value)
			}
			if size < 8 && v>>(8*size) != 0 {
				return nil, fmt.Errorf("%w: %d does not fit in %d bytes", layout.ErrOutOfRange, v, size)
			}
			b := make([]byte, size)
			for i := range b {
				b[i] = byte(v >> (8 * i))
			}
			return b, nil
		},
	}}
}

// StringItem is a fixed-size, zero-padded UTF-8 string (token symbols and names).
func StringItem(size int) layout.Bytes {
	return layout.Bytes{Size: size, Custom: &layout.Conversion{
		Decode: func(wire any) (any, error) {
			return string(bytes.TrimRight(wire.([]byte), "\x00")), nil
		},
		Encode: func(value any) (any, error) {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %T is not a string", layout.ErrInvalidValue, value)
			}
			if len(s) > size {
				return nil, fmt.Errorf("%w: %q longer than %d bytes", layout.ErrOutOfRange, s, size)
			}
			b := make([]byte, size)
			copy(b, s)
			return b, nil
		},
	}}
}

// ModuleItem is a fixed governance module name, left-padded to 32 bytes.
func ModuleItem(module string) layout.Bytes {
	b := make([]byte, 32)
	copy(b[32-len(module):], module)
	return layout.Bytes{Size: 32, Fixed: b}
}

var addressConversion = layout.Conversion{
	Decode: func(wire any) (any, error) {
		var a vaaLib.Address
		copy(a[:], wire.([]byte))
		return a, nil
	},
	Encode: func(value any) (any, error) {
		switch a := value.(type) {
		case vaaLib.Address:
			return a[:], nil
		case [32]byte:
			return a[:], nil
		case []byte:
			if len(a) != 32 {
				return nil, fmt.Errorf("%w: address of %d bytes", layout.ErrInvalidValue, len(a))
			}
			return a, nil
		}
		return nil, fmt.Errorf("%w: %T is not an address", layout.ErrInvalidValue, value)
	},
}

var chainConversion = layout.Conversion{
	Decode: func(wire any) (any, error) {
		return vaaLib.ChainID(wire.(uint64)), nil
	},
	Encode: func(value any) (any, error) {
		switch c := value.(type) {
		case vaaLib.ChainID:
			return uint64(c), nil
		case uint16:
			return uint64(c), nil
		case uint64:
			return c, nil
		case int:
			return c, nil
		}
		return nil, fmt.Errorf("%w: %T is not a chain id", layout.ErrInvalidValue, value)
	},
}
