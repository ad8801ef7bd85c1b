package layout

import (
	"bytes"
	"fmt"
	"strconv"
)

// Encode serializes v according to l. Fixed values, switch discriminants and
// length prefixes the caller left out are derived first (see Complete), so a
// partially specified value encodes byte-identically to a fully specified one.
func Encode(l Layout, v Fields) ([]byte, error) {
	full, err := Complete(l, v)
	if err != nil {
		return nil, err
	}
	e := encoder{}
	if err := e.layout(l, full, ""); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Complete returns a copy of v with every mechanically derivable field filled
// in: fixed constants that are not omitted and switch discriminants. It is
// idempotent.
func Complete(l Layout, v Fields) (Fields, error) {
	return complete(l, v, "")
}

func complete(l Layout, v Fields, prefix string) (Fields, error) {
	out := Fields{}
	if v != nil {
		out = v.clone()
	}
	for _, f := range l {
		path := join(prefix, f.Name)
		val, present := out[f.Name]
		switch it := f.Item.(type) {
		case Uint:
			if !present && it.Fixed != nil && !f.Omit {
				fixed, err := fixedUint(it)
				if err != nil {
					return nil, fail(path, 0, err)
				}
				dv, err := convertDecode(it.Custom, fixed, path, 0)
				if err != nil {
					return nil, err
				}
				out[f.Name] = dv
			}

		case Bytes:
			if it.Layout != nil {
				sub := Fields{}
				if present {
					s, ok := val.(Fields)
					if !ok {
						return nil, fail(path, 0, fmt.Errorf("%w: %T is not a struct", ErrInvalidValue, val))
					}
					sub = s
				}
				filled, err := complete(it.Layout, sub, path)
				if err != nil {
					return nil, err
				}
				out[f.Name] = filled
				continue
			}
			if !present && it.Fixed != nil && !f.Omit {
				fixed := append([]byte(nil), it.Fixed...)
				dv, err := convertDecode(it.Custom, fixed, path, 0)
				if err != nil {
					return nil, err
				}
				out[f.Name] = dv
			}

		case Array:
			if !present {
				continue
			}
			elems, ok := val.([]Fields)
			if !ok {
				return nil, fail(path, 0, fmt.Errorf("%w: %T is not an array", ErrInvalidValue, val))
			}
			filled := make([]Fields, len(elems))
			for i, e := range elems {
				c, err := complete(it.Layout, e, join(path, strconv.Itoa(i)))
				if err != nil {
					return nil, err
				}
				filled[i] = c
			}
			out[f.Name] = filled

		case Switch:
			if !present {
				continue
			}
			sv, ok := val.(Fields)
			if !ok {
				return nil, fail(path, 0, fmt.Errorf("%w: %T is not a struct", ErrInvalidValue, val))
			}
			variant, err := it.resolve(sv, path)
			if err != nil {
				return nil, err
			}
			filled, err := complete(variant.Layout, sv, path)
			if err != nil {
				return nil, err
			}
			filled[it.tag()] = variant.Name
			out[f.Name] = filled
		}
	}
	return out, nil
}

// resolve picks the variant named by the discriminant tag, or the single
// variant whose field set matches the supplied value.
func (s Switch) resolve(v Fields, path string) (Variant, error) {
	if tag, ok := v[s.tag()]; ok {
		name, ok := tag.(string)
		if !ok {
			return Variant{}, fail(path, 0, fmt.Errorf("%w: discriminant %v", ErrInvalidValue, tag))
		}
		variant, ok := s.byName(name)
		if !ok {
			return Variant{}, fail(path, 0, fmt.Errorf("%w: %q", ErrUnknownDiscriminant, name))
		}
		return variant, nil
	}
	var match []Variant
	for _, variant := range s.Variants {
		if variantMatches(variant.Layout, v, s.tag()) {
			match = append(match, variant)
		}
	}
	if len(match) != 1 {
		return Variant{}, fail(path, 0, fmt.Errorf("%w: cannot infer discriminant from %d candidate variants", ErrMissingField, len(match)))
	}
	return match[0], nil
}

func variantMatches(l Layout, v Fields, tag string) bool {
	names := make(map[string]bool, len(l))
	for _, f := range l {
		names[f.Name] = true
		if _, ok := v[f.Name]; ok || f.Omit || isFixed(f.Item) {
			continue
		}
		return false
	}
	for k := range v {
		if k != tag && !names[k] {
			return false
		}
	}
	return true
}

func isFixed(it Item) bool {
	switch it := it.(type) {
	case Uint:
		return it.Fixed != nil
	case Bytes:
		return it.Fixed != nil
	}
	return false
}

func fixedUint(it Uint) (any, error) {
	u, err := toUint256(it.Fixed)
	if err != nil {
		return nil, ErrInvalidLayout
	}
	if it.Size <= 8 {
		return u.Uint64(), nil
	}
	return u, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) layout(l Layout, v Fields, prefix string) error {
	for _, f := range l {
		if err := e.field(f, v, join(prefix, f.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) uint(size int, wire any, path string) error {
	if size < 1 || size > 32 {
		return fail(path, len(e.buf), ErrInvalidLayout)
	}
	u, err := toUint256(wire)
	if err != nil {
		return fail(path, len(e.buf), err)
	}
	if u.BitLen() > size*8 {
		return fail(path, len(e.buf), fmt.Errorf("%w: %s does not fit in %d bytes", ErrOutOfRange, u.Dec(), size))
	}
	b := u.Bytes32()
	e.buf = append(e.buf, b[32-size:]...)
	return nil
}

func (e *encoder) field(f Field, v Fields, path string) error {
	offset := len(e.buf)
	val, present := v[f.Name]
	switch it := f.Item.(type) {
	case Uint:
		var wire any
		switch {
		case it.Fixed != nil && (f.Omit || !present):
			wire = it.Fixed
		case !present:
			return fail(path, offset, ErrMissingField)
		default:
			w, err := convertEncode(it.Custom, val, path, offset)
			if err != nil {
				return err
			}
			wire = w
			if it.Fixed != nil {
				want, _ := toUint256(it.Fixed)
				have, err := toUint256(w)
				if err != nil || !want.Eq(have) {
					return fail(path, offset, ErrFixedMismatch)
				}
			}
		}
		return e.uint(it.Size, wire, path)

	case Bytes:
		var raw []byte
		if it.Layout != nil {
			sv, ok := val.(Fields)
			if !ok {
				return fail(path, offset, ErrMissingField)
			}
			sub := encoder{}
			if err := sub.layout(it.Layout, sv, path); err != nil {
				return shift(err, offset+it.LengthSize)
			}
			raw = sub.buf
		} else {
			switch {
			case it.Fixed != nil && (f.Omit || !present):
				raw = it.Fixed
			case !present:
				return fail(path, offset, ErrMissingField)
			default:
				w, err := convertEncode(it.Custom, val, path, offset)
				if err != nil {
					return err
				}
				b, ok := w.([]byte)
				if !ok {
					return fail(path, offset, fmt.Errorf("%w: %T is not bytes", ErrInvalidValue, w))
				}
				if it.Fixed != nil && !bytes.Equal(b, it.Fixed) {
					return fail(path, offset, ErrFixedMismatch)
				}
				raw = b
			}
		}
		switch {
		case it.LengthSize > 0:
			if err := e.uint(it.LengthSize, uint64(len(raw)), path); err != nil {
				return err
			}
		case it.Size > 0 && len(raw) != it.Size:
			return fail(path, offset, fmt.Errorf("%w: have %d bytes, want %d", ErrInvalidValue, len(raw), it.Size))
		}
		e.buf = append(e.buf, raw...)
		return nil

	case Array:
		elems, ok := val.([]Fields)
		if !ok {
			if present {
				return fail(path, offset, fmt.Errorf("%w: %T is not an array", ErrInvalidValue, val))
			}
			return fail(path, offset, ErrMissingField)
		}
		if it.Length > 0 && len(elems) != it.Length {
			return fail(path, offset, fmt.Errorf("%w: have %d elements, want %d", ErrInvalidValue, len(elems), it.Length))
		}
		if it.LengthSize > 0 {
			if err := e.uint(it.LengthSize, uint64(len(elems)), path); err != nil {
				return err
			}
		}
		for i, el := range elems {
			if err := e.layout(it.Layout, el, join(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
		return nil

	case Switch:
		sv, ok := val.(Fields)
		if !ok {
			return fail(path, offset, ErrMissingField)
		}
		variant, err := it.resolve(sv, path)
		if err != nil {
			return err
		}
		if err := e.uint(it.IDSize, variant.ID, path); err != nil {
			return err
		}
		return e.layout(variant.Layout, sv, path)
	}
	return fail(path, offset, ErrInvalidLayout)
}

func convertEncode(c *Conversion, val any, path string, offset int) (any, error) {
	if c == nil || c.Encode == nil {
		return val, nil
	}
	w, err := c.Encode(val)
	if err != nil {
		return nil, fail(path, offset, err)
	}
	return w, nil
}
