package layout

import (
	"bytes"
	"strconv"

	"github.com/holiman/uint256"
)

// Decode decodes data according to l. Every byte of data must be consumed.
func Decode(l Layout, data []byte) (Fields, error) {
	fields, n, err := DecodePrefix(l, data)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fail("", n, ErrTrailingBytes)
	}
	return fields, nil
}

// DecodePrefix decodes the leading part of data according to l and returns
// the number of bytes consumed.
func DecodePrefix(l Layout, data []byte) (Fields, int, error) {
	d := decoder{buf: data}
	fields, err := d.layout(l, "", len(data))
	if err != nil {
		return nil, 0, err
	}
	return fields, d.pos, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) take(n, end int, path string) ([]byte, error) {
	if n < 0 || d.pos+n > end {
		return nil, fail(path, d.pos, ErrShortBuffer)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) uint(size, end int, path string) (any, error) {
	if size < 1 || size > 32 {
		return nil, fail(path, d.pos, ErrInvalidLayout)
	}
	b, err := d.take(size, end, path)
	if err != nil {
		return nil, err
	}
	if size <= 8 {
		var v uint64
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v, nil
	}
	return new(uint256.Int).SetBytes(b), nil
}

func (d *decoder) length(size, end int, path string) (int, error) {
	v, err := d.uint(size, end, path)
	if err != nil {
		return 0, err
	}
	n, ok := v.(uint64)
	if !ok || n > uint64(end-d.pos) {
		return 0, fail(path, d.pos, ErrShortBuffer)
	}
	return int(n), nil
}

func (d *decoder) layout(l Layout, prefix string, end int) (Fields, error) {
	out := make(Fields, len(l))
	for _, f := range l {
		path := join(prefix, f.Name)
		v, err := d.item(f.Item, path, end)
		if err != nil {
			return nil, err
		}
		if !f.Omit {
			out[f.Name] = v
		}
	}
	return out, nil
}

func (d *decoder) item(it Item, path string, end int) (any, error) {
	start := d.pos
	switch it := it.(type) {
	case Uint:
		raw, err := d.uint(it.Size, end, path)
		if err != nil {
			return nil, err
		}
		if it.Fixed != nil {
			want, err := toUint256(it.Fixed)
			if err != nil {
				return nil, fail(path, start, ErrInvalidLayout)
			}
			have, _ := toUint256(raw)
			if !want.Eq(have) {
				return nil, fail(path, start, ErrFixedMismatch)
			}
		}
		return convertDecode(it.Custom, raw, path, start)

	case Bytes:
		return d.bytes(it, path, end)

	case Array:
		bounded := it.LengthSize > 0 || it.Length > 0
		count := it.Length
		if it.LengthSize > 0 {
			v, err := d.uint(it.LengthSize, end, path)
			if err != nil {
				return nil, err
			}
			n, ok := v.(uint64)
			if !ok {
				return nil, fail(path, start, ErrInvalidLayout)
			}
			count = int(n)
		}
		var elems []Fields
		for i := 0; ; i++ {
			if (bounded && i == count) || (!bounded && d.pos >= end) {
				break
			}
			before := d.pos
			e, err := d.layout(it.Layout, join(path, strconv.Itoa(i)), end)
			if err != nil {
				return nil, err
			}
			if !bounded && d.pos == before {
				return nil, fail(path, before, ErrInvalidLayout)
			}
			elems = append(elems, e)
		}
		return elems, nil

	case Switch:
		raw, err := d.uint(it.IDSize, end, path)
		if err != nil {
			return nil, err
		}
		id, ok := raw.(uint64)
		if !ok {
			return nil, fail(path, start, ErrInvalidLayout)
		}
		variant, ok := it.byID(id)
		if !ok {
			return nil, fail(path, start, ErrUnknownDiscriminant)
		}
		fields, err := d.layout(variant.Layout, path, end)
		if err != nil {
			return nil, err
		}
		fields[it.tag()] = variant.Name
		return fields, nil
	}
	return nil, fail(path, start, ErrInvalidLayout)
}

func (d *decoder) bytes(it Bytes, path string, end int) (any, error) {
	start := d.pos
	if it.Layout != nil && it.LengthSize == 0 && it.Size == 0 {
		return d.layout(it.Layout, path, end)
	}

	var size int
	switch {
	case it.LengthSize > 0:
		n, err := d.length(it.LengthSize, end, path)
		if err != nil {
			return nil, err
		}
		size = n
	case it.Size > 0:
		size = it.Size
	case it.Fixed != nil:
		size = len(it.Fixed)
	default:
		size = end - d.pos
	}
	b, err := d.take(size, end, path)
	if err != nil {
		return nil, err
	}

	if it.Layout != nil {
		base := d.pos - len(b)
		sub := decoder{buf: b}
		fields, err := sub.layout(it.Layout, path, len(b))
		if err != nil {
			return nil, shift(err, base)
		}
		if sub.pos != len(b) {
			return nil, fail(path, base+sub.pos, ErrTrailingBytes)
		}
		return fields, nil
	}

	if it.Fixed != nil && !bytes.Equal(it.Fixed, b) {
		return nil, fail(path, start, ErrFixedMismatch)
	}
	raw := make([]byte, len(b))
	copy(raw, b)
	return convertDecode(it.Custom, raw, path, start)
}

func convertDecode(c *Conversion, raw any, path string, offset int) (any, error) {
	if c == nil || c.Decode == nil {
		return raw, nil
	}
	v, err := c.Decode(raw)
	if err != nil {
		return nil, fail(path, offset, err)
	}
	return v, nil
}

// shift rebases the offset of an error raised by a sub-decoder.
func shift(err error, base int) error {
	if le, ok := err.(*Error); ok {
		return &Error{Path: le.Path, Offset: le.Offset + base, Err: le.Err}
	}
	return err
}
