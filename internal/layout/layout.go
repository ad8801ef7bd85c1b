// Package layout is a declarative binary schema engine. A Layout describes a
// byte-exact wire format as an ordered list of named items; the same Layout
// drives both decoding into Fields and encoding Fields back to bytes.
package layout

// Layout is an ordered list of named items.
type Layout []Field

// Field is a named item in a Layout.
type Field struct {
	Name string
	Item Item
	// Omit drops a fixed value from decoded Fields. Encoding synthesizes it.
	Omit bool
}

// Item is one of Uint, Bytes, Array or Switch.
type Item interface {
	isItem()
}

// Uint is a fixed-size big-endian unsigned integer of 1 to 32 bytes.
// Values up to 8 bytes decode to uint64, wider values to *uint256.Int.
type Uint struct {
	Size int
	// Fixed, when set, is the only accepted wire value.
	Fixed any
	// Custom converts between the wire integer and a semantic value.
	Custom *Conversion
}

// Bytes is a byte string. It is length-prefixed when LengthSize > 0, of fixed
// size when Size > 0, and otherwise consumes the rest of the enclosing buffer.
// A Bytes with a Layout holds a nested struct; without Size or LengthSize the
// nested struct is decoded inline and consumes only what it needs.
type Bytes struct {
	Size       int
	LengthSize int
	Layout     Layout
	// Fixed, when set, is the only accepted wire value.
	Fixed  []byte
	Custom *Conversion
}

// Array repeats Layout. The element count is read from a LengthSize prefix,
// fixed by Length, or elements are decoded until the enclosing buffer ends.
type Array struct {
	LengthSize int
	Length     int
	Layout     Layout
}

// Switch reads an IDSize discriminant and decodes the matching variant. The
// decoded value holds the variant name under IDTag ("id" when empty) next to
// the variant's own fields.
type Switch struct {
	IDSize   int
	IDTag    string
	Variants []Variant
}

// Variant is one arm of a Switch.
type Variant struct {
	ID     uint64
	Name   string
	Layout Layout
}

// Conversion maps wire values to semantic values and back.
type Conversion struct {
	Decode func(wire any) (any, error)
	Encode func(value any) (any, error)
}

func (Uint) isItem()   {}
func (Bytes) isItem()  {}
func (Array) isItem()  {}
func (Switch) isItem() {}

func (s Switch) tag() string {
	if s.IDTag == "" {
		return "id"
	}
	return s.IDTag
}

func (s Switch) byID(id uint64) (Variant, bool) {
	for _, v := range s.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

func (s Switch) byName(name string) (Variant, bool) {
	for _, v := range s.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// U8 through U64 and U256 are plain integer items.
func U8() Uint   { return Uint{Size: 1} }
func U16() Uint  { return Uint{Size: 2} }
func U32() Uint  { return Uint{Size: 4} }
func U64() Uint  { return Uint{Size: 8} }
func U256() Uint { return Uint{Size: 32} }

// PayloadID is the conventional leading one-byte payload discriminator.
func PayloadID(id uint8) Field {
	return Field{Name: "payloadId", Item: Uint{Size: 1, Fixed: uint64(id)}, Omit: true}
}

// StaticSize reports the encoded size of l when it does not depend on the
// values being encoded.
func StaticSize(l Layout) (int, bool) {
	total := 0
	for _, f := range l {
		n, ok := itemStaticSize(f.Item)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// SplitStatic splits l into its longest statically-sized prefix and the rest.
func SplitStatic(l Layout) (static Layout, dynamic Layout) {
	for i, f := range l {
		if _, ok := itemStaticSize(f.Item); !ok {
			return l[:i], l[i:]
		}
	}
	return l, nil
}

func itemStaticSize(it Item) (int, bool) {
	switch it := it.(type) {
	case Uint:
		return it.Size, true
	case Bytes:
		if it.LengthSize > 0 {
			return 0, false
		}
		if it.Size > 0 {
			return it.Size, true
		}
		if it.Layout != nil {
			return StaticSize(it.Layout)
		}
		if it.Fixed != nil {
			return len(it.Fixed), true
		}
		return 0, false
	case Array:
		if it.LengthSize > 0 || it.Length == 0 {
			return 0, false
		}
		n, ok := StaticSize(it.Layout)
		return n * it.Length, ok
	case Switch:
		size := -1
		for _, v := range it.Variants {
			n, ok := StaticSize(v.Layout)
			if !ok || (size >= 0 && n != size) {
				return 0, false
			}
			size = n
		}
		if size < 0 {
			return 0, false
		}
		return it.IDSize + size, true
	}
	return 0, false
}
