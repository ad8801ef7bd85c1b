package layout

import (
	"errors"
	"fmt"
)

var (
	ErrShortBuffer         = errors.New("short buffer")
	ErrTrailingBytes       = errors.New("trailing bytes")
	ErrUnknownDiscriminant = errors.New("unknown discriminant")
	ErrFixedMismatch       = errors.New("fixed value mismatch")
	ErrMissingField        = errors.New("missing field")
	ErrOutOfRange          = errors.New("value out of range")
	ErrInvalidValue        = errors.New("invalid value")
	ErrInvalidLayout       = errors.New("invalid layout")
)

// Error names the field path and byte offset at which decoding or encoding failed.
type Error struct {
	Path   string
	Offset int
	Err    error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("layout: offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("layout: field %q at offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(path string, offset int, err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Path: path, Offset: offset, Err: err}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}
