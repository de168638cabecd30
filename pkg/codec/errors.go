package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrEncoding is the target for errors.Is on every *EncodingError.
	ErrEncoding = errors.New("codec: encoding error")

	// ErrDecoding is the target for errors.Is on every *DecodingError.
	ErrDecoding = errors.New("codec: decoding error")
)

// EncodingError reports a value that cannot be represented under the
// requested mode.
type EncodingError struct {
	Mode   Mode
	Offset int // byte offset of the offending character in the input
	Rune   rune
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("codec: cannot encode %s text: %s", e.Mode, e.Reason)
	}
	return fmt.Sprintf("codec: cannot encode %q at offset %d as %s text", e.Rune, e.Offset, e.Mode)
}

func (e *EncodingError) Unwrap() error { return ErrEncoding }

// DecodingError reports a buffer whose length or content is inconsistent
// with what the decoder expects.
type DecodingError struct {
	What   string
	Want   int
	Got    int
	Reason string
}

func (e *DecodingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("codec: decode %s: %s", e.What, e.Reason)
	}
	return fmt.Sprintf("codec: decode %s: want %d bytes, got %d", e.What, e.Want, e.Got)
}

func (e *DecodingError) Unwrap() error { return ErrDecoding }

func lengthError(what string, want, got int) error {
	return &DecodingError{What: what, Want: want, Got: got}
}
