package codec

import (
	"fmt"
)

// Kind tags the type of one message field.
type Kind uint8

// Field kinds. Zero is reserved so an all-zero buffer never decodes.
const (
	KindUint8 Kind = iota + 1
	KindUint16
	KindUint32
	KindUint64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindBool
	KindNarrowText
	KindWideText
	KindBytes
)

var kindNames = map[Kind]string{
	KindUint8:      "uint8",
	KindUint16:     "uint16",
	KindUint32:     "uint32",
	KindUint64:     "uint64",
	KindInt8:       "int8",
	KindInt16:      "int16",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindFloat32:    "float32",
	KindFloat64:    "float64",
	KindBool:       "bool",
	KindNarrowText: "narrow text",
	KindWideText:   "wide text",
	KindBytes:      "bytes",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// textKind returns the field kind carrying text under m.
func textKind(m Mode) Kind {
	if m == Wide {
		return KindWideText
	}
	return KindNarrowText
}

// Field is one decoded message field. Value holds the raw encoded bytes.
type Field struct {
	Kind  Kind
	Value []byte
}

func (f Field) expect(k Kind) error {
	if f.Kind != k {
		return &DecodingError{What: k.String(), Reason: "field is " + f.Kind.String()}
	}
	return nil
}

// Uint8 returns the field value as uint8.
func (f Field) Uint8() (uint8, error) {
	if err := f.expect(KindUint8); err != nil {
		return 0, err
	}
	return DecodeUint8(f.Value)
}

// Uint16 returns the field value as uint16.
func (f Field) Uint16() (uint16, error) {
	if err := f.expect(KindUint16); err != nil {
		return 0, err
	}
	return DecodeUint16(f.Value)
}

// Uint32 returns the field value as uint32.
func (f Field) Uint32() (uint32, error) {
	if err := f.expect(KindUint32); err != nil {
		return 0, err
	}
	return DecodeUint32(f.Value)
}

// Uint64 returns the field value as uint64.
func (f Field) Uint64() (uint64, error) {
	if err := f.expect(KindUint64); err != nil {
		return 0, err
	}
	return DecodeUint64(f.Value)
}

// Int8 returns the field value as int8.
func (f Field) Int8() (int8, error) {
	if err := f.expect(KindInt8); err != nil {
		return 0, err
	}
	return DecodeInt8(f.Value)
}

// Int16 returns the field value as int16.
func (f Field) Int16() (int16, error) {
	if err := f.expect(KindInt16); err != nil {
		return 0, err
	}
	return DecodeInt16(f.Value)
}

// Int32 returns the field value as int32.
func (f Field) Int32() (int32, error) {
	if err := f.expect(KindInt32); err != nil {
		return 0, err
	}
	return DecodeInt32(f.Value)
}

// Int64 returns the field value as int64.
func (f Field) Int64() (int64, error) {
	if err := f.expect(KindInt64); err != nil {
		return 0, err
	}
	return DecodeInt64(f.Value)
}

// Float32 returns the field value as float32.
func (f Field) Float32() (float32, error) {
	if err := f.expect(KindFloat32); err != nil {
		return 0, err
	}
	return DecodeFloat32(f.Value)
}

// Float64 returns the field value as float64.
func (f Field) Float64() (float64, error) {
	if err := f.expect(KindFloat64); err != nil {
		return 0, err
	}
	return DecodeFloat64(f.Value)
}

// Bool returns the field value as bool.
func (f Field) Bool() (bool, error) {
	if err := f.expect(KindBool); err != nil {
		return false, err
	}
	return DecodeBool(f.Value)
}

// Text returns the field value as a string, using the mode recorded in the
// field kind.
func (f Field) Text() (string, error) {
	switch f.Kind {
	case KindNarrowText:
		return DecodeText(f.Value, Narrow)
	case KindWideText:
		return DecodeText(f.Value, Wide)
	default:
		return "", &DecodingError{What: "text", Reason: "field is " + f.Kind.String()}
	}
}

// Bytes returns a copy of the field value.
func (f Field) Bytes() ([]byte, error) {
	if err := f.expect(KindBytes); err != nil {
		return nil, err
	}
	buf := make([]byte, len(f.Value))
	copy(buf, f.Value)
	return buf, nil
}
