package codec

import (
	"encoding/binary"
	"math"
)

// Fixed widths, in bytes, of the numeric encodings.
const (
	Width8  = 1
	Width16 = 2
	Width32 = 4
	Width64 = 8
)

// EncodeUint8 writes v as one byte.
func EncodeUint8(v uint8) []byte {
	return []byte{v}
}

// EncodeUint16 writes v big-endian.
func EncodeUint16(v uint16) []byte {
	buf := make([]byte, Width16)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

// EncodeUint32 writes v big-endian.
func EncodeUint32(v uint32) []byte {
	buf := make([]byte, Width32)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

// EncodeUint64 writes v big-endian.
func EncodeUint64(v uint64) []byte {
	buf := make([]byte, Width64)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// EncodeInt8 writes v as its two's complement byte.
func EncodeInt8(v int8) []byte { return EncodeUint8(uint8(v)) }

// EncodeInt16 writes v as two's complement, big-endian.
func EncodeInt16(v int16) []byte { return EncodeUint16(uint16(v)) }

// EncodeInt32 writes v as two's complement, big-endian.
func EncodeInt32(v int32) []byte { return EncodeUint32(uint32(v)) }

// EncodeInt64 writes v as two's complement, big-endian.
func EncodeInt64(v int64) []byte { return EncodeUint64(uint64(v)) }

// EncodeFloat32 writes the IEEE-754 bits of v big-endian.
func EncodeFloat32(v float32) []byte { return EncodeUint32(math.Float32bits(v)) }

// EncodeFloat64 writes the IEEE-754 bits of v big-endian.
func EncodeFloat64(v float64) []byte { return EncodeUint64(math.Float64bits(v)) }

// EncodeBool writes 1 for true and 0 for false.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeUint8 reads a one-byte buffer.
func DecodeUint8(b []byte) (uint8, error) {
	if len(b) != Width8 {
		return 0, lengthError("uint8", Width8, len(b))
	}
	return b[0], nil
}

// DecodeUint16 reads a two-byte big-endian buffer.
func DecodeUint16(b []byte) (uint16, error) {
	if len(b) != Width16 {
		return 0, lengthError("uint16", Width16, len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

// DecodeUint32 reads a four-byte big-endian buffer.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) != Width32 {
		return 0, lengthError("uint32", Width32, len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// DecodeUint64 reads an eight-byte big-endian buffer.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != Width64 {
		return 0, lengthError("uint64", Width64, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// DecodeInt8 reads a one-byte two's complement buffer.
func DecodeInt8(b []byte) (int8, error) {
	v, err := DecodeUint8(b)
	return int8(v), err
}

// DecodeInt16 reads a two-byte big-endian two's complement buffer.
func DecodeInt16(b []byte) (int16, error) {
	v, err := DecodeUint16(b)
	return int16(v), err
}

// DecodeInt32 reads a four-byte big-endian two's complement buffer.
func DecodeInt32(b []byte) (int32, error) {
	v, err := DecodeUint32(b)
	return int32(v), err
}

// DecodeInt64 reads an eight-byte big-endian two's complement buffer.
func DecodeInt64(b []byte) (int64, error) {
	v, err := DecodeUint64(b)
	return int64(v), err
}

// DecodeFloat32 reads a four-byte big-endian IEEE 754 buffer.
func DecodeFloat32(b []byte) (float32, error) {
	v, err := DecodeUint32(b)
	return math.Float32frombits(v), err
}

// DecodeFloat64 reads an eight-byte big-endian IEEE 754 buffer.
func DecodeFloat64(b []byte) (float64, error) {
	v, err := DecodeUint64(b)
	return math.Float64frombits(v), err
}

// DecodeBool accepts only 0 and 1.
func DecodeBool(b []byte) (bool, error) {
	if len(b) != Width8 {
		return false, lengthError("bool", Width8, len(b))
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &DecodingError{What: "bool", Reason: "value is neither 0 nor 1"}
	}
}
