package codec

import (
	"encoding/binary"
	"math"
)

// FieldHeaderLen is the size of the kind tag plus the length indicator.
const FieldHeaderLen = 1 + 4

// Writer builds a self-describing message one field at a time.
// The zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity hint n bytes.
func NewWriter(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

func (w *Writer) put(k Kind, v []byte) {
	var hdr [FieldHeaderLen]byte
	hdr[0] = byte(k)
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(v)))
	w.buf = append(w.buf, hdr[:]...)
	w.buf = append(w.buf, v...)
}

func (w *Writer) PutUint8(v uint8)     { w.put(KindUint8, EncodeUint8(v)) }
func (w *Writer) PutUint16(v uint16)   { w.put(KindUint16, EncodeUint16(v)) }
func (w *Writer) PutUint32(v uint32)   { w.put(KindUint32, EncodeUint32(v)) }
func (w *Writer) PutUint64(v uint64)   { w.put(KindUint64, EncodeUint64(v)) }
func (w *Writer) PutInt8(v int8)       { w.put(KindInt8, EncodeInt8(v)) }
func (w *Writer) PutInt16(v int16)     { w.put(KindInt16, EncodeInt16(v)) }
func (w *Writer) PutInt32(v int32)     { w.put(KindInt32, EncodeInt32(v)) }
func (w *Writer) PutInt64(v int64)     { w.put(KindInt64, EncodeInt64(v)) }
func (w *Writer) PutFloat32(v float32) { w.put(KindFloat32, EncodeFloat32(v)) }
func (w *Writer) PutFloat64(v float64) { w.put(KindFloat64, EncodeFloat64(v)) }
func (w *Writer) PutBool(v bool)       { w.put(KindBool, EncodeBool(v)) }

// PutText appends s encoded under m. On error the writer is unchanged.
func (w *Writer) PutText(s string, m Mode) error {
	b, err := EncodeText(s, m)
	if err != nil {
		return err
	}
	if uint64(len(b)) > math.MaxUint32 {
		return &EncodingError{Mode: m, Reason: "text too long"}
	}
	w.put(textKind(m), b)
	return nil
}

// PutBytes appends a raw byte sequence.
func (w *Writer) PutBytes(b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return &EncodingError{Reason: "byte sequence too long"}
	}
	w.put(KindBytes, b)
	return nil
}

// Len returns the encoded size so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns a copy of the encoded message.
func (w *Writer) Bytes() []byte {
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}

// Reset discards all fields.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Reader walks the fields of an encoded message in order.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps an encoded message. The buffer is not modified.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Next decodes the next field. The returned value is a copy.
func (r *Reader) Next() (Field, error) {
	rem := r.Remaining()
	if rem < FieldHeaderLen {
		return Field{}, lengthError("field header", FieldHeaderLen, rem)
	}
	k := Kind(r.buf[r.off])
	if !k.Valid() {
		return Field{}, &DecodingError{What: "field header", Reason: "unknown kind " + k.String()}
	}
	n := binary.BigEndian.Uint32(r.buf[r.off+1 : r.off+FieldHeaderLen])
	if uint64(n) > uint64(rem-FieldHeaderLen) {
		return Field{}, lengthError(k.String()+" field", int(n), rem-FieldHeaderLen)
	}
	start := r.off + FieldHeaderLen
	end := start + int(n)
	val := make([]byte, n)
	copy(val, r.buf[start:end])
	r.off = end
	return Field{Kind: k, Value: val}, nil
}

// Done fails if unread bytes remain.
func (r *Reader) Done() error {
	if rem := r.Remaining(); rem != 0 {
		return &DecodingError{What: "message", Reason: "trailing bytes after last field", Got: rem}
	}
	return nil
}

// Uint8 reads the next field as uint8.
func (r *Reader) Uint8() (uint8, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Uint8()
}

// Uint16 reads the next field as uint16.
func (r *Reader) Uint16() (uint16, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Uint16()
}

// Uint32 reads the next field as uint32.
func (r *Reader) Uint32() (uint32, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Uint32()
}

// Uint64 reads the next field as uint64.
func (r *Reader) Uint64() (uint64, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Uint64()
}

// Int8 reads the next field as int8.
func (r *Reader) Int8() (int8, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Int8()
}

// Int16 reads the next field as int16.
func (r *Reader) Int16() (int16, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Int16()
}

// Int32 reads the next field as int32.
func (r *Reader) Int32() (int32, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Int32()
}

// Int64 reads the next field as int64.
func (r *Reader) Int64() (int64, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Int64()
}

// Float32 reads the next field as float32.
func (r *Reader) Float32() (float32, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Float32()
}

// Float64 reads the next field as float64.
func (r *Reader) Float64() (float64, error) {
	f, err := r.Next()
	if err != nil {
		return 0, err
	}
	return f.Float64()
}

// Bool reads the next field as bool.
func (r *Reader) Bool() (bool, error) {
	f, err := r.Next()
	if err != nil {
		return false, err
	}
	return f.Bool()
}

// Text reads the next field as text in whichever mode it was written.
func (r *Reader) Text() (string, error) {
	f, err := r.Next()
	if err != nil {
		return "", err
	}
	return f.Text()
}

// Bytes reads the next field as a byte string.
func (r *Reader) Bytes() ([]byte, error) {
	f, err := r.Next()
	if err != nil {
		return nil, err
	}
	if err := f.expect(KindBytes); err != nil {
		return nil, err
	}
	return f.Value, nil
}
