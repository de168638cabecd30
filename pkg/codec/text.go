package codec

import (
	"encoding/binary"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// wideText is UTF-16 big-endian without a byte order mark. A leading U+FEFF
// is kept as an ordinary character in both directions.
var wideText = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// EncodeText writes s as len(s in units) * m.UnitSize() bytes.
// No length prefix is added.
func EncodeText(s string, m Mode) ([]byte, error) {
	if !m.valid() {
		return nil, &EncodingError{Mode: m, Reason: "unknown mode"}
	}
	if !utf8.ValidString(s) {
		return nil, &EncodingError{Mode: m, Reason: "input is not valid UTF-8"}
	}
	if m == Narrow {
		return encodeNarrow(s)
	}
	out, err := wideText.NewEncoder().String(s)
	if err != nil {
		return nil, &EncodingError{Mode: m, Reason: err.Error()}
	}
	return []byte(out), nil
}

// DecodeText is the inverse of EncodeText.
func DecodeText(b []byte, m Mode) (string, error) {
	if !m.valid() {
		return "", &DecodingError{What: "text", Reason: "unknown mode"}
	}
	if len(b)%m.UnitSize() != 0 {
		return "", &DecodingError{
			What:   m.String() + " text",
			Reason: "length is not a multiple of the unit size",
			Want:   m.UnitSize(),
			Got:    len(b),
		}
	}
	if m == Narrow {
		return decodeNarrow(b), nil
	}
	if err := checkSurrogates(b); err != nil {
		return "", err
	}
	out, err := wideText.NewDecoder().Bytes(b)
	if err != nil {
		return "", &DecodingError{What: "wide text", Reason: err.Error()}
	}
	return string(out), nil
}

// TextLen returns the encoded size of s under m without encoding it.
func TextLen(s string, m Mode) int {
	if m == Wide {
		n := 0
		for _, r := range s {
			if r >= 0x10000 {
				n += 2
			} else {
				n++
			}
		}
		return 2 * n
	}
	return utf8.RuneCountInString(s)
}

func encodeNarrow(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			return nil, &EncodingError{Mode: Narrow, Offset: i, Rune: r}
		}
		out = append(out, b)
	}
	return out, nil
}

func decodeNarrow(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = charmap.ISO8859_1.DecodeByte(c)
	}
	return string(runes)
}

// checkSurrogates rejects unpaired surrogates, which the UTF-16 decoder
// would otherwise replace with U+FFFD.
func checkSurrogates(b []byte) error {
	for i := 0; i < len(b); i += 2 {
		u := rune(binary.BigEndian.Uint16(b[i:]))
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+4 > len(b) {
				return &DecodingError{What: "wide text", Reason: "truncated surrogate pair"}
			}
			lo := rune(binary.BigEndian.Uint16(b[i+2:]))
			if lo < 0xDC00 || lo > 0xDFFF {
				return &DecodingError{What: "wide text", Reason: "unpaired high surrogate"}
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return &DecodingError{What: "wide text", Reason: "unpaired low surrogate"}
		}
	}
	return nil
}
