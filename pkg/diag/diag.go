// Package diag renders raw wire bytes for logs.
//
// Every byte becomes one record:
//
//	|#54(T)|#49(I)|#43(C)|
//
// A record is '#' followed by two uppercase hex digits, followed by the
// character in parentheses when the value lies in [32, 127]. Records are
// separated, and the line opened, by '|'. Formatting never fails.
package diag

import "strings"

const (
	delimiter = '|'
	marker    = '#'
	hexDigits = "0123456789ABCDEF"
)

// Format renders b. An empty buffer renders as "|".
func Format(b []byte) string {
	var sb strings.Builder
	sb.Grow(1 + len(b)*7)
	sb.WriteByte(delimiter)
	for _, c := range b {
		writeRecord(&sb, int(c))
	}
	return sb.String()
}

// FormatSigned renders bytes held as signed values. Negative values are
// shifted into 0-255 before rendering, so FormatSigned([]int8{-1}) matches
// Format([]byte{0xFF}).
func FormatSigned(b []int8) string {
	var sb strings.Builder
	sb.Grow(1 + len(b)*7)
	sb.WriteByte(delimiter)
	for _, c := range b {
		v := int(c)
		if v < 0 {
			v += 256
		}
		writeRecord(&sb, v)
	}
	return sb.String()
}

func writeRecord(sb *strings.Builder, v int) {
	sb.WriteByte(marker)
	sb.WriteByte(hexDigits[v>>4])
	sb.WriteByte(hexDigits[v&0x0F])
	if v >= 32 && v <= 127 {
		sb.WriteByte('(')
		sb.WriteByte(byte(v))
		sb.WriteByte(')')
	}
	sb.WriteByte(delimiter)
}
