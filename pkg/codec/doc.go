// Package codec converts typed values to flat byte buffers and back.
//
// Every encoding is deterministic and lossless: a value encoded and then
// decoded with the same parameters comes back unchanged.
//
// # Text
//
// Text is written under one of two modes, chosen out of band by both peers:
//
//   - [Narrow]: one byte per character, ISO-8859-1 repertoire
//   - [Wide]: two bytes per UTF-16 code unit, most significant byte first
//
// [EncodeText] adds no length prefix; the transport frame supplies the
// boundary.
//
//	b, err := codec.EncodeText("TIC", codec.Narrow) // []byte{'T', 'I', 'C'}
//	s, err := codec.DecodeText(b, codec.Narrow)     // "TIC"
//
// # Numbers
//
// Integers and floats use fixed widths in big-endian order. Floats are
// written as their IEEE-754 bit patterns.
//
// # Messages
//
// [Writer] and [Reader] compose heterogeneous fields into one
// self-describing buffer. Each field is laid out as
//
//	[1 byte kind][4 byte big-endian length][value]
//
// Decoding fails with a [DecodingError] whenever a declared length does not
// match the bytes that follow it.
package codec
