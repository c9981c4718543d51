package session

import (
	"strings"
	"unicode/utf8"
)

// EncodeTransport converts the raw generated byte sequence into a string
// that is safe to hand across the host boundary. Generated output may
// contain any valid Unicode scalar, including four-byte encodings; those
// pass through untouched. Byte sequences that are not valid UTF-8 (a
// truncated multi-byte token at a stop point, or a backend rendering raw
// bytes) are replaced with U+FFFD instead of being propagated raw. A bad
// byte must never be able to take down the host process.
func EncodeTransport(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
