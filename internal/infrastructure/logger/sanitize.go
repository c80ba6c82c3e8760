package logger

import (
	"fmt"
	"strings"
	"unicode"
)

// SanitizeForLog makes an outside string safe to embed in a single log line.
// Source paths, torrent names and ffmpeg stderr tails all reach the logs, and
// any of them can carry line breaks or terminal escapes. Printable Unicode is
// kept as is.
func SanitizeForLog(s string) string {
	if strings.IndexFunc(s, unsafeRune) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case unsafeRune(r):
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// unsafeRune covers C0 and C1 controls plus the Unicode line and paragraph
// separators, which some viewers render as a new line.
func unsafeRune(r rune) bool {
	return unicode.IsControl(r) || r == '\u2028' || r == '\u2029'
}
