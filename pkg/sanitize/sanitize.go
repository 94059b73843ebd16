// Package sanitize neutralizes untrusted log fields before they reach a
// terminal. Firewall logs are attacker-influenced: a reason column can
// carry escape sequences that repaint or hijack the operator's screen.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxField is the display cap applied by Field when maxLen <= 0.
const DefaultMaxField = 64

// BlankAddress is shown for records whose source address was blanked.
const BlankAddress = "-"

// Terminal replaces control bytes and ANSI escape sequences with visible
// placeholders. Clean input is returned unchanged without allocating.
func Terminal(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if isControl(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == 0x1B:
			i = skipEscape(s, i)
			b.WriteString("[ESC]")
			continue
		case c == '\t' || c == '\n':
			b.WriteByte(' ')
		case c == '\r':
			b.WriteString("[CR]")
		case c == 0x7F:
			b.WriteString("[DEL]")
		case c < 0x20:
			b.WriteString("[CTRL]")
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String()
}

// Field sanitizes s and truncates it to maxLen runes, marking the cut
// with "...". Invalid UTF-8 is replaced rather than split mid-sequence.
func Field(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxField
	}
	s = strings.ToValidUTF8(Terminal(s), "?")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

// Address keeps only the characters of a dotted-quad address. Empty input
// or input with nothing usable yields BlankAddress.
func Address(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; (c >= '0' && c <= '9') || c == '.' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return BlankAddress
	}
	return b.String()
}

func isControl(c byte) bool {
	return c < 0x20 || c == 0x7F
}

// skipEscape returns the index just past the escape sequence starting at i.
// CSI sequences run to their final byte; any other escape swallows one byte.
func skipEscape(s string, i int) int {
	i++
	if i >= len(s) {
		return i
	}
	if s[i] != '[' {
		return i + 1
	}
	i++
	for i < len(s) && !isCSIFinal(s[i]) {
		i++
	}
	if i < len(s) {
		i++
	}
	return i
}

func isCSIFinal(c byte) bool {
	return c >= 0x40 && c <= 0x7E
}
