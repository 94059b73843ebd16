package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean string", "PORT_SCAN", "PORT_SCAN"},
		{"ansi colour", "\x1b[31mAUTH_FAIL\x1b[0m", "[ESC]AUTH_FAIL[ESC]"},
		{"screen clear payload", "\x1b[2J\x1b[HOK", "[ESC][ESC]OK"},
		{"bare escape", "a\x1bcb", "a[ESC]b"},
		{"trailing escape", "a\x1b", "a[ESC]"},
		{"tab and newline", "a\tb\nc", "a b c"},
		{"carriage return", "OK\rDENY", "OK[CR]DENY"},
		{"control byte", "a\x01b", "a[CTRL]b"},
		{"delete byte", "a\x7fb", "a[DEL]b"},
		{"empty", "", ""},
		{"unicode untouched", "débit", "débit"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Terminal(tc.input))
		})
	}
}

func TestField(t *testing.T) {
	assert.Equal(t, "PORT_SCAN", Field("PORT_SCAN", 20))
	assert.Equal(t, "PORT_...", Field("PORT_SCAN", 8))
	assert.Equal(t, "PO", Field("PORT_SCAN", 2))
	assert.Equal(t, "ééé...", Field("éééééééé", 6), "truncation counts runes")
	assert.Equal(t, "a?b", Field("a\xffb", 10))
	assert.Len(t, []rune(Field(string(make([]byte, 500)), 0)), DefaultMaxField)
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "203.0.113.50", Address("203.0.113.50"))
	assert.Equal(t, "10.0.0.5", Address("\x1b[31m10.0.0.5"))
	assert.Equal(t, BlankAddress, Address(""))
	assert.Equal(t, BlankAddress, Address("host-x"))
}

func BenchmarkTerminalClean(b *testing.B) {
	s := "2025-11-28 09:00:01 203.0.113.50 DENY PORT_SCAN"
	for i := 0; i < b.N; i++ {
		_ = Terminal(s)
	}
}
