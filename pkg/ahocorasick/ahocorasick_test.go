package ahocorasick

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	m := New([]string{"PORT_SCAN", "INVALID"})

	tests := []struct {
		reason string
		want   bool
	}{
		{"PORT_SCAN", true},
		{"INVALID", true},
		{"INVALID_FLAGS", true},
		{"SUSPECTED_PORT_SCAN_SYN", true},
		{"AUTH_FAIL", false},
		{"port_scan", false},
		{"PORT_SCA", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.reason))
		})
	}
}

func TestFoldCase(t *testing.T) {
	m := New([]string{"AUTH_FAIL"}, FoldCase())

	assert.True(t, m.Match("auth_fail"))
	assert.True(t, m.Match("Ssh_Auth_Fail"))
	assert.False(t, m.Match("auth-fail"))
}

func TestMatchAll(t *testing.T) {
	m := New([]string{"SCAN", "PORT", "INVALID", "XMAS"})

	assert.Equal(t, []string{"SCAN", "PORT", "INVALID"}, m.MatchAll("INVALID_PORT_SCAN"))
	assert.Nil(t, m.MatchAll("ACCEPTED"))
}

func TestOverlappingKeywords(t *testing.T) {
	// "she" and "he" share a suffix; "hers" only matches via the fail link
	// from the "she" branch.
	m := New([]string{"he", "she", "his", "hers"})

	assert.Equal(t, []string{"he", "she", "hers"}, m.MatchAll("ushers"))
	assert.Equal(t, []string{"his"}, m.MatchAll("this"))
}

func TestDropsEmptyAndDuplicateKeywords(t *testing.T) {
	m := New([]string{"", "INVALID", "INVALID", ""})

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []string{"INVALID"}, m.Keywords())
}

func TestEmptyMatcher(t *testing.T) {
	m := New(nil)

	assert.False(t, m.Match("PORT_SCAN"))
	assert.Nil(t, m.MatchAll("PORT_SCAN"))
}

func TestMatchAgreesWithContains(t *testing.T) {
	keywords := []string{"PORT_SCAN", "INVALID", "AUTH_FAIL", "FLOOD"}
	m := New(keywords)

	reasons := []string{"OK", "PORT_SCAN", "XINVALIDX", "AUTH_FAILURE", "SYN_FLOOD", "PORTSCAN", "INVALI"}
	for _, r := range reasons {
		want := false
		for _, kw := range keywords {
			if strings.Contains(r, kw) {
				want = true
			}
		}
		assert.Equal(t, want, m.Match(r), r)
	}
}

func BenchmarkMatch(b *testing.B) {
	m := New([]string{"PORT_SCAN", "INVALID", "AUTH_FAIL"})
	reason := "SUSPECTED_SYN_FLOOD_FROM_UPSTREAM"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Match(reason)
	}
}
