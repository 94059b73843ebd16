// Package ahocorasick finds which of a fixed set of keywords occur in a
// string in a single pass over the input.
//
// The detection rules use it to test firewall reason fields against the
// configured reason keywords ("PORT_SCAN", "INVALID", ...).
//
// Thread Safety: a Matcher is immutable after New and safe for concurrent use.
package ahocorasick

import "strings"

// Matcher is a compiled keyword automaton. States live in a flat slice and
// refer to each other by index.
type Matcher struct {
	states   []state
	keywords []string
	foldCase bool
}

type state struct {
	next   map[byte]int
	fail   int
	output []int // keyword indices ending here, including via fail links
}

// Option configures a Matcher.
type Option func(*Matcher)

// FoldCase makes matching ASCII case-insensitive.
func FoldCase() Option {
	return func(m *Matcher) { m.foldCase = true }
}

// New compiles keywords. Empty and duplicate keywords are dropped; matching
// is byte-exact unless FoldCase is given.
func New(keywords []string, opts ...Option) *Matcher {
	m := &Matcher{states: []state{{next: map[byte]int{}}}}
	for _, opt := range opts {
		opt(m)
	}

	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		if m.foldCase {
			kw = strings.ToLower(kw)
		}
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		m.insert(kw, len(m.keywords))
		m.keywords = append(m.keywords, kw)
	}
	m.link()
	return m
}

func (m *Matcher) insert(kw string, idx int) {
	cur := 0
	for i := 0; i < len(kw); i++ {
		c := kw[i]
		nxt, ok := m.states[cur].next[c]
		if !ok {
			m.states = append(m.states, state{next: map[byte]int{}})
			nxt = len(m.states) - 1
			m.states[cur].next[c] = nxt
		}
		cur = nxt
	}
	m.states[cur].output = append(m.states[cur].output, idx)
}

// link computes fail transitions breadth first so every state's fail
// target is already final when the state is visited.
func (m *Matcher) link() {
	queue := make([]int, 0, len(m.states))
	for _, child := range m.states[0].next {
		m.states[child].fail = 0
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for c, child := range m.states[cur].next {
			queue = append(queue, child)
			f := m.states[cur].fail
			for {
				if nxt, ok := m.states[f].next[c]; ok && nxt != child {
					m.states[child].fail = nxt
					break
				}
				if f == 0 {
					m.states[child].fail = 0
					break
				}
				f = m.states[f].fail
			}
			fail := m.states[child].fail
			m.states[child].output = append(m.states[child].output, m.states[fail].output...)
		}
	}
}

func (m *Matcher) step(cur int, c byte) int {
	if m.foldCase && 'A' <= c && c <= 'Z' {
		c += 'a' - 'A'
	}
	for {
		if nxt, ok := m.states[cur].next[c]; ok {
			return nxt
		}
		if cur == 0 {
			return 0
		}
		cur = m.states[cur].fail
	}
}

// Match reports whether any keyword occurs in text.
func (m *Matcher) Match(text string) bool {
	if len(m.keywords) == 0 {
		return false
	}
	cur := 0
	for i := 0; i < len(text); i++ {
		cur = m.step(cur, text[i])
		if len(m.states[cur].output) > 0 {
			return true
		}
	}
	return false
}

// MatchAll returns the distinct keywords found in text, in the order they
// were given to New.
func (m *Matcher) MatchAll(text string) []string {
	if len(m.keywords) == 0 {
		return nil
	}
	found := make([]bool, len(m.keywords))
	cur := 0
	for i := 0; i < len(text); i++ {
		cur = m.step(cur, text[i])
		for _, idx := range m.states[cur].output {
			found[idx] = true
		}
	}
	var out []string
	for idx, ok := range found {
		if ok {
			out = append(out, m.keywords[idx])
		}
	}
	return out
}

// Keywords returns the compiled keywords.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

func (m *Matcher) Len() int {
	return len(m.keywords)
}
