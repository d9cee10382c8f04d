package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tailored-agentic-units/voyager/memory"
)

func TestTokenMatcher(t *testing.T) {
	entry := memory.Entry{Kind: memory.KindSkill, Content: "To run Nmap, use flags -sV"}

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{name: "single token case-insensitive", query: "nmap", want: true},
		{name: "any token matches", query: "sqlmap nmap", want: true},
		{name: "substring of a word", query: "fla", want: true},
		{name: "no token present", query: "sqlmap burp", want: false},
		{name: "empty query", query: "", want: false},
		{name: "whitespace query", query: "  \t ", want: false},
	}

	var m memory.TokenMatcher
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.query, entry))
		})
	}
}

func TestMatcherFunc(t *testing.T) {
	m := memory.MatcherFunc(func(query string, e memory.Entry) bool {
		return e.Content == query
	})
	assert.True(t, m.Match("exact", memory.Entry{Content: "exact"}))
	assert.False(t, m.Match("exact", memory.Entry{Content: "exactly"}))
}
