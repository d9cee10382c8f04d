package memory

import "strings"

// Matcher decides whether an entry is relevant to a recall query.
type Matcher interface {
	Match(query string, e Entry) bool
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(query string, e Entry) bool

func (f MatcherFunc) Match(query string, e Entry) bool {
	return f(query, e)
}

// TokenMatcher splits the query on whitespace and matches an entry when any
// token occurs, ignoring case, anywhere in its content. A query with no
// tokens matches nothing.
type TokenMatcher struct{}

func (TokenMatcher) Match(query string, e Entry) bool {
	content := strings.ToLower(e.Content)
	for _, token := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(content, token) {
			return true
		}
	}
	return false
}
