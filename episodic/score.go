package episodic

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTokenLength = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "any": {}, "can": {}, "was": {}, "our": {}, "has": {}, "had": {},
	"how": {}, "its": {}, "did": {}, "who": {}, "why": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "with": {}, "this": {}, "that": {}, "from": {},
	"have": {}, "been": {}, "were": {}, "they": {}, "them": {}, "then": {},
	"than": {}, "there": {}, "their": {}, "about": {}, "into": {}, "does": {},
	"tell": {}, "know": {},
}

// Tokenize splits a query into distinct lower-cased alphanumeric words of at
// least three characters, dropping common stop words. Order of first
// occurrence is kept.
func Tokenize(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < minTokenLength {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	return tokens
}

// Score rates how well f matches tokens. Each token found in the subject
// adds 3, in the predicate 2, in the object 2 and in the context 1.
func Score(tokens []string, f Fact) int {
	subject := strings.ToLower(f.Subject)
	predicate := strings.ToLower(f.Predicate)
	object := strings.ToLower(f.Object)
	context := strings.ToLower(f.Context)

	score := 0
	for _, tok := range tokens {
		if strings.Contains(subject, tok) {
			score += 3
		}
		if strings.Contains(predicate, tok) {
			score += 2
		}
		if strings.Contains(object, tok) {
			score += 2
		}
		if strings.Contains(context, tok) {
			score += 1
		}
	}
	return score
}

// Rank returns at most k candidates with a positive score, best first.
// Ties on score go to the more important fact, then to candidate order.
func Rank(tokens []string, candidates []Fact, k int) []Fact {
	type scored struct {
		fact  Fact
		score int
	}

	hits := make([]scored, 0, len(candidates))
	for _, f := range candidates {
		if s := Score(tokens, f); s > 0 {
			hits = append(hits, scored{fact: f, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].fact.Importance > hits[j].fact.Importance
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	out := make([]Fact, len(hits))
	for i, h := range hits {
		out[i] = h.fact
	}
	return out
}
