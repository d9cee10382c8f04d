// Package classify assigns a memory kind to free-text observations using
// ordered keyword rules.
package classify

import (
	"strings"

	"github.com/tailored-agentic-units/voyager/memory"
)

// Rules holds the keyword table for each non-default kind. Tables are
// consulted in the order skill, fact, context; content matching none of them
// is dialogue.
type Rules struct {
	Skill   []string `json:"skill,omitempty" yaml:"skill,omitempty"`
	Fact    []string `json:"fact,omitempty" yaml:"fact,omitempty"`
	Context []string `json:"context,omitempty" yaml:"context,omitempty"`
}

// DefaultRules returns the built-in keyword tables.
func DefaultRules() Rules {
	return Rules{
		Skill:   []string{"how to", "workflow", "pattern", "technique", "method", "process"},
		Fact:    []string{"when", "what", "where", "who", "result", "outcome", "found"},
		Context: []string{"project", "session", "working on", "current", "status"},
	}
}

// Merge replaces each table of r with the matching table of source when the
// source table is non-empty.
func (r *Rules) Merge(source *Rules) {
	if len(source.Skill) > 0 {
		r.Skill = source.Skill
	}
	if len(source.Fact) > 0 {
		r.Fact = source.Fact
	}
	if len(source.Context) > 0 {
		r.Context = source.Context
	}
}

// Decision is the outcome of classifying one piece of content. Keyword is
// the rule keyword that matched, empty when the content fell through to
// dialogue.
type Decision struct {
	Kind    memory.Kind `json:"kind"`
	Keyword string      `json:"keyword,omitempty"`
}

type rule struct {
	kind     memory.Kind
	keywords []string
}

// Classifier is a pure, deterministic keyword classifier. The zero value is
// not usable; construct with New.
type Classifier struct {
	rules []rule
}

// New builds a Classifier from rules. Empty tables fall back to the
// defaults.
func New(rules Rules) *Classifier {
	r := DefaultRules()
	r.Merge(&rules)

	return &Classifier{
		rules: []rule{
			{kind: memory.KindSkill, keywords: lower(r.Skill)},
			{kind: memory.KindFact, keywords: lower(r.Fact)},
			{kind: memory.KindContext, keywords: lower(r.Context)},
		},
	}
}

// Default returns a Classifier over DefaultRules.
func Default() *Classifier {
	return New(Rules{})
}

// Classify returns the kind for content. The first table with any keyword
// occurring in the lower-cased content wins.
func (c *Classifier) Classify(content string) memory.Kind {
	return c.Explain(content).Kind
}

// Explain classifies content and reports the deciding keyword.
func (c *Classifier) Explain(content string) Decision {
	text := strings.ToLower(content)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return Decision{Kind: r.kind, Keyword: kw}
			}
		}
	}
	return Decision{Kind: memory.KindDialogue}
}

func lower(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
