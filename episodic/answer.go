package episodic

import (
	"context"
	"strings"
)

// Answerer turns the facts selected for a question into answer text.
type Answerer interface {
	Answer(ctx context.Context, query string, facts []Fact) (string, error)
}

// AnswerFunc adapts a function to the Answerer interface.
type AnswerFunc func(ctx context.Context, query string, facts []Fact) (string, error)

func (f AnswerFunc) Answer(ctx context.Context, query string, facts []Fact) (string, error) {
	return f(ctx, query, facts)
}

// Extractive answers with the selected facts themselves, one statement per
// line, best first.
type Extractive struct{}

func (Extractive) Answer(_ context.Context, _ string, facts []Fact) (string, error) {
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, f.Statement())
	}
	return strings.Join(lines, "\n"), nil
}
