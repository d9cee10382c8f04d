// Package episodic implements the conversational layer of the unified
// memory: an append-only log of dialogue turns, compression of those turns
// into atomic facts, and question answering over the facts.
//
// Storage is pluggable through Backend. Store carries the behavior shared by
// every backend, so extraction, ranking and answering are identical whether
// turns live in badger or sqlite.
package episodic

import (
	"context"
	"time"
)

// Engine is the capability contract the unified memory routes fact and
// dialogue observations to.
type Engine interface {
	// Append records one conversational turn.
	Append(ctx context.Context, t Turn) error

	// Ask answers a free-text question from stored knowledge. An empty
	// answer with a nil error means nothing relevant was found.
	Ask(ctx context.Context, query string) (string, error)

	// Compress distills pending turns into facts.
	Compress(ctx context.Context) error

	// Available reports whether calls can be expected to succeed.
	Available() bool

	Close() error
}

// Counter is implemented by engines that can report how much they hold.
type Counter interface {
	Counts(ctx context.Context) (Counts, error)
}

// Turn is one conversational message.
type Turn struct {
	Seq        uint64         `json:"seq"`
	Speaker    string         `json:"speaker"`
	Content    string         `json:"content"`
	Session    string         `json:"session,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Compressed bool           `json:"compressed"`
}

// Fact is an atomic subject/predicate/object statement extracted from a
// turn.
type Fact struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Predicate  string    `json:"predicate"`
	Object     string    `json:"object"`
	Context    string    `json:"context"`
	Importance float64   `json:"importance"`
	Timestamp  time.Time `json:"timestamp"`
	Speaker    string    `json:"speaker"`
	Session    string    `json:"session,omitempty"`
	Turn       uint64    `json:"turn"`
}

// Statement renders the fact as a single line.
func (f Fact) Statement() string {
	return f.Subject + " " + f.Predicate + " " + f.Object
}

// Counts summarises the contents of an engine.
type Counts struct {
	Turns   int `json:"turns"`
	Pending int `json:"pending"`
	Facts   int `json:"facts"`
}
