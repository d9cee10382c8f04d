// Package memory provides the entry layer of the unified memory: skill and
// context observations kept in insertion order inside one structured document
// per agent.
package memory

import "context"

// Store persists the ordered entry sequence of one agent.
type Store interface {
	// Load returns every stored entry in insertion order. A missing or
	// unparseable document yields an empty sequence and a nil error.
	Load(ctx context.Context) ([]Entry, error)
	// Append adds e to the end of the sequence. Either the whole updated
	// document lands or the previous one is left in place.
	Append(ctx context.Context, e Entry) error
}

// Observer receives notices about document content that Load had to skip.
// It is satisfied by a plain func via ObserverFunc.
type Observer interface {
	Skipped(path string, index int, reason string)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(path string, index int, reason string)

func (f ObserverFunc) Skipped(path string, index int, reason string) {
	f(path, index, reason)
}
