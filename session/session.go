// Package session tracks the write activity of one agent's memory session
// between its first write and its finalization.
package session

import (
	"time"

	"github.com/tailored-agentic-units/voyager/memory"
)

// State is the lifecycle position of a Tracker.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// Summary describes one session. ID is empty and Started is zero for a
// session that never started.
type Summary struct {
	ID      string              `json:"id,omitempty"`
	Started time.Time           `json:"started,omitzero"`
	Ended   time.Time           `json:"ended,omitzero"`
	Writes  map[memory.Kind]int `json:"writes"`
}

// Total returns the number of writes across all kinds.
func (s Summary) Total() int {
	n := 0
	for _, c := range s.Writes {
		n += c
	}
	return n
}

// Tracker follows a session through Idle → Active → Idle. Implementations
// must be safe for concurrent use.
type Tracker interface {
	// ID returns the active session identifier, empty while idle.
	ID() string
	// State returns the current lifecycle state.
	State() State
	// Begin returns the active session identifier, starting a session when
	// idle.
	Begin() string
	// Record counts one successful write, starting a session when idle.
	Record(kind memory.Kind)
	// Snapshot returns the active session so far without ending it.
	Snapshot() Summary
	// Finalize ends the active session, returns its summary and moves the
	// tracker back to idle.
	Finalize() Summary
}
