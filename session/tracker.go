package session

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/voyager/memory"
)

type tracker struct {
	id      string
	started time.Time
	writes  map[memory.Kind]int
	now     func() time.Time
	mu      sync.RWMutex
}

// Option configures a Tracker.
type Option func(*tracker)

// WithClock sets the time source for session start and end times.
func WithClock(now func() time.Time) Option {
	return func(t *tracker) { t.now = now }
}

// NewTracker creates an idle Tracker. Each session it starts is assigned a
// unique UUIDv7 identifier.
func NewTracker(opts ...Option) Tracker {
	t := &tracker{
		writes: make(map[memory.Kind]int),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *tracker) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}

func (t *tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.id == "" {
		return StateIdle
	}
	return StateActive
}

func (t *tracker) Begin() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start()
	return t.id
}

func (t *tracker) Record(kind memory.Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start()
	t.writes[kind]++
}

func (t *tracker) start() {
	if t.id == "" {
		t.id = uuid.Must(uuid.NewV7()).String()
		t.started = t.now()
	}
}

func (t *tracker) Snapshot() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.summary(time.Time{})
}

func (t *tracker) Finalize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.summary(t.now())
	t.id = ""
	t.started = time.Time{}
	t.writes = make(map[memory.Kind]int)
	return s
}

func (t *tracker) summary(ended time.Time) Summary {
	return Summary{
		ID:      t.id,
		Started: t.started,
		Ended:   ended,
		Writes:  maps.Clone(t.writes),
	}
}
