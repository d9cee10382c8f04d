package unified

import (
	"context"

	"github.com/tailored-agentic-units/voyager/memory"
	"github.com/tailored-agentic-units/voyager/session"
)

// Storage layers a write can land in.
const (
	LayerEntry    = "entry"
	LayerEpisodic = "episodic"
)

// Handle is the programmatic surface of one agent memory space.
type Handle interface {
	Store(ctx context.Context, req StoreRequest) Result
	Recall(ctx context.Context, query string, opts RecallOptions) Bundle
	Stats(ctx context.Context) Stats
	FinalizeSession(ctx context.Context) Result
	Close() error
}

// Classifier picks a kind for content stored without one.
type Classifier interface {
	Classify(content string) memory.Kind
}

// StoreRequest describes one observation to store. A zero Kind asks the
// classifier; a zero Speaker, Timestamp or Metadata takes the default.
type StoreRequest struct {
	Content   string         `json:"content"`
	Kind      memory.Kind    `json:"type,omitempty"`
	Speaker   string         `json:"speaker,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Result reports the outcome of a write or a session finalization. Err is
// set whenever OK is false.
type Result struct {
	OK      bool             `json:"ok"`
	Kind    memory.Kind      `json:"type,omitempty"`
	Layer   string           `json:"layer,omitempty"`
	Session *session.Summary `json:"session,omitempty"`
	Err     error            `json:"-"`
}

// Error returns the failure text, or "" for a successful result.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// RecallOptions narrows a recall. An empty Kinds means every kind and a
// non-positive Limit means the configured recall limit.
type RecallOptions struct {
	Kinds []memory.Kind `json:"types,omitempty"`
	Limit int           `json:"limit,omitempty"`
}

// Bundle holds recall results keyed by kind. The slices are never nil so
// the JSON form always carries all four keys.
type Bundle struct {
	Skills   []memory.Entry `json:"skills"`
	Facts    []memory.Entry `json:"facts"`
	Context  []memory.Entry `json:"context"`
	Dialogue []memory.Entry `json:"dialogue"`
	Err      error          `json:"-"`
}

// NewBundle returns a Bundle with every slot empty.
func NewBundle() Bundle {
	return Bundle{
		Skills:   []memory.Entry{},
		Facts:    []memory.Entry{},
		Context:  []memory.Entry{},
		Dialogue: []memory.Entry{},
	}
}

// Get returns the slot for kind.
func (b Bundle) Get(kind memory.Kind) []memory.Entry {
	if s := b.slot(kind); s != nil {
		return *s
	}
	return nil
}

// Len returns the number of entries across all slots.
func (b Bundle) Len() int {
	return len(b.Skills) + len(b.Facts) + len(b.Context) + len(b.Dialogue)
}

func (b *Bundle) slot(kind memory.Kind) *[]memory.Entry {
	switch kind {
	case memory.KindSkill:
		return &b.Skills
	case memory.KindFact:
		return &b.Facts
	case memory.KindContext:
		return &b.Context
	case memory.KindDialogue:
		return &b.Dialogue
	default:
		return nil
	}
}

// KindCounts counts entries per kind.
type KindCounts struct {
	Skills   int `json:"skills"`
	Facts    int `json:"facts"`
	Context  int `json:"context"`
	Dialogue int `json:"dialogue"`
}

// Total sums the four counts.
func (c KindCounts) Total() int {
	return c.Skills + c.Facts + c.Context + c.Dialogue
}

// Get returns the count for kind.
func (c KindCounts) Get(kind memory.Kind) int {
	switch kind {
	case memory.KindSkill:
		return c.Skills
	case memory.KindFact:
		return c.Facts
	case memory.KindContext:
		return c.Context
	case memory.KindDialogue:
		return c.Dialogue
	default:
		return 0
	}
}

func (c *KindCounts) add(kind memory.Kind, n int) {
	switch kind {
	case memory.KindSkill:
		c.Skills += n
	case memory.KindFact:
		c.Facts += n
	case memory.KindContext:
		c.Context += n
	case memory.KindDialogue:
		c.Dialogue += n
	}
}

// EntryStoreStats describes the entry document.
type EntryStoreStats struct {
	Entries   int    `json:"entries"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
}

// EpisodicStats describes the episodic engine. Turns, Pending and Facts are
// only meaningful when CountsKnown is true.
type EpisodicStats struct {
	Available   bool `json:"available"`
	CountsKnown bool `json:"counts_known"`
	Turns       int  `json:"turns"`
	Pending     int  `json:"pending"`
	Facts       int  `json:"facts"`
}

// Stats is a point-in-time summary of a memory space.
type Stats struct {
	TotalEntries int             `json:"total_entries"`
	Counts       KindCounts      `json:"memory_types"`
	EntryStore   EntryStoreStats `json:"entry_store"`
	Episodic     EpisodicStats   `json:"episodic"`
	Session      session.Summary `json:"session"`
	Err          error           `json:"-"`
}
