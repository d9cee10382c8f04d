package memory

import "time"

// DefaultSpeaker attributes entries stored without an explicit speaker.
const DefaultSpeaker = "user"

// Entry is a single stored observation. The JSON layout matches the
// unified_memory document on disk: {type, content, metadata, timestamp,
// speaker}. Source is set only on synthetic recall results.
type Entry struct {
	Kind      Kind           `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp string         `json:"timestamp"`
	Speaker   string         `json:"speaker"`
	Source    string         `json:"source,omitempty"`
}

// Timestamp formats t the way entries record their store time.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
