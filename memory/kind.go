package memory

import (
	"fmt"
	"strings"
)

// Kind classifies the semantic role of a memory entry. The set is closed:
// only the four constants below are valid, and an entry's kind never changes
// once it has been written.
type Kind string

const (
	KindSkill    Kind = "skill"    // Procedural knowledge (how to do things).
	KindFact     Kind = "fact"     // Episodic knowledge (what happened).
	KindContext  Kind = "context"  // Project or session context.
	KindDialogue Kind = "dialogue" // Conversational memory.
)

// Kinds returns every valid kind in canonical order.
func Kinds() []Kind {
	return []Kind{KindSkill, KindFact, KindContext, KindDialogue}
}

// ParseKind converts user input into a Kind. Matching ignores case and
// surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of the four memory kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSkill, KindFact, KindContext, KindDialogue:
		return true
	default:
		return false
	}
}

// Episodic reports whether entries of this kind belong to the episodic layer
// rather than the entry document.
func (k Kind) Episodic() bool {
	switch k {
	case KindFact, KindDialogue:
		return true
	case KindSkill, KindContext:
		return false
	default:
		return false
	}
}

// Slot returns the result-bundle key for the kind.
func (k Kind) Slot() string {
	switch k {
	case KindSkill:
		return "skills"
	case KindFact:
		return "facts"
	case KindContext:
		return "context"
	case KindDialogue:
		return "dialogue"
	default:
		return ""
	}
}

func (k Kind) String() string {
	return string(k)
}
