package unified

import (
	"strings"

	"github.com/tailored-agentic-units/voyager/memory"
)

// NoMemories is the digest of a bundle with nothing to show.
const NoMemories = "No relevant memories found."

const digestWidth = 100

var digestSections = []struct {
	heading string
	kind    memory.Kind
	max     int
}{
	{"**Skills:**", memory.KindSkill, 3},
	{"**Facts:**", memory.KindFact, 3},
	{"**Context:**", memory.KindContext, 2},
}

// Digest renders a bundle as a short markdown summary: up to three skills,
// three facts and two context entries, each cut to its first 100
// characters. Dialogue is not shown.
func Digest(b Bundle) string {
	var lines []string
	for _, s := range digestSections {
		entries := b.Get(s.kind)
		if len(entries) == 0 {
			continue
		}
		lines = append(lines, s.heading)
		for _, e := range entries[:min(len(entries), s.max)] {
			lines = append(lines, "- "+prefix(e.Content, digestWidth)+"...")
		}
	}

	if len(lines) == 0 {
		return NoMemories
	}
	return strings.Join(lines, "\n")
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
