package unified_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tailored-agentic-units/voyager/memory"
	"github.com/tailored-agentic-units/voyager/unified"
)

func entries(kind memory.Kind, n int) []memory.Entry {
	out := make([]memory.Entry, n)
	for i := range out {
		out[i] = memory.Entry{Kind: kind, Content: fmt.Sprintf("%s %d", kind, i)}
	}
	return out
}

func TestDigest_Empty(t *testing.T) {
	assert.Equal(t, unified.NoMemories, unified.Digest(unified.NewBundle()))
	assert.Equal(t, unified.NoMemories, unified.Digest(unified.Bundle{}))
}

func TestDigest_DialogueOnlyIsEmpty(t *testing.T) {
	b := unified.NewBundle()
	b.Dialogue = entries(memory.KindDialogue, 2)
	assert.Equal(t, unified.NoMemories, unified.Digest(b))
}

func TestDigest_SectionCaps(t *testing.T) {
	b := unified.NewBundle()
	b.Skills = entries(memory.KindSkill, 5)
	b.Facts = entries(memory.KindFact, 4)
	b.Context = entries(memory.KindContext, 3)

	want := strings.Join([]string{
		"**Skills:**",
		"- skill 0...",
		"- skill 1...",
		"- skill 2...",
		"**Facts:**",
		"- fact 0...",
		"- fact 1...",
		"- fact 2...",
		"**Context:**",
		"- context 0...",
		"- context 1...",
	}, "\n")
	assert.Equal(t, want, unified.Digest(b))
}

func TestDigest_TruncatesRunes(t *testing.T) {
	b := unified.NewBundle()
	b.Context = []memory.Entry{{Kind: memory.KindContext, Content: strings.Repeat("é", 150)}}

	assert.Equal(t, "**Context:**\n- "+strings.Repeat("é", 100)+"...", unified.Digest(b))
}

func TestDigest_SkipsEmptySections(t *testing.T) {
	b := unified.NewBundle()
	b.Facts = entries(memory.KindFact, 1)

	assert.Equal(t, "**Facts:**\n- fact 0...", unified.Digest(b))
}
