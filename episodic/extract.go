package episodic

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	minTurnLength     = 20
	minSentenceLength = 10
	minTermLength     = 2
	maxObjectLength   = 100
	maxContextLength  = 200
	verbatimPredicate = "said"
	verbatimWeight    = 0.5
	dedupeObjectLimit = 30
)

type extractionPattern struct {
	re         *regexp.Regexp
	predicate  string
	importance float64
}

// Patterns are tried in order; the first that yields a usable
// subject and object wins for a sentence.
var extractionPatterns = []extractionPattern{
	{regexp.MustCompile(`(?i)(\w+)\s+(created|built|implemented|added)\s+(.+)`), "created", 0.9},
	{regexp.MustCompile(`(?i)(\w+)\s+(fixed|resolved|bug)\s+(.+)`), "fixed", 0.85},
	{regexp.MustCompile(`(?i)(\w+)\s+(decided|chose|chosen)\s+(.+)`), "decided", 0.9},
	{regexp.MustCompile(`(?i)(\w+)\s+(uses?|using|utilizes?)\s+(.+)`), "uses", 0.8},
	{regexp.MustCompile(`(?i)(\w+)\s+(depends on|requires|needs)\s+(.+)`), "depends on", 0.85},
	{regexp.MustCompile(`(?i)(\w+)\s+(stored|saved|persisted)\s+(.+)`), "stores", 0.75},
	{regexp.MustCompile(`(?i)(\w+)\s+(exposed|provides?|offers?)\s+(.+)`), "provides", 0.8},
	{regexp.MustCompile(`(?i)(\w+)\s+(called|named|referenced as)\s+(.+)`), "called", 0.7},
	{regexp.MustCompile(`(?i)(\w+)\s+(handled|managed|processed)\s+(.+)`), "handles", 0.75},
	{regexp.MustCompile(`(?i)(\w+)\s+(generated|produced|returned)\s+(.+)`), "generates", 0.7},
}

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// Extract distills one turn into atomic facts. Pattern extraction runs only
// on turns of at least minTurnLength characters; any non-blank turn that
// yields no pattern fact becomes a single verbatim fact attributed to its
// speaker, so compression never loses a turn.
func Extract(t Turn) []Fact {
	if strings.TrimSpace(t.Content) == "" {
		return nil
	}

	var facts []Fact
	if utf8.RuneCountInString(t.Content) < minTurnLength {
		return append(facts, verbatim(t, uuid.Must(uuid.NewV7()).String()))
	}
	for _, sentence := range sentenceBreak.Split(t.Content, -1) {
		sentence = strings.TrimSpace(sentence)
		if utf8.RuneCountInString(sentence) <= minSentenceLength {
			continue
		}
		if f, ok := matchSentence(t, sentence); ok {
			facts = append(facts, f)
		}
	}

	if len(facts) == 0 {
		facts = append(facts, verbatim(t, uuid.Must(uuid.NewV7()).String()))
	}
	return facts
}

func matchSentence(t Turn, sentence string) (Fact, bool) {
	for _, p := range extractionPatterns {
		m := p.re.FindStringSubmatch(sentence)
		if len(m) < 4 {
			continue
		}
		subject := strings.TrimSpace(m[1])
		object := truncate(strings.TrimSpace(m[3]), maxObjectLength)
		if len(subject) <= minTermLength || utf8.RuneCountInString(object) <= minTermLength {
			continue
		}
		return Fact{
			ID:         uuid.Must(uuid.NewV7()).String(),
			Subject:    subject,
			Predicate:  p.predicate,
			Object:     object,
			Context:    truncate(sentence, maxContextLength),
			Importance: p.importance,
			Timestamp:  t.Timestamp,
			Speaker:    t.Speaker,
			Session:    t.Session,
			Turn:       t.Seq,
		}, true
	}
	return Fact{}, false
}

// verbatim represents a whole turn as a fact spoken by its speaker.
func verbatim(t Turn, id string) Fact {
	content := strings.TrimSpace(t.Content)
	return Fact{
		ID:         id,
		Subject:    t.Speaker,
		Predicate:  verbatimPredicate,
		Object:     truncate(content, maxObjectLength),
		Context:    truncate(content, maxContextLength),
		Importance: verbatimWeight,
		Timestamp:  t.Timestamp,
		Speaker:    t.Speaker,
		Session:    t.Session,
		Turn:       t.Seq,
	}
}

// Consolidate merges incoming facts into existing ones. Facts sharing a
// subject, predicate and object prefix collapse to the one with the higher
// importance (the earlier on a tie). The result is ordered by descending
// importance and holds at most limit facts; limit <= 0 keeps everything.
func Consolidate(existing, incoming []Fact, limit int) []Fact {
	index := make(map[string]int, len(existing)+len(incoming))
	merged := make([]Fact, 0, len(existing)+len(incoming))

	for _, group := range [][]Fact{existing, incoming} {
		for _, f := range group {
			key := dedupeKey(f)
			if i, ok := index[key]; ok {
				if f.Importance > merged[i].Importance {
					merged[i] = f
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, f)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Importance > merged[j].Importance
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func dedupeKey(f Fact) string {
	return f.Subject + ":" + f.Predicate + ":" + truncate(f.Object, dedupeObjectLimit)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
