package unified_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/voyager/episodic"
	"github.com/tailored-agentic-units/voyager/memory"
	"github.com/tailored-agentic-units/voyager/observability"
	"github.com/tailored-agentic-units/voyager/unified"
)

// --- Test helpers ---

var fixedTime = time.Date(2025, 1, 11, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

// fakeEngine records calls and returns configured results.
type fakeEngine struct {
	mu          sync.Mutex
	unavailable bool
	turns       []episodic.Turn
	answer      string
	appendErr   error
	askErr      error
	compressErr error
	asks        int
	compresses  int
	closes      int
}

func (e *fakeEngine) Append(_ context.Context, t episodic.Turn) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.appendErr != nil {
		return e.appendErr
	}
	e.turns = append(e.turns, t)
	return nil
}

func (e *fakeEngine) Ask(context.Context, string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.asks++
	return e.answer, e.askErr
}

func (e *fakeEngine) Compress(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compresses++
	return e.compressErr
}

func (e *fakeEngine) Available() bool { return !e.unavailable }

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closes++
	return nil
}

// countingEngine adds episodic.Counter to fakeEngine.
type countingEngine struct {
	*fakeEngine
	counts episodic.Counts
	err    error
}

func (e countingEngine) Counts(context.Context) (episodic.Counts, error) {
	return e.counts, e.err
}

// failingStore fails every operation with err.
type failingStore struct{ err error }

func (s failingStore) Load(context.Context) ([]memory.Entry, error) { return nil, s.err }
func (s failingStore) Append(context.Context, memory.Entry) error   { return s.err }

// eventLog collects observer events.
type eventLog struct {
	mu     sync.Mutex
	events []observability.Event
}

func (l *eventLog) OnEvent(_ context.Context, e observability.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []observability.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]observability.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func testConfig(t *testing.T) *unified.Config {
	t.Helper()
	return &unified.Config{
		ProjectDir: t.TempDir(),
		AgentName:  "tester",
		Observer:   "noop",
	}
}

func newTestMemory(t *testing.T, engine episodic.Engine, opts ...unified.Option) *unified.Memory {
	t.Helper()
	opts = append([]unified.Option{unified.WithEngine(engine), unified.WithClock(fixedClock)}, opts...)
	m, err := unified.New(testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func loadEntries(t *testing.T, m *unified.Memory) []memory.Entry {
	t.Helper()
	entries, err := memory.NewFileStore(filepath.Join(m.Dir(), memory.DefaultFileName)).Load(context.Background())
	require.NoError(t, err)
	return entries
}

// --- Construction ---

func TestNew_CreatesMemoryDir(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})

	assert.Equal(t, "tester", m.Agent())
	assert.DirExists(t, m.Dir())
	assert.True(t, strings.HasSuffix(m.Dir(), filepath.Join(".voyager", "memory", "tester")))

	cfg := m.Config()
	assert.Equal(t, cfg.MemoryDir(), m.Dir())
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  unified.Config
	}{
		{name: "agent with separator", cfg: unified.Config{AgentName: "a/b"}},
		{name: "relative agent", cfg: unified.Config{AgentName: ".."}},
		{name: "unknown observer", cfg: unified.Config{Observer: "stdout"}},
		{name: "unknown backend", cfg: unified.Config{Episodic: episodic.Config{Backend: "redis"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ProjectDir = t.TempDir()
			_, err := unified.New(&tt.cfg)
			require.ErrorIs(t, err, unified.ErrInvalidConfig)
		})
	}
}

func TestNew_UncreatableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	_, err := unified.New(&unified.Config{ProjectDir: blocker, Observer: "noop"})
	assert.Error(t, err)
}

func TestNew_DegradedMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Episodic.Backend = episodic.BackendNone
	log := &eventLog{}

	m, err := unified.New(cfg, unified.WithObserver(log))
	require.NoError(t, err)
	defer m.Close()

	assert.Contains(t, log.types(), unified.EventDegraded)

	ctx := context.Background()
	res := m.Store(ctx, unified.StoreRequest{Content: "Found XSS in search field"})
	assert.False(t, res.OK)
	assert.Equal(t, memory.KindFact, res.Kind)
	require.ErrorIs(t, res.Err, episodic.ErrUnavailable)

	res = m.Store(ctx, unified.StoreRequest{Content: "How to run the scanner"})
	assert.True(t, res.OK)

	bundle := m.Recall(ctx, "scanner XSS", unified.RecallOptions{})
	require.NoError(t, bundle.Err)
	assert.Len(t, bundle.Skills, 1)
	assert.Empty(t, bundle.Facts)

	fin := m.FinalizeSession(ctx)
	assert.True(t, fin.OK)

	stats := m.Stats(ctx)
	assert.False(t, stats.Episodic.Available)
	assert.False(t, stats.Episodic.CountsKnown)
}

// --- Store ---

func TestMemory_Store_RoutesByClassifiedKind(t *testing.T) {
	tests := []struct {
		content string
		kind    memory.Kind
		layer   string
	}{
		{"How to run an nmap scan", memory.KindSkill, unified.LayerEntry},
		{"The workflow for what we found", memory.KindSkill, unified.LayerEntry},
		{"Found XSS in the search field", memory.KindFact, unified.LayerEpisodic},
		{"Working on the billing API", memory.KindContext, unified.LayerEntry},
		{"thanks, looks good", memory.KindDialogue, unified.LayerEpisodic},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			engine := &fakeEngine{}
			m := newTestMemory(t, engine)

			res := m.Store(context.Background(), unified.StoreRequest{Content: tt.content})
			require.True(t, res.OK, res.Error())
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.layer, res.Layer)

			entries := loadEntries(t, m)
			if tt.layer == unified.LayerEntry {
				require.Len(t, entries, 1)
				assert.Equal(t, tt.kind, entries[0].Kind)
				assert.Empty(t, engine.turns)
			} else {
				assert.Empty(t, entries)
				require.Len(t, engine.turns, 1)
				assert.Equal(t, tt.content, engine.turns[0].Content)
			}
		})
	}
}

func TestMemory_Store_ExplicitKindOverridesClassifier(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})

	res := m.Store(context.Background(), unified.StoreRequest{Content: "how to deploy", Kind: "CONTEXT"})
	require.True(t, res.OK)
	assert.Equal(t, memory.KindContext, res.Kind)
}

func TestMemory_Store_EmptyContent(t *testing.T) {
	log := &eventLog{}
	m := newTestMemory(t, &fakeEngine{}, unified.WithObserver(log))

	for _, content := range []string{"", "   ", "\n\t"} {
		res := m.Store(context.Background(), unified.StoreRequest{Content: content, Kind: memory.KindSkill})
		assert.False(t, res.OK)
		require.ErrorIs(t, res.Err, memory.ErrEmptyContent)
	}

	assert.NoFileExists(t, filepath.Join(m.Dir(), memory.DefaultFileName))
	assert.Contains(t, log.types(), unified.EventStoreFailed)
	assert.NotContains(t, log.types(), unified.EventStore)
}

func TestMemory_Store_InvalidKind(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})

	res := m.Store(context.Background(), unified.StoreRequest{Content: "tabs over spaces", Kind: "opinion"})
	assert.False(t, res.OK)
	require.ErrorIs(t, res.Err, memory.ErrInvalidKind)
}

func TestMemory_Store_Defaults(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})

	res := m.Store(context.Background(), unified.StoreRequest{Content: "how to lint", Kind: memory.KindSkill})
	require.True(t, res.OK)

	entries := loadEntries(t, m)
	require.Len(t, entries, 1)
	assert.Equal(t, memory.DefaultSpeaker, entries[0].Speaker)
	assert.Equal(t, memory.Timestamp(fixedTime), entries[0].Timestamp)
	assert.NotNil(t, entries[0].Metadata)
	assert.Empty(t, entries[0].Source)
}

func TestMemory_Store_KeepsCallerValues(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})

	res := m.Store(context.Background(), unified.StoreRequest{
		Content:   "current sprint is auth",
		Kind:      memory.KindContext,
		Speaker:   "agent",
		Metadata:  map[string]any{"ticket": "SEC-12"},
		Timestamp: "last tuesday",
	})
	require.True(t, res.OK)

	entries := loadEntries(t, m)
	require.Len(t, entries, 1)
	assert.Equal(t, "agent", entries[0].Speaker)
	assert.Equal(t, "last tuesday", entries[0].Timestamp)
	assert.Equal(t, "SEC-12", entries[0].Metadata["ticket"])
}

func TestMemory_Store_EpisodicTurn(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestMemory(t, engine)
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "hello there", Kind: memory.KindDialogue, Speaker: "agent"}).OK)
	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "hi", Kind: memory.KindDialogue}).OK)

	require.Len(t, engine.turns, 2)
	turn := engine.turns[0]
	assert.Equal(t, "agent", turn.Speaker)
	assert.Equal(t, fixedTime, turn.Timestamp)
	assert.NotEmpty(t, turn.Session)
	assert.Equal(t, turn.Session, engine.turns[1].Session)
	assert.Equal(t, memory.DefaultSpeaker, engine.turns[1].Speaker)
}

func TestMemory_Store_UnparseableTurnTimestamp(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestMemory(t, engine)
	meta := map[string]any{"channel": "cli"}

	res := m.Store(context.Background(), unified.StoreRequest{
		Content:   "ok",
		Kind:      memory.KindDialogue,
		Metadata:  meta,
		Timestamp: "yesterday",
	})
	require.True(t, res.OK)

	require.Len(t, engine.turns, 1)
	assert.Equal(t, fixedTime, engine.turns[0].Timestamp)
	assert.Equal(t, "yesterday", engine.turns[0].Metadata["timestamp"])
	assert.Equal(t, "cli", engine.turns[0].Metadata["channel"])
	assert.NotContains(t, meta, "timestamp")
}

func TestMemory_Store_UnavailableEngineNoFallback(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{unavailable: true})

	res := m.Store(context.Background(), unified.StoreRequest{Content: "who broke the build", Kind: memory.KindFact})
	assert.False(t, res.OK)
	require.ErrorIs(t, res.Err, episodic.ErrUnavailable)
	assert.NoFileExists(t, filepath.Join(m.Dir(), memory.DefaultFileName))
}

func TestMemory_Store_EngineFailure(t *testing.T) {
	engine := &fakeEngine{appendErr: fmt.Errorf("%w: disk full", episodic.ErrStorage)}
	m := newTestMemory(t, engine)

	res := m.Store(context.Background(), unified.StoreRequest{Content: "notes", Kind: memory.KindDialogue})
	assert.False(t, res.OK)
	require.ErrorIs(t, res.Err, episodic.ErrStorage)
	assert.Equal(t, unified.LayerEpisodic, res.Layer)
}

func TestMemory_Store_EntryStoreFailure(t *testing.T) {
	log := &eventLog{}
	m := newTestMemory(t, &fakeEngine{},
		unified.WithEntryStore(failingStore{err: memory.ErrSaveFailed}),
		unified.WithObserver(log),
	)

	res := m.Store(context.Background(), unified.StoreRequest{Content: "how to fail", Kind: memory.KindSkill})
	assert.False(t, res.OK)
	require.ErrorIs(t, res.Err, memory.ErrSaveFailed)
	assert.Equal(t, []observability.EventType{unified.EventStoreFailed}, log.types())

	assert.Zero(t, m.Stats(context.Background()).Session.Total())
}

// --- Recall ---

func TestMemory_RoundTrip(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "How to run nmap against the staging hosts"}).OK)

	bundle := m.Recall(ctx, "NMAP", unified.RecallOptions{})
	require.NoError(t, bundle.Err)
	require.Len(t, bundle.Skills, 1)
	assert.Equal(t, "How to run nmap against the staging hosts", bundle.Skills[0].Content)
}

func TestMemory_Recall_BoundingAndOrder(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})
	ctx := context.Background()

	for i := range 15 {
		require.True(t, m.Store(ctx, unified.StoreRequest{Content: fmt.Sprintf("how to scan host %d", i)}).OK)
	}

	bundle := m.Recall(ctx, "scan", unified.RecallOptions{})
	assert.Len(t, bundle.Skills, unified.DefaultRecallLimit)

	bundle = m.Recall(ctx, "scan", unified.RecallOptions{Limit: 3})
	require.Len(t, bundle.Skills, 3)
	for i, e := range bundle.Skills {
		assert.Equal(t, fmt.Sprintf("how to scan host %d", i), e.Content)
	}
}

func TestMemory_Recall_KindsFilter(t *testing.T) {
	engine := &fakeEngine{answer: "someone found it"}
	m := newTestMemory(t, engine)
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to audit the api"}).OK)
	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "working on the api audit"}).OK)

	bundle := m.Recall(ctx, "api", unified.RecallOptions{Kinds: []memory.Kind{memory.KindContext}})
	require.NoError(t, bundle.Err)
	assert.Empty(t, bundle.Skills)
	assert.Len(t, bundle.Context, 1)
	assert.Empty(t, bundle.Facts)
	assert.Zero(t, engine.asks)
}

func TestMemory_Recall_InvalidKindReported(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to audit the api"}).OK)

	bundle := m.Recall(ctx, "api", unified.RecallOptions{Kinds: []memory.Kind{"opinion", memory.KindSkill}})
	require.ErrorIs(t, bundle.Err, memory.ErrInvalidKind)
	assert.Len(t, bundle.Skills, 1)
}

func TestMemory_Recall_EpisodicAnswer(t *testing.T) {
	engine := &fakeEngine{answer: "user said Found XSS in search"}
	m := newTestMemory(t, engine)

	bundle := m.Recall(context.Background(), "XSS", unified.RecallOptions{})
	require.NoError(t, bundle.Err)
	require.Len(t, bundle.Facts, 1)

	fact := bundle.Facts[0]
	assert.Equal(t, memory.KindFact, fact.Kind)
	assert.Equal(t, "user said Found XSS in search", fact.Content)
	assert.Equal(t, "episodic", fact.Source)
	assert.Equal(t, memory.Timestamp(fixedTime), fact.Timestamp)
	assert.Empty(t, fact.Speaker)
	assert.Empty(t, bundle.Dialogue)
	assert.Equal(t, 1, engine.asks)
}

func TestMemory_Recall_EmptyAnswer(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestMemory(t, engine)

	bundle := m.Recall(context.Background(), "anything", unified.RecallOptions{Kinds: []memory.Kind{memory.KindDialogue}})
	require.NoError(t, bundle.Err)
	assert.Zero(t, bundle.Len())
	assert.Equal(t, 1, engine.asks)
}

func TestMemory_Recall_EngineErrorKeepsEntryResults(t *testing.T) {
	log := &eventLog{}
	engine := &fakeEngine{askErr: errors.New("engine exploded")}
	m := newTestMemory(t, engine, unified.WithObserver(log))
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to triage crashes"}).OK)

	bundle := m.Recall(ctx, "triage", unified.RecallOptions{})
	require.Error(t, bundle.Err)
	assert.Len(t, bundle.Skills, 1)
	assert.Empty(t, bundle.Facts)
	assert.Contains(t, log.types(), unified.EventRecallFailed)
}

func TestMemory_Recall_UnavailableEngineSkipsAsk(t *testing.T) {
	engine := &fakeEngine{unavailable: true, answer: "never"}
	m := newTestMemory(t, engine)

	bundle := m.Recall(context.Background(), "anything", unified.RecallOptions{})
	require.NoError(t, bundle.Err)
	assert.Empty(t, bundle.Facts)
	assert.Zero(t, engine.asks)
}

func TestMemory_Recall_MissingDocument(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})

	bundle := m.Recall(context.Background(), "anything", unified.RecallOptions{})
	require.NoError(t, bundle.Err)
	assert.NotNil(t, bundle.Skills)
	assert.NotNil(t, bundle.Facts)
	assert.NotNil(t, bundle.Context)
	assert.NotNil(t, bundle.Dialogue)
	assert.Zero(t, bundle.Len())
}

func TestMemory_Recall_CorruptDocument(t *testing.T) {
	log := &eventLog{}
	m := newTestMemory(t, &fakeEngine{}, unified.WithObserver(log))
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), memory.DefaultFileName), []byte("{broken"), 0o644))

	bundle := m.Recall(context.Background(), "anything", unified.RecallOptions{})
	require.NoError(t, bundle.Err)
	assert.Zero(t, bundle.Len())
	assert.Contains(t, log.types(), unified.EventDocumentSkipped)
}

func TestMemory_Recall_EpisodicKindsInDocumentIgnored(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), memory.DefaultFileName), []byte(`{"unified_memory": [
		{"type": "fact", "content": "legacy scan fact", "metadata": {}, "timestamp": "t", "speaker": "user"},
		{"type": "skill", "content": "how to scan", "metadata": {}, "timestamp": "t", "speaker": "user"}
	]}`), 0o644))

	bundle := m.Recall(context.Background(), "scan", unified.RecallOptions{})
	assert.Len(t, bundle.Skills, 1)
	assert.Empty(t, bundle.Facts)

	stats := m.Stats(context.Background())
	assert.Equal(t, 1, stats.Counts.Facts)
	assert.Equal(t, 2, stats.EntryStore.Entries)
}

func TestMemory_Recall_CustomMatcher(t *testing.T) {
	exact := memory.MatcherFunc(func(q string, e memory.Entry) bool { return e.Content == q })
	m := newTestMemory(t, &fakeEngine{}, unified.WithMatcher(exact))
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to scan"}).OK)
	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to scan fast"}).OK)

	bundle := m.Recall(ctx, "how to scan", unified.RecallOptions{})
	require.Len(t, bundle.Skills, 1)
	assert.Equal(t, "how to scan", bundle.Skills[0].Content)
}

// --- Stats and sessions ---

func TestMemory_Stats_WithCounter(t *testing.T) {
	engine := countingEngine{
		fakeEngine: &fakeEngine{},
		counts:     episodic.Counts{Turns: 4, Pending: 1, Facts: 3},
	}
	m := newTestMemory(t, engine)
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to fuzz"}).OK)
	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to triage"}).OK)
	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "working on parser"}).OK)

	stats := m.Stats(ctx)
	require.NoError(t, stats.Err)
	assert.Equal(t, unified.KindCounts{Skills: 2, Facts: 3, Context: 1, Dialogue: 1}, stats.Counts)
	assert.Equal(t, 7, stats.TotalEntries, "compressed turns are counted once, as facts")
	assert.Equal(t, 4, stats.Episodic.Turns)
	assert.Equal(t, stats.Counts.Total(), stats.TotalEntries)
	assert.Equal(t, 3, stats.EntryStore.Entries)
	assert.True(t, stats.EntryStore.Available)
	assert.Equal(t, filepath.Join(m.Dir(), memory.DefaultFileName), stats.EntryStore.Path)
	assert.True(t, stats.Episodic.CountsKnown)
	assert.Equal(t, 1, stats.Episodic.Pending)
	assert.Equal(t, 3, stats.Session.Total())
}

func TestMemory_Stats_WithoutCounter(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to fuzz"}).OK)
	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "hey", Kind: memory.KindDialogue}).OK)

	stats := m.Stats(ctx)
	assert.Equal(t, unified.KindCounts{Skills: 1}, stats.Counts)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.True(t, stats.Episodic.Available)
	assert.False(t, stats.Episodic.CountsKnown)
}

func TestMemory_Stats_CounterFailure(t *testing.T) {
	engine := countingEngine{fakeEngine: &fakeEngine{}, err: errors.New("count failed")}
	m := newTestMemory(t, engine)

	stats := m.Stats(context.Background())
	require.Error(t, stats.Err)
	assert.False(t, stats.Episodic.CountsKnown)
	assert.Zero(t, stats.TotalEntries)
}

func TestMemory_Stats_EntryStoreFailure(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{}, unified.WithEntryStore(failingStore{err: memory.ErrLoadFailed}))

	stats := m.Stats(context.Background())
	require.ErrorIs(t, stats.Err, memory.ErrLoadFailed)
	assert.False(t, stats.EntryStore.Available)
	assert.Empty(t, stats.EntryStore.Path)
}

func TestMemory_FinalizeSession(t *testing.T) {
	log := &eventLog{}
	engine := &fakeEngine{}
	m := newTestMemory(t, engine, unified.WithObserver(log))
	ctx := context.Background()

	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "how to fuzz"}).OK)
	require.True(t, m.Store(ctx, unified.StoreRequest{Content: "hey", Kind: memory.KindDialogue}).OK)

	res := m.FinalizeSession(ctx)
	require.True(t, res.OK)
	require.NotNil(t, res.Session)
	assert.Equal(t, 2, res.Session.Total())
	assert.Equal(t, 1, res.Session.Writes[memory.KindSkill])
	assert.Equal(t, 1, engine.compresses)
	assert.Contains(t, log.types(), unified.EventFinalize)

	again := m.FinalizeSession(ctx)
	require.True(t, again.OK)
	assert.Zero(t, again.Session.Total())
	assert.NotEqual(t, res.Session.ID, again.Session.ID)
}

func TestMemory_FinalizeSession_Unavailable(t *testing.T) {
	engine := &fakeEngine{unavailable: true}
	m := newTestMemory(t, engine)

	res := m.FinalizeSession(context.Background())
	assert.True(t, res.OK)
	assert.NoError(t, res.Err)
	assert.Zero(t, engine.compresses)
}

func TestMemory_FinalizeSession_CompressFailure(t *testing.T) {
	log := &eventLog{}
	engine := &fakeEngine{compressErr: fmt.Errorf("%w: disk full", episodic.ErrStorage)}
	m := newTestMemory(t, engine, unified.WithObserver(log))

	res := m.FinalizeSession(context.Background())
	assert.False(t, res.OK)
	require.ErrorIs(t, res.Err, episodic.ErrStorage)
	assert.Contains(t, log.types(), unified.EventFinalizeFailed)
}

func TestMemory_QuickStoreAndRecall(t *testing.T) {
	m := newTestMemory(t, &fakeEngine{})
	ctx := context.Background()

	res := m.QuickStore(ctx, "How to rotate the signing keys", "agent")
	require.True(t, res.OK)
	assert.Equal(t, memory.KindSkill, res.Kind)

	assert.Equal(t, "**Skills:**\n- How to rotate the signing keys...", m.QuickRecall(ctx, "signing", 0))
	assert.Equal(t, unified.NoMemories, m.QuickRecall(ctx, "unrelated", 0))
}

func TestMemory_Close_Idempotent(t *testing.T) {
	engine := &fakeEngine{}
	m, err := unified.New(testConfig(t), unified.WithEngine(engine))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, engine.closes)
}

// --- End to end over the real engines ---

func TestMemory_SecurityAssessmentScenario(t *testing.T) {
	for _, backend := range []string{episodic.BackendBadger, episodic.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Episodic.Backend = backend
			ctx := context.Background()

			m, err := unified.New(cfg)
			require.NoError(t, err)

			stored := []struct {
				content string
				kind    memory.Kind
			}{
				{"How to test for SQL injection: use sqlmap with --batch flag", memory.KindSkill},
				{"Found XSS vulnerability in search field", memory.KindFact},
				{"Working on security assessment for acme.com", memory.KindContext},
			}
			for _, s := range stored {
				res := m.Store(ctx, unified.StoreRequest{Content: s.content})
				require.True(t, res.OK, res.Error())
				assert.Equal(t, s.kind, res.Kind)
			}

			bundle := m.Recall(ctx, "SQL injection", unified.RecallOptions{})
			require.NoError(t, bundle.Err)
			require.Len(t, bundle.Skills, 1)
			assert.Empty(t, bundle.Context)

			bundle = m.Recall(ctx, "XSS", unified.RecallOptions{})
			require.NoError(t, bundle.Err)
			require.Len(t, bundle.Facts, 1)
			assert.Contains(t, bundle.Facts[0].Content, "XSS vulnerability")

			res := m.FinalizeSession(ctx)
			require.True(t, res.OK, res.Error())

			stats := m.Stats(ctx)
			require.NoError(t, stats.Err)
			assert.True(t, stats.Episodic.CountsKnown)
			assert.Equal(t, unified.KindCounts{Skills: 1, Facts: 1, Context: 1}, stats.Counts)
			assert.Equal(t, 3, stats.TotalEntries)
			assert.Equal(t, 1, stats.Episodic.Turns)
			assert.Zero(t, stats.Episodic.Pending)
			require.NoError(t, m.Close())

			reopened, err := unified.New(cfg)
			require.NoError(t, err)
			defer reopened.Close()

			bundle = reopened.Recall(ctx, "XSS", unified.RecallOptions{})
			require.NoError(t, bundle.Err)
			require.Len(t, bundle.Facts, 1)
			assert.Contains(t, bundle.Facts[0].Content, "XSS vulnerability")
		})
	}
}
