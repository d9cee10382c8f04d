// Package unified composes the entry store, the episodic engine, the
// classifier and the session tracker into one memory space per agent.
//
// New initializes every subsystem from configuration. Functional options
// replace any of them, which is how tests inject fakes.
//
//	m, err := unified.New(&cfg)
//	res := m.Store(ctx, unified.StoreRequest{Content: "How to run the linter"})
//	bundle := m.Recall(ctx, "linter", unified.RecallOptions{})
package unified

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/voyager/classify"
	"github.com/tailored-agentic-units/voyager/episodic"
	"github.com/tailored-agentic-units/voyager/memory"
	"github.com/tailored-agentic-units/voyager/observability"
	"github.com/tailored-agentic-units/voyager/session"
)

// DefaultQuickRecallLimit is the per-kind limit QuickRecall uses when none
// is given.
const DefaultQuickRecallLimit = 5

// Option configures a Memory. Options run before config-driven
// initialization, and only subsystems left unset are built from config.
type Option func(*Memory)

// WithEntryStore overrides the config-created entry store.
func WithEntryStore(s memory.Store) Option {
	return func(m *Memory) { m.entries = s }
}

// WithEngine overrides the config-created episodic engine.
func WithEngine(e episodic.Engine) Option {
	return func(m *Memory) { m.engine = e }
}

// WithClassifier overrides the keyword classifier.
func WithClassifier(c Classifier) Option {
	return func(m *Memory) { m.classifier = c }
}

// WithMatcher overrides the recall matcher for entry-store kinds.
func WithMatcher(mt memory.Matcher) Option {
	return func(m *Memory) { m.matcher = mt }
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(m *Memory) { m.observer = o }
}

// WithTracker overrides the session tracker.
func WithTracker(t session.Tracker) Option {
	return func(m *Memory) { m.tracker = t }
}

// WithLogger sets the logger handed to the observer and the episodic engine.
func WithLogger(l *slog.Logger) Option {
	return func(m *Memory) { m.logger = l }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// Memory is the memory space of one agent in one project.
type Memory struct {
	cfg        Config
	dir        string
	entries    memory.Store
	engine     episodic.Engine
	classifier Classifier
	matcher    memory.Matcher
	tracker    session.Tracker
	observer   observability.Observer
	logger     *slog.Logger
	now        func() time.Time

	closeOnce sync.Once
	closeErr  error
}

var _ Handle = (*Memory)(nil)

// New creates the memory space described by cfg, creating its directory
// when absent. It fails only on invalid configuration or an uncreatable
// directory. An episodic store that cannot be opened leaves the space in
// degraded mode rather than failing.
func New(cfg *Config, opts ...Option) (*Memory, error) {
	c := DefaultConfig()
	if cfg != nil {
		c.Merge(cfg)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	dir := c.MemoryDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	m := &Memory{cfg: c, dir: dir}
	for _, opt := range opts {
		opt(m)
	}

	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.observer == nil {
		o, err := observability.GetObserver(c.Observer, m.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		m.observer = o
	}
	if m.classifier == nil {
		m.classifier = classify.New(c.Classifier)
	}
	if m.matcher == nil {
		m.matcher = memory.TokenMatcher{}
	}
	if m.tracker == nil {
		m.tracker = session.NewTracker(session.WithClock(m.now))
	}
	if m.entries == nil {
		m.entries = memory.NewStore(&c.Memory, dir, memory.WithSkipObserver(memory.ObserverFunc(m.skipped)))
	}
	if m.engine == nil {
		engine, err := episodic.Open(c.Episodic, dir, m.logger.With(slog.String("component", "episodic")))
		m.engine = engine
		if err != nil {
			level := observability.LevelWarning
			if errors.Is(err, episodic.ErrUnavailable) && c.Episodic.Backend == episodic.BackendNone {
				level = observability.LevelInfo
			}
			m.emit(context.Background(), EventDegraded, level, "unified.New", map[string]any{
				"backend": c.Episodic.Backend,
				"error":   err.Error(),
			})
		}
	}

	return m, nil
}

// Agent returns the agent name that owns the memory space.
func (m *Memory) Agent() string {
	return m.cfg.AgentName
}

// Dir returns the memory directory.
func (m *Memory) Dir() string {
	return m.dir
}

// Config returns the merged configuration the space was built from.
func (m *Memory) Config() Config {
	return m.cfg
}

// Store routes one observation to the layer its kind belongs to. Skill and
// context entries land in the entry document; fact and dialogue entries are
// appended to the episodic engine as turns. Failures are reported in the
// Result, never raised.
func (m *Memory) Store(ctx context.Context, req StoreRequest) Result {
	if strings.TrimSpace(req.Content) == "" {
		return m.storeFailed(ctx, Result{Kind: req.Kind, Err: memory.ErrEmptyContent})
	}

	kind := req.Kind
	if kind == "" {
		kind = m.classifier.Classify(req.Content)
	} else {
		k, err := memory.ParseKind(string(kind))
		if err != nil {
			return m.storeFailed(ctx, Result{Kind: kind, Err: err})
		}
		kind = k
	}

	entry := memory.Entry{
		Kind:      kind,
		Content:   req.Content,
		Metadata:  req.Metadata,
		Timestamp: req.Timestamp,
		Speaker:   req.Speaker,
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	if entry.Timestamp == "" {
		entry.Timestamp = memory.Timestamp(m.now())
	}
	if entry.Speaker == "" {
		entry.Speaker = memory.DefaultSpeaker
	}

	res := Result{Kind: kind, Layer: LayerEntry}
	if kind.Episodic() {
		res.Layer = LayerEpisodic
		res.Err = m.appendTurn(ctx, entry)
	} else {
		res.Err = m.entries.Append(ctx, entry)
	}
	if res.Err != nil {
		return m.storeFailed(ctx, res)
	}

	m.tracker.Record(kind)
	res.OK = true

	m.emit(ctx, EventStore, observability.LevelInfo, "unified.Store", map[string]any{
		"agent":          m.cfg.AgentName,
		"type":           string(kind),
		"layer":          res.Layer,
		"speaker":        entry.Speaker,
		"content_length": len(entry.Content),
		"classified":     req.Kind == "",
	})
	return res
}

func (m *Memory) appendTurn(ctx context.Context, e memory.Entry) error {
	if !m.engine.Available() {
		return episodic.ErrUnavailable
	}

	turn := episodic.Turn{
		Speaker:  e.Speaker,
		Content:  e.Content,
		Session:  m.tracker.Begin(),
		Metadata: e.Metadata,
	}
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		// Unparseable caller stamps are kept verbatim next to the turn.
		turn.Metadata = maps.Clone(e.Metadata)
		turn.Metadata["timestamp"] = e.Timestamp
		ts = m.now()
	}
	turn.Timestamp = ts

	return m.engine.Append(ctx, turn)
}

func (m *Memory) storeFailed(ctx context.Context, res Result) Result {
	m.emit(ctx, EventStoreFailed, observability.LevelWarning, "unified.Store", map[string]any{
		"agent": m.cfg.AgentName,
		"type":  string(res.Kind),
		"layer": res.Layer,
		"error": res.Err.Error(),
	})
	return res
}

// Recall gathers stored knowledge relevant to query. Entry-store kinds are
// matched in insertion order and truncated per kind; episodic kinds are
// answered by a single engine question whose answer becomes one synthetic
// fact. The two lookups run concurrently and fill disjoint slots.
func (m *Memory) Recall(ctx context.Context, query string, opts RecallOptions) Bundle {
	bundle := NewBundle()

	limit := opts.Limit
	if limit <= 0 {
		limit = m.cfg.RecallLimit
	}

	kinds, err := requestedKinds(opts.Kinds)
	if err != nil {
		bundle.Err = err
	}

	var g errgroup.Group

	if slices.Contains(kinds, memory.KindSkill) || slices.Contains(kinds, memory.KindContext) {
		g.Go(func() error {
			return m.recallEntries(ctx, query, kinds, limit, &bundle)
		})
	}

	if (slices.Contains(kinds, memory.KindFact) || slices.Contains(kinds, memory.KindDialogue)) && m.engine.Available() {
		g.Go(func() error {
			return m.recallEpisodic(ctx, query, &bundle)
		})
	}

	if err := g.Wait(); err != nil && bundle.Err == nil {
		bundle.Err = err
	}

	if bundle.Err != nil {
		m.emit(ctx, EventRecallFailed, observability.LevelWarning, "unified.Recall", map[string]any{
			"agent": m.cfg.AgentName,
			"error": bundle.Err.Error(),
		})
	}
	m.emit(ctx, EventRecall, observability.LevelInfo, "unified.Recall", map[string]any{
		"agent":    m.cfg.AgentName,
		"limit":    limit,
		"skills":   len(bundle.Skills),
		"facts":    len(bundle.Facts),
		"context":  len(bundle.Context),
		"dialogue": len(bundle.Dialogue),
	})
	return bundle
}

// recallEntries fills the skill and context slots only.
func (m *Memory) recallEntries(ctx context.Context, query string, kinds []memory.Kind, limit int, b *Bundle) error {
	entries, err := m.entries.Load(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Kind.Episodic() || !slices.Contains(kinds, e.Kind) {
			continue
		}
		slot := b.slot(e.Kind)
		if len(*slot) >= limit || !m.matcher.Match(query, e) {
			continue
		}
		*slot = append(*slot, e)
	}
	return nil
}

// recallEpisodic fills the fact slot only.
func (m *Memory) recallEpisodic(ctx context.Context, query string, b *Bundle) error {
	answer, err := m.engine.Ask(ctx, query)
	if err != nil {
		return err
	}
	if answer == "" {
		return nil
	}

	b.Facts = append(b.Facts, memory.Entry{
		Kind:      memory.KindFact,
		Content:   answer,
		Metadata:  map[string]any{},
		Timestamp: memory.Timestamp(m.now()),
		Source:    LayerEpisodic,
	})
	return nil
}

func requestedKinds(kinds []memory.Kind) ([]memory.Kind, error) {
	if len(kinds) == 0 {
		return memory.Kinds(), nil
	}

	var errs []error
	valid := make([]memory.Kind, 0, len(kinds))
	for _, k := range kinds {
		parsed, err := memory.ParseKind(string(k))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, parsed)
	}
	return valid, errors.Join(errs...)
}

// Stats summarises the memory space. Fact and dialogue counts come from the
// engine when it can report them; dialogue covers only uncompressed turns.
func (m *Memory) Stats(ctx context.Context) Stats {
	stats := Stats{
		EntryStore: EntryStoreStats{Available: true},
		Episodic:   EpisodicStats{Available: m.engine.Available()},
		Session:    m.tracker.Snapshot(),
	}
	if p, ok := m.entries.(interface{ Path() string }); ok {
		stats.EntryStore.Path = p.Path()
	}

	entries, err := m.entries.Load(ctx)
	if err != nil {
		stats.EntryStore.Available = false
		stats.Err = err
	}
	stats.EntryStore.Entries = len(entries)
	for _, e := range entries {
		stats.Counts.add(e.Kind, 1)
	}

	if counter, ok := m.engine.(episodic.Counter); ok && stats.Episodic.Available {
		counts, err := counter.Counts(ctx)
		if err != nil {
			if stats.Err == nil {
				stats.Err = err
			}
		} else {
			stats.Episodic.CountsKnown = true
			stats.Episodic.Turns = counts.Turns
			stats.Episodic.Pending = counts.Pending
			stats.Episodic.Facts = counts.Facts
			stats.Counts.Facts += counts.Facts
			stats.Counts.Dialogue += counts.Pending
		}
	}

	stats.TotalEntries = stats.Counts.Total()
	return stats
}

// FinalizeSession closes the current session and compresses pending
// dialogue when the engine is available. An unavailable engine makes this
// a successful no-op.
func (m *Memory) FinalizeSession(ctx context.Context) Result {
	summary := m.tracker.Finalize()
	res := Result{OK: true, Layer: LayerEpisodic, Session: &summary}

	if m.engine.Available() {
		if err := m.engine.Compress(ctx); err != nil {
			res.OK = false
			res.Err = err
			m.emit(ctx, EventFinalizeFailed, observability.LevelError, "unified.FinalizeSession", map[string]any{
				"agent":   m.cfg.AgentName,
				"session": summary.ID,
				"error":   err.Error(),
			})
			return res
		}
	}

	m.emit(ctx, EventFinalize, observability.LevelInfo, "unified.FinalizeSession", map[string]any{
		"agent":      m.cfg.AgentName,
		"session":    summary.ID,
		"writes":     summary.Total(),
		"compressed": m.engine.Available(),
	})
	return res
}

// QuickStore stores content under its classified kind.
func (m *Memory) QuickStore(ctx context.Context, content, speaker string) Result {
	return m.Store(ctx, StoreRequest{Content: content, Speaker: speaker})
}

// QuickRecall recalls with limit per kind (DefaultQuickRecallLimit when
// non-positive) and renders the result with Digest.
func (m *Memory) QuickRecall(ctx context.Context, query string, limit int) string {
	if limit <= 0 {
		limit = DefaultQuickRecallLimit
	}
	return Digest(m.Recall(ctx, query, RecallOptions{Limit: limit}))
}

// Close releases the episodic engine. Calling Close more than once returns
// the first result.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.engine.Close()
	})
	return m.closeErr
}

func (m *Memory) skipped(path string, index int, reason string) {
	m.emit(context.Background(), EventDocumentSkipped, observability.LevelWarning, "memory.FileStore", map[string]any{
		"path":   path,
		"index":  index,
		"reason": reason,
	})
}

func (m *Memory) emit(ctx context.Context, typ observability.EventType, level observability.Level, source string, data map[string]any) {
	m.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: m.now(),
		Source:    source,
		Data:      data,
	})
}
