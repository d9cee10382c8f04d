package episodic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Store is the Engine over a storage Backend. It is safe for concurrent
// use; compressions are serialised.
type Store struct {
	backend  Backend
	answerer Answerer
	logger   *slog.Logger
	now      func() time.Time

	workers  int
	maxFacts int
	topK     int

	compress sync.Mutex
	closed   atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithAnswerer sets the Answerer used by Ask. The default is Extractive.
func WithAnswerer(a Answerer) Option {
	return func(s *Store) { s.answerer = a }
}

// WithLogger sets the logger used for compression diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source used to stamp turns appended without a
// timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an Engine over backend. Zero values in cfg take their
// defaults.
func NewStore(backend Backend, cfg Config, opts ...Option) *Store {
	c := DefaultConfig()
	c.Merge(&cfg)

	s := &Store{
		backend:  backend,
		answerer: Extractive{},
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		workers:  c.Workers,
		maxFacts: c.MaxFacts,
		topK:     c.AskTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Append(ctx context.Context, t Turn) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	t.Compressed = false

	if _, err := s.backend.AppendTurn(ctx, t); err != nil {
		return fmt.Errorf("%w: append turn: %v", ErrStorage, err)
	}
	return nil
}

func (s *Store) Ask(ctx context.Context, query string) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return "", nil
	}

	candidates, err := s.candidates(ctx)
	if err != nil {
		return "", err
	}

	top := Rank(tokens, candidates, s.topK)
	if len(top) == 0 {
		return "", nil
	}

	answer, err := s.answerer.Answer(ctx, query, top)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// candidates returns the stored facts followed by pending turns rendered
// as verbatim facts.
func (s *Store) candidates(ctx context.Context) ([]Fact, error) {
	facts, err := s.backend.Facts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read facts: %v", ErrStorage, err)
	}
	pending, err := s.backend.PendingTurns(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read turns: %v", ErrStorage, err)
	}

	for _, t := range pending {
		facts = append(facts, verbatim(t, fmt.Sprintf("turn-%d", t.Seq)))
	}
	return facts, nil
}

func (s *Store) Compress(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.compress.Lock()
	defer s.compress.Unlock()

	pending, err := s.backend.PendingTurns(ctx)
	if err != nil {
		return fmt.Errorf("%w: read turns: %v", ErrStorage, err)
	}
	if len(pending) == 0 {
		return nil
	}

	extracted := make([][]Fact, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, t := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			extracted[i] = Extract(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var incoming []Fact
	seqs := make([]uint64, len(pending))
	for i, t := range pending {
		incoming = append(incoming, extracted[i]...)
		seqs[i] = t.Seq
	}

	existing, err := s.backend.Facts(ctx)
	if err != nil {
		return fmt.Errorf("%w: read facts: %v", ErrStorage, err)
	}

	facts := Consolidate(existing, incoming, s.maxFacts)
	if err := s.backend.Commit(ctx, facts, seqs); err != nil {
		return fmt.Errorf("%w: commit facts: %v", ErrStorage, err)
	}

	s.logger.Debug("episodic compression complete",
		slog.Int("turns", len(pending)),
		slog.Int("extracted", len(incoming)),
		slog.Int("facts", len(facts)))
	return nil
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	if s.closed.Load() {
		return Counts{}, ErrClosed
	}
	c, err := s.backend.Counts(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("%w: counts: %v", ErrStorage, err)
	}
	return c, nil
}

func (s *Store) Available() bool {
	return !s.closed.Load()
}

// Close releases the backend. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.compress.Lock()
	defer s.compress.Unlock()
	return s.backend.Close()
}
