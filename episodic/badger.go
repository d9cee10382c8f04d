package episodic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const (
	turnPrefix   = "turn/"
	factPrefix   = "fact/"
	turnSequence = "seq/turn"

	sequenceBandwidth = 64
	gcDiscardRatio    = 0.5
)

// BadgerConfig holds badger backend parameters.
type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerBackend stores turns and facts in an embedded badger database.
// Turns are keyed by zero-padded sequence so key order is append order.
type BadgerBackend struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// OpenBadger opens or creates the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerBackend, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte(turnSequence), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open turn sequence: %w", err)
	}

	return &BadgerBackend{db: db, seq: seq, logger: logger}, nil
}

func (b *BadgerBackend) AppendTurn(ctx context.Context, t Turn) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err := b.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	// Sequences start at zero; reserve zero for "no turn".
	t.Seq = n + 1

	data, err := json.Marshal(t)
	if err != nil {
		return 0, fmt.Errorf("encode turn: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(turnKey(t.Seq), data)
	})
	if err != nil {
		return 0, err
	}
	return t.Seq, nil
}

func (b *BadgerBackend) PendingTurns(ctx context.Context) ([]Turn, error) {
	var turns []Turn
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(ctx, txn, turnPrefix, func(val []byte) error {
			var t Turn
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("decode turn: %w", err)
			}
			if !t.Compressed {
				turns = append(turns, t)
			}
			return nil
		})
	})
	return turns, err
}

func (b *BadgerBackend) Facts(ctx context.Context) ([]Fact, error) {
	var facts []Fact
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(ctx, txn, factPrefix, func(val []byte) error {
			var f Fact
			if err := json.Unmarshal(val, &f); err != nil {
				return fmt.Errorf("decode fact: %w", err)
			}
			facts = append(facts, f)
			return nil
		})
	})
	return facts, err
}

// Commit rewrites the fact set in one transaction. Fact keys carry their
// position so iteration returns the committed order.
func (b *BadgerBackend) Commit(ctx context.Context, facts []Fact, compressed []uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		prefix := []byte(factPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for i, f := range facts {
			data, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("encode fact: %w", err)
			}
			if err := txn.Set(factKey(i, f.ID), data); err != nil {
				return err
			}
		}

		for _, seq := range compressed {
			item, err := txn.Get(turnKey(seq))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			var t Turn
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return fmt.Errorf("decode turn: %w", err)
			}
			t.Compressed = true

			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("encode turn: %w", err)
			}
			if err := txn.Set(turnKey(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.collectGarbage()
	return nil
}

func (b *BadgerBackend) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := b.db.View(func(txn *badger.Txn) error {
		if err := scanPrefix(ctx, txn, turnPrefix, func(val []byte) error {
			var t Turn
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("decode turn: %w", err)
			}
			c.Turns++
			if !t.Compressed {
				c.Pending++
			}
			return nil
		}); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(factPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			c.Facts++
		}
		return nil
	})
	return c, err
}

func (b *BadgerBackend) Close() error {
	if err := b.seq.Release(); err != nil {
		b.logger.Warn("release turn sequence", slog.String("error", err.Error()))
	}
	return b.db.Close()
}

// collectGarbage reclaims value-log space left by rewritten facts and turns.
func (b *BadgerBackend) collectGarbage() {
	err := b.db.RunValueLogGC(gcDiscardRatio)
	if err == nil {
		b.logger.Debug("badger value log GC completed")
		return
	}
	if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		b.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
	}
}

func scanPrefix(ctx context.Context, txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func turnKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", turnPrefix, seq))
}

func factKey(position int, id string) []byte {
	return []byte(fmt.Sprintf("%s%06d/%s", factPrefix, position, id))
}
