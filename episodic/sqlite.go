package episodic

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores turns and facts in a single sqlite database file.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps writers serialised and an in-memory database
	// alive for the lifetime of the backend.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite database: %w", err)
	}
	return b, nil
}

// NewSQLiteBackend wraps an existing database handle.
func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		speaker TEXT NOT NULL,
		content TEXT NOT NULL,
		session TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		timestamp TEXT NOT NULL,
		compressed INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS facts (
		position INTEGER NOT NULL,
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		context TEXT NOT NULL,
		importance REAL NOT NULL,
		timestamp TEXT NOT NULL,
		speaker TEXT NOT NULL,
		session TEXT NOT NULL DEFAULT '',
		turn INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS turns_pending ON turns (compressed, seq);`
	_, err := b.db.ExecContext(context.Background(), query)
	return err
}

func (b *SQLiteBackend) AppendTurn(ctx context.Context, t Turn) (uint64, error) {
	var meta sql.NullString
	if len(t.Metadata) > 0 {
		data, err := json.Marshal(t.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	res, err := b.db.ExecContext(ctx,
		`INSERT INTO turns (speaker, content, session, metadata, timestamp, compressed) VALUES (?, ?, ?, ?, ?, 0)`,
		t.Speaker, t.Content, t.Session, meta, formatTime(t.Timestamp),
	)
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w", err)
	}
	return uint64(id), nil
}

func (b *SQLiteBackend) PendingTurns(ctx context.Context) ([]Turn, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT seq, speaker, content, session, metadata, timestamp FROM turns WHERE compressed = 0 ORDER BY seq`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var turns []Turn
	for rows.Next() {
		var (
			t         Turn
			seq       int64
			meta      sql.NullString
			timestamp string
		)
		if err := rows.Scan(&seq, &t.Speaker, &t.Content, &t.Session, &meta, &timestamp); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &t.Metadata)
		}
		t.Seq = uint64(seq)
		t.Timestamp = parseTime(timestamp)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (b *SQLiteBackend) Facts(ctx context.Context) ([]Fact, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, subject, predicate, object, context, importance, timestamp, speaker, session, turn
		FROM facts
		ORDER BY position`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var facts []Fact
	for rows.Next() {
		var (
			f         Fact
			timestamp string
			turn      int64
		)
		if err := rows.Scan(&f.ID, &f.Subject, &f.Predicate, &f.Object, &f.Context, &f.Importance, &timestamp, &f.Speaker, &f.Session, &turn); err != nil {
			return nil, err
		}
		f.Timestamp = parseTime(timestamp)
		f.Turn = uint64(turn)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (b *SQLiteBackend) Commit(ctx context.Context, facts []Fact, compressed []uint64) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM facts`); err != nil {
		return fmt.Errorf("clear facts: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO facts (
		position, id, subject, predicate, object, context, importance, timestamp, speaker, session, turn
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = insert.Close() }()

	for i, f := range facts {
		if _, err := insert.ExecContext(ctx,
			i, f.ID, f.Subject, f.Predicate, f.Object, f.Context, f.Importance,
			formatTime(f.Timestamp), f.Speaker, f.Session, int64(f.Turn),
		); err != nil {
			return fmt.Errorf("insert fact: %w", err)
		}
	}

	if len(compressed) > 0 {
		marks := make([]string, len(compressed))
		args := make([]any, len(compressed))
		for i, seq := range compressed {
			marks[i] = "?"
			args[i] = int64(seq)
		}
		query := `UPDATE turns SET compressed = 1 WHERE seq IN (` + strings.Join(marks, ", ") + `)`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("mark turns: %w", err)
		}
	}

	return tx.Commit()
}

func (b *SQLiteBackend) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	row := b.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM turns),
			(SELECT COUNT(*) FROM turns WHERE compressed = 0),
			(SELECT COUNT(*) FROM facts)`)
	if err := row.Scan(&c.Turns, &c.Pending, &c.Facts); err != nil {
		return Counts{}, err
	}
	return c, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
