package episodic_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/voyager/episodic"
)

func TestOpen_Backends(t *testing.T) {
	tests := []struct {
		backend string
		path    string
	}{
		{backend: episodic.BackendBadger, path: episodic.BadgerDirName},
		{backend: episodic.BackendSQLite, path: episodic.SQLiteFileName},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			dir := t.TempDir()
			engine, err := episodic.Open(episodic.Config{Backend: tt.backend}, dir, nil)
			require.NoError(t, err)
			defer engine.Close()

			assert.True(t, engine.Available())
			_, err = os.Stat(filepath.Join(dir, tt.path))
			assert.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, engine.Append(ctx, episodic.Turn{Speaker: "user", Content: "Found XSS in search field"}))
			answer, err := engine.Ask(ctx, "xss")
			require.NoError(t, err)
			assert.Contains(t, answer, "Found XSS")

			counter, ok := engine.(episodic.Counter)
			require.True(t, ok)
			counts, err := counter.Counts(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, counts.Turns)
		})
	}
}

func TestOpen_CacheDisabled(t *testing.T) {
	engine, err := episodic.Open(episodic.Config{CacheEntries: -1}, t.TempDir(), nil)
	require.NoError(t, err)
	defer engine.Close()

	_, ok := engine.(*episodic.Store)
	assert.True(t, ok)
}

func TestOpen_Degraded(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	tests := []struct {
		name    string
		cfg     episodic.Config
		dir     string
		wantErr error
	}{
		{name: "disabled by config", cfg: episodic.Config{Backend: episodic.BackendNone}, dir: t.TempDir(), wantErr: episodic.ErrUnavailable},
		{name: "unknown backend", cfg: episodic.Config{Backend: "mongo"}, dir: t.TempDir(), wantErr: episodic.ErrUnknownBackend},
		{name: "unopenable location", cfg: episodic.Config{Backend: episodic.BackendSQLite}, dir: blocker, wantErr: episodic.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := episodic.Open(tt.cfg, tt.dir, nil)
			require.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, engine)
			assert.False(t, engine.Available())

			ctx := context.Background()
			assert.ErrorIs(t, engine.Append(ctx, episodic.Turn{Content: "x"}), episodic.ErrUnavailable)
			_, askErr := engine.Ask(ctx, "x")
			assert.ErrorIs(t, askErr, episodic.ErrUnavailable)
			assert.ErrorIs(t, engine.Compress(ctx), episodic.ErrUnavailable)
			assert.NoError(t, engine.Close())
		})
	}
}

func TestNewAnswerer(t *testing.T) {
	a, err := episodic.NewAnswerer(episodic.AnswererConfig{})
	require.NoError(t, err)
	assert.IsType(t, episodic.Extractive{}, a)

	_, err = episodic.NewAnswerer(episodic.AnswererConfig{Provider: "oracle"})
	assert.ErrorIs(t, err, episodic.ErrUnknownAnswerer)

	t.Setenv("VOYAGER_TEST_KEY", "")
	_, err = episodic.NewAnswerer(episodic.AnswererConfig{Provider: episodic.ProviderClaude, APIKeyEnv: "VOYAGER_TEST_KEY"})
	assert.Error(t, err)

	t.Setenv("VOYAGER_TEST_KEY", "secret")
	a, err = episodic.NewAnswerer(episodic.AnswererConfig{Provider: episodic.ProviderClaude, APIKeyEnv: "VOYAGER_TEST_KEY"})
	require.NoError(t, err)
	assert.IsType(t, &episodic.Claude{}, a)
}

func TestOpen_ClaudeWithoutKeyFallsBack(t *testing.T) {
	t.Setenv("VOYAGER_TEST_KEY", "")
	engine, err := episodic.Open(episodic.Config{
		Answerer: episodic.AnswererConfig{Provider: episodic.ProviderClaude, APIKeyEnv: "VOYAGER_TEST_KEY"},
	}, t.TempDir(), nil)
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	require.NoError(t, engine.Append(ctx, episodic.Turn{Speaker: "user", Content: "remember the rollout plan"}))
	answer, err := engine.Ask(ctx, "rollout")
	require.NoError(t, err)
	assert.Equal(t, "user said remember the rollout plan", answer)
}

func TestConfig_Merge(t *testing.T) {
	cfg := episodic.DefaultConfig()
	cfg.Merge(&episodic.Config{
		Backend:  episodic.BackendSQLite,
		Workers:  4,
		Answerer: episodic.AnswererConfig{Model: "claude-haiku-4-5"},
	})

	assert.Equal(t, episodic.BackendSQLite, cfg.Backend)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 500, cfg.MaxFacts)
	assert.Equal(t, 3, cfg.AskTopK)
	assert.Equal(t, 256, cfg.CacheEntries)
	assert.Equal(t, "claude-haiku-4-5", cfg.Answerer.Model)
	assert.Equal(t, episodic.ProviderExtractive, cfg.Answerer.Provider)
}
