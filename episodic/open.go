package episodic

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go/option"
)

// Storage locations inside a memory directory.
const (
	BadgerDirName  = "episodic.badger"
	SQLiteFileName = "episodic.db"
)

// Open builds the engine described by cfg with its storage under dir. It
// always returns a usable Engine: when the store cannot be opened the
// result is Disabled and the error explains why.
func Open(cfg Config, dir string, logger *slog.Logger) (Engine, error) {
	c := DefaultConfig()
	c.Merge(&cfg)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	backend, err := openBackend(c.Backend, dir, logger)
	if err != nil {
		return Disabled{Reason: err.Error()}, err
	}

	answerer, err := NewAnswerer(c.Answerer)
	if err != nil {
		logger.Warn("falling back to extractive answerer", slog.String("error", err.Error()))
		answerer = Extractive{}
	}

	var engine Engine = NewStore(backend, c, WithAnswerer(answerer), WithLogger(logger))
	if c.CacheEntries > 0 {
		cached, err := NewCached(engine, c.CacheEntries)
		if err != nil {
			logger.Warn("answer cache disabled", slog.String("error", err.Error()))
			return engine, nil
		}
		engine = cached
	}
	return engine, nil
}

func openBackend(name, dir string, logger *slog.Logger) (Backend, error) {
	switch name {
	case BackendBadger:
		b, err := OpenBadger(BadgerConfig{
			Path:       filepath.Join(dir, BadgerDirName),
			SyncWrites: true,
			Logger:     logger.With(slog.String("component", "badger")),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return b, nil
	case BackendSQLite:
		b, err := OpenSQLite(filepath.Join(dir, SQLiteFileName))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return b, nil
	case BackendNone:
		return nil, fmt.Errorf("%w: backend disabled by configuration", ErrUnavailable)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// NewAnswerer builds the Answerer described by cfg. The Claude provider
// requires an API key in the environment variable named by APIKeyEnv.
func NewAnswerer(cfg AnswererConfig) (Answerer, error) {
	switch cfg.Provider {
	case "", ProviderExtractive:
		return Extractive{}, nil
	case ProviderClaude:
		env := cfg.APIKeyEnv
		if env == "" {
			env = DefaultConfig().Answerer.APIKeyEnv
		}
		key := os.Getenv(env)
		if key == "" {
			return nil, errors.New("claude answerer requires " + env)
		}

		opts := []option.RequestOption{option.WithAPIKey(key)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}

		model := cfg.Model
		if model == "" {
			model = DefaultConfig().Answerer.Model
		}
		maxTokens := cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = DefaultConfig().Answerer.MaxTokens
		}
		return NewClaude(model, maxTokens, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnswerer, cfg.Provider)
	}
}
