package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tailored-agentic-units/voyager/unified"
)

// envProjectDir names the project directory when --project is not given.
const envProjectDir = "VOYAGER_PROJECT_DIR"

// errReported marks a failure whose message was already written.
var errReported = errors.New("reported")

type app struct {
	project string
	agent   string
	config  string
	verbose bool
	trace   bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "voyager",
		Short:         "Unified memory for coding agents",
		Long:          "Voyager keeps skills, facts, project context and dialogue for each agent of a project.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.project, "project", "p", "", "Project directory (default $"+envProjectDir+" or the current directory)")
	flags.StringVarP(&a.agent, "agent", "a", "", "Agent name (default \"default\")")
	flags.StringVarP(&a.config, "config", "c", "", "Path to a YAML config file")
	flags.BoolVar(&a.verbose, "verbose", false, "Enable verbose logging to stderr")
	flags.BoolVar(&a.trace, "trace", false, "Write OpenTelemetry spans to stderr")

	root.AddCommand(newMemoryCmd(a), newToolCmd(a))
	return root
}

// loadConfig resolves the config file, the environment and the flags, in
// increasing precedence.
func (a *app) loadConfig() (*unified.Config, error) {
	cfg := unified.DefaultConfig()
	if a.config != "" {
		loaded, err := unified.LoadConfig(a.config)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if dir := os.Getenv(envProjectDir); dir != "" {
		cfg.ProjectDir = dir
	}
	if a.project != "" {
		cfg.ProjectDir = a.project
	}
	if a.agent != "" {
		cfg.AgentName = a.agent
	}
	return &cfg, nil
}

func (a *app) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// space is an opened memory space plus whatever has to be released with it.
type space struct {
	unified.Handle
	shutdown func(context.Context) error
}

func (s *space) Close() error {
	err := s.Handle.Close()
	if s.shutdown != nil {
		err = errors.Join(err, s.shutdown(context.Background()))
	}
	return err
}

// open builds the memory space for cfg, wrapped with tracing when --trace
// is set.
func (a *app) open(cmd *cobra.Command, cfg *unified.Config) (*space, error) {
	stderr := cmd.ErrOrStderr()

	m, err := unified.New(cfg, unified.WithLogger(a.logger(stderr)))
	if err != nil {
		return nil, err
	}

	s := &space{Handle: m}
	if !a.trace {
		return s, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(stderr), stdouttrace.WithPrettyPrint())
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	s.Handle = unified.NewTraced(m, tp.Tracer(unified.TracerName), m.Agent())
	s.shutdown = tp.Shutdown
	return s, nil
}

// withSpace opens the configured memory space for the duration of fn.
func (a *app) withSpace(cmd *cobra.Command, fn func(s *space) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	s, err := a.open(cmd, cfg)
	if err != nil {
		return err
	}

	runErr := fn(s)
	if err := s.Close(); err != nil && runErr == nil {
		return fmt.Errorf("failed to close memory: %w", err)
	}
	return runErr
}
