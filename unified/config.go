package unified

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/voyager/classify"
	"github.com/tailored-agentic-units/voyager/episodic"
	"github.com/tailored-agentic-units/voyager/memory"
	"github.com/tailored-agentic-units/voyager/observability"
)

const (
	DefaultAgentName   = "default"
	DefaultStateDir    = ".voyager"
	DefaultRecallLimit = 10
	DefaultObserver    = "slog"

	memorySubdir = "memory"
)

// Config holds initialization parameters for one agent memory space. Each
// subsystem section delegates to that subsystem's configuration.
type Config struct {
	ProjectDir  string          `json:"project_dir,omitempty" yaml:"project_dir,omitempty" validate:"required"`
	AgentName   string          `json:"agent_name,omitempty" yaml:"agent_name,omitempty" validate:"required,pathsegment"`
	StateDir    string          `json:"state_dir,omitempty" yaml:"state_dir,omitempty" validate:"required"`
	RecallLimit int             `json:"recall_limit,omitempty" yaml:"recall_limit,omitempty" validate:"min=1"`
	Observer    string          `json:"observer,omitempty" yaml:"observer,omitempty" validate:"required"`
	Memory      memory.Config   `json:"memory" yaml:"memory"`
	Episodic    episodic.Config `json:"episodic" yaml:"episodic"`
	Classifier  classify.Rules  `json:"classifier" yaml:"classifier"`
}

// DefaultConfig returns a Config with defaults for all subsystems, rooted at
// the current directory.
func DefaultConfig() Config {
	return Config{
		ProjectDir:  ".",
		AgentName:   DefaultAgentName,
		StateDir:    DefaultStateDir,
		RecallLimit: DefaultRecallLimit,
		Observer:    DefaultObserver,
		Memory:      memory.DefaultConfig(),
		Episodic:    episodic.DefaultConfig(),
		Classifier:  classify.DefaultRules(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Memory.Merge(&source.Memory)
	c.Episodic.Merge(&source.Episodic)
	c.Classifier.Merge(&source.Classifier)

	if source.ProjectDir != "" {
		c.ProjectDir = source.ProjectDir
	}
	if source.AgentName != "" {
		c.AgentName = source.AgentName
	}
	if source.StateDir != "" {
		c.StateDir = source.StateDir
	}
	if source.RecallLimit > 0 {
		c.RecallLimit = source.RecallLimit
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// MemoryDir returns the directory holding the agent's entry document and
// episodic store.
func (c *Config) MemoryDir() string {
	return filepath.Join(c.ProjectDir, c.StateDir, memorySubdir, c.AgentName)
}

// Validate checks c against its field constraints. Failures wrap
// ErrInvalidConfig and list every offending field.
func (c *Config) Validate() error {
	var messages []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, e := range fieldErrs {
			messages = append(messages, formatFieldError(e))
		}
	}

	if c.Observer != "" && !slices.Contains(observability.Names(), c.Observer) {
		messages = append(messages, fmt.Sprintf("observer must be one of [%s] (got: %s)",
			strings.Join(observability.Names(), " "), c.Observer))
	}

	if len(messages) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(messages, "\n  - "))
	}
	return nil
}

// LoadConfig reads a YAML config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("pathsegment", validatePathSegment)
	return v
}

// validatePathSegment accepts a single, non-relative path element.
func validatePathSegment(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func formatFieldError(e validator.FieldError) string {
	path := e.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", path, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", path, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", path, e.Param(), e.Value())
	case "pathsegment":
		return fmt.Sprintf("%s must be a single path element (got: %v)", path, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", path, e.Tag(), e.Value())
	}
}
