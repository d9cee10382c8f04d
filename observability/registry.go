package observability

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Factory builds an observer that logs through logger.
type Factory func(logger *slog.Logger) Observer

var (
	factories = map[string]Factory{
		"noop": func(*slog.Logger) Observer { return NoOpObserver{} },
		"slog": func(l *slog.Logger) Observer { return NewSlogObserver(l) },
		"span": func(*slog.Logger) Observer { return SpanObserver{} },
		"slog+span": func(l *slog.Logger) Observer {
			return NewMultiObserver(NewSlogObserver(l), SpanObserver{})
		},
	}
	mutex sync.RWMutex
)

// GetObserver builds the observer registered under name, bound to logger.
// Pre-registered: "noop", "slog", "span" and "slog+span".
func GetObserver(name string, logger *slog.Logger) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	factory, exists := factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return factory(logger), nil
}

// RegisterObserver adds or replaces a named observer factory.
func RegisterObserver(name string, factory Factory) {
	mutex.Lock()
	defer mutex.Unlock()

	factories[name] = factory
}

// Names lists the registered observer names in sorted order.
func Names() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
