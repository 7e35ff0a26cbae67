package tts

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrEngineNotFound is returned when no factory is registered under a name.
	ErrEngineNotFound = errors.New("TTS engine not found")
	// ErrEngineExists is returned when trying to register a duplicate engine.
	ErrEngineExists = errors.New("TTS engine already registered")
)

// Settings are the knobs shared by every engine factory. Each factory reads
// the fields it needs.
type Settings struct {
	Host      string
	Command   string
	Timeout   time.Duration
	CacheSize int
}

// Factory builds an engine from settings.
type Factory func(s Settings, logger *slog.Logger) (Engine, error)

// Registry maps engine names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry knows the built-in google, exec and silence engines.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("google", func(s Settings, logger *slog.Logger) (Engine, error) {
		return NewGoogleEngine(GoogleConfig{Host: s.Host, Timeout: s.Timeout}, logger), nil
	})
	r.Register("exec", func(s Settings, logger *slog.Logger) (Engine, error) {
		return NewExecEngine(ExecConfig{Command: s.Command}, logger)
	})
	r.Register(silenceEngineName, func(Settings, *slog.Logger) (Engine, error) {
		return NewSilenceEngine(), nil
	})
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrEngineExists, name)
	}
	r.factories[name] = f
	return nil
}

// Build constructs the named engine. A positive s.CacheSize puts it behind
// a CachedEngine.
func (r *Registry) Build(name string, s Settings, logger *slog.Logger) (Engine, error) {
	r.mu.RLock()
	f, exists := r.factories[name]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}

	engine, err := f(s, logger)
	if err != nil {
		return nil, fmt.Errorf("build %s engine: %w", name, err)
	}
	if s.CacheSize > 0 {
		return NewCachedEngine(engine, s.CacheSize, logger)
	}
	return engine, nil
}

// Names returns all registered engine names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
