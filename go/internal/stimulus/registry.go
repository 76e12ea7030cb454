package stimulus

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mcdev12/choicetrial/go/internal/models"
)

// Factory builds a drawing callback from experiment-file parameters.
type Factory func(params map[string]any) (models.DrawFunc, error)

// Registry maps stimulus names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in stimuli.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, f := range builtins {
		r.factories[name] = f
	}
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStimulus, name)
	}
	r.factories[name] = f
	return nil
}

// Build resolves name and params into a stimulus.
func (r *Registry) Build(name string, params map[string]any) (models.Stimulus, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return models.Stimulus{}, fmt.Errorf("%w: %s", ErrUnknownStimulus, name)
	}

	draw, err := f(params)
	if err != nil {
		return models.Stimulus{}, fmt.Errorf("failed to build stimulus %s: %w", name, err)
	}
	return models.Stimulus{Name: name, Draw: draw}, nil
}

// Names returns the registered stimulus names in sorted order.
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
