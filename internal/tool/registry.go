package tool

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry is a catalogue of capabilities, keyed by name. Registries are
// instance-based: the ambient catalogue, and each composite tool's private
// proof catalogue, are separate instances.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Capability
}

// NewRegistry creates an empty catalogue.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Capability)}
}

// Register adds a capability to the catalogue.
// It returns ErrEmptyToolName for blank names and ErrDuplicateTool if a
// capability with the same name is already registered.
func (r *Registry) Register(c Capability) error {
	name := strings.TrimSpace(c.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = c
	return nil
}

// Get returns the capability with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return c, nil
}

// Names returns all registered tool names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.SortFunc(names, cmp.Compare)
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Clone returns an independent catalogue with the same capabilities.
// Used to extend the primitive catalogue with composite tools without
// mutating the shared instance.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := NewRegistry()
	for name, t := range r.tools {
		c.tools[name] = t
	}
	return c
}
