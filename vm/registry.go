package vm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/esch/errcode"
)

// Registry maps type names to frozen types. Registration validates the
// type and freezes it; a registered type never changes afterwards.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry creates a registry that already holds MetaType.
func NewRegistry() *Registry {
	return &Registry{
		types: map[string]*Type{MetaType.name: MetaType},
	}
}

// Register validates and freezes t and makes it available by name.
// Registering the same type twice is a no-op; a different type under a
// taken name is rejected.
func (r *Registry) Register(t *Type) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("vm: register: %w", err)
	}
	if t.name == "" {
		return fmt.Errorf("vm: register: unnamed type: %w", errcode.InvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.types[t.name]; ok {
		if existing == t {
			return nil
		}
		return fmt.Errorf("vm: register: name %q already taken: %w", t.name, errcode.InvalidState)
	}
	t.Freeze()
	r.types[t.name] = t
	return nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("vm: lookup type %q: %w", name, errcode.NotFound)
	}
	return t, nil
}

// Types returns every registered type sorted by name.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
