package permission

import (
	"errors"
	"sync"
)

var (
	// ErrUnknownPermission is returned by [Registry.Check] for names that were
	// never registered.
	ErrUnknownPermission = errors.New("permission not registered")
	// ErrRegistryFrozen is returned by [Registry.Register] after [Registry.Freeze].
	ErrRegistryFrozen = errors.New("registry frozen")
)

// Registry is the catalogue of permission names an application checks
// against. Guards validate their required names here at startup so a typo
// fails loudly instead of silently denying every request.
type Registry struct {
	mu     sync.RWMutex
	names  map[string]struct{}
	frozen bool
}

// NewRegistry returns a registry seeded with names.
func NewRegistry(names ...string) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if err := r.Register(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds name. Registering the same name twice is an error.
func (r *Registry) Register(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if name == "" {
		return errors.New("permission name cannot be empty")
	}
	if _, exists := r.names[name]; exists {
		return errors.New("permission already registered: " + name)
	}
	r.names[name] = struct{}{}
	return nil
}

// RegisterRoles registers every permission name found in roles, ignoring
// duplicates.
func (r *Registry) RegisterRoles(roles []Role) error {
	for name := range Resolve(roles) {
		if r.Known(name) {
			continue
		}
		if err := r.Register(name); err != nil {
			return err
		}
	}
	return nil
}

// Known reports whether name was registered.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Check returns ErrUnknownPermission naming the first unregistered entry.
func (r *Registry) Check(names ...string) error {
	for _, name := range names {
		if !r.Known(name) {
			return errors.Join(ErrUnknownPermission, errors.New(name))
		}
	}
	return nil
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered names.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
