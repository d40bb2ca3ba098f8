// Package provider implements the generic registration/factory mechanism
// shared by the storage, speech-recognition and summarizer backends.
// Discovery is an explicit static registration list built at startup; no
// runtime scanning.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vidscribe/vidscribe/internal/config"
)

// UnknownProviderError is returned by Create when the requested name was
// never registered. It signals a misconfiguration and is never retried.
type UnknownProviderError struct {
	Name       string
	Registered []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("vidscribe: unknown provider %q (registered: %v)", e.Name, e.Registered)
}

// Constructor builds a fresh provider instance from configuration.
// Construction is deferred until Create is called; one instance is built per
// Create call.
type Constructor[T any] func(cfg *config.Config) (T, error)

// Registry maintains a mapping of provider names to their constructors.
// Registration typically happens once at startup; steady-state access is
// read-mostly.
type Registry[T any] struct {
	mu           sync.RWMutex
	constructors map[string]Constructor[T]
}

// NewRegistry creates an empty provider registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{constructors: make(map[string]Constructor[T])}
}

// Register adds a provider constructor under name. Re-registering the same
// name overwrites the previous constructor.
func (r *Registry[T]) Register(name string, ctor Constructor[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Create builds a new provider instance for name. Unknown names always fail
// with *UnknownProviderError.
func (r *Registry[T]) Create(name string, cfg *config.Config) (T, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()

	if !ok {
		var zero T
		return zero, &UnknownProviderError{Name: name, Registered: r.Names()}
	}

	return ctor(cfg)
}

// Names returns the sorted list of registered provider names.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has returns true if a provider is registered with the given name.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[name]
	return ok
}
