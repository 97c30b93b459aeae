// Package checkdigit provides pluggable check-digit algorithms for
// identifier formatting and validation.
package checkdigit

import (
	"fmt"
	"sync"
)

// Algorithm computes and verifies a single trailing check digit.
type Algorithm interface {
	// Name returns the registry key for this algorithm.
	Name() string

	// CheckDigit computes the check digit for an undecorated identifier.
	CheckDigit(identifier string) (string, error)

	// Append returns the identifier with its check digit appended.
	Append(identifier string) (string, error)

	// Verify checks an identifier whose last character is a check digit.
	Verify(identifier string) (bool, error)
}

// Registry maps algorithm names to implementations.
// Read-mostly: registration happens at startup, lookups on every generation.
type Registry struct {
	mu   sync.RWMutex
	algs map[string]Algorithm
}

// NewRegistry creates a registry pre-populated with the built-in algorithms.
func NewRegistry() *Registry {
	r := &Registry{algs: make(map[string]Algorithm)}
	r.Register(NewLuhnMod10())
	r.Register(NewLuhnMod30())
	return r
}

// Register adds an algorithm. Last registration for a name wins.
func (r *Registry) Register(a Algorithm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algs[a.Name()] = a
}

// Get returns the algorithm registered under name.
func (r *Registry) Get(name string) (Algorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.algs[name]
	if !ok {
		return nil, fmt.Errorf("unknown check-digit algorithm %q", name)
	}
	return a, nil
}

// Names returns all registered algorithm names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.algs))
	for name := range r.algs {
		names = append(names, name)
	}
	return names
}
