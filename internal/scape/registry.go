package scape

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrScapeExists   = errors.New("scape already registered")
	ErrScapeNotFound = errors.New("scape not found")
)

var registry = struct {
	mu sync.RWMutex
	m  map[string]Scape
}{
	m: builtins(),
}

func builtins() map[string]Scape {
	return map[string]Scape{
		BiquadScape{}.Name(): BiquadScape{},
		OneMaxScape{}.Name(): OneMaxScape{},
	}
}

func Register(s Scape) error {
	if s == nil {
		return errors.New("scape is required")
	}
	if s.Name() == "" {
		return errors.New("scape name is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.m[s.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrScapeExists, s.Name())
	}
	registry.m[s.Name()] = s
	return nil
}

func Resolve(name string) (Scape, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	s, ok := registry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScapeNotFound, name)
	}
	return s, nil
}

func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.m = builtins()
}
