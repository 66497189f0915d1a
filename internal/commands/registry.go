package commands

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Registry maps command names and aliases to commands.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Command
	names  map[string]string // name or alias -> primary name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Command),
		names:  make(map[string]string),
	}
}

// Register adds c under its name and aliases. Names are case-insensitive
// and may not start with '-', which the dispatcher reserves for flags.
func (r *Registry) Register(c Command) error {
	keys := append([]string{c.Name()}, c.Aliases()...)
	for i, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.HasPrefix(k, "-") {
			return fmt.Errorf("invalid command name: %q", keys[i])
		}
		keys[i] = k
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, k := range keys {
		if owner, exists := r.names[k]; exists {
			if i == 0 {
				return fmt.Errorf("command already registered: %s", k)
			}
			return fmt.Errorf("command alias already registered: %s (by %s)", k, owner)
		}
	}

	primary := keys[0]
	r.byName[primary] = c
	for _, k := range keys {
		r.names[k] = primary
	}
	return nil
}

// Find looks up a command by name or alias.
func (r *Registry) Find(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	primary, ok := r.names[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return r.byName[primary], true
}

// Commands returns each command once, sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.byName))
	for _, name := range slices.Sorted(maps.Keys(r.byName)) {
		out = append(out, r.byName[name])
	}
	return out
}

// DefaultRegistry is the global command registry.
var DefaultRegistry = NewRegistry()

// Register adds a command to the default registry. It panics on a
// conflict, which can only happen at init time.
func Register(c Command) {
	if err := DefaultRegistry.Register(c); err != nil {
		panic(err)
	}
}
