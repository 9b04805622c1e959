// Package extensibility holds the default GuardEvaluator and ActionRunner
// implementations, the Catalog that lets declarative (YAML/JSON) definitions
// refer to guards and actions by name, and event sources that feed a Machine.
package extensibility

import (
	"sort"
	"sync"

	"github.com/comalice/chartkit/internal/primitives"
)

// Catalog maps names to guard and action functions. String refs in a
// definition are looked up here before built-in action kinds and guard
// expressions are tried. Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	guards  map[string]primitives.GuardFunc
	actions map[string]primitives.ActionFunc
}

func NewCatalog() *Catalog {
	return &Catalog{
		guards:  make(map[string]primitives.GuardFunc),
		actions: make(map[string]primitives.ActionFunc),
	}
}

// RegisterGuard adds or replaces a named guard.
func (c *Catalog) RegisterGuard(name string, fn primitives.GuardFunc) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guards[name] = fn
	return c
}

// RegisterAction adds or replaces a named action.
func (c *Catalog) RegisterAction(name string, fn primitives.ActionFunc) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions[name] = fn
	return c
}

func (c *Catalog) Guard(name string) (primitives.GuardFunc, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.guards[name]
	return fn, ok
}

func (c *Catalog) Action(name string) (primitives.ActionFunc, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.actions[name]
	return fn, ok
}

// GuardNames returns the registered guard names, sorted.
func (c *Catalog) GuardNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.guards))
	for name := range c.guards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActionNames returns the registered action names, sorted.
func (c *Catalog) ActionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
