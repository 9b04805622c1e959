// Context provides the extended state of a running machine: a thread-safe
// key-value store that actions mutate and guards read.
//
//go:generate go test ./... -race
package primitives

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Context is a thread-safe key-value store using sync.Map for concurrent access.
// Snapshot/Restore iterate the map for serialization and rollback.
type Context struct {
	data sync.Map
}

// NewContext creates a new Context with an empty map.
func NewContext() *Context {
	return &Context{}
}

// NewContextFrom creates a Context seeded with a copy of data.
func NewContextFrom(data map[string]any) *Context {
	c := &Context{}
	for k, v := range data {
		c.data.Store(k, v)
	}
	return c
}

// Get retrieves a value by key. Safe for concurrent reads.
func (c *Context) Get(key string) (any, bool) {
	return c.data.Load(key)
}

// Set stores a value by key.
func (c *Context) Set(key string, val any) {
	c.data.Store(key, val)
}

// Delete removes a key-value pair.
func (c *Context) Delete(key string) {
	c.data.Delete(key)
}

// Keys returns the stored keys in sorted order.
func (c *Context) Keys() []string {
	var keys []string
	c.data.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (c *Context) Len() int {
	n := 0
	c.data.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Snapshot returns a serializable copy of the context data for persistence.
// The copy is shallow: reference values are shared with the live context.
func (c *Context) Snapshot() map[string]any {
	snap := map[string]any{}
	c.data.Range(func(k, v any) bool {
		snap[k.(string)] = v
		return true
	})
	return snap
}

// Restore replaces the context data from a snapshot map.
func (c *Context) Restore(snap map[string]any) {
	c.data.Range(func(k, v any) bool {
		c.data.Delete(k)
		return true
	})
	for k, v := range snap {
		c.data.Store(k, v)
	}
}

// Clone returns an independent Context holding the same entries.
func (c *Context) Clone() *Context {
	return NewContextFrom(c.Snapshot())
}

// Decode converts the value stored under key into out, which must be a
// pointer. Values restored from JSON or YAML (float64, map[string]any, ...)
// are weakly converted to the target type.
func (c *Context) Decode(key string, out any) error {
	v, ok := c.Get(key)
	if !ok {
		return fmt.Errorf("context key %q not set", key)
	}
	return decode(v, out)
}

// DecodeAll decodes the whole context into out (typically a struct pointer
// with mapstructure tags).
func (c *Context) DecodeAll(out any) error {
	return decode(c.Snapshot(), out)
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return fmt.Errorf("context decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("context decode: %w", err)
	}
	return nil
}
