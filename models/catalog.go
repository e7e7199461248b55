package models

import (
	"fmt"
	"sort"
)

// ModelCatalog maps short caller-facing model keys to the fully-qualified
// identifiers the upstream API expects, and carries the ordered fallback
// sequence tried when the requested model fails. Immutable after
// construction, so concurrent reads need no synchronization.
type ModelCatalog struct {
	registry      map[string]string
	fallbackOrder []string
}

// NewModelCatalog builds a catalog from a key -> upstream-identifier mapping
// and a fallback priority order. Every fallback key must exist in the
// registry.
func NewModelCatalog(registry map[string]string, fallbackOrder []string) (*ModelCatalog, error) {
	if len(registry) == 0 {
		return nil, fmt.Errorf("model registry cannot be empty")
	}

	reg := make(map[string]string, len(registry))
	for key, upstreamID := range registry {
		if key == "" {
			return nil, fmt.Errorf("model key cannot be empty")
		}
		if upstreamID == "" {
			return nil, fmt.Errorf("upstream identifier for model %q cannot be empty", key)
		}
		reg[key] = upstreamID
	}

	order := make([]string, len(fallbackOrder))
	for i, key := range fallbackOrder {
		if _, ok := reg[key]; !ok {
			return nil, fmt.Errorf("fallback order references unknown model %q", key)
		}
		order[i] = key
	}

	return &ModelCatalog{
		registry:      reg,
		fallbackOrder: order,
	}, nil
}

// DefaultCatalog returns the built-in catalog of relayed models.
func DefaultCatalog() *ModelCatalog {
	catalog, err := NewModelCatalog(
		map[string]string{
			"deepseek": "deepseek/deepseek-chat-v3-0324",
			"llama":    "meta-llama/llama-3.3-70b-instruct",
			"gemini":   "google/gemini-2.0-flash-001",
		},
		[]string{"deepseek", "llama", "gemini"},
	)
	if err != nil {
		// The built-in tables are static; a failure here is a programming error.
		panic(err)
	}
	return catalog
}

// Resolve returns the upstream identifier for a model key.
func (c *ModelCatalog) Resolve(key string) (string, bool) {
	upstreamID, ok := c.registry[key]
	return upstreamID, ok
}

// Has reports whether the key is a known model.
func (c *ModelCatalog) Has(key string) bool {
	_, ok := c.registry[key]
	return ok
}

// FallbackOrder returns a copy of the fallback priority sequence.
func (c *ModelCatalog) FallbackOrder() []string {
	order := make([]string, len(c.fallbackOrder))
	copy(order, c.fallbackOrder)
	return order
}

// Keys returns all model keys in sorted order.
func (c *ModelCatalog) Keys() []string {
	keys := make([]string, 0, len(c.registry))
	for key := range c.registry {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered models.
func (c *ModelCatalog) Len() int {
	return len(c.registry)
}
