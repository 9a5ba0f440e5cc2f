package schema

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]TemplateSpec)
	registryMu sync.RWMutex
)

// Register adds a template spec to the registry.
// Panics if the spec is invalid or its key is already registered.
func Register(spec TemplateSpec) {
	if err := spec.Validate(); err != nil {
		panic(fmt.Sprintf("invalid template spec: %v", err))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[spec.Key]; exists {
		panic(fmt.Sprintf("template spec already registered: %s", spec.Key))
	}
	registry[spec.Key] = spec
}

// Get returns a template spec by key.
func Get(key string) (TemplateSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	spec, ok := registry[key]
	return spec, ok
}

// All returns all registered specs sorted by key.
func All() []TemplateSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TemplateSpec, 0, len(registry))
	for _, spec := range registry {
		result = append(result, spec)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Keys returns all registered keys, sorted.
func Keys() []string {
	specs := All()
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key
	}
	return keys
}
