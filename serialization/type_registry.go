package serialization

import (
	"fmt"
	"sort"
	"sync"

	"github.com/relaymq/relay-go/contracts"
)

// MessageFactory creates a new, empty instance of a registered message type
type MessageFactory func() contracts.Message

// TypeRegistry manages message type registrations for serialization.
// Registration supplies the type tag explicitly; the registry never derives
// tags from runtime type information.
type TypeRegistry struct {
	factories map[string]MessageFactory
	mu        sync.RWMutex
}

// NewTypeRegistry creates a new type registry
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		factories: make(map[string]MessageFactory),
	}
}

// Register registers a factory for a type name
func (r *TypeRegistry) Register(typeName string, factory MessageFactory) error {
	if typeName == "" {
		return fmt.Errorf("serialization: type name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("serialization: factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeName]; exists {
		return fmt.Errorf("serialization: type %s already registered", typeName)
	}

	r.factories[typeName] = factory
	return nil
}

// CreateInstance creates a new instance of the registered type
func (r *TypeRegistry) CreateInstance(typeName string) (contracts.Message, error) {
	r.mu.RLock()
	factory, exists := r.factories[typeName]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("serialization: type %s not registered", typeName)
	}
	return factory(), nil
}

// IsRegistered checks if a type is registered
func (r *TypeRegistry) IsRegistered(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[typeName]
	return exists
}

// ListTypes returns all registered type names, sorted
func (r *TypeRegistry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for typeName := range r.factories {
		types = append(types, typeName)
	}
	sort.Strings(types)
	return types
}
