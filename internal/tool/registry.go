package tool

import (
	"sync"

	"github.com/pagepal/pagepal/internal/log"
)

// Registry holds tool definitions keyed by name.
//
// The registry is explicitly owned, injected state: the application container
// constructs one at startup, registers the builtin tools, and hands it to
// consumers. Registration is last-write-wins; re-registering a name replaces
// the previous definition.
//
// Thread Safety: safe for concurrent use. Registration normally happens once
// at process start and lookups are read-only afterwards, but the map is still
// guarded so the HTTP surface can list tools while a test re-registers.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Definition
	logger log.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Definition),
		logger: logger,
	}
}

// Register stores a definition by name, overwriting any existing entry.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	_, replaced := r.tools[def.Name]
	r.tools[def.Name] = def
	r.mu.Unlock()

	r.logger.Info("registered tool", "name", def.Name, "replaced", replaced)
}

// Unregister removes a definition by name. Removing an absent name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	_, existed := r.tools[name]
	delete(r.tools, name)
	r.mu.Unlock()

	if existed {
		r.logger.Info("unregistered tool", "name", name)
	}
}

// Get returns the definition for name.
// Returns ErrToolNotFound if no tool is registered under that name.
func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.tools[name]
	if !ok {
		return Definition{}, ErrToolNotFound
	}
	return def, nil
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// All returns all registered definitions in unspecified order.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	return defs
}

// Names returns all registered tool names in unspecified order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Size returns the number of registered tools.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Clear removes all registered tools.
func (r *Registry) Clear() {
	r.mu.Lock()
	n := len(r.tools)
	r.tools = make(map[string]Definition)
	r.mu.Unlock()

	r.logger.Info("cleared tool registry", "removed", n)
}
