package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

var (
	ErrConfigRequired   = errors.New("transport: config is required")
	ErrUnknownTransport = errors.New("transport: unknown transport")
)

// Registry maps transport names to builders and capabilities.
type Registry struct {
	mu           sync.RWMutex
	builders     map[string]Builder
	capabilities map[string]Capabilities
}

// DefaultRegistry is the registry sub-packages register with.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		builders:     make(map[string]Builder),
		capabilities: make(map[string]Capabilities),
	}
}

// Register adds or replaces a builder. Capabilities default to the name only.
func (r *Registry) Register(name string, builder Builder) {
	r.RegisterWithCapabilities(name, builder, Capabilities{Name: name})
}

// RegisterWithCapabilities adds or replaces a builder and its capabilities.
func (r *Registry) RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	if caps.Name == "" {
		caps.Name = name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
	r.capabilities[name] = caps
}

// GetCapabilities returns the capabilities registered for name, or a
// Capabilities value carrying only the name when it is unknown.
func (r *Registry) GetCapabilities(name string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caps, ok := r.capabilities[name]; ok {
		return caps
	}
	return Capabilities{Name: name}
}

// Build creates the sink named by cfg.GetTransport(). The registered
// capabilities are attached unless the builder already filled them.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error) {
	if cfg == nil {
		return Sink{}, ErrConfigRequired
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	name := cfg.GetTransport()

	r.mu.RLock()
	builder, ok := r.builders[name]
	caps := r.capabilities[name]
	r.mu.RUnlock()

	if !ok {
		return Sink{}, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownTransport, name, r.Names())
	}

	sink, err := builder(ctx, cfg, logger)
	if err != nil {
		return Sink{}, fmt.Errorf("transport %s: %w", name, err)
	}
	if sink.Capabilities.Name == "" {
		sink.Capabilities = caps
	}
	return sink, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the capabilities of every registered transport, sorted by name.
func (r *Registry) List() []Capabilities {
	names := r.Names()
	out := make([]Capabilities, 0, len(names))
	for _, name := range names {
		out = append(out, r.GetCapabilities(name))
	}
	return out
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[name]
	return ok
}

// Register adds a builder to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// RegisterWithCapabilities adds a builder and capabilities to the default registry.
func RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, builder, caps)
}

// Build creates a sink using the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
