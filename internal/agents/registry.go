package agents

import (
	"sort"
	"sync"

	domain "meridian/internal/domain/analysis"
	"meridian/pkg/errors"
)

// Constructor builds a fresh specialist for one assignment
type Constructor func() Specialist

// Registry maps agent types to constructors.
type Registry struct {
	constructors map[domain.AgentType]Constructor
	mu           sync.RWMutex
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[domain.AgentType]Constructor)}
}

// NewDefaultRegistry registers all eight specialist variants.
func NewDefaultRegistry(opts SpecialistOptions) *Registry {
	r := NewRegistry()
	for agentType, build := range Variants {
		r.Register(agentType, func() Specialist { return build(opts) })
	}
	return r
}

// Register adds or replaces a constructor.
func (r *Registry) Register(agentType domain.AgentType, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[agentType] = c
}

// New builds a specialist of the given type.
func (r *Registry) New(agentType domain.AgentType) (Specialist, error) {
	r.mu.RLock()
	c, ok := r.constructors[agentType]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownAgent, "no specialist registered for %s", agentType)
	}
	return c(), nil
}

// List returns registered agent types, sorted.
func (r *Registry) List() []domain.AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]domain.AgentType, 0, len(r.constructors))
	for t := range r.constructors {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
