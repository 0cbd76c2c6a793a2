package consultation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/upb/medrag/services"
)

// ErrGeneratorAlreadyRegistered is returned when trying to register a duplicate agent
var ErrGeneratorAlreadyRegistered = errors.New("generator already registered")

// Registry maps agent identifiers to generators
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
	fallback   string
}

// NewRegistry creates a registry. fallback names the agent used when a
// request does not ask for one.
func NewRegistry(fallback string) *Registry {
	return &Registry{
		generators: make(map[string]Generator),
		fallback:   fallback,
	}
}

// Register adds a generator
func (r *Registry) Register(g Generator) error {
	if g == nil {
		return errors.New("generator cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := g.ID()
	if id == "" {
		return errors.New("generator id cannot be empty")
	}
	if _, exists := r.generators[id]; exists {
		return ErrGeneratorAlreadyRegistered
	}
	r.generators[id] = g
	return nil
}

// Get returns the generator for id, or the fallback when id is empty.
// Unknown ids are a validation error.
func (r *Registry) Get(id string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == "" {
		id = r.fallback
	}
	g, ok := r.generators[id]
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrUnknownAgent.Message, nil).
			WithDetail("preferred_agent", id).
			WithDetail("available", r.listLocked())
	}
	return g, nil
}

// List returns the registered agent ids in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []string {
	ids := make([]string, 0, len(r.generators))
	for id := range r.generators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry registers the template and LLM generators with txagent as
// fallback. The openai agent is always present; a nil llm registers one with
// no provider so requests for it fail as not configured.
func DefaultRegistry(llm *LLMGenerator) (*Registry, error) {
	if llm == nil {
		llm = NewLLMGenerator(nil, "", 0)
	}

	r := NewRegistry(AgentTemplate)
	for _, g := range []Generator{NewTemplateGenerator(), llm} {
		if err := r.Register(g); err != nil {
			return nil, fmt.Errorf("failed to register agent %q: %w", g.ID(), err)
		}
	}
	return r, nil
}
