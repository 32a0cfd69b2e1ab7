// Package persona describes the conversational agents Cathedral hosts. Every
// store and the chat orchestrator take a Persona instead of hard-coding
// per-agent key prefixes or instructions.
package persona

import (
	"errors"
	"sort"
	"strings"
)

var ErrUnknown = errors.New("unknown persona")

// Persona is the single parameter record shared by every per-persona
// component.
type Persona struct {
	// Namespace is the URL segment and the key prefix in the store.
	Namespace    string
	DisplayName  string
	Instructions string
	// Backend names the generation backend (openai|anthropic|mock).
	Backend string
	Model   string
}

const (
	Hollow = "hollow"
	Rhys   = "rhys"
)

// Registry resolves personas by namespace.
type Registry struct {
	byName map[string]Persona
}

func NewRegistry(personas ...Persona) *Registry {
	r := &Registry{byName: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		r.byName[strings.ToLower(p.Namespace)] = p
	}
	return r
}

func (r *Registry) Get(name string) (Persona, error) {
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Persona{}, ErrUnknown
	}
	return p, nil
}

// Names returns every namespace in stable order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) All() []Persona {
	names := r.Names()
	out := make([]Persona, 0, len(names))
	for _, n := range names {
		out = append(out, r.byName[n])
	}
	return out
}
