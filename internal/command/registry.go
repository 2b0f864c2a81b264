// Package command implements the command registry and dispatcher of
// spec §4.K: global and local command lookup with strict precedence,
// wizard gating, and room-event fan-out to AI-NPC observers.
package command

import "strings"

// Handler executes a command. ctx carries everything the command needs
// to know about the actor and the words after the verb.
type Handler func(ctx *Context) error

// Context is what a Handler receives for one invocation.
type Context struct {
	ActorID string
	Verb    string
	Args    []string
	Wizard  bool
}

// Spec describes one registrable command.
type Spec struct {
	Name    string
	Aliases []string
	Wizard  bool // requires the actor to have wizard standing
	Handler Handler
}

// Registry holds the global command table (built-in verbs available
// everywhere) and, per room/object, a local command table (verbs a
// specific blueprint contributes while the actor is present).
type Registry struct {
	global      map[string]*Spec
	globalAlias map[string]*Spec

	// local[objectID][verb] -> Spec
	local      map[string]map[string]*Spec
	localAlias map[string]map[string]*Spec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		global:      make(map[string]*Spec),
		globalAlias: make(map[string]*Spec),
		local:       make(map[string]map[string]*Spec),
		localAlias:  make(map[string]map[string]*Spec),
	}
}

// RegisterGlobal adds a command available regardless of the actor's
// location.
func (r *Registry) RegisterGlobal(spec Spec) {
	name := strings.ToLower(spec.Name)
	r.global[name] = &spec
	for _, a := range spec.Aliases {
		r.globalAlias[strings.ToLower(a)] = &spec
	}
}

// RegisterLocal adds a command that only resolves while the actor is
// co-located with objectID (e.g. a room's custom verbs, an NPC's
// `ask <npc> about <topic>` style local hook).
func (r *Registry) RegisterLocal(objectID string, spec Spec) {
	name := strings.ToLower(spec.Name)
	if r.local[objectID] == nil {
		r.local[objectID] = make(map[string]*Spec)
		r.localAlias[objectID] = make(map[string]*Spec)
	}
	r.local[objectID][name] = &spec
	for _, a := range spec.Aliases {
		r.localAlias[objectID][strings.ToLower(a)] = &spec
	}
}

// UnregisterLocal drops every local command objectID contributed —
// called when an instance is destructed or its room is unloaded.
func (r *Registry) UnregisterLocal(objectID string) {
	delete(r.local, objectID)
	delete(r.localAlias, objectID)
}

// Lookup resolves verb against the precedence order spec §4.K fixes:
// exact global name, then global alias, then local name (searched across
// localObjectIDs in the order given — typically the actor's room then its
// contents), then local alias.
func (r *Registry) Lookup(verb string, localObjectIDs []string) (*Spec, bool) {
	v := strings.ToLower(verb)

	if spec, ok := r.global[v]; ok {
		return spec, true
	}
	if spec, ok := r.globalAlias[v]; ok {
		return spec, true
	}
	for _, objectID := range localObjectIDs {
		if table, ok := r.local[objectID]; ok {
			if spec, ok := table[v]; ok {
				return spec, true
			}
		}
	}
	for _, objectID := range localObjectIDs {
		if table, ok := r.localAlias[objectID]; ok {
			if spec, ok := table[v]; ok {
				return spec, true
			}
		}
	}
	return nil, false
}
