package object

import "github.com/jitrealm/jitrealm/internal/scripting"

// Instance is one live object: a blueprint clone identified by its object
// ID (spec §3's `blueprintId#NNNNNN` scheme), carrying its own state
// store. Everything else about its behavior — capabilities, methods —
// comes from the blueprint it was cloned from.
type Instance struct {
	ID          string
	BlueprintID string
	Ordinal     uint64
	State       *StateStore

	blueprint *Blueprint
}

// Capabilities returns the capability set of the blueprint this instance
// was cloned from.
func (i *Instance) Capabilities() scripting.Capability {
	return i.blueprint.Capabilities()
}

// Call invokes a method on the instance's current code unit, threading
// this instance's state through as part of ctx under the "state" key is
// NOT done here — state access is mediated by the caller (command/safe
// invoke layer), which builds the ctx table explicitly per call.
func (i *Instance) Call(method string, ctx scripting.CtxTable, args []scripting.Arg) (any, error) {
	return i.blueprint.Unit().Call(method, ctx, args)
}

// HasMethod reports whether the instance's current code unit defines the
// named global function.
func (i *Instance) HasMethod(name string) bool {
	return i.blueprint.Unit().HasMethod(name)
}

// TakesContext reports whether the named method's first parameter is the
// context table, per the code unit's compile-time CONTEXT_METHODS
// declaration.
func (i *Instance) TakesContext(name string) bool {
	return i.blueprint.Unit().TakesContext(name)
}
