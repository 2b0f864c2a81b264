// Package object implements the object manager of spec §4.D: blueprint
// compilation, instance cloning, and the reload/unload lifecycle that
// keeps a blueprint's live instances' state stores intact across a code
// swap.
package object

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/jitrealm/jitrealm/internal/clock"
	"github.com/jitrealm/jitrealm/internal/driverr"
	"github.com/jitrealm/jitrealm/internal/ident"
	"github.com/jitrealm/jitrealm/internal/safeinvoke"
	"github.com/jitrealm/jitrealm/internal/sandbox"
	"github.com/jitrealm/jitrealm/internal/scripting"
)

// GCPolicy controls the forced-reclamation hint of spec §4.D / Open
// Question 2: Unload may optionally nudge the Go garbage collector, since
// releasing a blueprint's Lua VM can free a large, long-lived object
// graph that would otherwise linger until the next natural GC cycle.
type GCPolicy struct {
	// ForceGcOnUnload runs runtime.GC() after every Unload.
	ForceGcOnUnload bool
	// ForceGcEveryN runs runtime.GC() every N unloads when ForceGcOnUnload
	// is false. Zero disables the periodic hint.
	ForceGcEveryN int
}

// Manager owns every loaded blueprint and every live instance cloned from
// one. All methods are safe for concurrent use; the tick loop and command
// dispatch both call into it.
type Manager struct {
	mu sync.RWMutex

	engine  *scripting.Engine
	invoker *safeinvoke.Invoker
	clk     clock.Clock
	gc      GCPolicy
	log     *zap.Logger

	blueprints   map[string]*Blueprint
	instances    map[string]*Instance // object id -> instance, includes all blueprints
	unloadTicker int
}

// NewManager constructs an empty manager bound to the given compiler, the
// safe invoker every entry into world code must go through (spec §4.J),
// and the clock used to stamp blueprint reload times.
func NewManager(engine *scripting.Engine, invoker *safeinvoke.Invoker, clk clock.Clock, gc GCPolicy, log *zap.Logger) *Manager {
	return &Manager{
		engine:     engine,
		invoker:    invoker,
		clk:        clk,
		gc:         gc,
		log:        log,
		blueprints: make(map[string]*Blueprint),
		instances:  make(map[string]*Instance),
	}
}

// LoadBlueprint compiles sourcePath and registers it under blueprintID. It
// is an error to load an ID that is already loaded — callers wanting a
// fresh compile of live code must use Reload instead.
func (m *Manager) LoadBlueprint(blueprintID, sourcePath string) (*Blueprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blueprints[blueprintID]; exists {
		return nil, driverr.CompileError(fmt.Sprintf("blueprint %q already loaded", blueprintID))
	}

	unit, err := m.engine.Load(sourcePath)
	if err != nil {
		return nil, err
	}

	bp := newBlueprint(blueprintID, sourcePath, unit, m.clk.Now())
	m.blueprints[blueprintID] = bp
	return bp, nil
}

// Clone creates a new instance of blueprintID with a fresh ordinal, applies
// initialState to its state store if given, and — if the blueprint defines
// on_load — invokes it under the safe invoker with the freshly-applied
// state already visible (spec §3: "optional initial state map applied
// before on-load so the hook sees it"; spec §4.D: "on-load invoked under
// the safe invoker").
func (m *Manager) Clone(blueprintID string, initialState map[string]any) (*Instance, error) {
	m.mu.RLock()
	bp, ok := m.blueprints[blueprintID]
	m.mu.RUnlock()
	if !ok {
		return nil, driverr.WorldCodeError(fmt.Sprintf("blueprint %q not loaded", blueprintID))
	}

	ord := bp.takeOrdinal()
	store := NewStateStore()
	if initialState != nil {
		store.Restore(initialState)
	}
	inst := &Instance{
		ID:          ident.ObjectID(blueprintID, ord),
		BlueprintID: blueprintID,
		Ordinal:     ord,
		State:       store,
		blueprint:   bp,
	}

	bp.addInstance(inst)
	m.mu.Lock()
	m.instances[inst.ID] = inst
	m.mu.Unlock()

	if inst.HasMethod("on_load") {
		m.invokeHook(inst, "on_load", nil)
	}

	return inst, nil
}

// RestoreInstance recreates an instance exactly as recorded in a snapshot,
// without firing on_load — spec §4.N's restore order reconstructs durable
// state directly rather than re-running blueprint birth logic a second
// time. The object ID's ordinal suffix is trusted as-is so restored
// instances keep their original IDs.
func (m *Manager) RestoreInstance(blueprintID, objectID string, state map[string]any) (*Instance, error) {
	m.mu.RLock()
	bp, ok := m.blueprints[blueprintID]
	m.mu.RUnlock()
	if !ok {
		return nil, driverr.WorldCodeError(fmt.Sprintf("blueprint %q not loaded", blueprintID))
	}

	_, ordinal, err := ident.SplitObjectID(objectID)
	if err != nil {
		return nil, driverr.PersistenceError(fmt.Sprintf("restore %q: %v", objectID, err))
	}

	store := NewStateStore()
	if state != nil {
		store.Restore(state)
	}
	inst := &Instance{
		ID:          objectID,
		BlueprintID: blueprintID,
		Ordinal:     ordinal,
		State:       store,
		blueprint:   bp,
	}

	bp.addInstance(inst)
	m.mu.Lock()
	m.instances[inst.ID] = inst
	m.mu.Unlock()

	return inst, nil
}

// SetOrdinalCounter fixes blueprintID's next-ordinal value directly, used
// after a restore has recreated every instance at its saved ordinal so
// later Clone calls never reuse an object ID (spec §4.N's restore order:
// "restore ordinals").
func (m *Manager) SetOrdinalCounter(blueprintID string, next uint64) {
	m.mu.RLock()
	bp, ok := m.blueprints[blueprintID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	bp.setOrdinal(next)
}

// InvokePostRestore calls post_restore, under the safe invoker, on every
// live instance that defines it — the final step of spec §4.N's restore
// order.
func (m *Manager) InvokePostRestore() {
	for _, inst := range m.AllInstances() {
		if inst.HasMethod("post_restore") {
			m.invokeHook(inst, "post_restore", nil)
		}
	}
}

// AllInstances returns every live instance across every blueprint, for
// snapshot assembly.
func (m *Manager) AllInstances() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	return out
}

// OrdinalCounters returns each loaded blueprint's next-ordinal value, so a
// snapshot can restore without ever reusing an object ID.
func (m *Manager) OrdinalCounters() map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint64, len(m.blueprints))
	for id, bp := range m.blueprints {
		out[id] = bp.peekOrdinal()
	}
	return out
}

// Get returns the live instance with the given object ID.
func (m *Manager) Get(objectID string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[objectID]
	return inst, ok
}

// GetBlueprint returns the blueprint registered under id.
func (m *Manager) GetBlueprint(id string) (*Blueprint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bp, ok := m.blueprints[id]
	return bp, ok
}

// Destruct removes an instance permanently. It does not touch the
// blueprint's code unit; only the instance and its state store are
// discarded. Callers that also need to detach containment edges do so in
// the worldstate registry before or after calling Destruct — the object
// manager has no opinion on containment (spec §3 invariant: the two
// registries are independent).
func (m *Manager) Destruct(objectID string) error {
	m.mu.Lock()
	inst, ok := m.instances[objectID]
	if !ok {
		m.mu.Unlock()
		return driverr.WorldCodeError(fmt.Sprintf("instance %q not found", objectID))
	}
	delete(m.instances, objectID)
	m.mu.Unlock()

	inst.blueprint.removeInstance(objectID)
	return nil
}

// Reload recompiles a blueprint's source from disk and swaps every live
// instance onto the new code unit, preserving each instance's state
// store untouched (spec §3's reload lifecycle: "state store carries
// across; ordinal counter is not reset"). The old code unit is released
// after the swap. Every live instance's on_reload, if defined, is invoked
// under the safe invoker with the context table followed by the previous
// blueprint's load timestamp in Unix seconds (spec §3's
// previousBlueprintTimestamp) as its one positional argument.
func (m *Manager) Reload(blueprintID string) error {
	m.mu.RLock()
	bp, ok := m.blueprints[blueprintID]
	m.mu.RUnlock()
	if !ok {
		return driverr.WorldCodeError(fmt.Sprintf("blueprint %q not loaded", blueprintID))
	}

	newUnit, err := m.engine.Load(bp.SourcePath)
	if err != nil {
		return err
	}

	previous := bp.peekLoadedAt()
	now := m.clk.Now()

	bp.mu.Lock()
	oldUnit := bp.unit
	bp.unit = newUnit
	bp.loadedAt = now
	bp.mu.Unlock()

	oldUnit.Release()

	args := []scripting.Arg{scripting.FloatArg(float64(previous.Unix()))}
	for _, inst := range bp.listInstances() {
		if inst.HasMethod("on_reload") {
			m.invokeHook(inst, "on_reload", args)
		}
	}

	return nil
}

// Unload destructs every instance of blueprintID, releases its code
// unit, deregisters the blueprint, and applies the forced-GC hint
// according to GCPolicy. Each instance's on_destruct, if defined, is
// invoked under the safe invoker before it is removed.
func (m *Manager) Unload(blueprintID string) error {
	m.mu.Lock()
	bp, ok := m.blueprints[blueprintID]
	if !ok {
		m.mu.Unlock()
		return driverr.WorldCodeError(fmt.Sprintf("blueprint %q not loaded", blueprintID))
	}
	delete(m.blueprints, blueprintID)
	m.mu.Unlock()

	for _, inst := range bp.listInstances() {
		if inst.HasMethod("on_destruct") {
			m.invokeHook(inst, "on_destruct", nil)
		}
		m.mu.Lock()
		delete(m.instances, inst.ID)
		m.mu.Unlock()
	}

	bp.Unit().Release()
	m.maybeForceGC()
	return nil
}

// invokeHook is the sole path by which the manager enters world code for
// lifecycle hooks (on_load, on_reload, on_destruct, post_restore) — spec
// §4.J requires every entry go through the safe invoker, not just tick-loop
// dispatch.
func (m *Manager) invokeHook(inst *Instance, method string, args []scripting.Arg) {
	result := m.invoker.Call(context.Background(), sandbox.Hook, inst.ID, method, func() (any, error) {
		return inst.Call(method, BuildContext(inst.ID), args)
	})
	if result.Outcome != safeinvoke.OK {
		m.log.Warn("lifecycle hook did not complete cleanly",
			zap.String("instance", inst.ID),
			zap.String("method", method),
			zap.String("outcome", result.Outcome.String()),
			zap.Error(result.Err),
		)
	}
}

func (m *Manager) maybeForceGC() {
	if m.gc.ForceGcOnUnload {
		runtime.GC()
		return
	}
	if m.gc.ForceGcEveryN <= 0 {
		return
	}
	m.mu.Lock()
	m.unloadTicker++
	due := m.unloadTicker >= m.gc.ForceGcEveryN
	if due {
		m.unloadTicker = 0
	}
	m.mu.Unlock()
	if due {
		runtime.GC()
	}
}
