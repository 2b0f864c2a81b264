package object

import (
	"sync"
	"time"

	"github.com/jitrealm/jitrealm/internal/scripting"
)

// Blueprint is a compiled world source file and the bookkeeping the
// manager needs to clone, reload, and unload it. Spec §3 calls a
// blueprint's identity its blueprint ID; this struct is the driver-side
// handle behind that ID.
type Blueprint struct {
	mu sync.RWMutex

	ID         string
	SourcePath string
	unit       *scripting.CodeUnit
	loadedAt   time.Time

	nextOrdinal uint64
	instances   map[string]*Instance // object id -> instance
	unloadCount int
}

func newBlueprint(id, sourcePath string, unit *scripting.CodeUnit, loadedAt time.Time) *Blueprint {
	return &Blueprint{
		ID:          id,
		SourcePath:  sourcePath,
		unit:        unit,
		loadedAt:    loadedAt,
		nextOrdinal: 1,
		instances:   make(map[string]*Instance),
	}
}

// peekLoadedAt returns the instant the blueprint's current code unit was
// compiled, for passing as on_reload's previousBlueprintTimestamp.
func (b *Blueprint) peekLoadedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadedAt
}

// setOrdinal fixes the next ordinal to be handed out, used by restore to
// avoid reissuing an object ID a snapshot already recorded.
func (b *Blueprint) setOrdinal(next uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextOrdinal = next
}

// Unit returns the blueprint's current compiled code unit. Replaced
// wholesale on Reload.
func (b *Blueprint) Unit() *scripting.CodeUnit {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unit
}

// Capabilities returns the capability set the blueprint's current code
// unit satisfies.
func (b *Blueprint) Capabilities() scripting.Capability {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unit.Capabilities()
}

// InstanceCount reports how many live instances this blueprint has.
func (b *Blueprint) InstanceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.instances)
}

// peekOrdinal returns the next ordinal that would be handed out, without
// consuming it.
func (b *Blueprint) peekOrdinal() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextOrdinal
}

func (b *Blueprint) takeOrdinal() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ord := b.nextOrdinal
	b.nextOrdinal++
	return ord
}

func (b *Blueprint) addInstance(inst *Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instances[inst.ID] = inst
}

func (b *Blueprint) removeInstance(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.instances, id)
}

func (b *Blueprint) listInstances() []*Instance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Instance, 0, len(b.instances))
	for _, inst := range b.instances {
		out = append(out, inst)
	}
	return out
}
