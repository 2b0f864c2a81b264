// Package worldstate implements the containment/equipment registry of
// spec §4.E: the graph of "what's inside what" and the separate map of
// "what's worn where", kept independently of the object manager per
// spec §3's invariant that destroying an instance and detaching it from
// containment are two different operations.
package worldstate

import (
	"container/list"
	"fmt"
	"sync"
)

// Registry tracks containment edges and equipment slots for a population
// of object IDs. All methods are safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	container map[string]string           // object id -> container's object id
	contents  map[string]*list.List       // container id -> ordered list of object ids
	elements  map[string]*list.Element    // object id -> its element within contents[container]
	equipped  map[string]map[string]string // wearer id -> slot -> object id
	wornBy    map[string]string           // object id -> wearer id, for reverse lookup
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		container: make(map[string]string),
		contents:  make(map[string]*list.List),
		elements:  make(map[string]*list.Element),
		equipped:  make(map[string]map[string]string),
		wornBy:    make(map[string]string),
	}
}

// Add places objectID into containerID's contents, at the end of
// insertion order. If objectID is already somewhere, Add fails — callers
// must call Move instead (spec §4.E: Add is for birth, Move is for
// relocation).
func (r *Registry) Add(containerID, objectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.container[objectID]; exists {
		return fmt.Errorf("worldstate: %q is already contained, use Move", objectID)
	}
	return r.insert(containerID, objectID)
}

// insert assumes the caller holds mu and objectID is not currently placed.
func (r *Registry) insert(containerID, objectID string) error {
	if wouldCycle(r.container, containerID, objectID) {
		return fmt.Errorf("worldstate: placing %q into %q would create a containment cycle", objectID, containerID)
	}

	l, ok := r.contents[containerID]
	if !ok {
		l = list.New()
		r.contents[containerID] = l
	}
	elem := l.PushBack(objectID)
	r.elements[objectID] = elem
	r.container[objectID] = containerID
	return nil
}

// wouldCycle reports whether placing objectID into containerID would make
// objectID its own ancestor — i.e. containerID is objectID or is
// (transitively) contained within objectID already.
func wouldCycle(container map[string]string, containerID, objectID string) bool {
	cur := containerID
	for {
		if cur == objectID {
			return true
		}
		next, ok := container[cur]
		if !ok {
			return false
		}
		cur = next
	}
}

// Remove detaches objectID from whatever contains it. It is legal to
// remove any instance regardless of kind (Open Question 1's resolution):
// Remove only severs the containment edge, it never destructs anything.
func (r *Registry) Remove(objectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(objectID)
}

func (r *Registry) remove(objectID string) {
	containerID, ok := r.container[objectID]
	if !ok {
		return
	}
	if elem, ok := r.elements[objectID]; ok {
		if l, ok := r.contents[containerID]; ok {
			l.Remove(elem)
		}
		delete(r.elements, objectID)
	}
	delete(r.container, objectID)
}

// Move relocates objectID into a new container atomically: it is never
// observable as "briefly contained nowhere". Moving into its own current
// container is a no-op that does not disturb insertion order.
func (r *Registry) Move(objectID, newContainerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.container[objectID]; ok && cur == newContainerID {
		return nil
	}
	if wouldCycle(r.container, newContainerID, objectID) {
		return fmt.Errorf("worldstate: moving %q into %q would create a containment cycle", objectID, newContainerID)
	}

	r.remove(objectID)
	return r.insert(newContainerID, objectID)
}

// GetContainer returns the object ID currently containing objectID.
func (r *Registry) GetContainer(objectID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.container[objectID]
	return id, ok
}

// GetContents returns containerID's contents in insertion order.
func (r *Registry) GetContents(containerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.contents[containerID]
	if !ok {
		return nil
	}
	out := make([]string, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(string))
	}
	return out
}

// AllContainment returns every (child, parent) containment edge currently
// tracked, for snapshot assembly. Order is unspecified.
func (r *Registry) AllContainment() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][2]string, 0, len(r.container))
	for child, parent := range r.container {
		out = append(out, [2]string{child, parent})
	}
	return out
}

// AllEquipment returns every (wearer, slot, item) equip relation currently
// tracked, for snapshot assembly. Order is unspecified.
func (r *Registry) AllEquipment() [][3]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][3]string
	for wearer, slots := range r.equipped {
		for slot, item := range slots {
			out = append(out, [3]string{wearer, slot, item})
		}
	}
	return out
}

// Equip wears objectID in slot on wearerID. A slot already occupied is
// replaced; callers wanting "fail if occupied" semantics must check
// GetEquipped first (spec §4.E leaves slot-conflict policy to the
// command layer, not the registry).
func (r *Registry) Equip(wearerID, slot, objectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots, ok := r.equipped[wearerID]
	if !ok {
		slots = make(map[string]string)
		r.equipped[wearerID] = slots
	}
	if prev, ok := slots[slot]; ok {
		delete(r.wornBy, prev)
	}
	slots[slot] = objectID
	r.wornBy[objectID] = wearerID
}

// Unequip removes whatever is worn in slot on wearerID, if anything.
func (r *Registry) Unequip(wearerID, slot string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots, ok := r.equipped[wearerID]
	if !ok {
		return
	}
	if objectID, ok := slots[slot]; ok {
		delete(slots, slot)
		delete(r.wornBy, objectID)
	}
}

// GetEquipped returns wearerID's current slot -> object ID map. The
// returned map is a copy; mutating it has no effect on the registry.
func (r *Registry) GetEquipped(wearerID string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots, ok := r.equipped[wearerID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(slots))
	for k, v := range slots {
		out[k] = v
	}
	return out
}
