package command

import (
	"strings"

	"github.com/jitrealm/jitrealm/internal/driverr"
)

// RoomEvent is the schema spec §4.K.1 fixes for fan-out to AI-NPC
// observers: what happened, who did it, and the room it happened in. The
// actor itself is never among the Observers a dispatcher fans an event
// out to.
type RoomEvent struct {
	RoomID   string
	ActorID  string
	Verb     string
	Args     []string
	Observers []string // object IDs present in the room, actor excluded
}

// RoomEventSink receives a fanned-out room event — implemented by
// whatever feeds the AI-NPC behavior collaborator; the command package
// only builds and dispatches the event, it has no opinion on what
// consumes it.
type RoomEventSink interface {
	Publish(RoomEvent)
}

// Dispatcher resolves and executes one command line against the
// registry, then fans out a room event to any AI-NPC observers.
type Dispatcher struct {
	registry *Registry
	sink     RoomEventSink
}

// NewDispatcher returns a dispatcher bound to registry, publishing room
// events to sink (may be nil if no AI-NPC collaborator is wired).
func NewDispatcher(registry *Registry, sink RoomEventSink) *Dispatcher {
	return &Dispatcher{registry: registry, sink: sink}
}

// ContainerLookup resolves the object IDs whose local command tables
// should be consulted for an actor — typically the actor's current room
// plus the room's other contents, supplied by the caller since
// command doesn't own the containment graph.
type ContainerLookup func(actorID string) (roomID string, localObjectIDs []string)

// Execute parses line into a verb and arguments, resolves it via the
// precedence order in Lookup, runs its handler, and — if resolution
// succeeded — fans out a room event to every object in localObjectIDs
// other than the actor (spec §4.K.1: "excluding the actor").
func (d *Dispatcher) Execute(actorID string, wizard bool, line string, lookup ContainerLookup) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return driverr.InputError("empty command")
	}
	verb, args := fields[0], fields[1:]

	roomID, localIDs := lookup(actorID)

	spec, ok := d.registry.Lookup(verb, localIDs)
	if !ok {
		return driverr.InputError("unknown command: " + verb)
	}
	if spec.Wizard && !wizard {
		return driverr.InputError("unknown command: " + verb)
	}

	if err := spec.Handler(&Context{ActorID: actorID, Verb: verb, Args: args, Wizard: wizard}); err != nil {
		return err
	}

	if d.sink != nil {
		observers := make([]string, 0, len(localIDs))
		for _, id := range localIDs {
			if id != actorID {
				observers = append(observers, id)
			}
		}
		d.sink.Publish(RoomEvent{
			RoomID:    roomID,
			ActorID:   actorID,
			Verb:      verb,
			Args:      args,
			Observers: observers,
		})
	}

	return nil
}
