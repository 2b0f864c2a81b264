package scripting

// Capability is a bit in a blueprint's capability set: the set of
// contracts one instance satisfies (spec §3 "behavioral capabilities").
// A systems-language tagged capability set replaces the source language's
// dynamic interface checks (spec §9).
type Capability uint32

const (
	CapRoom Capability = 1 << iota
	CapItem
	CapLiving
	CapCarryable
	CapEquippable
	CapWeapon
	CapArmour
	CapConsumable
	CapReadable
	CapSpawner
	CapHeartbeat
	CapResettable
	CapOnEnter
	CapOnLeave
	CapOnReload
	CapOnLoad
	CapOnDestruct
	CapDaemon
	CapAINPC
	CapPostRestore
)

// behavioralTags maps the string tags a blueprint declares in its
// top-level CONTRACTS table to the bit each sets. Unknown tags are
// ignored rather than rejected, so new world-side contracts don't need a
// driver release to be declarable (spec names this set non-exhaustively:
// "...etc.").
var behavioralTags = map[string]Capability{
	"room":        CapRoom,
	"item":        CapItem,
	"living":      CapLiving,
	"carryable":   CapCarryable,
	"equippable":  CapEquippable,
	"weapon":      CapWeapon,
	"armour":      CapArmour,
	"armor":       CapArmour,
	"consumable":  CapConsumable,
	"readable":    CapReadable,
	"spawner":     CapSpawner,
	"daemon":      CapDaemon,
	"ai_npc":      CapAINPC,
}

// hookFunctions maps each hook capability to the global Lua function name
// whose presence grants it. These are inferred automatically rather than
// declared, since "this blueprint implements on_load" is exactly "this
// blueprint defines a global function named on_load".
var hookFunctions = map[Capability]string{
	CapHeartbeat:   "heartbeat",
	CapResettable:  "reset",
	CapOnEnter:     "on_enter",
	CapOnLeave:     "on_leave",
	CapOnReload:    "on_reload",
	CapOnLoad:      "on_load",
	CapOnDestruct:  "on_destruct",
	CapPostRestore: "post_restore",
}

// Satisfies reports whether the set c includes every bit in want.
func (c Capability) Satisfies(want Capability) bool {
	return c&want == want
}

// HookFunctionName returns the Lua global name backing a hook capability,
// and whether cap is a known hook capability at all.
func HookFunctionName(cap Capability) (string, bool) {
	name, ok := hookFunctions[cap]
	return name, ok
}
