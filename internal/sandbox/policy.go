// Package sandbox defines the symbol allowlist and time budgets that bound
// any entry into world code (spec §4.O). internal/scripting consults the
// allowlist at load time; internal/safeinvoke consults the budgets at call
// time.
package sandbox

import (
	"fmt"
	"regexp"
	"time"
)

// Policy is the sandbox configuration in force for the whole driver.
type Policy struct {
	// HookTimeout bounds a single event-callback invocation (on_enter,
	// on_leave, a command's backing method, ...).
	HookTimeout time.Duration
	// HeartbeatTimeout bounds a single heartbeat tick invocation. Callouts
	// run under HookTimeout.
	HeartbeatTimeout time.Duration
}

// Default mirrors the config document's Security defaults
// (HookTimeoutMs / HeartbeatTimeoutMs).
func Default() Policy {
	return Policy{
		HookTimeout:      50 * time.Millisecond,
		HeartbeatTimeout: 100 * time.Millisecond,
	}
}

// BudgetFor returns the wall-clock budget for a call made from the given
// invocation class.
func (p Policy) BudgetFor(class InvocationClass) time.Duration {
	switch class {
	case Heartbeat:
		return p.HeartbeatTimeout
	default:
		return p.HookTimeout
	}
}

// InvocationClass distinguishes the two safe-invoker budgets of spec §4.J.
type InvocationClass int

const (
	// Hook covers event callbacks: on-load, on-enter, on-leave, on-reload,
	// on-destruct, command-backing methods, callouts.
	Hook InvocationClass = iota
	// Heartbeat covers periodic per-object tick callbacks.
	Heartbeat
)

// AllowedGlobals is the set of Lua base libraries opened into every
// blueprint's VM. Everything else — io, os, debug, package/require,
// loadstring/load/dofile — is never registered, so referencing it at
// runtime fails with "attempt to call a nil value" and referencing it in
// source is caught by Disallowed at load time before the VM ever runs.
var AllowedGlobals = []string{"base", "table", "string", "math"}

// disallowedPattern flags source that reaches for a capability outside the
// published contract surface: direct file/process I/O, dynamic loading,
// or reflection-shaped privilege escalation. This is a coarse static check
// — defense in depth on top of simply never opening those libraries into
// the VM.
var disallowedPattern = regexp.MustCompile(`\b(os\.|io\.|require\s*\(|dofile\s*\(|loadfile\s*\(|load\s*\(|debug\.|rawequal\s*\(|collectgarbage\s*\()`)

// Check scans raw Lua source for references to symbols outside the
// sandbox's allowed surface. It is intentionally textual rather than a
// full parse: the VM never has those libraries open regardless, so this
// exists to fail fast with a clear compile-time diagnostic instead of a
// confusing runtime nil-call.
func Check(source []byte) error {
	if loc := disallowedPattern.FindIndex(source); loc != nil {
		return fmt.Errorf("sandbox: source references a disallowed symbol at byte offset %d: %q", loc[0], source[loc[0]:loc[1]])
	}
	return nil
}
