// Package scripting is the compiler/loader of spec §4.C: it turns a world
// source file into an isolated, collectible code unit and exposes the
// capability set and method table the rest of the driver dispatches
// against.
//
// Each blueprint gets its own *lua.LState (unlike the teacher's single
// shared VM with hardcoded global function names) so that Release can
// reclaim exactly one blueprint's code without disturbing any other live
// blueprint — the isolation spec §4.C and §9 require for hot-reload/unload.
package scripting

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/jitrealm/jitrealm/internal/driverr"
	"github.com/jitrealm/jitrealm/internal/sandbox"
)

// Engine compiles world source files into CodeUnits under a shared
// sandbox policy. It holds no per-blueprint state itself — each Load call
// returns an independent, self-contained unit.
type Engine struct {
	policy sandbox.Policy
	log    *zap.Logger
}

// NewEngine constructs a loader bound to the given sandbox policy.
func NewEngine(policy sandbox.Policy, log *zap.Logger) *Engine {
	return &Engine{policy: policy, log: log}
}

// CodeUnit is one compiled, isolated blueprint: its own Lua VM, the
// capability set inferred from the globals it defines, and the method
// table callouts validate against.
type CodeUnit struct {
	vm     *lua.LState
	caps   Capability
	ctxArg map[string]bool // method name -> does it take ctx as arg 1
	log    *zap.Logger
}

// Load reads sourcePath, runs it through the sandbox's static symbol
// check, compiles it into a fresh isolated VM, and returns the resulting
// CodeUnit. A syntax/semantic error or a sandbox violation is reported as
// a driverr.Compile error.
func (e *Engine) Load(sourcePath string) (*CodeUnit, error) {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, driverr.CompileError(fmt.Sprintf("read %s: %v", sourcePath, err))
	}
	if err := sandbox.Check(src); err != nil {
		return nil, driverr.CompileError(fmt.Sprintf("%s: %v", sourcePath, err))
	}

	vm := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range sandbox.AllowedGlobals {
		if open, ok := safeLibs[lib]; ok {
			open(vm)
		}
	}
	// Strip the base library's loading and module functions so none of
	// them is reachable from world code.
	for _, name := range []string{"dofile", "load", "loadfile", "loadstring", "require", "module"} {
		vm.SetGlobal(name, lua.LNil)
	}

	if err := vm.DoString(string(src)); err != nil {
		vm.Close()
		return nil, driverr.CompileError(fmt.Sprintf("%s: %v", sourcePath, err))
	}

	unit := &CodeUnit{vm: vm, log: e.log}
	unit.inferCapabilities()
	return unit, nil
}

// safeLibs is the allowlisted subset of gopher-lua's standard library
// loaders. io, os, debug, package/require and load/loadfile/dofile are
// never registered — sandbox.AllowedGlobals never names them, and this
// map has no entry for them either, so even if a caller widened the
// policy there is nothing here that would open a forbidden capability.
var safeLibs = map[string]lua.LGFunction{
	"base":   lua.OpenBase,
	"table":  lua.OpenTable,
	"string": lua.OpenString,
	"math":   lua.OpenMath,
}

func (u *CodeUnit) inferCapabilities() {
	var caps Capability
	for cap, fn := range hookFunctions {
		if u.vm.GetGlobal(fn) != lua.LNil {
			caps |= cap
		}
	}

	if tbl, ok := u.vm.GetGlobal("CONTRACTS").(*lua.LTable); ok {
		tbl.ForEach(func(_, v lua.LValue) {
			if tag, ok := v.(lua.LString); ok {
				if bit, known := behavioralTags[string(tag)]; known {
					caps |= bit
				}
			}
		})
	}
	u.caps = caps

	u.ctxArg = make(map[string]bool)
	for _, fn := range hookFunctions {
		u.ctxArg[fn] = true
	}
	if tbl, ok := u.vm.GetGlobal("CONTEXT_METHODS").(*lua.LTable); ok {
		tbl.ForEach(func(_, v lua.LValue) {
			if name, ok := v.(lua.LString); ok {
				u.ctxArg[string(name)] = true
			}
		})
	}
}

// Capabilities returns the capability bit-set this blueprint satisfies.
func (u *CodeUnit) Capabilities() Capability { return u.caps }

// HasMethod reports whether the unit defines a global function by that
// name — the dispatch side (server tick, object manager hooks) checks it
// to skip a call when the method is absent. The callout scheduler does
// not validate method names when a callout is scheduled.
func (u *CodeUnit) HasMethod(name string) bool {
	return u.vm.GetGlobal(name) != lua.LNil
}

// TakesContext reports whether the named method's first argument is the
// driver-supplied context table, per the dispatch rule of spec §4.G.
func (u *CodeUnit) TakesContext(name string) bool {
	return u.ctxArg[name]
}

// Arg is one positional argument passed into a world-code call. Only the
// primitive shapes the state store and command layer need to round-trip
// through Lua are supported.
type Arg struct {
	Int   *int64
	Float *float64
	Str   *string
	Bool  *bool
	Table map[string]Arg
}

// IntArg, FloatArg, StrArg, BoolArg, TableArg build an Arg of the given kind.
func IntArg(v int64) Arg           { return Arg{Int: &v} }
func FloatArg(v float64) Arg       { return Arg{Float: &v} }
func StrArg(v string) Arg          { return Arg{Str: &v} }
func BoolArg(v bool) Arg           { return Arg{Bool: &v} }
func TableArg(m map[string]Arg) Arg { return Arg{Table: m} }

func toLValue(vm *lua.LState, a Arg) lua.LValue {
	switch {
	case a.Int != nil:
		return lua.LNumber(*a.Int)
	case a.Float != nil:
		return lua.LNumber(*a.Float)
	case a.Str != nil:
		return lua.LString(*a.Str)
	case a.Bool != nil:
		if *a.Bool {
			return lua.LTrue
		}
		return lua.LFalse
	case a.Table != nil:
		t := vm.NewTable()
		for k, v := range a.Table {
			t.RawSetString(k, toLValue(vm, v))
		}
		return t
	default:
		return lua.LNil
	}
}

func fromLValue(v lua.LValue) any {
	switch lv := v.(type) {
	case lua.LNumber:
		return float64(lv)
	case lua.LString:
		return string(lv)
	case lua.LBool:
		return bool(lv)
	case *lua.LTable:
		out := make(map[string]any)
		lv.ForEach(func(k, val lua.LValue) {
			out[k.String()] = fromLValue(val)
		})
		return out
	default:
		return nil
	}
}

// CtxTable is the world-object context table passed as a method's first
// argument when TakesContext is true: object id, actor helpers, and
// similar driver-populated fields. Scripting itself is agnostic to its
// shape — callers build it per-call.
type CtxTable map[string]Arg

// Call invokes the named global function synchronously on the caller's
// goroutine. Call itself applies no deadline: internal/safeinvoke is the
// authoritative timeout enforcer, running Call on a dedicated short-lived
// goroutine per spec §9 and abandoning it (not killing the VM) on expiry,
// since gopher-lua has no safe mid-execution cancellation primitive.
func (u *CodeUnit) Call(method string, ctx CtxTable, args []Arg) (any, error) {
	fn := u.vm.GetGlobal(method)
	if fn == lua.LNil {
		return nil, fmt.Errorf("scripting: method %q not found", method)
	}

	var largs []lua.LValue
	if u.ctxArg[method] {
		t := u.vm.NewTable()
		for k, v := range ctx {
			t.RawSetString(k, toLValue(u.vm, v))
		}
		largs = append(largs, t)
	}
	for _, a := range args {
		largs = append(largs, toLValue(u.vm, a))
	}

	if err := u.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, largs...); err != nil {
		return nil, err
	}

	ret := u.vm.Get(-1)
	u.vm.Pop(1)
	return fromLValue(ret), nil
}

// Release closes the underlying Lua VM, reclaiming its memory and
// compiled bytecode. After Release the unit must not be used again.
func (u *CodeUnit) Release() {
	u.vm.Close()
}

