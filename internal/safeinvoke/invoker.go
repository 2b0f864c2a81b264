// Package safeinvoke implements the safe invoker of spec §4.J: the only
// permitted path into world code from the tick loop or command dispatch.
// It classifies every call's outcome and guarantees a world-code failure
// of any kind never propagates into the caller's own control flow.
package safeinvoke

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jitrealm/jitrealm/internal/sandbox"
)

// Outcome classifies how a call into world code ended.
type Outcome int

const (
	// OK means the call returned normally within budget.
	OK Outcome = iota
	// Timeout means the call did not return within its budget. The
	// underlying goroutine is abandoned, not killed — gopher-lua has no
	// safe preemption primitive, so the call may still be running; its
	// result, whenever it arrives, is discarded.
	Timeout
	// DomainError means the call returned an error from within world
	// code (a Lua runtime error, a bad return type).
	DomainError
	// Fatal is the class for a failure of the invocation machinery itself
	// rather than of world code. Call never returns it: an error or a
	// panic from fn, including a missing method, is reported as
	// DomainError.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Timeout:
		return "timeout"
	case DomainError:
		return "domain_error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result is the outcome of one safe-invoked call.
type Result struct {
	Outcome Outcome
	Value   any
	Err     error
}

// Invoker runs calls into world code under the sandbox's time budgets,
// classifying every outcome so a single misbehaving blueprint can never
// stall or crash the tick loop.
type Invoker struct {
	policy sandbox.Policy
	log    *zap.Logger
}

// NewInvoker returns an invoker bound to the given sandbox policy.
func NewInvoker(policy sandbox.Policy, log *zap.Logger) *Invoker {
	return &Invoker{policy: policy, log: log}
}

// Call runs fn on a dedicated goroutine under the time budget for class,
// returning as soon as fn completes or the budget expires, whichever
// comes first.
func (inv *Invoker) Call(ctx context.Context, class sandbox.InvocationClass, objectID, method string, fn func() (any, error)) Result {
	budget := inv.policy.BudgetFor(class)
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type callResult struct {
		val any
		err error
	}
	done := make(chan callResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("panic in world code: %v", r)}
			}
		}()
		val, err := fn()
		done <- callResult{val: val, err: err}
	}()

	select {
	case <-cctx.Done():
		inv.log.Warn("safe invoke timed out",
			zap.String("object", objectID),
			zap.String("method", method),
			zap.Duration("budget", budget),
		)
		return Result{Outcome: Timeout, Err: cctx.Err()}
	case r := <-done:
		if r.err != nil {
			inv.log.Debug("safe invoke returned error",
				zap.String("object", objectID),
				zap.String("method", method),
				zap.Error(r.err),
			)
			return Result{Outcome: DomainError, Err: r.err}
		}
		return Result{Outcome: OK, Value: r.val}
	}
}

