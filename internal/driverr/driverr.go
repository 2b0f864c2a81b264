// Package driverr defines the error taxonomy of spec §7: a small set of
// sentinel-wrapped error kinds so callers can classify failures with
// errors.Is/errors.As instead of string-matching, the same way the teacher
// classifies pgx.ErrNoRows at its persistence boundary.
package driverr

import "errors"

// Sentinel kinds. Each constructor below wraps one of these so
// errors.Is(err, driverr.Compile) etc. works regardless of the wrapped
// detail message.
var (
	// Input covers malformed commands, unknown commands, bad arguments,
	// and ambiguous targets. Never fatal; reported to the session.
	Input = errors.New("input error")

	// WorldCode covers a world-object method raising, timing out, or
	// returning an ill-typed result. Classified by the safe invoker;
	// surfaced to the operator log, not the player.
	WorldCode = errors.New("world-code error")

	// Compile covers a blueprint failing to compile during load/reload.
	Compile = errors.New("compile error")

	// Persistence covers snapshot/account write or read failures.
	Persistence = errors.New("persistence error")

	// Auth covers invalid credentials. Never discloses which half failed.
	Auth = errors.New("authentication failed")

	// ProtocolIO covers session read/write errors.
	ProtocolIO = errors.New("protocol io error")
)

// wrapped pairs a sentinel kind with a detail message while preserving
// errors.Is/errors.Unwrap against the sentinel.
type wrapped struct {
	kind   error
	detail string
}

func (w *wrapped) Error() string { return w.kind.Error() + ": " + w.detail }
func (w *wrapped) Unwrap() error { return w.kind }

func wrap(kind error, detail string) error { return &wrapped{kind: kind, detail: detail} }

func InputError(detail string) error       { return wrap(Input, detail) }
func WorldCodeError(detail string) error   { return wrap(WorldCode, detail) }
func CompileError(detail string) error     { return wrap(Compile, detail) }
func PersistenceError(detail string) error { return wrap(Persistence, detail) }
func AuthError(detail string) error        { return wrap(Auth, detail) }
func ProtocolIOError(detail string) error  { return wrap(ProtocolIO, detail) }
