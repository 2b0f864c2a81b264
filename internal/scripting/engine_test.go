package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jitrealm/jitrealm/internal/sandbox"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "blueprint.lua")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadInfersCapabilities(t *testing.T) {
	src := `
CONTRACTS = {"room"}

function on_load(ctx)
  return true
end

function heartbeat(ctx)
end
`
	e := NewEngine(sandbox.Default(), zap.NewNop())
	unit, err := e.Load(writeSource(t, src))
	require.NoError(t, err)
	defer unit.Release()

	require.True(t, unit.Capabilities().Satisfies(CapRoom))
	require.True(t, unit.Capabilities().Satisfies(CapOnLoad))
	require.True(t, unit.Capabilities().Satisfies(CapHeartbeat))
	require.False(t, unit.Capabilities().Satisfies(CapWeapon))
}

func TestLoadRejectsSandboxViolation(t *testing.T) {
	src := `
function on_load(ctx)
  local f = io.open("/etc/passwd")
end
`
	e := NewEngine(sandbox.Default(), zap.NewNop())
	_, err := e.Load(writeSource(t, src))
	require.Error(t, err)
}

func TestCallRoundTripsArgs(t *testing.T) {
	src := `
function describe(name)
  return "hello " .. name
end
`
	e := NewEngine(sandbox.Default(), zap.NewNop())
	unit, err := e.Load(writeSource(t, src))
	require.NoError(t, err)
	defer unit.Release()

	ret, err := unit.Call("describe", nil, []Arg{StrArg("world")})
	require.NoError(t, err)
	require.Equal(t, "hello world", ret)
}

func TestReleaseClosesVM(t *testing.T) {
	src := `function on_load(ctx) end`
	e := NewEngine(sandbox.Default(), zap.NewNop())
	unit, err := e.Load(writeSource(t, src))
	require.NoError(t, err)
	unit.Release()
}
