package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckAllowsPlainSource(t *testing.T) {
	src := []byte(`
function on_load(ctx)
  set_state(ctx, "hour", 14)
end
`)
	require.NoError(t, Check(src))
}

func TestCheckRejectsFileIO(t *testing.T) {
	src := []byte(`
function on_load(ctx)
  local f = io.open("/etc/passwd")
end
`)
	require.Error(t, Check(src))
}

func TestCheckRejectsRequire(t *testing.T) {
	require.Error(t, Check([]byte(`local m = require("socket")`)))
}

func TestBudgetFor(t *testing.T) {
	p := Default()
	require.Equal(t, p.HeartbeatTimeout, p.BudgetFor(Heartbeat))
	require.Equal(t, p.HookTimeout, p.BudgetFor(Hook))
}
