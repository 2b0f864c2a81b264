package combat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jitrealm/jitrealm/internal/clock"
)

func TestStartAndTarget(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	tr := NewTracker(mc, 2*time.Second, 25)

	tr.Start("hero#1", "rat#1")
	require.True(t, tr.IsInCombat("hero#1"))
	target, ok := tr.Target("hero#1")
	require.True(t, ok)
	require.Equal(t, "rat#1", target)
}

func TestEndRemovesCombat(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	tr := NewTracker(mc, 2*time.Second, 25)
	tr.Start("hero#1", "rat#1")
	tr.End("hero#1")
	require.False(t, tr.IsInCombat("hero#1"))
}

func TestRoundsDueAdvances(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	tr := NewTracker(mc, 2*time.Second, 0)
	tr.Start("hero#1", "rat#1")

	require.Empty(t, tr.RoundsDue())

	mc.Advance(2 * time.Second)
	require.ElementsMatch(t, []string{"hero#1", "rat#1"}, tr.RoundsDue())
	require.Empty(t, tr.RoundsDue())
}

func TestStartIsMutual(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	tr := NewTracker(mc, 2*time.Second, 25)

	tr.Start("hero#1", "rat#1")
	require.True(t, tr.IsInCombat("rat#1"))
	target, ok := tr.Target("rat#1")
	require.True(t, ok)
	require.Equal(t, "hero#1", target)
}

func TestEndSeversBothSides(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	tr := NewTracker(mc, 2*time.Second, 25)

	tr.Start("hero#1", "rat#1")
	tr.End("hero#1")
	require.False(t, tr.IsInCombat("hero#1"))
	require.False(t, tr.IsInCombat("rat#1"))
}

func TestFleeAlwaysFailsAtZeroPercent(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	tr := NewTracker(mc, time.Second, 0)
	tr.Start("hero#1", "rat#1")
	require.False(t, tr.Flee("hero#1"))
	require.True(t, tr.IsInCombat("hero#1"))
}

func TestFleeAlwaysSucceedsAtHundredPercent(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	tr := NewTracker(mc, time.Second, 100)
	tr.Start("hero#1", "rat#1")
	require.True(t, tr.Flee("hero#1"))
	require.False(t, tr.IsInCombat("hero#1"))
}
