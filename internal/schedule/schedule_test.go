package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jitrealm/jitrealm/internal/clock"
)

func TestHeartbeatDueAdvancesNextFire(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := NewHeartbeatScheduler(mc, 10*time.Second)
	s.Register("room#1", 0)

	require.Empty(t, s.Due())

	mc.Advance(10 * time.Second)
	require.Equal(t, []string{"room#1"}, s.Due())
	require.Empty(t, s.Due())

	mc.Advance(10 * time.Second)
	require.Equal(t, []string{"room#1"}, s.Due())
}

func TestHeartbeatUnregisterStopsTicking(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := NewHeartbeatScheduler(mc, 5*time.Second)
	s.Register("room#1", 0)
	s.Unregister("room#1")

	mc.Advance(time.Minute)
	require.Empty(t, s.Due())
}

func TestCalloutOneShotFiresOnce(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := NewCalloutScheduler(mc)
	s.Schedule("npc#1", "wake_up", 5*time.Second)

	mc.Advance(5 * time.Second)
	due := s.Due()
	require.Len(t, due, 1)
	require.Equal(t, "wake_up", due[0].Method)

	require.Empty(t, s.Due())
}

func TestCalloutRepeatingReschedules(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := NewCalloutScheduler(mc)
	s.ScheduleEvery("npc#1", "patrol", 10*time.Second)

	mc.Advance(10 * time.Second)
	require.Len(t, s.Due(), 1)

	mc.Advance(10 * time.Second)
	require.Len(t, s.Due(), 1)
}

func TestCalloutCancelAllRemovesByObject(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := NewCalloutScheduler(mc)
	s.Schedule("npc#1", "wake_up", 5*time.Second)
	s.Schedule("npc#2", "wake_up", 5*time.Second)

	s.CancelAll("npc#1")
	mc.Advance(5 * time.Second)

	due := s.Due()
	require.Len(t, due, 1)
	require.Equal(t, "npc#2", due[0].ObjectID)
}
