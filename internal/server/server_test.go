package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jitrealm/jitrealm/internal/clock"
	"github.com/jitrealm/jitrealm/internal/combat"
	"github.com/jitrealm/jitrealm/internal/mq"
	"github.com/jitrealm/jitrealm/internal/object"
	"github.com/jitrealm/jitrealm/internal/persist"
	"github.com/jitrealm/jitrealm/internal/safeinvoke"
	"github.com/jitrealm/jitrealm/internal/sandbox"
	"github.com/jitrealm/jitrealm/internal/schedule"
	"github.com/jitrealm/jitrealm/internal/scripting"
	"github.com/jitrealm/jitrealm/internal/session"
	"github.com/jitrealm/jitrealm/internal/worldstate"
)

func TestTickDrainsMessageQueueToSession(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := New(mc, zap.NewNop())
	s.Queue = mq.NewQueue()
	s.LoopDelay = 10 * time.Millisecond

	client, srv := net.Pipe()
	defer client.Close()
	sess := session.NewSession("session:alice", srv, session.Capabilities{}, zap.NewNop())
	sess.Start()
	defer sess.Close()
	s.RegisterSession(sess)

	s.Queue.Enqueue(mq.Message{SessionID: "session:alice", Text: "hello"})

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 64)
		n, _ := client.Read(buf)
		require.Contains(t, string(buf[:n]), "hello")
		close(done)
	}()

	s.tick(context.Background())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message delivery")
	}
}

func TestBuildSnapshotWalksLiveSubsystems(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rock.lua")
	require.NoError(t, os.WriteFile(src, []byte(`function on_load(ctx) end`), 0o644))

	mc := clock.NewManual(time.Unix(0, 0))
	engine := scripting.NewEngine(sandbox.Default(), zap.NewNop())
	invoker := safeinvoke.NewInvoker(sandbox.Default(), zap.NewNop())
	objects := object.NewManager(engine, invoker, mc, object.GCPolicy{}, zap.NewNop())
	_, err := objects.LoadBlueprint("items/rock", src)
	require.NoError(t, err)
	inst, err := objects.Clone("items/rock", nil)
	require.NoError(t, err)
	inst.State.SetInt("weight", 3)

	world := worldstate.NewRegistry()
	require.NoError(t, world.Add("rooms/start#000001", inst.ID))

	tracker := combat.NewTracker(mc, time.Second, 25)
	tracker.Start(inst.ID, "rooms/start#000001")

	s := New(mc, zap.NewNop())
	s.Objects = objects
	s.World = world
	s.Combat = tracker

	snap := s.buildSnapshot()
	require.Len(t, snap.Instances, 1)
	require.Equal(t, inst.ID, snap.Instances[0].ObjectID)
	require.EqualValues(t, 3, snap.Instances[0].State["weight"])
	require.Len(t, snap.Containment, 1)
	// Start() pairs both directions mutually (spec §8 invariant 4), so the
	// snapshot carries one CombatPairing entry per side.
	require.Len(t, snap.Combat, 2)
	require.EqualValues(t, 2, snap.Counters["items/rock"])
}

func TestRestoreRebuildsWorldStateInOrder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rock.lua")
	require.NoError(t, os.WriteFile(src, []byte(`
		on_load_ran = false
		post_restore_ran = false
		function on_load(ctx) on_load_ran = true end
		function post_restore(ctx) post_restore_ran = true end
	`), 0o644))

	mc := clock.NewManual(time.Unix(0, 0))
	engine := scripting.NewEngine(sandbox.Default(), zap.NewNop())
	invoker := safeinvoke.NewInvoker(sandbox.Default(), zap.NewNop())
	objects := object.NewManager(engine, invoker, mc, object.GCPolicy{}, zap.NewNop())
	_, err := objects.LoadBlueprint("items/rock", src)
	require.NoError(t, err)

	snap := &persist.Snapshot{
		Instances: []persist.InstanceRecord{
			{ObjectID: "items/rock#000005", BlueprintID: "items/rock", State: map[string]any{"weight": int64(9)}},
		},
		Containment: []persist.ContainmentEdge{
			{Child: "items/rock#000005", Parent: "rooms/start#000001"},
		},
		Combat: []persist.CombatPairing{
			{Attacker: "items/rock#000005", Defender: "rooms/start#000001", NextRound: mc.Now().Add(time.Second)},
		},
		Counters: map[string]uint64{"items/rock": 6},
	}

	s := New(mc, zap.NewNop())
	s.Objects = objects
	s.World = worldstate.NewRegistry()
	s.Combat = combat.NewTracker(mc, time.Second, 25)

	s.Restore(snap)

	inst, ok := s.Objects.Get("items/rock#000005")
	require.True(t, ok)
	v, ok := inst.State.GetInt("weight")
	require.True(t, ok)
	require.EqualValues(t, 9, v)

	container, ok := s.World.GetContainer("items/rock#000005")
	require.True(t, ok)
	require.Equal(t, "rooms/start#000001", container)

	require.True(t, s.Combat.IsInCombat("items/rock#000005"))

	next, err := objects.Clone("items/rock", nil)
	require.NoError(t, err)
	require.Equal(t, "items/rock#000006", next.ID)
}

func TestShutdownIsIdempotent(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := New(mc, zap.NewNop())
	s.Shutdown()
	s.Shutdown()
}

func TestRunStopsOnContextCancel(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := New(mc, zap.NewNop())
	s.LoopDelay = 5 * time.Millisecond
	s.Heartbeats = schedule.NewHeartbeatScheduler(mc, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	s.Run(ctx, func(conn net.Conn) {})

	select {
	case <-s.Stopped():
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}
