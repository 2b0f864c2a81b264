// Package server implements the accept loop, tick loop, and shutdown
// sequence of spec §4.M: the component that wires every other subsystem
// together and drives them from one place.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jitrealm/jitrealm/internal/clock"
	"github.com/jitrealm/jitrealm/internal/combat"
	"github.com/jitrealm/jitrealm/internal/command"
	"github.com/jitrealm/jitrealm/internal/mq"
	"github.com/jitrealm/jitrealm/internal/object"
	"github.com/jitrealm/jitrealm/internal/persist"
	"github.com/jitrealm/jitrealm/internal/safeinvoke"
	"github.com/jitrealm/jitrealm/internal/sandbox"
	"github.com/jitrealm/jitrealm/internal/scripting"
	"github.com/jitrealm/jitrealm/internal/schedule"
	"github.com/jitrealm/jitrealm/internal/session"
	"github.com/jitrealm/jitrealm/internal/worldstate"
)

// Server owns every live subsystem and drives the accept loop and tick
// loop. Construct one with New, then call Run.
type Server struct {
	Clock      clock.Clock
	Objects    *object.Manager
	World      *worldstate.Registry
	Heartbeats *schedule.HeartbeatScheduler
	Callouts   *schedule.CalloutScheduler
	Combat     *combat.Tracker
	Queue      *mq.Queue
	Invoker    *safeinvoke.Invoker
	Commands   *command.Dispatcher
	Accounts   *persist.Accounts
	Snapshots  *persist.Snapshots

	LoopDelay       time.Duration
	AutoSaveEnabled bool
	AutoSaveEvery   time.Duration

	log *zap.Logger

	listener net.Listener

	mu       sync.Mutex
	sessions map[string]*session.Session

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	stopped      chan struct{}

	lastAutoSave time.Time
}

// New constructs a Server. Callers finish wiring fields (Objects, World,
// Heartbeats, ...) before calling Run.
func New(clk clock.Clock, log *zap.Logger) *Server {
	return &Server{
		Clock:      clk,
		log:        log,
		sessions:   make(map[string]*session.Session),
		shutdownCh: make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Listen opens the TCP listener on addr. Call before Run.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Run starts the accept loop and the tick loop, blocking until ctx is
// canceled (first termination signal), then runs Shutdown and waits for
// both loops to exit. Calling Shutdown directly does not make Run return.
// Run has no second-signal handling of its own; aborting on a second
// signal is left to the caller.
func (s *Server) Run(ctx context.Context, onAccept func(conn net.Conn)) {
	var wg sync.WaitGroup

	if s.listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.acceptLoop(ctx, onAccept)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tickLoop(ctx)
	}()

	<-ctx.Done()
	s.Shutdown()
	wg.Wait()
	close(s.stopped)
}

// Stopped is closed once Run has fully returned (tick loop and accept
// loop both exited).
func (s *Server) Stopped() <-chan struct{} { return s.stopped }

func (s *Server) acceptLoop(ctx context.Context, onAccept func(conn net.Conn)) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.log.Warn("accept error", zap.Error(err))
				continue
			}
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return
		default:
		}
		go onAccept(conn)
	}
}

// RegisterSession tracks sess so shutdown and broadcast can reach it.
func (s *Server) RegisterSession(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// UnregisterSession stops tracking a session (on disconnect).
func (s *Server) UnregisterSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Server) sessionSnapshot() []*session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// tickLoop runs the six steps of spec §4.M once per LoopDelay, until the
// context is canceled.
func (s *Server) tickLoop(ctx context.Context) {
	delay := s.LoopDelay
	if delay <= 0 {
		delay = time.Second
	}
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Server) tick(ctx context.Context) {
	// Step 1: the clock has already advanced (System) or is advanced
	// externally (Manual, e.g. --perfbench); nothing to do here beyond
	// reading it through s.Clock where needed below.

	// Step 2: due heartbeats.
	if s.Heartbeats != nil {
		for _, objectID := range s.Heartbeats.Due() {
			s.invokeHook(ctx, sandbox.Heartbeat, objectID, "heartbeat", nil)
		}
	}

	// Step 3: due callouts. Each entry carries its own args (spec §4.G);
	// the context-first-parameter rule is honored inside CodeUnit.Call
	// itself, keyed off the method's compile-time TakesContext bit.
	if s.Callouts != nil {
		for _, c := range s.Callouts.Due() {
			s.invokeHook(ctx, sandbox.Hook, c.ObjectID, c.Method, c.Args)
		}
	}

	// Step 4: due combat rounds.
	if s.Combat != nil {
		for _, attacker := range s.Combat.RoundsDue() {
			s.invokeHook(ctx, sandbox.Hook, attacker, "combat_round", nil)
		}
	}

	// Step 5: drain message queue to sessions.
	if s.Queue != nil {
		for _, msg := range s.Queue.Drain() {
			s.mu.Lock()
			sess, ok := s.sessions[msg.SessionID]
			s.mu.Unlock()
			if ok {
				sess.Send(msg.Text)
			}
		}
	}

	s.maybeAutoSave()

	// Step 6: honour shutdown flag — handled by ctx.Done() in tickLoop's
	// select, so there is nothing further to check here.
}

func (s *Server) invokeHook(ctx context.Context, class sandbox.InvocationClass, objectID, method string, args []scripting.Arg) {
	if s.Invoker == nil || s.Objects == nil {
		return
	}
	inst, ok := s.Objects.Get(objectID)
	if !ok {
		return
	}
	if !inst.HasMethod(method) {
		return
	}
	s.Invoker.Call(ctx, class, objectID, method, func() (any, error) {
		return inst.Call(method, object.BuildContext(objectID), args)
	})
}

func (s *Server) maybeAutoSave() {
	if !s.AutoSaveEnabled || s.Snapshots == nil {
		return
	}
	now := s.Clock.Now()
	if s.lastAutoSave.IsZero() {
		s.lastAutoSave = now
		return
	}
	if now.Sub(s.lastAutoSave) < s.AutoSaveEvery {
		return
	}
	s.lastAutoSave = now
	if err := s.Snapshots.Write(s.buildSnapshot()); err != nil {
		s.log.Error("auto-save failed", zap.Error(err))
	}
}

// buildSnapshot walks every live subsystem into the versioned document
// spec §4.N fixes: instance state, the containment graph, the equipment
// map, combat pairings, and each blueprint's ordinal counter. Any
// subsystem left unwired (nil) simply contributes nothing to its section.
func (s *Server) buildSnapshot() *persist.Snapshot {
	snap := &persist.Snapshot{}

	if s.Objects != nil {
		for _, inst := range s.Objects.AllInstances() {
			snap.Instances = append(snap.Instances, persist.InstanceRecord{
				ObjectID:    inst.ID,
				BlueprintID: inst.BlueprintID,
				State:       inst.State.Snapshot(),
			})
		}
		snap.Counters = s.Objects.OrdinalCounters()
	}

	if s.World != nil {
		for _, edge := range s.World.AllContainment() {
			snap.Containment = append(snap.Containment, persist.ContainmentEdge{Child: edge[0], Parent: edge[1]})
		}
		for _, eq := range s.World.AllEquipment() {
			snap.Equipment = append(snap.Equipment, persist.EquipmentEntry{Wearer: eq[0], Slot: eq[1], Item: eq[2]})
		}
	}

	if s.Combat != nil {
		for _, pairing := range s.Combat.AllPairings() {
			snap.Combat = append(snap.Combat, persist.CombatPairing{
				Attacker:  pairing.Attacker,
				Defender:  pairing.Defender,
				NextRound: pairing.NextRound,
			})
		}
	}

	return snap
}

// Restore rebuilds live world state from a previously-written snapshot, in
// the order spec §4.N fixes: instances are re-created from saved state
// without firing on_load, containment and equipment are rebuilt on top of
// those instances, combat pairings are restored with their saved round
// timers, ordinal counters are fixed so no restored object ID can be
// reissued, and finally post_restore runs on every instance that defines
// it. Blueprints referenced by the snapshot must already be loaded —
// Restore only recreates instances, it never compiles world source.
func (s *Server) Restore(snap *persist.Snapshot) {
	if snap == nil || s.Objects == nil {
		return
	}

	for _, rec := range snap.Instances {
		if _, ok := s.Objects.GetBlueprint(rec.BlueprintID); !ok {
			s.log.Warn("restore: blueprint not loaded, skipping instance",
				zap.String("blueprint", rec.BlueprintID), zap.String("object", rec.ObjectID))
			continue
		}
		if _, err := s.Objects.RestoreInstance(rec.BlueprintID, rec.ObjectID, rec.State); err != nil {
			s.log.Warn("restore: failed to recreate instance", zap.String("object", rec.ObjectID), zap.Error(err))
		}
	}

	if s.World != nil {
		for _, edge := range snap.Containment {
			if err := s.World.Add(edge.Parent, edge.Child); err != nil {
				s.log.Warn("restore: failed to rebuild containment edge",
					zap.String("child", edge.Child), zap.String("parent", edge.Parent), zap.Error(err))
			}
		}
		for _, eq := range snap.Equipment {
			s.World.Equip(eq.Wearer, eq.Slot, eq.Item)
		}
	}

	if s.Combat != nil {
		for _, pairing := range snap.Combat {
			s.Combat.Restore(pairing.Attacker, pairing.Defender, pairing.NextRound)
		}
	}

	for blueprintID, next := range snap.Counters {
		s.Objects.SetOrdinalCounter(blueprintID, next)
	}

	s.Objects.InvokePostRestore()
}

// Shutdown runs the two-signal shutdown sequence's first-signal half:
// stop accepting, notify sessions, flush the message queue, snapshot the
// world, close all sessions. It is idempotent.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		if s.listener != nil {
			s.listener.Close()
		}
		for _, sess := range s.sessionSnapshot() {
			sess.Send("The realm is closing. Goodbye.")
		}
		if s.Queue != nil {
			for _, msg := range s.Queue.Drain() {
				s.mu.Lock()
				sess, ok := s.sessions[msg.SessionID]
				s.mu.Unlock()
				if ok {
					sess.Send(msg.Text)
				}
			}
		}
		if s.Snapshots != nil {
			if err := s.Snapshots.Write(s.buildSnapshot()); err != nil {
				s.log.Error("shutdown snapshot failed", zap.Error(err))
			}
		}
		for _, sess := range s.sessionSnapshot() {
			sess.Close()
		}
	})
}
