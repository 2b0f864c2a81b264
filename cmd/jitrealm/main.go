// Command jitrealm is the driver entry point: it loads configuration,
// constructs every subsystem, and runs either the multi-user network
// server, a single-user console session, or the deterministic perfbench
// harness, per spec §6's CLI surface.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jitrealm/jitrealm/internal/clock"
	"github.com/jitrealm/jitrealm/internal/combat"
	"github.com/jitrealm/jitrealm/internal/command"
	"github.com/jitrealm/jitrealm/internal/config"
	"github.com/jitrealm/jitrealm/internal/ident"
	"github.com/jitrealm/jitrealm/internal/mq"
	"github.com/jitrealm/jitrealm/internal/object"
	"github.com/jitrealm/jitrealm/internal/persist"
	"github.com/jitrealm/jitrealm/internal/safeinvoke"
	"github.com/jitrealm/jitrealm/internal/sandbox"
	"github.com/jitrealm/jitrealm/internal/schedule"
	"github.com/jitrealm/jitrealm/internal/scripting"
	"github.com/jitrealm/jitrealm/internal/server"
	"github.com/jitrealm/jitrealm/internal/session"
	"github.com/jitrealm/jitrealm/internal/worldstate"
)

type flags struct {
	configPath string
	serverMode bool
	port       int
	player     string
	password   string

	perfbench   bool
	blueprint   string
	count       int
	ticks       int
	loopDelayMs int
	noCallouts  bool
	safeInvoke  bool
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "jitrealm",
		Short: "JitRealm MUD driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	root.Flags().StringVar(&f.configPath, "config", "config.toml", "path to the config document")
	root.Flags().BoolVarP(&f.serverMode, "server", "s", false, "multi-user network mode (default is single-user console)")
	root.Flags().IntVarP(&f.port, "port", "p", 0, "listen port (overrides config)")
	root.Flags().StringVarP(&f.player, "player", "u", "", "console mode auto-login name")
	root.Flags().StringVar(&f.password, "password", "", "console mode auto-login password")
	root.Flags().StringVar(&f.password, "pw", "", "alias for --password")

	root.Flags().BoolVar(&f.perfbench, "perfbench", false, "run the deterministic benchmark harness and exit")
	root.Flags().StringVar(&f.blueprint, "blueprint", "", "perfbench: blueprint ID to clone")
	root.Flags().IntVar(&f.count, "count", 100, "perfbench: number of instances to clone")
	root.Flags().IntVar(&f.ticks, "ticks", 100, "perfbench: number of ticks to run")
	root.Flags().IntVar(&f.loopDelayMs, "loopDelayMs", 0, "perfbench: simulated tick advance in milliseconds")
	root.Flags().BoolVar(&f.noCallouts, "noCallouts", false, "perfbench: skip callout dispatch")
	root.Flags().BoolVar(&f.safeInvoke, "safeInvoke", false, "perfbench: route heartbeats through the safe invoker")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if f.perfbench {
		return runPerfbench(f, cfg, log)
	}

	world := wireWorld(cfg, log)

	if f.serverMode {
		return runServerMode(world, cfg, log)
	}
	return runConsoleMode(world, f, cfg, log)
}

// newLogger mirrors the teacher's console-development encoder: capital
// colored level names, no caller/stacktrace noise for an interactive
// driver process.
func newLogger() (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.DisableStacktrace = true
	zapCfg.DisableCaller = true
	return zapCfg.Build()
}

// worldSystems bundles every subsystem the server, console, and perfbench
// entry points all need wired up the same way.
type worldSystems struct {
	clock      clock.Clock
	objects    *object.Manager
	rooms      *worldstate.Registry
	heartbeats *schedule.HeartbeatScheduler
	callouts   *schedule.CalloutScheduler
	combat     *combat.Tracker
	queue      *mq.Queue
	invoker    *safeinvoke.Invoker
	commands   *command.Registry
	dispatcher *command.Dispatcher
	accounts   *persist.Accounts
	snapshots  *persist.Snapshots
}

func wireWorld(cfg *config.Config, log *zap.Logger) *worldSystems {
	policy := sandbox.Policy{
		HookTimeout:      time.Duration(cfg.Security.HookTimeoutMs) * time.Millisecond,
		HeartbeatTimeout: time.Duration(cfg.Security.HeartbeatTimeoutMs) * time.Millisecond,
	}
	engine := scripting.NewEngine(policy, log)
	gcPolicy := object.GCPolicy{
		ForceGcOnUnload: cfg.Performance.ForceGcOnUnload,
		ForceGcEveryN:   cfg.Performance.ForceGcEveryNUnloads,
	}
	clk := clock.NewSystem()
	invoker := safeinvoke.NewInvoker(policy, log)
	registry := command.NewRegistry()
	registerBuiltins(registry)

	return &worldSystems{
		clock:      clk,
		objects:    object.NewManager(engine, invoker, clk, gcPolicy, log),
		rooms:      worldstate.NewRegistry(),
		heartbeats: schedule.NewHeartbeatScheduler(clk, time.Duration(cfg.GameLoop.DefaultHeartbeatSeconds)*time.Second),
		callouts:   schedule.NewCalloutScheduler(clk),
		combat:     combat.NewTracker(clk, time.Duration(cfg.Combat.RoundIntervalSeconds)*time.Second, cfg.Combat.FleeChancePercent),
		queue:      mq.NewQueue(),
		invoker:    invoker,
		commands:   registry,
		dispatcher: command.NewDispatcher(registry, nil),
		accounts:   persist.NewAccounts(cfg.Paths.PlayersDirectory),
		snapshots:  persist.NewSnapshots(filepath.Join(cfg.Paths.SaveDirectory, cfg.Paths.SaveFileName)),
	}
}

// registerBuiltins wires the handful of verbs the driver itself owns
// rather than delegating to world code — "quit" has to exist regardless
// of whether any blueprint defines it.
func registerBuiltins(registry *command.Registry) {
	registry.RegisterGlobal(command.Spec{
		Name: "quit",
		Handler: func(ctx *command.Context) error {
			return nil
		},
	})
}

func buildServer(w *worldSystems, cfg *config.Config, log *zap.Logger) *server.Server {
	if err := persist.EnsureDir(cfg.Paths.SaveDirectory); err != nil {
		log.Warn("could not create save directory", zap.Error(err))
	}

	srv := server.New(w.clock, log)
	srv.Objects = w.objects
	srv.World = w.rooms
	srv.Heartbeats = w.heartbeats
	srv.Callouts = w.callouts
	srv.Combat = w.combat
	srv.Queue = w.queue
	srv.Invoker = w.invoker
	srv.Commands = w.dispatcher
	srv.Accounts = w.accounts
	srv.Snapshots = w.snapshots
	srv.LoopDelay = time.Duration(cfg.GameLoop.LoopDelayMs) * time.Millisecond
	srv.AutoSaveEnabled = cfg.GameLoop.AutoSaveEnabled
	srv.AutoSaveEvery = time.Duration(cfg.GameLoop.AutoSaveIntervalMinutes) * time.Minute

	if snap, err := w.snapshots.Read(); err == nil {
		srv.Restore(snap)
	} else if !os.IsNotExist(err) {
		log.Warn("could not read world snapshot, starting with an empty world", zap.Error(err))
	}

	return srv
}

func runServerMode(w *worldSystems, cfg *config.Config, log *zap.Logger) error {
	srv := buildServer(w, cfg, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if err := srv.Listen(addr); err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	log.Info("listening", zap.String("addr", addr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		// A second signal aborts the process immediately rather than
		// waiting out the orderly drain Shutdown performs.
		second, stopSecond := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stopSecond()
		<-second.Done()
		os.Exit(1)
	}()

	srv.Run(ctx, func(conn net.Conn) {
		handleConnection(srv, w, cfg, log, conn)
	})
	return nil
}

// handleConnection runs one client's login prompt and command loop for
// the lifetime of its connection. It owns nothing about world placement
// beyond the starting room named in config — spec §4.K's local-command
// lookup is given a single-room-contents stub since full room traversal
// is a world-code concern, not the driver's.
func handleConnection(srv *server.Server, w *worldSystems, cfg *config.Config, log *zap.Logger, conn net.Conn) {
	caps := session.Capabilities{ANSI: true, Width: 80, Height: 24}
	sess := session.NewSession(ident.SessionID("connecting"), conn, caps, log)
	sess.Start()
	defer sess.Close()

	sess.Send(cfg.Server.WelcomeMessage)
	sess.Send("Name:")

	var name string
	select {
	case name = <-sess.Lines:
	case <-time.After(30 * time.Second):
		return
	}

	sess.Send("Password:")
	var password string
	select {
	case password = <-sess.Lines:
	case <-time.After(30 * time.Second):
		return
	}

	if !w.accounts.Validate(name, password) {
		if _, err := w.accounts.Create(name, password); err != nil {
			sess.Send("Login failed.")
			return
		}
	}

	sess.ID = ident.SessionID(name)
	srv.RegisterSession(sess)
	defer srv.UnregisterSession(sess.ID)

	sess.Send(fmt.Sprintf("Welcome, %s.", name))

	lookup := func(actorID string) (string, []string) {
		return cfg.Paths.StartRoom, nil
	}

	for line := range sess.Lines {
		if line == "" {
			continue
		}
		if err := w.dispatcher.Execute(sess.ID, false, line, lookup); err != nil {
			sess.Send(err.Error())
			continue
		}
		if line == "quit" {
			sess.Send("Goodbye.")
			return
		}
	}
}

func runConsoleMode(w *worldSystems, f flags, cfg *config.Config, log *zap.Logger) error {
	srv := buildServer(w, cfg, log)

	fmt.Println(cfg.Server.WelcomeMessage)

	actorID := ident.SessionID("console")
	if f.player != "" {
		if w.accounts.Validate(f.player, f.password) {
			actorID = ident.SessionID(f.player)
			fmt.Printf("Welcome back, %s.\n", f.player)
		} else {
			fmt.Println("login failed, continuing as guest")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx, nil)

	lookup := func(string) (string, []string) {
		return cfg.Paths.StartRoom, nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "quit" {
			break
		}
		if line == "" {
			continue
		}
		if err := w.dispatcher.Execute(actorID, false, line, lookup); err != nil {
			fmt.Println(err.Error())
		}
	}

	cancel()
	<-srv.Stopped()
	return nil
}

func runPerfbench(f flags, cfg *config.Config, log *zap.Logger) error {
	if f.blueprint == "" {
		return fmt.Errorf("perfbench requires --blueprint")
	}

	mc := clock.NewManual(time.Unix(0, 0))
	policy := sandbox.Policy{
		HookTimeout:      time.Duration(cfg.Security.HookTimeoutMs) * time.Millisecond,
		HeartbeatTimeout: time.Duration(cfg.Security.HeartbeatTimeoutMs) * time.Millisecond,
	}
	engine := scripting.NewEngine(policy, log)
	invoker := safeinvoke.NewInvoker(policy, log)
	objects := object.NewManager(engine, invoker, mc, object.GCPolicy{}, log)

	path := filepath.Join(cfg.Paths.WorldDirectory, f.blueprint+".lua")
	if _, err := objects.LoadBlueprint(f.blueprint, path); err != nil {
		return fmt.Errorf("perfbench load blueprint: %w", err)
	}

	heartbeats := schedule.NewHeartbeatScheduler(mc, time.Duration(cfg.GameLoop.DefaultHeartbeatSeconds)*time.Second)
	callouts := schedule.NewCalloutScheduler(mc)

	for i := 0; i < f.count; i++ {
		inst, err := objects.Clone(f.blueprint, nil)
		if err != nil {
			return fmt.Errorf("perfbench clone: %w", err)
		}
		heartbeats.Register(inst.ID, time.Duration(cfg.GameLoop.DefaultHeartbeatSeconds)*time.Second)
	}

	loopDelay := time.Duration(f.loopDelayMs) * time.Millisecond
	start := time.Now()

	for i := 0; i < f.ticks; i++ {
		mc.Advance(loopDelay)

		for _, objectID := range heartbeats.Due() {
			invokeHeartbeat(objects, invoker, f.safeInvoke, objectID)
		}

		if !f.noCallouts {
			for _, c := range callouts.Due() {
				invokeHeartbeat(objects, invoker, f.safeInvoke, c.ObjectID)
			}
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("perfbench: %d instances, %d ticks in %s\n", f.count, f.ticks, elapsed)
	return nil
}

func invokeHeartbeat(objects *object.Manager, invoker *safeinvoke.Invoker, useSafeInvoke bool, objectID string) {
	inst, ok := objects.Get(objectID)
	if !ok || !inst.HasMethod("heartbeat") {
		return
	}
	if useSafeInvoke {
		invoker.Call(context.Background(), sandbox.Heartbeat, objectID, "heartbeat", func() (any, error) {
			return inst.Call("heartbeat", object.BuildContext(objectID), nil)
		})
		return
	}
	inst.Call("heartbeat", object.BuildContext(objectID), nil)
}
