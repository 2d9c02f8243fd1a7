// Package app wires the config, logging, simulation, and transport layers
// together into a runnable server process. It is the one place allowed to
// know about every other package at once; everything it assembles is
// otherwise decoupled.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"skirmish/server/internal/config"
	"skirmish/server/internal/geom"
	"skirmish/server/internal/interest"
	"skirmish/server/internal/net/ws"
	"skirmish/server/internal/protocol"
	"skirmish/server/internal/sim"
	"skirmish/server/internal/snapshot"
	"skirmish/server/logging"
	"skirmish/server/logging/sinks"
	logwire "skirmish/server/logging/wire"
)

// Options carries the flags cmd/server parses before calling Run. Any zero
// field falls back to the value config.LoadFile resolved (file, then
// Default()).
type Options struct {
	Addr         string
	ConfigPath   string
	TickRate     int
	SnapshotRate int
	LogFilePath  string
	EventLogPath string
}

// Run builds the full server stack from opts and blocks serving HTTP until
// ctx is canceled.
func Run(ctx context.Context, opts Options) error {
	procLog, err := newProcessLogger(opts.LogFilePath)
	if err != nil {
		return fmt.Errorf("app: build process logger: %w", err)
	}
	defer procLog.Sync()

	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		return err
	}
	cfg = cfg.ApplyEnvOverrides()
	if opts.TickRate > 0 {
		cfg.TickRate = opts.TickRate
	}
	if opts.SnapshotRate > 0 {
		cfg.SnapshotRate = opts.SnapshotRate
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("app: invalid config: %w", err)
	}

	eventLogPath := opts.EventLogPath
	if eventLogPath == "" {
		eventLogPath = "events.jsonl"
	}
	eventFile, err := os.OpenFile(eventLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("app: open event log %s: %w", eventLogPath, err)
	}
	defer eventFile.Close()

	logCfg := logging.DefaultConfig()
	router, err := logging.NewRouter(logging.ClockFunc(time.Now), logCfg, []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout, logCfg.Console)},
		{Name: "json", Sink: sinks.NewJSON(eventFile, logCfg.JSON.FlushInterval)},
	})
	if err != nil {
		return fmt.Errorf("app: construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			procLog.Warnf("failed to close logging router: %v", cerr)
		}
	}()

	world := sim.NewWorld(cfg.ChunkSize)
	physics := sim.BoundsPhysics{WorldMin: cfg.WorldMin, WorldMax: cfg.WorldMax}
	driver := sim.NewDriver(world, physics, cfg, router)

	world.Spawn(&sim.Entity{
		Type:     snapshot.EntityMovingObstacle,
		Position: geom.Vec2{X: cfg.WorldMin / 2, Y: 0},
		Obstacle: &sim.ObstacleScript{
			Start:      geom.Vec2{X: cfg.WorldMin / 2, Y: 0},
			End:        geom.Vec2{X: cfg.WorldMax / 2, Y: 0},
			Speed:      cfg.PlayerSpeed,
			GoingToEnd: true,
		},
	})
	interestMgr := interest.NewManager(world.Index(), cfg.InterestRadius, cfg.MaxEntitiesPerSnapshot, cfg.HysteresisBonus, router)
	codec := &snapshot.Codec{
		PositionBits: cfg.PositionBits,
		VelocityBits: cfg.VelocityBits,
		MaxVelocity:  cfg.MaxVelocity,
		WorldMin:     cfg.WorldMin,
		WorldMax:     cfg.WorldMax,
		OnClamp: func(entityID uint32, field string, value float64) {
			logwire.QuantizationClamped(context.Background(), router, driver.CurrentTick(), logwire.QuantizationClampedPayload{
				EntityID: entityID,
				Field:    field,
				Value:    value,
			})
		},
	}

	hub := ws.NewHub()
	sp := protocol.New(world, driver, interestMgr, codec, cfg, router, hub)
	driver.OnSnapshotTick(func(tick uint64, timestampMS uint32) {
		sp.BuildAndSend(context.Background(), tick, timestampMS)
	})

	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer})
	}
	inbox := protocol.NewInbox(sp, spawn, 1024, router)

	handler := ws.NewHandler(hub, inbox, driver, router, ws.HandlerConfig{})

	tick := NewSimulationTick(driver, inbox, sp, hub, cfg)
	stop := make(chan struct{})
	go tick.Run(stop)
	defer close(stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.Handle)
	registerDiagnostics(mux, inbox, cfg)

	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		procLog.Infof("server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		procLog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: server failed: %w", err)
		}
		return nil
	}
}
