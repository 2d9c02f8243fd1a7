package sim

import (
	"context"
	"time"

	"skirmish/server/internal/config"
	"skirmish/server/internal/geom"
	"skirmish/server/logging"
	logsim "skirmish/server/logging/simulation"
)

// Input is one peer's most recently enqueued movement intent for the next
// logic step. Direction is clamped to unit length before it ever reaches
// the driver (see protocol.ServerProtocol.OnInput).
type Input struct {
	Direction geom.Vec2
	Tick      uint64
}

// Driver runs the fixed-timestep simulation loop described in spec.md
// §4.4: an accumulator consumes whole TickDelta slices of wall-clock time,
// running one deterministic logic step per slice regardless of how
// irregularly the caller's frame callback fires.
type Driver struct {
	World   *World
	Physics PhysicsEngine
	LagComp *LagComp

	cfg       config.Config
	startedAt time.Time
	pub       logging.Publisher

	currentTick uint64
	accumulator time.Duration

	// pendingInputs holds the latest enqueued input per owning entity id,
	// drained and applied once per logic step.
	pendingInputs map[uint32]Input

	onSnapshotTick func(tick uint64, timestampMS uint32)
}

// NewDriver returns a Driver over world using cfg's tick rate and physics
// engine, zeroing the wall clock used for timestamp_ms at construction
// time.
func NewDriver(world *World, physics PhysicsEngine, cfg config.Config, pub logging.Publisher) *Driver {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Driver{
		World:         world,
		Physics:       physics,
		LagComp:       NewLagComp(cfg.LagCompHistoryTicks, cfg.TickRate, cfg.HitRadius),
		cfg:           cfg,
		startedAt:     time.Now(),
		pub:           pub,
		pendingInputs: make(map[uint32]Input),
	}
}

// OnSnapshotTick registers the callback invoked at the end of every logic
// step whose tick number falls on the snapshot stride
// (TickRate/SnapshotRate). This is the hook the server protocol uses to
// trigger its per-peer snapshot build.
func (d *Driver) OnSnapshotTick(fn func(tick uint64, timestampMS uint32)) {
	d.onSnapshotTick = fn
}

// EnqueueInput records direction as entityID's intent for the next logic
// step, replacing any input already queued for that entity this step
// unless the queued one carries a later tick (spec.md §4.4 step 1: drain
// the most recent by tick).
func (d *Driver) EnqueueInput(entityID uint32, in Input) {
	existing, ok := d.pendingInputs[entityID]
	if ok && existing.Tick > in.Tick {
		return
	}
	d.pendingInputs[entityID] = in
}

// CurrentTick reports the most recently completed logic step's tick
// number.
func (d *Driver) CurrentTick() uint64 {
	return d.currentTick
}

// TimestampMS returns the monotonic wall-clock-derived timestamp
// broadcast to clients. It is intentionally independent of currentTick so
// that a stall-and-catch-up in the accumulator never produces a visible
// time jump in client interpolation.
func (d *Driver) TimestampMS() uint32 {
	return uint32(time.Since(d.startedAt).Milliseconds())
}

// Advance feeds frameDt of wall-clock time into the accumulator and runs
// as many whole TickDelta logic steps as it can now afford.
func (d *Driver) Advance(ctx context.Context, frameDt time.Duration) {
	d.accumulator += frameDt
	tickDelta := d.cfg.TickDelta()
	for d.accumulator >= tickDelta {
		started := time.Now()
		d.step(ctx)
		d.accumulator -= tickDelta

		elapsed := time.Since(started)
		if elapsed > tickDelta {
			logsim.TickBudgetOverrun(ctx, d.pub, d.currentTick, logsim.TickBudgetOverrunPayload{
				DurationMS: elapsed.Milliseconds(),
				BudgetMS:   tickDelta.Milliseconds(),
				Ratio:      float64(elapsed) / float64(tickDelta),
			})
		}
	}
}

// step runs exactly one TICK_DELTA-sized logic step.
func (d *Driver) step(ctx context.Context) {
	d.currentTick++

	dt := d.cfg.TickDelta().Seconds()

	for id, in := range d.pendingInputs {
		if e, ok := d.World.Get(id); ok {
			e.Velocity = in.Direction.ClampUnit().Scale(d.cfg.PlayerSpeed)
		}
	}
	d.pendingInputs = make(map[uint32]Input, len(d.pendingInputs))

	d.driveObstacles(dt)

	entities := d.World.All()
	d.Physics.Resolve(entities, dt)

	for _, e := range entities {
		d.World.Reindex(e.ID)
	}

	d.LagComp.Record(d.currentTick, entities)

	timestampMS := d.TimestampMS()
	if d.onSnapshotTick != nil && d.cfg.TicksPerSnapshot() > 0 && d.currentTick%uint64(d.cfg.TicksPerSnapshot()) == 0 {
		d.onSnapshotTick(d.currentTick, timestampMS)
	}
}

// driveObstacles advances every moving-obstacle entity's scripted
// ping-pong motion per spec.md §4.4 step 4.
func (d *Driver) driveObstacles(dt float64) {
	for _, e := range d.World.All() {
		if e.Obstacle == nil {
			continue
		}
		o := e.Obstacle
		target := o.Target()
		toTarget := target.Sub(e.Position)
		dist := toTarget.Length()
		if dist < obstacleArriveEpsilon {
			o.GoingToEnd = !o.GoingToEnd
			target = o.Target()
			toTarget = target.Sub(e.Position)
			dist = toTarget.Length()
		}
		if dist > 0 {
			e.Velocity = toTarget.Normalized().Scale(o.Speed)
		} else {
			e.Velocity = geom.Vec2{}
		}
	}
}
