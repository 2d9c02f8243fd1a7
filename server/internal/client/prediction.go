package client

import (
	"skirmish/server/internal/config"
	"skirmish/server/internal/geom"
	"skirmish/server/internal/sim"
	"skirmish/server/internal/snapshot"
)

// InputCommand is one client tick's captured movement intent, retained
// until the server has acknowledged processing it (spec.md §4.9).
type InputCommand struct {
	Tick      uint64
	Direction geom.Vec2
}

// PredictedState is the local player's predicted position/velocity at one
// client tick, retained alongside the InputCommand that produced it so
// reconciliation can replay from any earlier tick.
type PredictedState struct {
	Tick     uint64
	Position geom.Vec2
	Velocity geom.Vec2
}

// PredictionController runs client-side prediction for the local player
// only: it applies input immediately using the same motion rule and
// collision routine the server uses, then reconciles against the
// authoritative position carried in each snapshot.
type PredictionController struct {
	cfg     config.Config
	physics sim.PhysicsEngine

	inputs    []InputCommand
	predicted []PredictedState

	position geom.Vec2
	velocity geom.Vec2
}

// NewPredictionController returns a controller seeded at startPosition,
// using cfg's player speed and the same BoundsPhysics the server's tick
// driver runs, so predicted motion matches the authoritative path exactly
// when there is no loss or misprediction.
func NewPredictionController(cfg config.Config, startPosition geom.Vec2) *PredictionController {
	return &PredictionController{
		cfg:      cfg,
		physics:  sim.BoundsPhysics{WorldMin: cfg.WorldMin, WorldMax: cfg.WorldMax},
		position: startPosition,
	}
}

// Position returns the controller's current predicted position.
func (pc *PredictionController) Position() geom.Vec2 {
	return pc.position
}

// Velocity returns the controller's current predicted velocity.
func (pc *PredictionController) Velocity() geom.Vec2 {
	return pc.velocity
}

// Tick applies direction as this tick's input using the server's motion
// rule (velocity = direction.ClampUnit() * PlayerSpeed, then bounds
// resolution), records the InputCommand/PredictedState pair, and returns
// the resulting predicted state.
func (pc *PredictionController) Tick(tick uint64, direction geom.Vec2) PredictedState {
	pc.velocity = direction.ClampUnit().Scale(pc.cfg.PlayerSpeed)

	ghost := &sim.Entity{Position: pc.position, Velocity: pc.velocity}
	pc.physics.Resolve([]*sim.Entity{ghost}, pc.cfg.TickDelta().Seconds())
	pc.position = ghost.Position
	pc.velocity = ghost.Velocity

	pc.inputs = append(pc.inputs, InputCommand{Tick: tick, Direction: direction})
	state := PredictedState{Tick: tick, Position: pc.position, Velocity: pc.velocity}
	pc.predicted = append(pc.predicted, state)
	return state
}

// Reconcile folds one snapshot's authoritative player state back into the
// prediction history, per spec.md §4.9. It returns whether a correction
// was applied (the error exceeded ReconcileThreshold, or no prediction was
// recorded for the server's tick and the state snapped to the server's)
// and how many inputs were replayed to re-derive the current predicted
// position.
func (pc *PredictionController) Reconcile(snap snapshot.Snapshot) (corrected bool, replayed int) {
	serverTick := uint64(snap.LastProcessedInputTick)
	playerState, ok := snap.PlayerState()
	if !ok {
		return false, 0
	}

	predictedAtServerTick, found := pc.findPredicted(serverTick)
	if !found {
		pc.position = playerState.Position
		pc.velocity = playerState.Velocity
		pc.evictThrough(serverTick)
		return true, 0
	}

	errVec := predictedAtServerTick.Position.Sub(playerState.Position)
	if errVec.Length() <= pc.cfg.ReconcileThreshold {
		pc.evictThrough(serverTick)
		return false, 0
	}

	pc.position = playerState.Position
	pc.velocity = playerState.Velocity
	pc.evictThrough(serverTick)

	replayFrom := pc.inputs
	for _, in := range replayFrom {
		if in.Tick <= serverTick {
			continue
		}
		pc.velocity = in.Direction.ClampUnit().Scale(pc.cfg.PlayerSpeed)
		ghost := &sim.Entity{Position: pc.position, Velocity: pc.velocity}
		pc.physics.Resolve([]*sim.Entity{ghost}, pc.cfg.TickDelta().Seconds())
		pc.position = ghost.Position
		pc.velocity = ghost.Velocity
		pc.setPredicted(PredictedState{Tick: in.Tick, Position: pc.position, Velocity: pc.velocity})
		replayed++
	}
	return true, replayed
}

func (pc *PredictionController) findPredicted(tick uint64) (PredictedState, bool) {
	for _, p := range pc.predicted {
		if p.Tick == tick {
			return p, true
		}
	}
	return PredictedState{}, false
}

func (pc *PredictionController) setPredicted(s PredictedState) {
	for i, p := range pc.predicted {
		if p.Tick == s.Tick {
			pc.predicted[i] = s
			return
		}
	}
	pc.predicted = append(pc.predicted, s)
}

// evictThrough discards input/predicted history at or before tick, per
// spec.md §4.9's "evict history <= T_server".
func (pc *PredictionController) evictThrough(tick uint64) {
	keptInputs := pc.inputs[:0]
	for _, in := range pc.inputs {
		if in.Tick > tick {
			keptInputs = append(keptInputs, in)
		}
	}
	pc.inputs = keptInputs

	keptPredicted := pc.predicted[:0]
	for _, p := range pc.predicted {
		if p.Tick > tick {
			keptPredicted = append(keptPredicted, p)
		}
	}
	pc.predicted = keptPredicted
}
