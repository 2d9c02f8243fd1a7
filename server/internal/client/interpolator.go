package client

import (
	"skirmish/server/internal/config"
	"skirmish/server/internal/geom"
	"skirmish/server/internal/snapshot"
)

// entityLeaveGraceMS is how long a held entity that dropped out of the
// latest snapshot's interest set is kept rendered at its last known state
// before Render stops reporting it, per spec.md §4.8.
const entityLeaveGraceMS = 500.0

// RenderedEntity is one entity's interpolated (or held) state at the
// interpolator's current render time.
type RenderedEntity struct {
	ID          uint32
	Position    geom.Vec2
	Velocity    geom.Vec2
	SpriteFrame uint8
	StateFlags  uint8
	EntityType  snapshot.EntityType
}

// Interpolator maintains the render clock described in spec.md §4.8: it
// tracks behind the estimated server time by TotalClientDelayMS and blends
// between bracketing snapshots with a Hermite spline so entity motion
// stays smooth between snapshot arrivals.
type Interpolator struct {
	cfg config.Config

	renderTimeMS float64
	initialized  bool

	lastSeenMS map[uint32]float64
	held       map[uint32]RenderedEntity
}

// NewInterpolator returns an Interpolator governed by cfg's delay budget
// and snapshot rate.
func NewInterpolator(cfg config.Config) *Interpolator {
	return &Interpolator{
		cfg:        cfg,
		lastSeenMS: make(map[uint32]float64),
		held:       make(map[uint32]RenderedEntity),
	}
}

// RenderTimeMS reports the interpolator's current render clock reading.
func (ip *Interpolator) RenderTimeMS() float64 {
	return ip.renderTimeMS
}

// Advance steps the render clock forward by dtMS of wall-clock time,
// adaptively speeding up or slowing down (within ±10%) to track the target
// render time derived from the clock sync estimate, per spec.md §4.8.
func (ip *Interpolator) Advance(dtMS float64, clockNowMS float64, buf *snapshot.Buffer) {
	latest, ok := buf.Latest()
	if !ok {
		return
	}
	if !ip.initialized {
		ip.renderTimeMS = float64(latest.TimestampMS) - float64(ip.cfg.TotalClientDelayMS())
		ip.initialized = true
	}

	target := clockNowMS - float64(ip.cfg.TotalClientDelayMS())
	errMS := target - ip.renderTimeMS

	timeScale := 1.0
	if errMS > 10 || errMS < -10 {
		timeScale = clampFloat(1.0+errMS*0.5/1000, 0.90, 1.10)
	}

	ip.renderTimeMS += dtMS * timeScale
	if ip.renderTimeMS > float64(latest.TimestampMS) {
		ip.renderTimeMS = float64(latest.TimestampMS)
	}
}

// Render computes every entity's blended state at the interpolator's
// current render time, bracketed by the buffer's adjacent snapshots.
func (ip *Interpolator) Render(buf *snapshot.Buffer) []RenderedEntity {
	renderClamped := ip.renderTimeMS
	if renderClamped < 0 {
		renderClamped = 0
	}
	from, to, ok := buf.InterpolationPair(uint32(renderClamped))
	if !ok {
		return nil
	}

	t := 0.0
	if to.TimestampMS != from.TimestampMS {
		t = clampFloat((ip.renderTimeMS-float64(from.TimestampMS))/float64(to.TimestampMS-from.TimestampMS), 0, 1)
	}

	dtSnap := 1.0 / float64(ip.cfg.SnapshotRate)
	nowMS := ip.renderTimeMS

	seen := make(map[uint32]bool, len(from.States)+len(to.States))
	var out []RenderedEntity

	for _, entry := range to.States {
		seen[entry.ID] = true
		fromState, inFrom := from.Get(entry.ID)
		if !inFrom {
			// Entering: snap to the new state rather than blending from
			// nothing.
			rendered := fromEntityState(entry.ID, entry.State)
			ip.held[entry.ID] = rendered
			ip.lastSeenMS[entry.ID] = nowMS
			out = append(out, rendered)
			continue
		}
		rendered := hermiteBlend(entry.ID, fromState, entry.State, t, dtSnap)
		ip.held[entry.ID] = rendered
		ip.lastSeenMS[entry.ID] = nowMS
		out = append(out, rendered)
	}

	for _, entry := range from.States {
		if seen[entry.ID] {
			continue
		}
		// Leaving: hold at the last known state until the grace window
		// expires, per spec.md §4.8.
		last, wasHeld := ip.held[entry.ID]
		if !wasHeld {
			last = fromEntityState(entry.ID, entry.State)
		}
		if nowMS-ip.lastSeenMS[entry.ID] > entityLeaveGraceMS {
			delete(ip.held, entry.ID)
			delete(ip.lastSeenMS, entry.ID)
			continue
		}
		out = append(out, last)
	}

	return out
}

func fromEntityState(id uint32, s snapshot.EntityState) RenderedEntity {
	return RenderedEntity{
		ID:          id,
		Position:    s.Position,
		Velocity:    s.Velocity,
		SpriteFrame: s.SpriteFrame,
		StateFlags:  s.StateFlags,
		EntityType:  s.EntityType,
	}
}

// hermiteBlend interpolates between from and to at parameter t using the
// cubic Hermite basis named in spec.md §4.8, with velocities scaled by the
// inter-snapshot period dtSnap as the spline's tangents.
func hermiteBlend(id uint32, from, to snapshot.EntityState, t, dtSnap float64) RenderedEntity {
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	position := geom.Vec2{
		X: h00*from.Position.X + h10*from.Velocity.X*dtSnap + h01*to.Position.X + h11*to.Velocity.X*dtSnap,
		Y: h00*from.Position.Y + h10*from.Velocity.Y*dtSnap + h01*to.Position.Y + h11*to.Velocity.Y*dtSnap,
	}
	velocity := geom.Lerp(from.Velocity, to.Velocity, t)

	discrete := from
	if t >= 0.5 {
		discrete = to
	}

	return RenderedEntity{
		ID:          id,
		Position:    position,
		Velocity:    velocity,
		SpriteFrame: discrete.SpriteFrame,
		StateFlags:  discrete.StateFlags,
		EntityType:  discrete.EntityType,
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
