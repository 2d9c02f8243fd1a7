package sim

import (
	"math"

	"skirmish/server/internal/geom"
)

// frame is one tick's worth of recorded entity positions, keyed by id.
type frame map[uint32]geom.Vec2

// LagComp is the world-history ring used to rewind the server's state to a
// client-reported time and validate hit queries against what that client
// actually saw, rather than the server's current (later) positions.
type LagComp struct {
	historyTicks int
	tickRate     int
	hitRadius    float64

	frames     map[uint64]frame
	currentTick uint64
}

// NewLagComp returns an empty LagComp bounded to historyTicks frames.
func NewLagComp(historyTicks, tickRate int, hitRadius float64) *LagComp {
	return &LagComp{
		historyTicks: historyTicks,
		tickRate:     tickRate,
		hitRadius:    hitRadius,
		frames:       make(map[uint64]frame),
	}
}

// Record snapshots every entity's current position under tick, evicting
// frames older than historyTicks.
func (l *LagComp) Record(tick uint64, entities []*Entity) {
	l.currentTick = tick
	f := make(frame, len(entities))
	for _, e := range entities {
		f[e.ID] = e.Position
	}
	l.frames[tick] = f
	if tick > uint64(l.historyTicks) {
		evictBefore := tick - uint64(l.historyTicks)
		for t := range l.frames {
			if t < evictBefore {
				delete(l.frames, t)
			}
		}
	}
}

// VerifyHit rewinds history to clientReportedTimeMS and ray-casts from
// origin along directionUnit, returning the id of the nearest entity
// intersected within HitRadius, or false if none.
func (l *LagComp) VerifyHit(origin, directionUnit geom.Vec2, clientReportedTimeMS float64) (uint32, bool) {
	tFloat := clientReportedTimeMS * float64(l.tickRate) / 1000.0
	t0 := uint64(math.Floor(tFloat))
	alpha := tFloat - float64(t0)

	f0, ok := l.frames[t0]
	if !ok {
		if diff := int64(l.currentTick) - int64(t0); diff < 2 && diff > -2 {
			f0, ok = l.frames[l.currentTick]
			t0 = l.currentTick
			alpha = 0
		}
		if !ok {
			return 0, false
		}
	}
	f1, ok := l.frames[t0+1]
	if !ok {
		f1 = f0
	}

	var bestID uint32
	bestParam := math.Inf(1)
	found := false
	for id, p0 := range f0 {
		p1, ok := f1[id]
		if !ok {
			p1 = p0
		}
		pos := geom.Lerp(p0, p1, alpha)
		param, hit := rayCircleIntersect(origin, directionUnit, pos, l.hitRadius)
		if hit && param >= 0 && param < bestParam {
			bestParam = param
			bestID = id
			found = true
		}
	}
	return bestID, found
}

// rayCircleIntersect returns the smallest positive ray parameter t such
// that origin + t*dir lies on the circle of radius r centered at center,
// or false if the ray misses.
func rayCircleIntersect(origin, dir, center geom.Vec2, r float64) (float64, bool) {
	toCenter := center.Sub(origin)
	// Project toCenter onto dir (assumed unit length); tClosest is the ray
	// parameter of the point on the ray nearest the circle's center.
	tClosest := toCenter.X*dir.X + toCenter.Y*dir.Y
	closest := origin.Add(dir.Scale(tClosest))
	distSq := closest.DistanceSquared(center)
	rSq := r * r
	if distSq > rSq {
		return 0, false
	}
	half := math.Sqrt(rSq - distSq)
	t := tClosest - half
	if t < 0 {
		t = tClosest + half
		if t < 0 {
			return 0, false
		}
	}
	return t, true
}
