package sim

import (
	"testing"

	"skirmish/server/internal/geom"
)

func TestLagCompEvictsFramesOlderThanHistoryWindow(t *testing.T) {
	lc := NewLagComp(5, 30, 16)
	for tick := uint64(1); tick <= 10; tick++ {
		lc.Record(tick, []*Entity{{ID: 1, Position: geom.Vec2{X: float64(tick)}}})
	}
	if _, ok := lc.frames[1]; ok {
		t.Fatalf("expected tick 1 to have been evicted")
	}
	if _, ok := lc.frames[10]; !ok {
		t.Fatalf("expected most recent tick retained")
	}
}

func TestVerifyHitFindsEntityOnRay(t *testing.T) {
	lc := NewLagComp(60, 30, 16)
	lc.Record(1, []*Entity{{ID: 1, Position: geom.Vec2{X: 100, Y: 0}}})

	origin := geom.Vec2{X: 0, Y: 0}
	dir := geom.Vec2{X: 1, Y: 0}
	clientMS := 1000.0 / 30.0 // tick 1 in ms

	id, ok := lc.VerifyHit(origin, dir, clientMS)
	if !ok || id != 1 {
		t.Fatalf("expected hit on entity 1, got id=%v ok=%v", id, ok)
	}
}

func TestVerifyHitMissesWhenRayDoesNotCrossEntity(t *testing.T) {
	lc := NewLagComp(60, 30, 16)
	lc.Record(1, []*Entity{{ID: 1, Position: geom.Vec2{X: 0, Y: 100}}})

	origin := geom.Vec2{X: 0, Y: 0}
	dir := geom.Vec2{X: 1, Y: 0}
	clientMS := 1000.0 / 30.0

	if _, ok := lc.VerifyHit(origin, dir, clientMS); ok {
		t.Fatalf("expected no hit for perpendicular entity")
	}
}

func TestVerifyHitReturnsFalseForTooOldTimestamp(t *testing.T) {
	lc := NewLagComp(5, 30, 16)
	for tick := uint64(1); tick <= 10; tick++ {
		lc.Record(tick, []*Entity{{ID: 1, Position: geom.Vec2{X: 100, Y: 0}}})
	}
	// tick 1 has long since been evicted and is far from currentTick (10).
	clientMS := 1000.0 / 30.0
	if _, ok := lc.VerifyHit(geom.Vec2{}, geom.Vec2{X: 1, Y: 0}, clientMS); ok {
		t.Fatalf("expected VerifyHit to refuse a stale timestamp")
	}
}

func TestVerifyHitFallsBackToCurrentFrameWhenRecentlyMissing(t *testing.T) {
	lc := NewLagComp(60, 30, 16)
	lc.Record(1, []*Entity{{ID: 1, Position: geom.Vec2{X: 100, Y: 0}}})
	// t0=2 has never been recorded (currentTick is still 1), but it's
	// within 2 ticks of currentTick, so VerifyHit should fall back to the
	// current frame instead of refusing outright.
	clientMS := 2000.0 / 30.0
	id, ok := lc.VerifyHit(geom.Vec2{}, geom.Vec2{X: 1, Y: 0}, clientMS)
	if !ok || id != 1 {
		t.Fatalf("expected fallback hit on entity 1, got id=%v ok=%v", id, ok)
	}
}
