package interest

import (
	"testing"

	"skirmish/server/internal/geom"
)

func TestWorldToChunkFloorDivides(t *testing.T) {
	cases := []struct {
		pos  geom.Vec2
		want Coord
	}{
		{geom.Vec2{X: 0, Y: 0}, Coord{0, 0}},
		{geom.Vec2{X: 63, Y: 63}, Coord{0, 0}},
		{geom.Vec2{X: 64, Y: 64}, Coord{1, 1}},
		{geom.Vec2{X: -1, Y: -1}, Coord{-1, -1}},
		{geom.Vec2{X: -64, Y: 0}, Coord{-1, 0}},
	}
	for _, c := range cases {
		got := WorldToChunk(c.pos, 64)
		if got != c.want {
			t.Errorf("WorldToChunk(%+v) = %+v, want %+v", c.pos, got, c.want)
		}
	}
}

func TestIndexUpdateMovesEntityBetweenChunks(t *testing.T) {
	idx := NewIndex(64)
	idx.Update(1, geom.Vec2{X: 10, Y: 10})
	if square := idx.Square(Coord{0, 0}, 0); len(square) != 1 || square[0] != 1 {
		t.Fatalf("expected entity 1 in chunk (0,0), got %v", square)
	}

	idx.Update(1, geom.Vec2{X: 200, Y: 200})
	if square := idx.Square(Coord{0, 0}, 0); len(square) != 0 {
		t.Fatalf("entity 1 should have left chunk (0,0), still present: %v", square)
	}
	if square := idx.Square(Coord{3, 3}, 0); len(square) != 1 || square[0] != 1 {
		t.Fatalf("expected entity 1 in chunk (3,3), got %v", square)
	}
}

func TestIndexRemoveDropsEntity(t *testing.T) {
	idx := NewIndex(64)
	idx.Update(1, geom.Vec2{X: 0, Y: 0})
	idx.Remove(1)
	if square := idx.Square(Coord{0, 0}, 0); len(square) != 0 {
		t.Fatalf("expected empty chunk after removal, got %v", square)
	}
}

func TestSquareCollectsRadiusAndDedupes(t *testing.T) {
	idx := NewIndex(64)
	idx.Update(1, geom.Vec2{X: 0, Y: 0})    // chunk (0,0)
	idx.Update(2, geom.Vec2{X: 64, Y: 0})   // chunk (1,0)
	idx.Update(3, geom.Vec2{X: 640, Y: 0})  // chunk (10,0), out of range

	got := idx.Square(Coord{0, 0}, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 entities within radius 1, got %v", got)
	}
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected ascending ids [1 2], got %v", got)
	}
}

func TestIndexUpdateNoopWhenSameChunk(t *testing.T) {
	idx := NewIndex(64)
	idx.Update(1, geom.Vec2{X: 1, Y: 1})
	idx.Update(1, geom.Vec2{X: 2, Y: 2})
	got := idx.Square(Coord{0, 0}, 0)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected single entry for entity 1, got %v", got)
	}
}
