package sim

import (
	"testing"

	"skirmish/server/internal/geom"
	"skirmish/server/internal/interest"
	"skirmish/server/internal/snapshot"
)

func TestSpawnAssignsIDAndIndexes(t *testing.T) {
	w := NewWorld(64)
	e := w.Spawn(&Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{X: 10, Y: 10}})
	if e.ID == 0 {
		t.Fatalf("expected nonzero id")
	}
	got, ok := w.Get(e.ID)
	if !ok || got != e {
		t.Fatalf("expected to retrieve spawned entity")
	}
	square := w.Index().Square(interest.WorldToChunk(e.Position, 64), 0)
	if len(square) != 1 || square[0] != e.ID {
		t.Fatalf("expected entity indexed at its spawn chunk, got %v", square)
	}
}

func TestDespawnRemovesFromWorldAndIndex(t *testing.T) {
	w := NewWorld(64)
	e := w.Spawn(&Entity{Type: snapshot.EntityNPC, Position: geom.Vec2{X: 1, Y: 1}})
	w.Despawn(e.ID)
	if _, ok := w.Get(e.ID); ok {
		t.Fatalf("expected entity removed")
	}
}

func TestByOwnerFindsPlayerEntity(t *testing.T) {
	w := NewWorld(64)
	w.Spawn(&Entity{Type: snapshot.EntityNPC, Position: geom.Vec2{}})
	player := w.Spawn(&Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}, OwnerPeer: "peer-a"})
	got, ok := w.ByOwner("peer-a")
	if !ok || got.ID != player.ID {
		t.Fatalf("expected to find owned player entity")
	}
	if _, ok := w.ByOwner("peer-b"); ok {
		t.Fatalf("expected no match for unknown peer")
	}
}

func TestAllReturnsAscendingByID(t *testing.T) {
	w := NewWorld(64)
	w.Spawn(&Entity{Type: snapshot.EntityNPC})
	w.Spawn(&Entity{Type: snapshot.EntityNPC})
	w.Spawn(&Entity{Type: snapshot.EntityNPC})
	all := w.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("expected ascending ids, got %v then %v", all[i-1].ID, all[i].ID)
		}
	}
}

func TestReindexMovesEntityBetweenChunks(t *testing.T) {
	w := NewWorld(64)
	e := w.Spawn(&Entity{Position: geom.Vec2{X: 0, Y: 0}})
	e.Position = geom.Vec2{X: 200, Y: 0}
	w.Reindex(e.ID)
	if square := w.Index().Square(interest.WorldToChunk(geom.Vec2{X: 0, Y: 0}, 64), 0); len(square) != 0 {
		t.Fatalf("expected entity to have left its original chunk")
	}
	if square := w.Index().Square(interest.WorldToChunk(geom.Vec2{X: 200, Y: 0}, 64), 0); len(square) != 1 {
		t.Fatalf("expected entity indexed at new chunk, got %v", square)
	}
}
