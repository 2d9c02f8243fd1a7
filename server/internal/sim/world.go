package sim

import (
	"sort"

	"skirmish/server/internal/geom"
	"skirmish/server/internal/interest"
)

// World owns the authoritative entity set. It is mutated exclusively by
// the simulation tick driver; every other package only reads materialized
// copies taken at a tick boundary.
type World struct {
	entities map[uint32]*Entity
	index    *interest.Index
	nextID   uint32
}

// NewWorld returns an empty World indexed at chunkSize granularity.
func NewWorld(chunkSize float64) *World {
	return &World{
		entities: make(map[uint32]*Entity),
		index:    interest.NewIndex(chunkSize),
	}
}

// Index exposes the spatial index for the interest manager to query.
func (w *World) Index() *interest.Index {
	return w.index
}

// Spawn allocates a fresh id and adds e to the world, indexing its initial
// position.
func (w *World) Spawn(e *Entity) *Entity {
	w.nextID++
	e.ID = w.nextID
	w.entities[e.ID] = e
	w.index.Update(e.ID, e.Position)
	return e
}

// Despawn removes id from the world and the spatial index.
func (w *World) Despawn(id uint32) {
	delete(w.entities, id)
	w.index.Remove(id)
}

// Get returns the entity with id, if present.
func (w *World) Get(id uint32) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// PositionOf implements interest.EntityPositioner.
func (w *World) PositionOf(id uint32) (geom.Vec2, bool) {
	e, ok := w.entities[id]
	if !ok {
		return geom.Vec2{}, false
	}
	return e.Position, true
}

// ByOwner returns the player entity owned by peerID, if any.
func (w *World) ByOwner(peerID string) (*Entity, bool) {
	for _, e := range w.entities {
		if e.OwnerPeer == peerID {
			return e, true
		}
	}
	return nil, false
}

// All returns every entity, ordered by ascending id for deterministic
// iteration in tests and physics passes.
func (w *World) All() []*Entity {
	out := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of live entities.
func (w *World) Len() int {
	return len(w.entities)
}

// Reindex refreshes the spatial index entry for id after its position has
// changed.
func (w *World) Reindex(id uint32) {
	e, ok := w.entities[id]
	if !ok {
		return
	}
	w.index.Update(id, e.Position)
}
