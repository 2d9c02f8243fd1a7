// Package interest implements spatial interest management: a chunked
// spatial index over the world and the per-peer visible-set selection that
// bounds bandwidth to MaxEntitiesPerSnapshot.
package interest

import (
	"math"
	"sort"

	"skirmish/server/internal/geom"
)

// Coord is an integer chunk coordinate.
type Coord struct {
	X, Y int32
}

// WorldToChunk floor-divides pos by chunkSize to get the chunk it falls in.
func WorldToChunk(pos geom.Vec2, chunkSize float64) Coord {
	return Coord{
		X: int32(math.Floor(pos.X / chunkSize)),
		Y: int32(math.Floor(pos.Y / chunkSize)),
	}
}

// Index maps chunk coordinates to the ordered set of entity ids currently
// occupying that chunk. Entities are tracked by their last known chunk so
// a move can be applied as a single remove+insert; each is linear in the
// occupancy of the chunk it touches, since chunks hold sorted id slices.
type Index struct {
	chunkSize float64
	chunks    map[Coord][]uint32
	locations map[uint32]Coord
}

// NewIndex returns an empty Index with the given chunk granularity.
func NewIndex(chunkSize float64) *Index {
	return &Index{
		chunkSize: chunkSize,
		chunks:    make(map[Coord][]uint32),
		locations: make(map[uint32]Coord),
	}
}

// Update moves entity id to the chunk containing pos, removing it from its
// previous chunk if it had one. A no-op if the entity's chunk hasn't
// changed.
func (idx *Index) Update(id uint32, pos geom.Vec2) {
	next := WorldToChunk(pos, idx.chunkSize)
	prev, had := idx.locations[id]
	if had && prev == next {
		return
	}
	if had {
		idx.remove(prev, id)
	}
	idx.chunks[next] = insertSorted(idx.chunks[next], id)
	idx.locations[id] = next
}

// Remove drops id from the index entirely, e.g. on despawn.
func (idx *Index) Remove(id uint32) {
	prev, had := idx.locations[id]
	if !had {
		return
	}
	idx.remove(prev, id)
	delete(idx.locations, id)
}

func (idx *Index) remove(at Coord, id uint32) {
	entities := idx.chunks[at]
	for i, existing := range entities {
		if existing == id {
			idx.chunks[at] = append(entities[:i], entities[i+1:]...)
			break
		}
	}
	if len(idx.chunks[at]) == 0 {
		delete(idx.chunks, at)
	}
}

// Square returns the union of entity ids in every chunk within the
// (2*radius+1) x (2*radius+1) square centered on center, deduplicated.
func (idx *Index) Square(center Coord, radius int) []uint32 {
	var out []uint32
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			c := Coord{X: center.X + int32(dx), Y: center.Y + int32(dy)}
			out = append(out, idx.chunks[c]...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func insertSorted(ids []uint32, id uint32) []uint32 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
