package snapshot

import "sort"

// EntityEntry pairs an entity id with its wire state. Snapshot.States is
// always kept sorted ascending by ID; that ordering is part of the wire
// contract, not an implementation detail — the codec's varint id-delta
// encoding depends on it.
type EntityEntry struct {
	ID    uint32
	State EntityState
}

// Snapshot is the server's authoritative view of visible entities at a tick
// boundary, packaged for transmission to one peer.
type Snapshot struct {
	Sequence               uint16
	TimestampMS            uint32
	BaselineSequence       uint16
	PlayerEntityID         uint32
	LastProcessedInputTick uint32
	States                 []EntityEntry
}

// IsKeyframe reports whether this snapshot was encoded without a baseline.
func (s Snapshot) IsKeyframe() bool {
	return s.BaselineSequence == 0
}

// SortStates sorts States ascending by ID in place. Callers that build a
// Snapshot from an unordered source (e.g. a map keyed by entity id) must
// call this before handing the snapshot to the codec.
func (s *Snapshot) SortStates() {
	sort.Slice(s.States, func(i, j int) bool {
		return s.States[i].ID < s.States[j].ID
	})
}

// Get returns the state for id via binary search, assuming States is sorted.
func (s Snapshot) Get(id uint32) (EntityState, bool) {
	i := sort.Search(len(s.States), func(i int) bool { return s.States[i].ID >= id })
	if i < len(s.States) && s.States[i].ID == id {
		return s.States[i].State, true
	}
	return EntityState{}, false
}

// Contains reports whether id is present in this snapshot's state set.
func (s Snapshot) Contains(id uint32) bool {
	_, ok := s.Get(id)
	return ok
}

// PlayerState returns the state of the snapshot's own player entity, if
// present (it may have fallen out of the interest set, though the protocol
// guarantees it never does for its owner).
func (s Snapshot) PlayerState() (EntityState, bool) {
	if s.PlayerEntityID == 0 {
		return EntityState{}, false
	}
	return s.Get(s.PlayerEntityID)
}

// SequenceMoreRecent implements the circular sequence comparator required
// for u16 wraparound: a is considered more recent than b when the signed
// 16-bit difference a-b is positive, i.e. within half the sequence space.
func SequenceMoreRecent(a, b uint16) bool {
	return int16(a-b) > 0
}
