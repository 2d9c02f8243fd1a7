package snapshot

// Buffer is the client's bounded ring of recently received snapshots,
// indexed by sequence, tolerant of out-of-order arrival, duplicates, and
// loss. Capacity should be at least 2 * SnapshotRate (two seconds' worth).
type Buffer struct {
	capacity int
	order    []uint16 // ascending by sequence
	entries  map[uint16]Snapshot
}

// NewBuffer returns an empty Buffer bounded to capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		entries:  make(map[uint16]Snapshot, capacity),
	}
}

// Insert admits s into the buffer, applying the three drop rules from
// spec.md §4.6: duplicates are dropped, anything not newer than the front
// when the ring is already full is dropped (stale/out-of-order), and
// everything else is inserted in ascending-sequence order with the oldest
// entry evicted if the ring goes over capacity. Returns whether s was kept.
func (b *Buffer) Insert(s Snapshot) bool {
	if _, exists := b.entries[s.Sequence]; exists {
		return false
	}
	if len(b.order) >= b.capacity {
		front := b.order[0]
		if !SequenceMoreRecent(s.Sequence, front) {
			return false
		}
	}

	insertAt := len(b.order)
	for i, seq := range b.order {
		if SequenceMoreRecent(seq, s.Sequence) {
			insertAt = i
			break
		}
	}
	b.order = append(b.order, 0)
	copy(b.order[insertAt+1:], b.order[insertAt:])
	b.order[insertAt] = s.Sequence
	b.entries[s.Sequence] = s

	for len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.entries, oldest)
	}
	return true
}

// Get looks up the snapshot stored for sequence.
func (b *Buffer) Get(sequence uint16) (Snapshot, bool) {
	s, ok := b.entries[sequence]
	return s, ok
}

// Front returns the oldest retained snapshot.
func (b *Buffer) Front() (Snapshot, bool) {
	if len(b.order) == 0 {
		return Snapshot{}, false
	}
	return b.entries[b.order[0]], true
}

// Latest returns the most recently inserted (highest-sequence) snapshot.
func (b *Buffer) Latest() (Snapshot, bool) {
	if len(b.order) == 0 {
		return Snapshot{}, false
	}
	return b.entries[b.order[len(b.order)-1]], true
}

// Len reports how many snapshots are currently retained.
func (b *Buffer) Len() int {
	return len(b.order)
}

// Ordered returns the retained snapshots in ascending sequence order. The
// returned slice is a fresh copy; mutating it does not affect the buffer.
func (b *Buffer) Ordered() []Snapshot {
	out := make([]Snapshot, len(b.order))
	for i, seq := range b.order {
		out[i] = b.entries[seq]
	}
	return out
}

// InterpolationPair finds the adjacent pair of buffered snapshots that
// bracket renderTimeMS, i.e. from.TimestampMS <= renderTimeMS <=
// to.TimestampMS. If renderTimeMS is at or beyond the latest snapshot's
// timestamp, from and to both equal the latest snapshot (hold-at-latest;
// the caller must never extrapolate past it).
func (b *Buffer) InterpolationPair(renderTimeMS uint32) (from, to Snapshot, ok bool) {
	ordered := b.Ordered()
	if len(ordered) == 0 {
		return Snapshot{}, Snapshot{}, false
	}
	latest := ordered[len(ordered)-1]
	if renderTimeMS >= latest.TimestampMS {
		return latest, latest, true
	}
	for i := 0; i < len(ordered)-1; i++ {
		if ordered[i].TimestampMS <= renderTimeMS && renderTimeMS <= ordered[i+1].TimestampMS {
			return ordered[i], ordered[i+1], true
		}
	}
	// renderTimeMS predates everything buffered; hold at the oldest.
	return ordered[0], ordered[0], true
}
