package snapshot

import "testing"

func TestBufferDropsDuplicate(t *testing.T) {
	b := NewBuffer(10)
	if !b.Insert(Snapshot{Sequence: 5, TimestampMS: 100}) {
		t.Fatalf("first insert should succeed")
	}
	if b.Insert(Snapshot{Sequence: 5, TimestampMS: 100}) {
		t.Fatalf("duplicate insert should be dropped")
	}
	if b.Len() != 1 {
		t.Fatalf("expected len 1, got %d", b.Len())
	}
}

func TestBufferDropsStaleWhenFull(t *testing.T) {
	b := NewBuffer(3)
	b.Insert(Snapshot{Sequence: 10, TimestampMS: 100})
	b.Insert(Snapshot{Sequence: 11, TimestampMS: 110})
	b.Insert(Snapshot{Sequence: 12, TimestampMS: 120})
	// Buffer is now full; sequence 9 is older than the front (10) and must drop.
	if b.Insert(Snapshot{Sequence: 9, TimestampMS: 90}) {
		t.Fatalf("stale insert should be dropped once full")
	}
	if b.Len() != 3 {
		t.Fatalf("expected len unchanged at 3, got %d", b.Len())
	}
}

func TestBufferEvictsOldestOnOverflow(t *testing.T) {
	b := NewBuffer(2)
	b.Insert(Snapshot{Sequence: 1, TimestampMS: 100})
	b.Insert(Snapshot{Sequence: 2, TimestampMS: 110})
	b.Insert(Snapshot{Sequence: 3, TimestampMS: 120})
	if b.Len() != 2 {
		t.Fatalf("expected len 2, got %d", b.Len())
	}
	if _, ok := b.Get(1); ok {
		t.Fatalf("oldest sequence should have been evicted")
	}
	if _, ok := b.Get(3); !ok {
		t.Fatalf("newest sequence should be retained")
	}
}

func TestBufferInsertMaintainsAscendingOrder(t *testing.T) {
	b := NewBuffer(10)
	b.Insert(Snapshot{Sequence: 5})
	b.Insert(Snapshot{Sequence: 3})
	b.Insert(Snapshot{Sequence: 4})
	ordered := b.Ordered()
	if len(ordered) != 3 || ordered[0].Sequence != 3 || ordered[1].Sequence != 4 || ordered[2].Sequence != 5 {
		t.Fatalf("expected ascending order 3,4,5, got %v", seqList(ordered))
	}
}

func TestBufferInterpolationPairHoldsAtLatest(t *testing.T) {
	b := NewBuffer(10)
	b.Insert(Snapshot{Sequence: 1, TimestampMS: 0})
	b.Insert(Snapshot{Sequence: 2, TimestampMS: 100})

	from, to, ok := b.InterpolationPair(50)
	if !ok || from.Sequence != 1 || to.Sequence != 2 {
		t.Fatalf("expected pair (1,2), got from=%d to=%d ok=%v", from.Sequence, to.Sequence, ok)
	}

	from, to, ok = b.InterpolationPair(100)
	if !ok || from.Sequence != to.Sequence || from.Sequence != 2 {
		t.Fatalf("at latest timestamp, expected hold-at-latest, got from=%d to=%d", from.Sequence, to.Sequence)
	}

	from, to, ok = b.InterpolationPair(500)
	if !ok || from.Sequence != to.Sequence || from.Sequence != 2 {
		t.Fatalf("beyond latest timestamp, expected hold-at-latest, got from=%d to=%d", from.Sequence, to.Sequence)
	}
}

func seqList(snaps []Snapshot) []uint16 {
	out := make([]uint16, len(snaps))
	for i, s := range snaps {
		out[i] = s.Sequence
	}
	return out
}
