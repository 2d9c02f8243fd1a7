package protocol

import (
	"testing"
	"time"

	"skirmish/server/internal/snapshot"
)

func TestNewPeerForcesInitialKeyframe(t *testing.T) {
	now := time.Now()
	p := NewPeer("peer-a", 1, 60, 20, now)
	baseline, reason := p.Baseline()
	if baseline != nil || reason != BaselineReasonForced {
		t.Fatalf("expected forced nil baseline on first build, got baseline=%v reason=%v", baseline, reason)
	}
}

func TestAcknowledgeInputIgnoresStaleAcks(t *testing.T) {
	p := NewPeer("peer-a", 1, 60, 20, time.Now())
	p.AcknowledgeInput(10)
	p.AcknowledgeInput(5) // stale, must not move last_ack backward
	if p.lastAck != 10 {
		t.Fatalf("expected last_ack to remain 10, got %d", p.lastAck)
	}
	p.AcknowledgeInput(20)
	if p.lastAck != 20 {
		t.Fatalf("expected last_ack to advance to 20, got %d", p.lastAck)
	}
}

func TestNoteInputTickTracksMaximum(t *testing.T) {
	p := NewPeer("peer-a", 1, 60, 20, time.Now())
	now := time.Now()
	p.NoteInputTick(5, now)
	p.NoteInputTick(3, now) // out of order, must not regress
	if p.LastInputTick() != 5 {
		t.Fatalf("expected last input tick to stay at max(5,3)=5, got %d", p.LastInputTick())
	}
	p.NoteInputTick(9, now)
	if p.LastInputTick() != 9 {
		t.Fatalf("expected last input tick to advance to 9, got %d", p.LastInputTick())
	}
}

func TestBaselineFallsBackToNeverAckedBeforeFirstAck(t *testing.T) {
	p := NewPeer("peer-a", 1, 60, 20, time.Now())
	p.Baseline() // consume the initial forced keyframe
	baseline, reason := p.Baseline()
	if baseline != nil || reason != BaselineReasonNeverAcked {
		t.Fatalf("expected never-acked reason, got baseline=%v reason=%v", baseline, reason)
	}
}

func TestBaselineEvictedWhenAckedSequenceAgedOut(t *testing.T) {
	p := NewPeer("peer-a", 1, 2, 20, time.Now())
	p.Baseline() // consume initial forced keyframe

	for seq := uint16(1); seq <= 5; seq++ {
		p.history.Insert(snapshot.Snapshot{Sequence: seq})
	}
	p.AcknowledgeInput(1) // sequence 1 has since been evicted (capacity 2)

	baseline, reason := p.Baseline()
	if baseline != nil || reason != BaselineReasonEvicted {
		t.Fatalf("expected evicted reason, got baseline=%v reason=%v", baseline, reason)
	}
}

func TestBaselineReturnsHistoryEntryWhenPresent(t *testing.T) {
	p := NewPeer("peer-a", 1, 60, 20, time.Now())
	p.Baseline()
	want := snapshot.Snapshot{Sequence: 7}
	p.history.Insert(want)
	p.AcknowledgeInput(7)

	baseline, reason := p.Baseline()
	if baseline == nil || baseline.Sequence != 7 || reason != BaselineReasonNone {
		t.Fatalf("expected baseline sequence 7, got baseline=%v reason=%v", baseline, reason)
	}
}

func TestAllocateSequenceIsMonotonic(t *testing.T) {
	p := NewPeer("peer-a", 1, 60, 20, time.Now())
	a := p.AllocateSequence()
	b := p.AllocateSequence()
	if b != a+1 {
		t.Fatalf("expected monotonic sequence, got %d then %d", a, b)
	}
}

func TestNoteAckRTTMeasuresGapFromRecordSnapshot(t *testing.T) {
	p := NewPeer("peer-a", 1, 60, 20, time.Now())
	sentAt := time.Now()
	p.RecordSnapshot(snapshot.Snapshot{Sequence: 3}, sentAt)

	ackedAt := sentAt.Add(50 * time.Millisecond)
	p.NoteAckRTT(3, ackedAt)

	if p.RTT() != 50*time.Millisecond {
		t.Fatalf("expected RTT of 50ms, got %v", p.RTT())
	}
}

func TestNoteAckRTTIgnoresSequenceAgedOutOfRing(t *testing.T) {
	p := NewPeer("peer-a", 1, 2, 20, time.Now())
	now := time.Now()
	for seq := uint16(1); seq <= 4; seq++ {
		p.RecordSnapshot(snapshot.Snapshot{Sequence: seq}, now)
	}

	p.NoteAckRTT(1, now.Add(time.Second)) // sequence 1 evicted by capacity 2
	if p.RTT() != 0 {
		t.Fatalf("expected no RTT update for an evicted sequence, got %v", p.RTT())
	}
}
