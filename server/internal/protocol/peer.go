package protocol

import (
	"time"

	"skirmish/server/internal/snapshot"
)

// Peer holds everything the server tracks per connected client: sequencing
// state for the snapshot stream, the acked baseline, input bookkeeping, and
// liveness timestamps. Mutated only by the simulation goroutine, per
// spec.md's single-writer concurrency model.
type Peer struct {
	ID             string
	PlayerEntityID uint32

	nextSequence uint16
	lastAck      uint16
	ackSeen      bool // distinguishes "never acked" from ack == 0

	lastInputTick uint64
	history       *snapshot.History
	keyframe      keyframePolicy
	inputBudget   *tokenBucket

	lastInputAt    time.Time
	lastSnapshotAt time.Time
	connectedAt    time.Time

	lastForceReason string

	// sentAt/sentOrder let NoteAckRTT estimate round-trip time: the
	// wall-clock moment each still-retained sequence was sent, bounded to
	// the same ring capacity as history so it never outlives the baseline
	// it measures.
	sentAt     map[uint16]time.Time
	sentOrder  []uint16
	historyCap int
	lastRTT    time.Duration

	// minKeyframeInterval is a peer-requested ceiling, in ticks, on how
	// long this peer will go between forced keyframes regardless of loss.
	// Zero disables the cadence (the default: keyframes are only forced by
	// request_full_snapshot or an evicted baseline).
	minKeyframeInterval uint64
	lastKeyframeTick    uint64
}

// NewPeer returns a Peer ready to receive input and build snapshots,
// seeded with a full keyframe for its first build.
func NewPeer(id string, playerEntityID uint32, historySize int, inputSendRate int, now time.Time) *Peer {
	p := &Peer{
		ID:             id,
		PlayerEntityID: playerEntityID,
		history:        snapshot.NewHistory(historySize),
		inputBudget:    newTokenBucket(inputSendRate),
		lastInputAt:    now,
		lastSnapshotAt: now,
		connectedAt:    now,
		sentAt:         make(map[uint16]time.Time, historySize),
		historyCap:     historySize,
	}
	p.keyframe.request("initial connection")
	return p
}

// AllocateSequence returns the next sequence number for this peer's
// snapshot stream.
func (p *Peer) AllocateSequence() uint16 {
	p.nextSequence++
	return p.nextSequence
}

// AcknowledgeInput applies the client-reported ack from an input RPC,
// ignoring stale acks that don't advance last_ack (spec.md §4.5). It
// returns the ack previously on record and whether this call advanced it,
// so the caller can log the distinction between progress and regression.
func (p *Peer) AcknowledgeInput(ack uint16) (previous uint16, advanced bool) {
	previous = p.lastAck
	if !p.ackSeen || snapshot.SequenceMoreRecent(ack, p.lastAck) {
		p.lastAck = ack
		p.ackSeen = true
		return previous, true
	}
	return previous, false
}

// NoteInputTick records tick as the latest input tick seen from this peer,
// tracking the maximum rather than the most recent arrival.
func (p *Peer) NoteInputTick(tick uint64, now time.Time) {
	if tick > p.lastInputTick {
		p.lastInputTick = tick
	}
	p.lastInputAt = now
}

// LastInputTick reports the latest input tick acknowledged into the
// simulation for this peer.
func (p *Peer) LastInputTick() uint64 {
	return p.lastInputTick
}

// AllowInput consumes one token from the peer's input rate limiter.
func (p *Peer) AllowInput(now time.Time) bool {
	return p.inputBudget.Allow(now)
}

// RequestKeyframe marks the peer's next snapshot to be built without a
// baseline, e.g. in response to a reliable request_full_snapshot RPC.
func (p *Peer) RequestKeyframe(reason string) {
	p.keyframe.request(reason)
}

// SetKeyframeInterval records a peer-requested minimum forced-keyframe
// cadence, in ticks, clamped to zero (disabled) for negative requests.
// Generalizes the teacher's per-connection keyframeCadence RPC from a
// hub-wide setting to a per-peer one.
func (p *Peer) SetKeyframeInterval(ticks int) int {
	if ticks < 0 {
		ticks = 0
	}
	p.minKeyframeInterval = uint64(ticks)
	return ticks
}

// DueForCadenceKeyframe reports whether this peer's requested keyframe
// cadence has elapsed since its last keyframe at currentTick.
func (p *Peer) DueForCadenceKeyframe(currentTick uint64) bool {
	if p.minKeyframeInterval == 0 {
		return false
	}
	return currentTick-p.lastKeyframeTick >= p.minKeyframeInterval
}

// NoteKeyframeBuilt stamps the tick at which a keyframe (forced or
// otherwise) was actually built, restarting the cadence clock.
func (p *Peer) NoteKeyframeBuilt(tick uint64) {
	p.lastKeyframeTick = tick
}

// BaselineReason explains why a build has no baseline to delta-encode
// against, when Baseline returns nil.
type BaselineReason string

const (
	BaselineReasonNone       BaselineReason = ""
	BaselineReasonForced     BaselineReason = "forced"
	BaselineReasonNeverAcked BaselineReason = "never_acked"
	BaselineReasonEvicted    BaselineReason = "evicted"
)

// Baseline resolves the snapshot to delta-encode against for this peer's
// next build: nil if a keyframe was requested, the peer has never acked
// anything, or the acked sequence has aged out of history.
func (p *Peer) Baseline() (*snapshot.Snapshot, BaselineReason) {
	if reason, forced := p.keyframe.consume(); forced {
		p.lastForceReason = reason
		return nil, BaselineReasonForced
	}
	if !p.ackSeen {
		return nil, BaselineReasonNeverAcked
	}
	s, ok := p.history.Get(p.lastAck)
	if !ok {
		return nil, BaselineReasonEvicted
	}
	return &s, BaselineReasonNone
}

// RecordSnapshot inserts s into this peer's history ring and stamps the
// liveness clock.
func (p *Peer) RecordSnapshot(s snapshot.Snapshot, now time.Time) {
	p.history.Insert(s)
	p.lastSnapshotAt = now

	if _, exists := p.sentAt[s.Sequence]; !exists {
		p.sentOrder = append(p.sentOrder, s.Sequence)
	}
	p.sentAt[s.Sequence] = now
	for len(p.sentOrder) > p.historyCap {
		oldest := p.sentOrder[0]
		p.sentOrder = p.sentOrder[1:]
		delete(p.sentAt, oldest)
	}
}

// NoteAckRTT estimates round-trip time as the wall-clock gap between when
// sequence was sent and now, the acknowledgement arriving for it. A miss
// (the sequence already aged out of the ring, or was never sent) leaves
// the previous estimate untouched.
func (p *Peer) NoteAckRTT(sequence uint16, now time.Time) {
	sentAt, ok := p.sentAt[sequence]
	if !ok {
		return
	}
	p.lastRTT = now.Sub(sentAt)
}

// RTT reports the most recent round-trip-time estimate derived from an
// acknowledged sequence, or zero if none has been observed yet.
func (p *Peer) RTT() time.Duration {
	return p.lastRTT
}

// HistoryLen reports how many snapshots this peer's baseline ring
// currently retains, for diagnostics.
func (p *Peer) HistoryLen() int {
	return p.history.Len()
}

// LastAck reports the most recently acknowledged sequence and whether any
// ack has been seen yet.
func (p *Peer) LastAck() (uint16, bool) {
	return p.lastAck, p.ackSeen
}

// ConnectedAt reports when this peer connected.
func (p *Peer) ConnectedAt() time.Time {
	return p.connectedAt
}

// IdleSince reports how long it has been since this peer's last input RPC.
func (p *Peer) IdleSince(now time.Time) time.Duration {
	return now.Sub(p.lastInputAt)
}

// SnapshotStarvedSince reports how long it has been since a snapshot was
// last built for this peer.
func (p *Peer) SnapshotStarvedSince(now time.Time) time.Duration {
	return now.Sub(p.lastSnapshotAt)
}

// ForceReason returns the reason string attached to the most recently
// consumed forced keyframe, for logging.
func (p *Peer) ForceReason() string {
	return p.lastForceReason
}
