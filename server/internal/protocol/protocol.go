// Package protocol implements the per-peer server side of the snapshot
// stream: sequencing, baseline history, ack handling, keyframe-on-demand,
// and the budgeted snapshot build pipeline described in spec.md §4.5.
package protocol

import (
	"context"
	"sort"
	"time"

	"skirmish/server/internal/config"
	"skirmish/server/internal/geom"
	"skirmish/server/internal/interest"
	"skirmish/server/internal/sim"
	"skirmish/server/internal/snapshot"
	"skirmish/server/logging"
	lognetwork "skirmish/server/logging/network"
	logsession "skirmish/server/logging/session"
	logwire "skirmish/server/logging/wire"
)

// Sender delivers an encoded snapshot payload to peerID over the
// transport. The transport is an I/O boundary the simulation task never
// blocks on: Send must not block for long, and typically hands off to a
// bounded per-connection queue.
type Sender interface {
	Send(peerID string, payload []byte)
}

// ServerProtocol drives per-peer sequencing, baseline bookkeeping, and
// snapshot construction. It holds no transport state of its own beyond the
// Sender it was built with.
type ServerProtocol struct {
	world    *sim.World
	driver   *sim.Driver
	interest *interest.Manager
	codec    *snapshot.Codec
	cfg      config.Config
	pub      logging.Publisher
	sender   Sender

	peers map[string]*Peer
}

// New returns a ServerProtocol wiring together the world, tick driver,
// interest manager, and wire codec that back it.
func New(world *sim.World, driver *sim.Driver, interestMgr *interest.Manager, codec *snapshot.Codec, cfg config.Config, pub logging.Publisher, sender Sender) *ServerProtocol {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &ServerProtocol{
		world:    world,
		driver:   driver,
		interest: interestMgr,
		codec:    codec,
		cfg:      cfg,
		pub:      pub,
		sender:   sender,
		peers:    make(map[string]*Peer),
	}
}

// Connect registers peerID as a new session owning playerEntityID and
// returns its Peer state.
func (sp *ServerProtocol) Connect(ctx context.Context, peerID string, playerEntityID uint32, now time.Time) *Peer {
	p := NewPeer(peerID, playerEntityID, sp.cfg.HistorySize, sp.cfg.InputSendRate, now)
	sp.peers[peerID] = p
	logsession.PeerConnected(ctx, sp.pub, sp.driver.CurrentTick(), peerID)
	return p
}

// Disconnect removes peerID's session state, its player entity, and its
// interest-hysteresis state, per spec.md §4.5's disconnect cleanup.
func (sp *ServerProtocol) Disconnect(ctx context.Context, peerID string) {
	p, ok := sp.peers[peerID]
	if !ok {
		return
	}
	sp.world.Despawn(p.PlayerEntityID)
	sp.interest.Forget(peerID)
	delete(sp.peers, peerID)
}

// CheckTimeouts disconnects every peer that has sent no input for at
// least ConnectionTimeout, returning their ids for the caller to clean up
// transport-side (close the connection, etc). Peers that are merely
// snapshot-starved (no successful build in SnapshotStarvation, the signal
// a well-behaved client would use to send request_full_snapshot) are not
// disconnected; the server instead forces their next build to be a
// keyframe itself, since it is already tracking the identical liveness
// timestamp and can act on it without waiting for the round trip.
func (sp *ServerProtocol) CheckTimeouts(ctx context.Context, now time.Time) []string {
	var timedOut []string
	for peerID, p := range sp.peers {
		if p.IdleSince(now) >= sp.cfg.ConnectionTimeout {
			timedOut = append(timedOut, peerID)
			continue
		}
		if sp.cfg.SnapshotStarvation > 0 && p.SnapshotStarvedSince(now) >= sp.cfg.SnapshotStarvation {
			p.RequestKeyframe("snapshot_starvation")
		}
	}
	for _, peerID := range timedOut {
		logsession.PeerTimedOut(ctx, sp.pub, sp.driver.CurrentTick(), peerID)
		sp.Disconnect(ctx, peerID)
	}
	return timedOut
}

// Peer returns peerID's session state, if connected.
func (sp *ServerProtocol) Peer(peerID string) (*Peer, bool) {
	p, ok := sp.peers[peerID]
	return p, ok
}

// DiagnosticsPeer is one peer's heartbeat data for the diagnostics
// endpoint, grounded on the teacher's diagnosticsPlayer.
type DiagnosticsPeer struct {
	ID             string `json:"id"`
	LastAck        uint16 `json:"lastAck"`
	RTTMillis      int64  `json:"rttMillis"`
	HistorySize    int    `json:"historySize"`
	ConnectedSince int64  `json:"connectedSinceUnixMillis"`
}

// DiagnosticsSnapshot exposes per-peer heartbeat data for the /diagnostics
// HTTP endpoint. Safe to call only from the simulation goroutine, like
// every other ServerProtocol method.
func (sp *ServerProtocol) DiagnosticsSnapshot() []DiagnosticsPeer {
	out := make([]DiagnosticsPeer, 0, len(sp.peers))
	for id, p := range sp.peers {
		lastAck, _ := p.LastAck()
		out = append(out, DiagnosticsPeer{
			ID:             id,
			LastAck:        lastAck,
			RTTMillis:      p.RTT().Milliseconds(),
			HistorySize:    p.HistoryLen(),
			ConnectedSince: p.ConnectedAt().UnixMilli(),
		})
	}
	return out
}

// OnInput handles an input RPC: it rate-limits, rejects oversized
// direction vectors by clamping (never propagating a malicious magnitude
// into velocity), advances the peer's ack and last-input-tick bookkeeping,
// and enqueues the intent for the next logic step.
func (sp *ServerProtocol) OnInput(ctx context.Context, peerID string, direction geom.Vec2, tick uint64, ack uint16, now time.Time) bool {
	p, ok := sp.peers[peerID]
	if !ok {
		return false
	}
	if !p.AllowInput(now) {
		return false
	}
	previous, advanced := p.AcknowledgeInput(ack)
	p.NoteAckRTT(ack, now)
	actor := logging.EntityRef{ID: peerID, Kind: logging.EntityKindPlayer}
	ackPayload := lognetwork.AckPayload{Previous: uint64(previous), Ack: uint64(ack)}
	if advanced {
		lognetwork.AckAdvanced(ctx, sp.pub, sp.driver.CurrentTick(), actor, ackPayload, nil)
	} else {
		lognetwork.AckRegression(ctx, sp.pub, sp.driver.CurrentTick(), actor, ackPayload, nil)
	}
	p.NoteInputTick(tick, now)
	sp.driver.EnqueueInput(p.PlayerEntityID, sim.Input{Direction: direction.ClampUnit(), Tick: tick})
	return true
}

// AcknowledgeSnapshot applies an ack carried by the optional dedicated
// acknowledge_snapshot RPC rather than riding along on an input RPC
// (spec.md §6). It reports whether peerID is a connected peer.
func (sp *ServerProtocol) AcknowledgeSnapshot(ctx context.Context, peerID string, sequence uint16, now time.Time) bool {
	p, ok := sp.peers[peerID]
	if !ok {
		return false
	}
	previous, advanced := p.AcknowledgeInput(sequence)
	p.NoteAckRTT(sequence, now)
	actor := logging.EntityRef{ID: peerID, Kind: logging.EntityKindPlayer}
	ackPayload := lognetwork.AckPayload{Previous: uint64(previous), Ack: uint64(sequence)}
	if advanced {
		lognetwork.AckAdvanced(ctx, sp.pub, sp.driver.CurrentTick(), actor, ackPayload, nil)
	} else {
		lognetwork.AckRegression(ctx, sp.pub, sp.driver.CurrentTick(), actor, ackPayload, nil)
	}
	return true
}

// RequestFullSnapshot forces peerID's next snapshot build to skip delta
// encoding, per the reliable request_full_snapshot RPC.
func (sp *ServerProtocol) RequestFullSnapshot(peerID string) {
	if p, ok := sp.peers[peerID]; ok {
		p.RequestKeyframe("request_full_snapshot")
	}
}

// SetKeyframeInterval applies a peer-requested minimum forced-keyframe
// cadence (additive to the reliable request_full_snapshot RPC): the peer
// is guaranteed a keyframe at least this often regardless of baseline
// loss, defending against sustained packet loss without waiting out the
// full SnapshotStarvation window.
func (sp *ServerProtocol) SetKeyframeInterval(peerID string, ticks int) (applied int, ok bool) {
	p, found := sp.peers[peerID]
	if !found {
		return 0, false
	}
	return p.SetKeyframeInterval(ticks), true
}

// BuildAndSend runs the per-peer snapshot build pipeline for every
// connected peer: interest selection, delta encode against the acked
// baseline (or a forced/evicted full encode), MTU trimming, history
// insertion, and transport send. It is the callback wired to
// sim.Driver.OnSnapshotTick.
func (sp *ServerProtocol) BuildAndSend(ctx context.Context, tick uint64, timestampMS uint32) {
	for peerID, p := range sp.peers {
		sp.buildAndSendOne(ctx, peerID, p, tick, timestampMS)
	}
}

func (sp *ServerProtocol) buildAndSendOne(ctx context.Context, peerID string, p *Peer, tick uint64, timestampMS uint32) {
	playerEntity, ok := sp.world.Get(p.PlayerEntityID)
	if !ok {
		return
	}

	if p.DueForCadenceKeyframe(tick) {
		p.RequestKeyframe("keyframe_cadence")
	}

	baseline, reason := p.Baseline()
	if baseline == nil {
		p.NoteKeyframeBuilt(tick)
	}
	if reason == BaselineReasonForced {
		logsession.KeyframeForced(ctx, sp.pub, tick, peerID, p.ForceReason())
	} else if reason == BaselineReasonEvicted {
		logwire.BaselineEvicted(ctx, sp.pub, tick, logwire.BaselinePayload{
			Sequence:    p.nextSequence + 1,
			HistorySize: sp.cfg.HistorySize,
		})
	}

	visible := sp.interest.SelectVisible(ctx, tick, peerID, p.PlayerEntityID, playerEntity.Position, sp.world)
	states := make([]snapshot.EntityEntry, 0, len(visible))
	for _, id := range visible {
		e, ok := sp.world.Get(id)
		if !ok {
			continue
		}
		states = append(states, snapshot.EntityEntry{ID: id, State: e.State()})
	}
	// SelectVisible places the peer's own player entity first for §4.3's
	// scoring purposes, not for wire order: the baseline stored from this
	// snapshot must be sorted ascending by id to match Snapshot.Get's binary
	// search, or a later delta build's baseline.Get lookups silently miss.
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })

	sequence := p.AllocateSequence()
	baselineSeq := uint16(0)
	if baseline != nil {
		baselineSeq = baseline.Sequence
	}

	s := snapshot.Snapshot{
		Sequence:               sequence,
		TimestampMS:            timestampMS,
		BaselineSequence:       baselineSeq,
		PlayerEntityID:         p.PlayerEntityID,
		LastProcessedInputTick: uint32(p.LastInputTick()),
		States:                 states,
	}

	payload := sp.encodeWithinBudget(ctx, tick, &s, baseline, states, playerEntity.Position)

	p.RecordSnapshot(s, time.Now())
	if sp.sender != nil {
		sp.sender.Send(peerID, payload)
	}
}

// encodeWithinBudget encodes s against baseline, and if the payload
// exceeds MTUBudgetBytes, re-applies §4.3's distance scoring to drop the
// single farthest non-player entity and retries, until the payload fits or
// only the player remains.
func (sp *ServerProtocol) encodeWithinBudget(ctx context.Context, tick uint64, s *snapshot.Snapshot, baseline *snapshot.Snapshot, states []snapshot.EntityEntry, center geom.Vec2) []byte {
	for {
		s.States = states
		payload, err := sp.codec.Encode(*s, baseline)
		if err == nil && (sp.cfg.MTUBudgetBytes <= 0 || len(payload) <= sp.cfg.MTUBudgetBytes) {
			return payload
		}
		if len(states) <= 1 {
			if err != nil {
				logwire.VarintOverflow(ctx, sp.pub, tick)
				return nil
			}
			return payload
		}
		states = dropFarthest(states, center, s.PlayerEntityID)
	}
}

// dropFarthest removes the entity (other than playerID, the player) with
// the greatest squared distance from center. states is sorted by id, so
// the player can sit at any index.
func dropFarthest(states []snapshot.EntityEntry, center geom.Vec2, playerID uint32) []snapshot.EntityEntry {
	worst := -1
	worstDist := -1.0
	for i := 0; i < len(states); i++ {
		if states[i].ID == playerID {
			continue
		}
		d := center.DistanceSquared(states[i].State.Position)
		if d > worstDist {
			worstDist = d
			worst = i
		}
	}
	if worst < 0 {
		return states
	}
	return append(states[:worst:worst], states[worst+1:]...)
}
