package protocol

import (
	"context"
	"time"

	"skirmish/server/internal/geom"
	"skirmish/server/internal/sim"
	"skirmish/server/logging"
	logtransport "skirmish/server/logging/transport"
)

// PlayerFactory spawns a new player entity for a connecting peer and
// inserts it into the world the simulation owns.
type PlayerFactory func(peerID string) *sim.Entity

// CommandKind discriminates the RPC surface named in spec.md §4.5/§4.7.
type CommandKind int

const (
	CommandConnect CommandKind = iota
	CommandDisconnect
	CommandInput
	CommandRequestFullSnapshot
	CommandAcknowledgeSnapshot
	CommandSetKeyframeInterval
	commandVerifyHit
	commandDiagnostics
)

// Command is one transport RPC queued for the simulation task to apply.
// Per spec.md §5, the transport enqueues (peer, RPC) pairs and the
// simulation task — the only goroutine allowed to mutate World or Peer
// state — dequeues and applies them between ticks.
type Command struct {
	Kind      CommandKind
	PeerID    string
	Direction geom.Vec2
	Tick      uint64
	Ack       uint16
	Sequence  uint16
	Now       time.Time

	// Used only by CommandSetKeyframeInterval.
	KeyframeIntervalTicks int

	// Used only by commandVerifyHit, which is a query rather than a
	// fire-and-forget mutation: the caller blocks on Result for the
	// LagComp lookup, which must also run on the simulation goroutine
	// since it reads the same per-tick history LagComp.Record writes.
	Origin        geom.Vec2
	DirectionUnit geom.Vec2
	ClientTimeMS  float64
	Result        chan VerifyHitResult

	// Used only by commandDiagnostics, another query: the /diagnostics
	// HTTP handler runs on its own goroutine and must not read ServerProtocol
	// state directly, so it round-trips through the simulation goroutine the
	// same way commandVerifyHit does.
	DiagnosticsResult chan []DiagnosticsPeer
}

// VerifyHitResult is the outcome of a commandVerifyHit lookup.
type VerifyHitResult struct {
	EntityID uint32
	Found    bool
}

// Inbox is the bounded, concurrency-safe front door to a ServerProtocol.
// Any goroutine may call Enqueue; only the goroutine that owns the
// simulation loop may call Drain.
type Inbox struct {
	sp    *ServerProtocol
	spawn PlayerFactory
	ch    chan Command
	pub   logging.Publisher
}

// NewInbox returns an Inbox of the given capacity wired to sp. spawn is
// invoked, on the simulation goroutine during Drain, to create the player
// entity for each new connection.
func NewInbox(sp *ServerProtocol, spawn PlayerFactory, capacity int, pub logging.Publisher) *Inbox {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	if capacity <= 0 {
		capacity = 1024
	}
	return &Inbox{sp: sp, spawn: spawn, ch: make(chan Command, capacity), pub: pub}
}

// Enqueue queues cmd for the next Drain. It never blocks: a full inbox
// drops the command and logs the overflow rather than stalling the
// transport goroutine, per spec.md §5's "transport never blocks
// simulation, simulation never blocks on transport" rule.
func (ib *Inbox) Enqueue(cmd Command) {
	select {
	case ib.ch <- cmd:
	default:
		logtransport.MalformedMessage(context.Background(), ib.pub, ib.sp.driver.CurrentTick(), logtransport.MalformedMessagePayload{
			PeerID: cmd.PeerID,
			Reason: "inbox overflow, command dropped",
		})
	}
}

// Connect enqueues a new connection for peerID.
func (ib *Inbox) Connect(peerID string, now time.Time) {
	ib.Enqueue(Command{Kind: CommandConnect, PeerID: peerID, Now: now})
}

// Disconnect enqueues cleanup for peerID.
func (ib *Inbox) Disconnect(peerID string) {
	ib.Enqueue(Command{Kind: CommandDisconnect, PeerID: peerID})
}

// Input enqueues a receive_player_input RPC.
func (ib *Inbox) Input(peerID string, direction geom.Vec2, tick uint64, ack uint16, now time.Time) {
	ib.Enqueue(Command{Kind: CommandInput, PeerID: peerID, Direction: direction, Tick: tick, Ack: ack, Now: now})
}

// RequestFullSnapshot enqueues a request_full_snapshot RPC.
func (ib *Inbox) RequestFullSnapshot(peerID string) {
	ib.Enqueue(Command{Kind: CommandRequestFullSnapshot, PeerID: peerID})
}

// AcknowledgeSnapshot enqueues an acknowledge_snapshot RPC.
func (ib *Inbox) AcknowledgeSnapshot(peerID string, sequence uint16, now time.Time) {
	ib.Enqueue(Command{Kind: CommandAcknowledgeSnapshot, PeerID: peerID, Sequence: sequence, Now: now})
}

// SetKeyframeInterval enqueues a set_keyframe_interval RPC: a peer-requested
// ceiling, in ticks, on how long it will go between forced keyframes.
func (ib *Inbox) SetKeyframeInterval(peerID string, ticks int) {
	ib.Enqueue(Command{Kind: CommandSetKeyframeInterval, PeerID: peerID, KeyframeIntervalTicks: ticks})
}

// VerifyHit enqueues a verify_hit query and blocks until Drain services it.
// The caller is the websocket read loop, which can afford to wait roughly
// one simulation tick for the answer.
func (ib *Inbox) VerifyHit(origin, directionUnit geom.Vec2, clientReportedTimeMS float64) VerifyHitResult {
	result := make(chan VerifyHitResult, 1)
	select {
	case ib.ch <- Command{Kind: commandVerifyHit, Origin: origin, DirectionUnit: directionUnit, ClientTimeMS: clientReportedTimeMS, Result: result}:
	default:
		return VerifyHitResult{}
	}
	return <-result
}

// Diagnostics blocks until Drain services a commandDiagnostics query,
// returning the current per-peer heartbeat data for the /diagnostics HTTP
// endpoint. Safe to call from any goroutine, unlike
// ServerProtocol.DiagnosticsSnapshot directly.
func (ib *Inbox) Diagnostics() []DiagnosticsPeer {
	result := make(chan []DiagnosticsPeer, 1)
	select {
	case ib.ch <- Command{Kind: commandDiagnostics, DiagnosticsResult: result}:
	default:
		return nil
	}
	return <-result
}

// Drain applies every command currently buffered, in arrival order. It
// must only be called from the goroutine that owns the simulation loop.
func (ib *Inbox) Drain(ctx context.Context) {
	for {
		select {
		case cmd := <-ib.ch:
			ib.apply(ctx, cmd)
		default:
			return
		}
	}
}

func (ib *Inbox) apply(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CommandConnect:
		entity := ib.spawn(cmd.PeerID)
		entity.OwnerPeer = cmd.PeerID
		ib.sp.Connect(ctx, cmd.PeerID, entity.ID, cmd.Now)
	case CommandDisconnect:
		ib.sp.Disconnect(ctx, cmd.PeerID)
	case CommandInput:
		ib.sp.OnInput(ctx, cmd.PeerID, cmd.Direction, cmd.Tick, cmd.Ack, cmd.Now)
	case CommandRequestFullSnapshot:
		ib.sp.RequestFullSnapshot(cmd.PeerID)
	case CommandAcknowledgeSnapshot:
		ib.sp.AcknowledgeSnapshot(ctx, cmd.PeerID, cmd.Sequence, cmd.Now)
	case CommandSetKeyframeInterval:
		ib.sp.SetKeyframeInterval(cmd.PeerID, cmd.KeyframeIntervalTicks)
	case commandVerifyHit:
		id, found := ib.sp.driver.LagComp.VerifyHit(cmd.Origin, cmd.DirectionUnit, cmd.ClientTimeMS)
		cmd.Result <- VerifyHitResult{EntityID: id, Found: found}
	case commandDiagnostics:
		cmd.DiagnosticsResult <- ib.sp.DiagnosticsSnapshot()
	}
}
