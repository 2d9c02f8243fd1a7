// Package ws adapts the transport-agnostic protocol.ServerProtocol to a
// real websocket connection: JSON text frames carry the RPC surface named
// in spec.md §4.5/§4.7/§4.10, binary frames carry snapshot.Codec payloads.
// Every RPC that mutates World or Peer state is queued on a
// protocol.Inbox rather than applied inline, so the only goroutine ever
// touching that state is the one running the simulation loop (spec.md §5).
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"skirmish/server/internal/geom"
	"skirmish/server/internal/protocol"
	"skirmish/server/internal/sim"
	"skirmish/server/logging"
	logtransport "skirmish/server/logging/transport"
)

// HandlerConfig carries the optional knobs a caller may override; the
// zero value is a usable default.
type HandlerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
}

// Handler upgrades incoming HTTP requests to websocket sessions and runs
// their read loops, translating client RPCs into protocol.Inbox commands.
type Handler struct {
	hub    *Hub
	inbox  *protocol.Inbox
	driver *sim.Driver
	pub    logging.Publisher

	upgrader websocket.Upgrader
}

// NewHandler returns a Handler that queues every connection's RPCs onto
// inbox, sending snapshots through hub. driver is consulted only for
// read-only diagnostics (timestamps, tick numbers in log events).
func NewHandler(hub *Hub, inbox *protocol.Inbox, driver *sim.Driver, pub logging.Publisher, cfg HandlerConfig) *Handler {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	readBuf := cfg.ReadBufferSize
	if readBuf <= 0 {
		readBuf = 1024
	}
	writeBuf := cfg.WriteBufferSize
	if writeBuf <= 0 {
		writeBuf = 1024
	}
	return &Handler{
		hub:    hub,
		inbox:  inbox,
		driver: driver,
		pub:    pub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle is the http.HandlerFunc that upgrades the connection and blocks
// for the lifetime of the session.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	peerID := r.URL.Query().Get("peerId")
	if peerID == "" {
		http.Error(w, "missing peerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logtransport.UpgradeFailed(r.Context(), h.pub, logtransport.UpgradeFailedPayload{
			PeerID: peerID,
			Reason: err.Error(),
		})
		return
	}

	sess := newSession(peerID, conn)
	h.hub.register(sess)
	h.inbox.Connect(peerID, time.Now())

	h.readLoop(sess)

	h.hub.unregister(peerID)
	h.inbox.Disconnect(peerID)
	conn.Close()
}

func (h *Handler) readLoop(sess *session) {
	for {
		messageType, payload, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg clientEnvelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			logtransport.MalformedMessage(context.Background(), h.pub, h.driver.CurrentTick(), logtransport.MalformedMessagePayload{
				PeerID: sess.peerID,
				Reason: err.Error(),
			})
			continue
		}

		h.dispatch(sess, msg)
	}
}

func (h *Handler) dispatch(sess *session, msg clientEnvelope) {
	switch msg.Type {
	case "receive_player_input":
		h.inbox.Input(sess.peerID, geom.Vec2{X: msg.DX, Y: msg.DY}, msg.Tick, msg.LastReceivedSequence, time.Now())

	case "request_full_snapshot":
		h.inbox.RequestFullSnapshot(sess.peerID)

	case "request_clock_sync":
		reply := clockSyncReply{
			Type:                "return_clock_sync",
			ClientSendTimeMS:    msg.ClientSendTimeMS,
			ServerReceiveTimeMS: h.driver.TimestampMS(),
		}
		reply.ServerSendTimeMS = h.driver.TimestampMS()
		_ = sess.writeJSON(reply)

	case "acknowledge_snapshot":
		h.inbox.AcknowledgeSnapshot(sess.peerID, msg.Sequence, time.Now())

	case "set_keyframe_interval":
		h.inbox.SetKeyframeInterval(sess.peerID, msg.KeyframeIntervalTicks)

	case "verify_hit":
		origin := geom.Vec2{X: msg.OriginX, Y: msg.OriginY}
		direction := geom.Vec2{X: msg.DirX, Y: msg.DirY}.Normalized()
		result := h.inbox.VerifyHit(origin, direction, msg.ClientReportedTimeMS)
		reply := hitResultReply{Type: "hit_result"}
		if result.Found {
			id := result.EntityID
			reply.HitEntityID = &id
		}
		_ = sess.writeJSON(reply)

	default:
		logtransport.UnknownRPC(context.Background(), h.pub, h.driver.CurrentTick(), logtransport.UnknownRPCPayload{
			PeerID: sess.peerID,
			RPC:    msg.Type,
		})
	}
}
