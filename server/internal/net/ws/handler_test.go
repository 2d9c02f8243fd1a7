package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"skirmish/server/internal/config"
	"skirmish/server/internal/geom"
	"skirmish/server/internal/interest"
	"skirmish/server/internal/protocol"
	"skirmish/server/internal/sim"
	"skirmish/server/internal/snapshot"
	"skirmish/server/logging"
)

type testServer struct {
	driver *sim.Driver
	world  *sim.World
	cfg    config.Config
	inbox  *protocol.Inbox
	sp     *protocol.ServerProtocol
	srv    *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	world := sim.NewWorld(cfg.ChunkSize)
	driver := sim.NewDriver(world, sim.BoundsPhysics{WorldMin: cfg.WorldMin, WorldMax: cfg.WorldMax}, cfg, logging.NopPublisher())
	mgr := interest.NewManager(world.Index(), cfg.InterestRadius, cfg.MaxEntitiesPerSnapshot, cfg.HysteresisBonus, logging.NopPublisher())
	codec := &snapshot.Codec{
		PositionBits: cfg.PositionBits,
		VelocityBits: cfg.VelocityBits,
		MaxVelocity:  cfg.MaxVelocity,
		WorldMin:     cfg.WorldMin,
		WorldMax:     cfg.WorldMax,
	}
	hub := NewHub()
	sp := protocol.New(world, driver, mgr, codec, cfg, logging.NopPublisher(), hub)
	driver.OnSnapshotTick(func(tick uint64, timestampMS uint32) {
		sp.BuildAndSend(context.Background(), tick, timestampMS)
	})

	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}})
	}
	inbox := protocol.NewInbox(sp, spawn, 64, logging.NopPublisher())

	handler := NewHandler(hub, inbox, driver, logging.NopPublisher(), HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))

	return &testServer{driver: driver, world: world, cfg: cfg, inbox: inbox, sp: sp, srv: srv}
}

func (ts *testServer) dial(t *testing.T, peerID string) *websocket.Conn {
	t.Helper()
	parsed, err := url.Parse(ts.srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	q := parsed.Query()
	q.Set("peerId", peerID)
	parsed.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(parsed.String(), nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// advance drains the inbox and runs the simulation forward by exactly one
// snapshot-emitting stride, as cmd/server's main loop would between
// reading client frames. It touches no *testing.T so it is safe to call
// from a background goroutine.
func (ts *testServer) advance() {
	ts.inbox.Drain(context.Background())
	ts.driver.Advance(context.Background(), ts.cfg.TickDelta()*time.Duration(ts.cfg.TicksPerSnapshot()))
}

func (ts *testServer) tick(t *testing.T) {
	t.Helper()
	ts.advance()
}

func TestHandleDeliversForcedKeyframeOnConnect(t *testing.T) {
	ts := newTestServer(t)
	t.Cleanup(ts.srv.Close)
	conn := ts.dial(t, "peer-a")

	// Give the read loop a moment to enqueue the connect command before we
	// drain it; the test server and the dialer run on separate goroutines.
	time.Sleep(20 * time.Millisecond)
	ts.tick(t)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Fatalf("expected a binary snapshot frame, got type %d", messageType)
	}
	header, err := snapshot.PeekHeader(payload)
	if err != nil {
		t.Fatalf("peek header: %v", err)
	}
	if header.BaselineSequence != 0 {
		t.Fatalf("expected forced keyframe (baseline 0), got %d", header.BaselineSequence)
	}
}

func TestReceivePlayerInputMovesSpawnedEntity(t *testing.T) {
	ts := newTestServer(t)
	t.Cleanup(ts.srv.Close)
	conn := ts.dial(t, "peer-a")
	time.Sleep(20 * time.Millisecond)
	ts.tick(t) // connect + initial keyframe
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "receive_player_input", "dx": 1.0, "dy": 0.0, "tick": 1}); err != nil {
		t.Fatalf("write input: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	ts.tick(t)

	var moved bool
	for _, e := range ts.world.All() {
		if e.OwnerPeer == "peer-a" && e.Position.X > 0 {
			moved = true
		}
	}
	if !moved {
		t.Fatalf("expected peer-a's entity to have moved forward")
	}
}

func TestRequestClockSyncEchoesClientSendTime(t *testing.T) {
	ts := newTestServer(t)
	t.Cleanup(ts.srv.Close)
	conn := ts.dial(t, "peer-a")
	time.Sleep(20 * time.Millisecond)
	ts.tick(t)
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "request_clock_sync", "clientSendTimeMs": 12345}); err != nil {
		t.Fatalf("write clock sync request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read clock sync reply: %v", err)
	}
	var reply clockSyncReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		t.Fatalf("decode clock sync reply: %v", err)
	}
	if reply.Type != "return_clock_sync" {
		t.Fatalf("expected return_clock_sync, got %q", reply.Type)
	}
	if reply.ClientSendTimeMS != 12345 {
		t.Fatalf("expected echoed clientSendTimeMs 12345, got %d", reply.ClientSendTimeMS)
	}
}

func TestVerifyHitReturnsNoHitBeforeAnyHistory(t *testing.T) {
	ts := newTestServer(t)
	t.Cleanup(ts.srv.Close)
	conn := ts.dial(t, "peer-a")
	time.Sleep(20 * time.Millisecond)

	// VerifyHit blocks until some Drain call services it; poll in the
	// background the way cmd/server's real loop would tick continuously.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				ts.advance()
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()

	if err := conn.WriteJSON(map[string]any{
		"type": "verify_hit", "originX": 0.0, "originY": 0.0, "dirX": 1.0, "dirY": 0.0,
		"clientReportedTimeMs": 10000.0,
	}); err != nil {
		t.Fatalf("write verify_hit: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var payload []byte
	// The background loop sends a binary snapshot on every advance, so any
	// number of them may arrive before the hit result; skip them.
	for i := 0; i < 200; i++ {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read reply: %v", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var probe map[string]any
		json.Unmarshal(data, &probe)
		if probe["type"] == "hit_result" {
			payload = data
			break
		}
	}
	if payload == nil {
		t.Fatalf("never received a hit_result reply")
	}
	var result map[string]any
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("decode hit result: %v", err)
	}
	if _, present := result["hitEntityId"]; present {
		t.Fatalf("expected no hitEntityId with no recorded history, got %v", result)
	}
}

func TestUnknownRPCTypeDoesNotCloseConnection(t *testing.T) {
	ts := newTestServer(t)
	t.Cleanup(ts.srv.Close)
	conn := ts.dial(t, "peer-a")
	time.Sleep(20 * time.Millisecond)
	ts.tick(t)
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "not_a_real_rpc"}); err != nil {
		t.Fatalf("write unknown rpc: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "request_clock_sync", "clientSendTimeMs": 1}); err != nil {
		t.Fatalf("write clock sync after unknown rpc: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected connection to remain open after an unknown RPC: %v", err)
	}
	var reply clockSyncReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		t.Fatalf("decode clock sync reply: %v", err)
	}
	if reply.Type != "return_clock_sync" {
		t.Fatalf("expected connection to keep serving RPCs, got %q", reply.Type)
	}
}

func TestSetKeyframeIntervalRPCAppliesCadenceToPeer(t *testing.T) {
	ts := newTestServer(t)
	t.Cleanup(ts.srv.Close)
	conn := ts.dial(t, "peer-a")
	time.Sleep(20 * time.Millisecond)
	ts.tick(t)
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}

	baselineTick := ts.driver.CurrentTick()

	if err := conn.WriteJSON(map[string]any{"type": "set_keyframe_interval", "keyframeIntervalTicks": 7}); err != nil {
		t.Fatalf("write set_keyframe_interval: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	ts.inbox.Drain(context.Background()) // apply the RPC without advancing ticks yet

	p, ok := ts.sp.Peer("peer-a")
	if !ok {
		t.Fatalf("expected peer-a to still be connected")
	}
	if p.DueForCadenceKeyframe(baselineTick + 6) {
		t.Fatalf("expected no cadence keyframe due before the requested interval elapses")
	}
	if !p.DueForCadenceKeyframe(baselineTick + 7) {
		t.Fatalf("expected the requested cadence of 7 ticks to be applied to the peer")
	}
}

func TestDisconnectOnCloseRemovesPeerAndEntity(t *testing.T) {
	ts := newTestServer(t)
	t.Cleanup(ts.srv.Close)
	conn := ts.dial(t, "peer-a")
	time.Sleep(20 * time.Millisecond)
	ts.tick(t)
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}

	conn.Close()
	time.Sleep(20 * time.Millisecond)
	ts.tick(t)

	for _, e := range ts.world.All() {
		if e.OwnerPeer == "peer-a" {
			t.Fatalf("expected peer-a's entity to be despawned after disconnect")
		}
	}
}
