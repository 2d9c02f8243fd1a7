package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// session wraps a websocket connection with the single-writer discipline
// gorilla requires: concurrent WriteMessage calls on the same *Conn are not
// safe, but our send path (hot snapshot pushes from the simulation task)
// and the read loop's replies can both want to write.
type session struct {
	peerID string
	conn   *websocket.Conn

	writeMu sync.Mutex
}

func newSession(peerID string, conn *websocket.Conn) *session {
	return &session{peerID: peerID, conn: conn}
}

func (s *session) writeBinary(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) close() error {
	return s.conn.Close()
}

// clientEnvelope is the tagged union of every client-to-server RPC named in
// spec.md §4.5/§4.10: receive_player_input, request_full_snapshot,
// request_clock_sync, acknowledge_snapshot, verify_hit, and
// set_keyframe_interval. A single flat struct keeps decode to one
// json.Unmarshal call and matches the shape of every field
// any RPC might carry; unused fields are simply left at their zero value.
type clientEnvelope struct {
	Type string `json:"type"`

	// receive_player_input
	DX                   float64 `json:"dx,omitempty"`
	DY                   float64 `json:"dy,omitempty"`
	Tick                 uint64  `json:"tick,omitempty"`
	RenderTimeMS         uint32  `json:"renderTimeMs,omitempty"`
	LastReceivedSequence uint16  `json:"lastReceivedSequence,omitempty"`

	// request_clock_sync
	ClientSendTimeMS uint32 `json:"clientSendTimeMs,omitempty"`

	// acknowledge_snapshot
	Sequence uint16 `json:"sequence,omitempty"`

	// set_keyframe_interval
	KeyframeIntervalTicks int `json:"keyframeIntervalTicks,omitempty"`

	// verify_hit
	OriginX              float64 `json:"originX,omitempty"`
	OriginY              float64 `json:"originY,omitempty"`
	DirX                 float64 `json:"dirX,omitempty"`
	DirY                 float64 `json:"dirY,omitempty"`
	ClientReportedTimeMS float64 `json:"clientReportedTimeMs,omitempty"`
}

type clockSyncReply struct {
	Type                string `json:"type"`
	ClientSendTimeMS    uint32 `json:"clientSendTimeMs"`
	ServerReceiveTimeMS uint32 `json:"serverReceiveTimeMs"`
	ServerSendTimeMS    uint32 `json:"serverSendTimeMs"`
}

type hitResultReply struct {
	Type        string  `json:"type"`
	HitEntityID *uint32 `json:"hitEntityId,omitempty"`
}
