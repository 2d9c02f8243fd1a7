package ws

import "sync"

// Hub is the registry of live websocket sessions, keyed by peer id. It
// implements protocol.Sender: the simulation task calls Send once per peer
// per snapshot tick without knowing anything about websockets.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewHub returns an empty session registry.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*session)}
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.sessions[s.peerID]; ok {
		existing.close()
	}
	h.sessions[s.peerID] = s
}

func (h *Hub) unregister(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, peerID)
}

func (h *Hub) get(peerID string) (*session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[peerID]
	return s, ok
}

// CloseSession forcibly closes peerID's websocket connection, if any. The
// read loop blocked on that connection's ReadMessage then unblocks with an
// error and runs its own unregister/Disconnect cleanup, so callers (e.g. the
// simulation loop reacting to ServerProtocol.CheckTimeouts) need do nothing
// further.
func (h *Hub) CloseSession(peerID string) {
	s, ok := h.get(peerID)
	if !ok {
		return
	}
	_ = s.close()
}

// Send implements protocol.Sender. Snapshot delivery is unreliable per
// spec.md §5: a write failure here is the transport's problem, not the
// simulation's, so errors are swallowed rather than propagated.
func (h *Hub) Send(peerID string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	s, ok := h.get(peerID)
	if !ok {
		return
	}
	_ = s.writeBinary(payload)
}
