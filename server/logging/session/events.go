// Package session carries structured log events for peer lifecycle: connect,
// timeout, and keyframe negotiation.
package session

import (
	"context"

	"skirmish/server/logging"
)

const (
	// EventPeerConnected fires when a peer subscribes to the snapshot stream.
	EventPeerConnected logging.EventType = "session.peer_connected"
	// EventPeerTimedOut fires when a peer is cleaned up after CONNECTION_TIMEOUT.
	EventPeerTimedOut logging.EventType = "session.peer_timed_out"
	// EventKeyframeForced fires when the next snapshot for a peer is forced
	// to encode without a baseline, whether by request or by policy.
	EventKeyframeForced logging.EventType = "session.keyframe_forced"
)

// PeerPayload identifies the peer involved.
type PeerPayload struct {
	PeerID string `json:"peerId"`
}

// PeerConnected publishes an info event for a new subscription.
func PeerConnected(ctx context.Context, pub logging.Publisher, tick uint64, peerID string) {
	publish(ctx, pub, EventPeerConnected, logging.SeverityInfo, tick, PeerPayload{PeerID: peerID})
}

// PeerTimedOut publishes a warning event for a cleaned-up peer.
func PeerTimedOut(ctx context.Context, pub logging.Publisher, tick uint64, peerID string) {
	publish(ctx, pub, EventPeerTimedOut, logging.SeverityWarn, tick, PeerPayload{PeerID: peerID})
}

// KeyframeForcedPayload records why a keyframe was forced.
type KeyframeForcedPayload struct {
	PeerID string `json:"peerId"`
	Reason string `json:"reason"`
}

// KeyframeForced publishes a debug event when a peer's next snapshot skips
// delta encoding.
func KeyframeForced(ctx context.Context, pub logging.Publisher, tick uint64, peerID, reason string) {
	publish(ctx, pub, EventKeyframeForced, logging.SeverityDebug, tick, KeyframeForcedPayload{PeerID: peerID, Reason: reason})
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Severity: severity,
		Category: "session",
		Payload:  payload,
	})
}
