// Package transport carries structured log events for the websocket
// boundary: upgrade failures and malformed client messages. Everything
// past the upgrade that concerns peer or snapshot state is logged by
// logging/session, logging/network, and logging/wire instead.
package transport

import (
	"context"

	"skirmish/server/logging"
)

const (
	// EventUpgradeFailed fires when the HTTP-to-websocket upgrade fails.
	EventUpgradeFailed logging.EventType = "transport.upgrade_failed"
	// EventMalformedMessage fires when a client text frame fails to decode
	// as one of the known RPC envelopes.
	EventMalformedMessage logging.EventType = "transport.malformed_message"
	// EventUnknownRPC fires when a client text frame decodes but names an
	// RPC type the server does not recognize.
	EventUnknownRPC logging.EventType = "transport.unknown_rpc"
)

// UpgradeFailedPayload records why the upgrade was refused.
type UpgradeFailedPayload struct {
	PeerID string `json:"peerId"`
	Reason string `json:"reason"`
}

// UpgradeFailed publishes a warning event for a refused upgrade.
func UpgradeFailed(ctx context.Context, pub logging.Publisher, payload UpgradeFailedPayload) {
	publish(ctx, pub, EventUpgradeFailed, logging.SeverityWarn, 0, payload)
}

// MalformedMessagePayload records the peer and the decode failure.
type MalformedMessagePayload struct {
	PeerID string `json:"peerId"`
	Reason string `json:"reason"`
}

// MalformedMessage publishes a warning event for a discarded text frame.
func MalformedMessage(ctx context.Context, pub logging.Publisher, tick uint64, payload MalformedMessagePayload) {
	publish(ctx, pub, EventMalformedMessage, logging.SeverityWarn, tick, payload)
}

// UnknownRPCPayload records the peer and the unrecognized RPC name.
type UnknownRPCPayload struct {
	PeerID string `json:"peerId"`
	RPC    string `json:"rpc"`
}

// UnknownRPC publishes a debug event for an RPC type this build doesn't
// handle, rather than silently swallowing it.
func UnknownRPC(ctx context.Context, pub logging.Publisher, tick uint64, payload UnknownRPCPayload) {
	publish(ctx, pub, EventUnknownRPC, logging.SeverityDebug, tick, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Severity: severity,
		Category: "transport",
		Payload:  payload,
	})
}
