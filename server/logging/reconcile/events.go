// Package reconcile carries structured log events for client-side
// prediction reconciliation against authoritative server state.
package reconcile

import (
	"context"

	"skirmish/server/logging"
)

// EventMispredictionCorrected fires when reconciliation detects an error
// beyond RECONCILE_THRESHOLD and replays input history.
const EventMispredictionCorrected logging.EventType = "reconcile.misprediction_corrected"

// MispredictionPayload records the magnitude of the correction and how many
// inputs were replayed.
type MispredictionPayload struct {
	ServerTick uint32  `json:"serverTick"`
	ErrorUnits float64 `json:"errorUnits"`
	Replayed   int     `json:"replayed"`
}

// MispredictionCorrected publishes an info event describing a correction.
func MispredictionCorrected(ctx context.Context, pub logging.Publisher, tick uint64, payload MispredictionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMispredictionCorrected,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: "reconcile",
		Payload:  payload,
	})
}
