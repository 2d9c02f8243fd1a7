// Package wire carries structured log events for the snapshot codec: the
// bit-packed encode/decode path and the delta-against-baseline logic.
package wire

import (
	"context"

	"skirmish/server/logging"
)

const (
	// EventBaselineMismatch fires when a decode's declared baseline sequence
	// does not match (or is missing) the baseline supplied by the caller.
	EventBaselineMismatch logging.EventType = "wire.baseline_mismatch"
	// EventBaselineEvicted fires server-side when a peer's acked sequence has
	// already fallen out of the history ring, forcing a full snapshot.
	EventBaselineEvicted logging.EventType = "wire.baseline_evicted"
	// EventBufferUnderrun fires when a decode reads past the end of a packet.
	EventBufferUnderrun logging.EventType = "wire.buffer_underrun"
	// EventVarintOverflow fires when a varint exceeds 5 continuation bytes.
	EventVarintOverflow logging.EventType = "wire.varint_overflow"
	// EventQuantizationClamped fires when an encode clamps a value outside
	// the configured world/velocity envelope.
	EventQuantizationClamped logging.EventType = "wire.quantization_clamped"
)

// BaselinePayload describes the sequence numbers involved in a baseline
// decision, either at encode time (server) or decode time (client).
type BaselinePayload struct {
	Sequence         uint16 `json:"sequence"`
	BaselineSequence uint16 `json:"baselineSequence"`
	HistorySize      int    `json:"historySize,omitempty"`
}

// BaselineMismatch publishes a warning when decode refuses a packet.
func BaselineMismatch(ctx context.Context, pub logging.Publisher, tick uint64, payload BaselinePayload) {
	publish(ctx, pub, EventBaselineMismatch, logging.SeverityWarn, tick, payload)
}

// BaselineEvicted publishes a debug event when the server falls back to a
// full snapshot because the acked baseline aged out of history.
func BaselineEvicted(ctx context.Context, pub logging.Publisher, tick uint64, payload BaselinePayload) {
	publish(ctx, pub, EventBaselineEvicted, logging.SeverityDebug, tick, payload)
}

// BufferUnderrunPayload captures how many bits were requested versus available.
type BufferUnderrunPayload struct {
	RequestedBits int `json:"requestedBits"`
	RemainingBits int `json:"remainingBits"`
}

// BufferUnderrun publishes a warning for a malformed/truncated packet.
func BufferUnderrun(ctx context.Context, pub logging.Publisher, tick uint64, payload BufferUnderrunPayload) {
	publish(ctx, pub, EventBufferUnderrun, logging.SeverityWarn, tick, payload)
}

// VarintOverflow publishes a warning when a varint reader gives up.
func VarintOverflow(ctx context.Context, pub logging.Publisher, tick uint64) {
	publish(ctx, pub, EventVarintOverflow, logging.SeverityWarn, tick, nil)
}

// QuantizationClampedPayload records the offending field and value.
type QuantizationClampedPayload struct {
	EntityID uint32  `json:"entityId"`
	Field    string  `json:"field"`
	Value    float64 `json:"value"`
}

// QuantizationClamped publishes a debug event when encode clamps a value.
func QuantizationClamped(ctx context.Context, pub logging.Publisher, tick uint64, payload QuantizationClampedPayload) {
	publish(ctx, pub, EventQuantizationClamped, logging.SeverityDebug, tick, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Severity: severity,
		Category: "wire",
		Payload:  payload,
	})
}
