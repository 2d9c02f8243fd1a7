// Package client implements the presentation-side counterparts to the
// server simulation: clock synchronization, snapshot interpolation, and
// local input prediction with server reconciliation (spec.md §4.7-§4.9).
// None of it mutates authoritative World state; it only ever reads
// snapshots the server already sent and renders or predicts from them.
package client

import (
	"math"
	"sort"
)

// ClockSync estimates the offset between the client's local clock and the
// server's, following spec.md §4.7: every CLOCK_SYNC_INTERVAL the client
// sends its send time and the server echoes its own receive/send times,
// from which the client derives one round-trip sample.
type ClockSync struct {
	samples  []float64 // offset_ms, oldest first
	capacity int
}

// NewClockSync returns a ClockSync that retains at most capacity samples.
// The spec requires a ring of at least 10; callers should not pass less.
func NewClockSync(capacity int) *ClockSync {
	if capacity < 1 {
		capacity = 10
	}
	return &ClockSync{capacity: capacity}
}

// RecordReply folds one request_clock_sync round trip into the ring.
// clientSendTimeMS and clientReceiveTimeMS are the client's own clock
// readings bracketing the request; serverReceiveTimeMS and
// serverSendTimeMS come from the server's return_clock_sync reply.
func (c *ClockSync) RecordReply(clientSendTimeMS, serverReceiveTimeMS, serverSendTimeMS, clientReceiveTimeMS float64) {
	rtt := (clientReceiveTimeMS - clientSendTimeMS) - (serverSendTimeMS - serverReceiveTimeMS)
	serverTimeAtReceive := serverSendTimeMS + rtt/2
	offset := serverTimeAtReceive - clientReceiveTimeMS

	c.samples = append(c.samples, offset)
	if len(c.samples) > c.capacity {
		c.samples = c.samples[1:]
	}
}

// SmoothedOffsetMS returns the filtered clock offset per spec.md §4.7: the
// arithmetic mean below 3 samples, otherwise a median-centered outlier
// trim with a median fallback if every sample is trimmed. Returns 0 with
// no samples recorded yet.
func (c *ClockSync) SmoothedOffsetMS() float64 {
	n := len(c.samples)
	if n == 0 {
		return 0
	}
	if n < 3 {
		return mean(c.samples)
	}

	sorted := append([]float64(nil), c.samples...)
	sort.Float64s(sorted)
	med := median(sorted)
	sd := stddev(c.samples, mean(c.samples))
	threshold := math.Max(1.0, 1.5*sd)

	var survivors []float64
	for _, x := range c.samples {
		if math.Abs(x-med) <= threshold {
			survivors = append(survivors, x)
		}
	}
	if len(survivors) == 0 {
		return med
	}
	return mean(survivors)
}

// ServerTimeNowMS maps a client-local timestamp to the estimated
// corresponding server time using the current smoothed offset.
func (c *ClockSync) ServerTimeNowMS(clientNowMS float64) float64 {
	return clientNowMS + c.SmoothedOffsetMS()
}

// SampleCount reports how many round trips are currently retained, mostly
// useful for diagnostics and tests.
func (c *ClockSync) SampleCount() int {
	return len(c.samples)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stddev(xs []float64, m float64) float64 {
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
