package protocol

import "time"

// tokenBucket rate-limits a peer's input RPCs to at most ratePerSecond,
// refilling continuously rather than in fixed-size ticks. The bucket holds
// at most one second's worth of tokens, so after a quiet period a burst of
// up to ratePerSecond inputs is admitted at once.
type tokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	last       time.Time
}

func newTokenBucket(ratePerSecond int) *tokenBucket {
	rate := float64(ratePerSecond)
	return &tokenBucket{
		capacity:   rate,
		tokens:     rate,
		refillRate: rate,
		last:       time.Now(),
	}
}

// Allow reports whether one input may be admitted now, consuming a token
// if so.
func (b *tokenBucket) Allow(now time.Time) bool {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
