package session

import (
	"math/rand"
	"time"
)

// Default transport timings.
const (
	DefaultReconnectDelay   = 500 * time.Millisecond
	DefaultPingInterval     = 15 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	defaultMaxDelayMultiple = 32
)

// reconnectDelay computes the wait before reconnect attempt n (1-based).
// With exponential backoff the delay is base * 2^(n-1) capped at max, with
// up to 10% jitter either way so a fleet of clients does not reconnect in
// lockstep. The result never drops below base.
func reconnectDelay(attempt int, base, max time.Duration, exponential bool) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if !exponential {
		return base
	}
	if max <= 0 {
		max = base * defaultMaxDelayMultiple
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	jitter := time.Duration((rand.Float64()*2 - 1) * float64(delay) / 10)
	delay += jitter
	if delay < base {
		delay = base
	}
	return delay
}
