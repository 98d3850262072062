package netstack

import "time"

const (
	minErrorBackoff = 5 * time.Millisecond
	maxErrorBackoff = time.Second
)

// errorBackoff spaces out retries after consecutive socket errors,
// doubling from minErrorBackoff up to maxErrorBackoff.
type errorBackoff struct {
	delay    time.Duration
	failures int
}

// next records a failure and returns how long to wait before retrying.
func (b *errorBackoff) next() time.Duration {
	b.failures++
	switch {
	case b.delay == 0:
		b.delay = minErrorBackoff
	case b.delay < maxErrorBackoff:
		b.delay *= 2
		if b.delay > maxErrorBackoff {
			b.delay = maxErrorBackoff
		}
	}
	return b.delay
}

func (b *errorBackoff) reset() {
	b.delay = 0
	b.failures = 0
}
