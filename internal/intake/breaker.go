package intake

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrHostUnavailable is returned when a host has failed repeatedly and its
// circuit is open. Callers may retry after the cooldown elapses.
var ErrHostUnavailable = eris.New("intake: host unavailable")

// breakerState tracks whether a host is accepting requests.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// hostBreaker quarantines a host after consecutive download failures so a
// batch pointed at a dead portal fails fast instead of burning retry cycles.
// Once the cooldown elapses a single probe is let through; success closes
// the circuit, failure reopens it.
type hostBreaker struct {
	host      string
	threshold int
	cooldown  time.Duration

	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time

	// now allows test injection of time.
	now func() time.Time
}

func newHostBreaker(host string, threshold int, cooldown time.Duration) *hostBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &hostBreaker{
		host:      host,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// allow reports whether a request to the host may proceed. While open it
// rejects with ErrHostUnavailable until the cooldown passes, then admits a
// single probe in half-open state.
func (b *hostBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != breakerOpen {
		return nil
	}
	if b.now().Sub(b.lastFailure) >= b.cooldown {
		b.state = breakerHalfOpen
		return nil
	}
	return ErrHostUnavailable
}

// record feeds the outcome of a completed request back into the breaker.
func (b *hostBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != breakerClosed {
			zap.L().Info("host recovered, closing circuit",
				zap.String("host", b.host),
			)
		}
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = b.now()

	switch b.state {
	case breakerHalfOpen:
		// The probe failed; back to waiting.
		b.state = breakerOpen
	case breakerClosed:
		if b.failures >= b.threshold {
			b.state = breakerOpen
			zap.L().Warn("host failing repeatedly, opening circuit",
				zap.String("host", b.host),
				zap.Int("consecutive_failures", b.failures),
				zap.Duration("cooldown", b.cooldown),
			)
		}
	}
}

// current returns the breaker state, observing cooldown expiry.
func (b *hostBreaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerOpen && b.now().Sub(b.lastFailure) >= b.cooldown {
		return breakerHalfOpen
	}
	return b.state
}
