package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned (or handed to the fallback) when the breaker
// rejects a call without invoking the operation.
var ErrOpen = errors.New("breaker: call not permitted")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold is the failure ratio (0..1] that trips the
	// breaker once MinimumCalls outcomes are in the window.
	FailureThreshold float64
	// MinimumCalls is the call volume required before the ratio is
	// evaluated at all.
	MinimumCalls int
	// WindowSize is the number of most recent outcomes considered.
	WindowSize int
	// OpenTimeout is how long calls are rejected before a probe is let
	// through.
	OpenTimeout time.Duration
	// HalfOpenCalls is the number of consecutive successful probes
	// required to close again.
	HalfOpenCalls int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 || c.FailureThreshold > 1 {
		c.FailureThreshold = 0.5
	}
	if c.MinimumCalls <= 0 {
		c.MinimumCalls = 10
	}
	if c.WindowSize < c.MinimumCalls {
		c.WindowSize = c.MinimumCalls
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenCalls <= 0 {
		c.HalfOpenCalls = 1
	}
	return c
}

// Breaker guards one remote call-site. All calls through the same
// call-site share one Breaker value.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu             sync.Mutex
	state          State
	outcomes       []bool // ring buffer, true = failure
	head           int    // oldest entry when the ring is full
	count          int
	failures       int
	openedAt       time.Time
	probes         int // half-open probes admitted
	probeSuccesses int
}

func New(name string, cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		name:     name,
		cfg:      cfg,
		now:      time.Now,
		outcomes: make([]bool, cfg.WindowSize),
	}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Do runs op unless the breaker is open, in which case ErrOpen is
// returned and op is never invoked. The outcome of op feeds the window.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err != nil)
	return err
}

// Guard runs op through the breaker and, on any failure (including an
// open breaker), hands the original error to fallback. The fallback is
// responsible for distinguishing domain failures from infrastructure
// ones; Guard never collapses them itself.
func (b *Breaker) Guard(ctx context.Context, op func(context.Context) error, fallback func(error) error) error {
	err := b.Do(ctx, op)
	if err == nil {
		return nil
	}
	if fallback == nil {
		return err
	}
	return fallback(err)
}

// IsOpenError reports whether err is the breaker's own rejection, as
// opposed to a failure of the guarded operation.
func IsOpenError(err error) bool {
	return errors.Is(err, ErrOpen)
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateClosed:
		return nil
	case StateOpen:
		return ErrOpen
	default: // half-open
		if b.probes >= b.cfg.HalfOpenCalls {
			// Probe quota spent; reject until the in-flight probes decide.
			return ErrOpen
		}
		b.probes++
		return nil
	}
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateClosed:
		b.push(failed)
		if b.count >= b.cfg.MinimumCalls &&
			float64(b.failures)/float64(b.count) >= b.cfg.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		if failed {
			b.trip()
			return
		}
		b.probeSuccesses++
		if b.probeSuccesses >= b.cfg.HalfOpenCalls {
			b.reset()
		}
	case StateOpen:
		// A call admitted before the trip finished afterwards; the
		// window was already cleared, nothing to count.
	}
}

// stateLocked resolves the open→half-open transition lazily: once the
// cool-down elapses the next observer sees half-open.
func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		b.state = StateHalfOpen
		b.probes = 0
		b.probeSuccesses = 0
	}
	return b.state
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.clearWindow()
}

func (b *Breaker) reset() {
	b.state = StateClosed
	b.clearWindow()
}

func (b *Breaker) clearWindow() {
	b.head = 0
	b.count = 0
	b.failures = 0
	b.probes = 0
	b.probeSuccesses = 0
}

func (b *Breaker) push(failed bool) {
	size := len(b.outcomes)
	if b.count == size {
		if b.outcomes[b.head] {
			b.failures--
		}
		b.outcomes[b.head] = failed
		b.head = (b.head + 1) % size
	} else {
		b.outcomes[(b.head+b.count)%size] = failed
		b.count++
	}
	if failed {
		b.failures++
	}
}
