package reliability

import (
	"sync"
	"time"
)

// State represents the cooldown state
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Cooldown is a coarse loop-level breaker. A consumption or production loop
// records one failure per cycle whose transport retry budget was exhausted;
// after a threshold of consecutive exhaustions the cooldown opens for a
// fixed window, during which the loop should pause instead of hammering the
// broker. Any successful cycle closes it again.
//
// The cooldown window is deliberately outside the retry executor's budget.
type Cooldown struct {
	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	threshold int
	window    time.Duration
	now       func() time.Time
}

// CooldownOption configures the cooldown
type CooldownOption func(*Cooldown)

// WithCooldownThreshold sets how many consecutive exhausted cycles open the
// cooldown.
func WithCooldownThreshold(n int) CooldownOption {
	return func(c *Cooldown) {
		c.threshold = n
	}
}

// WithCooldownWindow sets how long the cooldown stays open.
func WithCooldownWindow(d time.Duration) CooldownOption {
	return func(c *Cooldown) {
		c.window = d
	}
}

// WithCooldownClock sets the time source, for tests.
func WithCooldownClock(now func() time.Time) CooldownOption {
	return func(c *Cooldown) {
		c.now = now
	}
}

// NewCooldown creates a new loop cooldown
func NewCooldown(options ...CooldownOption) *Cooldown {
	c := &Cooldown{
		state:     StateClosed,
		threshold: 3,
		window:    10 * time.Second,
		now:       time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// RecordFailure records an exhausted cycle. It returns the new state.
func (c *Cooldown) RecordFailure() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen {
		// Failure of the probe cycle re-opens the window from now.
		c.openedAt = c.now()
		return c.state
	}

	c.failures++
	if c.failures >= c.threshold {
		c.state = StateOpen
		c.openedAt = c.now()
	}
	return c.state
}

// RecordSuccess closes the cooldown and resets the failure count.
func (c *Cooldown) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	c.failures = 0
}

// Delay returns how long the caller should pause before the next cycle.
// Zero when the cooldown is closed or its window has elapsed; an elapsed
// window admits a probe cycle without closing the cooldown.
func (c *Cooldown) Delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return 0
	}
	remaining := c.window - c.now().Sub(c.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CurrentState returns the cooldown state.
func (c *Cooldown) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
