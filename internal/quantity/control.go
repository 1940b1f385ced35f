// Package quantity implements the debounced quantity stepper used for cart
// lines. The displayed value moves immediately; the committed value only
// moves after the backend acknowledges a trailing-edge commit.
package quantity

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultDelay = 150 * time.Millisecond

// CommitFunc sends quantity to the backend and returns the authoritative
// value the backend settled on.
type CommitFunc func(ctx context.Context, quantity int) (int, error)

type Option func(*Control)

func WithMin(n int) Option {
	return func(c *Control) { c.min = n }
}

// WithMax sets the upper bound, typically the stock ceiling.
func WithMax(n int) Option {
	return func(c *Control) { c.max = n }
}

func WithDelay(d time.Duration) Option {
	return func(c *Control) { c.delay = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Control) { c.logger = logger }
}

type Control struct {
	mu        sync.Mutex
	displayed int
	committed int
	// seq increments on every local change so a late commit result does not
	// overwrite newer clicks.
	seq    uint64
	min    int
	max    int
	delay  time.Duration
	timer  *time.Timer
	closed bool

	ctx    context.Context
	commit CommitFunc
	logger zerolog.Logger
}

// New starts a control at the authoritative quantity, unclamped. ctx bounds
// every commit the control issues.
func New(ctx context.Context, initial int, commit CommitFunc, opts ...Option) *Control {
	c := &Control{
		min:    0,
		max:    math.MaxInt,
		delay:  DefaultDelay,
		ctx:    ctx,
		commit: commit,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.displayed = initial
	c.committed = initial
	return c
}

func (c *Control) clamp(n int) int {
	if n < c.min {
		return c.min
	}
	if n > c.max {
		return c.max
	}
	return n
}

func (c *Control) Increment() int {
	return c.step(1)
}

func (c *Control) Decrement() int {
	return c.step(-1)
}

// Set jumps the displayed value, clamped, and schedules a commit.
func (c *Control) Set(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.change(c.clamp(n))
}

// step moves one unit at a time. A quantity the backend left outside
// [min, max] is shown as is and only steps back toward the range.
func (c *Control) step(delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if (delta > 0 && c.displayed >= c.max) || (delta < 0 && c.displayed <= c.min) {
		return c.displayed
	}
	return c.change(c.displayed + delta)
}

func (c *Control) change(next int) int {
	if c.closed || next == c.displayed {
		return c.displayed
	}
	c.displayed = next
	c.seq++
	c.schedule()
	return c.displayed
}

// schedule restarts the trailing-edge timer. Caller holds mu.
func (c *Control) schedule() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.fire)
}

func (c *Control) fire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	value, seq := c.displayed, c.seq
	if value == c.committed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	authoritative, err := c.commit(c.ctx, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Error().Err(err).Int("quantity", value).Msg("commit quantity")
		if seq == c.seq {
			c.displayed = c.committed
		}
		return
	}
	c.committed = authoritative
	if seq == c.seq && c.displayed != authoritative {
		c.logger.Info().Int("requested", value).Int("authoritative", authoritative).Msg("quantity reconciled")
		c.displayed = authoritative
	}
}

// Sync adopts a new authoritative value, e.g. after a cart refetch. Pending
// local changes are dropped.
func (c *Control) Sync(authoritative int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.committed = authoritative
	c.displayed = authoritative
	c.seq++
}

func (c *Control) Displayed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

func (c *Control) Committed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// Pending reports whether a commit timer is armed.
func (c *Control) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Control) CanIncrement() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.displayed < c.max
}

func (c *Control) CanDecrement() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.displayed > c.min
}

// Close cancels a pending commit. A commit already in flight completes.
func (c *Control) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
