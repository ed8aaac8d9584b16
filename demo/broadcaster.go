package demo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"golang.org/x/time/rate"

	"github.com/breez/paychan/channel"
)

// MemBroadcaster simulates network gossip: every Broadcast call is rate
// limited (the way the teacher reserves golang.org/x/time/rate for
// peer/connection throttling) and, once admitted, immediately resolves
// its future unless the caller has armed a forced failure.
type MemBroadcaster struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	accepted  []*wire.MsgTx
	forceFail error
}

// NewMemBroadcaster returns a broadcaster admitting up to ratePerSecond
// transactions per second, with a burst of int(ratePerSecond)+1.
func NewMemBroadcaster(ratePerSecond float64) *MemBroadcaster {
	limit := rate.Limit(ratePerSecond)
	return &MemBroadcaster{limiter: rate.NewLimiter(limit, int(ratePerSecond)+1)}
}

// ForceFail makes every subsequent Broadcast call reject with err,
// simulating a network that has stopped relaying this channel's
// transactions (used to exercise spec.md §8 scenario 3/the ERROR path).
func (b *MemBroadcaster) ForceFail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forceFail = err
}

// Broadcast waits for the rate limiter's admission, then resolves (or
// rejects) the returned future.
func (b *MemBroadcaster) Broadcast(tx *wire.MsgTx) *channel.BroadcastFuture {
	future := channel.NewBroadcastFuture()

	go func() {
		if err := b.limiter.Wait(context.Background()); err != nil {
			future.Reject(fmt.Errorf("rate limiter: %w", err))
			return
		}

		b.mu.Lock()
		forceFail := b.forceFail
		b.mu.Unlock()

		if forceFail != nil {
			future.Reject(forceFail)
			return
		}

		b.mu.Lock()
		b.accepted = append(b.accepted, tx)
		b.mu.Unlock()

		future.Resolve(tx)
	}()

	return future
}

// Accepted returns every transaction this broadcaster has admitted so
// far, for the demo harness's summary report.
func (b *MemBroadcaster) Accepted() []*wire.MsgTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*wire.MsgTx(nil), b.accepted...)
}

// MemClock is a channel.Clock whose Now() can be advanced by the demo
// harness, so storage deadlines (spec.md §4.5) can be exercised without
// an actual wait.
type MemClock struct {
	mu  sync.Mutex
	now int64
}

// NewMemClock returns a clock starting at now.
func NewMemClock(now int64) *MemClock {
	return &MemClock{now: now}
}

// Now returns the clock's current UNIX-seconds value.
func (c *MemClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *MemClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += int64(d / time.Second)
}
