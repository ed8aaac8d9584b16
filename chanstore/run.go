package chanstore

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/breez/paychan/channel"
)

// PollInterval is how often Run checks the clock for due deadlines. The
// storage layer's deadlines are measured in minutes/hours (spec.md §4.5),
// so a coarse poll is sufficient.
const PollInterval = 30 * time.Second

// Run polls clock every PollInterval and, for every deadline that has
// elapsed, dispatches its fallback action concurrently via an
// errgroup.Group, mirroring the corpus's fan-out-with-first-error
// convention. It blocks until ctx is cancelled (returning ctx.Err()) or
// until a tick's rebroadcasts fail, returning the first such error
// (spec.md §7: a broadcast failure's
// exception propagates unchanged to whoever is awaiting it — here, the
// caller of Run).
func Run(ctx context.Context, clock channel.Clock, sched *Scheduler) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fireDue(ctx, clock, sched); err != nil {
				return err
			}
		}
	}
}

// fireDue fires and awaits every action currently due, returning the
// first error any of them produced.
func fireDue(ctx context.Context, clock channel.Clock, sched *Scheduler) error {
	due := sched.Fire(clock.Now())
	if len(due) == 0 {
		return nil
	}

	log.Infof("chanstore: %d fallback action(s) due", len(due))

	g, _ := errgroup.WithContext(ctx)
	for _, action := range due {
		action := action
		g.Go(func() error {
			return action()
		})
	}
	return g.Wait()
}

// ClientFallbackAction returns the client-side fallback action (spec.md
// §4.1, §4.5): broadcast the funding transaction, then the refund
// transaction, in that dependency order, failing fast if either
// broadcast fails.
func ClientFallbackAction(c *channel.ClientState, broadcaster channel.Broadcaster) Action {
	return func() error {
		txs := c.FallbackTransactions()
		for _, tx := range txs {
			if _, err := broadcaster.Broadcast(tx).Await(); err != nil {
				return err
			}
		}
		return nil
	}
}

// ServerFallbackAction returns the server-side fallback action (spec.md
// §4.2, §4.5): rebroadcast the current best payment transaction to claim
// funds before the refund becomes spendable. This is exactly what Close
// already does (build the close tx from the best payment received,
// combine signatures, broadcast), so the fallback simply drives Close
// early, on the storage layer's own deadline rather than a caller's
// request.
func ServerFallbackAction(s *channel.ServerState) Action {
	return func() error {
		future, err := s.Close()
		if err != nil {
			return err
		}
		_, err = future.Await()
		return err
	}
}
