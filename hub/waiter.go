package hub

import (
	"context"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/engine"
)

var ErrWaitTimeout = xerrors.New("timed out waiting for engine event")

type waitOutcome struct {
	rejected bool
	event    *engine.Event
}

// unclaimed outcomes are kept long enough for an in-flight proposal to
// register; anything older is dropped at the next prune.
const unclaimedRetention = time.Minute

// waiter is the per-operation correlation table: every dispatched operation
// registers its app-instance id and waits for the matching install or
// reject-install event. Events for other in-flight operations never resolve
// the wrong entry, and an abandoned wait removes its entry so no handler
// leaks across retries.
//
// The app-instance id only becomes known when the propose RPC returns, so the
// counterparty's answer can land before the operation registers. Such
// outcomes are retained and handed over at registration.
type waiter struct {
	mu        sync.Mutex
	pending   map[string]chan waitOutcome
	unclaimed map[string]unclaimedOutcome
}

type unclaimedOutcome struct {
	outcome waitOutcome
	seen    time.Time
}

func newWaiter() *waiter {
	return &waiter{
		pending:   make(map[string]chan waitOutcome),
		unclaimed: make(map[string]unclaimedOutcome),
	}
}

func (w *waiter) register(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked()
	if _, exists := w.pending[id]; exists {
		return
	}
	ch := make(chan waitOutcome, 1)
	if u, ok := w.unclaimed[id]; ok {
		delete(w.unclaimed, id)
		ch <- u.outcome
	}
	w.pending[id] = ch
}

func (w *waiter) drop(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, id)
}

func (w *waiter) pruneLocked() {
	for id, u := range w.unclaimed {
		if time.Since(u.seen) > unclaimedRetention {
			delete(w.unclaimed, id)
		}
	}
}

func (w *waiter) resolve(id string, ev *engine.Event) {
	w.complete(id, waitOutcome{event: ev})
}

func (w *waiter) reject(id string, ev *engine.Event) {
	w.complete(id, waitOutcome{rejected: true, event: ev})
}

func (w *waiter) complete(id string, outcome waitOutcome) {
	w.mu.Lock()
	ch, ok := w.pending[id]
	if !ok {
		// The operation may still be between dispatching its propose RPC and
		// registering; keep the outcome for it.
		w.pruneLocked()
		w.unclaimed[id] = unclaimedOutcome{outcome: outcome, seen: time.Now()}
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	// The outcome sits in the buffer until wait picks it up, so an event
	// landing between register and wait is not lost. The entry itself is
	// removed by wait.
	select {
	case ch <- outcome:
	default:
	}
}

// wait blocks until the entry for id completes, the context is cancelled, or
// the timeout fires. Cancellation and timeout remove the entry.
func (w *waiter) wait(ctx context.Context, id string, timeout time.Duration) (*engine.Event, error) {
	w.mu.Lock()
	ch, ok := w.pending[id]
	w.mu.Unlock()
	if !ok {
		return nil, xerrors.Errorf("no pending operation for %v", id)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-ch:
		w.drop(id)
		if outcome.rejected {
			return outcome.event, xerrors.Errorf("install of %v was rejected", id)
		}
		return outcome.event, nil
	case <-timer.C:
		w.drop(id)
		return nil, xerrors.Errorf("install of %v: %w", id, ErrWaitTimeout)
	case <-ctx.Done():
		w.drop(id)
		return nil, ctx.Err()
	}
}
