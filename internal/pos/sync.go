package pos

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openstall/stallpos/internal/bus"
	"github.com/openstall/stallpos/internal/store"
)

// TriggerSync starts a sync pass on a detached goroutine. Failures are
// handled by Sync itself (event + backoff retry) and never reach the caller.
func (e *Engine) TriggerSync() {
	go func() {
		_ = e.Sync(context.Background())
	}()
}

// Sync runs the two-phase protocol: push the outbox, then pull changes
// since the stored checkpoint. Re-entrant calls while a sync is in flight
// are no-ops (single-flight).
//
// On failure the error is converted into a sync:error event and exactly one
// retry is scheduled after the doubled backoff delay; the in-flight flag is
// released first, so the retry runs as a fresh attempt. On success the
// backoff resets to its base value.
func (e *Engine) Sync(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil
	}

	e.bus.Publish(bus.SyncStart, nil)
	err := e.runSync(ctx)
	e.inFlight.Store(false)

	if err != nil {
		delay := e.nextBackoff()
		slog.Warn("sync failed", "error", err, "retry_in", delay)
		e.bus.Publish(bus.SyncError, err)
		e.scheduleRetry(delay)
		return err
	}

	e.resetBackoff()
	e.bus.Publish(bus.SyncSuccess, nil)
	return nil
}

func (e *Engine) runSync(ctx context.Context) error {
	if err := e.push(ctx); err != nil {
		return err
	}
	return e.pull(ctx)
}

// push sends the entire current outbox as one batch and deletes exactly the
// ids the server acknowledged. Unacknowledged mutations stay queued for the
// next pass (at-least-once delivery).
func (e *Engine) push(ctx context.Context) error {
	var outbox []Mutation
	if err := e.store.GetAll(ctx, "outbox", &outbox); err != nil {
		return fmt.Errorf("read outbox: %w", err)
	}
	if len(outbox) == 0 {
		return nil
	}

	appliedIDs, err := e.remote.PushMutations(ctx, outbox)
	if err != nil {
		return err
	}

	if err := e.store.Update(ctx, func(tx *store.Tx) error {
		for _, id := range appliedIDs {
			if err := tx.Delete(ctx, "outbox", id); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("ack outbox: %w", err)
	}

	slog.Debug("outbox pushed", "sent", len(outbox), "applied", len(appliedIDs))
	return nil
}

// pull fetches all server-side changes since the checkpoint and applies
// them together with the new checkpoint in one transaction: either the
// whole pull lands, or none of it does.
func (e *Engine) pull(ctx context.Context) error {
	var cp Checkpoint
	err := e.store.Get(ctx, "meta", checkpointKey, &cp)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("read checkpoint: %w", err)
	}

	ts, changes, err := e.remote.FetchChanges(ctx, cp.TS)
	if err != nil {
		return err
	}

	if err := e.store.Update(ctx, func(tx *store.Tx) error {
		for _, o := range changes.Orders {
			if err := tx.Put(ctx, "orders", o.ID, o); err != nil {
				return err
			}
		}
		for _, it := range changes.OrderItems {
			if err := tx.Put(ctx, "orderItems", it.ID, it); err != nil {
				return err
			}
		}
		for _, mi := range changes.MenuItems {
			if err := tx.Put(ctx, "menuItems", mi.ID, mi); err != nil {
				return err
			}
		}
		for _, inv := range changes.Inventory {
			if err := tx.Put(ctx, "inventory", inv.ID, inv); err != nil {
				return err
			}
		}
		return tx.Put(ctx, "meta", checkpointKey, Checkpoint{Key: checkpointKey, TS: ts})
	}); err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}

	slog.Debug("changes pulled",
		"since", cp.TS,
		"checkpoint", ts,
		"orders", len(changes.Orders),
		"order_items", len(changes.OrderItems),
		"menu_items", len(changes.MenuItems),
		"inventory", len(changes.Inventory),
	)
	return nil
}

// nextBackoff doubles the delay up to the cap and returns the new value.
func (e *Engine) nextBackoff() time.Duration {
	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()

	e.backoff *= 2
	if e.backoff > e.maxDelay {
		e.backoff = e.maxDelay
	}
	return e.backoff
}

func (e *Engine) resetBackoff() {
	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()
	e.backoff = e.baseDelay
}

// scheduleRetry arms a single retry timer. A previously armed timer is
// replaced, so consecutive failures never stack retries.
func (e *Engine) scheduleRetry(delay time.Duration) {
	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()

	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	e.retryTimer = time.AfterFunc(delay, func() {
		_ = e.Sync(context.Background())
	})
}

// CurrentBackoff returns the delay the next failure-triggered retry would
// use as its starting point. Exposed for diagnostics.
func (e *Engine) CurrentBackoff() time.Duration {
	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()
	return e.backoff
}
