package daemon

import (
	"context"
	"fmt"
	"time"
)

// Sync refreshes from the sync backend, merges in the result, and pushes
// local changes, deduplicating concurrent calls for the same daemon (a
// background-loop tick racing an explicit client request collapses into
// one call).
func (d *Daemon) Sync(force bool) error {
	ch := d.syncGroup.DoChan("sync", func() error {
		return d.performSync(force)
	})
	return <-ch
}

// performSync holds the sync lock for the whole refresh→merge→push
// sequence; History's own mutex is only held for the short save/read
// window inside history.Sync, never across network I/O, per the
// sync-before-history lock order.
func (d *Daemon) performSync(force bool) error {
	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	if _, err := d.syncer.Refresh(); err != nil {
		return fmt.Errorf("sync refresh: %w", err)
	}
	if err := d.history.Sync(); err != nil {
		return fmt.Errorf("sync history: %w", err)
	}
	if err := d.syncer.PushChanges(d.host, force); err != nil {
		return fmt.Errorf("sync push: %w", err)
	}

	d.syncSignal.Notify()
	return nil
}

// backgroundSyncLoop sleeps until the next boundary of d.interval on the
// wall-clock hour grid, then runs Sync(false). An explicit Sync call
// elsewhere wakes it early via syncSignal so it re-aligns its schedule
// instead of firing again immediately afterward.
func (d *Daemon) backgroundSyncLoop(ctx context.Context) {
	for {
		wait := nextSyncBoundary(d.now(), d.interval).Sub(d.now())
		timer := time.NewTimer(wait)

		var wokeEarly bool
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-d.syncSignal.C():
			timer.Stop()
			wokeEarly = true
		}

		if wokeEarly {
			continue
		}

		if err := d.Sync(false); err != nil {
			d.logger.Error("background sync failed", "error", err)
		}
	}
}

// nextSyncBoundary returns the next instant strictly after now that falls on
// an interval-aligned grid anchored to the top of the hour, so multiple
// hosts with the same interval tend to sync close together.
func nextSyncBoundary(now time.Time, interval time.Duration) time.Time {
	hourStart := now.Truncate(time.Hour)
	elapsed := now.Sub(hourStart)
	steps := elapsed/interval + 1
	return hourStart.Add(steps * interval)
}
