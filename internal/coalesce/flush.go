package coalesce

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/tickbox/internal/state"
)

// beginFlushLocked snapshots the pending rows that have no call outstanding
// and marks them in flight. Toggles after this point are excluded from the
// batch.
func (c *Coordinator) beginFlushLocked() []state.ViewModel {
	var batch []state.ViewModel
	for _, vm := range c.store.Pending() {
		if c.inFlight[vm.ID()] {
			continue
		}
		c.inFlight[vm.ID()] = true
		batch = append(batch, vm)
	}
	if len(batch) > 0 {
		c.notify()
	}
	return batch
}

// dispatch issues every remote toggle of the batch concurrently and
// reconciles each result on its own. One failure never blocks or rolls back
// another.
func (c *Coordinator) dispatch(ctx context.Context, gen uint64, batch []state.ViewModel) FlushReport {
	report := FlushReport{
		Generation: gen,
		Results:    make([]Result, len(batch)),
		Started:    time.Now(),
	}

	var g errgroup.Group
	if c.opts.MaxInFlight > 0 {
		g.SetLimit(c.opts.MaxInFlight)
	}
	for i, vm := range batch {
		g.Go(func() error {
			entity := vm.Entity()
			err := c.call(ctx, vm)
			c.reconcile(vm.ID(), err)
			report.Results[i] = Result{ID: entity.ID, Target: !entity.Checked, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	report.Duration = time.Since(report.Started)

	c.mu.Lock()
	c.flushes++
	c.lastFlush = report.Summary()
	c.mu.Unlock()
	c.notify()

	c.log.Info("flush complete",
		"generation", gen,
		"sent", len(report.Results),
		"confirmed", report.Confirmed(),
		"failed", report.Failed(),
		"duration", report.Duration.Round(time.Millisecond),
	)
	if c.opts.OnFlush != nil {
		c.opts.OnFlush(report)
	}
	return report
}

func (c *Coordinator) call(ctx context.Context, vm state.ViewModel) error {
	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}
	return c.gateway.Toggle(ctx, vm.Entity())
}

// reconcile applies one remote result. On success the confirmed value flips
// once and the pending marker clears; on failure both stay as they were.
func (c *Coordinator) reconcile(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notify()

	delete(c.inFlight, id)
	if err != nil {
		c.failures[id] = err
		c.log.Warn("toggle failed", "id", id, "err", err)
		return
	}
	delete(c.failures, id)
	if vm, ok := c.store.Confirm(id); ok {
		c.log.Debug("confirmed", "id", id, "checked", vm.Entity().Checked)
	}
}
