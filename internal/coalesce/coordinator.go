package coalesce

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/tickbox/internal/state"
)

// Options configure a Coordinator.
type Options struct {
	// Context bounds remote calls issued by debounced flushes. Defaults to
	// context.Background.
	Context context.Context
	// Window is the debounce quiet period; zero uses DefaultWindow.
	Window time.Duration
	// MaxInFlight caps concurrent remote toggles per flush; zero is unlimited.
	MaxInFlight int
	// CallTimeout bounds each remote toggle; zero means no extra deadline.
	CallTimeout time.Duration
	Logger      *log.Logger
	// OnFlush is called after every flush cycle completes.
	OnFlush func(FlushReport)
}

// Coordinator applies toggles optimistically and confirms them remotely in
// debounced batches.
type Coordinator struct {
	gateway Gateway
	base    context.Context
	opts    Options
	log     *log.Logger

	mu                  sync.Mutex
	store               *state.Store
	sched               *scheduler
	inFlight            map[string]bool
	failures            map[string]error
	loaded              bool
	lastUpdated         time.Time
	lastErr             error
	consecutiveFailures int
	flushes             int
	lastFlush           state.FlushSummary
	closed              bool

	cycles  sync.WaitGroup
	changes chan struct{}
}

// New builds a Coordinator with an empty store. Call Load to populate it.
func New(gw Gateway, opts Options) *Coordinator {
	base := opts.Context
	if base == nil {
		base = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Coordinator{
		gateway:  gw,
		base:     base,
		opts:     opts,
		log:      logger.With("component", "coalesce"),
		store:    state.NewStore(nil),
		inFlight: make(map[string]bool),
		failures: make(map[string]error),
		changes:  make(chan struct{}, 1),
	}
	c.sched = newScheduler(opts.Window, c.onTimer)
	return c
}

// Changes delivers a coalesced signal whenever visible state changes.
func (c *Coordinator) Changes() <-chan struct{} {
	return c.changes
}

func (c *Coordinator) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Load replaces the rows with a fresh bulk fetch. It refuses with ErrBusy
// while a flush is scheduled or in flight. Pending toggles that are neither
// (failed ones) survive the reload by id where the fresh value still
// differs from their target; the rest are dropped. On fetch failure the
// previous rows are kept.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	entities, err := c.gateway.FetchAll(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notify()

	c.lastUpdated = time.Now()
	if err != nil {
		c.lastErr = err
		c.consecutiveFailures++
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	// A toggle may have landed while the fetch was outstanding.
	if c.busyLocked() {
		return ErrBusy
	}
	for _, id := range c.store.Rebase(entities) {
		delete(c.failures, id)
	}
	for id := range c.failures {
		if vm, ok := c.store.Get(id); !ok || !vm.IsPending() {
			delete(c.failures, id)
		}
	}
	c.loaded = true
	c.lastErr = nil
	c.consecutiveFailures = 0
	c.log.Debug("loaded", "items", c.store.Len(), "kept_pending", len(c.failures))
	return nil
}

func (c *Coordinator) busyLocked() bool {
	return len(c.inFlight) > 0 || c.sched.scheduled()
}

// Toggle records one toggle request for id and restarts the debounce.
// The new effective value is visible in Snapshot immediately.
func (c *Coordinator) Toggle(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.inFlight[id] {
		return fmt.Errorf("toggle %s: %w", id, ErrInFlight)
	}
	vm, ok := c.store.Toggle(id)
	if !ok {
		return fmt.Errorf("toggle %s: %w", id, ErrUnknownID)
	}
	delete(c.failures, id)
	gen := c.sched.reset()
	c.log.Debug("toggle", "id", id, "pending", vm.IsPending(), "effective", vm.Effective(), "generation", gen)
	c.notify()
	return nil
}

// Snapshot returns an immutable copy of the current state.
func (c *Coordinator) Snapshot() state.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := state.Snapshot{
		Items:               c.store.Items(),
		Loaded:              c.loaded,
		LastUpdated:         c.lastUpdated,
		ConsecutiveFailures: c.consecutiveFailures,
		Flushes:             c.flushes,
		LastFlush:           c.lastFlush,
	}
	if c.lastErr != nil {
		snap.LastError = fmt.Errorf("%w", c.lastErr)
	}
	if len(c.inFlight) > 0 {
		snap.InFlight = make(map[string]bool, len(c.inFlight))
		for id := range c.inFlight {
			snap.InFlight[id] = true
		}
	}
	if len(c.failures) > 0 {
		snap.Failures = make(map[string]string, len(c.failures))
		for id, err := range c.failures {
			snap.Failures[id] = err.Error()
		}
	}
	return snap
}

// Scheduled reports whether a debounced flush is waiting to fire.
func (c *Coordinator) Scheduled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sched.scheduled()
}

// Flush cancels the waiting generation and flushes pending toggles now,
// using ctx for the remote calls. It returns an empty report when nothing
// is eligible.
func (c *Coordinator) Flush(ctx context.Context) FlushReport {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return FlushReport{}
	}
	gen := c.sched.preempt()
	batch := c.beginFlushLocked()
	if len(batch) == 0 {
		c.mu.Unlock()
		return FlushReport{Generation: gen}
	}
	c.cycles.Add(1)
	c.mu.Unlock()

	defer c.cycles.Done()
	return c.dispatch(ctx, gen, batch)
}

// Close stops scheduling, flushes whatever is pending and waits for every
// running flush cycle. In-flight calls are never aborted by ctx; it only
// bounds how long Close waits. The drain batch runs on Options.Context with
// CallTimeout like any debounced flush.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	gen := c.sched.preempt()
	batch := c.beginFlushLocked()
	if len(batch) > 0 {
		c.cycles.Add(1)
	}
	c.mu.Unlock()

	if len(batch) > 0 {
		go func() {
			defer c.cycles.Done()
			c.dispatch(c.base, gen, batch)
		}()
	}

	done := make(chan struct{})
	go func() {
		c.cycles.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close: %w", ctx.Err())
	}
}

// onTimer runs on the timer goroutine when a generation's window elapses.
func (c *Coordinator) onTimer(gen uint64) {
	c.mu.Lock()
	if !c.sched.claim(gen) {
		c.mu.Unlock()
		c.log.Debug("stale generation", "generation", gen)
		return
	}
	batch := c.beginFlushLocked()
	c.cycles.Add(1)
	c.mu.Unlock()

	defer c.cycles.Done()
	c.dispatch(c.base, gen, batch)
}
