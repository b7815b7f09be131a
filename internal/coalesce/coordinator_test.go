package coalesce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/tickbox/internal/todo"
)

const testWindow = 30 * time.Millisecond

type fakeGateway struct {
	mu       sync.Mutex
	items    []todo.Entity
	fetchErr error
	fail     map[string]error
	block    map[string]chan struct{}
	started  chan string
	calls    []todo.Entity
	active   int
	peak     int
}

func newFakeGateway(items ...todo.Entity) *fakeGateway {
	return &fakeGateway{
		items:   items,
		fail:    make(map[string]error),
		block:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
}

func (g *fakeGateway) FetchAll(context.Context) ([]todo.Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make([]todo.Entity, len(g.items))
	copy(out, g.items)
	return out, nil
}

func (g *fakeGateway) Toggle(ctx context.Context, e todo.Entity) error {
	g.mu.Lock()
	g.calls = append(g.calls, e)
	g.active++
	if g.active > g.peak {
		g.peak = g.active
	}
	gate := g.block[e.ID]
	err := g.fail[e.ID]
	g.mu.Unlock()

	g.started <- e.ID
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	return err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func newTestCoordinator(t *testing.T, gw *fakeGateway, opts Options) (*Coordinator, <-chan FlushReport) {
	t.Helper()
	reports := make(chan FlushReport, 16)
	if opts.Window == 0 {
		opts.Window = testWindow
	}
	opts.OnFlush = func(r FlushReport) { reports <- r }
	c := New(gw, opts)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c, reports
}

func waitFlush(t *testing.T, reports <-chan FlushReport) FlushReport {
	t.Helper()
	select {
	case r := <-reports:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
		return FlushReport{}
	}
}

func expectNoFlush(t *testing.T, reports <-chan FlushReport, wait time.Duration) {
	t.Helper()
	select {
	case r := <-reports:
		t.Fatalf("unexpected flush: %#v", r)
	case <-time.After(wait):
	}
}

func mustToggle(t *testing.T, c *Coordinator, id string) {
	t.Helper()
	if err := c.Toggle(id); err != nil {
		t.Fatalf("Toggle(%s) returned error: %v", id, err)
	}
}

func row(t *testing.T, c *Coordinator, id string) (checked, pending, effective bool) {
	t.Helper()
	for _, vm := range c.Snapshot().Items {
		if vm.ID() == id {
			return vm.Entity().Checked, vm.IsPending(), vm.Effective()
		}
	}
	t.Fatalf("id %s not in snapshot", id)
	return
}

func TestToggle_EvenCountLeavesNothingPending(t *testing.T) {
	for _, initial := range []bool{false, true} {
		gw := newFakeGateway(todo.Entity{ID: "e", Checked: initial})
		c, reports := newTestCoordinator(t, gw, Options{})

		for i := 0; i < 4; i++ {
			mustToggle(t, c, "e")
		}
		if n := len(c.Snapshot().Pending()); n != 0 {
			t.Fatalf("pending = %d, want 0", n)
		}
		if _, _, eff := row(t, c, "e"); eff != initial {
			t.Fatalf("effective = %v, want %v", eff, initial)
		}

		r := waitFlush(t, reports)
		if len(r.Results) != 0 {
			t.Fatalf("flush sent %d toggles, want 0", len(r.Results))
		}
		if gw.callCount() != 0 {
			t.Fatalf("gateway calls = %d, want 0", gw.callCount())
		}
	}
}

func TestToggle_OddCountIsPending(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "e", Checked: true})
	c, _ := newTestCoordinator(t, gw, Options{Window: time.Minute})

	for i := 0; i < 3; i++ {
		mustToggle(t, c, "e")
	}
	pending := c.Snapshot().Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	target, ok := pending[0].Pending().Target()
	if !ok || target != false || pending[0].Effective() != false {
		t.Fatalf("pending target = (%v, %v), effective = %v, want false", target, ok, pending[0].Effective())
	}
	if !c.Scheduled() {
		t.Fatal("Scheduled() = false after toggle")
	}
}

func TestFlush_SingleEntityFlipsOnce(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "e"})
	c, reports := newTestCoordinator(t, gw, Options{})

	mustToggle(t, c, "e")
	r := waitFlush(t, reports)

	if len(r.Results) != 1 || r.Results[0].Err != nil || !r.Results[0].Target {
		t.Fatalf("report = %#v, want one successful toggle to true", r)
	}
	checked, pending, eff := row(t, c, "e")
	if !checked || pending || !eff {
		t.Fatalf("row = (checked %v, pending %v, effective %v), want (true, false, true)", checked, pending, eff)
	}
	if gw.callCount() != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.callCount())
	}
	expectNoFlush(t, reports, 3*testWindow)
}

func TestFlush_ScenarioThreeEntities(t *testing.T) {
	gw := newFakeGateway(
		todo.Entity{ID: "A"},
		todo.Entity{ID: "B"},
		todo.Entity{ID: "C", Checked: true},
	)
	c, reports := newTestCoordinator(t, gw, Options{})

	mustToggle(t, c, "A")
	mustToggle(t, c, "B")
	mustToggle(t, c, "C")

	r := waitFlush(t, reports)
	if len(r.Results) != 3 || r.Confirmed() != 3 {
		t.Fatalf("report = %#v, want three confirmations", r)
	}
	want := map[string]bool{"A": true, "B": true, "C": false}
	for id, w := range want {
		checked, pending, _ := row(t, c, id)
		if checked != w || pending {
			t.Fatalf("%s = (checked %v, pending %v), want (%v, false)", id, checked, pending, w)
		}
	}
	expectNoFlush(t, reports, 3*testWindow)
	if snap := c.Snapshot(); snap.Flushes != 1 || snap.LastFlush.Confirmed != 3 {
		t.Fatalf("Flushes = %d, LastFlush = %#v, want one flush of three", snap.Flushes, snap.LastFlush)
	}
}

func TestFlush_ToggleWithinWindowRestartsDebounce(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "e"}, todo.Entity{ID: "f"})
	c, reports := newTestCoordinator(t, gw, Options{Window: 80 * time.Millisecond})

	mustToggle(t, c, "e")
	time.Sleep(40 * time.Millisecond)
	mustToggle(t, c, "f")

	r := waitFlush(t, reports)
	if len(r.Results) != 2 {
		t.Fatalf("flush sent %d toggles, want 2", len(r.Results))
	}
	expectNoFlush(t, reports, 200*time.Millisecond)

	checked, pending, _ := row(t, c, "e")
	if !checked || pending {
		t.Fatalf("e = (checked %v, pending %v), want flipped once", checked, pending)
	}
}

func TestFlush_FailureIsIsolated(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "A"}, todo.Entity{ID: "B"}, todo.Entity{ID: "C", Checked: true})
	gw.fail["B"] = errors.New("remote said no")
	c, reports := newTestCoordinator(t, gw, Options{})

	mustToggle(t, c, "A")
	mustToggle(t, c, "B")
	mustToggle(t, c, "C")

	r := waitFlush(t, reports)
	if r.Confirmed() != 2 || r.Failed() != 1 {
		t.Fatalf("confirmed %d failed %d, want 2 and 1", r.Confirmed(), r.Failed())
	}

	checked, pending, eff := row(t, c, "B")
	if checked || !pending || !eff {
		t.Fatalf("B = (checked %v, pending %v, effective %v), want untouched pending", checked, pending, eff)
	}
	if checked, pending, _ := row(t, c, "A"); !checked || pending {
		t.Fatal("A did not reconcile")
	}
	if checked, pending, _ := row(t, c, "C"); checked || pending {
		t.Fatal("C did not reconcile")
	}

	snap := c.Snapshot()
	if snap.Failures["B"] != "remote said no" {
		t.Fatalf("Failures = %#v, want B recorded", snap.Failures)
	}
	if len(snap.InFlight) != 0 {
		t.Fatalf("InFlight = %#v, want empty", snap.InFlight)
	}

	// Toggling B back cancels the intent and clears the failure note.
	mustToggle(t, c, "B")
	snap = c.Snapshot()
	if len(snap.Pending()) != 0 || snap.Failures["B"] != "" {
		t.Fatalf("after toggle back: pending %d failures %#v", len(snap.Pending()), snap.Failures)
	}
}

func TestFlush_InFlightIDsAreRejectedAndExcluded(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "A"}, todo.Entity{ID: "B"})
	gate := make(chan struct{})
	gw.block["A"] = gate
	c, reports := newTestCoordinator(t, gw, Options{})

	mustToggle(t, c, "A")
	select {
	case id := <-gw.started:
		if id != "A" {
			t.Fatalf("first call for %s, want A", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush for A never started")
	}

	if err := c.Toggle("A"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("Toggle(A) error = %v, want ErrInFlight", err)
	}
	if !c.Snapshot().InFlight["A"] {
		t.Fatal("A not reported in flight")
	}

	// A second cycle runs while the first is still dispatching.
	mustToggle(t, c, "B")
	second := waitFlush(t, reports)
	if len(second.Results) != 1 || second.Results[0].ID != "B" {
		t.Fatalf("overlapping flush = %#v, want only B", second.Results)
	}

	close(gate)
	first := waitFlush(t, reports)
	if len(first.Results) != 1 || first.Results[0].ID != "A" {
		t.Fatalf("first flush = %#v, want only A", first.Results)
	}
	if first.Generation >= second.Generation {
		t.Fatalf("generations = %d then %d, want increasing", first.Generation, second.Generation)
	}
	if checked, pending, _ := row(t, c, "A"); !checked || pending {
		t.Fatal("A did not reconcile after release")
	}
	if gw.callCount() != 2 {
		t.Fatalf("gateway calls = %d, want 2", gw.callCount())
	}
}

func TestFlush_MaxInFlightLimitsConcurrency(t *testing.T) {
	var items []todo.Entity
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		items = append(items, todo.Entity{ID: id})
	}
	gw := newFakeGateway(items...)
	c, _ := newTestCoordinator(t, gw, Options{Window: time.Minute, MaxInFlight: 2})

	for _, it := range items {
		mustToggle(t, c, it.ID)
	}
	r := c.Flush(context.Background())
	if r.Confirmed() != len(items) {
		t.Fatalf("confirmed = %d, want %d", r.Confirmed(), len(items))
	}
	if gw.peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", gw.peak)
	}
	if c.Scheduled() {
		t.Fatal("Flush left a generation scheduled")
	}
}

func TestToggle_Errors(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "a"})
	c, _ := newTestCoordinator(t, gw, Options{})

	if err := c.Toggle("nope"); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("Toggle(nope) error = %v, want ErrUnknownID", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := c.Toggle("a"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Toggle after Close error = %v, want ErrClosed", err)
	}
}

func TestLoad_FailureLeavesListEmpty(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "a"})
	gw.fetchErr = errors.New("offline")
	c := New(gw, Options{Window: testWindow})

	err := c.Load(context.Background())
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("Load error = %v, want ErrLoad", err)
	}
	snap := c.Snapshot()
	if snap.Loaded || len(snap.Items) != 0 {
		t.Fatalf("snapshot after failed load = %#v, want empty", snap)
	}
	if snap.LastError == nil || snap.ConsecutiveFailures != 1 {
		t.Fatalf("LastError = %v, failures = %d", snap.LastError, snap.ConsecutiveFailures)
	}

	gw.mu.Lock()
	gw.fetchErr = nil
	gw.mu.Unlock()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("second Load returned error: %v", err)
	}
	if snap := c.Snapshot(); !snap.Loaded || len(snap.Items) != 1 || snap.ConsecutiveFailures != 0 {
		t.Fatalf("snapshot after recovery = %#v", snap)
	}
}

func TestLoad_RefusedWhilePending(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "a"})
	c, _ := newTestCoordinator(t, gw, Options{Window: time.Minute})

	mustToggle(t, c, "a")
	if err := c.Load(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("Load error = %v, want ErrBusy", err)
	}
	if _, pending, _ := row(t, c, "a"); !pending {
		t.Fatal("refused Load dropped the pending toggle")
	}
}

func TestLoad_ReloadsPastFailedToggles(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "gone"}, todo.Entity{ID: "flaky"}, todo.Entity{ID: "keep"})
	gw.fail["gone"] = errors.New("404 Not Found")
	gw.fail["flaky"] = errors.New("503 Service Unavailable")
	c, reports := newTestCoordinator(t, gw, Options{})

	mustToggle(t, c, "gone")
	mustToggle(t, c, "flaky")
	if r := waitFlush(t, reports); r.Failed() != 2 {
		t.Fatalf("failed %d, want 2", r.Failed())
	}

	gw.mu.Lock()
	gw.items = []todo.Entity{{ID: "flaky"}, {ID: "keep"}, {ID: "new"}}
	gw.mu.Unlock()

	for i := 0; i < 2; i++ {
		if err := c.Load(context.Background()); err != nil {
			t.Fatalf("Load %d returned error: %v", i, err)
		}
	}
	snap := c.Snapshot()
	if len(snap.Items) != 3 || snap.Items[2].ID() != "new" {
		t.Fatalf("items after reload = %#v, want flaky, keep, new", snap.Items)
	}
	pending := snap.Pending()
	if len(pending) != 1 || pending[0].ID() != "flaky" || !pending[0].Effective() {
		t.Fatalf("pending after reload = %#v, want flaky still targeting checked", pending)
	}
	if _, ok := snap.Failures["gone"]; ok || snap.Failures["flaky"] == "" {
		t.Fatalf("Failures = %#v, want only flaky", snap.Failures)
	}
	if c.Scheduled() {
		t.Fatal("reload scheduled a flush for a failed toggle")
	}
}

func TestLoad_DropsIntentTheServerAlreadyHas(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "a"})
	gw.fail["a"] = errors.New("timeout")
	c, reports := newTestCoordinator(t, gw, Options{})

	mustToggle(t, c, "a")
	waitFlush(t, reports)

	gw.mu.Lock()
	gw.items = []todo.Entity{{ID: "a", Checked: true}}
	gw.mu.Unlock()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	snap := c.Snapshot()
	if len(snap.Pending()) != 0 || len(snap.Failures) != 0 {
		t.Fatalf("pending %d failures %#v, want none", len(snap.Pending()), snap.Failures)
	}
	if checked, _, _ := row(t, c, "a"); !checked {
		t.Fatal("a not checked after reload")
	}
}

func TestClose_TimeoutDoesNotAbortDrain(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "a"})
	gate := make(chan struct{})
	gw.block["a"] = gate
	c, reports := newTestCoordinator(t, gw, Options{Window: time.Minute})

	mustToggle(t, c, "a")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close error = %v, want DeadlineExceeded", err)
	}

	close(gate)
	r := waitFlush(t, reports)
	if r.Confirmed() != 1 {
		t.Fatalf("drain confirmed %d, want 1: %#v", r.Confirmed(), r.Results)
	}
	if checked, pending, _ := row(t, c, "a"); !checked || pending {
		t.Fatal("a did not reconcile after Close timed out")
	}
}

func TestClose_DrainsPendingToggles(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "a"}, todo.Entity{ID: "b", Checked: true})
	c, reports := newTestCoordinator(t, gw, Options{Window: time.Minute})

	mustToggle(t, c, "a")
	mustToggle(t, c, "b")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	r := waitFlush(t, reports)
	if r.Confirmed() != 2 {
		t.Fatalf("drain confirmed %d, want 2", r.Confirmed())
	}
	if checked, _, _ := row(t, c, "b"); checked {
		t.Fatal("b not flipped by drain")
	}
	if c.Scheduled() {
		t.Fatal("generation still scheduled after Close")
	}
}

func TestChanges_SignalsOnToggle(t *testing.T) {
	gw := newFakeGateway(todo.Entity{ID: "a"})
	c, _ := newTestCoordinator(t, gw, Options{Window: time.Minute})

	// Drain the signal from Load.
	select {
	case <-c.Changes():
	default:
	}
	mustToggle(t, c, "a")
	select {
	case <-c.Changes():
	case <-time.After(time.Second):
		t.Fatal("no change signal after Toggle")
	}
}
