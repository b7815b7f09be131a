package coalesce

import (
	"context"
	"time"

	"github.com/five82/tickbox/internal/state"
	"github.com/five82/tickbox/internal/todo"
)

// Gateway is the remote side of the coordinator. It is implemented by
// *remote.Client and by fakes in tests.
type Gateway interface {
	// FetchAll returns every entity in display order.
	FetchAll(ctx context.Context) ([]todo.Entity, error)
	// Toggle asks the remote to set e.ID to !e.Checked.
	Toggle(ctx context.Context, e todo.Entity) error
}

// Result is the outcome of one remote toggle within a flush.
type Result struct {
	ID     string
	Target bool
	Err    error
}

// FlushReport describes one flush cycle.
type FlushReport struct {
	Generation uint64
	Results    []Result
	Started    time.Time
	Duration   time.Duration
}

// Confirmed counts successful toggles.
func (r FlushReport) Confirmed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts failed toggles.
func (r FlushReport) Failed() int {
	return len(r.Results) - r.Confirmed()
}

// Summary converts the report into the snapshot form.
func (r FlushReport) Summary() state.FlushSummary {
	return state.FlushSummary{
		Generation: r.Generation,
		Sent:       len(r.Results),
		Confirmed:  r.Confirmed(),
		Failed:     r.Failed(),
		Duration:   r.Duration,
		At:         r.Started.Add(r.Duration),
	}
}
