package state

import (
	"fmt"
	"time"

	"github.com/five82/tickbox/internal/todo"
)

// Store is the ordered, id-addressable collection of view models. Insertion
// order is display order and survives every mutation.
//
// Store does no locking. Its owner serializes all access.
type Store struct {
	items []ViewModel
	index map[string]int
}

// NewStore builds a store from a bulk fetch.
func NewStore(entities []todo.Entity) *Store {
	s := &Store{}
	s.Replace(entities)
	return s
}

// Replace swaps the whole sequence for freshly fetched entities, dropping
// any pending state.
func (s *Store) Replace(entities []todo.Entity) {
	s.items = make([]ViewModel, 0, len(entities))
	s.index = make(map[string]int, len(entities))
	for _, e := range entities {
		if _, dup := s.index[e.ID]; dup {
			continue
		}
		s.index[e.ID] = len(s.items)
		s.items = append(s.items, NewViewModel(e))
	}
}

// Rebase replaces the sequence like Replace, then re-applies pending
// targets by id where the fresh value still differs from them. It returns
// the ids whose pending target was dropped, either because the entity is
// gone or because the fresh value already matches.
func (s *Store) Rebase(entities []todo.Entity) []string {
	targets := make(map[string]bool)
	var order []string
	for _, vm := range s.items {
		if target, ok := vm.pending.Target(); ok {
			targets[vm.ID()] = target
			order = append(order, vm.ID())
		}
	}
	s.Replace(entities)

	var dropped []string
	for _, id := range order {
		i, ok := s.index[id]
		if !ok || s.items[i].entity.Checked == targets[id] {
			dropped = append(dropped, id)
			continue
		}
		s.items[i].toggle()
	}
	return dropped
}

// Len returns the number of view models.
func (s *Store) Len() int {
	return len(s.items)
}

// Get returns the view model for id.
func (s *Store) Get(id string) (ViewModel, bool) {
	i, ok := s.index[id]
	if !ok {
		return ViewModel{}, false
	}
	return s.items[i], true
}

// Update applies fn to the view model for id in place.
func (s *Store) Update(id string, fn func(*ViewModel)) (ViewModel, bool) {
	i, ok := s.index[id]
	if !ok {
		return ViewModel{}, false
	}
	fn(&s.items[i])
	return s.items[i], true
}

// Toggle runs the toggle state machine for id.
func (s *Store) Toggle(id string) (ViewModel, bool) {
	return s.Update(id, (*ViewModel).toggle)
}

// Confirm reconciles a successful remote toggle for id. It is a no-op when
// the view model is not pending.
func (s *Store) Confirm(id string) (ViewModel, bool) {
	return s.Update(id, func(vm *ViewModel) {
		if vm.IsPending() {
			vm.confirm()
		}
	})
}

// Pending returns the view models with a pending target, in display order.
func (s *Store) Pending() []ViewModel {
	var out []ViewModel
	for _, vm := range s.items {
		if vm.IsPending() {
			out = append(out, vm)
		}
	}
	return out
}

// Items returns a copy of every view model in display order.
func (s *Store) Items() []ViewModel {
	return cloneItems(s.items)
}

// FlushSummary describes one completed flush cycle.
type FlushSummary struct {
	Generation uint64
	Sent       int
	Confirmed  int
	Failed     int
	Duration   time.Duration
	At         time.Time
}

// Snapshot is an immutable view of the coordinator handed to renderers.
type Snapshot struct {
	Items               []ViewModel
	InFlight            map[string]bool
	Failures            map[string]string
	Loaded              bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // consecutive failed loads
	Flushes             int
	LastFlush           FlushSummary
}

// Pending returns the pending subset of the snapshot.
func (s Snapshot) Pending() []ViewModel {
	var out []ViewModel
	for _, vm := range s.Items {
		if vm.IsPending() {
			out = append(out, vm)
		}
	}
	return out
}

// Counts returns how many items render as checked and unchecked.
func (s Snapshot) Counts() (done, open int) {
	for _, vm := range s.Items {
		if vm.Effective() {
			done++
		} else {
			open++
		}
	}
	return
}

// IsOffline returns true when the service has been unreachable for multiple loads.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Clone returns a deep copy so the receiver can be handed across goroutines.
func (s Snapshot) Clone() Snapshot {
	snap := s
	snap.Items = cloneItems(s.Items)
	snap.InFlight = cloneMap(s.InFlight)
	snap.Failures = cloneMap(s.Failures)
	if s.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.LastError)
	}
	return snap
}

func cloneItems(items []ViewModel) []ViewModel {
	if len(items) == 0 {
		return nil
	}
	dup := make([]ViewModel, len(items))
	copy(dup, items)
	return dup
}

func cloneMap[V any](m map[string]V) map[string]V {
	if len(m) == 0 {
		return nil
	}
	dup := make(map[string]V, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}
