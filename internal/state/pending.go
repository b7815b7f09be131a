package state

import "github.com/five82/tickbox/internal/todo"

// Pending is either confirmed (no local intent) or pending with a target
// value. A pending target equal to the confirmed flag is unrepresentable:
// the only way to build a pending value is NextPending, which collapses that
// case to Confirmed.
type Pending struct {
	pending bool
	target  bool
}

// Confirmed returns the variant with no outstanding local intent.
func Confirmed() Pending {
	return Pending{}
}

// Target returns the desired value and whether one is set.
func (p Pending) Target() (target bool, ok bool) {
	return p.target, p.pending
}

// IsPending reports whether a local target awaits confirmation.
func (p Pending) IsPending() bool {
	return p.pending
}

// NextPending computes the pending state after one more toggle request.
// Repeated toggles collapse algebraically: an even number since the last
// confirmed value yields Confirmed.
func NextPending(checked bool, p Pending) Pending {
	next := !checked
	if p.pending {
		next = !p.target
	}
	if next == checked {
		return Confirmed()
	}
	return Pending{pending: true, target: next}
}

// ViewModel pairs an entity with its pending state.
type ViewModel struct {
	entity  todo.Entity
	pending Pending
}

// NewViewModel wraps a freshly fetched entity with no pending intent.
func NewViewModel(e todo.Entity) ViewModel {
	return ViewModel{entity: e}
}

// ID returns the entity id.
func (vm ViewModel) ID() string { return vm.entity.ID }

// Entity returns the confirmed entity.
func (vm ViewModel) Entity() todo.Entity { return vm.entity }

// Pending returns the pending variant.
func (vm ViewModel) Pending() Pending { return vm.pending }

// IsPending reports whether the view model belongs to the pending set.
func (vm ViewModel) IsPending() bool { return vm.pending.pending }

// Effective is the value a renderer should show: the pending target when
// present, otherwise the confirmed flag.
func (vm ViewModel) Effective() bool {
	if target, ok := vm.pending.Target(); ok {
		return target
	}
	return vm.entity.Checked
}

func (vm *ViewModel) toggle() {
	vm.pending = NextPending(vm.entity.Checked, vm.pending)
}

// confirm applies one remote confirmation. While pending the target is
// always !Checked, so a single flip realizes every toggle that happened.
func (vm *ViewModel) confirm() {
	vm.entity = vm.entity.Flipped()
	vm.pending = Confirmed()
}
