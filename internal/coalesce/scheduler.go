package coalesce

import "time"

// DefaultWindow is the quiet period required before a flush.
const DefaultWindow = 500 * time.Millisecond

// generation is one scheduled flush. It is replaced, never mutated, on every
// toggle.
type generation struct {
	id    uint64
	timer *time.Timer
}

// scheduler is the single global debounce of a coordinator. It is confined
// by the coordinator mutex; fire runs on the timer goroutine and must call
// claim under that mutex before doing any work.
type scheduler struct {
	window  time.Duration
	next    uint64
	current *generation
	fire    func(id uint64)
}

func newScheduler(window time.Duration, fire func(id uint64)) *scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &scheduler{window: window, fire: fire}
}

// reset supersedes the current generation with a new one.
func (s *scheduler) reset() uint64 {
	s.stop()
	s.next++
	g := &generation{id: s.next}
	g.timer = time.AfterFunc(s.window, func() { s.fire(g.id) })
	s.current = g
	return g.id
}

// preempt cancels the current generation and returns a fresh id for a flush
// that runs now.
func (s *scheduler) preempt() uint64 {
	s.stop()
	s.next++
	return s.next
}

// claim reports whether id is still the current generation and, if so,
// retires it. A timer whose Stop lost the race lands here with a stale id.
func (s *scheduler) claim(id uint64) bool {
	if s.current == nil || s.current.id != id {
		return false
	}
	s.current = nil
	return true
}

// scheduled reports whether a generation is waiting on its timer.
func (s *scheduler) scheduled() bool {
	return s.current != nil
}

func (s *scheduler) stop() {
	if s.current == nil {
		return
	}
	s.current.timer.Stop()
	s.current = nil
}
