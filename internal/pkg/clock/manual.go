package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Clock that only moves when Advance is called.
// AfterFunc callbacks run synchronously inside Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	waiters []*manualTimer
}

type manualTimer struct {
	clock    *Manual
	id       int
	deadline time.Time
	fn       func()
	ch       chan time.Time
	done     bool
}

// NewManual returns a manual clock starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the clock's current time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After returns a channel that receives once the clock is advanced past d
func (m *Manual) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	m.schedule(d, nil, ch)
	return ch
}

// AfterFunc calls f once the clock is advanced past d
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	return m.schedule(d, f, nil)
}

// Pending returns the number of timers that have not fired or been stopped
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

// Advance moves the clock forward and fires every timer that became due,
// earliest first.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	var due []*manualTimer
	kept := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.deadline.After(now) {
			w.done = true
			due = append(due, w)
			continue
		}
		kept = append(kept, w)
	}
	m.waiters = kept
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})

	for _, w := range due {
		if w.ch != nil {
			w.ch <- now
		}
		if w.fn != nil {
			w.fn()
		}
	}
}

func (m *Manual) schedule(d time.Duration, fn func(), ch chan time.Time) *manualTimer {
	m.mu.Lock()
	m.seq++
	w := &manualTimer{
		clock:    m,
		id:       m.seq,
		deadline: m.now.Add(d),
		fn:       fn,
		ch:       ch,
	}
	if d <= 0 {
		w.done = true
		now := m.now
		m.mu.Unlock()
		if ch != nil {
			ch <- now
		}
		if fn != nil {
			fn()
		}
		return w
	}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()
	return w
}

// Stop removes the timer if it has not fired yet
func (t *manualTimer) Stop() bool {
	m := t.clock
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	for i, w := range m.waiters {
		if w == t {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			break
		}
	}
	return true
}
