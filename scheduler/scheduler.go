// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: scheduler/scheduler.go
// Summary: Cooperative single-threaded task queue with timers.
//
// Architecture:
//
//	All editor work runs on one loop goroutine. Long-running work is split
//	into bounded units that re-post their continuation with Post; the host
//	loop drains ready work by calling Tick. A continuation posted while a
//	tick is running is deferred to the next tick, so a tick always
//	finishes and the host gets a chance to draw and handle input between
//	batches.
//
//	Post and After may be called from any goroutine (they only touch the
//	queue under a mutex); the queued functions themselves only ever run
//	inside Tick on the loop goroutine. The notifier is called whenever new
//	work becomes ready so a host blocked on input can wake up.

package scheduler

import (
	"slices"
	"sync"
	"time"
)

// Clock abstracts wall-clock time so tests can drive timers.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the system clock.
func RealClock() Clock { return realClock{} }

// ManualClock is a Clock that only moves when Advance is called.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a manual clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Timer is a pending delayed task.
type Timer struct {
	s       *Scheduler
	due     time.Time
	seq     uint64
	fn      func()
	stopped bool
}

// Stop cancels the timer. Returns false if it already fired or was stopped.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	before := len(t.s.timers)
	t.s.timers = slices.DeleteFunc(t.s.timers, func(o *Timer) bool { return o == t })
	return len(t.s.timers) != before
}

// Scheduler runs posted tasks and due timers one tick at a time.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	queue  []func()
	timers []*Timer // sorted by (due, seq)
	seq    uint64
	notify func()
	ticks  int64
}

// New creates a scheduler. A nil clock uses the system clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{clock: clock}
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() Clock { return s.clock }

// SetNotifier registers fn to be called whenever work is posted or a timer
// is armed. fn must not block.
func (s *Scheduler) SetNotifier(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

// Post queues fn to run on the next tick.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// After queues fn to run on the first tick at or after d from now.
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	s.mu.Lock()
	s.seq++
	t := &Timer{s: s, due: s.clock.Now().Add(d), seq: s.seq, fn: fn}
	i, _ := slices.BinarySearchFunc(s.timers, t, compareTimers)
	s.timers = slices.Insert(s.timers, i, t)
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
	return t
}

func compareTimers(a, b *Timer) int {
	if c := a.due.Compare(b.due); c != 0 {
		return c
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

// Tick runs every task queued before the call plus every timer that is due,
// and returns how many functions ran.
func (s *Scheduler) Tick() int {
	s.mu.Lock()
	tasks := s.queue
	s.queue = nil
	now := s.clock.Now()
	n := 0
	for n < len(s.timers) && !s.timers[n].due.After(now) {
		n++
	}
	due := slices.Clone(s.timers[:n])
	s.timers = slices.Delete(s.timers, 0, n)
	for _, t := range due {
		t.stopped = true
	}
	s.ticks++
	s.mu.Unlock()

	for _, fn := range tasks {
		fn()
	}
	for _, t := range due {
		t.fn()
	}
	return len(tasks) + len(due)
}

// Ticks returns how many ticks have run.
func (s *Scheduler) Ticks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Ready reports whether a tick would run at least one function now.
func (s *Scheduler) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0 || (len(s.timers) > 0 && !s.timers[0].due.After(s.clock.Now()))
}

// Pending reports whether any task or timer is outstanding.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0 || len(s.timers) > 0
}

// NextDue returns the due time of the earliest timer.
func (s *Scheduler) NextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return time.Time{}, false
	}
	return s.timers[0].due, true
}
