package engagement

import (
	"sort"
	"time"
)

// Timer is a cancellation handle for a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Callbacks must be delivered on the same
// logical thread that drives the Session.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// debounce keeps at most one pending callback. Re-arming stops the previous
// handle and bumps the token so a callback that already escaped Stop is a no-op.
type debounce struct {
	scheduler Scheduler
	handle    Timer
	token     uint64
}

func (d *debounce) arm(delay time.Duration, f func()) {
	d.cancel()
	token := d.token
	d.handle = d.scheduler.AfterFunc(delay, func() {
		if token != d.token {
			return
		}
		d.handle = nil
		f()
	})
}

func (d *debounce) cancel() {
	if d.handle != nil {
		d.handle.Stop()
		d.handle = nil
	}
	d.token++
}

func (d *debounce) pending() bool {
	return d.handle != nil
}

// VirtualScheduler is a Scheduler driven by explicit timestamps. Callbacks run
// synchronously from Advance in deadline order.
type VirtualScheduler struct {
	now    time.Time
	seq    uint64
	timers []*virtualTimer
}

type virtualTimer struct {
	owner    *VirtualScheduler
	deadline time.Time
	seq      uint64
	f        func()
	stopped  bool
}

func NewVirtualScheduler(start time.Time) *VirtualScheduler {
	return &VirtualScheduler{now: start}
}

func (s *VirtualScheduler) Now() time.Time {
	return s.now
}

func (s *VirtualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.seq++
	t := &virtualTimer{owner: s, deadline: s.now.Add(d), seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance fires every timer due at or before to, then moves the clock to to.
// Moving backwards is ignored.
func (s *VirtualScheduler) Advance(to time.Time) {
	for {
		next := s.nextDue(to)
		if next == nil {
			break
		}
		s.now = next.deadline
		next.stopped = true
		s.remove(next)
		next.f()
	}
	if to.After(s.now) {
		s.now = to
	}
}

// Pending reports the number of live timers.
func (s *VirtualScheduler) Pending() int {
	return len(s.timers)
}

func (s *VirtualScheduler) nextDue(to time.Time) *virtualTimer {
	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].deadline.Equal(s.timers[j].deadline) {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].deadline.Before(s.timers[j].deadline)
	})
	if len(s.timers) == 0 || s.timers[0].deadline.After(to) {
		return nil
	}
	return s.timers[0]
}

func (s *VirtualScheduler) remove(t *virtualTimer) {
	for i, candidate := range s.timers {
		if candidate == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

func (t *virtualTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.owner.remove(t)
	return true
}
