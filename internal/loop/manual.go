// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package loop

import (
	"sort"
	"time"
)

type timer struct {
	when      time.Time
	seq       int
	fn        func()
	cancelled bool
}

// Manual is a Host driven by hand: time only moves on Advance and frames
// are only presented on Present. It is not safe for concurrent use.
type Manual struct {
	now     time.Time
	seq     int
	timers  []*timer
	present []func()
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) ScheduleOnce(d time.Duration, fn func()) func() {
	m.seq++
	t := &timer{when: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return func() { t.cancelled = true }
}

func (m *Manual) ScheduleOnNextPresentation(fn func()) {
	m.present = append(m.present, fn)
}

// Post runs fn immediately.
func (m *Manual) Post(fn func()) { fn() }

// Advance moves the clock forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		t := m.next(target)
		if t == nil {
			break
		}
		m.now = t.when
		t.fn()
	}
	m.now = target
}

func (m *Manual) next(until time.Time) *timer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.timers = live
	if len(m.timers) == 0 {
		return nil
	}

	sort.Slice(m.timers, func(i, j int) bool {
		if m.timers[i].when.Equal(m.timers[j].when) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].when.Before(m.timers[j].when)
	})
	t := m.timers[0]
	if t.when.After(until) {
		return nil
	}
	m.timers = m.timers[1:]
	return t
}

// Present runs the callbacks queued for the next frame and returns how many
// ran. Callbacks queued while presenting wait for the following frame.
func (m *Manual) Present() int {
	queued := m.present
	m.present = nil
	for _, fn := range queued {
		fn()
	}
	return len(queued)
}

// Timers returns the number of pending timers.
func (m *Manual) Timers() int {
	n := 0
	for _, t := range m.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Presentations returns the number of callbacks waiting for the next frame.
func (m *Manual) Presentations() int { return len(m.present) }

// Call runs fn right away.
func (m *Manual) Call(fn func()) bool {
	fn()
	return true
}
