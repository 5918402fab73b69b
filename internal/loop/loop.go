// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package loop runs display state on a single goroutine. Everything that
// touches that state is a callback executed by the loop, so nothing in it
// needs a lock.
package loop

import (
	"context"
	"time"
)

// Host is the scheduling surface display components depend on.
type Host interface {
	Now() time.Time
	// ScheduleOnce runs fn on the loop after d. The returned function
	// cancels it if it has not run yet.
	ScheduleOnce(d time.Duration, fn func()) (cancel func())
	// ScheduleOnNextPresentation runs fn at the start of the next frame.
	// It must be called from the loop.
	ScheduleOnNextPresentation(fn func())
	// Post runs fn on the loop as soon as possible. It may be called from
	// any goroutine.
	Post(fn func())
}

type Loop struct {
	frame   time.Duration
	funcs   chan func()
	done    chan struct{}
	present []func()
}

// New returns a loop presenting a frame every frame interval.
func New(frame time.Duration) *Loop {
	if frame <= 0 {
		frame = time.Second / 60
	}
	return &Loop{
		frame: frame,
		funcs: make(chan func(), 256),
		done:  make(chan struct{}),
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

// Run executes callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.funcs:
			fn()
		case <-ticker.C:
			if len(l.present) == 0 {
				continue
			}
			queued := l.present
			l.present = nil
			for _, fn := range queued {
				fn()
			}
		}
	}
}

func (l *Loop) Post(fn func()) {
	select {
	case l.funcs <- fn:
	case <-l.done:
	}
}

func (l *Loop) ScheduleOnce(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return func() { t.Stop() }
}

func (l *Loop) ScheduleOnNextPresentation(fn func()) {
	l.present = append(l.present, fn)
}

// Call runs fn on the loop and waits for it to finish. It returns false if
// the loop has stopped.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	select {
	case l.funcs <- func() { fn(); close(finished) }:
	case <-l.done:
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}
