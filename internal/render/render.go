// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render coalesces redraw requests into paints no closer together
// than a minimum spacing, each aligned to a presented frame.
package render

import (
	"sort"
	"time"

	"gitlab.com/postmarketOS/gnss_monitor/internal/loop"
	"gitlab.com/postmarketOS/gnss_monitor/internal/series"
)

const (
	// Map is the channel of the track map; every other channel is a
	// series family.
	Map = "map"

	DefaultSpacing = 500 * time.Millisecond
	DefaultPoints  = 600
)

// Channels lists every channel in paint order.
var Channels = []string{series.Altitude, series.CN0, series.Doppler, series.Position, series.Velocity, Map}

type TrackPoint struct {
	T   time.Time
	Lat float64
	Lon float64
}

// Frame is everything one paint redraws. Only dirty channels are present.
type Frame struct {
	Seq    int
	At     time.Time
	Charts map[string][]series.Snapshot
	// Track is set when the map is dirty.
	Track    []TrackPoint
	MapDirty bool
}

// Dirty returns the channels of the frame in paint order.
func (f Frame) Dirty() []string {
	var out []string
	for _, c := range Channels {
		if _, ok := f.Charts[c]; ok || (c == Map && f.MapDirty) {
			out = append(out, c)
		}
	}
	return out
}

type Painter interface {
	Paint(f Frame)
}

// Scheduler must only be used from the host's loop.
type Scheduler struct {
	host    loop.Host
	store   *series.Store
	track   func() []TrackPoint
	painter Painter
	spacing time.Duration
	points  int

	dirty     map[string]bool
	pending   bool
	lastPaint time.Time
	paints    int
}

// New returns a scheduler painting the store's families and, for the map
// channel, whatever track returns.
func New(host loop.Host, store *series.Store, track func() []TrackPoint, painter Painter, spacing time.Duration, points int) *Scheduler {
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	if points <= 0 {
		points = DefaultPoints
	}
	return &Scheduler{
		host:    host,
		store:   store,
		track:   track,
		painter: painter,
		spacing: spacing,
		points:  points,
		dirty:   make(map[string]bool),
	}
}

// RequestRender marks channel dirty and makes sure a paint is on its way.
// Requests made before that paint join it.
func (s *Scheduler) RequestRender(channel string) {
	s.dirty[channel] = true
	if s.pending {
		return
	}
	s.pending = true

	wait := time.Duration(0)
	if s.paints > 0 {
		wait = s.spacing - s.host.Now().Sub(s.lastPaint)
	}
	if wait > 0 {
		s.host.ScheduleOnce(wait, s.arm)
		return
	}
	s.arm()
}

// RequestAll marks every channel dirty.
func (s *Scheduler) RequestAll() {
	for _, c := range Channels {
		s.RequestRender(c)
	}
}

func (s *Scheduler) arm() {
	s.host.ScheduleOnNextPresentation(s.paint)
}

func (s *Scheduler) paint() {
	dirty := s.dirty
	s.dirty = make(map[string]bool)
	s.pending = false
	s.lastPaint = s.host.Now()
	s.paints++

	f := Frame{
		Seq:    s.paints,
		At:     s.lastPaint,
		Charts: make(map[string][]series.Snapshot),
	}
	names := make([]string, 0, len(dirty))
	for c := range dirty {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		if c == Map {
			f.MapDirty = true
			if s.track != nil {
				f.Track = s.track()
			}
			continue
		}
		f.Charts[c] = s.store.Snapshot(c, s.points)
	}

	if s.painter != nil {
		s.painter.Paint(f)
	}
}

// Paints returns how many frames have been painted.
func (s *Scheduler) Paints() int { return s.paints }

// Pending reports whether a paint is scheduled.
func (s *Scheduler) Pending() bool { return s.pending }
