// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package series keeps the bounded per-quantity history behind every chart.
// A Store is owned by one goroutine and is not safe for concurrent use.
package series

import (
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

// Chart families.
const (
	Altitude = "altitude"
	CN0      = "cn0"
	Doppler  = "doppler"
	Position = "position"
	Velocity = "velocity"
)

type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Palette is handed out round robin; the eleventh series of a family shares
// the first one's color.
var Palette = []Color{
	{34, 197, 94},
	{56, 189, 248},
	{234, 179, 8},
	{249, 115, 22},
	{168, 85, 247},
	{244, 114, 182},
	{45, 212, 191},
	{74, 222, 128},
	{96, 165, 250},
	{251, 113, 133},
}

type Point struct {
	T time.Time
	Y float64
}

type Series struct {
	Key   string
	Label string
	Color Color

	points []Point
}

func (s *Series) Len() int { return len(s.points) }

// Last returns a copy of the newest n points, all of them when n <= 0.
func (s *Series) Last(n int) []Point {
	start := 0
	if n > 0 && n < len(s.points) {
		start = len(s.points) - n
	}
	out := make([]Point, len(s.points)-start)
	copy(out, s.points[start:])
	return out
}

// Values returns the finite values in arrival order.
func (s *Series) Values() []float64 {
	out := make([]float64, 0, len(s.points))
	for _, p := range s.points {
		if telemetry.Finite(p.Y) {
			out = append(out, p.Y)
		}
	}
	return out
}

func (s *Series) trim(capacity int) {
	excess := len(s.points) - capacity
	if excess <= 0 {
		return
	}
	if cap(s.points) > 2*capacity {
		kept := make([]Point, capacity, capacity+capacity/2)
		copy(kept, s.points[excess:])
		s.points = kept
		return
	}
	s.points = s.points[excess:]
}

// Family is the set of series drawn on one chart, in first-seen order.
type Family struct {
	Name string
	// PerChannel families hold one series per tracked signal and reject
	// values <= 0.
	PerChannel bool

	series *orderedmap.OrderedMap[string, *Series]
}

func newFamily(name string, perChannel bool) *Family {
	return &Family{
		Name:       name,
		PerChannel: perChannel,
		series:     orderedmap.New[string, *Series](),
	}
}

func (f *Family) Len() int { return f.series.Len() }

func (f *Family) Get(key string) (*Series, bool) {
	return f.series.Get(key)
}

// Series returns the family's series in first-seen order.
func (f *Family) Series() []*Series {
	out := make([]*Series, 0, f.series.Len())
	for pair := f.series.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

func (f *Family) accepts(y float64) bool {
	if !telemetry.Finite(y) {
		return false
	}
	return !f.PerChannel || y > 0
}

// ChannelLabel names a per-channel series, e.g. "C/N₀ G12 (Ch 3)".
func ChannelLabel(prefix, key string, channel int32) string {
	return fmt.Sprintf("%s %s (Ch %d)", prefix, key, channel)
}
