// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package series

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const DefaultCapacity = 3000

type Store struct {
	capacity int
	families *orderedmap.OrderedMap[string, *Family]

	// RequestRender is told about every family that changed.
	RequestRender func(family string)
}

// New returns a store with the five chart families and the given shared
// capacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		capacity: capacity,
		families: orderedmap.New[string, *Family](),
	}
	for _, f := range []*Family{
		newFamily(Altitude, false),
		newFamily(CN0, true),
		newFamily(Doppler, true),
		newFamily(Position, false),
		newFamily(Velocity, false),
	} {
		s.families.Set(f.Name, f)
	}
	return s
}

func (s *Store) Capacity() int { return s.capacity }

// Families returns the family names in chart order.
func (s *Store) Families() []string {
	out := make([]string, 0, s.families.Len())
	for pair := s.families.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (s *Store) Family(name string) (*Family, bool) {
	return s.families.Get(name)
}

func (s *Store) requestRender(family string) {
	if s.RequestRender != nil {
		s.RequestRender(family)
	}
}

// Append adds a point to a family's series, creating the series with label
// on first use. Values the family does not accept are dropped and false is
// returned.
func (s *Store) Append(family, key string, t time.Time, y float64, label string) bool {
	f, ok := s.families.Get(family)
	if !ok || !f.accepts(y) {
		return false
	}

	sr, ok := f.series.Get(key)
	if !ok {
		if label == "" {
			label = key
		}
		sr = &Series{
			Key:   key,
			Label: label,
			Color: Palette[f.series.Len()%len(Palette)],
		}
		f.series.Set(key, sr)
	}

	sr.points = append(sr.points, Point{T: t, Y: y})
	sr.trim(s.capacity)
	s.requestRender(family)
	return true
}

// SetCapacity changes the shared capacity and trims every series right away.
// Every family is marked for redraw, even when nothing was trimmed.
func (s *Store) SetCapacity(n int) {
	if n <= 0 {
		return
	}
	s.capacity = n
	for pair := s.families.Oldest(); pair != nil; pair = pair.Next() {
		for sp := pair.Value.series.Oldest(); sp != nil; sp = sp.Next() {
			sp.Value.trim(n)
		}
	}
	for _, name := range s.Families() {
		s.requestRender(name)
	}
}

func (s *Store) Series(family, key string) (*Series, bool) {
	f, ok := s.families.Get(family)
	if !ok {
		return nil, false
	}
	return f.series.Get(key)
}

// Points returns a copy of the newest lastN points of one series.
func (s *Store) Points(family, key string, lastN int) []Point {
	sr, ok := s.Series(family, key)
	if !ok {
		return nil
	}
	return sr.Last(lastN)
}

// Values returns the finite values of one series, nil if it does not exist.
func (s *Store) Values(family, key string) []float64 {
	sr, ok := s.Series(family, key)
	if !ok {
		return nil
	}
	return sr.Values()
}

// Snapshot is a copy of one series, safe to hand to a painter.
type Snapshot struct {
	Key    string
	Label  string
	Color  Color
	Points []Point
}

// Snapshot copies the newest lastN points of every series in a family.
func (s *Store) Snapshot(family string, lastN int) []Snapshot {
	f, ok := s.families.Get(family)
	if !ok {
		return nil
	}
	out := make([]Snapshot, 0, f.series.Len())
	for pair := f.series.Oldest(); pair != nil; pair = pair.Next() {
		sr := pair.Value
		out = append(out, Snapshot{
			Key:    sr.Key,
			Label:  sr.Label,
			Color:  sr.Color,
			Points: sr.Last(lastN),
		})
	}
	return out
}
