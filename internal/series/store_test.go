// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package series

import (
	"math"
	"strconv"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(i int) time.Time { return t0.Add(time.Duration(i) * time.Second) }

func TestAppendFiltering(t *testing.T) {
	tables := []struct {
		family string
		y      float64
		want   bool
	}{
		{CN0, 42.5, true},
		{CN0, 0, false},
		{CN0, -3, false},
		{CN0, math.NaN(), false},
		{CN0, math.Inf(1), false},
		{Doppler, 1500, true},
		{Doppler, -1500, false},
		{Position, 0, true},
		{Velocity, -0.3, true},
		{Velocity, math.NaN(), false},
		{Altitude, -12, true},
		{"nope", 1, false},
	}

	for _, table := range tables {
		s := New(10)
		got := s.Append(table.family, "k", t0, table.y, "")
		if got != table.want {
			t.Errorf("Append(%s, %v) = %v, want %v", table.family, table.y, got, table.want)
		}
		n := len(s.Points(table.family, "k", 0))
		if (n == 1) != table.want {
			t.Errorf("Append(%s, %v) left %d points", table.family, table.y, n)
		}
	}
}

func TestCapacityKeepsNewest(t *testing.T) {
	s := New(3000)
	for i := 0; i < 5000; i++ {
		s.Append(CN0, "G12", at(i), float64(i+1), "")
	}

	pts := s.Points(CN0, "G12", 0)
	if len(pts) != 3000 {
		t.Fatalf("len = %d, want 3000", len(pts))
	}
	for i, p := range pts {
		if want := float64(2000 + i + 1); p.Y != want {
			t.Fatalf("point %d = %v, want %v", i, p.Y, want)
		}
	}
}

func TestSetCapacityTrimsEverySeries(t *testing.T) {
	s := New(3000)
	var dirty []string
	for i := 0; i < 200; i++ {
		s.Append(CN0, "G1", at(i), 40, "")
		s.Append(Doppler, "G1", at(i), 100, "")
		s.Append(Position, "lat", at(i), 52.1, "Latitude")
		s.Append(Altitude, "alt", at(i), 30, "")
	}
	s.RequestRender = func(f string) { dirty = append(dirty, f) }

	s.SetCapacity(50)

	for _, f := range s.Families() {
		fam, _ := s.Family(f)
		for _, sr := range fam.Series() {
			if sr.Len() > 50 {
				t.Errorf("%s/%s has %d points", f, sr.Key, sr.Len())
			}
		}
	}
	if len(dirty) != 5 {
		t.Errorf("render requested for %v, want every family", dirty)
	}
	if got := s.Points(Position, "lat", 0); got[len(got)-1].T != at(199) {
		t.Errorf("newest point lost")
	}

	s.SetCapacity(1000)
	s.Append(CN0, "G1", at(500), 41, "")
	if n := len(s.Points(CN0, "G1", 0)); n != 51 {
		t.Errorf("len after raising capacity = %d, want 51", n)
	}
}

func TestSeriesIdentity(t *testing.T) {
	s := New(100)
	// same satellite on two channels shares one series
	s.Append(CN0, "G12", at(0), 40, ChannelLabel("C/N₀", "G12", 3))
	s.Append(CN0, "G12", at(1), 41, ChannelLabel("C/N₀", "G12", 7))
	s.Append(CN0, "E5", at(1), 38, ChannelLabel("C/N₀", "E5", 4))

	fam, _ := s.Family(CN0)
	if fam.Len() != 2 {
		t.Fatalf("family has %d series, want 2", fam.Len())
	}
	sr, _ := s.Series(CN0, "G12")
	if sr.Len() != 2 {
		t.Errorf("G12 has %d points, want 2", sr.Len())
	}
	if sr.Label != "C/N₀ G12 (Ch 3)" {
		t.Errorf("label = %q", sr.Label)
	}
}

func TestPaletteCycles(t *testing.T) {
	s := New(10)
	for i := 0; i < 12; i++ {
		s.Append(Doppler, "G"+strconv.Itoa(i), t0, 1, "")
	}
	fam, _ := s.Family(Doppler)
	all := fam.Series()
	for i, sr := range all {
		if sr.Key != "G"+strconv.Itoa(i) {
			t.Errorf("series %d is %q, order not preserved", i, sr.Key)
		}
		if sr.Color != Palette[i%len(Palette)] {
			t.Errorf("series %d color %s", i, sr.Color)
		}
	}
	if all[10].Color != all[0].Color {
		t.Errorf("eleventh series should reuse the first color")
	}
	if Palette[0].String() != "rgb(34,197,94)" {
		t.Errorf("palette[0] = %s", Palette[0])
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(100)
	for i := 0; i < 10; i++ {
		s.Append(Velocity, "vel_e", at(i), float64(i), "East")
	}
	snap := s.Snapshot(Velocity, 4)
	if len(snap) != 1 || len(snap[0].Points) != 4 || snap[0].Points[0].Y != 6 {
		t.Fatalf("snapshot = %+v", snap)
	}
	snap[0].Points[0].Y = 100
	if s.Points(Velocity, "vel_e", 4)[0].Y != 6 {
		t.Errorf("snapshot aliases the store")
	}
	if s.Values(Velocity, "missing") != nil {
		t.Errorf("values of a missing series")
	}
}
