// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package chartpng

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/postmarketOS/gnss_monitor/internal/render"
	"gitlab.com/postmarketOS/gnss_monitor/internal/series"
	"gitlab.com/postmarketOS/gnss_monitor/internal/stats"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func decode(t *testing.T, p *Painter, name string) {
	t.Helper()
	b, ok := p.PNG(name)
	if !ok {
		t.Fatalf("no image for %q", name)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("%s: not a PNG: %v", name, err)
	}
	if got := img.Bounds().Dx(); got != p.Width {
		t.Errorf("%s: width %d, want %d", name, got, p.Width)
	}
	if got := img.Bounds().Dy(); got != p.Height {
		t.Errorf("%s: height %d, want %d", name, got, p.Height)
	}
}

func TestPaint(t *testing.T) {
	store := series.New(100)
	for i := 0; i < 20; i++ {
		ts := t0.Add(time.Duration(i) * time.Second)
		store.Append(series.CN0, "G1", ts, 40+float64(i%3), "C/N₀ G1 (Ch 0)")
		store.Append(series.CN0, "G5", ts, 35, "C/N₀ G5 (Ch 1)")
	}
	// one point is not enough for a line
	store.Append(series.Altitude, "alt", t0, 100, "Altitude")

	dir := t.TempDir()
	p := New(400, 200, dir)
	p.Paint(render.Frame{
		Charts: map[string][]series.Snapshot{
			series.CN0:      store.Snapshot(series.CN0, 600),
			series.Altitude: store.Snapshot(series.Altitude, 600),
		},
		MapDirty: true,
		Track: []render.TrackPoint{
			{T: t0, Lat: 52.5, Lon: 13.4},
			{T: t0.Add(time.Second), Lat: 52.5001, Lon: 13.4002},
		},
	})

	for _, name := range []string{series.CN0, series.Altitude, render.Map} {
		decode(t, p, name)
		if _, err := os.Stat(filepath.Join(dir, name+".png")); err != nil {
			t.Errorf("%s not written to disk: %v", name, err)
		}
	}
	if _, ok := p.PNG(series.Doppler); ok {
		t.Errorf("painted a channel that was not dirty")
	}
	if p.Frames() != 1 {
		t.Errorf("frames = %d", p.Frames())
	}
}

func TestReplaceHistogram(t *testing.T) {
	p := New(400, 200, "")
	r := stats.Compute([]float64{1, 1.2, 0.9, 1.1, 1.0}, stats.ProfileFor(series.Velocity, "vel_e"), 21, 1)
	p.ReplaceHistogram("vel_e", r)
	p.ReplaceHistogram("lat", stats.Compute(nil, stats.ProfileFor(series.Position, "lat"), 21, 1))

	decode(t, p, "hist_vel_e")
	decode(t, p, "hist_lat")

	names := p.Names()
	if len(names) != 2 || names[0] != "hist_lat" || names[1] != "hist_vel_e" {
		t.Errorf("names = %v", names)
	}
}

func TestFlatSeries(t *testing.T) {
	store := series.New(100)
	for i := 0; i < 5; i++ {
		store.Append(series.Velocity, "vel_u", t0.Add(time.Duration(i)*time.Second), 0, "Up")
	}
	p := New(300, 150, "")
	p.Paint(render.Frame{Charts: map[string][]series.Snapshot{series.Velocity: store.Snapshot(series.Velocity, 600)}})
	decode(t, p, series.Velocity)
}
