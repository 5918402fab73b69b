// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package stats

import (
	"math"
	"time"

	"gitlab.com/postmarketOS/gnss_monitor/internal/series"
)

// Target is one histogram on the stats page.
type Target struct {
	Name   string
	Family string
	Key    string
}

// Targets are recomputed on every Update, in this order.
var Targets = []Target{
	{"lat", series.Position, "lat"},
	{"lon", series.Position, "lon"},
	{"alt", series.Position, "alt"},
	{"vel_e", series.Velocity, "vel_e"},
	{"vel_n", series.Velocity, "vel_n"},
	{"vel_u", series.Velocity, "vel_u"},
}

// HistogramSink receives the replacement data of a histogram.
type HistogramSink interface {
	ReplaceHistogram(target string, r Result)
}

// Engine must be used from the goroutine that owns the store.
type Engine struct {
	store    *series.Store
	now      func() time.Time
	interval time.Duration
	bins     int
	sink     HistogramSink

	last    time.Time
	updates int
	latest  map[string]Result
}

func NewEngine(store *series.Store, now func() time.Time, interval time.Duration, bins int, sink HistogramSink) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	return &Engine{
		store:    store,
		now:      now,
		interval: interval,
		bins:     bins,
		sink:     sink,
		latest:   make(map[string]Result),
	}
}

// ComputeStats returns the statistics of one series. A missing or empty
// series yields an empty result.
func (e *Engine) ComputeStats(family, key string) Result {
	p := ProfileFor(family, key)
	scale := 1.0
	if p.Angular {
		scale = metresPerDegree
		if key == "lon" {
			scale *= math.Cos(e.meanLatitude() * math.Pi / 180)
		}
	}
	r := Compute(e.store.Values(family, key), p, e.bins, scale)
	r.Family = family
	r.Key = key
	return r
}

func (e *Engine) meanLatitude() float64 {
	lat := finiteOnly(e.store.Values(series.Position, "lat"))
	if len(lat) == 0 {
		return 0
	}
	var sum float64
	for _, v := range lat {
		sum += v
	}
	return sum / float64(len(lat))
}

// Update recomputes every target and hands the histograms to the sink. It
// does nothing if the last update is more recent than the interval, unless
// force is set. It reports whether it recomputed.
func (e *Engine) Update(force bool) bool {
	now := e.now()
	if !force && e.updates > 0 && now.Sub(e.last) < e.interval {
		return false
	}
	e.last = now
	e.updates++

	for _, t := range Targets {
		r := e.ComputeStats(t.Family, t.Key)
		e.latest[t.Name] = r
		if e.sink != nil {
			e.sink.ReplaceHistogram(t.Name, r)
		}
	}
	return true
}

// Latest returns the results of the last Update, in target order.
func (e *Engine) Latest() []Result {
	out := make([]Result, 0, len(Targets))
	for _, t := range Targets {
		if r, ok := e.latest[t.Name]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) Updates() int { return e.updates }

// Samples returns the largest sample count among a family's targets.
func (e *Engine) Samples(family string) int {
	n := 0
	for _, t := range Targets {
		if r, ok := e.latest[t.Name]; ok && t.Family == family && r.Count > n {
			n = r.Count
		}
	}
	return n
}
