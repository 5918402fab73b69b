// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package stats computes rolling mean, standard deviation and deviation
// histograms over the series store.
package stats

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"gitlab.com/postmarketOS/gnss_monitor/internal/series"
	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

const (
	DefaultBins     = 21
	DefaultInterval = time.Second

	metresPerDegree = 111320
)

// Profile describes how one quantity is binned and printed.
type Profile struct {
	Unit         string
	MinRange     float64
	Decimals     int
	MeanDecimals int
	// Angular profiles are converted from degrees to metres before
	// binning; the mean stays in degrees.
	Angular bool
}

var (
	latLonProfile   = Profile{Unit: "m", MinRange: 0.1, Decimals: 2, MeanDecimals: 6, Angular: true}
	heightProfile   = Profile{Unit: "m", MinRange: 0.5, Decimals: 2, MeanDecimals: 2}
	velocityProfile = Profile{Unit: "m/s", MinRange: 0.05, Decimals: 2, MeanDecimals: 2}
	defaultProfile  = Profile{MinRange: 0.05, Decimals: 2, MeanDecimals: 2}
)

// ProfileFor returns the binning profile of a series.
func ProfileFor(family, key string) Profile {
	switch {
	case family == series.Position && (key == "lat" || key == "lon"):
		return latLonProfile
	case family == series.Position, family == series.Altitude:
		return heightProfile
	case family == series.Velocity:
		return velocityProfile
	case family == series.CN0:
		return Profile{Unit: "dB-Hz", MinRange: defaultProfile.MinRange, Decimals: 2, MeanDecimals: 2}
	case family == series.Doppler:
		return Profile{Unit: "Hz", MinRange: defaultProfile.MinRange, Decimals: 2, MeanDecimals: 2}
	}
	return defaultProfile
}

type Result struct {
	Family string
	Key    string
	Unit   string
	Count  int
	// Mean and Std are NaN when Count is zero. For latitude and longitude
	// the mean is in degrees and Std in metres.
	Mean float64
	Std  float64
	Bins []Bin

	meanDecimals int
	stdDecimals  int
}

func (r Result) Empty() bool { return r.Count == 0 }

// Summary renders "mean / std" the way the stats page shows it, "-" when
// there is nothing to show.
func (r Result) Summary() string {
	if !telemetry.Finite(r.Mean) {
		return "-"
	}
	m := strconv.FormatFloat(r.Mean, 'f', r.meanDecimals, 64)
	if !telemetry.Finite(r.Std) {
		return m + " / -"
	}
	return m + " / " + strconv.FormatFloat(r.Std, 'f', r.stdDecimals, 64)
}

func (r Result) MarshalJSON() ([]byte, error) {
	type view struct {
		Family  string   `json:"family"`
		Key     string   `json:"key"`
		Unit    string   `json:"unit,omitempty"`
		Count   int      `json:"count"`
		Mean    *float64 `json:"mean,omitempty"`
		Std     *float64 `json:"std,omitempty"`
		Summary string   `json:"summary"`
		Bins    []Bin    `json:"bins,omitempty"`
	}
	v := view{Family: r.Family, Key: r.Key, Unit: r.Unit, Count: r.Count, Summary: r.Summary(), Bins: r.Bins}
	if telemetry.Finite(r.Mean) {
		v.Mean = &r.Mean
	}
	if telemetry.Finite(r.Std) {
		v.Std = &r.Std
	}
	return json.Marshal(v)
}

func finiteOnly(values []float64) []float64 {
	out := values[:0:0]
	for _, v := range values {
		if telemetry.Finite(v) {
			out = append(out, v)
		}
	}
	return out
}

// Compute calculates the statistics of values under profile p. Angular
// deviations are multiplied by metresPerUnit before binning.
func Compute(values []float64, p Profile, bins int, metresPerUnit float64) Result {
	values = finiteOnly(values)
	r := Result{
		Unit:         p.Unit,
		Count:        len(values),
		Mean:         math.NaN(),
		Std:          math.NaN(),
		meanDecimals: p.MeanDecimals,
		stdDecimals:  p.Decimals,
	}
	if len(values) == 0 {
		return r
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	devs := make([]float64, len(values))
	copy(devs, values)
	floats.AddConst(-mean, devs)
	if p.Angular {
		floats.Scale(metresPerUnit, devs)
		// population std of the metric deviations around their zero mean
		std = math.Sqrt(floats.Dot(devs, devs) / float64(len(devs)))
	}

	r.Mean = mean
	r.Std = std
	r.Bins = Histogram(devs, bins, p.MinRange, p.Decimals)
	return r
}
