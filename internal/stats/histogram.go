// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package stats

import (
	"math"
	"strconv"
)

type Bin struct {
	Center float64 `json:"center"`
	Label  string  `json:"label"`
	Count  int     `json:"count"`
}

// Histogram bins deviations symmetrically around zero. The half width is the
// largest absolute deviation, but never less than minRange. Values on the
// upper edge land in the last bin, so the counts always add up to len(devs).
func Histogram(devs []float64, bins int, minRange float64, decimals int) []Bin {
	if len(devs) == 0 || bins <= 0 {
		return nil
	}

	var maxAbs float64
	for _, d := range devs {
		if a := math.Abs(d); a > maxAbs {
			maxAbs = a
		}
	}
	rng := math.Max(maxAbs, minRange)
	width := 2 * rng / float64(bins)

	out := make([]Bin, bins)
	for i := range out {
		center := -rng + width*(float64(i)+0.5)
		out[i] = Bin{Center: center, Label: label(center, decimals)}
	}

	for _, d := range devs {
		idx := int(math.Floor((d + rng) / width))
		if idx < 0 {
			idx = 0
		}
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

func label(v float64, decimals int) string {
	// keep the middle bin from printing as "-0.00"
	if math.Abs(v) < 0.5*math.Pow10(-decimals) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
