// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package nmea

import (
	"fmt"
	"math"
	"time"

	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

const knotsPerMeterPerSecond = 1.943844

// angle formats an absolute coordinate as (d)ddmm.mmmmm.
func angle(v float64, degDigits int) string {
	v = math.Abs(v)
	deg := math.Floor(v)
	min := math.Round((v-deg)*60*1e5) / 1e5
	if min >= 60 {
		deg++
		min -= 60
	}
	return fmt.Sprintf("%0*d%08.5f", degDigits, int(deg), min)
}

func latitude(v float64) (string, string) {
	if v < 0 {
		return angle(v, 2), "S"
	}
	return angle(v, 2), "N"
}

func longitude(v float64) (string, string) {
	if v < 0 {
		return angle(v, 3), "W"
	}
	return angle(v, 3), "E"
}

func fixed(v float64, prec int) string {
	if !telemetry.Finite(v) {
		return ""
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func fixTime(s telemetry.Solution) time.Time {
	if t, ok := s.UTC(); ok {
		return t
	}
	return s.Timestamp.UTC()
}

// GGA returns the $GPGGA sentence for s. ok is false when s carries no
// usable position.
func GGA(s telemetry.Solution) (Sentence, bool) {
	if !telemetry.Finite(s.Lat) || !telemetry.Finite(s.Lon) {
		return Sentence{}, false
	}
	lat, ns := latitude(s.Lat)
	lon, ew := longitude(s.Lon)

	quality := "0"
	if s.Valid() {
		quality = "1"
	}
	hdop := fixed(s.HDOP, 1)
	if hdop == "" {
		hdop = "99.0"
	}

	return Sentence{
		Type: "GPGGA",
		Data: []string{
			fixTime(s).Format("150405.000"),
			lat, ns, lon, ew,
			quality,
			fmt.Sprintf("%02d", s.ValidSats),
			hdop,
			fixed(s.Height, 2), "M",
			"0.0", "M",
			"", "",
		},
	}, true
}

// RMC returns the $GPRMC sentence for s. Speed and course are left empty
// when the solution has no horizontal velocity.
func RMC(s telemetry.Solution) (Sentence, bool) {
	if !telemetry.Finite(s.Lat) || !telemetry.Finite(s.Lon) {
		return Sentence{}, false
	}
	lat, ns := latitude(s.Lat)
	lon, ew := longitude(s.Lon)
	t := fixTime(s)

	status, mode := "V", "N"
	if s.Valid() {
		status, mode = "A", "A"
	}

	var speed, course string
	if telemetry.Finite(s.VelE) && telemetry.Finite(s.VelN) {
		speed = fixed(math.Hypot(s.VelE, s.VelN)*knotsPerMeterPerSecond, 2)
		deg := math.Atan2(s.VelE, s.VelN) * 180 / math.Pi
		if deg < 0 {
			deg += 360
		}
		course = fixed(deg, 2)
	}

	return Sentence{
		Type: "GPRMC",
		Data: []string{
			t.Format("150405.000"),
			status,
			lat, ns, lon, ew,
			speed, course,
			t.Format("020106"),
			"", "",
			mode,
		},
	}, true
}

// FromSolution returns the sentences describing s, in the order a receiver
// would emit them.
func FromSolution(s telemetry.Solution) []Sentence {
	var out []Sentence
	if gga, ok := GGA(s); ok {
		out = append(out, gga)
	}
	if rmc, ok := RMC(s); ok {
		out = append(out, rmc)
	}
	return out
}
