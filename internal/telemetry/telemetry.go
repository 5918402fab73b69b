// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package telemetry holds the decoded receiver records and their JSON
// envelopes as exchanged between the hub and its subscribers.
package telemetry

import (
	"math"
	"strconv"
	"time"
)

const (
	TypeSolution     = "pvt"
	TypeObservations = "observables"
)

// Record is one decoded telemetry record. Records are never mutated after
// creation.
type Record interface {
	Type() string
	Time() time.Time
}

// Solution is one position/velocity/time fix. Float fields the producer did
// not send are NaN.
type Solution struct {
	Timestamp time.Time

	Week   uint32
	TowMs  uint32
	RxTime float64

	Lat    float64
	Lon    float64
	Height float64

	PosX, PosY, PosZ float64
	VelX, VelY, VelZ float64
	VelE, VelN, VelU float64

	GDOP, PDOP, HDOP, VDOP float64

	ValidSats      uint32
	SolutionStatus uint32
	SolutionType   uint32

	// Missing marks integer fields a subscriber message left out, which
	// would otherwise read as zero.
	Missing Fields
}

// Fields is a set of Solution integer fields.
type Fields uint8

const (
	FieldWeek Fields = 1 << iota
	FieldTowMs
	FieldValidSats
)

// Has reports whether the solution carries every field of f.
func (s Solution) Has(f Fields) bool { return s.Missing&f == 0 }

func (s Solution) Type() string    { return TypeSolution }
func (s Solution) Time() time.Time { return s.Timestamp }

// Valid reports whether the fix is usable: a non-zero status and at least
// four satellites.
func (s Solution) Valid() bool {
	return s.SolutionStatus != 0 && s.ValidSats >= 4
}

// UTC converts the GNSS week and time of week to UTC. ok is false when the
// producer sent neither.
func (s Solution) UTC() (t time.Time, ok bool) {
	if !s.Has(FieldWeek|FieldTowMs) || (s.Week == 0 && s.TowMs == 0) {
		return time.Time{}, false
	}
	return GPSTimeToUTC(s.Week, s.TowMs), true
}

// Observation is one tracked channel sample.
type Observation struct {
	Timestamp time.Time

	ChannelID int32
	System    string
	Signal    string
	// PRN is zero when the producer did not identify the satellite.
	PRN uint32

	CN0DbHz   float64
	DopplerHz float64
	ElDeg     float64
	AzDeg     float64
}

func (o Observation) Type() string    { return TypeObservations }
func (o Observation) Time() time.Time { return o.Timestamp }

// SeriesKey identifies the satellite signal across channel reassignment:
// system plus prn, or system plus channel id when the prn is missing.
func (o Observation) SeriesKey() string {
	sys := o.System
	if sys == "" {
		sys = "UNK"
	}
	if o.PRN != 0 {
		return sys + strconv.FormatUint(uint64(o.PRN), 10)
	}
	return sys + strconv.FormatInt(int64(o.ChannelID), 10)
}

// Finite is the single "is this a usable number" predicate used at every
// append boundary.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

const (
	secondsPerWeek = 604800
	gpsUTCOffset   = 18 * time.Second
)

// GPSTimeToUTC converts a GPS week and time of week in milliseconds into UTC
// using the current leap second offset.
func GPSTimeToUTC(week, towMs uint32) time.Time {
	gps := gpsEpoch.Add(time.Duration(week) * secondsPerWeek * time.Second).
		Add(time.Duration(towMs) * time.Millisecond)
	return gps.Add(-gpsUTCOffset)
}
