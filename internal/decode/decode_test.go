// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package decode

import (
	"errors"
	"math"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func synchroFrame(system string, prn uint32, channel int32, fs int64, cn0, doppler float64) []byte {
	var b []byte
	b = appendString(b, synSystem, system)
	b = appendString(b, synSignal, "1C")
	b = appendUvarint(b, synPRN, uint64(prn))
	b = appendUvarint(b, synChannelID, uint64(channel))
	b = appendUvarint(b, synFs, uint64(fs))
	b = appendDouble(b, synCN0, cn0)
	b = appendDouble(b, synDoppler, doppler)
	return b
}

func TestSolution(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	var b []byte
	b = appendUvarint(b, pvtTowMs, 345000)
	b = appendUvarint(b, pvtWeek, 2300)
	b = appendDouble(b, pvtLatitude, 52.5)
	b = appendDouble(b, pvtLongitude, 13.4)
	b = appendDouble(b, pvtHeight, 34.25)
	b = appendUvarint(b, pvtValidSats, 7)
	b = appendUvarint(b, pvtSolutionStatus, 1)
	b = appendDouble(b, pvtHDOP, 0.9)
	b = appendDouble(b, pvtVelE, -0.25)
	// unknown field, must be skipped
	b = appendUvarint(b, 99, 1)

	s, err := Solution(b, now)
	if err != nil {
		t.Fatalf("Solution(): %v", err)
	}
	if s.TowMs != 345000 || s.Week != 2300 {
		t.Errorf("week/tow = %d/%d", s.Week, s.TowMs)
	}
	if s.Lat != 52.5 || s.Lon != 13.4 || s.Height != 34.25 {
		t.Errorf("position = %v %v %v", s.Lat, s.Lon, s.Height)
	}
	if s.HDOP != 0.9 || s.VelE != -0.25 {
		t.Errorf("hdop/vel_e = %v %v", s.HDOP, s.VelE)
	}
	if !s.Valid() {
		t.Errorf("expected valid fix")
	}
	if !math.IsNaN(s.VelN) || !math.IsNaN(s.PDOP) {
		t.Errorf("absent fields should be NaN, got vel_n=%v pdop=%v", s.VelN, s.PDOP)
	}
	if !s.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want arrival time %v", s.Timestamp, now)
	}
}

func TestSolutionUTCTime(t *testing.T) {
	b := appendString(nil, pvtUTCTime, "2023-06-01T10:20:30.5Z")
	s, err := Solution(b, time.Now())
	if err != nil {
		t.Fatalf("Solution(): %v", err)
	}
	want := time.Date(2023, 6, 1, 10, 20, 30, 500000000, time.UTC)
	if !s.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", s.Timestamp, want)
	}
}

func TestSolutionErrors(t *testing.T) {
	full := appendDouble(nil, pvtLatitude, 52.5)
	tests := []struct {
		name  string
		frame []byte
		kind  Kind
	}{
		{"empty", nil, Empty},
		{"truncated double", full[:len(full)-3], Truncated},
		{"truncated tag", []byte{0x80}, Truncated},
		{"field number zero", []byte{0x00, 0x01}, Malformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Solution(tc.frame, time.Now())
			var de *Error
			if !errors.As(err, &de) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if de.Kind != tc.kind {
				t.Errorf("kind = %s, want %s", de.Kind, tc.kind)
			}
		})
	}
}

func TestObservations(t *testing.T) {
	now := time.Now()

	var b []byte
	b = protowire.AppendTag(b, obsObservable, protowire.BytesType)
	b = protowire.AppendBytes(b, synchroFrame("G", 12, 3, 4000000, 42.5, -1234.5))
	// idle channel
	b = protowire.AppendTag(b, obsObservable, protowire.BytesType)
	b = protowire.AppendBytes(b, synchroFrame("G", 0, 4, 0, 0, 0))
	b = protowire.AppendTag(b, obsObservable, protowire.BytesType)
	b = protowire.AppendBytes(b, synchroFrame("E", 7, -1, 4000000, 38, 50))

	obs, err := Observations(b, now)
	if err != nil {
		t.Fatalf("Observations(): %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("got %d observations, want 2", len(obs))
	}
	if o := obs[0]; o.System != "G" || o.PRN != 12 || o.ChannelID != 3 || o.CN0DbHz != 42.5 || o.DopplerHz != -1234.5 {
		t.Errorf("first observation = %+v", o)
	}
	if o := obs[1]; o.System != "E" || o.ChannelID != -1 || o.Signal != "1C" {
		t.Errorf("second observation = %+v", o)
	}
	if !math.IsNaN(obs[0].ElDeg) {
		t.Errorf("absent elevation should be NaN")
	}
}

func TestObservationsTruncatedEntry(t *testing.T) {
	entry := synchroFrame("G", 12, 3, 4000000, 42.5, 10)
	var b []byte
	b = protowire.AppendTag(b, obsObservable, protowire.BytesType)
	b = protowire.AppendBytes(b, entry[:len(entry)-2])

	_, err := Observations(b, time.Now())
	var de *Error
	if !errors.As(err, &de) || de.Kind != Truncated {
		t.Fatalf("expected truncated error, got %v", err)
	}
}
