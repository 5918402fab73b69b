// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package decode

import (
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

// gnss_sdr.Observables / gnss_sdr.GnssSynchro field numbers
const (
	obsObservable protowire.Number = 1

	synSystem    protowire.Number = 1
	synSignal    protowire.Number = 2
	synPRN       protowire.Number = 3
	synChannelID protowire.Number = 4
	synFs        protowire.Number = 10
	synCN0       protowire.Number = 13
	synDoppler   protowire.Number = 14
	synElevation protowire.Number = 27
	synAzimuth   protowire.Number = 28
)

// Observations decodes one Observables frame into per-channel samples, in
// frame order. Channels reporting a zero sampling frequency are idle and
// are left out.
func Observations(b []byte, received time.Time) ([]telemetry.Observation, error) {
	if len(b) == 0 {
		return nil, &Error{Kind: Empty, Frame: "observables"}
	}

	var (
		out    []telemetry.Observation
		nested error
	)
	err := walk("observables", b, func(f field) {
		if f.num != obsObservable || f.typ != protowire.BytesType || nested != nil {
			return
		}
		o, fs, err := synchro(f.b, received)
		if err != nil {
			nested = err
			return
		}
		if fs == 0 {
			return
		}
		out = append(out, o)
	})
	if err != nil {
		return nil, err
	}
	if nested != nil {
		return nil, nested
	}
	return out, nil
}

func synchro(b []byte, received time.Time) (o telemetry.Observation, fs int64, err error) {
	nan := math.NaN()
	o = telemetry.Observation{
		Timestamp: received,
		CN0DbHz:   nan,
		DopplerHz: nan,
		ElDeg:     nan,
		AzDeg:     nan,
	}

	err = walk("observables", b, func(f field) {
		switch f.num {
		case synSystem:
			o.System = f.string()
		case synSignal:
			o.Signal = f.string()
		case synPRN:
			o.PRN = f.uint32()
		case synChannelID:
			o.ChannelID = f.int32()
		case synFs:
			fs = f.int64()
		case synCN0:
			o.CN0DbHz = f.float()
		case synDoppler:
			o.DopplerHz = f.float()
		case synElevation:
			o.ElDeg = f.float()
		case synAzimuth:
			o.AzDeg = f.float()
		}
	})
	return
}
