// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package decode

import (
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

// gnss_sdr.MonitorPvt field numbers
const (
	pvtTowMs          protowire.Number = 1
	pvtWeek           protowire.Number = 2
	pvtRxTime         protowire.Number = 3
	pvtPosX           protowire.Number = 5
	pvtPosY           protowire.Number = 6
	pvtPosZ           protowire.Number = 7
	pvtVelX           protowire.Number = 8
	pvtVelY           protowire.Number = 9
	pvtVelZ           protowire.Number = 10
	pvtLatitude       protowire.Number = 17
	pvtLongitude      protowire.Number = 18
	pvtHeight         protowire.Number = 19
	pvtValidSats      protowire.Number = 20
	pvtSolutionStatus protowire.Number = 21
	pvtSolutionType   protowire.Number = 22
	pvtGDOP           protowire.Number = 25
	pvtPDOP           protowire.Number = 26
	pvtHDOP           protowire.Number = 27
	pvtVDOP           protowire.Number = 28
	pvtUTCTime        protowire.Number = 30
	pvtVelE           protowire.Number = 31
	pvtVelN           protowire.Number = 32
	pvtVelU           protowire.Number = 33
)

// Solution decodes one MonitorPvt frame received at the given time. Fields
// the frame does not carry stay NaN.
func Solution(b []byte, received time.Time) (telemetry.Solution, error) {
	nan := math.NaN()
	s := telemetry.Solution{
		Timestamp: received,
		RxTime:    nan,
		Lat:       nan, Lon: nan, Height: nan,
		PosX: nan, PosY: nan, PosZ: nan,
		VelX: nan, VelY: nan, VelZ: nan,
		VelE: nan, VelN: nan, VelU: nan,
		GDOP: nan, PDOP: nan, HDOP: nan, VDOP: nan,
	}
	if len(b) == 0 {
		return s, &Error{Kind: Empty, Frame: "pvt"}
	}

	err := walk("pvt", b, func(f field) {
		switch f.num {
		case pvtTowMs:
			s.TowMs = f.uint32()
		case pvtWeek:
			s.Week = f.uint32()
		case pvtRxTime:
			s.RxTime = f.float()
		case pvtPosX:
			s.PosX = f.float()
		case pvtPosY:
			s.PosY = f.float()
		case pvtPosZ:
			s.PosZ = f.float()
		case pvtVelX:
			s.VelX = f.float()
		case pvtVelY:
			s.VelY = f.float()
		case pvtVelZ:
			s.VelZ = f.float()
		case pvtLatitude:
			s.Lat = f.float()
		case pvtLongitude:
			s.Lon = f.float()
		case pvtHeight:
			s.Height = f.float()
		case pvtValidSats:
			s.ValidSats = f.uint32()
		case pvtSolutionStatus:
			s.SolutionStatus = f.uint32()
		case pvtSolutionType:
			s.SolutionType = f.uint32()
		case pvtGDOP:
			s.GDOP = f.float()
		case pvtPDOP:
			s.PDOP = f.float()
		case pvtHDOP:
			s.HDOP = f.float()
		case pvtVDOP:
			s.VDOP = f.float()
		case pvtUTCTime:
			if t, ok := parseUTC(f.string()); ok {
				s.Timestamp = t
			}
		case pvtVelE:
			s.VelE = f.float()
		case pvtVelN:
			s.VelN = f.float()
		case pvtVelU:
			s.VelU = f.float()
		}
	})
	if err != nil {
		return telemetry.Solution{}, err
	}
	return s, nil
}
