// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Envelope is the wire shape of one record on the subscriber protocol.
// Non-finite numbers are left out.
type Envelope struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`

	// pvt
	Week           *uint32  `json:"week,omitempty"`
	TowMs          *uint32  `json:"tow_ms,omitempty"`
	RxTime         *float64 `json:"rx_time,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	PosX           *float64 `json:"pos_x,omitempty"`
	PosY           *float64 `json:"pos_y,omitempty"`
	PosZ           *float64 `json:"pos_z,omitempty"`
	VelX           *float64 `json:"vel_x,omitempty"`
	VelY           *float64 `json:"vel_y,omitempty"`
	VelZ           *float64 `json:"vel_z,omitempty"`
	VelE           *float64 `json:"vel_e,omitempty"`
	VelN           *float64 `json:"vel_n,omitempty"`
	VelU           *float64 `json:"vel_u,omitempty"`
	ValidSats      *uint32  `json:"valid_sats,omitempty"`
	SolutionStatus *uint32  `json:"solution_status,omitempty"`
	SolutionType   *uint32  `json:"solution_type,omitempty"`
	GDOP           *float64 `json:"gdop,omitempty"`
	PDOP           *float64 `json:"pdop,omitempty"`
	HDOP           *float64 `json:"hdop,omitempty"`
	VDOP           *float64 `json:"vdop,omitempty"`

	// observables
	System    string   `json:"system,omitempty"`
	Signal    string   `json:"signal,omitempty"`
	ChannelID *int32   `json:"channel_id,omitempty"`
	PRN       *uint32  `json:"prn,omitempty"`
	CN0DbHz   *float64 `json:"cn0_db_hz,omitempty"`
	DopplerHz *float64 `json:"doppler_hz,omitempty"`
	ElDeg     *float64 `json:"el_deg,omitempty"`
	AzDeg     *float64 `json:"az_deg,omitempty"`
}

func num(v float64) *float64 {
	if !Finite(v) {
		return nil
	}
	return &v
}

func u32(v uint32) *uint32 { return &v }

func present(s Solution, f Fields, v uint32) *uint32 {
	if !s.Has(f) {
		return nil
	}
	return &v
}

func missing(p *uint32, f Fields) Fields {
	if p == nil {
		return f
	}
	return 0
}

func val(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func uval(p *uint32) uint32 {
	if p == nil {
		return 0
	}
	return *p
}

// NewEnvelope builds the wire envelope for a record.
func NewEnvelope(r Record) Envelope {
	switch rec := r.(type) {
	case Solution:
		return Envelope{
			Type:           TypeSolution,
			Timestamp:      rec.Timestamp.UTC().Format(time.RFC3339Nano),
			Week:           present(rec, FieldWeek, rec.Week),
			TowMs:          present(rec, FieldTowMs, rec.TowMs),
			RxTime:         num(rec.RxTime),
			Lat:            num(rec.Lat),
			Lon:            num(rec.Lon),
			Height:         num(rec.Height),
			PosX:           num(rec.PosX),
			PosY:           num(rec.PosY),
			PosZ:           num(rec.PosZ),
			VelX:           num(rec.VelX),
			VelY:           num(rec.VelY),
			VelZ:           num(rec.VelZ),
			VelE:           num(rec.VelE),
			VelN:           num(rec.VelN),
			VelU:           num(rec.VelU),
			ValidSats:      present(rec, FieldValidSats, rec.ValidSats),
			SolutionStatus: u32(rec.SolutionStatus),
			SolutionType:   u32(rec.SolutionType),
			GDOP:           num(rec.GDOP),
			PDOP:           num(rec.PDOP),
			HDOP:           num(rec.HDOP),
			VDOP:           num(rec.VDOP),
		}
	case Observation:
		e := Envelope{
			Type:      TypeObservations,
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339Nano),
			System:    rec.System,
			Signal:    rec.Signal,
			ChannelID: &rec.ChannelID,
			CN0DbHz:   num(rec.CN0DbHz),
			DopplerHz: num(rec.DopplerHz),
			ElDeg:     num(rec.ElDeg),
			AzDeg:     num(rec.AzDeg),
		}
		if rec.PRN != 0 {
			e.PRN = u32(rec.PRN)
		}
		return e
	}
	return Envelope{}
}

// Record converts the envelope back into a record. ok is false for unknown
// envelope types, which receivers ignore.
func (e Envelope) Record() (r Record, ok bool) {
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		ts = time.Now()
	}

	switch e.Type {
	case TypeSolution:
		return Solution{
			Timestamp:      ts,
			Week:           uval(e.Week),
			TowMs:          uval(e.TowMs),
			RxTime:         val(e.RxTime),
			Lat:            val(e.Lat),
			Lon:            val(e.Lon),
			Height:         val(e.Height),
			PosX:           val(e.PosX),
			PosY:           val(e.PosY),
			PosZ:           val(e.PosZ),
			VelX:           val(e.VelX),
			VelY:           val(e.VelY),
			VelZ:           val(e.VelZ),
			VelE:           val(e.VelE),
			VelN:           val(e.VelN),
			VelU:           val(e.VelU),
			ValidSats:      uval(e.ValidSats),
			SolutionStatus: uval(e.SolutionStatus),
			SolutionType:   uval(e.SolutionType),
			GDOP:           val(e.GDOP),
			PDOP:           val(e.PDOP),
			HDOP:           val(e.HDOP),
			VDOP:           val(e.VDOP),
			Missing: missing(e.Week, FieldWeek) |
				missing(e.TowMs, FieldTowMs) |
				missing(e.ValidSats, FieldValidSats),
		}, true
	case TypeObservations:
		o := Observation{
			Timestamp: ts,
			System:    e.System,
			Signal:    e.Signal,
			PRN:       uval(e.PRN),
			CN0DbHz:   val(e.CN0DbHz),
			DopplerHz: val(e.DopplerHz),
			ElDeg:     val(e.ElDeg),
			AzDeg:     val(e.AzDeg),
		}
		if e.ChannelID != nil {
			o.ChannelID = *e.ChannelID
		}
		return o, true
	}
	return nil, false
}

// Marshal serialises one record as a single envelope.
func Marshal(r Record) ([]byte, error) {
	b, err := json.Marshal(NewEnvelope(r))
	if err != nil {
		return nil, fmt.Errorf("telemetry.Marshal(): %w", err)
	}
	return b, nil
}

// MarshalObservations serialises a batch of observations as an array of
// envelopes.
func MarshalObservations(obs []Observation) ([]byte, error) {
	envs := make([]Envelope, 0, len(obs))
	for _, o := range obs {
		envs = append(envs, NewEnvelope(o))
	}
	b, err := json.Marshal(envs)
	if err != nil {
		return nil, fmt.Errorf("telemetry.MarshalObservations(): %w", err)
	}
	return b, nil
}

// UnmarshalJSON decodes an envelope leniently: a field holding the wrong
// JSON type is treated as absent and the remaining fields still apply.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	type plain Envelope
	if err := json.Unmarshal(b, (*plain)(e)); err == nil {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*e = Envelope{}
	for k, v := range fields {
		one, err := json.Marshal(map[string]json.RawMessage{k: v})
		if err != nil {
			continue
		}
		// a mistyped field stays nil
		json.Unmarshal(one, (*plain)(e))
	}
	return nil
}

// Parse decodes a subscriber message: either one envelope or an array of
// envelopes, expanded element-wise in order. Array elements that are not
// envelopes are skipped and counted; unknown envelope types are skipped
// silently. err is only set when the message as a whole is unusable.
func Parse(msg []byte) (records []Record, skipped int, err error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return nil, 0, fmt.Errorf("telemetry.Parse(): empty message")
	}

	var elems []json.RawMessage
	if msg[0] == '[' {
		if err := json.Unmarshal(msg, &elems); err != nil {
			return nil, 0, fmt.Errorf("telemetry.Parse(): %w", err)
		}
	} else {
		elems = append(elems, msg)
	}

	records = make([]Record, 0, len(elems))
	for _, raw := range elems {
		var e Envelope
		if err := json.Unmarshal(raw, &e); err != nil {
			if len(elems) == 1 && msg[0] != '[' {
				return nil, 0, fmt.Errorf("telemetry.Parse(): %w", err)
			}
			skipped++
			continue
		}
		if r, ok := e.Record(); ok {
			records = append(records, r)
		}
	}
	return records, skipped, nil
}
