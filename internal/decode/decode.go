// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package decode turns the producer's protobuf monitor frames into telemetry
// records. Decoding never panics; malformed input yields an *Error.
package decode

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

type Kind int

const (
	Malformed Kind = iota
	Truncated
	Empty
)

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case Empty:
		return "empty"
	}
	return "malformed"
}

// Error is returned for every frame that cannot be turned into a record.
type Error struct {
	Kind  Kind
	Frame string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s frame: %s: %s", e.Frame, e.Kind, e.Err)
	}
	return fmt.Sprintf("decode %s frame: %s", e.Frame, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

func (f field) float() float64 {
	switch f.typ {
	case protowire.Fixed64Type:
		return math.Float64frombits(f.u)
	case protowire.Fixed32Type:
		return float64(math.Float32frombits(uint32(f.u)))
	}
	return math.NaN()
}

func (f field) uint32() uint32 {
	if f.typ != protowire.VarintType {
		return 0
	}
	return uint32(f.u)
}

func (f field) int32() int32 {
	if f.typ != protowire.VarintType {
		return 0
	}
	return int32(f.u)
}

func (f field) int64() int64 {
	if f.typ != protowire.VarintType {
		return 0
	}
	return int64(f.u)
}

func (f field) string() string {
	if f.typ != protowire.BytesType {
		return ""
	}
	return string(f.b)
}

// walk visits every top level field of a protobuf message in wire order.
// Groups and unknown fields are skipped.
func walk(frame string, b []byte, fn func(f field)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireError(frame, n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return wireError(frame, n)
		}
		b = b[n:]
		fn(f)
	}
	return nil
}

func wireError(frame string, n int) error {
	err := protowire.ParseError(n)
	kind := Malformed
	if errors.Is(err, io.ErrUnexpectedEOF) {
		kind = Truncated
	}
	return &Error{Kind: kind, Frame: frame, Err: err}
}

var utcLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseUTC(s string) (time.Time, bool) {
	for _, l := range utcLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
