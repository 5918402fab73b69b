// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package sink

import (
	"context"
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"

	"gitlab.com/postmarketOS/gnss_monitor/internal/nmea"
	"gitlab.com/postmarketOS/gnss_monitor/internal/pool"
	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

// OpenSerial opens a serial port for NMEA output.
func OpenSerial(device string, baud int) (io.WriteCloser, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("sink/OpenSerial: %s: %w", device, err)
	}
	return port, nil
}

// NMEA writes a GGA and RMC sentence for every solution on the hub.
type NMEA struct {
	connPool *pool.Pool
	w        io.Writer
	written  int
}

func NewNMEA(connPool *pool.Pool, w io.Writer) *NMEA {
	return &NMEA{connPool: connPool, w: w}
}

// Run returns when ctx is cancelled or the writer fails.
func (s *NMEA) Run(ctx context.Context) error {
	return consume(ctx, s.connPool, "nmea", s.handle)
}

func (s *NMEA) handle(msg []byte) error {
	records, _, err := telemetry.Parse(msg)
	if err != nil {
		log.Printf("sink/nmea: skipping message: %v", err)
		return nil
	}
	for _, r := range records {
		sol, ok := r.(telemetry.Solution)
		if !ok {
			continue
		}
		for _, sentence := range nmea.FromSolution(sol) {
			if _, err := s.w.Write(sentence.Line()); err != nil {
				return err
			}
			s.written++
		}
	}
	return nil
}
