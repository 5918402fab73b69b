// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ingress receives the producer's telemetry datagrams, decodes them
// and hands the records to the hub.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"gitlab.com/postmarketOS/gnss_monitor/internal/decode"
	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

const maxDatagram = 65535

// Publisher is the part of the hub ingress needs.
type Publisher interface {
	Idle() bool
	Publish(r telemetry.Record) error
	PublishObservations(obs []telemetry.Observation) error
}

type Stats struct {
	Received     uint64 `json:"received"`
	SkippedIdle  uint64 `json:"skipped_idle"`
	DecodeErrors uint64 `json:"decode_errors"`
	Published    uint64 `json:"published"`
}

type Listener struct {
	Name string
	Addr string

	pub    Publisher
	decode func(b []byte, received time.Time) error
	now    func() time.Time
	conn   net.PacketConn

	received     atomic.Uint64
	skippedIdle  atomic.Uint64
	decodeErrors atomic.Uint64
	published    atomic.Uint64
}

// NewSolutions returns a listener for MonitorPvt frames.
func NewSolutions(addr string, pub Publisher) *Listener {
	l := &Listener{Name: "PVT", Addr: addr, pub: pub, now: time.Now}
	l.decode = func(b []byte, received time.Time) error {
		s, err := decode.Solution(b, received)
		if err != nil {
			return err
		}
		if err := l.pub.Publish(s); err != nil {
			return err
		}
		l.published.Add(1)
		return nil
	}
	return l
}

// NewObservations returns a listener for Observables frames.
func NewObservations(addr string, pub Publisher) *Listener {
	l := &Listener{Name: "OBS", Addr: addr, pub: pub, now: time.Now}
	l.decode = func(b []byte, received time.Time) error {
		obs, err := decode.Observations(b, received)
		if err != nil {
			return err
		}
		if len(obs) == 0 {
			return nil
		}
		if err := l.pub.PublishObservations(obs); err != nil {
			return err
		}
		l.published.Add(1)
		return nil
	}
	return l
}

// Listen binds the UDP port. Failing to bind is the one startup error the
// caller is expected to treat as fatal.
func (l *Listener) Listen() (err error) {
	l.conn, err = net.ListenPacket("udp4", l.Addr)
	if err != nil {
		return fmt.Errorf("ingress/Listener.Listen: %s: %w", l.Name, err)
	}
	return nil
}

func (l *Listener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Serve reads datagrams until ctx is cancelled. Listen must have been
// called.
func (l *Listener) Serve(ctx context.Context) error {
	if l.conn == nil {
		return fmt.Errorf("ingress/Listener.Serve: %s: not listening", l.Name)
	}
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	fmt.Printf("%s telemetry listening on udp %s\n", l.Name, l.conn.LocalAddr())
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("ingress/Listener.Serve: %s: %w", l.Name, err)
		}
		l.Handle(buf[:n])
	}
}

// Handle processes one datagram. Nothing is decoded while the hub has no
// clients.
func (l *Listener) Handle(b []byte) {
	l.received.Add(1)
	if l.pub.Idle() {
		l.skippedIdle.Add(1)
		return
	}
	if err := l.decode(b, l.now()); err != nil {
		var de *decode.Error
		if errors.As(err, &de) {
			l.decodeErrors.Add(1)
			log.Printf("%s decode error: %v", l.Name, err)
			return
		}
		log.Printf("%s publish error: %v", l.Name, err)
	}
}

func (l *Listener) Stats() Stats {
	return Stats{
		Received:     l.received.Load(),
		SkippedIdle:  l.skippedIdle.Load(),
		DecodeErrors: l.decodeErrors.Load(),
		Published:    l.published.Load(),
	}
}
