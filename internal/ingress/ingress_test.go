// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package ingress

import (
	"context"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

type fakeHub struct {
	mu    sync.Mutex
	idle  bool
	recs  []telemetry.Record
	obs   [][]telemetry.Observation
	ready chan struct{}
}

func newFakeHub(idle bool) *fakeHub {
	return &fakeHub{idle: idle, ready: make(chan struct{}, 16)}
}

func (h *fakeHub) Idle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.idle
}

func (h *fakeHub) Publish(r telemetry.Record) error {
	h.mu.Lock()
	h.recs = append(h.recs, r)
	h.mu.Unlock()
	h.ready <- struct{}{}
	return nil
}

func (h *fakeHub) PublishObservations(obs []telemetry.Observation) error {
	h.mu.Lock()
	h.obs = append(h.obs, obs)
	h.mu.Unlock()
	h.ready <- struct{}{}
	return nil
}

func pvtFrame(lat float64, sats uint64) []byte {
	var b []byte
	b = protowire.AppendTag(b, 17, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(lat))
	b = protowire.AppendTag(b, 20, protowire.VarintType)
	b = protowire.AppendVarint(b, sats)
	return b
}

func obsFrame(fs uint64) []byte {
	var e []byte
	e = protowire.AppendTag(e, 1, protowire.BytesType)
	e = protowire.AppendString(e, "G")
	e = protowire.AppendTag(e, 3, protowire.VarintType)
	e = protowire.AppendVarint(e, 5)
	e = protowire.AppendTag(e, 10, protowire.VarintType)
	e = protowire.AppendVarint(e, fs)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	return protowire.AppendBytes(b, e)
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name  string
		idle  bool
		obs   bool
		frame []byte
		want  Stats
	}{
		{"idle hub skips decode", true, false, []byte{0xff}, Stats{Received: 1, SkippedIdle: 1}},
		{"solution published", false, false, pvtFrame(48.1, 6), Stats{Received: 1, Published: 1}},
		{"malformed solution", false, false, []byte{0x80}, Stats{Received: 1, DecodeErrors: 1}},
		{"observables published", false, true, obsFrame(4000000), Stats{Received: 1, Published: 1}},
		{"idle channels only", false, true, obsFrame(0), Stats{Received: 1}},
		{"empty datagram", false, true, nil, Stats{Received: 1, DecodeErrors: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hub := newFakeHub(tc.idle)
			var l *Listener
			if tc.obs {
				l = NewObservations("", hub)
			} else {
				l = NewSolutions("", hub)
			}
			l.Handle(tc.frame)
			if got := l.Stats(); got != tc.want {
				t.Errorf("stats = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestServeUDP(t *testing.T) {
	hub := newFakeHub(false)
	l := NewSolutions("127.0.0.1:0", hub)
	if err := l.Listen(); err != nil {
		t.Fatalf("Listen(): %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()

	conn, err := net.Dial("udp4", l.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial(): %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(pvtFrame(52.0, 5)); err != nil {
		t.Fatalf("Write(): %v", err)
	}

	select {
	case <-hub.ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("no record published")
	}

	hub.mu.Lock()
	s, ok := hub.recs[0].(telemetry.Solution)
	hub.mu.Unlock()
	if !ok || s.Lat != 52.0 || s.ValidSats != 5 {
		t.Errorf("published %+v", hub.recs[0])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve(): %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve() did not return after cancel")
	}
}
