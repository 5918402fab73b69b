// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package sink

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gitlab.com/postmarketOS/gnss_monitor/internal/pool"
	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

func startPool(t *testing.T) *pool.Pool {
	t.Helper()
	p := pool.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go p.Run(ctx)
	return p
}

func waitClients(t *testing.T, p *pool.Pool, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("pool has %d clients, want %d", p.Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type lockedBuffer struct {
	mu   sync.Mutex
	b    bytes.Buffer
	fail bool
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return 0, errors.New("port gone")
	}
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestNMEAHandle(t *testing.T) {
	var out lockedBuffer
	s := NewNMEA(nil, &out)

	sol := telemetry.Solution{
		Timestamp:      time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
		Lat:            48.5,
		Lon:            9.25,
		Height:         300,
		HDOP:           1.2,
		VelE:           0,
		VelN:           0,
		ValidSats:      6,
		SolutionStatus: 1,
	}
	msg, err := telemetry.Marshal(sol)
	if err != nil {
		t.Fatal(err)
	}
	obs, err := telemetry.MarshalObservations([]telemetry.Observation{{ChannelID: 1, System: "G", PRN: 3, CN0DbHz: 40}})
	if err != nil {
		t.Fatal(err)
	}

	for _, m := range [][]byte{msg, obs, []byte("not json")} {
		if err := s.handle(m); err != nil {
			t.Fatalf("handle(%q): %v", m, err)
		}
	}

	lines := strings.Split(strings.TrimSuffix(out.String(), "\r\n"), "\r\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "$GPGGA,120000.000,4830.00000,N,00915.00000,E,1,06,1.2,300.00,M") {
		t.Errorf("GGA = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "$GPRMC,120000.000,A,4830.00000,N,00915.00000,E,0.00,0.00,050324") {
		t.Errorf("RMC = %q", lines[1])
	}
}

func TestNMEAStopsOnWriteError(t *testing.T) {
	p := startPool(t)
	out := &lockedBuffer{fail: true}
	s := NewNMEA(p, out)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	waitClients(t, p, 1)

	msg, _ := telemetry.Marshal(telemetry.Solution{Lat: 1, Lon: 1})
	p.Broadcast(msg)

	select {
	case err := <-done:
		if err == nil {
			t.Errorf("Run() = nil after a write error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() kept going after a write error")
	}
	waitClients(t, p, 0)
}

type fakeNATS struct {
	mu   sync.Mutex
	msgs map[string][]string
	got  chan struct{}
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	f.mu.Lock()
	f.msgs[subject] = append(f.msgs[subject], string(data))
	f.mu.Unlock()
	f.got <- struct{}{}
	return nil
}

func TestRelay(t *testing.T) {
	p := startPool(t)
	nc := &fakeNATS{msgs: map[string][]string{}, got: make(chan struct{}, 4)}
	r := NewRelay(p, nc, "gnss.telemetry")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	waitClients(t, p, 1)
	if p.Idle() {
		t.Errorf("pool idle while the relay is subscribed")
	}

	p.Broadcast([]byte(`{"type":"pvt"}`))
	select {
	case <-nc.got:
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing relayed")
	}

	nc.mu.Lock()
	got := nc.msgs["gnss.telemetry"]
	nc.mu.Unlock()
	if len(got) != 1 || got[0] != `{"type":"pvt"}` {
		t.Errorf("relayed %q", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}
	waitClients(t, p, 0)
	if !p.Idle() {
		t.Errorf("pool not idle after the relay stopped")
	}
}
