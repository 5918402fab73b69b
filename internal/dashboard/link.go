// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package dashboard

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"gitlab.com/postmarketOS/gnss_monitor/internal/loop"
)

const DefaultReconnect = 2 * time.Second

// Receiver is fed by a Link. Its methods are called on the link's loop.
type Receiver interface {
	HandleMessage(raw []byte) error
	SetConnected(connected bool)
}

// Link keeps a subscriber connection to the hub open, redialing after a
// fixed delay whenever it drops.
type Link struct {
	URL   string
	Delay time.Duration

	host   loop.Host
	recv   Receiver
	dialer *websocket.Dialer
}

func NewLink(url string, delay time.Duration, host loop.Host, recv Receiver) *Link {
	if delay <= 0 {
		delay = DefaultReconnect
	}
	return &Link{
		URL:    url,
		Delay:  delay,
		host:   host,
		recv:   recv,
		dialer: websocket.DefaultDialer,
	}
}

// Run dials and reads until ctx is cancelled.
func (l *Link) Run(ctx context.Context) {
	for {
		conn, _, err := l.dialer.DialContext(ctx, l.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("link: dial %s: %v", l.URL, err)
		} else {
			log.Printf("link: connected to %s", l.URL)
			l.host.Post(func() { l.recv.SetConnected(true) })
			l.read(ctx, conn)
			l.host.Post(func() { l.recv.SetConnected(false) })
			if ctx.Err() != nil {
				return
			}
			log.Printf("link: disconnected from %s, retrying in %s", l.URL, l.Delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.Delay):
		}
	}
}

func (l *Link) read(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("link: read: %v", err)
			}
			return
		}
		l.host.Post(func() {
			if err := l.recv.HandleMessage(msg); err != nil {
				log.Printf("link: dropped message: %v", err)
			}
		})
	}
}
