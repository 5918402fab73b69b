// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package sink

import (
	"context"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"gitlab.com/postmarketOS/gnss_monitor/internal/pool"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS connects to url and keeps reconnecting for as long as the
// process runs.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("gnss_monitor"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("sink/nats: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("sink/nats: reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("sink/ConnectNATS: %w", err)
	}
	return nc, nil
}

// Relay republishes every hub message unchanged on a NATS subject. Delivery
// is fire and forget.
type Relay struct {
	connPool *pool.Pool
	nc       Publisher
	subject  string
}

func NewRelay(connPool *pool.Pool, nc Publisher, subject string) *Relay {
	return &Relay{connPool: connPool, nc: nc, subject: subject}
}

func (r *Relay) Run(ctx context.Context) error {
	return consume(ctx, r.connPool, "nats", func(msg []byte) error {
		if err := r.nc.Publish(r.subject, msg); err != nil {
			// a publish error only loses this message
			log.Printf("sink/nats: publish to %q: %v", r.subject, err)
		}
		return nil
	})
}
