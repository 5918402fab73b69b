// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sink holds hub clients that forward telemetry somewhere other
// than a display.
package sink

import (
	"context"
	"fmt"
	"log"

	"gitlab.com/postmarketOS/gnss_monitor/internal/pool"
)

// consume registers a client named name and calls handle for every message
// until ctx is cancelled, the pool stops, or handle fails.
func consume(ctx context.Context, p *pool.Pool, name string, handle func(msg []byte) error) error {
	c := pool.NewClient(name, 0)
	if !p.Register(c) {
		return fmt.Errorf("sink/%s: pool is not running", name)
	}
	defer p.Unregister(c)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-c.Send:
			if !ok {
				return nil
			}
			if err := handle(msg); err != nil {
				log.Printf("sink/%s: %v", name, err)
				return fmt.Errorf("sink/%s: %w", name, err)
			}
		}
	}
}
