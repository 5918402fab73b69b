// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pool is the distribution hub: every published payload is fanned
// out to all registered clients.
package pool

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/google/uuid"

	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

// DefaultQueue is the Send buffer of clients created with NewClient(name, 0).
const DefaultQueue = 64

type Client struct {
	ID   uuid.UUID
	Name string
	// Send is closed by the pool once the client is unregistered.
	Send chan []byte
}

func NewClient(name string, queue int) *Client {
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Client{
		ID:   uuid.New(),
		Name: name,
		Send: make(chan []byte, queue),
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.ID.String()[:8])
}

// ClientInfo describes a registered client.
type ClientInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Queued int    `json:"queued"`
}

type Stats struct {
	Clients   int          `json:"clients"`
	Published uint64       `json:"published"`
	Dropped   uint64       `json:"dropped"`
	List      []ClientInfo `json:"list,omitempty"`
}

type Pool struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	info       chan chan []ClientInfo
	done       chan struct{}

	clients map[*Client]bool
	count   atomic.Int32

	published atomic.Uint64
	dropped   atomic.Uint64

	// OnActive runs when the first client registers, OnIdle when the last
	// one leaves. Both run on the pool goroutine.
	OnActive func()
	OnIdle   func()
}

func New() *Pool {
	return &Pool{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		info:       make(chan chan []ClientInfo),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run owns the client set until ctx is cancelled. All remaining clients are
// unregistered on return.
func (p *Pool) Run(ctx context.Context) {
	defer func() {
		close(p.done)
		for c := range p.clients {
			p.remove(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.register:
			p.clients[c] = true
			p.count.Store(int32(len(p.clients)))
			log.Printf("pool: client %s connected, total: %d", c, len(p.clients))
			if len(p.clients) == 1 && p.OnActive != nil {
				p.OnActive()
			}
		case c := <-p.unregister:
			if !p.clients[c] {
				continue
			}
			p.remove(c)
			log.Printf("pool: client %s disconnected, total: %d", c, len(p.clients))
			if len(p.clients) == 0 && p.OnIdle != nil {
				p.OnIdle()
			}
		case msg := <-p.broadcast:
			p.published.Add(1)
			for c := range p.clients {
				select {
				case c.Send <- msg:
				default:
					// the client keeps its registration, only this
					// message is lost for it
					p.dropped.Add(1)
					log.Printf("pool: client %s is not keeping up, message dropped", c)
				}
			}
		case reply := <-p.info:
			list := make([]ClientInfo, 0, len(p.clients))
			for c := range p.clients {
				list = append(list, ClientInfo{ID: c.ID.String(), Name: c.Name, Queued: len(c.Send)})
			}
			reply <- list
		}
	}
}

func (p *Pool) remove(c *Client) {
	delete(p.clients, c)
	p.count.Store(int32(len(p.clients)))
	close(c.Send)
}

// Register adds c to the fan-out set. It returns false if the pool is no
// longer running.
func (p *Pool) Register(c *Client) bool {
	select {
	case p.register <- c:
		return true
	case <-p.done:
		return false
	}
}

// Unregister removes c. It is safe to call more than once and after the
// pool has stopped.
func (p *Pool) Unregister(c *Client) {
	select {
	case p.unregister <- c:
	case <-p.done:
	}
}

// Idle reports whether no client is registered. Producers use it to skip
// decoding work nobody would receive.
func (p *Pool) Idle() bool {
	return p.count.Load() == 0
}

func (p *Pool) Len() int {
	return int(p.count.Load())
}

// Broadcast hands an already serialised payload to every client.
func (p *Pool) Broadcast(msg []byte) {
	select {
	case p.broadcast <- msg:
	case <-p.done:
	}
}

// Publish serialises r once and broadcasts it.
func (p *Pool) Publish(r telemetry.Record) error {
	msg, err := telemetry.Marshal(r)
	if err != nil {
		return fmt.Errorf("pool/Pool.Publish: %w", err)
	}
	p.Broadcast(msg)
	return nil
}

// PublishObservations broadcasts one observables frame as a single array
// message. Empty frames are not sent.
func (p *Pool) PublishObservations(obs []telemetry.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	msg, err := telemetry.MarshalObservations(obs)
	if err != nil {
		return fmt.Errorf("pool/Pool.PublishObservations: %w", err)
	}
	p.Broadcast(msg)
	return nil
}

// Stats returns the counters and, while the pool runs, the client list.
func (p *Pool) Stats() Stats {
	var s Stats
	reply := make(chan []ClientInfo, 1)
	select {
	case p.info <- reply:
		s.List = <-reply
	case <-p.done:
	}
	s.Clients = p.Len()
	s.Published = p.published.Load()
	s.Dropped = p.dropped.Load()
	return s
}
