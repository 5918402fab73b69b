// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gitlab.com/postmarketOS/gnss_monitor/internal/pool"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// displays are served from other origins on the local network
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	client := pool.NewClient("ws "+r.RemoteAddr, s.queue)
	if !s.connPool.Register(client) {
		conn.Close()
		return
	}

	go s.wsReader(conn, client)
	s.wsWriter(conn, client)
}

// wsReader discards everything the display sends and unregisters the
// client once the connection is gone.
func (s *Server) wsReader(conn *websocket.Conn, c *pool.Client) {
	defer func() {
		s.connPool.Unregister(c)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Routine run for each websocket client
func (s *Server) wsWriter(conn *websocket.Conn, c *pool.Client) {
	defer func() {
		s.connPool.Unregister(c)
		conn.Close()
	}()

	for msg := range c.Send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("server: send to %s failed: %v", c, err)
			return
		}
	}
}
