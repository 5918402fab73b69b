// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/user"
	"strconv"

	"gitlab.com/postmarketOS/gnss_monitor/internal/pool"
)

// SocketServer streams every published message, newline terminated, to the
// clients of a unix socket.
type SocketServer struct {
	socket    string
	sockGroup string
	connPool  *pool.Pool
	queue     int
	sock      net.Listener
}

func NewSocket(socket string, sockGroup string, connPool *pool.Pool, queue int) *SocketServer {
	return &SocketServer{
		socket:    socket,
		sockGroup: sockGroup,
		connPool:  connPool,
		queue:     queue,
	}
}

// Listen creates the socket, readable and writable by its owner group.
func (s *SocketServer) Listen() (err error) {
	if err := os.RemoveAll(s.socket); err != nil {
		return fmt.Errorf("server/SocketServer.Listen: %w", err)
	}

	s.sock, err = net.Listen("unix", s.socket)
	if err != nil {
		return fmt.Errorf("server/SocketServer.Listen: %w", err)
	}

	if err := os.Chmod(s.socket, 0660); err != nil {
		s.sock.Close()
		return fmt.Errorf("server/SocketServer.Listen: %w", err)
	}

	if s.sockGroup == "" {
		return nil
	}

	group, err := user.LookupGroup(s.sockGroup)
	if err != nil {
		s.sock.Close()
		return fmt.Errorf("server/SocketServer.Listen: %w", err)
	}

	gid, err := strconv.ParseInt(group.Gid, 10, 32)
	if err != nil {
		s.sock.Close()
		return fmt.Errorf("server/SocketServer.Listen: %w", err)
	}

	if err := os.Chown(s.socket, -1, int(gid)); err != nil {
		s.sock.Close()
		return fmt.Errorf("server/SocketServer.Listen: %w", err)
	}
	return nil
}

// Serve accepts clients until ctx is cancelled.
func (s *SocketServer) Serve(ctx context.Context) error {
	if s.sock == nil {
		return fmt.Errorf("server/SocketServer.Serve: not listening")
	}
	go func() {
		<-ctx.Done()
		s.sock.Close()
	}()

	fmt.Printf("Streaming telemetry on unix socket: %s\n", s.socket)
	for {
		conn, err := s.sock.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("server/SocketServer.Serve: %w", err)
		}

		client := pool.NewClient("socket", s.queue)
		if !s.connPool.Register(client) {
			conn.Close()
			return nil
		}

		go s.clientReader(conn, client)
		go s.clientConnection(conn, client)
	}
}

func (s *SocketServer) clientReader(conn net.Conn, c *pool.Client) {
	io.Copy(io.Discard, conn)
	s.connPool.Unregister(c)
	conn.Close()
}

// Routine run for each client connection
func (s *SocketServer) clientConnection(conn net.Conn, c *pool.Client) {
	defer func() {
		s.connPool.Unregister(c)
		conn.Close()
	}()

	for msg := range c.Send {
		// msg is shared with every other client, never append in place
		line := append(msg[:len(msg):len(msg)], '\n')
		if _, err := conn.Write(line); err != nil {
			log.Printf("server: send to %s failed: %v", c, err)
			return
		}
	}
}
