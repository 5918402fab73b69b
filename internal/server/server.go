// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gitlab.com/postmarketOS/gnss_monitor/internal/control"
	"gitlab.com/postmarketOS/gnss_monitor/internal/ingress"
	"gitlab.com/postmarketOS/gnss_monitor/internal/pool"
)

// Controller is the producer control surface exposed over REST.
type Controller interface {
	Start(variant string) control.Result
	Stop() control.Result
	Status() control.Result
}

type Server struct {
	connPool  *pool.Pool
	ctl       Controller
	listeners []*ingress.Listener
	queue     int
}

// New creates a Server. Messages published on connPool are forwarded to
// every WebSocket client; queue is the per client backlog.
func New(connPool *pool.Pool, ctl Controller, queue int, listeners ...*ingress.Listener) *Server {
	return &Server{
		connPool:  connPool,
		ctl:       ctl,
		listeners: listeners,
		queue:     queue,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Get("/hub", s.handleHub)
		r.Route("/gnss", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Post("/start", s.handleStart)
			r.Post("/start/{variant}", s.handleStart)
			r.Post("/stop", s.handleStop)
		})
	})
	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "not found"})
}

// ListenAndServe serves the router on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Starting GNSS monitor, accepting connections at: http://%s\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server/Server.ListenAndServe: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: writing response: %v", err)
	}
}

func writeResult(w http.ResponseWriter, r control.Result) {
	status := http.StatusOK
	if !r.OK {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.ctl.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.ctl.Start(chi.URLParam(r, "variant")))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.ctl.Stop())
}

type hubStatus struct {
	pool.Stats
	Ingress map[string]ingress.Stats `json:"ingress"`
}

func (s *Server) handleHub(w http.ResponseWriter, r *http.Request) {
	st := hubStatus{
		Stats:   s.connPool.Stats(),
		Ingress: make(map[string]ingress.Stats, len(s.listeners)),
	}
	for _, l := range s.listeners {
		st.Ingress[l.Name] = l.Stats()
	}
	writeJSON(w, http.StatusOK, st)
}
