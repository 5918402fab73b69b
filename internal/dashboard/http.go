// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gitlab.com/postmarketOS/gnss_monitor/internal/stats"
)

// Caller runs a function on the goroutine owning the session.
type Caller interface {
	Call(fn func()) bool
}

// Images is where painted charts are read back from.
type Images interface {
	PNG(name string) ([]byte, bool)
	Names() []string
}

type Server struct {
	session *Session
	caller  Caller
	images  Images
}

func NewServer(session *Session, caller Caller, images Images) *Server {
	return &Server{session: session, caller: caller, images: images}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})

	r.Get("/charts", s.handleCharts)
	r.Get("/charts/{name}.png", s.handleChart)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Get("/stats", s.handleStats)
		r.Get("/status", s.handleStatus)
		r.Post("/capacity/{n}", s.handleCapacity)
		r.Post("/pages/{page}/activate", s.handleActivate)
	})
	return r
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

	fmt.Printf("Dashboard available at: http://%s\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard/Server.ListenAndServe: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("dashboard: writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

// call runs fn on the session's loop, answering 503 if the loop is gone.
func (s *Server) call(w http.ResponseWriter, fn func()) bool {
	if !s.caller.Call(fn) {
		writeError(w, http.StatusServiceUnavailable, errors.New("dashboard stopped"))
		return false
	}
	return true
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.images.Names())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	img, ok := s.images.PNG(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no such chart"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var results []stats.Result
	if !s.call(w, func() { results = s.session.Stats.Latest() }) {
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st Status
	if !s.call(w, func() { st = s.session.Status() }) {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid capacity: %w", err))
		return
	}
	var applied int
	if !s.call(w, func() { applied = s.session.SetCapacity(n) }) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "capacity": applied})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	var err error
	if !s.call(w, func() { err = s.session.ActivatePage(page) }) {
		return
	}
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "page": page})
}
