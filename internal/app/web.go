// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/cubesat_telemetry/internal/config"
	"github.com/relabs-tech/cubesat_telemetry/internal/poller"
	"github.com/relabs-tech/cubesat_telemetry/internal/store"
	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other hosts during development
	},
}

// StatusSource reports poller state; *poller.Group satisfies it.
type StatusSource interface {
	Statuses() []poller.Status
}

// Server exposes the store over HTTP and a websocket stream.
type Server struct {
	store    *store.Store
	sessions StatusSource
	cfg      config.WebConfig
	log      *slog.Logger
}

// NewServer wires handlers over st. sessions may be nil.
func NewServer(st *store.Store, sessions StatusSource, cfg config.WebConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: st, sessions: sessions, cfg: cfg, log: log}
}

// Handler returns the routed, request-logging handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/readings", s.handleReadings)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws/live", s.handleLive)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/static/index.html", http.StatusFound)
	})
	return s.requestLogger(mux)
}

// noData is the explicit empty answer: callers can tell "nothing yet"
// apart from a failure.
type noData struct {
	Error string `json:"error"`
	Data  []any  `json:"data"`
}

func writeNoData(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, noData{Error: "no data", Data: []any{}})
}

// handleReadings returns the whole retained history unless limit asks for
// the latest N.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	name := r.URL.Query().Get("sensor")

	var readings []telemetry.Reading
	switch {
	case limit > 0 && name != "":
		readings = s.store.Sensor(name, limit)
	case limit > 0:
		readings = s.store.Latest(limit)
	default:
		for rd := range s.store.All() {
			if name == "" || rd.Sensor == name {
				readings = append(readings, rd)
			}
		}
	}
	if len(readings) == 0 {
		writeNoData(w)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.store.Snapshot()
	if !ok {
		writeNoData(w)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	statuses := []poller.Status{}
	if s.sessions != nil {
		statuses = append(statuses, s.sessions.Statuses()...)
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"readings": s.store.Len(),
		"total":    s.store.Total(),
		"dropped":  s.store.Dropped(),
	})
}

// handleLive streams every new reading as one JSON text message.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("web: websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	readings, cancel := s.store.Subscribe(64)
	defer cancel()

	// The reader only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case rd, ok := <-readings:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(rd); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("web: websocket write error", "error", err)
				}
				return
			}
		}
	}
}

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("web: listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("web: stopped", "addr", srv.Addr)
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// Hijack lets the websocket upgrade pass through the recorder.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	sr.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		s.log.Debug("web: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("web: failed to write JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}
