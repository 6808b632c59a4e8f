// Package api exposes a small read-only HTTP surface for watching pipeline
// progress: a health check, a unit snapshot list and an SSE event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/cors"

	"shortforge/internal/core/services"
)

// unitSnapshot is the last observed progress of one unit, rebuilt from the
// event stream.
type unitSnapshot struct {
	UnitID    string    `json:"unit_id"`
	Stage     string    `json:"stage,omitempty"`
	LastEvent string    `json:"last_event"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Server struct {
	logger *slog.Logger
	bus    *services.EventBus
	addr   string

	mu    sync.RWMutex
	units map[string]*unitSnapshot
}

func NewServer(logger *slog.Logger, bus *services.EventBus, addr string) *Server {
	return &Server{
		logger: logger,
		bus:    bus,
		addr:   addr,
		units:  make(map[string]*unitSnapshot),
	}
}

// Run serves until ctx is cancelled. It consumes the broadcast feed to
// keep the snapshot list current.
func (s *Server) Run(ctx context.Context) error {
	ch, unsub := s.bus.Subscribe(services.BroadcastKey)
	defer unsub()
	go s.track(ctx, ch)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/units", s.handleUnits)
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}).Handler(mux)

	server := &http.Server{Addr: s.addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("progress API listening", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) track(ctx context.Context, ch <-chan services.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			s.mu.Lock()
			snap, exists := s.units[string(evt.UnitID)]
			if !exists {
				snap = &unitSnapshot{UnitID: string(evt.UnitID)}
				s.units[string(evt.UnitID)] = snap
			}
			if evt.Stage != "" {
				snap.Stage = string(evt.Stage)
			}
			snap.LastEvent = string(evt.Type)
			snap.Detail = evt.Detail
			snap.UpdatedAt = evt.Timestamp
			s.mu.Unlock()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleUnits(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	snaps := make([]*unitSnapshot, 0, len(s.units))
	for _, snap := range s.units {
		snaps = append(snaps, snap)
	}
	s.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt)
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snaps)
}

// handleEvents streams pipeline events over SSE. A unit query parameter
// narrows the stream to one unit; otherwise everything is sent.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	key := services.BroadcastKey
	if unit := r.URL.Query().Get("unit"); unit != "" {
		key = unit
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsub := s.bus.Subscribe(key)
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}
