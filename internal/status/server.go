// Package status serves the agent's local observability endpoints: peer
// and block state as JSON, liveness, and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openblockperf/agent/internal/blocks"
	"github.com/openblockperf/agent/internal/peers"
)

type Server struct {
	r       *chi.Mux
	tracker *peers.Tracker
	engine  *blocks.Engine
	log     *slog.Logger
}

func NewServer(tracker *peers.Tracker, engine *blocks.Engine, logger *slog.Logger) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		tracker: tracker,
		engine:  engine,
		log:     logger,
	}
	s.r.Use(middleware.Recoverer)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	s.r.Get("/peers", s.getPeers)
	s.r.Get("/blocks", s.getBlocks)
	s.r.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("status server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type peerView struct {
	Remote      string    `json:"remote"`
	Local       string    `json:"local,omitempty"`
	Direction   string    `json:"direction"`
	State       string    `json:"state"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func (s *Server) getPeers(w http.ResponseWriter, r *http.Request) {
	snapshot := s.tracker.Snapshot()
	views := make([]peerView, 0, len(snapshot))
	for _, p := range snapshot {
		v := peerView{
			Remote:      p.Remote.String(),
			Direction:   p.Direction.String(),
			State:       p.State.String(),
			LastUpdated: p.LastUpdated,
		}
		if p.Local.IsValid() {
			v.Local = p.Local.String()
		}
		views = append(views, v)
	}
	writeJSON(w, views)
}

type blockView struct {
	Hash           string     `json:"hash"`
	BlockNo        uint64     `json:"blockNo,omitempty"`
	Slot           uint64     `json:"slotNo,omitempty"`
	HeaderSeen     *time.Time `json:"headerSeen,omitempty"`
	FetchRequested *time.Time `json:"fetchRequested,omitempty"`
	Downloaded     *time.Time `json:"downloaded,omitempty"`
}

func (s *Server) getBlocks(w http.ResponseWriter, r *http.Request) {
	records := s.engine.OpenRecords()
	views := make([]blockView, 0, len(records))
	for _, rec := range records {
		views = append(views, blockView{
			Hash:           rec.Hash,
			BlockNo:        rec.BlockNo,
			Slot:           rec.Slot,
			HeaderSeen:     timePtr(rec.HeaderSeen),
			FetchRequested: timePtr(rec.FetchRequested),
			Downloaded:     timePtr(rec.Downloaded),
		})
	}
	writeJSON(w, views)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
