// Package status serves a small local HTTP endpoint next to the game
// transport: a health check and a JSON snapshot of the session, for poking at
// a running client without touching its terminal.
package status

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gridwalk/internal/game"
)

type Server struct {
	srv  *http.Server
	log  *zap.SugaredLogger
	snap atomic.Pointer[game.Snapshot]
}

func New(addr string, log *zap.SugaredLogger) *Server {
	s := &Server{log: log}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) Start() {
	go func() {
		s.log.Infow("status endpoint listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warnw("status endpoint failed", "err", err)
		}
	}()
}

func (s *Server) Stop() {
	_ = s.srv.Close()
}

// Publish stores the latest snapshot. Called from the session loop; handlers
// only ever read the stored pointer, so no locking is needed.
func (s *Server) Publish(snap game.Snapshot) {
	s.snap.Store(&snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.snap.Load()
	if snap == nil {
		snap = &game.Snapshot{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}
