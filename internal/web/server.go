// Package web is the minimal operability surface spec §7 names: "surfaces
// scan health via its own endpoints". Grounded on the teacher's
// internal/web.Server (net/http.Server lifecycle, JSON status shape), with
// the map/viewport/clustering/groups UI dropped — that UI has no SPEC_FULL.md
// backing and its //go:embed assets/* referenced a directory that doesn't
// exist in this tree, so it could not have compiled as inherited. Replaced
// with a read-only JSON status endpoint over polling_jobs, the session
// manager, and the rate governor.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/engine"
	"github.com/brensch/campwatch/internal/ratelimit"
	"github.com/brensch/campwatch/internal/session"
)

type Server struct {
	store    *db.Store
	eng      *engine.Engine
	sess     *session.Manager
	governor *ratelimit.Governor
	addr     string
	logger   *slog.Logger

	maxConsecutiveErrors int
	httpServer           *http.Server
}

func NewServer(addr string, store *db.Store, eng *engine.Engine, sess *session.Manager, governor *ratelimit.Governor, maxConsecutiveErrors int) *Server {
	return &Server{
		store:                store,
		eng:                  eng,
		sess:                 sess,
		governor:             governor,
		addr:                 addr,
		logger:               slog.Default(),
		maxConsecutiveErrors: maxConsecutiveErrors,
	}
}

type statusResponse struct {
	Jobs     db.JobStats     `json:"jobs"`
	Engine   engine.Stats    `json:"engine"`
	Session  session.Stats   `json:"session"`
	Governor ratelimit.Stats `json:"governor"`
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	jobStats, err := s.store.GetJobStats(r.Context(), s.maxConsecutiveErrors)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := statusResponse{
		Jobs:     jobStats,
		Engine:   s.eng.Stats(),
		Session:  s.sess.Stats(),
		Governor: s.governor.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode status response failed", slog.Any("err", err))
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/healthz", s.healthHandler)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", slog.String("addr", s.addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
