package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/hunterjsb/boardbot/internal/engine"
)

// Checker verifies that a dependency is reachable
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Checker
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Board is the read side of the engine the HTTP surface exposes
type Board interface {
	Teams(ctx context.Context) ([]engine.Team, error)
	Render(ctx context.Context, mode engine.MapMode, focus string) ([]byte, error)
}

// Server serves the health check, the rendered board and a team summary
type Server struct {
	srv    *http.Server
	board  Board
	checks map[string]Checker
	log    log.FieldLogger
}

// New builds the router. A nil logger uses the standard logrus logger.
func New(addr string, board Board, checks map[string]Checker, logger log.FieldLogger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{board: board, checks: checks, log: logger}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Routes returns the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/map.png", s.mapImage)
	r.Get("/teams", s.teams)
	return r
}

// Run listens until the server is shut down
func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	s.log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits up to ten seconds for the rest
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.log.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			}).Debug("HTTP request")
		}()

		next.ServeHTTP(ww, r)
	})
}

type checkResult struct {
	Status string `json:"status"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]checkResult, len(s.checks))
	status := http.StatusOK

	for name, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			s.log.WithField("check", name).Errorf("Health check failed: %v", err)
			results[name] = checkResult{Status: "error"}
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = checkResult{Status: "ok"}
	}

	writeJSON(w, status, results)
}

func (s *Server) mapImage(w http.ResponseWriter, r *http.Request) {
	mode := engine.MapMode(r.URL.Query().Get("mode"))
	focus := r.URL.Query().Get("team")
	if mode == "" {
		mode = engine.MapAll
		if focus != "" {
			mode = engine.MapTeam
		}
	}

	img, err := s.board.Render(r.Context(), mode, focus)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

type teamSummary struct {
	Name     string    `json:"name"`
	Location string    `json:"location"`
	Explored []string  `json:"explored"`
	Created  time.Time `json:"created_at"`
}

func (s *Server) teams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.board.Teams(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]teamSummary, 0, len(teams))
	for _, t := range teams {
		explored := make([]string, 0, len(t.Explored))
		for _, tile := range t.Explored {
			explored = append(explored, tile.String())
		}
		out = append(out, teamSummary{Name: t.Name, Location: t.Location.String(), Explored: explored, Created: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps engine errors to status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrTeamNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Errorf("Request failed: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
