package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tejzpr/checkup-bot/internal/db"
	"github.com/tejzpr/checkup-bot/internal/manager"
	"github.com/tejzpr/checkup-bot/internal/report"
	"github.com/tejzpr/checkup-bot/internal/submission"
)

const healthMagic = "checkup-bot-ok"

// Store is the read side of the submission log.
type Store interface {
	report.Source
	Get(ctx context.Context, id string) (submission.Submission, error)
}

// Server is the operator HTTP API. It has no authentication of its own
// and is meant to listen on a loopback or otherwise private address.
type Server struct {
	store   Store
	reports *report.Generator
	broker  *manager.SSEBroker
	log     *slog.Logger
}

func New(store Store, broker *manager.SSEBroker, log *slog.Logger) *Server {
	return &Server{
		store:   store,
		reports: &report.Generator{Source: store},
		broker:  broker,
		log:     log,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)

	r.Get("/api/health", handleHealth)
	r.Get("/api/submissions", s.handleListSubmissions)
	r.Get("/api/submissions/{id}", s.handleGetSubmission)
	r.Get("/api/report", s.handleReport)
	r.Get("/api/events", s.handleSSE)
	r.Options("/api/*", handleCORS)
	return r
}

// Start binds addr and serves until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webserver: listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("operator API stopped", "err", err)
		}
	}()
	s.log.Info("operator API listening", "addr", ln.Addr().String())
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "elapsed", time.Since(start).Round(time.Millisecond))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": healthMagic})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	days, err := report.ParseLookback(r.URL.Query().Get("days"))
	if err != nil {
		http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
		return
	}
	subs, err := s.reports.Query(r.Context(), days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	days, err := report.ParseLookback(r.URL.Query().Get("days"))
	if err != nil {
		http.Error(w, report.Usage, http.StatusBadRequest)
		return
	}
	rep, err := s.reports.Generate(r.Context(), days)
	if errors.Is(err, report.ErrNoSubmissions) {
		http.Error(w, "no submissions found for this period", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(rep.Data)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(ch)

	// Send initial keepalive
	fmt.Fprintf(w, ": keepalive\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: new-submission\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
