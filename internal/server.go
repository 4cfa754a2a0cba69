package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/report"
)

// Source is what the report server reads from.
type Source interface {
	Snapshot() *report.Snapshot
	Path(from, to string, cat goods.Category) (report.PathReport, error)
}

// Server serves snapshots of a running world over HTTP.
type Server struct {
	src    Source
	server *http.Server
}

func NewServer(port int, src Source) *Server {
	s := &Server{src: src}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/snapshot", s.handleSnapshot)
	r.Get("/api/cities", s.handleCities)
	r.Get("/api/cities/{id}", s.handleCity)
	r.Get("/api/stations", s.handleStations)
	r.Get("/api/lines", s.handleLines)
	r.Get("/api/path", s.handlePath)
	return r
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("server listening on %s", s.server.Addr)
}

// Shutdown stops the listener and waits for running requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HandleGracefulShutdown blocks until SIGINT, SIGTERM or ctx is done, then
// shuts the server down.
func HandleGracefulShutdown(ctx context.Context, s *Server) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Printf("shutdown signal received")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(sctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	} else {
		log.Printf("server shut down successfully")
	}
}
