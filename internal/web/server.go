// Package web exposes the database manager over a small REST admin
// surface.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tablekit/tablekit/internal/auth"
	"github.com/tablekit/tablekit/internal/dbmanager"
	"github.com/tablekit/tablekit/internal/web/middleware"
)

// Server represents the admin HTTP server.
type Server struct {
	mgr     *dbmanager.Manager
	apiKeys *auth.APIKeyService
	port    int
	bind    string
	router  *chi.Mux
}

// NewServer creates the admin server. When the API key service has
// active keys, every /api/tables route requires one.
func NewServer(mgr *dbmanager.Manager, apiKeys *auth.APIKeyService, port int, bind string) *Server {
	s := &Server{
		mgr:     mgr,
		apiKeys: apiKeys,
		port:    port,
		bind:    bind,
		router:  chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	var verify func(r *http.Request, key string) (bool, error)
	if s.apiKeys != nil {
		if active, err := s.apiKeys.Active(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to check for active API keys; requiring keys")
			verify = s.verifyKey
		} else if active {
			verify = s.verifyKey
		} else {
			log.Info().Msg("No API keys issued; admin API runs without authentication")
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(verify))

			r.Post("/tables", s.handleCreateTable)
			r.Route("/tables/{table}", func(r chi.Router) {
				r.Delete("/", s.handleDropTable)
				r.Get("/schema", s.handleTableSchema)
				r.Get("/rows", s.handleSelectRows)
				r.Post("/rows", s.handleUpsertRows)
				r.Patch("/rows", s.handleUpdateRows)
				r.Delete("/rows", s.handleDeleteRows)
			})
		})
	})
}

func (s *Server) verifyKey(r *http.Request, key string) (bool, error) {
	return s.apiKeys.Verify(r.Context(), key)
}

// Start runs the server until ctx is canceled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	var addr string
	if s.bind != "" {
		addr = fmt.Sprintf("%s:%d", s.bind, s.port)
	} else {
		addr = fmt.Sprintf(":%d", s.port)
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
