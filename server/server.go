// Package server exposes the donation settlement operations over a JSON
// HTTP surface. Every error leaves through one boundary that logs it and
// writes the uniform error envelope.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/MrWiki15/server-party-polaris/core"
)

const (
	defaultAddr            = ":3000"
	defaultShutdownTimeout = 10 * time.Second
	maxRequestBodyBytes    = 1 << 20
)

// SettlementService is the slice of the core service the HTTP surface needs.
type SettlementService interface {
	ProvisionWallet(ctx context.Context, req core.ProvisionWalletRequest) (core.ProvisionedWallet, error)
	CheckFunding(ctx context.Context, eventID string) (core.FundingStatus, error)
	IssueToken(ctx context.Context, req core.IssueTokenRequest) (core.IssuedToken, error)
	SettleDonation(ctx context.Context, req core.SettleDonationRequest) (core.SettlementResult, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
	// Production suppresses debug detail in error responses.
	Production bool
}

type Server struct {
	config  Config
	service SettlementService
	logger  core.Logger
	router  chi.Router
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(cfg Config, service SettlementService, options ...Option) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("server: settlement service is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaultAddr
	}

	s := &Server{
		config:  cfg,
		service: service,
	}
	for _, option := range options {
		option(s)
	}
	s.logger = glog.Ensure(s.logger)
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/events", s.handleProvisionWallet)
		api.Post("/events/check-funding", s.handleCheckFunding)
		api.Post("/events/create-token", s.handleIssueToken)
		api.Post("/donations", s.handleSettleDonation)
	})

	return r
}

// Handler returns the configured HTTP handler, ready for an http.Server or
// an httptest harness.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.config.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: listen on %s: %w", s.config.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
