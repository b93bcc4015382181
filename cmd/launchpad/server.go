package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/launchpadhq/launchpad/internal/shell/api"
	"github.com/launchpadhq/launchpad/internal/shell/gitsource"
	"github.com/launchpadhq/launchpad/internal/shell/notify"
	"github.com/launchpadhq/launchpad/internal/shell/orchestrator"
	"github.com/launchpadhq/launchpad/internal/shell/provider"
	"github.com/launchpadhq/launchpad/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitProviderError   = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the Launchpad application server.
type Server struct {
	config       *Config
	httpServer   *http.Server
	store        store.Store
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Create deployment provider
	prov, err := provider.NewClient(cfg.Provider.Kind, provider.Config{
		VercelToken:   cfg.Provider.VercelToken,
		VercelBaseURL: cfg.Provider.VercelBaseURL,
		DOToken:       cfg.Provider.DOToken,
		DockerHost:    cfg.Provider.DockerHost,
		ContentRoot:   cfg.Provider.ContentRoot,
		Image:         cfg.Provider.Image,
	}, logger)
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitProviderError,
		}
	}
	logger.Info("deployment provider configured", "kind", cfg.Provider.Kind)

	// Create notifier
	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		notifier = notify.NewTelegramNotifier(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID, "", logger)
		logger.Info("telegram notifications enabled")
	} else {
		logger.Info("notifications disabled")
	}

	// Create git source validator
	var validator gitsource.Validator = gitsource.NoopValidator{}
	if cfg.GitSource.ValidateRepos {
		validator = gitsource.NewGitHubValidator(cfg.GitSource.GitHubToken)
		logger.Info("git source validation enabled")
	}

	// Create orchestrator
	orchConfig := orchestrator.DefaultConfig()
	if cfg.Deploy.AttemptTimeout > 0 {
		orchConfig.AttemptTimeout = cfg.Deploy.AttemptTimeout
	}
	orch := orchestrator.New(s, prov, notifier, validator, orchConfig, logger)

	// Create HTTP server
	handler := api.NewHandler(s, orch, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:       cfg,
		httpServer:   httpServer,
		store:        s,
		orchestrator: orch,
		logger:       logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Drain in-flight deployment attempts and notifications
	s.orchestrator.Close()

	// Close database
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
