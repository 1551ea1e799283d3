// ABOUTME: Server struct wiring config, store, services, and the HTTP server
// ABOUTME: Owns startup, the session purge loop, and graceful shutdown

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/snagbox/snagbox/internal/capture"
	"github.com/snagbox/snagbox/internal/challenge"
	"github.com/snagbox/snagbox/internal/config"
	"github.com/snagbox/snagbox/internal/dedupe"
	"github.com/snagbox/snagbox/internal/httpapi"
	"github.com/snagbox/snagbox/internal/org"
	"github.com/snagbox/snagbox/internal/passkey"
	"github.com/snagbox/snagbox/internal/session"
	"github.com/snagbox/snagbox/internal/store"
	"github.com/snagbox/snagbox/internal/token"
)

// purgeInterval is how often expired sessions are swept from the store.
const purgeInterval = time.Hour

// Idempotency window for retried capture submissions.
const (
	captureKeyTTL     = time.Hour
	captureKeyMaxSize = 10000
)

// Server is the main snagbox server.
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	store       *store.SQLiteStore
	sessions    *session.Service
	captureKeys *dedupe.Cache
	httpServer  *http.Server
}

// New creates a fully wired server from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	challenges, err := challenge.NewManager([]byte(cfg.Auth.ChallengeSecret))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating challenge manager: %w", err)
	}

	rp := passkey.DeriveRelyingParty(cfg.Auth.RPName, cfg.Server.BaseURL)
	verifier, err := passkey.NewCeremonyVerifier(rp)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating webauthn verifier: %w", err)
	}

	passkeys := passkey.NewService(st, st, challenges, verifier)
	sessions := session.NewService(st, st, session.Config{
		TTL:              cfg.Session.TTL,
		RefreshThreshold: cfg.Session.RefreshThreshold,
	})
	tokens := token.NewService(st)
	captures := capture.NewService(st)
	orgs := org.NewService(st)

	inviter, err := org.NewInviter(orgs, []byte(cfg.Auth.InviteSecret), org.DefaultInviteTTL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating inviter: %w", err)
	}

	captureKeys := dedupe.New(captureKeyTTL, captureKeyMaxSize)

	api := httpapi.New(passkeys, sessions, tokens, captures, orgs, inviter, httpapi.Config{
		SecureCookies: cfg.Server.SecureCookies,
		CaptureKeys:   captureKeys,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/api/", api.Handler())

	return &Server{
		config:      cfg,
		logger:      logger,
		store:       st,
		sessions:    sessions,
		captureKeys: captureKeys,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	go s.purgeLoop(ctx)

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// purgeLoop sweeps expired sessions until the context is canceled.
func (s *Server) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.sessions.PurgeExpired(ctx); err != nil {
				s.logger.Warn("session purge failed", "error", err)
			}
		}
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutting down HTTP server: %w", err)
	}

	s.captureKeys.Close()

	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	return firstErr
}
