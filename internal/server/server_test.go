// ABOUTME: Tests for server wiring and shutdown
// ABOUTME: Uses an in-memory SQLite store and loopback listeners

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/snagbox/snagbox/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr: "127.0.0.1:0",
			BaseURL:  "http://localhost",
		},
		Database: config.DatabaseConfig{Path: ":memory:"},
		Auth: config.AuthConfig{
			ChallengeSecret: strings.Repeat("c", 32),
			InviteSecret:    strings.Repeat("i", 32),
			RPName:          "snagbox",
		},
	}
}

func TestNew_WiresFullStack(t *testing.T) {
	srv, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer srv.store.Close()
	defer srv.captureKeys.Close()

	// Health endpoint responds without auth.
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}

	// API routes sit behind auth.
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/api/me status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestNew_RejectsShortChallengeSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.ChallengeSecret = "short"

	if _, err := New(cfg, nil); err == nil {
		t.Fatal("New() expected error for short challenge secret, got nil")
	}
}

func TestRun_ShutsDownOnContextCancel(t *testing.T) {
	srv, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
