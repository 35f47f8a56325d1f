package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/breaker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCheckExistsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/email/check" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("email") != "a@x.com" {
			t.Fatalf("unexpected email %q", r.URL.Query().Get("email"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger(), breaker.Config{})
	if err := c.CheckExists(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestCheckExistsPreservesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger(), breaker.Config{})
	err := c.CheckExists(context.Background(), "nobody@x.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("domain NotFound must survive the fallback, got %v", err)
	}
}

func TestCheckExistsNormalizesInfrastructureFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger(), breaker.Config{})
	err := c.CheckExists(context.Background(), "a@x.com")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenBreakerShortCircuitsWithoutCalling(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger(), breaker.Config{FailureThreshold: 0.5, MinimumCalls: 4})

	for i := 0; i < 4; i++ {
		_ = c.CheckExists(context.Background(), "a@x.com")
	}
	before := calls.Load()

	err := c.CheckExists(context.Background(), "a@x.com")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable while open, got %v", err)
	}
	if calls.Load() != before {
		t.Fatal("open breaker must not reach the remote service")
	}
}

func TestSendOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/email" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SENT","message":"delivered"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger(), breaker.Config{})
	res, err := c.Send(context.Background(), "a@x.com", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Status != "SENT" {
		t.Fatalf("status = %q", res.Status)
	}
}

func TestSendFallsBackToQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger(), breaker.Config{})
	res, err := c.Send(context.Background(), "a@x.com", "hello")
	if err != nil {
		t.Fatalf("fallback should swallow the failure, got %v", err)
	}
	if res.Status != "QUEUED" {
		t.Fatalf("status = %q, want QUEUED", res.Status)
	}
}

func TestSendPreservesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger(), breaker.Config{})
	_, err := c.Send(context.Background(), "nobody@x.com", "hello")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
