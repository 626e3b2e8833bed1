package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_Healthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("storage", CheckFunc(func() error {
		return nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != StatusHealthy {
		t.Fatalf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "v1.0.0" {
		t.Fatalf("expected version v1.0.0, got %s", response.Version)
	}
	if len(response.Checks) != 1 {
		t.Fatalf("expected 1 check, got %d", len(response.Checks))
	}
	if response.Checks["storage"].Status != StatusHealthy {
		t.Fatalf("unexpected storage check: %+v", response.Checks["storage"])
	}
}

func TestHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("storage", CheckFunc(func() error {
		return errors.New("postgres: connection refused")
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != StatusUnhealthy {
		t.Fatalf("expected status unhealthy, got %s", response.Status)
	}
	if response.Checks["storage"].Message == "" {
		t.Fatal("expected failure message in check")
	}
}

func TestLiveness(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("expected body 'ok', got %s", w.Body.String())
	}
}

func TestReadiness(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("storage", CheckFunc(func() error {
		return nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ready" {
		t.Fatalf("expected body 'ready', got %s", w.Body.String())
	}
}

func TestReadiness_NotReady(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("redis", CheckFunc(func() error {
		return errors.New("redis unreachable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "not ready") {
		t.Fatalf("expected 'not ready' body, got %s", w.Body.String())
	}
}
