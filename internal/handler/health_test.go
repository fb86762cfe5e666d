package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"sub-proxy-go/internal/config"
)

func TestHealth(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	fixed := time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("UTC+8", 8*3600))
	h := &HealthHandler{now: func() time.Time { return fixed }}
	if err := h.Health(c); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want %q", body["status"], "healthy")
	}
	if want := "2025-03-03T21:06:07.890Z"; body["timestamp"] != want {
		t.Errorf("timestamp = %q, want %q", body["timestamp"], want)
	}
}

func TestHealth_TimestampIsISO8601(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	before := time.Now().Add(-time.Second)
	if err := NewHealthHandler().Health(c); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ts, err := time.Parse(time.RFC3339, body["timestamp"])
	if err != nil {
		t.Fatalf("timestamp %q is not RFC 3339: %v", body["timestamp"], err)
	}
	if ts.Before(before) {
		t.Errorf("timestamp %v is older than the request", ts)
	}
}

func TestHealth_IndependentOfAuthState(t *testing.T) {
	configs := map[string]*config.Config{
		"no secret":       {},
		"secret, no urls": {Auth: config.AuthConfig{Password: "abc"}},
		"secret and urls": {
			Auth:     config.AuthConfig{Password: "abc"},
			Upstream: config.UpstreamConfig{PrimaryURL: "http://127.0.0.1:1/feed"},
		},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			e, _ := newTestServer(t, cfg)
			for _, target := range []string{"/health", "/health?password=wrong"} {
				rec := serve(e, http.MethodGet, target)
				if rec.Code != http.StatusOK {
					t.Errorf("GET %s status = %d, want %d", target, rec.Code, http.StatusOK)
				}
				assertSecurityHeaders(t, rec, true)
			}
		})
	}
}

func TestRoot(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewHealthHandler().Root(c); err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if body := rec.Body.String(); body != "Not Found" {
		t.Errorf("body = %q, want %q", body, "Not Found")
	}
}
