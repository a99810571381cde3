package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth(t *testing.T) {
	s := NewServer("127.0.0.1", 0)
	rec, body := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReady(t *testing.T) {
	s := NewServer("127.0.0.1", 0)

	rec, _ := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetReady(true)
	s.RegisterCheck("store", func(context.Context) error { return nil })
	rec, body := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, map[string]any{"store": "ok"}, body["checks"])

	s.RegisterCheck("telegram", func(context.Context) error { return errors.New("channel stopped") })
	rec, body = get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "channel stopped", body["checks"].(map[string]any)["telegram"])
}

func TestStats(t *testing.T) {
	s := NewServer("127.0.0.1", 0)

	rec, _ := get(t, s.Handler(), "/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.SetStats(func() any { return map[string]int{"sent": 3} })
	rec, body := get(t, s.Handler(), "/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["sent"])
}

func TestHandleMountsRoute(t *testing.T) {
	s := NewServer("127.0.0.1", 0)
	s.Handle(http.MethodPost, "/123:abc", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/123:abc", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecovererCatchesPanics(t *testing.T) {
	s := NewServer("127.0.0.1", 0)
	s.Handle(http.MethodPost, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggedPath(t *testing.T) {
	assert.Equal(t, "/health", loggedPath(httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.Equal(t, "[redacted]", loggedPath(httptest.NewRequest(http.MethodPost, "/123:secret", nil)))
}
