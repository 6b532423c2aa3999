package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/orchestrator/internal/common"
)

func newTestServerShell() *Server {
	return &Server{logger: common.GetLogger()}
}

func TestCorrelationIDMiddlewareGeneratesIDWhenAbsent(t *testing.T) {
	s := newTestServerShell()
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(correlationIDKey).(string)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	s.correlationIDMiddleware(next).ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationIDMiddlewarePropagatesExistingHeader(t *testing.T) {
	s := newTestServerShell()
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(correlationIDKey).(string)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	req.Header.Set("X-Request-ID", "req-123")
	s.correlationIDMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get("X-Correlation-ID"))
}

func TestCORSMiddlewareShortCircuitsOptions(t *testing.T) {
	s := newTestServerShell()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/nodes", nil)
	s.corsMiddleware(next).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddlewareCatchesPanic(t *testing.T) {
	s := newTestServerShell()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)

	assert.NotPanics(t, func() {
		s.recoveryMiddleware(next).ServeHTTP(rec, req)
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggingMiddlewarePassesThroughStatus(t *testing.T) {
	s := newTestServerShell()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	s.loggingMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestWithConditionalMiddlewareBypassesFullChainForWebSocketPaths(t *testing.T) {
	s := newTestServerShell()
	var sawCorrelationID bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawCorrelationID = r.Context().Value(correlationIDKey).(string)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/session/abc", nil)
	s.withConditionalMiddleware(next).ServeHTTP(rec, req)

	assert.False(t, sawCorrelationID, "websocket paths should skip the correlation-id middleware")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWithConditionalMiddlewareAppliesFullChainElsewhere(t *testing.T) {
	s := newTestServerShell()
	var sawCorrelationID bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawCorrelationID = r.Context().Value(correlationIDKey).(string)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	s.withConditionalMiddleware(next).ServeHTTP(rec, req)

	assert.True(t, sawCorrelationID)
}
