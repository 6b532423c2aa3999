package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/orchestrator/internal/aggregator"
	"github.com/ternarybob/orchestrator/internal/common"
	"github.com/ternarybob/orchestrator/internal/genexec"
	"github.com/ternarybob/orchestrator/internal/handlers"
	"github.com/ternarybob/orchestrator/internal/iteration"
	"github.com/ternarybob/orchestrator/internal/preference"
	"github.com/ternarybob/orchestrator/internal/registry"
	"github.com/ternarybob/orchestrator/internal/rewriter"
	"github.com/ternarybob/orchestrator/internal/router"
	"github.com/ternarybob/orchestrator/internal/template"
	"github.com/ternarybob/orchestrator/internal/workerclient"
)

// newTestServer wires a minimal but real stack (no worker nodes registered),
// enough to exercise routing, middleware, and handler wiring end to end.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := common.GetLogger()

	reg := registry.New(logger)
	rtr := router.New(reg, 3)
	tmpl := template.New(&template.Manifest{Entries: map[string]template.ManifestEntry{}})
	pool := workerclient.NewPool(reg, workerclient.Config{}, logger)
	agg := aggregator.New(64, 0, logger)
	pref := preference.New(logger)
	noop := rewriter.NewNoop()

	executor := genexec.New(reg, rtr, tmpl, pool, agg, pref, genexec.Config{}, logger)
	controller := iteration.New(executor, pref, noop, agg, logger)

	h := &Handlers{
		Session:    handlers.NewSessionHandler(controller, logger),
		Generate:   handlers.NewGenerateHandler(controller, logger),
		Iterate:    handlers.NewIterateHandler(controller, logger),
		Node:       handlers.NewNodeHandler(reg, logger),
		Preference: handlers.NewPreferenceHandler(pref, logger),
		WebSocket:  handlers.NewWebSocketHandler(agg, logger),
	}

	return New(h, common.ServerConfig{Host: "127.0.0.1", Port: 0}, logger)
}

func TestServerRoutesNodesAndHealth(t *testing.T) {
	s := newTestServer(t)

	nodesReq := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	nodesRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(nodesRec, nodesReq)
	assert.Equal(t, http.StatusOK, nodesRec.Code)

	healthReq := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(healthRec, healthReq)
	assert.Equal(t, http.StatusOK, healthRec.Code)
}

func TestServerRoutesPreferenceRecommend(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/preferences/recommend/model?prompt=cat", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerGenerateBatchExactPathBeatsGeneratePrefix(t *testing.T) {
	s := newTestServer(t)

	// An unsupported-method batch request must dispatch to Generate.Batch,
	// not to the /generate/ prefix handler (Generate.Get), proving the
	// exact-pattern route wins over the prefix route.
	req := httptest.NewRequest(http.MethodGet, "/generate/batch", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerShutdownHandlerRejectsNonPost(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/shutdown", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerShutdownHandlerSignalsChannel(t *testing.T) {
	s := newTestServer(t)
	ch := make(chan struct{}, 1)
	s.SetShutdownChannel(ch)

	req := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
	rec := httptest.NewRecorder()
	s.ShutdownHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected shutdown channel to be signaled")
	}
}

func TestServerUnknownRouteIs404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
