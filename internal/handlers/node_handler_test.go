package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/orchestrator/internal/models"
	"github.com/ternarybob/orchestrator/internal/registry"
)

func testNode(id string, healthy bool) models.Node {
	return models.Node{
		ID:             id,
		DisplayName:    id,
		Tier:           models.TierStandard,
		VRAMGB:         24,
		MaxConcurrent:  1,
		MaxResolution:  1024,
		MaxBatch:       4,
		CapabilityTags: []string{"sd15"},
		Host:           "127.0.0.1",
		Port:           8188,
		Runtime:        models.NodeRuntimeState{Healthy: healthy},
	}
}

func TestNodeHandlerList(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, reg.Load([]models.Node{testNode("n1", true)}))

	h := NewNodeHandler(reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []models.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
}

func TestNodeHandlerListRejectsWrongMethod(t *testing.T) {
	h := NewNodeHandler(registry.New(nil), nil)
	req := httptest.NewRequest(http.MethodPost, "/nodes", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNodeHandlerHealthDegradedWhenEmpty(t *testing.T) {
	h := NewNodeHandler(registry.New(nil), nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "degraded", got.Status)
	assert.Equal(t, 0, got.NodesTotal)
}

func TestNodeHandlerHealthDegradedWhenAllUnhealthy(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, reg.Load([]models.Node{testNode("n1", false), testNode("n2", false)}))

	h := NewNodeHandler(reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "degraded", got.Status)
	assert.Equal(t, 0, got.NodesHealthy)
	assert.Equal(t, 2, got.NodesTotal)
}

func TestNodeHandlerHealthOKWhenSomeHealthy(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, reg.Load([]models.Node{testNode("n1", true), testNode("n2", false)}))

	h := NewNodeHandler(reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 1, got.NodesHealthy)
	assert.Equal(t, 2, got.NodesTotal)
}
