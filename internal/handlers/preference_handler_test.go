package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/orchestrator/internal/models"
	"github.com/ternarybob/orchestrator/internal/preference"
)

func TestPreferenceHandlerStats(t *testing.T) {
	engine := preference.New(nil)
	engine.Record("cat portrait", "sd15", nil, models.ActionSelected, 0, "sess", "")

	h := NewPreferenceHandler(engine, nil)
	req := httptest.NewRequest(http.MethodGet, "/preferences/stats", nil)
	rec := httptest.NewRecorder()

	h.Stats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got)
}

func TestPreferenceHandlerRecommendModelRequiresPrompt(t *testing.T) {
	h := NewPreferenceHandler(preference.New(nil), nil)
	req := httptest.NewRequest(http.MethodGet, "/preferences/recommend/model", nil)
	rec := httptest.NewRecorder()

	h.RecommendModel(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferenceHandlerRecommendModel(t *testing.T) {
	h := NewPreferenceHandler(preference.New(nil), nil)
	req := httptest.NewRequest(http.MethodGet, "/preferences/recommend/model?prompt=cat+portrait", nil)
	rec := httptest.NewRecorder()

	h.RecommendModel(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got recommendModelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.Model)
}

func TestPreferenceHandlerExportImportRoundTrip(t *testing.T) {
	engine := preference.New(nil)
	engine.Record("cat portrait", "sd15", nil, models.ActionSelected, 0, "sess", "")
	h := NewPreferenceHandler(engine, nil)

	exportReq := httptest.NewRequest(http.MethodGet, "/preferences/export", nil)
	exportRec := httptest.NewRecorder()
	h.Export(exportRec, exportReq)
	require.Equal(t, http.StatusOK, exportRec.Code)

	fresh := preference.New(nil)
	freshHandler := NewPreferenceHandler(fresh, nil)

	importReq := httptest.NewRequest(http.MethodPost, "/preferences/import", bytes.NewReader(exportRec.Body.Bytes()))
	importRec := httptest.NewRecorder()
	freshHandler.Import(importRec, importReq)

	assert.Equal(t, http.StatusOK, importRec.Code)
	assert.NotEmpty(t, fresh.Stats())
}

func TestPreferenceHandlerImportRejectsCorruptData(t *testing.T) {
	h := NewPreferenceHandler(preference.New(nil), nil)
	req := httptest.NewRequest(http.MethodPost, "/preferences/import", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	h.Import(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
