package handlers

import (
	"io"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/models"
	"github.com/ternarybob/orchestrator/internal/preference"
)

// modelFamilyCandidates is the fixed set of model-family capabilities
// scored when a caller doesn't otherwise narrow the candidate set.
var modelFamilyCandidates = []string{
	string(models.CapabilitySD15),
	string(models.CapabilitySDXL),
	string(models.CapabilitySD3),
	string(models.CapabilityFlux),
}

// PreferenceHandler serves the /preferences surface. It holds the concrete
// Engine rather than interfaces.PreferenceEngine so it can reach Stats,
// which isn't part of that narrower contract.
type PreferenceHandler struct {
	engine *preference.Engine
	logger arbor.ILogger
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(engine *preference.Engine, logger arbor.ILogger) *PreferenceHandler {
	return &PreferenceHandler{engine: engine, logger: logger}
}

// Stats handles GET /preferences/stats.
func (h *PreferenceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.engine.Stats())
}

type recommendModelResponse struct {
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
}

// RecommendModel handles GET /preferences/recommend/model?prompt=....
func (h *PreferenceHandler) RecommendModel(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	prompt := r.URL.Query().Get("prompt")
	if prompt == "" {
		WriteError(w, http.StatusBadRequest, "prompt query parameter required")
		return
	}

	rec := h.engine.RecommendModel(prompt, modelFamilyCandidates)
	WriteJSON(w, http.StatusOK, recommendModelResponse{
		Model:      rec.ID,
		Confidence: rec.Confidence,
	})
}

// Export handles GET /preferences/export.
func (h *PreferenceHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	data, err := h.engine.Export()
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import handles POST /preferences/import.
func (h *PreferenceHandler) Import(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Import(data); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "imported"})
}
