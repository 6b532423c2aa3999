package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/genexec"
	"github.com/ternarybob/orchestrator/internal/iteration"
	"github.com/ternarybob/orchestrator/internal/models"
)

// GenerateHandler serves the /generate surface.
type GenerateHandler struct {
	controller *iteration.Controller
	logger     arbor.ILogger
}

// NewGenerateHandler creates a GenerateHandler.
func NewGenerateHandler(controller *iteration.Controller, logger arbor.ILogger) *GenerateHandler {
	return &GenerateHandler{controller: controller, logger: logger}
}

type parameterBundleRequest struct {
	Width       int                  `json:"width"`
	Height      int                  `json:"height"`
	Steps       int                  `json:"steps"`
	Guidance    float64              `json:"guidance"`
	Sampler     string               `json:"sampler"`
	Scheduler   string               `json:"scheduler"`
	Seed        int64                `json:"seed"`
	SourceImage string               `json:"source_image,omitempty"`
	Denoise     float64              `json:"denoise,omitempty"`
	Adapters    []models.AdapterSpec `json:"adapters,omitempty"`
}

func (p parameterBundleRequest) toBundle() models.ParameterBundle {
	return models.ParameterBundle{
		Width: p.Width, Height: p.Height, Steps: p.Steps, Guidance: p.Guidance,
		Sampler: p.Sampler, Scheduler: p.Scheduler, Seed: p.Seed,
		SourceImage: p.SourceImage, Denoise: p.Denoise, Adapters: p.Adapters,
	}
}

type singleGenerateRequest struct {
	SessionID      string                 `json:"session_id" validate:"required"`
	Stage          int                    `json:"stage"`
	TaskClass      models.TaskClass       `json:"task_class" validate:"required"`
	ModelFamily    models.Capability      `json:"model_family" validate:"required"`
	Prompt         string                 `json:"prompt" validate:"required"`
	NegativePrompt string                 `json:"negative_prompt,omitempty"`
	Params         parameterBundleRequest `json:"params"`
	PreferredNode  string                 `json:"preferred_node,omitempty"`
}

// Single handles POST /generate.
func (h *GenerateHandler) Single(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req singleGenerateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.controller.SubmitSingle(r.Context(), genexec.SingleRequest{
		SessionID: req.SessionID, Stage: req.Stage, TaskClass: req.TaskClass,
		ModelFamily: req.ModelFamily, Prompt: req.Prompt, NegativePrompt: req.NegativePrompt,
		Params: req.Params.toBundle(), PreferredNode: req.PreferredNode,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, job)
}

type batchGenerateRequest struct {
	SessionID       string                 `json:"session_id" validate:"required"`
	Stage           int                    `json:"stage"`
	TaskClass       models.TaskClass       `json:"task_class" validate:"required"`
	ModelFamily     models.Capability      `json:"model_family" validate:"required"`
	Prompt          string                 `json:"prompt" validate:"required"`
	NegativePrompt  string                 `json:"negative_prompt,omitempty"`
	Params          parameterBundleRequest `json:"params"`
	Count           int                    `json:"count" validate:"required,gt=0"`
	SeedStart       int64                  `json:"seed_start"`
	ExploreModels   bool                   `json:"explore_models,omitempty"`
	ModelCandidates []models.Capability    `json:"model_candidates,omitempty"`
	AutoAdapters    bool                   `json:"auto_adapters,omitempty"`
}

// Batch handles POST /generate/batch.
func (h *GenerateHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req batchGenerateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := h.controller.SubmitBatch(r.Context(), genexec.BatchRequest{
		SessionID: req.SessionID, Stage: req.Stage, TaskClass: req.TaskClass,
		ModelFamily: req.ModelFamily, Prompt: req.Prompt, NegativePrompt: req.NegativePrompt,
		Params: req.Params.toBundle(), Total: req.Count, SeedStart: req.SeedStart,
		ExploreModels: req.ExploreModels, ModelCandidates: req.ModelCandidates, AutoAdapters: req.AutoAdapters,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, batch)
}

// Get handles GET /generate/{id}, which may name either a single job or a
// batch; jobs are tried first since single-image submissions are the
// common case.
func (h *GenerateHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/generate/")
	if id == "" {
		WriteError(w, http.StatusNotFound, "generation id required")
		return
	}

	if job, err := h.controller.GetJob(id); err == nil {
		WriteJSON(w, http.StatusOK, job)
		return
	}

	batch, err := h.controller.GetBatch(id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, batch)
}
