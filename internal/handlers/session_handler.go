package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/iteration"
)

// SessionHandler serves the /sessions surface.
type SessionHandler struct {
	controller *iteration.Controller
	logger     arbor.ILogger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(controller *iteration.Controller, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{controller: controller, logger: logger}
}

type createSessionRequest struct {
	FlowKind      string                 `json:"flow_kind" validate:"required"`
	InitialConfig map[string]interface{} `json:"initial_config,omitempty"`
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := h.controller.CreateSession(req.FlowKind, req.InitialConfig)
	WriteJSON(w, http.StatusCreated, session)
}

// Route dispatches /sessions/{id} and /sessions/{id}/generations requests.
func (h *SessionHandler) Route(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if rest == "" {
		WriteError(w, http.StatusNotFound, "session id required")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/generations"); ok {
		h.listGenerations(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, rest)
	case http.MethodDelete:
		h.delete(w, r, rest)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := h.controller.GetSession(sessionID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.controller.DeleteSession(sessionID); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *SessionHandler) listGenerations(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stage := -1
	if s := r.URL.Query().Get("stage"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			stage = v
		}
	}

	jobs := h.controller.ListGenerations(sessionID, stage)
	WriteJSON(w, http.StatusOK, jobs)
}
