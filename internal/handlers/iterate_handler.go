package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/iteration"
)

// IterateHandler serves the /iterate surface.
type IterateHandler struct {
	controller *iteration.Controller
	logger     arbor.ILogger
}

// NewIterateHandler creates an IterateHandler.
func NewIterateHandler(controller *iteration.Controller, logger arbor.ILogger) *IterateHandler {
	return &IterateHandler{controller: controller, logger: logger}
}

type iterateRequest struct {
	SessionID            string                   `json:"session_id" validate:"required"`
	Stage                int                      `json:"stage"`
	Action               iteration.FeedbackAction `json:"action" validate:"required"`
	SelectedIDs          []string                 `json:"selected_ids,omitempty"`
	RejectedIDs          []string                 `json:"rejected_ids,omitempty"`
	FeedbackText         string                   `json:"feedback_text,omitempty"`
	ParameterAdjustments map[string]interface{}   `json:"parameter_adjustments,omitempty"`
}

// Iterate handles POST /iterate.
func (h *IterateHandler) Iterate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req iterateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.controller.Iterate(r.Context(), iteration.IterateRequest{
		SessionID: req.SessionID, Stage: req.Stage, Action: req.Action,
		SelectedIDs: req.SelectedIDs, RejectedIDs: req.RejectedIDs,
		FeedbackText: req.FeedbackText, ParameterAdjustments: req.ParameterAdjustments,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type rejectAllRequest struct {
	SessionID    string   `json:"session_id" validate:"required"`
	Stage        int      `json:"stage"`
	RejectedIDs  []string `json:"rejected_ids" validate:"required"`
	FeedbackText string   `json:"feedback_text,omitempty"`
}

// RejectAll handles POST /iterate/reject-all.
func (h *IterateHandler) RejectAll(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req rejectAllRequest
	if err := decodeAndValidate(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.controller.Iterate(r.Context(), iteration.IterateRequest{
		SessionID: req.SessionID, Stage: req.Stage, Action: iteration.FeedbackRejectAll,
		RejectedIDs: req.RejectedIDs, FeedbackText: req.FeedbackText,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
