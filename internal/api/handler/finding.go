package handler

import (
	"net/http"

	"github.com/virtualdesk/fleet-console/internal/controlplane"
	"github.com/virtualdesk/fleet-console/internal/domain"
)

// FindingHandler handles IAM/security finding endpoints.
type FindingHandler struct {
	cp controlplane.Client
}

// NewFindingHandler creates a new FindingHandler.
func NewFindingHandler(cp controlplane.Client) *FindingHandler {
	return &FindingHandler{cp: cp}
}

// List lists findings, optionally filtered by severity.
func (h *FindingHandler) List(w http.ResponseWriter, r *http.Request) {
	severity := domain.FindingSeverity(r.URL.Query().Get("severity"))
	switch severity {
	case "", domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow:
	default:
		respondError(w, http.StatusBadRequest, "invalid severity")
		return
	}

	findings, err := h.cp.ListFindings(r.Context(), severity)
	if err != nil {
		handleError(w, err)
		return
	}
	if findings == nil {
		findings = []*domain.Finding{}
	}

	respondJSON(w, http.StatusOK, findings)
}
