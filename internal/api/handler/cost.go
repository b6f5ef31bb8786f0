package handler

import (
	"net/http"

	"github.com/virtualdesk/fleet-console/internal/controlplane"
)

// CostHandler handles cost analytics endpoints.
type CostHandler struct {
	cp controlplane.Client
}

// NewCostHandler creates a new CostHandler.
func NewCostHandler(cp controlplane.Client) *CostHandler {
	return &CostHandler{cp: cp}
}

// Summary returns the fleet cost aggregation.
func (h *CostHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cp.CostSummary(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
