package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/virtualdesk/fleet-console/internal/controlplane"
	"github.com/virtualdesk/fleet-console/internal/domain"
	"github.com/virtualdesk/fleet-console/internal/validation"
)

// ResourceHandler handles fleet resource endpoints. It is a thin
// pass-through to the control-plane client.
type ResourceHandler struct {
	cp controlplane.Client
}

// NewResourceHandler creates a new ResourceHandler.
func NewResourceHandler(cp controlplane.Client) *ResourceHandler {
	return &ResourceHandler{cp: cp}
}

// List lists fleet resources, optionally filtered by state, pool, region,
// or a free-text query.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ResourceFilter{
		State:  domain.ResourceState(q.Get("state")),
		Pool:   q.Get("pool"),
		Region: q.Get("region"),
		Query:  q.Get("q"),
	}

	resources, err := h.cp.ListResources(r.Context(), filter)
	if err != nil {
		handleError(w, err)
		return
	}
	if resources == nil {
		resources = []*domain.Resource{}
	}

	respondJSON(w, http.StatusOK, resources)
}

// Get fetches one resource by ID.
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateResourceID(id); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resource, err := h.cp.GetResource(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resource)
}
