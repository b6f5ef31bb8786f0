package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/virtualdesk/fleet-console/internal/api/middleware"
	"github.com/virtualdesk/fleet-console/internal/catalog"
	"github.com/virtualdesk/fleet-console/internal/domain"
	"github.com/virtualdesk/fleet-console/internal/service"
	"github.com/virtualdesk/fleet-console/internal/storage"
)

// BulkHandler handles bulk fleet-operation endpoints.
type BulkHandler struct {
	svc   *service.BulkService
	store storage.Storage
}

// NewBulkHandler creates a new BulkHandler.
func NewBulkHandler(svc *service.BulkService, store storage.Storage) *BulkHandler {
	return &BulkHandler{svc: svc, store: store}
}

// Actions lists the action catalog for the dashboard: labels and
// confirmation flags.
func (h *BulkHandler) Actions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, catalog.All())
}

// Execute runs a bulk operation to completion and returns the final
// report. Per-item failures do not fail the request; they are data in the
// report.
func (h *BulkHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req domain.ExecuteBulkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	act, err := catalog.Lookup(req.Action)
	if err != nil {
		handleError(w, err)
		return
	}
	if act.RequiresConfirmation && !req.Confirmed {
		respondError(w, http.StatusBadRequest, "action requires confirmation")
		return
	}

	opts := service.ExecuteOptions{Options: req.Options}
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil {
		opts.RequestedBy = p.Name
	}

	report, err := h.svc.Execute(r.Context(), req.Action, req.ResourceIDs, opts)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Cancel requests best-effort cancellation of an in-flight batch.
func (h *BulkHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	if batchID == "" {
		respondError(w, http.StatusBadRequest, "batch_id is required")
		return
	}

	if err := h.svc.Cancel(r.Context(), batchID); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// Retry re-submits the failed identifiers of a recorded batch as a fresh
// operation. Skipped identifiers are excluded.
func (h *BulkHandler) Retry(w http.ResponseWriter, r *http.Request) {
	var req domain.RetryBulkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BatchID == "" {
		respondError(w, http.StatusBadRequest, "batchId is required")
		return
	}

	rec, err := h.store.GetBatchRecordByBatchID(r.Context(), req.BatchID)
	if err != nil {
		handleError(w, err)
		return
	}

	action := req.Action
	if action == "" {
		action = rec.Action
	}
	if len(rec.FailedIDs) == 0 {
		handleError(w, domain.ErrNoFailedItems)
		return
	}

	opts := service.ExecuteOptions{}
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil {
		opts.RequestedBy = p.Name
	}

	report, err := h.svc.Execute(r.Context(), action, rec.FailedIDs, opts)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// History lists recorded runs, newest first.
func (h *BulkHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recs, err := h.store.ListBatchRecords(r.Context(), limit)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, recs)
}

// HistoryDetail fetches one recorded run by its batch ID.
func (h *BulkHandler) HistoryDetail(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	if batchID == "" {
		respondError(w, http.StatusBadRequest, "batch_id is required")
		return
	}

	rec, err := h.store.GetBatchRecordByBatchID(r.Context(), batchID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}
