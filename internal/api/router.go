package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/virtualdesk/fleet-console/internal/api/handler"
	"github.com/virtualdesk/fleet-console/internal/api/middleware"
	"github.com/virtualdesk/fleet-console/internal/auth"
	"github.com/virtualdesk/fleet-console/internal/controlplane"
	"github.com/virtualdesk/fleet-console/internal/service"
	"github.com/virtualdesk/fleet-console/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	cp controlplane.Client,
	bulkService *service.BulkService,
	bootstrapKey string,
	oidcVerifier *auth.OIDCVerifier,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(store, bootstrapKey, oidcVerifier))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Fleet resources
		resourceHandler := handler.NewResourceHandler(cp)
		r.Get("/resources", resourceHandler.List)
		r.Get("/resources/{id}", resourceHandler.Get)

		// Cost analytics
		costHandler := handler.NewCostHandler(cp)
		r.Get("/costs/summary", costHandler.Summary)

		// IAM/security findings
		findingHandler := handler.NewFindingHandler(cp)
		r.Get("/findings", findingHandler.List)

		// Bulk operations
		bulkHandler := handler.NewBulkHandler(bulkService, store)
		r.Post("/bulk", bulkHandler.Execute)
		r.Get("/bulk/actions", bulkHandler.Actions)
		r.Post("/bulk/retry", bulkHandler.Retry)
		r.Get("/bulk/history", bulkHandler.History)
		r.Get("/bulk/history/{batch_id}", bulkHandler.HistoryDetail)
		r.Post("/bulk/{batch_id}/cancel", bulkHandler.Cancel)
	})

	return r
}
