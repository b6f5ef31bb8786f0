package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/virtualdesk/fleet-console/internal/api"
	"github.com/virtualdesk/fleet-console/internal/auth"
	"github.com/virtualdesk/fleet-console/internal/config"
	"github.com/virtualdesk/fleet-console/internal/controlplane"
	"github.com/virtualdesk/fleet-console/internal/service"
	sqlstore "github.com/virtualdesk/fleet-console/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		dir := "data"
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// Initialize storage
	store, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize control-plane client (or the demo shim when no
	// credentials are configured)
	var cp controlplane.Client
	if cfg.UseDemoShim() {
		log.Printf("No control-plane configured, using demo dataset")
		shim, err := controlplane.NewDemoShim(cfg.ControlPlane.DemoFixture)
		if err != nil {
			log.Fatalf("Failed to initialize demo shim: %v", err)
		}
		cp = shim
	} else if cfg.ControlPlane.UseOAuth() {
		httpClient := auth.NewClientCredentialsHTTPClient(
			context.Background(),
			cfg.ControlPlane.OAuthTokenURL,
			cfg.ControlPlane.OAuthClientID,
			cfg.ControlPlane.OAuthClientSecret,
			nil,
		)
		cp = controlplane.NewWithHTTPClient(cfg.ControlPlane.BaseURL, httpClient)
	} else {
		cp = controlplane.New(cfg.ControlPlane.BaseURL, cfg.ControlPlane.APIToken)
	}

	// Initialize the bulk orchestrator
	bulkService := service.NewBulkService(cp, store, cfg.Bulk.PollInterval, cfg.Bulk.MaxPolls)

	// Initialize OIDC token verification if enabled
	var oidcVerifier *auth.OIDCVerifier
	if cfg.OIDC.Enabled {
		oidcVerifier, err = auth.NewOIDCVerifier(context.Background(), cfg.OIDC.IssuerURL, cfg.OIDC.ClientID)
		if err != nil {
			log.Fatalf("Failed to initialize OIDC verifier: %v", err)
		}
	}

	// Create router
	router := api.NewRouter(store, cp, bulkService, cfg.Auth.BootstrapAPIKey, oidcVerifier)

	// Create HTTP server
	server := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Bulk requests stay open for the whole orchestration; give them
		// headroom beyond the poll budget before the server cuts them off.
		WriteTimeout: cfg.Bulk.PollInterval*time.Duration(cfg.Bulk.MaxPolls) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting Fleet Console on http://%s", cfg.Server.Addr())
	log.Printf("Press Ctrl+C to stop")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
