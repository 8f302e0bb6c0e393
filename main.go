package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blogem/memorial-registry/authenticator"
	"github.com/blogem/memorial-registry/config"
	"github.com/blogem/memorial-registry/controllers"
	"github.com/blogem/memorial-registry/database"
	"github.com/blogem/memorial-registry/logging"
	appmiddleware "github.com/blogem/memorial-registry/middleware"
	"github.com/blogem/memorial-registry/repositories"
	"github.com/blogem/memorial-registry/services"
	"github.com/blogem/memorial-registry/storage"
	_ "github.com/blogem/memorial-registry/storage/local"
	_ "github.com/blogem/memorial-registry/storage/s3"
)

func main() {
	// Load environment variables from .env file if there is one
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Path,
		"public_search", cfg.Access.PublicSearch,
		"public_export", cfg.Access.PublicExport,
		"import_dedup", cfg.Import.Dedup,
		"oidc", cfg.OIDC.Enabled(),
		"backup_backend", cfg.Backup.Backend,
	)

	// Initialize database
	db, err := database.InitializeDatabase(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	backups, err := storage.New(cfg.Backup)
	if err != nil {
		slog.Error("failed to initialize backup storage", "error", err)
		os.Exit(1)
	}

	store := repositories.NewStore(db)
	srvs := services.NewServices(store, services.Options{
		PublicSearch: cfg.Access.PublicSearch,
		PublicExport: cfg.Access.PublicExport,
		ImportDedup:  cfg.Import.Dedup,
		Backups:      backups,
	})
	ctrl := controllers.NewControllers(srvs, controllers.Options{
		Search:         services.FuzzyOptions{MaxResults: cfg.Search.MaxResults, Cutoff: cfg.Search.Cutoff},
		ImportMaxBytes: cfg.Import.MaxBytes,
		AdminEmails:    cfg.OIDC.AdminEmails,
	})

	// OpenID Connect login is optional
	var provider authenticator.Provider
	if cfg.OIDC.Enabled() {
		provider, err = authenticator.NewOpenIDProvider(context.Background(), authenticator.OpenIDConfig{
			Domain:       cfg.OIDC.Domain,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			CallbackURL:  cfg.OIDC.CallbackURL,
		})
		if err != nil {
			slog.Error("failed to initialize OpenID Connect provider", "error", err)
			os.Exit(1)
		}
	}

	r, err := setupRouter(cfg, ctrl, provider)
	if err != nil {
		slog.Error("failed to setup router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// setupRouter configures all routes. provider may be nil when OpenID Connect
// login is not configured.
func setupRouter(cfg *config.Config, ctrl *controllers.Controllers, provider authenticator.Provider) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(appmiddleware.Metrics)

	lifetime := int64(cfg.Server.SessionLifetime.Seconds())

	// Session middleware
	sessionHandler, err := session.Sessioner(session.Options{
		Provider:       "memory",
		ProviderConfig: "",
		CookieName:     "memorial_session",
		Secure:         cfg.Server.UseHTTPS, // Set to true when USE_HTTPS=true (production)
		Gclifetime:     lifetime,
		Maxlifetime:    lifetime,
	})
	if err != nil {
		return nil, err
	}
	r.Use(sessionHandler)
	r.Use(appmiddleware.LoadActor)
	r.Use(appmiddleware.RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "healthy", "service": "memorial-registry"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Authentication
	r.Post("/login", ctrl.Auth.Login)
	r.Post("/logout", ctrl.Auth.Logout)
	r.Get("/me", ctrl.Auth.Me)
	if provider != nil {
		r.Get("/login/oidc", ctrl.Auth.OIDCLogin(provider))
		r.Get("/callback", ctrl.Auth.Callback(provider))
	}

	// Search; open to anonymous callers unless PUBLIC_SEARCH=false
	r.Get("/search", ctrl.Search.Search)
	r.Get("/autocomplete", ctrl.Search.Autocomplete)

	// Import/export
	r.Post("/import", ctrl.Transfer.Import)
	r.Get("/export", ctrl.Transfer.Export)

	// Record management
	r.Route("/records", func(r chi.Router) {
		r.Get("/", ctrl.Records.Index)
		r.Post("/", ctrl.Records.Create)
		r.Get("/{id}", ctrl.Records.Show)
		r.Put("/{id}", ctrl.Records.Update)
		r.Delete("/{id}", ctrl.Records.Delete)
	})

	r.Get("/logs", ctrl.Audit.Index)

	r.Route("/backups", func(r chi.Router) {
		r.Get("/", ctrl.Backup.Index)
		r.Post("/", ctrl.Backup.Create)
		r.Post("/{name}/restore", ctrl.Backup.Restore)
	})

	return r, nil
}
