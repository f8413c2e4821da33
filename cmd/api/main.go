package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ghl-extractor-backend/internal/agencykeys"
	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/branding"
	"ghl-extractor-backend/internal/config"
	"ghl-extractor-backend/internal/database"
	"ghl-extractor-backend/internal/extraction"
	"ghl-extractor-backend/internal/fields"
	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/licensing"
	"ghl-extractor-backend/internal/locations"
	"ghl-extractor-backend/internal/logging"
	"ghl-extractor-backend/internal/logs"
	"ghl-extractor-backend/internal/openai"
	"ghl-extractor-backend/internal/refresh"
	"ghl-extractor-backend/internal/rules"
	"ghl-extractor-backend/internal/triggers"
	"ghl-extractor-backend/internal/vault"
	"ghl-extractor-backend/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Postgres Pool (pgx)
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to init DB pool", zap.Error(err))
	}
	defer pool.Close()

	// 2. Auth
	authMW, err := auth.AuthMiddleware(cfg.JWTSecret, logger)
	if err != nil {
		logger.Fatal("failed to setup auth middleware", zap.Error(err))
	}

	// 3. Outbound clients
	timeout := cfg.Timeout()
	httpClient := &http.Client{Timeout: timeout}
	crm := ghl.NewClient(cfg.GHLAPIBaseURL, cfg.GHLAPIVersion, timeout)
	ai := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, timeout)
	oauthCfg := ghl.NewOAuthConfig(ghl.OAuthSettings{
		ClientID:     cfg.GHLClientID,
		ClientSecret: cfg.GHLClientSecret,
		RedirectURI:  cfg.GHLRedirectURI,
		AuthURL:      cfg.GHLAuthURL,
		TokenURL:     cfg.GHLTokenURL,
		Scopes:       cfg.Scopes(),
	})

	// Agency keys stay disabled without ENCRYPTION_KEY.
	var (
		sealer agencykeys.Sealer
		opener extraction.KeyOpener
	)
	if cfg.EncryptionKey != "" {
		v, err := vault.New(cfg.EncryptionKey)
		if err != nil {
			logger.Fatal("invalid ENCRYPTION_KEY", zap.Error(err))
		}
		sealer, opener = v, v
	} else {
		logger.Warn("ENCRYPTION_KEY not set, agency OpenAI keys are disabled")
	}

	// 4. Services and handlers
	extRepo := extraction.NewRepository(pool, cfg.FreeTierExtractionLimit)
	tokens := ghl.NewTokenManager(oauthCfg, extRepo, httpClient)
	svc := extraction.NewService(extRepo, crm, tokens, ai, opener, logger.Named("extraction"))
	owns := ownership(pool)

	extractionHandler := extraction.NewHandler(svc, owns, logger)
	webhookHandler := webhook.NewHandler(webhook.NewRepository(pool, extRepo), svc, logger.Named("webhook"))
	locationsHandler := locations.NewHandler(pool, crm, tokens, logger)
	oauthHandler := locations.NewOAuthHandler(oauthCfg, locations.NewInstallStore(pool), crm, httpClient,
		cfg.JWTSecret, cfg.DashboardURL, logger.Named("oauth"))
	fieldsHandler := fields.NewHandler(pool, logger)
	rulesHandler := rules.NewHandler(pool, logger)
	triggersHandler := triggers.NewHandler(pool, logger)
	keysHandler := agencykeys.NewHandler(agencykeys.NewRepository(pool), sealer, ai, logger)
	licensingHandler := licensing.NewHandler(licensing.NewRepository(pool), cfg.FreeTierExtractionLimit, logger)
	brandingHandler := branding.NewHandler(branding.NewRepository(pool), logger)
	logsHandler := logs.NewHandler(logs.NewRepository(pool), owns, logger)

	go refresh.NewScheduler(refresh.NewRepository(pool), tokens, cfg.RefreshInterval(), logger.Named("refresh")).Run(ctx)

	// 5. Setup Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(auth.CORS(cfg.AllowedOrigins()))

	// Public Routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.With(auth.WebhookSecret(cfg.GHLWebhookSecret)).Post("/webhooks/ghl", webhookHandler.Handle)
	r.Get("/oauth/ghl/callback", oauthHandler.Callback)

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(authMW)

		r.Get("/oauth/ghl/authorize", oauthHandler.Authorize)

		// Extraction pipeline
		r.Post("/ai-extraction-payload", extractionHandler.BuildPayload)
		r.Post("/ai-prompt-generator", extractionHandler.GeneratePrompt)
		r.Post("/openai-extraction", extractionHandler.Extract)
		r.Post("/test-openai-extraction", extractionHandler.TestExtraction)
		r.Post("/update-ghl-contact", extractionHandler.UpdateContact)
		r.Get("/get-ghl-contact", extractionHandler.GetContact)
		r.Get("/view-extraction-logs", logsHandler.List)

		// Agency settings
		r.Get("/manage-agency-keys", keysHandler.Get)
		r.Post("/manage-agency-keys", keysHandler.Save)
		r.Delete("/manage-agency-keys", keysHandler.Delete)
		r.Get("/manage-licensed-locations", licensingHandler.ListLicensed)
		r.Post("/manage-licensed-locations", licensingHandler.License)
		r.Delete("/manage-licensed-locations", licensingHandler.Unlicense)
		r.Get("/subscription-plans", licensingHandler.Plans)
		r.Get("/subscription", licensingHandler.GetSubscription)
		r.Put("/subscription", licensingHandler.SetSubscription)
		r.Get("/usage", licensingHandler.Usage)
		r.Get("/branding", brandingHandler.Get)
		r.Put("/branding", brandingHandler.Save)

		// Locations
		r.Get("/locations", locationsHandler.List)
		r.Route("/locations/{locationId}", func(r chi.Router) {
			r.Use(locations.RequireOwner(owns, logger))

			r.Get("/", locationsHandler.Get)
			r.Patch("/", locationsHandler.Update)
			r.Delete("/", locationsHandler.Delete)
			r.Get("/custom-fields", locationsHandler.CustomFields)

			r.Get("/fields", fieldsHandler.List)
			r.Post("/fields", fieldsHandler.Create)
			r.Patch("/fields/{fieldId}", fieldsHandler.Update)
			r.Delete("/fields/{fieldId}", fieldsHandler.Delete)

			r.Get("/rules", rulesHandler.List)
			r.Post("/rules", rulesHandler.Create)
			r.Patch("/rules/{ruleId}", rulesHandler.Update)
			r.Delete("/rules/{ruleId}", rulesHandler.Delete)

			r.Get("/stop-triggers", triggersHandler.List)
			r.Post("/stop-triggers", triggersHandler.Create)
			r.Patch("/stop-triggers/{triggerId}", triggersHandler.Update)
			r.Delete("/stop-triggers/{triggerId}", triggersHandler.Delete)
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	// Let queued webhook extractions finish before the pool closes.
	webhookHandler.Wait()
}

func ownership(pool *pgxpool.Pool) extraction.OwnershipFunc {
	return func(ctx context.Context, userID, locationID string) (bool, error) {
		return database.OwnsLocation(ctx, pool, userID, locationID)
	}
}
