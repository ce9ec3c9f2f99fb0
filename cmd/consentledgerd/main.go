package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nehagowda06/consent-ledger/pkg/config"
	"github.com/nehagowda06/consent-ledger/pkg/cryptosign"
	"github.com/nehagowda06/consent-ledger/pkg/database"
	"github.com/nehagowda06/consent-ledger/pkg/identity"
	"github.com/nehagowda06/consent-ledger/pkg/metrics"
	"github.com/nehagowda06/consent-ledger/pkg/server"
	"github.com/nehagowda06/consent-ledger/pkg/webhook"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var showHelp = flag.Bool("help", false, "Show help message")
	flag.Parse()
	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Printf("starting consentledgerd in %s mode", cfg.Env)

	dbClient, err := database.NewClient(cfg.DatabaseURL, database.WithLogger(
		log.New(log.Writer(), "[database] ", log.LstdFlags),
	))
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer dbClient.Close()

	if cfg.AutoSchemaCreate {
		if err := dbClient.MigrateUp(context.Background()); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
	}

	tenants := database.NewTenantRepository(dbClient)
	apiKeys := database.NewApiKeyRepository(dbClient)
	consents := database.NewConsentRepository(dbClient)
	audits := database.NewAuditRepository(dbClient)
	lineage := database.NewLineageRepository(dbClient)
	systemEvents := database.NewSystemEventRepository(dbClient)
	idempotency := database.NewIdempotencyRepository(dbClient)
	rateLimits := database.NewRateLimitRepository(dbClient)
	assertions := database.NewAssertionRepository(dbClient)
	identityKeys := database.NewIdentityKeyRepository(dbClient)
	webhooks := database.NewWebhookRepository(dbClient)

	signer, fingerprint, err := loadOrCreateSystemSigner(context.Background(), cfg, identityKeys)
	if err != nil {
		log.Fatalf("failed to establish system signing key: %v", err)
	}

	registry := metrics.NewRegistry()
	for _, name := range []string{"operation_failed", "tenant_write_denied", "rate_limit_exceeded", "idempotency_conflict"} {
		registry.Init(name)
	}

	sender := webhook.NewSender(cfg.WebhookSigningSecret)
	worker := webhook.NewWorker(webhook.WorkerConfig{
		Store:    webhooks,
		Sender:   sender,
		Interval: 10 * time.Second,
		Batch:    100,
		Logger:   log.New(log.Writer(), "[webhook-worker] ", log.LstdFlags),
	})

	srv := &server.Server{
		Env:                  cfg.Env,
		AdminApiKey:          cfg.AdminApiKey,
		ApiKeyHashSecret:     cfg.ApiKeyHashSecret,
		RateLimitPerMin:      cfg.RateLimitPerMinute,
		AnchorCommitFilePath: cfg.AnchorCommitFilePath,

		DB:           dbClient,
		Tenants:      tenants,
		ApiKeys:      apiKeys,
		Consents:     consents,
		Audits:       audits,
		Lineage:      lineage,
		System:       systemEvents,
		Idempotency:  idempotency,
		RateLimits:   rateLimits,
		Assertions:   assertions,
		IdentityKeys: identityKeys,
		Webhooks:     webhooks,

		Metrics: registry,
		Logger:  log.New(log.Writer(), "[server] ", log.LstdFlags),

		Worker: worker,

		Signer:            signer,
		SignerFingerprint: fingerprint,
	}

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Mux(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry.Gatherer(), promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	go func() {
		log.Printf("consentledgerd API listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	go func() {
		log.Printf("consentledgerd metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down consentledgerd...")
	cancel()
	worker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}

// loadOrCreateSystemSigner resolves the system-scoped identity key used to
// co-sign lineage exports and consent proofs. With no
// seed configured the process runs unsigned (Signer stays nil); with one
// configured it derives the key deterministically and registers its
// fingerprint exactly once, reusing the existing identity_keys row on
// every subsequent restart.
func loadOrCreateSystemSigner(ctx context.Context, cfg *config.Config, keys *database.IdentityKeyRepository) (*cryptosign.Signer, string, error) {
	if cfg.SigningKeySeedHex == "" {
		return nil, "", nil
	}

	signer, err := cryptosign.NewSignerFromSeedHex(cfg.SigningKeySeedHex)
	if err != nil {
		return nil, "", err
	}
	fingerprint, err := identity.Fingerprint(signer.PublicKeyHex())
	if err != nil {
		return nil, "", err
	}

	if _, err := keys.GetByFingerprint(ctx, fingerprint); err == nil {
		return signer, fingerprint, nil
	}

	key, err := identity.NewKey(identity.ScopeSystem, nil, signer.PublicKeyHex())
	if err != nil {
		return nil, "", err
	}
	row := database.IdentityKeyRow{
		ID:          key.ID,
		Scope:       string(key.Scope),
		OwnerID:     key.OwnerID,
		PublicKey:   key.PublicKey,
		Fingerprint: key.Fingerprint,
		CreatedAt:   key.CreatedAt,
		RevokedAt:   key.RevokedAt,
	}
	if err := keys.Insert(ctx, &row); err != nil {
		return nil, "", err
	}
	return signer, fingerprint, nil
}

func printHelp() {
	log.Println("consentledgerd: multi-tenant consent ledger service")
	log.Println("flags:")
	log.Println("  -help   show this message")
	log.Println("environment:")
	log.Println("  ENV, HTTP_ADDR, METRICS_ADDR, DATABASE_URL, API_KEY_HASH_SECRET,")
	log.Println("  WEBHOOK_SIGNING_SECRET, ADMIN_API_KEY, RATE_LIMIT_PER_MINUTE,")
	log.Println("  LEDGER_SIGNING_KEY_SEED_HEX, ANCHOR_COMMIT_FILE_PATH")
}
