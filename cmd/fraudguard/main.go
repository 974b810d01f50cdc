// FraudGuard - Real-time transaction fraud scoring.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fraudguard/fraudguard/internal/api"
	"github.com/fraudguard/fraudguard/internal/bus"
	"github.com/fraudguard/fraudguard/internal/cache"
	"github.com/fraudguard/fraudguard/internal/domain"
	"github.com/fraudguard/fraudguard/internal/explain"
	"github.com/fraudguard/fraudguard/internal/feature"
	"github.com/fraudguard/fraudguard/internal/metrics"
	"github.com/fraudguard/fraudguard/internal/model"
	"github.com/fraudguard/fraudguard/internal/pipeline"
	"github.com/fraudguard/fraudguard/internal/profile"
	"github.com/fraudguard/fraudguard/internal/repository"
	"github.com/fraudguard/fraudguard/internal/riskrules"
	"github.com/fraudguard/fraudguard/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load .env if present; real environment wins
	_ = godotenv.Load()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("FRAUDGUARD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting fraudguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("FRAUDGUARD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"profile_store", cfg.Profile.Type,
		"cache", cfg.Cache.Type,
		"repository", cfg.Repository.Driver,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize ProfileStore
	profiles, err := profile.New(cfg.Profile)
	if err != nil {
		slog.Error("failed to initialize profile store", "error", err)
		os.Exit(1)
	}
	defer profiles.Close()
	slog.Info("profile store initialized", "type", cfg.Profile.Type)

	// Initialize PredictionCache
	predictionCache, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize prediction cache", "error", err)
		os.Exit(1)
	}
	defer predictionCache.Close()
	slog.Info("prediction cache initialized", "type", cfg.Cache.Type, "ttl", cfg.Cache.TTL)

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize EventBus
	eventBus, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Scorer: trained artifact from disk, embedded starter model
	// as fallback
	scorer := loadScorer(cfg.Model.Path)
	metrics.SetModelVersion(scorer.Version())

	// Initialize risk-factor rules
	ruleEngine, err := riskrules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	if err := loadRiskRules(ruleEngine); err != nil {
		slog.Error("failed to load risk rules", "error", err)
		os.Exit(1)
	}
	slog.Info("risk rules loaded", "count", ruleEngine.Count())

	// Assemble pipeline
	scoringPipeline := pipeline.New(pipeline.Options{
		Scorer:         scorer,
		Extractor:      feature.New(),
		Explainer:      explain.NewEngine(ruleEngine),
		Profiles:       profiles,
		Cache:          predictionCache,
		Bus:            eventBus,
		Logger:         logger,
		Pipeline:       cfg.Pipeline,
		CacheTTL:       cfg.Cache.TTL,
		UseTxTimestamp: cfg.Profile.UseTxTimestamp,
	})

	// Start audit worker
	auditWorker := worker.NewWorker(eventBus, repo)
	if err := auditWorker.Start(); err != nil {
		slog.Error("failed to start audit worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, scoringPipeline, scorer, repo, profiles, predictionCache, eventBus, cfg.Model.Path, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("fraudguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"model_version", scorer.Version(),
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop audit worker first so in-flight events drain
	if err := auditWorker.Stop(); err != nil {
		slog.Error("failed to stop audit worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("fraudguard shutdown complete")
}

// loadScorer loads the trained artifact from disk, falling back to the
// embedded starter model so the service always boots scoreable.
func loadScorer(path string) *model.Scorer {
	artifact, err := model.LoadArtifact(path)
	if err != nil {
		slog.Warn("trained model unavailable, using embedded starter model",
			"path", path,
			"error", err,
		)
		return model.NewScorerWith(model.StarterArtifact())
	}

	slog.Info("model loaded", "path", path, "version", artifact.Version)
	return model.NewScorerWith(artifact)
}

// loadRiskRules installs the built-in rules plus any from the JSON file
// named by FRAUDGUARD_RULES.
func loadRiskRules(engine *riskrules.Engine) error {
	if err := engine.LoadRules(riskrules.DefaultRules()); err != nil {
		return err
	}

	path := os.Getenv("FRAUDGUARD_RULES")
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var custom []riskrules.Rule
	if err := json.Unmarshal(data, &custom); err != nil {
		return fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	return engine.LoadRules(custom)
}

// applyEnvOverrides layers FRAUDGUARD_* environment variables over the
// tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("FRAUDGUARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FRAUDGUARD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FRAUDGUARD_RATE_LIMIT"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit = rps
		}
	}
	if v := os.Getenv("FRAUDGUARD_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("FRAUDGUARD_REDIS_ADDR"); v != "" {
		cfg.Profile.RedisAddr = v
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("FRAUDGUARD_REDIS_PASSWORD"); v != "" {
		cfg.Profile.RedisPassword = v
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("FRAUDGUARD_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("FRAUDGUARD_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("FRAUDGUARD_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("FRAUDGUARD_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("FRAUDGUARD_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("FRAUDGUARD_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("FRAUDGUARD_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = ttl
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  FraudGuard - Real-time fraud scoring")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /predict                 - Score a transaction")
	fmt.Println("    POST   /predict/batch           - Score up to 100 transactions")
	fmt.Println("    GET    /users/{id}/profile      - User behavioral profile")
	fmt.Println("    GET    /users/{id}/predictions  - User prediction history")
	fmt.Println("    GET    /predictions/{id}        - Stored prediction")
	fmt.Println("    POST   /model/reload            - Hot-reload the model artifact")
	fmt.Println("    DELETE /cache                   - Clear the prediction cache")
	fmt.Println("    GET    /health                  - Health check")
	fmt.Println("    GET    /ready                   - Readiness check")
	fmt.Println("    GET    /stats                   - Service statistics")
	fmt.Println("    GET    /metrics                 - Prometheus metrics")
	fmt.Println()
}
