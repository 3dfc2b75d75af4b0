package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/creditbridge/decision-service/application"
	"github.com/creditbridge/decision-service/background"
	"github.com/creditbridge/decision-service/decision"
	"github.com/creditbridge/decision-service/ensemble"
	"github.com/creditbridge/decision-service/explain"
	"github.com/creditbridge/decision-service/fairness"
	"github.com/creditbridge/decision-service/features"
	"github.com/creditbridge/decision-service/frauddetectors"
	"github.com/creditbridge/decision-service/fraudengine"
	"github.com/creditbridge/decision-service/guards"
	"github.com/creditbridge/decision-service/infrastructure"
	"github.com/creditbridge/decision-service/interfaces"
	"github.com/creditbridge/decision-service/models"
	"github.com/creditbridge/decision-service/pkg/clock"
	"github.com/creditbridge/decision-service/pkg/config"
	"github.com/creditbridge/decision-service/pkg/logger"
	"github.com/creditbridge/decision-service/policy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logger.Level, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	appLogger := zapLogger.With(zap.String("service", "credit-decision-service"))

	db, err := setupDatabase(cfg.Database.URL, appLogger)
	if err != nil {
		appLogger.Fatal("failed to set up database", zap.Error(err))
	}
	defer db.Close()

	orchestrator := setupOrchestrator(db, cfg, appLogger)

	loanHandler := interfaces.NewLoanHandler(orchestrator, appLogger)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := interfaces.NewRouter(loanHandler, appLogger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", zap.Error(err))
	} else {
		appLogger.Info("server shutdown completed")
	}
}

// setupDatabase opens the connection pool and applies the repository's
// idempotent schema.
func setupDatabase(databaseURL string, logger *zap.Logger) (*sql.DB, error) {
	logger.Info("connecting to database")

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := infrastructure.NewPostgresRepository(db, logger)
	if err := repo.InitializeSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

// setupOrchestrator wires the Repository, Feature Engine, Models, Fraud
// Detectors, Fraud Engine, Explainability Engine, Ensemble, Policy Rules,
// Decision Engine, Background Runner, Request Guards, and Fairness
// Monitor into the pipeline the spec describes (§2, §4.K).
func setupOrchestrator(db *sql.DB, cfg *config.Config, logger *zap.Logger) *application.Orchestrator {
	repo := infrastructure.NewPostgresRepository(db, logger)
	clk := clock.Real{}

	featureEngine := features.NewEngine(repo, clk, cfg.Feature.LookbackDays, logger)

	creditModels := []models.Model{
		models.NewRuleBasedCreditModel(),
		models.NewTrustGraphModel(),
	}

	detectors := []frauddetectors.Detector{
		frauddetectors.NewRuleBasedFraudDetector(),
		frauddetectors.NewTrustGraphFraudDetector(),
	}
	fraudEngine := fraudengine.NewEngine(detectors, fraudengine.AggregationStrategy(cfg.FraudEngine.AggregationStrategy), logger)

	explainer := explain.NewEngine()

	weights := ensemble.Weights{
		Credit: cfg.Ensemble.WeightCredit,
		Trust:  cfg.Ensemble.WeightTrust,
		Fraud:  cfg.Ensemble.WeightFraud,
	}
	ens := ensemble.New(creditModels, fraudEngine, weights, cfg.Ensemble.EnsembleVersion, explainer, logger)

	policyCfg := policy.Config{
		MinApprovalScore:         cfg.Policy.MinApprovalScore,
		MinReviewScore:           cfg.Policy.MinReviewScore,
		MaxLoanAmount:            cfg.Policy.MaxLoanAmount,
		RequireManualReviewAbove: cfg.Policy.RequireManualReviewAbove,
		MaxFraudScore:            cfg.Policy.MaxFraudScore,
		CriticalRiskThreshold:    cfg.Policy.CriticalRiskThreshold,
		HighRiskThreshold:        cfg.Policy.HighRiskThreshold,
		MediumRiskThreshold:      cfg.Policy.MediumRiskThreshold,
	}
	decisionEngine := decision.NewEngine(cfg.Policy.PolicyVersion, policyCfg, repo, logger)

	runner := background.NewRunner(repo, featureEngine, clk, logger)
	rateLimiter := guards.NewRateLimiter(cfg.RateLimiter.MaxRequests, cfg.RateLimiter.WindowSeconds, clk)
	idempotency := guards.NewIdempotencyCache(cfg.Idempotency.MaxEntries, cfg.Idempotency.TTLSeconds, clk)
	fairnessMonitor := fairness.NewMonitor()

	orchestratorCfg := application.Config{
		ModelVersion:    cfg.Ensemble.ModelVersion,
		EnsembleVersion: cfg.Ensemble.EnsembleVersion,
	}

	return application.NewOrchestrator(
		repo,
		featureEngine,
		ens,
		decisionEngine,
		runner,
		rateLimiter,
		idempotency,
		fairnessMonitor,
		orchestratorCfg,
		logger,
	)
}
