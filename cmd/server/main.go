// Command server wires the configuration, database connection, and every
// core package (AI provider registry, time tracking, anomaly detection,
// pattern detection, alerting, test generation, integration health) into a
// single running process. It has no HTTP surface of its own: embedding an
// API layer on top of these components is left to the caller, per the
// module's scope.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/internal/config"
	"github.com/jordigilh/qa-intelligence/internal/database"
	"github.com/jordigilh/qa-intelligence/pkg/ai"
	"github.com/jordigilh/qa-intelligence/pkg/alerting"
	"github.com/jordigilh/qa-intelligence/pkg/anomaly"
	"github.com/jordigilh/qa-intelligence/pkg/coordinator"
	"github.com/jordigilh/qa-intelligence/pkg/health"
	"github.com/jordigilh/qa-intelligence/pkg/metrics"
	"github.com/jordigilh/qa-intelligence/pkg/patterns"
	"github.com/jordigilh/qa-intelligence/pkg/storage"
	"github.com/jordigilh/qa-intelligence/pkg/testgen"
	"github.com/jordigilh/qa-intelligence/pkg/tracking"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := connectDatabase(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer sqlDB.Close()

	gw := storage.New(sqlx.NewDb(sqlDB, "pgx"), log)

	metricsBundle, _ := metrics.NewMetrics("qa_intelligence", "")

	registry := buildAIRegistry(cfg.AI, metricsBundle, log)

	trackingEngine := tracking.NewEngine(gw, nil, log).WithMetrics(metricsBundle)
	patternDetector := patterns.NewDetector(gw, log).WithMetrics(metricsBundle)
	anomalyDetector := anomaly.NewDetector().WithMetrics(metricsBundle)
	seedAnomalyBaseline(ctx, gw, anomalyDetector, log)

	alertPipeline := buildAlertPipeline(cfg.Alerting, gw, log).WithMetrics(metricsBundle)

	var testGenerator *testgen.Generator
	if provider, err := registry.Get(ai.ProviderType(cfg.AI.DefaultProvider)); err == nil {
		testGenerator = testgen.NewGenerator(provider, cfg.AI.Providers[cfg.AI.DefaultProvider].Model, log)
	} else {
		log.WithError(err).Warn("no default AI provider configured, test generation is disabled")
	}

	healthStore := health.NewStoreWithThreshold(time.Duration(cfg.Health.AlertThresholdMinutes)*time.Minute, log)
	// Concrete integration checks (Jira/Postman/Testmo-style "who am I"
	// pollers) require per-integration credentials this module's
	// configuration surface does not carry, so none are registered by
	// default; a deployment wires its own via health.NewHTTPPingCheck and
	// wrapCheck, then scheduler.AddChecks.
	scheduler := buildHealthScheduler(cfg.Health, healthStore, gw, log).WithMetrics(metricsBundle)

	go scheduler.Start(ctx)

	// The coordinator is this process's only consumer of the tracking,
	// anomaly, pattern, and alerting packages together: it runs every
	// newly completed workflow through time summary calculation, anomaly
	// evaluation, and pattern evaluation, dispatching whatever each stage
	// finds through the shared alert pipeline. Since this module exposes
	// no HTTP surface of its own, the poller is its trigger in place of a
	// webhook or queue consumer an embedding deployment might supply
	// instead.
	completionCoordinator := coordinator.NewCoordinator(trackingEngine, anomalyDetector, gw, patternDetector, gw, alertPipeline, log)
	completionPoller := coordinator.NewPoller(completionCoordinator, gw, coordinator.DefaultPollInterval, log)
	go completionPoller.Start(ctx)

	log.WithFields(logrus.Fields{
		"tracking_engine":  trackingEngine != nil,
		"pattern_detector": patternDetector != nil,
		"anomaly_detector": anomalyDetector != nil,
		"alert_pipeline":   alertPipeline != nil,
		"test_generator":   testGenerator != nil,
		"coordinator":      completionCoordinator != nil,
	}).Info("qa-intelligence server started")

	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}

// connectDatabase bridges internal/config's URL-form DatabaseConfig into
// internal/database's discrete-field Config. The two packages' configs
// diverge in shape because the YAML settings file carries a single
// connection URL while the lower-level pool wrapper was built (and tested)
// against discrete host/user/password fields; net/url is used here rather
// than a third-party DSN parser because the destination shape is this
// module's own struct, not a libpq-style key/value string.
func connectDatabase(cfg config.DatabaseConfig, log *logrus.Logger) (*sql.DB, error) {
	dbConfig, err := parseDatabaseURL(cfg)
	if err != nil {
		return nil, err
	}
	return database.Connect(dbConfig, log)
}

func parseDatabaseURL(cfg config.DatabaseConfig) (*database.Config, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid database.url: %w", err)
	}

	host := u.Hostname()
	port := 5432
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	user := u.User.Username()
	password, _ := u.User.Password()
	dbName := ""
	if len(u.Path) > 1 {
		dbName = u.Path[1:]
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return &database.Config{
		Host:            host,
		Port:            port,
		User:            user,
		Password:        password,
		Database:        dbName,
		SSLMode:         sslMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, nil
}

// buildAIRegistry registers one Provider per configured slot, choosing the
// OpenAI-compatible or Anthropic dialect client by provider type. A
// provider that fails to construct is logged and skipped rather than
// aborting startup, since other providers (and the rest of the server) may
// still be usable. metrics is attached before any provider is registered so
// every one of them is instrumented.
func buildAIRegistry(cfg config.AIConfig, m *metrics.Metrics, log *logrus.Logger) *ai.Registry {
	registry := ai.NewRegistry().WithMetrics(m)

	for name, providerCfg := range cfg.Providers {
		providerType := ai.ProviderType(providerCfg.Provider)
		if providerType == "" {
			providerType = ai.ProviderType(name)
		}

		aiCfg := ai.Config{
			Provider: providerType,
			APIKey:   providerCfg.APIKey,
			BaseURL:  providerCfg.BaseURL,
			Model:    providerCfg.Model,
		}

		var (
			provider ai.Provider
			err      error
		)
		if providerType == ai.ProviderAnthropic {
			provider, err = ai.NewAnthropicProvider(aiCfg)
		} else {
			provider, err = ai.NewOpenAICompatibleProvider(aiCfg)
		}
		if err != nil {
			log.WithError(err).WithField("provider", name).Warn("failed to configure AI provider, skipping")
			continue
		}

		registry.Register(providerType, provider)
	}

	return registry
}

// buildAlertPipeline assembles the rate limiter and delivery channels
// enabled by cfg, mirroring the embedding-application wiring the original
// implementation performed around its equivalent alert dispatcher.
func buildAlertPipeline(cfg config.AlertingConfig, gw *storage.Gateway, log *logrus.Logger) *alerting.Pipeline {
	alertCfg := alerting.Config{
		MinSeverity:            alerting.Severity(cfg.MinSeverity),
		InAppEnabled:           cfg.InAppEnabled,
		EmailEnabled:           cfg.EmailEnabled,
		SlackEnabled:           cfg.SlackEnabled,
		EmailRecipient:         cfg.EmailRecipient,
		SlackWebhookURL:        cfg.SlackWebhookURL,
		RateLimitWindowSeconds: cfg.RateLimitWindowSeconds,
		MaxAlertsPerWindow:     cfg.MaxAlertsPerWindow,
	}

	var channels []alerting.Channel
	if cfg.InAppEnabled {
		channels = append(channels, alerting.NewInAppChannel(gw))
	}
	if cfg.SlackEnabled && cfg.SlackWebhookURL != "" {
		channels = append(channels, alerting.NewSlackChannel(cfg.SlackWebhookURL))
	}
	if cfg.EmailEnabled {
		channels = append(channels, alerting.NewEmailChannel(cfg.EmailRecipient, log))
	}

	rateLimiter := alerting.NewInMemoryRateLimiter(alertCfg.RateLimitWindowSeconds, alertCfg.MaxAlertsPerWindow)
	return alerting.NewPipeline(alertCfg, rateLimiter, channels, log)
}

// persistingCheck decorates a health.Check so every result it produces is
// also written through the gateway, in addition to being folded into the
// scheduler's in-memory store. This keeps pkg/health's Check/Scheduler pair
// ignorant of persistence, matching how InAppChannel rather than Pipeline
// owns persistence on the alerting side.
type persistingCheck struct {
	health.Check
	gw  *storage.Gateway
	log *logrus.Logger
}

func (c persistingCheck) Run(ctx context.Context) health.CheckResult {
	result := c.Check.Run(ctx)
	if err := c.gw.UpsertHealthCheck(ctx, result); err != nil {
		c.log.WithError(err).WithField("integration", result.Integration).
			Warn("failed to persist health check result")
	}
	return result
}

// buildHealthScheduler wires a Scheduler whose checks are supplied by the
// embedding deployment (concrete Jira/Postman/Testmo-style pollers require
// per-integration credentials this module's configuration surface does not
// carry, per SPEC_FULL.md's integration health section). The scheduler does
// not wrap checks itself: a check's results are persisted as well as tracked
// in memory only when it is passed through wrapCheck before AddCheck.
func buildHealthScheduler(cfg config.HealthConfig, store *health.Store, gw *storage.Gateway, log *logrus.Logger) *health.Scheduler {
	schedulerCfg := health.SchedulerConfig{
		Interval:        time.Duration(cfg.IntervalSeconds) * time.Second,
		RunInitialCheck: cfg.RunInitialCheck,
	}
	return health.NewScheduler(store, schedulerCfg, log)
}

// wrapCheck wraps check so the scheduler persists its results through gw in
// addition to updating the in-memory store.
func wrapCheck(check health.Check, gw *storage.Gateway, log *logrus.Logger) health.Check {
	return persistingCheck{Check: check, gw: gw, log: log}
}

// seedAnomalyBaseline primes the detector's rolling baseline from recent
// completed workflows so the first live evaluation isn't starved of
// history, mirroring how the original implementation loaded its baseline
// from storage at startup.
func seedAnomalyBaseline(ctx context.Context, gw *storage.Gateway, detector *anomaly.Detector, log *logrus.Logger) {
	executions, err := gw.GetHistoricalExecutions(ctx, 100, nil)
	if err != nil {
		log.WithError(err).Warn("failed to seed anomaly baseline from history")
		return
	}
	for _, exec := range executions {
		detector.RecordExecution(exec)
	}
	log.WithField("count", len(executions)).Info("anomaly baseline seeded from historical executions")
}
