package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/promptshield/promptshield/pkg/alerting"
	"github.com/promptshield/promptshield/pkg/catalog"
	"github.com/promptshield/promptshield/pkg/config"
	"github.com/promptshield/promptshield/pkg/guardrail"
	"github.com/promptshield/promptshield/pkg/infra/auditlogs"
	infraLogger "github.com/promptshield/promptshield/pkg/infra/logger"
	"github.com/promptshield/promptshield/pkg/infra/metrics"
	"github.com/promptshield/promptshield/pkg/infra/prometheus"
	"github.com/promptshield/promptshield/pkg/outputfilter"
	"github.com/promptshield/promptshield/pkg/sanitizer"
	"github.com/promptshield/promptshield/pkg/server"
	"github.com/promptshield/promptshield/pkg/simulator"
	"github.com/promptshield/promptshield/pkg/version"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	if err := config.Load("./config"); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	logger := infraLogger.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	logger.WithField("version", version.Version).Info("starting promptshield")

	prometheus.Initialize()

	cat, err := catalog.New(cfg.Rules.Custom...)
	if err != nil {
		logger.Fatalf("Failed to build pattern catalog: %v", err)
	}

	worker := metrics.NewWorker(logger, cfg.Alerting.QueueSize)
	worker.StartWorkers(cfg.Alerting.Workers)

	rules := alerting.DefaultRules()
	for _, rc := range cfg.Alerting.Rules {
		rule, err := rc.Build()
		if err != nil {
			logger.Fatalf("Failed to build alert rule: %v", err)
		}
		rules = append(rules, rule)
	}
	engine, err := alerting.NewEngine(logger, worker, rules...)
	if err != nil {
		logger.Fatalf("Failed to build alert engine: %v", err)
	}
	engine.AddHandler(alerting.NewLogHandler(logger))

	registry := metrics.NewRegistry(engine, worker)

	orchestrator := guardrail.New(
		sanitizer.New(cat, logger, sanitizer.Config{
			StrictMode: cfg.Guardrail.StrictMode,
			MaxLength:  cfg.Guardrail.MaxInputLength,
		}),
		outputfilter.New(logger, outputfilter.Config{
			RedactSensitive: cfg.Guardrail.RedactOutputs,
		}),
		simulator.New(time.Now().UnixNano()),
		engine,
		registry,
		logger,
		guardrail.Config{
			StrictMode:    cfg.Guardrail.StrictMode,
			SecurityLevel: cfg.Guardrail.ParsedSecurityLevel(),
		},
	)

	auditTrail := auditlogs.NewService(logger, true, 0)
	orchestrator.AttachAuditTrail(auditTrail)

	srv := server.NewCheckServer(server.CheckServerDI{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: orchestrator,
		AuditTrail:   auditTrail,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		worker.Shutdown()
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
	}
}
