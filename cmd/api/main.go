// Command api runs the back-office HTTP service.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"backoffice-backend/internal/audit"
	"backoffice-backend/internal/config"
	httpapi "backoffice-backend/internal/interfaces/http"
	"backoffice-backend/internal/repository"
	"backoffice-backend/internal/repository/memory"
	"backoffice-backend/internal/repository/postgrest"
	"backoffice-backend/internal/service"
	"backoffice-backend/pkg/observability"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	watcher, err := config.NewWatcher(cfg, *configPath, logger)
	if err != nil {
		logger.Fatal("start config watcher", zap.Error(err))
	}
	defer watcher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	client := buildDataClient(cfg, logger)

	ttl := ttlConfig(cfg)
	maxBatch := cfg.Limits.MaxBatch

	purposesRepo := repository.NewAccountingPurposes(client, ttl, maxBatch, logger, metrics)
	termsRepo := repository.NewPaymentTerms(client, ttl, maxBatch, logger, metrics)
	branchesRepo := repository.NewEmployeeBranches(client, ttl, maxBatch, logger, metrics)
	pricesRepo := repository.NewSupplierPrices(client, ttl, maxBatch, logger, metrics)
	importsRepo := repository.NewPosImports(client, ttl, maxBatch, logger, metrics)
	logsRepo := repository.NewSystemLogs(client, ttl, maxBatch, logger, metrics)
	defer func() {
		purposesRepo.Close()
		termsRepo.Close()
		branchesRepo.Close()
		pricesRepo.Close()
		importsRepo.Close()
		logsRepo.Close()
	}()

	// A reloaded config retunes cache lifetimes and the bulk limit on the
	// running repositories; everything else needs a restart.
	watcher.OnReload(func(next *config.Config) {
		ttl := ttlConfig(next)
		batch := next.Limits.MaxBatch
		purposesRepo.Tune(ttl, batch)
		termsRepo.Tune(ttl, batch)
		branchesRepo.Tune(ttl, batch)
		pricesRepo.Tune(ttl, batch)
		importsRepo.Tune(ttl, batch)
		logsRepo.Tune(ttl, batch)
		logger.Info("applied reloaded cache and limit settings",
			zap.Duration("list_ttl", next.Cache.ListTTL),
			zap.Int("max_batch", batch))
	})

	auditor := audit.NewRecorder(client, cfg.Audit.QueueSize, logger, metrics)
	defer auditor.Close()

	handlers := httpapi.Handlers{
		Purposes: httpapi.NewPurposesHandler(service.NewPurposes(purposesRepo, auditor, logger), logger),
		Terms:    httpapi.NewTermsHandler(service.NewPaymentTerms(termsRepo, auditor, logger), logger),
		Branches: httpapi.NewBranchesHandler(service.NewEmployeeBranches(branchesRepo, auditor, logger), logger),
		Prices:   httpapi.NewPricesHandler(service.NewSupplierPrices(pricesRepo, auditor, logger), logger),
		Imports:  httpapi.NewImportsHandler(service.NewPosImports(importsRepo, auditor, logger), logger),
		Logs:     httpapi.NewLogsHandler(service.NewSystemLogs(logsRepo, logger), cfg.Audit.Retention, logger),
	}

	router := httpapi.NewRouter(cfg.Server, handlers, logger, metrics, registry)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("address", srv.Addr),
			zap.String("environment", string(cfg.Environment)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

// buildDataClient selects the production PostgREST client or falls back to
// the in-memory one for local development.
func buildDataClient(cfg *config.Config, logger *zap.Logger) repository.DataClient {
	if cfg.Supabase.URL != "" {
		client, err := postgrest.New(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey, cfg.Supabase.Schema)
		if err != nil {
			logger.Fatal("create postgrest client", zap.Error(err))
		}
		logger.Info("using postgrest data client", zap.String("url", cfg.Supabase.URL))
		return repository.NewRetryingClient(client, repository.DefaultRetryConfig())
	}
	logger.Warn("no supabase url configured, using in-memory data client")
	return memory.NewClient(map[string]memory.TableSpec{
		"accounting_purposes": {UniqueBy: [][]string{{"purpose_code"}}},
		"payment_terms":       {UniqueBy: [][]string{{"code"}}},
		"supplier_prices":     {UniqueBy: [][]string{{"supplier_id", "product_code", "valid_from"}}},
	})
}

func ttlConfig(cfg *config.Config) repository.TTLConfig {
	return repository.TTLConfig{
		List:            cfg.Cache.ListTTL,
		Detail:          cfg.Cache.DetailTTL,
		FilterOptions:   cfg.Cache.FilterOptionsTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		MaxEntries:      cfg.Cache.MaxEntries,
	}
}

func buildLogger(cfg config.Logging) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}
