package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/me/workgate/internal/config"
	"github.com/me/workgate/internal/events"
	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/metrics"
	"github.com/me/workgate/internal/monitor"
	"github.com/me/workgate/internal/scheduler"
	"github.com/me/workgate/internal/server"
	"github.com/me/workgate/internal/store"
	"github.com/me/workgate/internal/tracker"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Path to .env file with WORKGATE_* overrides")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "", "Database path (default ~/.workgate/workgate.db)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (text, json)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *debug {
		cfg.Log.Level = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	// Resolve database path.
	if cfg.Store.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".workgate")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		cfg.Store.Path = filepath.Join(dir, "workgate.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(cfg.Store.Path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", cfg.Store.Path)

	// Metrics.
	promReg := prom.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(promReg)

	// One tracker per OS state source, created on first use.
	storagePath := cfg.Monitor.StoragePath
	if storagePath == "" && cfg.Store.Path != ":memory:" {
		storagePath = filepath.Dir(cfg.Store.Path)
	}
	registry := tracker.NewRegistry(monitor.Factories(cfg.Monitor, storagePath, logger), logger, recorder)

	// Delta fan-out: SSE subscribers always, NATS when configured.
	bus := events.NewBroadcaster(64, logger)
	publishers := events.Multi{bus}
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			logger.Error("nats unavailable, deltas will not be published", "url", cfg.NATS.URL, "error", err)
		} else {
			publishers = append(publishers, np)
			logger.Info("publishing constraint deltas", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
		}
	}
	defer publishers.Close()

	sched := scheduler.NewLoop(st, registry, nil, scheduler.Config{
		PollInterval:    cfg.Scheduler.TickInterval,
		RefreshInterval: cfg.Scheduler.RefreshInterval,
	}, logger, scheduler.WithPublisher(publishers), scheduler.WithRecorder(recorder))

	srv := server.New(cfg.Server, st, sched, logger,
		server.WithBroadcaster(bus),
		server.WithMetricsHandler(metrics.HTTPHandler(promReg)),
	)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start scheduler in background.
	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop scheduler before HTTP server.
	if err := sched.Stop(); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}
	// End open SSE streams so Shutdown does not wait on them.
	bus.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
