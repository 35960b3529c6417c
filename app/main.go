package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/byronlabs/vysion-cti/app/api"
	"github.com/byronlabs/vysion-cti/app/cfg"
	"github.com/byronlabs/vysion-cti/app/database"
	"github.com/byronlabs/vysion-cti/app/enrichment"
	"github.com/byronlabs/vysion-cti/app/opencti"
	"github.com/byronlabs/vysion-cti/app/ransomware"
	"github.com/byronlabs/vysion-cti/app/tasks"
	"github.com/byronlabs/vysion-cti/app/vysion"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Vysion CTI connector", "version", appCfg.Version, "mode", string(appCfg.Mode), "connector", appCfg.ConnectorName)

	httpClient := &http.Client{Timeout: appCfg.HTTPTimeout}
	vysionClient := vysion.NewClient(appCfg.VysionAPIURL, appCfg.VysionAPIKey, appCfg.UserAgent, httpClient)
	platform := opencti.NewClient(appCfg.OpenCTIURL, appCfg.OpenCTIToken, appCfg.ConnectorID, httpClient)

	var (
		ledgerRepo database.LedgerRepository
		runRepo    database.RunRepository
	)
	if appCfg.LedgerPath != "" {
		db, err := database.Open(appCfg.LedgerPath)
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			return err
		}
		slog.Info("Database ready", "path", appCfg.LedgerPath, "version", version, "dirty", dirty)

		ledgerRepo = database.NewLedgerRepository(db)
		runRepo = database.NewRunRepository(db)
	} else {
		slog.Warn("Submission ledger disabled, every import cycle resubmits the whole feed")
	}

	var (
		importer tasks.FeedImporter
		enricher tasks.ObservableEnricher
	)
	if appCfg.ImportEnabled() {
		var ledger ransomware.Ledger
		if ledgerRepo != nil {
			ledger = ledgerRepo
		}
		importer = ransomware.NewImporter(vysionClient, platform, ledger)
	}
	if appCfg.EnrichmentEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), appCfg.HTTPTimeout)
		_, err := platform.EnsureLabel(ctx, "whitelist", "#4caf50")
		cancel()
		if err != nil {
			return fmt.Errorf("failed to prepare platform labels: %w", err)
		}
		enricher = enrichment.NewEnricher(vysionClient, platform, appCfg.MaxTLP, appCfg.Score)
	}

	if appCfg.RunOnce {
		return runOnce(importer)
	}

	var interval time.Duration
	if importer != nil {
		interval = appCfg.Interval
	}
	scheduler := tasks.NewScheduler(importer, runRepo, interval)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Scheduler started", "import_interval", interval.String())

	handler := api.NewHandler(scheduler, importer, enricher, ledgerRepo, runRepo, appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}

// runOnce performs a single import cycle in the foreground.
func runOnce(importer tasks.FeedImporter) error {
	if importer == nil {
		return errors.New("run-once requires the import connector (mode import or all)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	report, err := importer.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("Import cycle completed",
		"fetched", report.Fetched,
		"submitted", report.Submitted,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"duration", time.Since(start).String())

	return nil
}
