package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rental-scraper/api"
	"rental-scraper/config"
	"rental-scraper/metrics"
	"rental-scraper/scraper"
	"rental-scraper/scraper/registry"
	"rental-scraper/services"
	"rental-scraper/storage"
	"rental-scraper/utils"
)

func main() {
	cfg := config.Load()

	serve := flag.Bool("serve", false, "run the HTTP API instead of a one-shot scrape")
	dryRun := flag.Bool("dry-run", false, "keep results in memory instead of PostgreSQL")
	city := flag.String("city", cfg.City, "city to scrape")
	sources := flag.String("sources", strings.Join(cfg.Sources, ","), `comma-separated source ids or "all"`)
	suburbs := flag.String("suburbs", strings.Join(cfg.Suburbs, ","), "comma-separated suburbs")
	sequential := flag.Bool("sequential", !cfg.Concurrent, "scrape sources one after another")
	flag.Parse()

	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	logger.Info("=== Rental Scraping System starting ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceOpts, err := cfg.SourceOptions()
	if err != nil {
		logger.Error("Invalid sources file: %v", err)
		os.Exit(1)
	}

	collector := metrics.New()

	var store storage.Store
	if *dryRun {
		logger.Info("Dry run: results are kept in memory")
		store = storage.NewMemoryStore()
	} else {
		pg, err := storage.NewPostgresStore(ctx, cfg.DSN(), logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			os.Exit(1)
		}
		store = pg
	}
	defer store.Close()

	var raw storage.RawListingWriter
	if cfg.CSVOutputPath != "" {
		w, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
			os.Exit(1)
		}
		defer w.Close()
		raw = w
	}

	factory := &registry.Factory{
		Options: sourceOpts,
		Deps:    scraper.Deps{Logger: logger, Metrics: collector},
	}
	orchestrator := services.NewOrchestrator(factory, logger, collector)
	pipeline := services.NewPipeline(orchestrator, store, raw, logger, collector)

	if *serve {
		if err := runServer(ctx, cfg, store, pipeline, collector, logger); err != nil {
			logger.Error("Server stopped: %v", err)
			os.Exit(1)
		}
		return
	}

	summary, err := pipeline.Run(ctx, services.Request{
		Sources:        splitFlag(*sources),
		City:           *city,
		Suburbs:        splitFlag(*suburbs),
		Concurrent:     !*sequential,
		SourceDeadline: cfg.SourceDeadline,
	})
	if err != nil {
		logger.Error("Scrape failed: %v", err)
		os.Exit(1)
	}
	for _, e := range summary.Errors {
		logger.Warn("  %s", e)
	}

	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(insightSvc.Generate(summary.Stored))

	fmt.Printf("  Done. Job %s: %d found, %d added, %d updated\n\n",
		summary.JobID, summary.Found, summary.Added, summary.Updated)
	if !summary.Success {
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config, store storage.Store, pipeline *services.Pipeline,
	collector *metrics.Collector, logger *utils.Logger) error {
	trigger := services.NewTrigger(pipeline, cfg.TriggerDeadline, logger)
	handler := api.NewHandler(store, trigger, pipeline, collector.Handler(), api.Options{
		BatchMaxPages:  cfg.BatchMaxPages,
		BatchDeadline:  cfg.BatchDeadline,
		SourceDeadline: cfg.SourceDeadline,
		Concurrent:     cfg.Concurrent,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server running on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	logger.Info("Waiting for %d background scrapes", trigger.InFlight())
	trigger.Wait()
	return nil
}

func splitFlag(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
