// Command leadscout runs the lead discovery service: a stealth browser
// engine, the scrape runner, and the REST API over one SQLite database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qosqo/leadscout/internal/api"
	"github.com/qosqo/leadscout/internal/browser"
	"github.com/qosqo/leadscout/internal/config"
	"github.com/qosqo/leadscout/internal/runner"
	"github.com/qosqo/leadscout/internal/score"
	"github.com/qosqo/leadscout/internal/source"
	"github.com/qosqo/leadscout/internal/store"

	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	listenAddr := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "database path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("config load failed", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("leadscout exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("database open", "path", cfg.DBPath)

	engine := browser.New(browser.Config{
		Headless:          cfg.Browser.HeadlessOn(),
		Stealth:           cfg.Browser.StealthOn(),
		PageTimeout:       cfg.Browser.PageTimeout,
		NavTimeout:        cfg.Browser.NavTimeout,
		NavRetries:        cfg.Browser.NavRetries,
		RequestsPerMinute: cfg.Browser.RequestsPerMinute,
		DelayMin:          cfg.Browser.DelayMin,
		DelayMax:          cfg.Browser.DelayMax,
		Logger:            logger,
	})
	// Launch Chrome at boot so the first scrape doesn't pay the startup
	// cost and launch problems surface immediately.
	if err := engine.Start(); err != nil {
		logger.Warn("browser launch failed, scraping unavailable until restart", "error", err)
	}
	defer func() {
		if err := engine.Shutdown(); err != nil {
			logger.Warn("browser shutdown", "error", err)
		}
	}()

	scorer := score.New(score.Config{
		HotThreshold:  cfg.Scoring.HotThreshold,
		WarmThreshold: cfg.Scoring.WarmThreshold,
	})

	rn := runner.New(st, engine, scorer, logger)
	handler := api.New(st, rn, scorer, engine, logger)
	handler.SetScrapeDefaults(source.Config{
		MaxThreads: cfg.Scraper.MaxThreads,
		MaxPosts:   cfg.Scraper.MaxPosts,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	// Stop the in-flight run first so it lands in a terminal state
	// before the database closes.
	if jobID, ok := rn.ActiveJob(); ok {
		rn.Cancel(jobID)
	}
	rn.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
