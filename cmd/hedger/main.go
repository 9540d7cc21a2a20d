package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/rickgao/kalshi-hedger/internal/api"
	"github.com/rickgao/kalshi-hedger/internal/auth"
	"github.com/rickgao/kalshi-hedger/internal/config"
	"github.com/rickgao/kalshi-hedger/internal/database"
	"github.com/rickgao/kalshi-hedger/internal/engine"
	"github.com/rickgao/kalshi-hedger/internal/exec"
	"github.com/rickgao/kalshi-hedger/internal/feed"
	"github.com/rickgao/kalshi-hedger/internal/journal"
	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/metrics"
	"github.com/rickgao/kalshi-hedger/internal/model"
	"github.com/rickgao/kalshi-hedger/internal/report"
	"github.com/rickgao/kalshi-hedger/internal/rotation"
	"github.com/rickgao/kalshi-hedger/internal/version"
)

const execQueueSize = 256

func main() {
	configPath := flag.String("config", "configs/hedger.local.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting hedger",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"mode", cfg.Engine.Mode,
		"series", cfg.Markets.SeriesTickers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Credentials are required in live mode; paper trades public data only.
	var creds *auth.Credentials
	if !cfg.Engine.Paper() || cfg.API.APIKey != "" {
		creds, err = auth.LoadCredentials(cfg.API.APIKey, cfg.API.PrivateKeyPath)
		if err != nil {
			if !cfg.Engine.Paper() {
				logger.Error("failed to load credentials", "error", err)
				os.Exit(1)
			}
			logger.Warn("no credentials, running paper with public data only", "error", err)
			creds = nil
		}
	}

	clientOpts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	}
	if creds != nil {
		clientOpts = append(clientOpts, api.WithCredentials(creds))
	}
	apiClient := api.NewClient(cfg.API.RestURL, cfg.API.APIKey, clientOpts...)

	status, err := apiClient.GetExchangeStatus(ctx)
	if err != nil {
		logger.Error("failed to get exchange status", "error", err)
		os.Exit(1)
	}
	logger.Info("exchange status",
		"exchange_active", status.ExchangeActive,
		"trading_active", status.TradingActive,
	)
	if !cfg.Engine.Paper() && !status.TradingActive {
		logger.Error("trading is not active, refusing to start live")
		os.Exit(1)
	}

	// Fail fast on a mistyped series ticker.
	for _, s := range cfg.Markets.SeriesTickers {
		if _, err := apiClient.GetSeries(ctx, s); err != nil {
			logger.Error("series lookup failed", "series", s, "error", err)
			os.Exit(1)
		}
	}

	initial, err := rotation.Bootstrap(ctx, apiClient, cfg.Markets.SeriesTickers)
	if err != nil {
		logger.Error("failed to resolve active markets", "error", err)
		os.Exit(1)
	}
	for _, am := range initial {
		logger.Info("active market",
			"series", am.Series, "ticker", am.Ticker,
			"open_ts", am.OpenTS, "close_ts", am.CloseTS)
	}

	shared := market.NewShared(nil)
	rotation.SeedTimes(shared, initial)

	// Optional fill journal.
	var fillSink feed.FillSink
	var jnl *journal.Journal
	if cfg.Journal.Enabled() {
		pool, err := database.Connect(ctx, cfg.Journal.Postgres)
		if err != nil {
			logger.Error("failed to connect journal database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		jnl = journal.New(cfg.Journal, pool, logger)
		if err := jnl.Start(ctx); err != nil {
			logger.Error("failed to start journal", "error", err)
			os.Exit(1)
		}
		fillSink = jnl
		logger.Info("journal enabled", "host", cfg.Journal.Postgres.Host)
	}

	execQueue := make(chan model.ExecCommand, execQueueSize)

	var paper *exec.Paper
	if cfg.Engine.Paper() {
		paper = exec.NewPaper(shared, *cfg.Engine.PaperRejectPostOnlyCross, logger)
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.API.OrdersPerSecond), cfg.API.OrdersBurst)
	executor := exec.NewExecutor(apiClient, paper, shared, limiter, execQueue, logger)

	decider := engine.NewDecider(cfg.Strategy, cfg.Signal, cfg.Engine.TickInterval, cfg.Markets.WindowLength, logger)
	driver := engine.NewDriver(decider, shared, execQueue, cfg.Engine.TickInterval, logger)

	marketFeed := feed.New(cfg.Feed, cfg.Signal, cfg.Engine.TickInterval,
		cfg.API.WSURL, creds, shared, paper, fillSink, logger)

	rotator := rotation.NewRotator(cfg.Markets, apiClient, shared, marketFeed, execQueue, initial, logger)

	metricsServer := metrics.Serve(cfg.Metrics.Port, cfg.Metrics.Path)
	logger.Info("metrics server started", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)

	// Startup order: executor first so commands drain, then the feed, then
	// the decision driver, rotation last.
	if err := executor.Start(ctx); err != nil {
		logger.Error("failed to start executor", "error", err)
		os.Exit(1)
	}
	if err := marketFeed.Start(ctx); err != nil {
		logger.Error("failed to start feed", "error", err)
		os.Exit(1)
	}
	if err := driver.Start(ctx); err != nil {
		logger.Error("failed to start decision driver", "error", err)
		os.Exit(1)
	}
	if err := rotator.Start(ctx); err != nil {
		logger.Error("failed to start rotation", "error", err)
		os.Exit(1)
	}

	logger.Info("hedger running",
		"instance_id", cfg.Instance.ID,
		"mode", cfg.Engine.Mode,
		"metrics_url", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Reverse order: stop producing decisions before tearing down the
	// executor, journal last so late fills still land.
	if err := rotator.Stop(shutdownCtx); err != nil {
		logger.Warn("rotation stop", "error", err)
	}
	if err := driver.Stop(shutdownCtx); err != nil {
		logger.Warn("driver stop", "error", err)
	}
	if err := marketFeed.Stop(shutdownCtx); err != nil {
		logger.Warn("feed stop", "error", err)
	}
	if err := executor.Stop(shutdownCtx); err != nil {
		logger.Warn("executor stop", "error", err)
	}
	if jnl != nil {
		if err := jnl.Stop(shutdownCtx); err != nil {
			logger.Warn("journal stop", "error", err)
		}
	}
	_ = metricsServer.Shutdown(shutdownCtx)

	// Final per-instrument summary.
	rows := make([]report.Row, 0)
	for _, ts := range shared.Snapshot() {
		ts.WithRead(func(m *market.Market) {
			rows = append(rows, report.Row{Ticker: ts.Ticker, Pos: m.Pos})
		})
	}
	if len(rows) > 0 {
		report.WriteSummary(os.Stdout, rows)
	}

	logger.Info("hedger stopped")
}
