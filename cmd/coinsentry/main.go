package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coinsentry/coinsentry/internal/analysis"
	"github.com/coinsentry/coinsentry/internal/channels"
	"github.com/coinsentry/coinsentry/internal/config"
	"github.com/coinsentry/coinsentry/internal/dedup"
	"github.com/coinsentry/coinsentry/internal/delivery"
	"github.com/coinsentry/coinsentry/internal/monitor"
	"github.com/coinsentry/coinsentry/internal/prefs"
	"github.com/coinsentry/coinsentry/internal/queue"
	"github.com/coinsentry/coinsentry/internal/records"
	"github.com/coinsentry/coinsentry/internal/scan"
	"github.com/coinsentry/coinsentry/internal/scorers"
	"github.com/coinsentry/coinsentry/internal/sources"
)

func main() {
	var (
		configPath string
		scanNow    bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration file.")
	flag.BoolVar(&scanNow, "scan-now", false, "Run one full scan immediately after startup.")
	flag.Parse()

	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logConfig.Build()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Configuration invalid", zap.Error(err))
	}

	logger.Info("Starting coinsentry",
		zap.String("config", configPath),
		zap.Int("worker_concurrency", cfg.Pipeline.WorkerConcurrency),
		zap.Int("max_concurrent_scans", cfg.Pipeline.MaxConcurrentScans),
	)

	m, realtime, err := build(logger, cfg)
	if err != nil {
		logger.Fatal("Pipeline construction failed", zap.Error(err))
	}

	// Prometheus endpoint.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics listening", zap.String("addr", cfg.Metrics.ListenAddr))
		if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		logger.Fatal("Monitor failed to start", zap.Error(err))
	}

	// Log realtime deliveries so the binary is useful without subscribers.
	events, cancelEvents := realtime.Subscribe()
	defer cancelEvents()
	go func() {
		for n := range events {
			logger.Info("Delivered", zap.String("summary", n.Summary()))
		}
	}()

	if scanNow {
		go m.ScanAll(ctx)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	if err := m.Stop(); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
		os.Exit(1)
	}

	stats := m.Stats()
	logger.Info("Shutdown complete",
		zap.Int64("sent", stats.Sent),
		zap.Int64("failed", stats.Failed),
	)
}

// build assembles the pipeline from configuration.
func build(logger *zap.Logger, cfg config.Config) (*monitor.Monitor, *channels.Realtime, error) {
	fuser := analysis.NewFuser(logger,
		scorers.NewLexiconSentiment(),
		scorers.NewRiskAssessor(logger),
		scorers.NewTechnicalAnalyzer(),
	)

	var store records.Store = records.NewMemory()
	if cfg.Pipeline.RecordDBPath != "" {
		sqlite, err := records.OpenSQLite(cfg.Pipeline.RecordDBPath)
		if err != nil {
			return nil, nil, err
		}
		store = sqlite
	}

	realtime := channels.NewRealtime(logger, cfg.Pipeline.EventBuffer)
	telegram, err := channels.NewTelegram(logger, cfg.Channels.Telegram.BotToken, cfg.Channels.Telegram.ChatID)
	if err != nil {
		return nil, nil, err
	}
	chans := []delivery.Channel{
		realtime,
		telegram,
		channels.NewSlack(logger, cfg.Channels.Slack.Token, cfg.Channels.Slack.Channel),
		channels.NewWebhook(logger, cfg.Channels.Webhook.URL, cfg.Channels.Webhook.Timeout),
		channels.NewEmail(logger, channels.EmailConfig{
			Host:     cfg.Channels.Email.Host,
			Port:     cfg.Channels.Email.Port,
			Username: cfg.Channels.Email.Username,
			Password: cfg.Channels.Email.Password,
			From:     cfg.Channels.Email.From,
			To:       cfg.Channels.Email.To,
		}),
	}

	provider := prefs.NewStatic(prefs.Default())
	q := queue.New(logger, queue.Options{
		SmoothingDelay: cfg.Pipeline.SmoothingDelay,
		BackoffBase:    cfg.Pipeline.BackoffBase,
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
	})
	router := delivery.NewRouter(logger, provider, chans)
	pool := delivery.NewPool(logger, q, router, store, delivery.PoolOptions{
		Concurrency: cfg.Pipeline.WorkerConcurrency,
	})

	m := monitor.New(logger, monitor.Components{
		Dedup:   dedup.New(logger, cfg.Pipeline.DedupWindow),
		Fuser:   fuser,
		Prefs:   provider,
		Queue:   q,
		Pool:    pool,
		Records: store,
	}, monitor.Options{
		SourceRateLimit: cfg.Pipeline.SourceRateLimit,
		SourceRateBurst: cfg.Pipeline.SourceRateBurst,
		EventBuffer:     cfg.Pipeline.EventBuffer,
		DedupSweep:      cfg.Pipeline.SweepInterval,
		RecordSweep:     cfg.Pipeline.SweepInterval,
		DedupWindow:     cfg.Pipeline.DedupWindow,
		RecordRetention: cfg.Pipeline.RecordRetention,
	})

	orchestrator := scan.NewOrchestrator(logger, m.Submit, scan.Options{
		MaxConcurrentScans: cfg.Pipeline.MaxConcurrentScans,
	})
	if err := registerSources(logger, orchestrator, cfg.Sources); err != nil {
		return nil, nil, err
	}
	m.SetOrchestrator(orchestrator)

	return m, realtime, nil
}

func registerSources(logger *zap.Logger, o *scan.Orchestrator, cfg config.SourcesConfig) error {
	if c := cfg.Markets; c.Enabled {
		if err := o.Register(sources.NewMarkets(logger, c.URL, c.APIKey, c.Timeout), c.Schedule); err != nil {
			return err
		}
	}
	if c := cfg.Forum; c.Enabled {
		if err := o.Register(sources.NewForum(logger, c.URL, c.Timeout), c.Schedule); err != nil {
			return err
		}
	}
	if c := cfg.Codehost; c.Enabled {
		if err := o.Register(sources.NewCodehost(logger, c.URL, c.APIKey, c.Timeout), c.Schedule); err != nil {
			return err
		}
	}
	if c := cfg.Darkweb; c.Enabled {
		if err := o.Register(sources.NewDarkweb(logger, c.URL, c.Keywords, c.Timeout), c.Schedule); err != nil {
			return err
		}
	}
	return nil
}
