package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"signal-bot/internal/access"
	"signal-bot/internal/bot"
	"signal-bot/internal/cache"
	"signal-bot/internal/config"
	"signal-bot/internal/db"
	"signal-bot/internal/handler"
	"signal-bot/internal/job"
	"signal-bot/internal/logger"
	"signal-bot/internal/marketdata"
	"signal-bot/internal/metrics"
	"signal-bot/internal/orchestrator"
	"signal-bot/internal/repository"
	"signal-bot/internal/scheduler"
	"signal-bot/internal/session"
	"signal-bot/internal/signal"
	"signal-bot/pkg/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

var (
	loadEnvFunc         = godotenv.Load
	loadConfigFunc      = config.Load
	newLoggerFunc       = logger.New
	initTracerFunc      = tracing.InitTracer
	connectPostgresFunc = db.Connect
	connectRedisFunc    = cache.NewRedisClient
	newBotFunc          = bot.NewBot
	runMigrationsFunc   = func(r *repository.DeliveryRepository, ctx context.Context) error {
		return r.RunMigrations(ctx)
	}
	startRetentionFunc     = func(j *job.JournalRetention, ctx context.Context) { go j.Start(ctx) }
	startBotFunc           = func(b *tele.Bot) { go b.Start() }
	stopBotFunc            = func(b *tele.Bot) { b.Stop() }
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

//go:generate swag init -d ../../ -g cmd/bot/main.go -o ../../docs

// @title           Signal Bot Admin API
// @version         1.0
// @description     Read-only admin API of the Telegram signal bot: menus, on-demand analysis, sessions and the delivery journal.

// @BasePath  /
func main() {
	if err := loadEnvFunc(); err != nil && !errors.Is(err, os.ErrNotExist) {
		stdlog.Printf("Warning: could not load .env: %v", err)
	}

	cfg := loadConfigFunc()

	log, err := newLoggerFunc(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		stdlog.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store := session.NewStore()
	metrics.RegisterSessions(reg, store.Len)

	sched := scheduler.New(scheduler.RealClock(), scheduler.Config{
		ShortDelay:    time.Duration(cfg.ShortExpiryDelaySecs) * time.Second,
		CountdownLead: time.Duration(cfg.CountdownLeadSecs) * time.Second,
	})
	defer sched.Stop()

	source := buildSource(cfg, tracer)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, access codes come from file and env only", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	checker := buildAccess(cfg, redisClient, log)

	// Leave the interfaces untyped-nil when Postgres is off so the handler
	// and journal see a missing dependency rather than a nil pointer.
	var (
		pool       *pgxpool.Pool
		deliveries handler.DeliveryLister
		recorder   orchestrator.DeliveryRecorder
	)
	pool, err = connectPostgresFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn("postgres unavailable, delivery journal disabled", zap.Error(err))
	}
	if pool != nil {
		defer pool.Close()
		repo := repository.NewDeliveryRepository(pool, tracer)
		if err := runMigrationsFunc(repo, ctx); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		deliveries = repo
		recorder = repo

		retention := job.NewJournalRetention(tracer, repo, time.Duration(cfg.JournalRetentionDays)*24*time.Hour, log)
		startRetentionFunc(retention, ctx)
	}

	b, err := newBotFunc(cfg.TelegramBotToken)
	switch {
	case errors.Is(err, bot.ErrNoToken):
		log.Warn("telegram transport disabled")
		b = nil
	case err != nil:
		log.Fatal("failed to create telegram bot", zap.Error(err))
	}

	var emitter orchestrator.Emitter
	if b != nil {
		emitter = bot.NewEmitter(b, bot.NewAssets(cfg.AssetsDir))
	}
	if recorder != nil {
		emitter = orchestrator.NewJournal(emitter, recorder, log)
	}

	orch := orchestrator.New(tracer, log, m, store, sched, source, checker, emitter)
	orch.SetAnalysisTimeout(time.Duration(cfg.AnalysisTimeoutSecs) * time.Second)

	if b != nil {
		bot.NewTransport(orch, log).Register(b)
		startBotFunc(b)
		log.Info("telegram transport started")
	}

	h := handler.New(tracer, source, store, sched, deliveries)
	r := handler.NewRouter(h, reg, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()
	log.Info("admin api listening", zap.String("addr", cfg.HTTPAddr))

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info("shutting down")

	if b != nil {
		stopBotFunc(b)
	}
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Error("admin api forced to shutdown", zap.Error(err))
	}

	log.Info("exited")
}

func buildSource(cfg *config.Config, tracer trace.Tracer) signal.Source {
	if cfg.SignalSource == config.SignalSourceRandom {
		return signal.NewRandomSource(uint64(time.Now().UnixNano()))
	}
	provider := marketdata.NewYahooProvider(
		tracer,
		cfg.MarketDataURL,
		time.Duration(cfg.MarketDataTimeoutSecs)*time.Second,
	)
	return signal.NewIndicatorSource(tracer, provider, signal.NewEngine())
}

// buildAccess merges the codes file, ACCESS_CODES and, when connected, the
// Redis set. A code valid in any of them is accepted.
func buildAccess(cfg *config.Config, client *redis.Client, log *zap.Logger) access.AnyOf {
	codes, err := access.LoadCodesFile(cfg.AccessCodesFile)
	if err != nil {
		log.Warn("could not read access codes file", zap.String("path", cfg.AccessCodesFile), zap.Error(err))
	}
	codes = append(codes, cfg.AccessCodes...)

	static := access.NewStaticCodes(codes)
	checkers := access.AnyOf{static}
	if client != nil {
		checkers = append(checkers, access.NewRedisCodes(client, cfg.AccessCodesRedisKey, log))
	}
	if static.Len() == 0 && client == nil {
		log.Warn("no access codes configured, every code will be rejected")
	}
	return checkers
}
