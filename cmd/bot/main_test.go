package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"signal-bot/internal/config"
	"signal-bot/internal/signal"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	served, restore := stubDeps(&config.Config{
		HTTPAddr:             ":0",
		SignalSource:         config.SignalSourceRandom,
		ShortExpiryDelaySecs: 3,
		CountdownLeadSecs:    60,
		AnalysisTimeoutSecs:  15,
	})
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}

	// The listener goroutine outlives main; restore only after it has run.
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("http server was never started")
	}
}

func TestBuildSource(t *testing.T) {
	tracer := sdktrace.NewTracerProvider().Tracer("test")

	if _, ok := buildSource(&config.Config{SignalSource: config.SignalSourceRandom}, tracer).(*signal.RandomSource); !ok {
		t.Fatal("expected random source")
	}
	src := buildSource(&config.Config{
		SignalSource:          config.SignalSourceIndicators,
		MarketDataURL:         "http://127.0.0.1:1",
		MarketDataTimeoutSecs: 1,
	}, tracer)
	if _, ok := src.(*signal.IndicatorSource); !ok {
		t.Fatalf("expected indicator source, got %T", src)
	}
}

func TestBuildAccessMergesSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	if err := os.WriteFile(path, []byte(`{"users":["from-file"]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	mr := miniredis.RunT(t)
	client, err := connectRedisFunc(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if _, err := mr.SetAdd("codes", "from-redis"); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		AccessCodesFile:     path,
		AccessCodes:         []string{"from-env"},
		AccessCodesRedisKey: "codes",
	}
	checker := buildAccess(cfg, client, zap.NewNop())

	ctx := context.Background()
	for _, code := range []string{"from-file", "from-env", "from-redis"} {
		if !checker.IsValidAccessCode(ctx, code) {
			t.Fatalf("expected %q to be accepted", code)
		}
	}
	if checker.IsValidAccessCode(ctx, "nope") {
		t.Fatal("unexpected acceptance of unknown code")
	}
}

func TestBuildAccessWithoutRedis(t *testing.T) {
	cfg := &config.Config{AccessCodesFile: filepath.Join(t.TempDir(), "missing.json")}
	checker := buildAccess(cfg, nil, zap.NewNop())
	if len(checker) != 1 {
		t.Fatalf("expected only the static checker, got %d", len(checker))
	}
	if checker.IsValidAccessCode(context.Background(), "anything") {
		t.Fatal("expected rejection with no codes configured")
	}
}

func stubDeps(cfg *config.Config) (<-chan struct{}, func()) {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitTracer := initTracerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return cfg }
	newLoggerFunc = func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil }
	initTracerFunc = func(context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	setupSignalNotify = func(chan<- os.Signal, ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	served := make(chan struct{})
	startHTTPServerFunc = func(*http.Server) error {
		close(served)
		return http.ErrServerClosed
	}
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return served, func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initTracerFunc = origInitTracer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
