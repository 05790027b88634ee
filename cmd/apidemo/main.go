// Command apidemo serves a small user API whose responses all go through
// the envelope, with optional Postgres, MongoDB and Redis backends.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/drblury/apienvelope/config"
	"github.com/drblury/apienvelope/extension"
	"github.com/drblury/apienvelope/info"
	"github.com/drblury/apienvelope/metrics"
	"github.com/drblury/apienvelope/pipeline"
	"github.com/drblury/apienvelope/querystats"
	"github.com/drblury/apienvelope/responder"
	"github.com/drblury/apienvelope/router"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("apidemo stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.Load(".env")
	if err != nil {
		return err
	}
	demo, err := loadDemoConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: demo.LogLevel}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New()
	reg.MustRegister(m)

	var (
		store     userStore = newMemoryStore()
		readiness []info.Probe
		providers = []pipeline.MetadataProvider{extension.TraceProvider{}}
		audit     *mongo.Collection
	)

	if demo.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(demo.DatabaseURL), &gorm.Config{TranslateError: true})
		if err != nil {
			return err
		}
		if err := db.Use(querystats.NewGormPlugin()); err != nil {
			return err
		}
		if err := db.AutoMigrate(&user{}); err != nil {
			return err
		}
		store = gormStore{db: db}
		readiness = append(readiness, info.NewGormPingProbe("postgres", db))
	}

	if demo.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(demo.MongoURI).SetMonitor(querystats.NewMongoMonitor()))
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		}()
		audit = client.Database(demo.MongoDB).Collection("audit")
		readiness = append(readiness, info.NewMongoPingProbe(client, nil))
	}

	if demo.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: demo.RedisAddr})
		rdb.AddHook(querystats.NewRedisHook())
		defer rdb.Close()
		store = cachedStore{userStore: store, cache: rdb, ttl: time.Minute}
		readiness = append(readiness, info.NewRedisPingProbe(rdb))
		providers = append(providers, extension.NewRedisKeyProvider("flags", rdb, map[string]string{
			"maintenance": "apidemo:flags:maintenance",
		}))
	}

	resp := responder.NewResponder(
		responder.WithLogger(logger),
		responder.WithSettings(settings),
		responder.WithMetrics(m),
		responder.WithEnrichers(extension.HeaderEnricher{}),
		responder.WithMetadataProviders(providers...),
	)

	api := http.NewServeMux()
	users := &userHandlers{resp: resp, store: store, validate: validator.New(validator.WithRequiredStructEnabled()), audit: audit}
	users.register(api)

	infoHandler := info.NewInfoHandler(
		info.WithInfoResponder(resp),
		info.WithInfoProvider(func() any { return map[string]string{"version": version} }),
		info.WithReadinessChecks(readiness...),
	)
	infoHandler.Register(api, "/info")

	root := router.New(api,
		router.WithLogger(logger),
		router.WithResponder(resp),
		router.WithConfig(router.Config{
			Timeout:         demo.Timeout,
			QuietdownRoutes: []string{"/info/healthz", "/info/readyz"},
			HideHeaders:     []string{"Authorization", "Cookie"},
		}),
	)
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              demo.Addr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("apidemo listening", "addr", demo.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
