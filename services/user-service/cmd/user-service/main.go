package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/breaker"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/config"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/db"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/httpx"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/kafkax"
	otelx "github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/otel"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/runtime"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/handlers"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/mailer"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/publisher"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/service"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/storage"
)

func main() {
	serviceName := config.String("SERVICE_NAME", "user-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool); err != nil {
		logger.Error("migration failed", "err", err)
		panic(err)
	}

	brokers := config.String("KAFKA_BROKERS", "localhost:9092")
	pub := publisher.New(logger, publisher.Config{Brokers: brokers})
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Error("kafka writer close error", "err", err)
		}
	}()

	repo := storage.NewUserRepository(pool)
	users := service.New(repo, pub, logger)

	breakerCfg := breaker.Config{
		FailureThreshold: float64(config.Int("CB_FAILURE_RATE_PERCENT", 50)) / 100,
		MinimumCalls:     config.Int("CB_MINIMUM_CALLS", 10),
		WindowSize:       config.Int("CB_SLIDING_WINDOW_SIZE", 10),
		OpenTimeout:      config.Duration("CB_WAIT_IN_OPEN_STATE", 30*time.Second),
		HalfOpenCalls:    config.Int("CB_HALF_OPEN_CALLS", 1),
	}
	mail := mailer.New(config.String("EMAIL_SERVICE_URL", "http://localhost:8081"), logger, breakerCfg)

	handler := handlers.New(users, mail, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler.Register(mux)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(15 * time.Second),
	}
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 300), time.Minute, serviceName)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, serviceName)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
