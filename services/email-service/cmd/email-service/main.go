package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/config"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/db"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/httpx"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/kafkax"
	otelx "github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/otel"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/runtime"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/consumer"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/email"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/events"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/handlers"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/inbox"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/storage"
)

func main() {
	serviceName := config.String("SERVICE_NAME", "email-service")
	port, err := config.Port("PORT", "8081")
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

	var sender email.Sender
	switch strings.ToLower(config.String("EMAIL_MODE", "smtp")) {
	case "log":
		sender = email.NewLogSender(logger)
	default:
		sender = email.NewSMTPSender(
			config.String("SMTP_HOST", "mailpit"),
			config.String("SMTP_PORT", "1025"),
			config.String("SMTP_FROM", "no-reply@user-registry.local"),
		)
	}

	recipients := storage.NewRecipientsRepository(pool)
	eventHandler := events.NewHandler(recipients, sender, logger)

	brokers := config.String("KAFKA_BROKERS", "localhost:9092")
	groupID := config.String("KAFKA_GROUP_ID", "user-events")
	inboxRepo := inbox.NewRepository(pool)

	createdConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_CREATED_TOPIC", "user-created-events-topic"),
	}, func(ctx context.Context, msg kafka.Message) error {
		return eventHandler.HandleCreated(ctx, msg.Value)
	})
	go createdConsumer.Run(ctx)

	deletedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_DELETED_TOPIC", "user-deleted-events-topic"),
	}, func(ctx context.Context, msg kafka.Message) error {
		return eventHandler.HandleDeleted(ctx, msg.Value)
	})
	go deletedConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.New(recipients, sender, logger).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
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
