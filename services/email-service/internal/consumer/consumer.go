package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/kafkax"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/inbox"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Consumer reads one topic as part of the user-events group and hands
// each message to the handler exactly once per event id. Handler errors
// are logged and the offset still advances; the registry's events are
// fire-and-forget, so a poison message must not wedge the group.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   *inbox.Repository
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxRepo,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)
		if meta.EventID == "" {
			// Producers outside the registry may omit the header;
			// without an id there is nothing to dedupe on.
			c.logger.Warn("message without event_id header", "topic", msg.Topic)
		} else {
			fresh, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
			if err != nil {
				c.logger.Error("inbox record failed", "err", err)
				span.RecordError(err)
				span.End()
				continue
			}
			if !fresh {
				c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
				span.End()
				continue
			}
		}

		if err := c.handler(ctxSpan, msg); err != nil {
			c.logger.Error("event handler error", "err", err, "event_id", meta.EventID, "topic", msg.Topic)
			span.RecordError(err)
		}
		span.End()
	}
}
