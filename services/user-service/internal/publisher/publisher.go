package publisher

import (
	"context"
	"log/slog"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the slice of kafka.Writer the publisher relies on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a fire-and-forget Kafka producer. Publish enqueues and
// returns; delivery outcomes arrive on the writer's completion callback
// and are only ever logged. By the time an envelope reaches Publish the
// registry mutation has already committed, so a delivery failure can
// lose the event. Replay relies on the log line.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

type Config struct {
	Brokers string
}

func New(logger *slog.Logger, cfg Config) *Publisher {
	p := &Publisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(kafkax.SplitBrokers(cfg.Brokers)...),
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion:             p.completion,
	}
	return p
}

// Publish hands one envelope to the transport, partitioned by key.
// Errors never propagate; an enqueue failure is logged with enough
// context (key, topic) for manual replay.
func (p *Publisher) Publish(ctx context.Context, topic, key, eventID string, payload []byte) {
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, kafkax.EventHeaders(eventID, topic)),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("event enqueue failed",
			"key", key,
			"topic", topic,
			"event_id", eventID,
			"err", err,
		)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) completion(messages []kafka.Message, err error) {
	for _, msg := range messages {
		if err != nil {
			p.logger.Error("event publish failed",
				"key", string(msg.Key),
				"topic", msg.Topic,
				"event_id", kafkax.HeaderValue(msg.Headers, "event_id"),
				"err", err,
			)
			continue
		}
		p.logger.Info("event published",
			"key", string(msg.Key),
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
	}
}
