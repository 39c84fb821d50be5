package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"shopgate/internal/shared/retry"

	"github.com/segmentio/kafka-go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageReader is the subset of *kafka.Reader the bus consumes through.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type ReaderFactory func(channel string) MessageReader

// ChangeBus delivers channel messages to one handler per channel, strictly
// one message at a time. Readers start at the live end of the topic and keep
// no committed offset, so messages published while the bus is disconnected
// are not replayed. Lost connections are re-established on the backoff
// schedule, which restarts once a reader has delivered anything.
type ChangeBus struct {
	newReader ReaderFactory
	backoff   rews.Retryer
	sleep     retry.Sleeper
	logger    *slog.Logger
	tracer    trace.Tracer
	wg        sync.WaitGroup
}

func NewChangeBus(brokers []string, logger *slog.Logger) *ChangeBus {
	return newChangeBus(func(channel string) MessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       channel,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    10 << 20,
			MaxWait:     500 * time.Millisecond,
		})
	}, retry.ReconnectBackoff(), nil, logger)
}

func newChangeBus(factory ReaderFactory, backoff rews.Retryer, sleep retry.Sleeper, logger *slog.Logger) *ChangeBus {
	if backoff == nil {
		backoff = retry.ReconnectBackoff()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sleep == nil {
		sleep = retry.SleepContext
	}
	return &ChangeBus{
		newReader: factory,
		backoff:   backoff,
		sleep:     sleep,
		logger:    logger,
		tracer:    otel.Tracer("shopgate/platform/messaging"),
	}
}

func (b *ChangeBus) Subscribe(ctx context.Context, channel string, handler func(context.Context, []byte) error) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return errors.New("change bus: channel is required")
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(ctx, channel, handler)
	}()
	return nil
}

// Wait blocks until every subscription has stopped after its context ended.
func (b *ChangeBus) Wait() {
	b.wg.Wait()
}

func (b *ChangeBus) consume(ctx context.Context, channel string, handler func(context.Context, []byte) error) {
	attempt := 0
	for ctx.Err() == nil {
		reader := b.newReader(channel)
		b.logger.Info("change bus subscribed",
			"event", "change_bus_subscribed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"channel", channel,
		)
		delivered, err := b.readLoop(ctx, reader, channel, handler)
		_ = reader.Close()
		if ctx.Err() != nil {
			return
		}
		if delivered {
			attempt = 0
			b.backoff.Reset()
		}

		delay, ok := b.backoff.NextDelay(attempt, err)
		attempt++
		if !ok {
			b.logger.Error("change bus gave up reconnecting",
				"event", "change_bus_reconnect_exhausted",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"channel", channel,
				"attempt", attempt,
				"error", errorText(err),
			)
			return
		}
		b.logger.Warn("change bus connection lost, reconnecting",
			"event", "change_bus_reconnect",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"channel", channel,
			"attempt", attempt,
			"delay", delay.String(),
			"error", errorText(err),
		)
		if b.sleep(ctx, delay) != nil {
			return
		}
	}
}

// readLoop reports whether at least one message arrived before the reader
// failed, which resets the reconnect backoff.
func (b *ChangeBus) readLoop(
	ctx context.Context,
	reader MessageReader,
	channel string,
	handler func(context.Context, []byte) error,
) (bool, error) {
	delivered := false
	for {
		message, err := reader.ReadMessage(ctx)
		if err != nil {
			return delivered, err
		}
		delivered = true

		msgCtx, span := b.tracer.Start(ctx, "change_bus.message", trace.WithAttributes(
			attribute.String("messaging.destination", channel),
			attribute.Int64("messaging.kafka.offset", message.Offset),
		))
		if err := handler(msgCtx, message.Value); err != nil {
			span.RecordError(err)
			b.logger.ErrorContext(msgCtx, "change bus handler failed",
				"event", "change_bus_handler_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"channel", channel,
				"offset", message.Offset,
				"error", err.Error(),
			)
		}
		span.End()
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
