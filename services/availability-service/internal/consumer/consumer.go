package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/consultbook/libs/db"
	"github.com/md-rashed-zaman/consultbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/consultbook/libs/otel"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/inbox"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/metrics"
)

// Handler applies msg inside tx. The returned callback, if any, runs only
// after tx commits.
type Handler func(ctx context.Context, tx pgx.Tx, msg kafka.Message) (onCommit func(context.Context), err error)

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

type Consumer struct {
	reader      Reader
	db          db.TxBeginner
	inbox       *inbox.Repository
	handler     Handler
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	retryDelay  time.Duration
}

func New(reader Reader, conn db.TxBeginner, inboxRepo *inbox.Repository, handler Handler, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Consumer{
		reader:      reader,
		db:          conn,
		inbox:       inboxRepo,
		handler:     handler,
		logger:      logger,
		metrics:     m,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}

		c.handleWithRetry(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// handleWithRetry gives up after maxAttempts so one bad event cannot stall
// the partition; the failure is logged with its event id for replay.
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) {
	meta := kafkax.ExtractEventMeta(msg)
	for attempt := 1; ; attempt++ {
		outcome, err := c.Process(ctx, msg)
		if err == nil {
			c.metrics.ObserveEvent(meta.EventType, outcome)
			return
		}
		c.logger.Error("event handling failed",
			"err", err,
			"event_id", meta.EventID,
			"event_type", meta.EventType,
			"attempt", attempt,
		)
		if attempt >= c.maxAttempts || !sleep(ctx, c.retryDelay) {
			c.metrics.ObserveEvent(meta.EventType, "failed")
			return
		}
	}
}

// Process applies one message exactly once and reports "applied" or "duplicate".
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) (string, error) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otelx.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	outcome := "applied"
	var onCommit func(context.Context)
	err := db.InTx(ctxSpan, c.db, func(tx pgx.Tx) error {
		fresh, err := c.inbox.Record(ctxSpan, tx, meta.EventID, meta.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			outcome = "duplicate"
			return nil
		}
		onCommit, err = c.handler(ctxSpan, tx, msg)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if outcome == "duplicate" {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
	}
	if onCommit != nil {
		onCommit(ctxSpan)
	}
	return outcome, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
