package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/domain-router/internal/infrastructure/resilience"
)

const workerQueueGroup = "ingest-workers"

type sourceUploadedEvent struct {
	SourceID    string    `json:"source_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Queue carries source-uploaded events from the API to ingestion workers.
// Workers share one queue group so each event is processed once.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func (o Options) natsOptions() []nats.Option {
	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := o.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := o.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := o.RetryOnFailedConnect == nil || *o.RetryOnFailedConnect

	return []nats.Option{
		nats.Name("domain-router"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, errors.New("nats subject is required")
	}
	conn, err := nats.Connect(url, options.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishSourceUploaded(ctx context.Context, sourceID string) error {
	payload, err := encodeEvent(sourceID, time.Now().UTC())
	if err != nil {
		return err
	}

	publish := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if q.executor == nil {
		return publishError(publish(ctx))
	}
	return publishError(q.executor.Execute(ctx, "nats.publish", publish, classifyNATSError))
}

// SubscribeSourceUploaded blocks until ctx is done, then drains the
// subscription so in-flight handlers finish.
func (q *Queue) SubscribeSourceUploaded(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		sourceID, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Error("source_event_decode_failed", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, sourceID); err != nil {
			slog.Error("source_handler_failed", "source_id", sourceID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(sourceID string, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(sourceUploadedEvent{SourceID: sourceID, PublishedAt: at})
	if err != nil {
		return nil, fmt.Errorf("encode source event: %w", err)
	}
	return raw, nil
}

// decodeEvent also accepts a bare source id.
func decodeEvent(data []byte) (string, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", errors.New("empty source event")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	var event sourceUploadedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", fmt.Errorf("decode source event: %w", err)
	}
	if event.SourceID == "" {
		return "", errors.New("source event without source_id")
	}
	return event.SourceID, nil
}
