// Package audit records draft lifecycle events. Domain services emit events
// through a Publisher; sinks decide where they land (log, memory, Kafka).
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	"bizreg/pkg/requestcontext"
)

// Sink persists or forwards a single event.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher enriches events with request metadata and hands them to a sink,
// either inline or through a buffered queue drained by a Worker.
type Publisher struct {
	sink   Sink
	queue  chan Event
	logger *slog.Logger
}

type Option func(*Publisher)

// WithQueue makes Emit non-blocking: events go to a buffered channel that a
// Worker drains. When the buffer is full the event is written inline.
func WithQueue(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills timestamp and client metadata from ctx, then publishes.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if raw := requestcontext.UserAgent(ctx); raw != "" && event.ClientFamily == "" {
		event.ClientFamily, event.OS = describeClient(raw)
	}

	if p.queue != nil {
		select {
		case p.queue <- event:
			return nil
		default:
			p.logger.WarnContext(ctx, "audit queue full, writing inline", "action", string(event.Action))
		}
	}
	return p.sink.Append(ctx, event)
}

// Inbox exposes the queue for a Worker. Nil when the publisher is synchronous.
func (p *Publisher) Inbox() <-chan Event {
	return p.queue
}

func describeClient(raw string) (family, os string) {
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if ua.Bot() {
		name = "bot:" + name
	}
	if version != "" {
		name += " " + version
	}
	return name, ua.OS()
}

// LogSink writes events to a structured logger. It is the default sink when
// no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit",
		"action", string(event.Action),
		"user_id", event.UserID.String(),
		"draft_id", event.DraftID,
		"attachment_id", event.AttachmentID,
		"version", event.Version,
		"request_id", event.RequestID,
		"client_ip", event.ClientIP,
		"client_family", event.ClientFamily,
		"timestamp", event.Timestamp.Format(time.RFC3339Nano),
	)
	return nil
}

func encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}
