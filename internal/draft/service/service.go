// Package service reconciles registration drafts into durable storage. Every
// mutating operation runs inside one store transaction; file bytes are written
// before the transaction and discarded again if it rolls back.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bizreg/internal/attachment"
	"bizreg/internal/audit"
	"bizreg/internal/draft/metrics"
	"bizreg/internal/draft/models"
	"bizreg/internal/draft/store"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/requestcontext"
)

const (
	defaultTxTimeout         = 10 * time.Second
	defaultUploadConcurrency = 4
)

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates draft persistence.
type Service struct {
	store             store.Store
	tx                store.TxRunner
	files             *attachment.Manager
	logger            *slog.Logger
	auditPublisher    AuditPublisher
	metrics           *metrics.Metrics
	tracer            trace.Tracer
	txTimeout         time.Duration
	uploadConcurrency int
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithTxTimeout bounds each transaction. The bound applies to server-side
// work only; a caller going away does not cut it short.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

// WithUploadConcurrency bounds how many files are written in parallel.
func WithUploadConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.uploadConcurrency = n
		}
	}
}

// New constructs a Service. st serves reads outside transactions; tx opens
// transactional views for writes.
func New(st store.Store, tx store.TxRunner, files *attachment.Manager, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("draft store is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if files == nil {
		return nil, errors.New("attachment manager is required")
	}
	s := &Service{
		store:             st,
		tx:                tx,
		files:             files,
		logger:            slog.Default(),
		tracer:            otel.Tracer("bizreg/internal/draft/service"),
		txTimeout:         defaultTxTimeout,
		uploadConcurrency: defaultUploadConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fetch returns the caller's draft. A draft owned by someone else is reported
// as not found.
func (s *Service) Fetch(ctx context.Context, owner id.UserID, draftID id.DraftID) (*models.Draft, error) {
	if owner.IsNil() {
		return nil, errAuthRequired()
	}
	d, err := s.store.FindByID(ctx, draftID)
	if err != nil {
		return nil, translate(err, "failed to load draft")
	}
	if !d.IsOwnedBy(owner) {
		return nil, dErrors.New(dErrors.CodeNotFound, "draft not found")
	}
	return d, nil
}

// List returns the caller's drafts, most recently updated first.
func (s *Service) List(ctx context.Context, owner id.UserID) ([]*models.Draft, error) {
	if owner.IsNil() {
		return nil, errAuthRequired()
	}
	drafts, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, translate(err, "failed to list drafts")
	}
	return drafts, nil
}

// detach returns a context that survives caller cancellation, bounded by the
// transaction timeout.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
}

// loadOwned locks the draft and checks ownership and editability.
func loadOwned(ctx context.Context, st store.Store, owner id.UserID, draftID id.DraftID) (*models.Draft, error) {
	d, err := st.FindForUpdate(ctx, draftID)
	if err != nil {
		return nil, translate(err, "failed to load draft")
	}
	if !d.IsOwnedBy(owner) {
		return nil, dErrors.New(dErrors.CodeForbidden, "draft belongs to another user")
	}
	return d, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, d *models.Draft, attachmentID string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:       action,
		UserID:       d.OwnerID,
		DraftID:      d.ID.String(),
		AttachmentID: attachmentID,
		Version:      d.Version,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(action),
			"draft_id", d.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) logSaved(ctx context.Context, msg string, d *models.Draft) {
	s.logger.InfoContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", d.OwnerID.String(),
		"draft_id", d.ID.String(),
		"version", d.Version,
		"step", int(d.CurrentStep),
	)
}

// translate maps store and infrastructure errors onto the domain taxonomy.
// Already-coded errors pass through.
func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "draft not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "draft was modified concurrently")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "draft transaction timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorage, msg)
	}
}

func errAuthRequired() error {
	return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
