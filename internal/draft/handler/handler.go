package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bizreg/internal/auth/idempotency"
	"bizreg/internal/draft/api"
	"bizreg/internal/draft/models"
	"bizreg/internal/draft/service"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/httputil"
	"bizreg/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,IdempotencyStore

const (
	maxIdempotencyKeyLength = 128
	// idempotencyWriteTimeout bounds recording an attempt's outcome after the
	// request context may already be gone.
	idempotencyWriteTimeout = 5 * time.Second
)

// Service defines the draft operations exposed over HTTP.
type Service interface {
	Upsert(ctx context.Context, cmd service.UpsertCommand) (*models.Draft, error)
	Fetch(ctx context.Context, owner id.UserID, draftID id.DraftID) (*models.Draft, error)
	List(ctx context.Context, owner id.UserID) ([]*models.Draft, error)
	Delete(ctx context.Context, owner id.UserID, draftID id.DraftID) error
	RemoveAttachment(ctx context.Context, owner id.UserID, draftID id.DraftID, attachmentID id.AttachmentID) (*models.Draft, error)
	RecordPayment(ctx context.Context, owner id.UserID, draftID id.DraftID, providerReference string) (*models.Draft, error)
}

// IdempotencyStore claims and records Idempotency-Key attempts.
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key string) (idempotency.Attempt, error)
	Complete(ctx context.Context, scope, key, result string) error
	Release(ctx context.Context, scope, key string) error
}

// Handler wires /drafts endpoints to the draft service.
type Handler struct {
	service     Service
	logger      *slog.Logger
	idempotency IdempotencyStore
	maxFileSize int64
	maxBody     int64
}

type Option func(*Handler)

// WithIdempotency enables Idempotency-Key handling on PUT /drafts.
func WithIdempotency(store IdempotencyStore) Option {
	return func(h *Handler) {
		h.idempotency = store
	}
}

// WithMaxFileSize sets how many bytes of each uploaded file are read. Files
// larger than this are still passed on so the size check can name them.
func WithMaxFileSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxFileSize = n
		}
	}
}

// WithMaxBody bounds the whole multipart request.
func WithMaxBody(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// New constructs a draft handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:     service,
		logger:      logger,
		maxFileSize: 5 << 20,
		maxBody:     64 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts draft endpoints on the router. Callers install RequireAuth
// on r first.
func (h *Handler) Register(r chi.Router) {
	r.Put("/drafts", h.HandleUpsert)
	r.Get("/drafts", h.HandleList)
	r.Get("/drafts/{id}", h.HandleFetch)
	r.Delete("/drafts/{id}", h.HandleDelete)
	r.Delete("/drafts/{id}/attachments/{attachmentID}", h.HandleRemoveAttachment)
	r.Post("/drafts/{id}/payment", h.HandleRecordPayment)
}

// HandleUpsert handles PUT /drafts.
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	owner, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}

	key := strings.TrimSpace(r.Header.Get(api.IdempotencyKeyHeader))
	if key != "" && h.idempotency != nil {
		if len(key) > maxIdempotencyKeyLength {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key is too long"))
			return
		}
		attempt, err := h.idempotency.Begin(ctx, owner.String(), key)
		if err != nil {
			h.writeIdempotencyError(w, ctx, err)
			return
		}
		if !attempt.Started {
			h.replay(w, ctx, owner, attempt.Result)
			return
		}
	} else {
		key = ""
	}

	in, err := h.decodeUpsert(w, r)
	if err != nil {
		h.release(ctx, owner, key)
		h.logger.WarnContext(ctx, "invalid upsert request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	d, err := h.service.Upsert(ctx, in.command(owner))
	if err != nil {
		h.release(ctx, owner, key)
		h.logFailure(ctx, "draft upsert failed", owner, err)
		httputil.WriteError(w, err)
		return
	}
	if key != "" {
		settleCtx, cancel := settleContext(ctx)
		err := h.idempotency.Complete(settleCtx, owner.String(), key, d.ID.String())
		cancel()
		if err != nil {
			h.logger.WarnContext(ctx, "failed to record idempotency result",
				"request_id", requestID,
				"draft_id", d.ID.String(),
				"error", err,
			)
		}
	}

	h.logger.InfoContext(ctx, "draft upserted",
		"request_id", requestID,
		"user_id", owner.String(),
		"draft_id", d.ID.String(),
		"version", d.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, api.FromDraft(d))
}

// HandleList handles GET /drafts.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	drafts, err := h.service.List(ctx, owner)
	if err != nil {
		h.logFailure(ctx, "draft list failed", owner, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, api.FromDrafts(drafts))
}

// HandleFetch handles GET /drafts/{id}.
func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	d, err := h.service.Fetch(ctx, owner, draftID)
	if err != nil {
		h.logFailure(ctx, "draft fetch failed", owner, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, api.FromDraft(d))
}

// HandleDelete handles DELETE /drafts/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, owner, draftID); err != nil {
		h.logFailure(ctx, "draft delete failed", owner, err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveAttachment handles DELETE /drafts/{id}/attachments/{attachmentID}.
// A missing attachment is answered with 404 and changes nothing.
func (h *Handler) HandleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	attachmentID, err := id.ParseAttachmentID(chi.URLParam(r, "attachmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.RemoveAttachment(ctx, owner, draftID, attachmentID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.InfoContext(ctx, "attachment already absent",
				"request_id", requestcontext.RequestID(ctx),
				"draft_id", draftID.String(),
				"attachment_id", attachmentID.String(),
			)
		} else {
			h.logFailure(ctx, "attachment removal failed", owner, err)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, api.FromDraft(d))
}

// HandleRecordPayment handles POST /drafts/{id}/payment.
func (h *Handler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	owner, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	draftID, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[api.RecordPaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	d, err := h.service.RecordPayment(ctx, owner, draftID, req.ProviderReference)
	if err != nil {
		h.logFailure(ctx, "record payment failed", owner, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, api.FromDraft(d))
}

func (h *Handler) requireOwner(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	owner := requestcontext.UserID(ctx)
	if owner.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return owner, true
}

func draftIDParam(w http.ResponseWriter, r *http.Request) (id.DraftID, bool) {
	draftID, err := id.ParseDraftID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DraftID{}, false
	}
	return draftID, true
}

// replay answers a retried PUT with the draft the first attempt produced.
func (h *Handler) replay(w http.ResponseWriter, ctx context.Context, owner id.UserID, result string) {
	draftID, err := id.ParseDraftID(result)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt idempotency record"))
		return
	}
	d, err := h.service.Fetch(ctx, owner, draftID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "idempotent replay",
		"request_id", requestcontext.RequestID(ctx),
		"draft_id", result,
	)
	httputil.WriteJSON(w, http.StatusOK, api.FromDraft(d))
}

func (h *Handler) writeIdempotencyError(w http.ResponseWriter, ctx context.Context, err error) {
	if errors.Is(err, idempotency.ErrInFlight) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
		return
	}
	h.logger.ErrorContext(ctx, "idempotency store unavailable",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "idempotency check failed"))
}

func (h *Handler) release(ctx context.Context, owner id.UserID, key string) {
	if key == "" {
		return
	}
	settleCtx, cancel := settleContext(ctx)
	defer cancel()
	if err := h.idempotency.Release(settleCtx, owner.String(), key); err != nil {
		h.logger.WarnContext(ctx, "failed to release idempotency key",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

// settleContext detaches from request cancellation so an attempt's outcome is
// recorded even after the client disconnects or the request times out.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), idempotencyWriteTimeout)
}

func (h *Handler) logFailure(ctx context.Context, msg string, owner id.UserID, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"user_id", owner.String(),
		"code", string(dErrors.CodeOf(err)),
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeStorage {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}
