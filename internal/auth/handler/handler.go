package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bizreg/internal/auth/models"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/httputil"
	"bizreg/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	IssueDevToken(ctx context.Context, userID id.UserID) (*models.IssuedToken, error)
	Logout(ctx context.Context, session requestcontext.Session) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts POST /auth/logout. Callers install RequireAuth on r first.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
}

// RegisterDev mounts POST /auth/dev-token. Never mount it in production.
func (h *Handler) RegisterDev(r chi.Router) {
	r.Post("/auth/dev-token", h.HandleDevToken)
}

// HandleLogout handles POST /auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := requestcontext.SessionFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.service.Logout(ctx, session); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", session.UserID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDevToken handles POST /auth/dev-token.
func (h *Handler) HandleDevToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DevTokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	issued, err := h.service.IssueDevToken(ctx, req.parsed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: issued.AccessToken,
		TokenType:   issued.TokenType,
		SessionID:   issued.SessionID.String(),
		ExpiresAt:   issued.ExpiresAt,
	})
}

type DevTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`

	parsed id.UserID
}

func (r *DevTokenRequest) Validate() error {
	parsed, err := id.ParseUserID(strings.TrimSpace(r.UserID))
	if err != nil {
		return err
	}
	r.parsed = parsed
	return nil
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}
