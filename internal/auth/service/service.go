// Package service resolves bearer tokens to caller sessions and ends them on
// logout. Drafts are owned by the user id a session carries.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bizreg/internal/audit"
	"bizreg/internal/auth/models"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/requestcontext"
)

type TokenService interface {
	Issue(userID id.UserID) (string, requestcontext.Session, error)
	Validate(token string) (requestcontext.Session, error)
}

// RevocationList records revoked token ids until they would have expired.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	tokens         TokenService
	revocations    RevocationList
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

type Option func(*Service)

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

func New(tokens TokenService, revocations RevocationList, opts ...Option) (*Service, error) {
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if revocations == nil {
		return nil, errors.New("revocation list is required")
	}
	s := &Service{
		tokens:      tokens,
		revocations: revocations,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate validates a bearer token and rejects revoked sessions.
func (s *Service) Authenticate(ctx context.Context, bearer string) (requestcontext.Session, error) {
	session, err := s.tokens.Validate(bearer)
	if err != nil {
		return requestcontext.Session{}, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, session.TokenID)
	if err != nil {
		return requestcontext.Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate token")
	}
	if revoked {
		return requestcontext.Session{}, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked")
	}
	return session, nil
}

// IssueDevToken opens a session for userID without an identity provider.
// Only wired when development auth is enabled.
func (s *Service) IssueDevToken(ctx context.Context, userID id.UserID) (*models.IssuedToken, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user id is required")
	}
	signed, session, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "development token issued",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
		"session_id", session.SessionID.String(),
	)
	return &models.IssuedToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		SessionID:   session.SessionID,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// Logout revokes the session's token for the rest of its lifetime. Logging out
// twice, or with a token that has already expired, is not an error.
func (s *Service) Logout(ctx context.Context, session requestcontext.Session) error {
	if session.UserID.IsNil() || session.TokenID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	ttl := session.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.Revoke(ctx, session.TokenID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}

	s.logger.InfoContext(ctx, "session revoked",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", session.UserID.String(),
		"session_id", session.SessionID.String(),
	)
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			Action: audit.ActionSessionRevoked,
			UserID: session.UserID,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event",
				"action", string(audit.ActionSessionRevoked),
				"error", err,
			)
		}
	}
	return nil
}
