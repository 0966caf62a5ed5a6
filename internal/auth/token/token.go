// Package token issues and validates the HS256 access tokens that carry a
// caller session.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/requestcontext"
)

// Claims are the access token claims. ID (jti) is the revocation handle.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Service signs and verifies access tokens.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(signingKey, issuer, audience string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL is the lifetime of issued tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for a new session of userID.
func (s *Service) Issue(userID id.UserID) (string, requestcontext.Session, error) {
	now := s.now()
	session := requestcontext.Session{
		UserID:    userID,
		SessionID: id.NewSessionID(),
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID.String(),
		SessionID: session.SessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        session.TokenID,
		},
	}).SignedString(s.signingKey)
	if err != nil {
		return "", requestcontext.Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, session, nil
}

// Validate verifies signature, expiry, issuer and audience and returns the
// session the token carries.
func (s *Service) Validate(tokenString string) (requestcontext.Session, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return requestcontext.Session{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return requestcontext.Session{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return requestcontext.Session{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return requestcontext.Session{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return requestcontext.Session{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	session := requestcontext.Session{UserID: userID, SessionID: sessionID, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
