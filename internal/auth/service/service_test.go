package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bizreg/internal/audit"
	"bizreg/internal/auth/revocation"
	"bizreg/internal/auth/token"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	tokens      *token.Service
	revocations *revocation.InMemory
	sink        *audit.InMemorySink
	service     *Service
	user        id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	clock := func() time.Time { return s.now }
	s.tokens = token.New("test-signing-key", "bizreg", "bizreg-api", time.Hour, token.WithClock(clock))
	s.revocations = revocation.NewInMemory().WithClock(clock)
	s.sink = audit.NewInMemorySink()

	var err error
	s.service, err = New(s.tokens, s.revocations,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(audit.NewPublisher(s.sink)),
	)
	s.Require().NoError(err)
	s.user, err = id.ParseUserID("3d1f0c2a-5b6e-4f70-8a9b-0c1d2e3f4a5b")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil, s.revocations)
	s.EqualError(err, "token service is required")
	_, err = New(s.tokens, nil)
	s.EqualError(err, "revocation list is required")
}

func (s *ServiceSuite) TestDevTokenAuthenticates() {
	issued, err := s.service.IssueDevToken(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal("Bearer", issued.TokenType)
	s.Equal(s.now.Add(time.Hour), issued.ExpiresAt)

	session, err := s.service.Authenticate(s.ctx, issued.AccessToken)
	s.Require().NoError(err)
	s.Equal(s.user, session.UserID)
	s.Equal(issued.SessionID, session.SessionID)
}

func (s *ServiceSuite) TestDevTokenRequiresUser() {
	_, err := s.service.IssueDevToken(s.ctx, id.UserID{})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestLogoutRevokesSession() {
	issued, err := s.service.IssueDevToken(s.ctx, s.user)
	s.Require().NoError(err)
	session, err := s.service.Authenticate(s.ctx, issued.AccessToken)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Logout(s.ctx, session))

	_, err = s.service.Authenticate(s.ctx, issued.AccessToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	de, _ := dErrors.As(err)
	s.Equal("token has been revoked", de.Message)

	s.Equal([]audit.Action{audit.ActionSessionRevoked}, s.sink.Actions())

	s.NoError(s.service.Logout(s.ctx, session), "second logout is a no-op")
}

func (s *ServiceSuite) TestLogoutLeavesOtherSessions() {
	first, err := s.service.IssueDevToken(s.ctx, s.user)
	s.Require().NoError(err)
	second, err := s.service.IssueDevToken(s.ctx, s.user)
	s.Require().NoError(err)

	session, err := s.service.Authenticate(s.ctx, first.AccessToken)
	s.Require().NoError(err)
	s.Require().NoError(s.service.Logout(s.ctx, session))

	_, err = s.service.Authenticate(s.ctx, second.AccessToken)
	s.NoError(err)
}

func (s *ServiceSuite) TestLogoutOfExpiredSession() {
	session := requestcontext.Session{UserID: s.user, SessionID: id.NewSessionID(), TokenID: "jti", ExpiresAt: s.now.Add(-time.Minute)}
	s.NoError(s.service.Logout(s.ctx, session))
	s.Empty(s.sink.Actions())
}

func (s *ServiceSuite) TestLogoutRequiresSession() {
	err := s.service.Logout(s.ctx, requestcontext.Session{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRevocationFailure() {
	svc, err := New(s.tokens, failingRevocations{})
	s.Require().NoError(err)
	issued, err := s.service.IssueDevToken(s.ctx, s.user)
	s.Require().NoError(err)

	_, err = svc.Authenticate(s.ctx, issued.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	session := requestcontext.Session{UserID: s.user, TokenID: "jti", ExpiresAt: s.now.Add(time.Minute)}
	err = svc.Logout(s.ctx, session)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Duration) error {
	return errors.New("redis: connection refused")
}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}
