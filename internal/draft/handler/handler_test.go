package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bizreg/internal/auth/idempotency"
	"bizreg/internal/draft/api"
	"bizreg/internal/draft/handler/mocks"
	"bizreg/internal/draft/models"
	"bizreg/internal/draft/service"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/requestcontext"
	"bizreg/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	owner   id.UserID
	draft   *models.Draft
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	var err error
	s.owner, err = id.ParseUserID("3d1f0c2a-5b6e-4f70-8a9b-0c1d2e3f4a5b")
	s.Require().NoError(err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.draft = models.NewDraft(id.NewDraftID(), s.owner, now)
	s.draft.Jurisdiction = "Wyoming"
	s.draft.JurisdictionFee = decimal.NewFromInt(100)
	s.draft.Version = 1
}

func (s *HandlerSuite) router(user id.UserID, opts ...Option) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, logger, opts...)
	r := chi.NewRouter()
	if !user.IsNil() {
		r.Use(testutil.InjectSession(&requestcontext.Session{UserID: user}))
	}
	h.Register(r)
	return r
}

func (s *HandlerSuite) do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(h, req)
}

func (s *HandlerSuite) jsonRequest(method, target, body string) *http.Request {
	return testutil.NewJSONRequest(s.T(), method, target, body)
}

func decodeError(s *HandlerSuite, rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *HandlerSuite) TestRequiresAuthentication() {
	rec := s.do(s.router(id.UserID{}), s.jsonRequest(http.MethodPut, "/drafts", `{}`))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthorized")
}

func (s *HandlerSuite) TestUpsertJSON() {
	var got service.UpsertCommand
	s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd service.UpsertCommand) (*models.Draft, error) {
			got = cmd
			return s.draft, nil
		})

	body := `{
		"id": "` + s.draft.ID.String() + `",
		"jurisdiction": "Wyoming",
		"jurisdiction_fee": "abc",
		"current_step": 3,
		"owners": [{"full_name": "Ada", "percentage": 50}, {"full_name": "Grace", "percentage": null}],
		"address": {"street": "1 Main St", "city": "Cheyenne", "region": "WY", "postal_code": "82001"}
	}`
	rec := s.do(s.router(s.owner), s.jsonRequest(http.MethodPut, "/drafts", body))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.Equal(s.owner, got.OwnerID)
	s.Equal(s.draft.ID, got.DraftID)
	s.Equal("abc", got.JurisdictionFee, "coercion is the service's job")
	s.Equal(models.StepOwnership, got.CurrentStep)
	s.Equal([]models.OwnerInput{{FullName: "Ada", Percentage: "50"}, {FullName: "Grace"}}, got.Owners)
	s.Require().NotNil(got.Address)
	s.Equal("Cheyenne", got.Address.City)
	s.Nil(got.Documents)
	s.Nil(got.NewPrimary)

	var resp api.Draft
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(s.draft.ID.String(), resp.ID)
	s.True(resp.JurisdictionFee.Equal(decimal.NewFromInt(100)))
}

func (s *HandlerSuite) TestUpsertMultipart() {
	var got service.UpsertCommand
	s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd service.UpsertCommand) (*models.Draft, error) {
			got = cmd
			return s.draft, nil
		})

	req := testutil.NewMultipartRequest(s.T(), http.MethodPut, "/drafts",
		map[string]string{api.PartDraft: `{"jurisdiction":"Wyoming","documents":{"supplementary":[]}}`},
		testutil.FilePart{Field: api.PartPrimary, FileName: "passport.png", Data: []byte("primary-bytes")},
		testutil.FilePart{Field: api.PartSupplementary, FileName: "bill.pdf", Data: []byte("bill.pdf")},
		testutil.FilePart{Field: api.PartSupplementary, FileName: "lease.pdf", Data: []byte("lease.pdf")},
	)
	rec := s.do(s.router(s.owner), req)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.Require().NotNil(got.NewPrimary)
	s.Equal("passport.png", got.NewPrimary.FileName)
	s.Equal([]byte("primary-bytes"), got.NewPrimary.Data)
	s.Require().Len(got.NewSupplementary, 2)
	s.Equal("lease.pdf", got.NewSupplementary[1].FileName)
	s.Require().NotNil(got.Documents)
	s.Empty(got.Documents.Supplementary)
}

func (s *HandlerSuite) TestUpsertMultipartTruncatesOversizedFiles() {
	var got service.UpsertCommand
	s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd service.UpsertCommand) (*models.Draft, error) {
			got = cmd
			return nil, dErrors.New(dErrors.CodeFileTooLarge, "scan.png exceeds the 16 byte limit")
		})

	req := testutil.NewMultipartRequest(s.T(), http.MethodPut, "/drafts",
		map[string]string{api.PartDraft: `{}`},
		testutil.FilePart{Field: api.PartPrimary, FileName: "scan.png", Data: bytes.Repeat([]byte("x"), 64)},
	)
	rec := s.do(s.router(s.owner, WithMaxFileSize(16)), req)
	s.Equal(http.StatusRequestEntityTooLarge, rec.Code)
	s.Require().NotNil(got.NewPrimary)
	s.Len(got.NewPrimary.Data, 17)
}

func (s *HandlerSuite) TestUpsertRejectsMalformedBodies() {
	h := s.router(s.owner)

	s.Run("multipart without draft part", func() {
		req := testutil.NewMultipartRequest(s.T(), http.MethodPut, "/drafts", nil,
			testutil.FilePart{Field: api.PartPrimary, FileName: "passport.png", Data: []byte("x")})

		rec := s.do(h, req)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("draft part is required", decodeError(s, rec)["error_description"])
	})

	s.Run("unknown fields", func() {
		rec := s.do(h, s.jsonRequest(http.MethodPut, "/drafts", `{"colour":"blue"}`))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("bad draft id", func() {
		rec := s.do(h, s.jsonRequest(http.MethodPut, "/drafts", `{"id":"nope"}`))
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *HandlerSuite) TestUpsertServiceErrors() {
	s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeValidation, "ownership percentages must total 100 (got 99)"))

	rec := s.do(s.router(s.owner), s.jsonRequest(http.MethodPut, "/drafts", `{"current_step":4}`))
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(s, rec)
	s.Equal("validation_error", body["error"])
	s.Equal("ownership percentages must total 100 (got 99)", body["error_description"])
}

func (s *HandlerSuite) TestIdempotencyKeyReplays() {
	store := idempotency.NewInMemory()
	h := s.router(s.owner, WithIdempotency(store))

	s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(s.draft, nil).Times(1)
	s.service.EXPECT().Fetch(gomock.Any(), s.owner, s.draft.ID).Return(s.draft, nil).Times(1)

	for i := 0; i < 2; i++ {
		req := s.jsonRequest(http.MethodPut, "/drafts", `{"jurisdiction":"Wyoming"}`)
		req.Header.Set(api.IdempotencyKeyHeader, "attempt-1")
		rec := s.do(h, req)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp api.Draft
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(s.draft.ID.String(), resp.ID)
	}
}

func (s *HandlerSuite) TestIdempotencyKeyInFlight() {
	store := mocks.NewMockIdempotencyStore(s.ctrl)
	store.EXPECT().Begin(gomock.Any(), s.owner.String(), "attempt-1").Return(idempotency.Attempt{}, idempotency.ErrInFlight)

	req := s.jsonRequest(http.MethodPut, "/drafts", `{}`)
	req.Header.Set(api.IdempotencyKeyHeader, "attempt-1")
	rec := s.do(s.router(s.owner, WithIdempotency(store)), req)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestIdempotencyKeyReleasedOnFailure() {
	store := mocks.NewMockIdempotencyStore(s.ctrl)
	gomock.InOrder(
		store.EXPECT().Begin(gomock.Any(), s.owner.String(), "attempt-1").Return(idempotency.Attempt{Started: true}, nil),
		store.EXPECT().Release(gomock.Any(), s.owner.String(), "attempt-1").Return(nil),
	)
	s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeStorage, "failed to store passport.png"))

	req := s.jsonRequest(http.MethodPut, "/drafts", `{}`)
	req.Header.Set(api.IdempotencyKeyHeader, "attempt-1")
	rec := s.do(s.router(s.owner, WithIdempotency(store)), req)
	s.Equal(http.StatusBadGateway, rec.Code)
}

func (s *HandlerSuite) TestIdempotencyOutcomeRecordedAfterClientGone() {
	s.Run("success is completed", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := mocks.NewMockIdempotencyStore(s.ctrl)
		store.EXPECT().Begin(gomock.Any(), s.owner.String(), "attempt-1").Return(idempotency.Attempt{Started: true}, nil)
		s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, service.UpsertCommand) (*models.Draft, error) {
				cancel()
				return s.draft, nil
			})
		store.EXPECT().Complete(gomock.Any(), s.owner.String(), "attempt-1", s.draft.ID.String()).
			DoAndReturn(func(ctx context.Context, _, _, _ string) error {
				s.NoError(ctx.Err(), "outcome must be recorded on a live context")
				return ctx.Err()
			})

		req := s.jsonRequest(http.MethodPut, "/drafts", `{}`).WithContext(ctx)
		req.Header.Set(api.IdempotencyKeyHeader, "attempt-1")
		s.do(s.router(s.owner, WithIdempotency(store)), req)
	})

	s.Run("failure is released", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := mocks.NewMockIdempotencyStore(s.ctrl)
		store.EXPECT().Begin(gomock.Any(), s.owner.String(), "attempt-2").Return(idempotency.Attempt{Started: true}, nil)
		s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, service.UpsertCommand) (*models.Draft, error) {
				cancel()
				return nil, dErrors.New(dErrors.CodeStorage, "failed to store passport.png")
			})
		store.EXPECT().Release(gomock.Any(), s.owner.String(), "attempt-2").
			DoAndReturn(func(ctx context.Context, _, _ string) error {
				s.NoError(ctx.Err(), "release must run on a live context")
				return ctx.Err()
			})

		req := s.jsonRequest(http.MethodPut, "/drafts", `{}`).WithContext(ctx)
		req.Header.Set(api.IdempotencyKeyHeader, "attempt-2")
		s.do(s.router(s.owner, WithIdempotency(store)), req)
	})
}

func (s *HandlerSuite) TestUpsertCoercesNonNumericFee() {
	var got service.UpsertCommand
	s.service.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd service.UpsertCommand) (*models.Draft, error) {
			got = cmd
			return s.draft, nil
		})

	rec := s.do(s.router(s.owner), s.jsonRequest(http.MethodPut, "/drafts", `{"jurisdiction":"Wyoming","jurisdiction_fee":true}`))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("true", got.JurisdictionFee)
	s.True(models.CoerceFee(got.JurisdictionFee).IsZero())
}

func (s *HandlerSuite) TestFetchAndList() {
	h := s.router(s.owner)

	s.service.EXPECT().Fetch(gomock.Any(), s.owner, s.draft.ID).Return(s.draft, nil)
	rec := s.do(h, httptest.NewRequest(http.MethodGet, "/drafts/"+s.draft.ID.String(), nil))
	s.Equal(http.StatusOK, rec.Code)

	s.service.EXPECT().List(gomock.Any(), s.owner).Return([]*models.Draft{s.draft}, nil)
	rec = s.do(h, httptest.NewRequest(http.MethodGet, "/drafts", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	list := testutil.UnmarshalResponse[api.DraftList](s.T(), rec)
	s.Len(list.Drafts, 1)

	rec = s.do(h, httptest.NewRequest(http.MethodGet, "/drafts/not-a-uuid", nil))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestDelete() {
	h := s.router(s.owner)

	s.service.EXPECT().Delete(gomock.Any(), s.owner, s.draft.ID).Return(nil)
	rec := s.do(h, httptest.NewRequest(http.MethodDelete, "/drafts/"+s.draft.ID.String(), nil))
	s.Equal(http.StatusNoContent, rec.Code)

	s.service.EXPECT().Delete(gomock.Any(), s.owner, s.draft.ID).
		Return(dErrors.New(dErrors.CodeForbidden, "draft belongs to another user"))
	rec = s.do(h, httptest.NewRequest(http.MethodDelete, "/drafts/"+s.draft.ID.String(), nil))
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestRemoveAttachment() {
	h := s.router(s.owner)
	attachmentID := id.NewAttachmentID()
	target := "/drafts/" + s.draft.ID.String() + "/attachments/" + attachmentID.String()

	s.service.EXPECT().RemoveAttachment(gomock.Any(), s.owner, s.draft.ID, attachmentID).Return(s.draft, nil)
	rec := s.do(h, httptest.NewRequest(http.MethodDelete, target, nil))
	s.Equal(http.StatusOK, rec.Code)

	s.service.EXPECT().RemoveAttachment(gomock.Any(), s.owner, s.draft.ID, attachmentID).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "attachment not found"))
	rec = s.do(h, httptest.NewRequest(http.MethodDelete, target, nil))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestRecordPayment() {
	h := s.router(s.owner)
	target := "/drafts/" + s.draft.ID.String() + "/payment"

	rec := s.do(h, s.jsonRequest(http.MethodPost, target, `{"provider_reference":""}`))
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	paid := s.draft.Clone()
	paid.Status = models.StatusPaid
	paid.PaymentStatus = models.PaymentPaid
	s.service.EXPECT().RecordPayment(gomock.Any(), s.owner, s.draft.ID, "pay_123").Return(paid, nil)
	rec = s.do(h, s.jsonRequest(http.MethodPost, target, `{"provider_reference":" pay_123 "}`))
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp api.Draft
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("paid", resp.PaymentStatus)
}
