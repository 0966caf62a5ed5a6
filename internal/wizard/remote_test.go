package wizard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizreg/internal/attachment"
	"bizreg/internal/auth/idempotency"
	"bizreg/internal/draft/api"
	"bizreg/internal/draft/handler"
	"bizreg/internal/draft/models"
	"bizreg/internal/wizard"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/requestcontext"
)

const testToken = "session-token"

// newServer exposes the draft handler with a bearer check standing in for the
// session middleware.
func newServer(t *testing.T, b *backend) *httptest.Server {
	t.Helper()
	h := handler.New(b.service, discardLogger(), handler.WithIdempotency(idempotency.NewInMemory()))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(r.Context(), b.owner)))
		})
	})
	h.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// lostResponse delivers the first request to the server and then reports a
// transport error, as if the response had been lost on the way back.
type lostResponse struct {
	mu   sync.Mutex
	next http.RoundTripper
	keys []string
}

func (l *lostResponse) RoundTrip(req *http.Request) (*http.Response, error) {
	l.mu.Lock()
	l.keys = append(l.keys, req.Header.Get(api.IdempotencyKeyHeader))
	first := len(l.keys) == 1
	l.mu.Unlock()

	resp, err := l.next.RoundTrip(req)
	if err != nil || !first {
		return resp, err
	}
	resp.Body.Close()
	return nil, assert.AnError
}

func TestRemoteRegistration(t *testing.T) {
	b := newBackend(t)
	srv := newServer(t, b)
	persister := wizard.NewRemotePersister(srv.URL, wizard.StaticToken(testToken))
	c := wizard.New(persister, wizard.WithLogger(discardLogger()))

	completeRegistration(t, c)

	drafts := b.drafts(t)
	require.Len(t, drafts, 1)
	assert.Equal(t, models.StepReview, drafts[0].CurrentStep)
	require.NotNil(t, drafts[0].Documents.Primary)

	st := c.State()
	assert.Equal(t, drafts[0].ID, st.DraftID)
	require.NotNil(t, st.Primary)
	assert.Equal(t, drafts[0].Documents.Primary.ID, st.Primary.ID)
	assert.Equal(t, "100", st.JurisdictionFee)

	snap, err := persister.Load(context.Background(), st.DraftID)
	require.NoError(t, err)
	assert.Equal(t, models.StepReview, snap.Step)
	assert.Len(t, snap.Owners, 2)
	require.NotNil(t, snap.Address)
	assert.Equal(t, "Cheyenne", snap.Address.City)
}

func TestRemoteRetryAfterLostResponse(t *testing.T) {
	b := newBackend(t)
	srv := newServer(t, b)
	transport := &lostResponse{next: http.DefaultTransport}
	persister := wizard.NewRemotePersister(srv.URL, wizard.StaticToken(testToken),
		wizard.WithHTTPClient(&http.Client{Transport: transport}))
	c := wizard.New(persister, wizard.WithLogger(discardLogger()))

	require.NoError(t, c.Advance(context.Background(), wizard.StepInput{Jurisdiction: ptr("Wyoming")}))

	require.Len(t, transport.keys, 2)
	assert.NotEmpty(t, transport.keys[0])
	assert.Equal(t, transport.keys[0], transport.keys[1], "retry reuses the key")
	drafts := b.drafts(t)
	require.Len(t, drafts, 1, "replay does not create a second draft")
	assert.Equal(t, drafts[0].ID, c.State().DraftID)
}

func TestRemoteSaveAndExitClearsOwners(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	srv := newServer(t, b)
	c := wizard.New(wizard.NewRemotePersister(srv.URL, wizard.StaticToken(testToken)), wizard.WithLogger(discardLogger()))

	require.NoError(t, c.Advance(ctx, wizard.StepInput{Jurisdiction: ptr("Wyoming")}))
	require.NoError(t, c.Advance(ctx, wizard.StepInput{EntityName: ptr("Acme LLC"), EntityCategory: ptr("Retail")}))
	require.NoError(t, c.Advance(ctx, wizard.StepInput{Owners: []models.OwnerInput{{FullName: "Ada", Percentage: "100"}}}))
	require.NoError(t, c.Retreat())

	require.NoError(t, c.SaveAndExit(ctx, wizard.StepInput{Owners: []models.OwnerInput{}}))

	drafts := b.drafts(t)
	require.Len(t, drafts, 1)
	assert.Empty(t, drafts[0].Owners)
	assert.Equal(t, models.StepOwnership, drafts[0].CurrentStep)
}

func TestRemoteErrorsKeepTheirCode(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	srv := newServer(t, b)

	t.Run("unsupported file type", func(t *testing.T) {
		persister := wizard.NewRemotePersister(srv.URL, wizard.StaticToken(testToken))
		_, err := persister.Save(ctx, wizard.SaveRequest{
			CurrentStep:  models.StepDocuments,
			Jurisdiction: "Wyoming",
			NewPrimary:   &attachment.Upload{FileName: "notes.txt", Data: []byte("plain text")},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedFile))
		assert.Empty(t, b.drafts(t))
	})

	t.Run("server gate check", func(t *testing.T) {
		persister := wizard.NewRemotePersister(srv.URL, wizard.StaticToken(testToken))
		_, err := persister.Save(ctx, wizard.SaveRequest{CurrentStep: models.StepNaming})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		de, _ := dErrors.As(err)
		assert.Equal(t, "jurisdiction must be selected", de.Message)
	})

	t.Run("missing draft", func(t *testing.T) {
		persister := wizard.NewRemotePersister(srv.URL, wizard.StaticToken(testToken))
		_, err := persister.Load(ctx, id.NewDraftID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("bad token", func(t *testing.T) {
		persister := wizard.NewRemotePersister(srv.URL, wizard.StaticToken("expired"))
		_, err := persister.Save(ctx, wizard.SaveRequest{CurrentStep: models.StepJurisdiction})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("no token", func(t *testing.T) {
		persister := wizard.NewRemotePersister(srv.URL, wizard.StaticToken(""))
		_, err := persister.Save(ctx, wizard.SaveRequest{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
