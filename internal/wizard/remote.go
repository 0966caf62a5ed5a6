package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizreg/internal/draft/api"
	"bizreg/internal/draft/models"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
)

const defaultRemoteTimeout = 30 * time.Second

// TokenSource supplies the bearer token of the explicit caller session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a token obtained once at login.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "no session token")
	}
	return string(t), nil
}

// RemotePersister saves over PUT /drafts. Each Save carries a fresh
// Idempotency-Key that is reused for its transport retries, so a retry after a
// lost response cannot create a second draft.
type RemotePersister struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	retries int
}

type RemoteOption func(*RemotePersister)

func WithHTTPClient(client *http.Client) RemoteOption {
	return func(p *RemotePersister) {
		if client != nil {
			p.client = client
		}
	}
}

// WithRetries sets how many times a Save is retried after a transport error.
func WithRetries(n int) RemoteOption {
	return func(p *RemotePersister) {
		if n >= 0 {
			p.retries = n
		}
	}
}

func NewRemotePersister(baseURL string, tokens TokenSource, opts ...RemoteOption) *RemotePersister {
	p := &RemotePersister{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRemoteTimeout},
		tokens:  tokens,
		retries: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RemotePersister) Save(ctx context.Context, req SaveRequest) (Snapshot, error) {
	body, contentType, err := encodeSave(req)
	if err != nil {
		return Snapshot{}, err
	}
	key := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		snap, err := p.send(ctx, http.MethodPut, "/drafts", contentType, body, key)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if _, coded := dErrors.As(err); coded || ctx.Err() != nil {
			break
		}
	}
	return Snapshot{}, lastErr
}

// Load fetches a saved draft for Resume.
func (p *RemotePersister) Load(ctx context.Context, draftID id.DraftID) (Snapshot, error) {
	return p.send(ctx, http.MethodGet, "/drafts/"+draftID.String(), "", nil, "")
}

func (p *RemotePersister) send(ctx context.Context, method, path, contentType string, body []byte, key string) (Snapshot, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if key != "" {
		httpReq.Header.Set(api.IdempotencyKeyHeader, key)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, decodeRemoteError(resp)
	}
	var d api.Draft
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return Snapshot{}, fmt.Errorf("decode draft: %w", err)
	}
	return snapshotFromAPI(&d)
}

// decodeRemoteError rebuilds the coded error from the JSON envelope so
// callers see the same taxonomy as in-process.
func decodeRemoteError(resp *http.Response) error {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unexpected response status %d", resp.StatusCode))
	}
	msg := body.ErrorDescription
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return dErrors.New(dErrors.Code(body.Error), msg)
}

func encodeSave(req SaveRequest) ([]byte, string, error) {
	draft := api.UpsertDraftRequest{
		ExpectedVersion: req.ExpectedVersion,
		Jurisdiction:    req.Jurisdiction,
		JurisdictionFee: api.FeeInput(req.JurisdictionFee),
		EntityName:      req.EntityName,
		EntityCategory:  req.EntityCategory,
		CurrentStep:     int(req.CurrentStep),
		Documents:       &api.DocumentsRequest{Supplementary: make([]string, 0, len(req.KeepSupplementary))},
	}
	if !req.DraftID.IsNil() {
		draft.ID = req.DraftID.String()
	}
	if req.Owners != nil {
		draft.Owners = make([]api.OwnerRequest, len(req.Owners))
		for i, o := range req.Owners {
			draft.Owners[i] = api.OwnerRequest{FullName: o.FullName, Percentage: api.NumericInput(o.Percentage)}
		}
	}
	if a := req.Address; a != nil {
		draft.Address = &api.AddressRequest{
			Street:     a.Street,
			City:       a.City,
			Region:     a.Region,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	if req.KeepPrimary != nil {
		draft.Documents.Primary = req.KeepPrimary.String()
	}
	for _, attachmentID := range req.KeepSupplementary {
		draft.Documents.Supplementary = append(draft.Documents.Supplementary, attachmentID.String())
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, "", fmt.Errorf("encode draft: %w", err)
	}
	if req.NewPrimary == nil && len(req.NewSupplementary) == 0 {
		return payload, "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField(api.PartDraft, string(payload)); err != nil {
		return nil, "", err
	}
	if req.NewPrimary != nil {
		if err := writeFile(mw, api.PartPrimary, req.NewPrimary.FileName, req.NewPrimary.Data); err != nil {
			return nil, "", err
		}
	}
	for _, up := range req.NewSupplementary {
		if err := writeFile(mw, api.PartSupplementary, up.FileName, up.Data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func writeFile(mw *multipart.Writer, field, name string, data []byte) error {
	w, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func snapshotFromAPI(d *api.Draft) (Snapshot, error) {
	draftID, err := id.ParseDraftID(d.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("response draft id: %w", err)
	}
	snap := Snapshot{
		DraftID:         draftID,
		Version:         d.Version,
		Step:            models.Step(d.CurrentStep),
		Jurisdiction:    d.Jurisdiction,
		JurisdictionFee: d.JurisdictionFee,
		EntityName:      d.EntityName,
		EntityCategory:  d.EntityCategory,
	}
	for _, o := range d.Owners {
		snap.Owners = append(snap.Owners, models.OwnerInput{FullName: o.FullName, Percentage: string(o.Percentage)})
	}
	if a := d.Address; a != nil {
		snap.Address = &models.Address{
			Street:     a.Street,
			City:       a.City,
			Region:     a.Region,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	if d.Documents.Primary != nil {
		doc, err := documentFromAPI(*d.Documents.Primary)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Primary = &doc
	}
	for _, a := range d.Documents.Supplementary {
		doc, err := documentFromAPI(a)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Supplementary = append(snap.Supplementary, doc)
	}
	return snap, nil
}

func documentFromAPI(a api.Attachment) (Document, error) {
	attachmentID, err := id.ParseAttachmentID(a.ID)
	if err != nil {
		return Document{}, fmt.Errorf("response attachment id: %w", err)
	}
	return Document{ID: attachmentID, FileName: a.FileName, Location: a.Location, Kind: models.Kind(a.Kind)}, nil
}
