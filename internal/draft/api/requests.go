// Package api defines the JSON shapes exchanged over /drafts. The handler
// decodes them and the wizard's remote persister encodes them.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"bizreg/internal/draft/models"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
)

// IdempotencyKeyHeader carries the client's retry key on PUT /drafts.
const IdempotencyKeyHeader = "Idempotency-Key"

// Multipart part names accepted by PUT /drafts.
const (
	PartDraft         = "draft"
	PartPrimary       = "primary"
	PartSupplementary = "supplementary"
)

// NumericInput accepts a JSON number, a string, or null and keeps the raw
// text. Interpretation (coercion or strict parsing) is left to the domain.
type NumericInput string

func (n *NumericInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumericInput(s)
	default:
		var num json.Number
		if err := json.Unmarshal(b, &num); err != nil {
			return fmt.Errorf("expected a number or string: %w", err)
		}
		*n = NumericInput(num.String())
	}
	return nil
}

func (n NumericInput) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(n))
}

// FeeInput is a NumericInput that never fails to decode: booleans, objects and
// arrays keep their raw text so fee coercion resolves them to zero.
type FeeInput string

func (f *FeeInput) UnmarshalJSON(b []byte) error {
	var n NumericInput
	if err := n.UnmarshalJSON(b); err != nil {
		*f = FeeInput(bytes.TrimSpace(b))
		return nil
	}
	*f = FeeInput(n)
	return nil
}

func (f FeeInput) MarshalJSON() ([]byte, error) {
	return NumericInput(f).MarshalJSON()
}

// UpsertDraftRequest is the body of PUT /drafts (or its "draft" multipart part).
type UpsertDraftRequest struct {
	ID              string            `json:"id,omitempty"`
	ExpectedVersion *int64            `json:"expected_version,omitempty"`
	Jurisdiction    string            `json:"jurisdiction" validate:"max=100"`
	JurisdictionFee FeeInput          `json:"jurisdiction_fee"`
	EntityName      string            `json:"entity_name" validate:"max=200"`
	EntityCategory  string            `json:"entity_category" validate:"max=100"`
	Status          string            `json:"status,omitempty"`
	CurrentStep     int               `json:"current_step"`
	Owners          []OwnerRequest    `json:"owners" validate:"omitempty,max=50,dive"`
	Address         *AddressRequest   `json:"address,omitempty"`
	Documents       *DocumentsRequest `json:"documents,omitempty"`

	parsedID        id.DraftID
	parsedDocuments *ParsedDocuments
}

type OwnerRequest struct {
	FullName   string       `json:"full_name" validate:"max=200"`
	Percentage NumericInput `json:"percentage"`
}

type AddressRequest struct {
	Street     string `json:"street" validate:"max=200"`
	City       string `json:"city" validate:"max=100"`
	Region     string `json:"region" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	Country    string `json:"country" validate:"max=100"`
}

// DocumentsRequest lists the stored attachments the client still references.
type DocumentsRequest struct {
	Primary       string   `json:"primary,omitempty"`
	Supplementary []string `json:"supplementary"`
}

// ParsedDocuments is DocumentsRequest with ids parsed.
type ParsedDocuments struct {
	Primary       *id.AttachmentID
	Supplementary []id.AttachmentID
}

// Validate normalizes the request and parses ids.
func (r *UpsertDraftRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ID = strings.TrimSpace(r.ID)
	if r.ID != "" {
		draftID, err := id.ParseDraftID(r.ID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "id must be a UUID")
		}
		r.parsedID = draftID
	}
	if r.ExpectedVersion != nil && *r.ExpectedVersion < 1 {
		return dErrors.New(dErrors.CodeValidation, "expected_version must be at least 1")
	}
	r.Status = strings.TrimSpace(r.Status)
	if r.Documents != nil {
		docs, err := r.Documents.parse()
		if err != nil {
			return err
		}
		r.parsedDocuments = docs
	}
	return nil
}

func (d *DocumentsRequest) parse() (*ParsedDocuments, error) {
	out := &ParsedDocuments{Supplementary: make([]id.AttachmentID, 0, len(d.Supplementary))}
	if p := strings.TrimSpace(d.Primary); p != "" {
		attachmentID, err := id.ParseAttachmentID(p)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "documents.primary must be a UUID")
		}
		out.Primary = &attachmentID
	}
	for i, raw := range d.Supplementary {
		attachmentID, err := id.ParseAttachmentID(strings.TrimSpace(raw))
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("documents.supplementary[%d] must be a UUID", i))
		}
		out.Supplementary = append(out.Supplementary, attachmentID)
	}
	return out, nil
}

// ParsedID returns the draft id, nil when the client has none yet.
func (r *UpsertDraftRequest) ParsedID() id.DraftID {
	return r.parsedID
}

// ParsedDocuments returns the parsed document references, nil when omitted.
func (r *UpsertDraftRequest) ParsedDocuments() *ParsedDocuments {
	return r.parsedDocuments
}

// OwnerInputs returns the owners in domain input form, nil when omitted.
func (r *UpsertDraftRequest) OwnerInputs() []models.OwnerInput {
	if r.Owners == nil {
		return nil
	}
	out := make([]models.OwnerInput, len(r.Owners))
	for i, o := range r.Owners {
		out[i] = models.OwnerInput{FullName: o.FullName, Percentage: string(o.Percentage)}
	}
	return out
}

// DomainAddress returns the address, nil when omitted.
func (r *UpsertDraftRequest) DomainAddress() *models.Address {
	if r.Address == nil {
		return nil
	}
	return &models.Address{
		Street:     r.Address.Street,
		City:       r.Address.City,
		Region:     r.Address.Region,
		PostalCode: r.Address.PostalCode,
		Country:    r.Address.Country,
	}
}

// RecordPaymentRequest is the body of POST /drafts/{id}/payment.
type RecordPaymentRequest struct {
	ProviderReference string `json:"provider_reference" validate:"required,max=200"`
}

func (r *RecordPaymentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ProviderReference = strings.TrimSpace(r.ProviderReference)
	if r.ProviderReference == "" {
		return dErrors.New(dErrors.CodeValidation, "provider_reference is required")
	}
	return nil
}
