package api

import (
	"time"

	"github.com/shopspring/decimal"

	"bizreg/internal/draft/models"
)

// Draft is the canonical snapshot returned by every /drafts endpoint.
type Draft struct {
	ID              string          `json:"id"`
	Version         int64           `json:"version"`
	Jurisdiction    string          `json:"jurisdiction"`
	JurisdictionFee decimal.Decimal `json:"jurisdiction_fee"`
	EntityName      string          `json:"entity_name"`
	EntityCategory  string          `json:"entity_category"`
	Status          string          `json:"status"`
	CurrentStep     int             `json:"current_step"`
	PaymentStatus   string          `json:"payment_status"`
	Owners          []Owner         `json:"owners"`
	Address         *AddressRequest `json:"address,omitempty"`
	Documents       Documents       `json:"documents"`
	Payment         *Payment        `json:"payment,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Owner struct {
	FullName   string       `json:"full_name"`
	Percentage NumericInput `json:"percentage"`
}

type Documents struct {
	Primary       *Attachment  `json:"primary,omitempty"`
	Supplementary []Attachment `json:"supplementary"`
}

type Attachment struct {
	ID          string    `json:"id"`
	Slot        string    `json:"slot"`
	FileName    string    `json:"file_name"`
	Location    string    `json:"location"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
}

type Payment struct {
	ProviderReference string          `json:"provider_reference"`
	Amount            decimal.Decimal `json:"amount"`
	CreatedAt         time.Time       `json:"created_at"`
}

// DraftList is the body of GET /drafts.
type DraftList struct {
	Drafts []*Draft `json:"drafts"`
}

// FromDraft converts a domain draft to its wire form.
func FromDraft(d *models.Draft) *Draft {
	out := &Draft{
		ID:              d.ID.String(),
		Version:         d.Version,
		Jurisdiction:    d.Jurisdiction,
		JurisdictionFee: d.JurisdictionFee,
		EntityName:      d.EntityName,
		EntityCategory:  d.EntityCategory,
		Status:          string(d.Status),
		CurrentStep:     int(d.CurrentStep),
		PaymentStatus:   string(d.PaymentStatus),
		Owners:          make([]Owner, len(d.Owners)),
		Documents:       Documents{Supplementary: make([]Attachment, 0, len(d.Documents.Supplementary))},
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for i, in := range models.OwnerInputs(d.Owners) {
		out.Owners[i] = Owner{FullName: in.FullName, Percentage: NumericInput(in.Percentage)}
	}
	if d.Address != nil {
		out.Address = &AddressRequest{
			Street:     d.Address.Street,
			City:       d.Address.City,
			Region:     d.Address.Region,
			PostalCode: d.Address.PostalCode,
			Country:    d.Address.Country,
		}
	}
	if d.Documents.Primary != nil {
		p := fromAttachment(*d.Documents.Primary)
		out.Documents.Primary = &p
	}
	for _, ref := range d.Documents.Supplementary {
		out.Documents.Supplementary = append(out.Documents.Supplementary, fromAttachment(ref))
	}
	if d.Payment != nil {
		out.Payment = &Payment{
			ProviderReference: d.Payment.ProviderReference,
			Amount:            d.Payment.Amount,
			CreatedAt:         d.Payment.CreatedAt,
		}
	}
	return out
}

// FromDrafts converts a list for GET /drafts.
func FromDrafts(drafts []*models.Draft) *DraftList {
	out := &DraftList{Drafts: make([]*Draft, 0, len(drafts))}
	for _, d := range drafts {
		out.Drafts = append(out.Drafts, FromDraft(d))
	}
	return out
}

func fromAttachment(ref models.AttachmentRef) Attachment {
	return Attachment{
		ID:          ref.ID.String(),
		Slot:        string(ref.Slot),
		FileName:    ref.FileName,
		Location:    ref.Location,
		Kind:        string(ref.Kind),
		ContentType: ref.ContentType,
		Size:        ref.Size,
		Checksum:    ref.Checksum,
		CreatedAt:   ref.CreatedAt,
	}
}
