package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "bizreg/pkg/domain"
)

// Status is the lifecycle status of a registration.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSubmitted Status = "submitted"
	StatusPaid      Status = "paid"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusSubmitted, StatusPaid:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Draft is the aggregate root for a registration in progress.
//
// Invariants:
//   - OwnerID is immutable once set
//   - CurrentStep is within 1..6
//   - JurisdictionFee is never negative
//   - Documents holds at most one primary attachment
//   - Version increases by one on every committed write
type Draft struct {
	ID              id.DraftID
	OwnerID         id.UserID
	Jurisdiction    string
	JurisdictionFee decimal.Decimal
	EntityName      string
	EntityCategory  string
	Status          Status
	CurrentStep     Step
	PaymentStatus   PaymentStatus
	Owners          []Owner
	Address         *Address
	Documents       IdentificationBundle
	Payment         *PaymentLink
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Address is the single residential address of a draft.
type Address struct {
	Street     string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// IdentificationBundle groups the primary document and any supplementary ones.
type IdentificationBundle struct {
	Primary       *AttachmentRef
	Supplementary []AttachmentRef
}

// All returns every attachment in the bundle, primary first.
func (b IdentificationBundle) All() []AttachmentRef {
	out := make([]AttachmentRef, 0, len(b.Supplementary)+1)
	if b.Primary != nil {
		out = append(out, *b.Primary)
	}
	return append(out, b.Supplementary...)
}

// Find returns the attachment with the given id.
func (b IdentificationBundle) Find(attachmentID id.AttachmentID) (AttachmentRef, bool) {
	for _, ref := range b.All() {
		if ref.ID == attachmentID {
			return ref, true
		}
	}
	return AttachmentRef{}, false
}

// PaymentLink records the payment collaborator's reference for a draft.
type PaymentLink struct {
	DraftID           id.DraftID
	ProviderReference string
	Amount            decimal.Decimal
	CreatedAt         time.Time
}

// NewDraft builds an empty draft for owner at step 1.
func NewDraft(draftID id.DraftID, owner id.UserID, now time.Time) *Draft {
	return &Draft{
		ID:              draftID,
		OwnerID:         owner,
		JurisdictionFee: decimal.Zero,
		Status:          StatusDraft,
		CurrentStep:     StepJurisdiction,
		PaymentStatus:   PaymentUnpaid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsOwnedBy reports whether user owns the draft.
func (d *Draft) IsOwnedBy(user id.UserID) bool {
	return d.OwnerID == user
}

// IsFinalized reports whether the draft has left the editable lifecycle:
// payment is complete and the status has moved past draft.
func (d *Draft) IsFinalized() bool {
	return d.PaymentStatus == PaymentPaid && d.Status != StatusDraft
}

// GateView projects the draft onto the fields step gates inspect.
func (d *Draft) GateView() GateView {
	view := GateView{
		Jurisdiction:   d.Jurisdiction,
		EntityName:     d.EntityName,
		EntityCategory: d.EntityCategory,
		Owners:         OwnerInputs(d.Owners),
		HasPrimary:     d.Documents.Primary != nil && d.Documents.Primary.FileName != "",
	}
	if d.Address != nil {
		view.Address = *d.Address
	}
	return view
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := *d
	out.Owners = append([]Owner(nil), d.Owners...)
	if d.Address != nil {
		addr := *d.Address
		out.Address = &addr
	}
	if d.Documents.Primary != nil {
		p := *d.Documents.Primary
		out.Documents.Primary = &p
	}
	out.Documents.Supplementary = append([]AttachmentRef(nil), d.Documents.Supplementary...)
	if d.Payment != nil {
		p := *d.Payment
		out.Payment = &p
	}
	return &out
}
