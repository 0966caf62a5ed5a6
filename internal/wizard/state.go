package wizard

import (
	"slices"

	"github.com/shopspring/decimal"

	"bizreg/internal/attachment"
	"bizreg/internal/draft/models"
	id "bizreg/pkg/domain"
)

// Document is a stored attachment as the wizard sees it.
type Document struct {
	ID       id.AttachmentID
	FileName string
	Location string
	Kind     models.Kind
}

// State is everything the wizard has accumulated. The draft id lives here and
// nowhere else; Restart discards it.
type State struct {
	DraftID         id.DraftID
	Version         int64
	Step            models.Step
	Jurisdiction    string
	JurisdictionFee string
	EntityName      string
	EntityCategory  string

	// Owners is nil until the ownership screen has been submitted; an empty
	// non-nil slice means every owner was cleared.
	Owners  []models.OwnerInput
	Address models.Address

	Primary       *Document
	Supplementary []Document

	// Files picked locally but not yet persisted.
	PendingPrimary       *attachment.Upload
	PendingSupplementary []attachment.Upload

	// addressSet records that an address was entered or loaded, even an
	// all-blank one, so it is sent on the next save.
	addressSet bool
}

// StepInput carries whatever the user entered on the current screen. Nil
// fields leave state untouched; a non-nil empty Owners clears the owners.
type StepInput struct {
	Jurisdiction    *string
	JurisdictionFee *string
	EntityName      *string
	EntityCategory  *string
	Owners          []models.OwnerInput
	Address         *models.Address

	Primary       *attachment.Upload
	Supplementary []attachment.Upload
	// RemoveSupplementary drops stored supplementary documents by id.
	RemoveSupplementary []id.AttachmentID
}

// Snapshot is the canonical draft returned by a Persister.
type Snapshot struct {
	DraftID         id.DraftID
	Version         int64
	Step            models.Step
	Jurisdiction    string
	JurisdictionFee decimal.Decimal
	EntityName      string
	EntityCategory  string
	Owners          []models.OwnerInput
	Address         *models.Address
	Primary         *Document
	Supplementary   []Document
}

// SaveRequest is one persist call: the full accumulated draft plus new files.
type SaveRequest struct {
	DraftID         id.DraftID
	ExpectedVersion *int64
	CurrentStep     models.Step
	Jurisdiction    string
	JurisdictionFee string
	EntityName      string
	EntityCategory  string
	Owners          []models.OwnerInput
	Address         *models.Address

	// KeepPrimary and KeepSupplementary list the stored documents still
	// referenced; anything else stored for the draft is removed.
	KeepPrimary       *id.AttachmentID
	KeepSupplementary []id.AttachmentID

	NewPrimary       *attachment.Upload
	NewSupplementary []attachment.Upload
}

func initialState() State {
	return State{Step: models.FirstStep}
}

func (s State) clone() State {
	out := s
	out.Owners = slices.Clone(s.Owners)
	if s.Primary != nil {
		p := *s.Primary
		out.Primary = &p
	}
	out.Supplementary = append([]Document(nil), s.Supplementary...)
	if s.PendingPrimary != nil {
		p := *s.PendingPrimary
		out.PendingPrimary = &p
	}
	out.PendingSupplementary = append([]attachment.Upload(nil), s.PendingSupplementary...)
	return out
}

func (s *State) merge(in StepInput) {
	if in.Jurisdiction != nil {
		s.Jurisdiction = *in.Jurisdiction
	}
	if in.JurisdictionFee != nil {
		s.JurisdictionFee = *in.JurisdictionFee
	}
	if in.EntityName != nil {
		s.EntityName = *in.EntityName
	}
	if in.EntityCategory != nil {
		s.EntityCategory = *in.EntityCategory
	}
	if in.Owners != nil {
		s.Owners = slices.Clone(in.Owners)
	}
	if in.Address != nil {
		s.Address = *in.Address
		s.addressSet = true
	}
	if in.Primary != nil {
		p := *in.Primary
		s.PendingPrimary = &p
	}
	s.PendingSupplementary = append(s.PendingSupplementary, in.Supplementary...)
	if len(in.RemoveSupplementary) > 0 {
		drop := make(map[id.AttachmentID]bool, len(in.RemoveSupplementary))
		for _, attachmentID := range in.RemoveSupplementary {
			drop[attachmentID] = true
		}
		kept := s.Supplementary[:0:0]
		for _, doc := range s.Supplementary {
			if !drop[doc.ID] {
				kept = append(kept, doc)
			}
		}
		s.Supplementary = kept
	}
}

func (s State) gateView() models.GateView {
	return models.GateView{
		Jurisdiction:   s.Jurisdiction,
		EntityName:     s.EntityName,
		EntityCategory: s.EntityCategory,
		Owners:         s.Owners,
		Address:        s.Address,
		HasPrimary:     s.PendingPrimary != nil || (s.Primary != nil && s.Primary.FileName != ""),
	}
}

func (s State) saveRequest(step models.Step) SaveRequest {
	req := SaveRequest{
		DraftID:           s.DraftID,
		CurrentStep:       step,
		Jurisdiction:      s.Jurisdiction,
		JurisdictionFee:   s.JurisdictionFee,
		EntityName:        s.EntityName,
		EntityCategory:    s.EntityCategory,
		Owners:            s.Owners,
		KeepSupplementary: make([]id.AttachmentID, 0, len(s.Supplementary)),
		NewPrimary:        s.PendingPrimary,
		NewSupplementary:  s.PendingSupplementary,
	}
	if s.Version > 0 {
		v := s.Version
		req.ExpectedVersion = &v
	}
	if s.addressSet || s.Address != (models.Address{}) {
		addr := s.Address
		req.Address = &addr
	}
	if s.Primary != nil && !s.Primary.ID.IsNil() {
		keep := s.Primary.ID
		req.KeepPrimary = &keep
	}
	for _, doc := range s.Supplementary {
		req.KeepSupplementary = append(req.KeepSupplementary, doc.ID)
	}
	return req
}

// absorb merges a canonical snapshot: server-assigned identity, version and
// stored documents replace local placeholders.
func (s *State) absorb(snap Snapshot) {
	s.DraftID = snap.DraftID
	s.Version = snap.Version
	s.JurisdictionFee = snap.JurisdictionFee.String()
	s.Primary = snap.Primary
	s.Supplementary = append([]Document(nil), snap.Supplementary...)
	s.PendingPrimary = nil
	s.PendingSupplementary = nil
}

func stateFromSnapshot(snap Snapshot) State {
	st := State{
		DraftID:        snap.DraftID,
		Version:        snap.Version,
		Step:           snap.Step,
		Jurisdiction:   snap.Jurisdiction,
		EntityName:     snap.EntityName,
		EntityCategory: snap.EntityCategory,
		Owners:         slices.Clone(snap.Owners),
	}
	if snap.Address != nil {
		st.Address = *snap.Address
		st.addressSet = true
	}
	if !st.Step.IsValid() {
		st.Step = models.FirstStep
	}
	st.absorb(snap)
	return st
}
