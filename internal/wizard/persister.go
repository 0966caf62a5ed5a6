package wizard

import (
	"context"

	"bizreg/internal/draft/models"
	"bizreg/internal/draft/service"
	id "bizreg/pkg/domain"
)

// DraftService is the subset of the draft service the in-process persister uses.
type DraftService interface {
	Upsert(ctx context.Context, cmd service.UpsertCommand) (*models.Draft, error)
	Fetch(ctx context.Context, owner id.UserID, draftID id.DraftID) (*models.Draft, error)
}

// ServicePersister saves through the draft service in the same process, on
// behalf of one authenticated owner.
type ServicePersister struct {
	service DraftService
	owner   id.UserID
}

func NewServicePersister(svc DraftService, owner id.UserID) *ServicePersister {
	return &ServicePersister{service: svc, owner: owner}
}

func (p *ServicePersister) Save(ctx context.Context, req SaveRequest) (Snapshot, error) {
	d, err := p.service.Upsert(ctx, service.UpsertCommand{
		OwnerID:          p.owner,
		DraftID:          req.DraftID,
		ExpectedVersion:  req.ExpectedVersion,
		Jurisdiction:     req.Jurisdiction,
		JurisdictionFee:  req.JurisdictionFee,
		EntityName:       req.EntityName,
		EntityCategory:   req.EntityCategory,
		CurrentStep:      req.CurrentStep,
		Owners:           req.Owners,
		Address:          req.Address,
		Documents:        &service.DocumentMeta{Primary: req.KeepPrimary, Supplementary: req.KeepSupplementary},
		NewPrimary:       req.NewPrimary,
		NewSupplementary: req.NewSupplementary,
	})
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotFromDraft(d), nil
}

// Load fetches a saved draft for Resume.
func (p *ServicePersister) Load(ctx context.Context, draftID id.DraftID) (Snapshot, error) {
	d, err := p.service.Fetch(ctx, p.owner, draftID)
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotFromDraft(d), nil
}

// SnapshotFromDraft converts a stored draft to a wizard snapshot.
func SnapshotFromDraft(d *models.Draft) Snapshot {
	snap := Snapshot{
		DraftID:         d.ID,
		Version:         d.Version,
		Step:            d.CurrentStep,
		Jurisdiction:    d.Jurisdiction,
		JurisdictionFee: d.JurisdictionFee,
		EntityName:      d.EntityName,
		EntityCategory:  d.EntityCategory,
		Owners:          models.OwnerInputs(d.Owners),
	}
	if d.Address != nil {
		addr := *d.Address
		snap.Address = &addr
	}
	if p := d.Documents.Primary; p != nil {
		doc := documentFromRef(*p)
		snap.Primary = &doc
	}
	for _, ref := range d.Documents.Supplementary {
		snap.Supplementary = append(snap.Supplementary, documentFromRef(ref))
	}
	return snap
}

func documentFromRef(ref models.AttachmentRef) Document {
	return Document{ID: ref.ID, FileName: ref.FileName, Location: ref.Location, Kind: ref.Kind}
}
