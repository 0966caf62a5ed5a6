package store

import (
	"context"
	"slices"
	"sync"

	"bizreg/internal/draft/models"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/sentinel"
)

// InMemoryStore keeps drafts in process memory. A transaction holds the store
// lock for its whole duration and restores a snapshot if fn fails, so readers
// never observe a partial write.
type InMemoryStore struct {
	mu     sync.RWMutex
	drafts map[id.DraftID]*models.Draft
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{drafts: make(map[id.DraftID]*models.Draft)}
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[id.DraftID]*models.Draft, len(s.drafts))
	for k, d := range s.drafts {
		snapshot[k] = d.Clone()
	}
	if err := fn(&memoryTx{s: s}); err != nil {
		s.drafts = snapshot
		return err
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, draftID id.DraftID) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(draftID)
}

func (s *InMemoryStore) FindForUpdate(ctx context.Context, draftID id.DraftID) (*models.Draft, error) {
	return s.FindByID(ctx, draftID)
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.UserID) ([]*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listByOwner(owner), nil
}

func (s *InMemoryStore) Insert(_ context.Context, draft *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(draft)
}

func (s *InMemoryStore) Update(_ context.Context, draft *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(draft)
}

func (s *InMemoryStore) ReplaceOwners(_ context.Context, draftID id.DraftID, owners []models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceOwners(draftID, owners)
}

func (s *InMemoryStore) UpsertAddress(_ context.Context, draftID id.DraftID, addr models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertAddress(draftID, addr)
}

func (s *InMemoryStore) InsertAttachment(_ context.Context, ref models.AttachmentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAttachment(ref)
}

func (s *InMemoryStore) DeletePrimaryAttachment(_ context.Context, draftID id.DraftID) (*models.AttachmentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletePrimary(draftID)
}

func (s *InMemoryStore) DeleteAttachment(_ context.Context, draftID id.DraftID, attachmentID id.AttachmentID) (models.AttachmentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAttachment(draftID, attachmentID)
}

func (s *InMemoryStore) SavePaymentLink(_ context.Context, link models.PaymentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savePaymentLink(link)
}

func (s *InMemoryStore) DeleteOwners(_ context.Context, draftID id.DraftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(draftID, func(d *models.Draft) { d.Owners = nil })
}

func (s *InMemoryStore) DeleteAddress(_ context.Context, draftID id.DraftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(draftID, func(d *models.Draft) { d.Address = nil })
}

func (s *InMemoryStore) DeleteAttachments(_ context.Context, draftID id.DraftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(draftID, func(d *models.Draft) { d.Documents = models.IdentificationBundle{} })
}

func (s *InMemoryStore) DeletePaymentLink(_ context.Context, draftID id.DraftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(draftID, func(d *models.Draft) { d.Payment = nil })
}

func (s *InMemoryStore) DeleteDraft(_ context.Context, draftID id.DraftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteDraft(draftID)
}

// The lowercase methods below assume s.mu is held.

func (s *InMemoryStore) find(draftID id.DraftID) (*models.Draft, error) {
	d, ok := s.drafts[draftID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d.Clone(), nil
}

func (s *InMemoryStore) listByOwner(owner id.UserID) []*models.Draft {
	out := make([]*models.Draft, 0)
	for _, d := range s.drafts {
		if d.IsOwnedBy(owner) {
			out = append(out, d.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Draft) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out
}

func (s *InMemoryStore) insert(draft *models.Draft) error {
	if _, exists := s.drafts[draft.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := draft.Clone()
	stored.Owners = nil
	stored.Address = nil
	stored.Documents = models.IdentificationBundle{}
	stored.Payment = nil
	s.drafts[draft.ID] = stored
	return nil
}

func (s *InMemoryStore) update(draft *models.Draft) error {
	cur, ok := s.drafts[draft.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Version != draft.Version {
		return sentinel.ErrConflict
	}
	cur.Jurisdiction = draft.Jurisdiction
	cur.JurisdictionFee = draft.JurisdictionFee
	cur.EntityName = draft.EntityName
	cur.EntityCategory = draft.EntityCategory
	cur.Status = draft.Status
	cur.CurrentStep = draft.CurrentStep
	cur.PaymentStatus = draft.PaymentStatus
	cur.UpdatedAt = draft.UpdatedAt
	cur.Version++
	draft.Version = cur.Version
	return nil
}

func (s *InMemoryStore) replaceOwners(draftID id.DraftID, owners []models.Owner) error {
	return s.mutate(draftID, func(d *models.Draft) {
		d.Owners = append([]models.Owner(nil), owners...)
	})
}

func (s *InMemoryStore) upsertAddress(draftID id.DraftID, addr models.Address) error {
	return s.mutate(draftID, func(d *models.Draft) { d.Address = &addr })
}

func (s *InMemoryStore) insertAttachment(ref models.AttachmentRef) error {
	d, ok := s.drafts[ref.DraftID]
	if !ok {
		return sentinel.ErrNotFound
	}
	switch ref.Slot {
	case models.SlotPrimary:
		if d.Documents.Primary != nil {
			return sentinel.ErrConflict
		}
		d.Documents.Primary = &ref
	default:
		d.Documents.Supplementary = append(d.Documents.Supplementary, ref)
	}
	return nil
}

func (s *InMemoryStore) deletePrimary(draftID id.DraftID) (*models.AttachmentRef, error) {
	d, ok := s.drafts[draftID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	old := d.Documents.Primary
	d.Documents.Primary = nil
	return old, nil
}

func (s *InMemoryStore) deleteAttachment(draftID id.DraftID, attachmentID id.AttachmentID) (models.AttachmentRef, error) {
	d, ok := s.drafts[draftID]
	if !ok {
		return models.AttachmentRef{}, sentinel.ErrNotFound
	}
	if p := d.Documents.Primary; p != nil && p.ID == attachmentID {
		d.Documents.Primary = nil
		return *p, nil
	}
	for i, ref := range d.Documents.Supplementary {
		if ref.ID == attachmentID {
			d.Documents.Supplementary = slices.Delete(d.Documents.Supplementary, i, i+1)
			return ref, nil
		}
	}
	return models.AttachmentRef{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) savePaymentLink(link models.PaymentLink) error {
	return s.mutate(link.DraftID, func(d *models.Draft) { d.Payment = &link })
}

func (s *InMemoryStore) deleteDraft(draftID id.DraftID) error {
	d, ok := s.drafts[draftID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if len(d.Owners) > 0 || d.Address != nil || len(d.Documents.All()) > 0 || d.Payment != nil {
		return sentinel.ErrInvalidState
	}
	delete(s.drafts, draftID)
	return nil
}

func (s *InMemoryStore) mutate(draftID id.DraftID, fn func(d *models.Draft)) error {
	d, ok := s.drafts[draftID]
	if !ok {
		return sentinel.ErrNotFound
	}
	fn(d)
	return nil
}

// memoryTx is the lock-free view handed to RunInTx callbacks; the enclosing
// RunInTx already holds s.mu.
type memoryTx struct {
	s *InMemoryStore
}

func (t *memoryTx) RunInTx(_ context.Context, fn func(store Store) error) error {
	return fn(t)
}

func (t *memoryTx) FindByID(_ context.Context, draftID id.DraftID) (*models.Draft, error) {
	return t.s.find(draftID)
}

func (t *memoryTx) FindForUpdate(_ context.Context, draftID id.DraftID) (*models.Draft, error) {
	return t.s.find(draftID)
}

func (t *memoryTx) ListByOwner(_ context.Context, owner id.UserID) ([]*models.Draft, error) {
	return t.s.listByOwner(owner), nil
}

func (t *memoryTx) Insert(_ context.Context, draft *models.Draft) error {
	return t.s.insert(draft)
}

func (t *memoryTx) Update(_ context.Context, draft *models.Draft) error {
	return t.s.update(draft)
}

func (t *memoryTx) ReplaceOwners(_ context.Context, draftID id.DraftID, owners []models.Owner) error {
	return t.s.replaceOwners(draftID, owners)
}

func (t *memoryTx) UpsertAddress(_ context.Context, draftID id.DraftID, addr models.Address) error {
	return t.s.upsertAddress(draftID, addr)
}

func (t *memoryTx) InsertAttachment(_ context.Context, ref models.AttachmentRef) error {
	return t.s.insertAttachment(ref)
}

func (t *memoryTx) DeletePrimaryAttachment(_ context.Context, draftID id.DraftID) (*models.AttachmentRef, error) {
	return t.s.deletePrimary(draftID)
}

func (t *memoryTx) DeleteAttachment(_ context.Context, draftID id.DraftID, attachmentID id.AttachmentID) (models.AttachmentRef, error) {
	return t.s.deleteAttachment(draftID, attachmentID)
}

func (t *memoryTx) SavePaymentLink(_ context.Context, link models.PaymentLink) error {
	return t.s.savePaymentLink(link)
}

func (t *memoryTx) DeleteOwners(_ context.Context, draftID id.DraftID) error {
	return t.s.mutate(draftID, func(d *models.Draft) { d.Owners = nil })
}

func (t *memoryTx) DeleteAddress(_ context.Context, draftID id.DraftID) error {
	return t.s.mutate(draftID, func(d *models.Draft) { d.Address = nil })
}

func (t *memoryTx) DeleteAttachments(_ context.Context, draftID id.DraftID) error {
	return t.s.mutate(draftID, func(d *models.Draft) { d.Documents = models.IdentificationBundle{} })
}

func (t *memoryTx) DeletePaymentLink(_ context.Context, draftID id.DraftID) error {
	return t.s.mutate(draftID, func(d *models.Draft) { d.Payment = nil })
}

func (t *memoryTx) DeleteDraft(_ context.Context, draftID id.DraftID) error {
	return t.s.deleteDraft(draftID)
}
