// Package store persists registration drafts and their child records.
//
// Child records (owners, address, attachments, payment link) are written by
// separate calls so the service can compose them inside one transaction.
package store

import (
	"context"

	"bizreg/internal/draft/models"
	id "bizreg/pkg/domain"
)

// Store is the persistence port for drafts. Missing rows are reported as
// sentinel.ErrNotFound; lost version races as sentinel.ErrConflict.
type Store interface {
	FindByID(ctx context.Context, draftID id.DraftID) (*models.Draft, error)
	// FindForUpdate loads the draft and locks its row until the enclosing
	// transaction ends.
	FindForUpdate(ctx context.Context, draftID id.DraftID) (*models.Draft, error)
	ListByOwner(ctx context.Context, owner id.UserID) ([]*models.Draft, error)

	// Insert writes the scalar fields of a new draft.
	Insert(ctx context.Context, draft *models.Draft) error
	// Update writes scalar fields if the stored version still equals
	// draft.Version, then advances draft.Version.
	Update(ctx context.Context, draft *models.Draft) error

	ReplaceOwners(ctx context.Context, draftID id.DraftID, owners []models.Owner) error
	UpsertAddress(ctx context.Context, draftID id.DraftID, addr models.Address) error

	InsertAttachment(ctx context.Context, ref models.AttachmentRef) error
	// DeletePrimaryAttachment removes the primary reference, returning it, or
	// nil when the draft has none.
	DeletePrimaryAttachment(ctx context.Context, draftID id.DraftID) (*models.AttachmentRef, error)
	DeleteAttachment(ctx context.Context, draftID id.DraftID, attachmentID id.AttachmentID) (models.AttachmentRef, error)

	SavePaymentLink(ctx context.Context, link models.PaymentLink) error

	DeleteOwners(ctx context.Context, draftID id.DraftID) error
	DeleteAddress(ctx context.Context, draftID id.DraftID) error
	DeleteAttachments(ctx context.Context, draftID id.DraftID) error
	DeletePaymentLink(ctx context.Context, draftID id.DraftID) error
	// DeleteDraft removes the draft row. Child records must already be gone.
	DeleteDraft(ctx context.Context, draftID id.DraftID) error
}

// TxRunner runs fn against a transactional view of the store. Every write made
// through that view commits together or not at all.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}
