package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"bizreg/internal/audit"
	"bizreg/internal/draft/models"
	"bizreg/internal/draft/store"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/requestcontext"
)

// Delete removes a draft with its owners, address, attachments and payment
// link as one unit. Stored file bytes are discarded after commit.
func (s *Service) Delete(ctx context.Context, owner id.UserID, draftID id.DraftID) (err error) {
	ctx, span := s.tracer.Start(ctx, "draft.Delete")
	span.SetAttributes(attribute.String("draft.id", draftID.String()))
	defer func() { endSpan(span, err) }()

	if owner.IsNil() {
		return errAuthRequired()
	}
	workCtx, cancel := s.detach(ctx)
	defer cancel()

	var deleted *models.Draft
	err = s.tx.RunInTx(workCtx, func(st store.Store) error {
		d, err := loadOwned(workCtx, st, owner, draftID)
		if err != nil {
			return err
		}
		steps := []struct {
			name string
			run  func(context.Context, id.DraftID) error
		}{
			{"owners", st.DeleteOwners},
			{"address", st.DeleteAddress},
			{"attachments", st.DeleteAttachments},
			{"payment link", st.DeletePaymentLink},
			{"draft", st.DeleteDraft},
		}
		for _, step := range steps {
			if err := step.run(workCtx, d.ID); err != nil {
				return translate(err, "failed to delete "+step.name)
			}
		}
		deleted = d
		return nil
	})
	if err != nil {
		return translate(err, "failed to delete draft")
	}

	s.files.Discard(workCtx, deleted.Documents.All()...)
	s.logger.InfoContext(ctx, "draft deleted",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", owner.String(),
		"draft_id", draftID.String(),
	)
	s.emit(ctx, audit.ActionDraftDeleted, deleted, "")
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	return nil
}

// RemoveAttachment removes one stored attachment from the caller's draft and
// returns the updated snapshot. A missing attachment is CodeNotFound and
// changes nothing.
func (s *Service) RemoveAttachment(ctx context.Context, owner id.UserID, draftID id.DraftID, attachmentID id.AttachmentID) (*models.Draft, error) {
	if owner.IsNil() {
		return nil, errAuthRequired()
	}
	workCtx, cancel := s.detach(ctx)
	defer cancel()

	var (
		removed models.AttachmentRef
		updated *models.Draft
	)
	err := s.tx.RunInTx(workCtx, func(st store.Store) error {
		d, err := loadOwned(workCtx, st, owner, draftID)
		if err != nil {
			return err
		}
		if d.IsFinalized() {
			return dErrors.New(dErrors.CodeConflict, "draft is finalized and can no longer be edited")
		}
		removed, err = s.files.Remove(workCtx, st, draftID, attachmentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "attachment not found")
			}
			return err
		}
		d.UpdatedAt = requestcontext.Now(workCtx)
		if err := st.Update(workCtx, d); err != nil {
			return translate(err, "failed to save draft")
		}
		updated, err = st.FindByID(workCtx, draftID)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to remove attachment")
	}

	s.files.Discard(workCtx, removed)
	s.emit(ctx, audit.ActionAttachmentRemoved, updated, attachmentID.String())
	return updated, nil
}

// RecordPayment links a payment reference to a draft on the review step and
// marks it paid. A paid draft is finalized.
func (s *Service) RecordPayment(ctx context.Context, owner id.UserID, draftID id.DraftID, providerReference string) (*models.Draft, error) {
	if owner.IsNil() {
		return nil, errAuthRequired()
	}
	if providerReference == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "provider reference is required")
	}
	workCtx, cancel := s.detach(ctx)
	defer cancel()

	var paid *models.Draft
	err := s.tx.RunInTx(workCtx, func(st store.Store) error {
		d, err := loadOwned(workCtx, st, owner, draftID)
		if err != nil {
			return err
		}
		if d.IsFinalized() {
			return dErrors.New(dErrors.CodeConflict, "draft is already paid")
		}
		if d.CurrentStep != models.StepReview {
			return dErrors.New(dErrors.CodeValidation, "draft must reach the review step before payment")
		}
		if err := models.CheckStepsBefore(models.StepReview, d.GateView()); err != nil {
			return err
		}
		now := requestcontext.Now(workCtx)
		link := models.PaymentLink{
			DraftID:           d.ID,
			ProviderReference: providerReference,
			Amount:            d.JurisdictionFee,
			CreatedAt:         now,
		}
		if err := st.SavePaymentLink(workCtx, link); err != nil {
			return translate(err, "failed to save payment link")
		}
		d.PaymentStatus = models.PaymentPaid
		d.Status = models.StatusPaid
		d.UpdatedAt = now
		if err := st.Update(workCtx, d); err != nil {
			return translate(err, "failed to save draft")
		}
		paid, err = st.FindByID(workCtx, draftID)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to record payment")
	}
	s.logSaved(ctx, "draft paid", paid)
	s.emit(ctx, audit.ActionDraftPaid, paid, "")
	return paid, nil
}
