package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"bizreg/internal/attachment"
	"bizreg/internal/audit"
	"bizreg/internal/draft/models"
	"bizreg/internal/draft/store"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/requestcontext"
)

// UpsertCommand is a full snapshot of a draft as the client holds it, plus
// any files uploaded since the last save.
type UpsertCommand struct {
	OwnerID id.UserID
	// DraftID targets an existing draft, or names the id to create with. Nil
	// allocates a new id.
	DraftID id.DraftID
	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int64

	Jurisdiction    string
	JurisdictionFee string
	EntityName      string
	EntityCategory  string
	Status          models.Status
	CurrentStep     models.Step

	// Owners replaces the owner set when non-nil.
	Owners []models.OwnerInput
	// Address is upserted when non-nil.
	Address *models.Address
	// Documents lists the stored attachments the client still references.
	// When non-nil, stored attachments missing from it are removed.
	Documents *DocumentMeta

	NewPrimary       *attachment.Upload
	NewSupplementary []attachment.Upload
}

// DocumentMeta references already-stored attachments by id.
type DocumentMeta struct {
	Primary       *id.AttachmentID
	Supplementary []id.AttachmentID
}

type storedUploads struct {
	primary       *models.AttachmentRef
	supplementary []models.AttachmentRef
}

func (u storedUploads) all() []models.AttachmentRef {
	out := make([]models.AttachmentRef, 0, len(u.supplementary)+1)
	if u.primary != nil {
		out = append(out, *u.primary)
	}
	return append(out, u.supplementary...)
}

type upsertResult struct {
	draft   *models.Draft
	created bool
	discard []models.AttachmentRef
}

// Upsert creates or updates a draft from a full snapshot. All record writes
// commit together; on failure nothing is kept, including newly stored files.
func (s *Service) Upsert(ctx context.Context, cmd UpsertCommand) (_ *models.Draft, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "draft.Upsert")
	defer func() {
		endSpan(span, err)
		s.observeUpsert(start, err)
	}()

	if cmd.OwnerID.IsNil() {
		return nil, errAuthRequired()
	}
	owners, err := checkStructure(cmd)
	if err != nil {
		return nil, err
	}
	if err := s.validateUploads(cmd); err != nil {
		return nil, err
	}

	draftID := cmd.DraftID
	if draftID.IsNil() {
		draftID = id.NewDraftID()
	}
	span.SetAttributes(attribute.String("draft.id", draftID.String()))

	workCtx, cancel := s.detach(ctx)
	defer cancel()

	uploads, err := s.storeUploads(workCtx, draftID, cmd)
	if err != nil {
		return nil, err
	}

	var result upsertResult
	err = s.tx.RunInTx(workCtx, func(st store.Store) error {
		res, err := s.apply(workCtx, st, cmd, draftID, owners, uploads)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		s.files.Discard(workCtx, uploads.all()...)
		s.logger.WarnContext(ctx, "draft upsert rolled back",
			"request_id", requestcontext.RequestID(ctx),
			"draft_id", draftID.String(),
			"error", err,
		)
		return nil, translate(err, "failed to save draft")
	}
	s.files.Discard(workCtx, result.discard...)

	d := result.draft
	if result.created {
		s.logSaved(ctx, "draft created", d)
		s.emit(ctx, audit.ActionDraftCreated, d, "")
		if s.metrics != nil {
			s.metrics.IncrementCreated()
		}
	} else {
		s.logSaved(ctx, "draft updated", d)
		s.emit(ctx, audit.ActionDraftUpdated, d, "")
		if s.metrics != nil {
			s.metrics.IncrementUpdated()
		}
	}
	return d, nil
}

// checkStructure rejects malformed input that no step gate covers.
func checkStructure(cmd UpsertCommand) ([]models.Owner, error) {
	if cmd.Status != "" {
		if !cmd.Status.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("status %q is not recognized", cmd.Status))
		}
		if cmd.Status == models.StatusPaid {
			return nil, dErrors.New(dErrors.CodeValidation, "status paid is set by recording a payment")
		}
	}
	if cmd.CurrentStep != 0 && !cmd.CurrentStep.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "current step must be between 1 and 6")
	}
	if cmd.Owners == nil {
		return nil, nil
	}
	return models.ParseOwners(cmd.Owners)
}

func (s *Service) validateUploads(cmd UpsertCommand) error {
	if cmd.NewPrimary != nil {
		if _, err := s.files.Validate(*cmd.NewPrimary); err != nil {
			return err
		}
	}
	for _, up := range cmd.NewSupplementary {
		if _, err := s.files.Validate(up); err != nil {
			return err
		}
	}
	return nil
}

// storeUploads writes new files concurrently. If any write fails the ones
// that succeeded are discarded.
func (s *Service) storeUploads(ctx context.Context, draftID id.DraftID, cmd UpsertCommand) (storedUploads, error) {
	var out storedUploads
	out.supplementary = make([]models.AttachmentRef, len(cmd.NewSupplementary))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)
	if cmd.NewPrimary != nil {
		up := *cmd.NewPrimary
		g.Go(func() error {
			ref, err := s.files.Store(gctx, draftID, models.SlotPrimary, up)
			if err != nil {
				return err
			}
			out.primary = &ref
			return nil
		})
	}
	for i, up := range cmd.NewSupplementary {
		g.Go(func() error {
			ref, err := s.files.Store(gctx, draftID, models.SlotSupplementary, up)
			if err != nil {
				return err
			}
			out.supplementary[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.files.Discard(ctx, out.all()...)
		return storedUploads{}, err
	}
	return out, nil
}

// apply runs inside the transaction: resolve insert vs update, build the
// candidate, check it, then write.
func (s *Service) apply(ctx context.Context, st store.Store, cmd UpsertCommand, draftID id.DraftID, owners []models.Owner, uploads storedUploads) (upsertResult, error) {
	now := requestcontext.Now(ctx)
	var res upsertResult

	d, err := st.FindForUpdate(ctx, draftID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		d = models.NewDraft(draftID, cmd.OwnerID, now)
		res.created = true
	case err != nil:
		return res, translate(err, "failed to load draft")
	case !d.IsOwnedBy(cmd.OwnerID):
		return res, dErrors.New(dErrors.CodeForbidden, "draft belongs to another user")
	case d.IsFinalized():
		return res, dErrors.New(dErrors.CodeConflict, "draft is finalized and can no longer be edited")
	case cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != d.Version:
		return res, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("draft was modified concurrently (version %d, expected %d)", d.Version, *cmd.ExpectedVersion))
	}

	d.Jurisdiction = strings.TrimSpace(cmd.Jurisdiction)
	d.JurisdictionFee = models.CoerceFee(cmd.JurisdictionFee)
	d.EntityName = strings.TrimSpace(cmd.EntityName)
	d.EntityCategory = strings.TrimSpace(cmd.EntityCategory)
	if cmd.Status != "" {
		d.Status = cmd.Status
	}
	if cmd.CurrentStep != 0 {
		d.CurrentStep = cmd.CurrentStep
	}
	if cmd.Owners != nil {
		d.Owners = owners
	}
	if cmd.Address != nil {
		addr := trimAddress(*cmd.Address)
		d.Address = &addr
	}
	dropped, err := reconcileDocuments(d, cmd.Documents)
	if err != nil {
		return res, err
	}
	if uploads.primary != nil {
		d.Documents.Primary = uploads.primary
	}
	d.Documents.Supplementary = append(d.Documents.Supplementary, uploads.supplementary...)
	d.UpdatedAt = now

	if err := models.CheckStepsBefore(d.CurrentStep, d.GateView()); err != nil {
		return res, err
	}

	if res.created {
		d.Version = 1
		err = st.Insert(ctx, d)
	} else {
		err = st.Update(ctx, d)
	}
	if err != nil {
		return res, translate(err, "failed to save draft")
	}
	if cmd.Owners != nil {
		if err := st.ReplaceOwners(ctx, d.ID, owners); err != nil {
			return res, translate(err, "failed to save owners")
		}
	}
	if cmd.Address != nil {
		if err := st.UpsertAddress(ctx, d.ID, *d.Address); err != nil {
			return res, translate(err, "failed to save address")
		}
	}
	for _, ref := range dropped {
		removed, err := s.files.Remove(ctx, st, d.ID, ref.ID)
		if err != nil {
			return res, translate(err, "failed to remove attachment")
		}
		res.discard = append(res.discard, removed)
	}
	for _, ref := range uploads.all() {
		superseded, err := s.files.Attach(ctx, st, ref)
		if err != nil {
			return res, err
		}
		if superseded != nil {
			res.discard = append(res.discard, *superseded)
		}
	}

	res.draft, err = st.FindByID(ctx, d.ID)
	if err != nil {
		return res, translate(err, "failed to reload draft")
	}
	return res, nil
}

// reconcileDocuments keeps only the attachments meta still references and
// returns the ones to drop. Referencing an unknown attachment is an error.
func reconcileDocuments(d *models.Draft, meta *DocumentMeta) ([]models.AttachmentRef, error) {
	if meta == nil {
		return nil, nil
	}
	keep := make(map[id.AttachmentID]bool)
	if meta.Primary != nil {
		ref, ok := d.Documents.Find(*meta.Primary)
		if !ok || ref.Slot != models.SlotPrimary {
			return nil, dErrors.New(dErrors.CodeValidation, "documents.primary references an unknown attachment")
		}
		keep[ref.ID] = true
	}
	for i, attachmentID := range meta.Supplementary {
		ref, ok := d.Documents.Find(attachmentID)
		if !ok || ref.Slot != models.SlotSupplementary {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("documents.supplementary[%d] references an unknown attachment", i))
		}
		keep[ref.ID] = true
	}

	var dropped []models.AttachmentRef
	var bundle models.IdentificationBundle
	for _, ref := range d.Documents.All() {
		if !keep[ref.ID] {
			dropped = append(dropped, ref)
			continue
		}
		if ref.Slot == models.SlotPrimary {
			r := ref
			bundle.Primary = &r
			continue
		}
		bundle.Supplementary = append(bundle.Supplementary, ref)
	}
	d.Documents = bundle
	return dropped, nil
}

func trimAddress(a models.Address) models.Address {
	return models.Address{
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		Region:     strings.TrimSpace(a.Region),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

func (s *Service) observeUpsert(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveUpsert(start)
	if err != nil {
		s.metrics.IncrementUpsertFailure(string(dErrors.CodeOf(err)))
	}
}
