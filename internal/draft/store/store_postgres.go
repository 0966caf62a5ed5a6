package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"bizreg/internal/draft/models"
	id "bizreg/pkg/domain"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Migrate creates the draft tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply draft schema: %w", err)
	}
	return nil
}

// PostgresStore persists drafts in PostgreSQL.
type PostgresStore struct {
	q tx.Querier
}

// NewPostgres constructs a PostgreSQL-backed draft store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// NewPostgresTx binds a store to an open transaction.
func NewPostgresTx(sqlTx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: sqlTx}
}

const draftColumns = `id, owner_id, jurisdiction, jurisdiction_fee, entity_name, entity_category,
	status, current_step, payment_status, version, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, draftID id.DraftID) (*models.Draft, error) {
	return s.load(ctx, draftID, `SELECT `+draftColumns+` FROM registration_drafts WHERE id = $1`)
}

func (s *PostgresStore) FindForUpdate(ctx context.Context, draftID id.DraftID) (*models.Draft, error) {
	return s.load(ctx, draftID, `SELECT `+draftColumns+` FROM registration_drafts WHERE id = $1 FOR UPDATE`)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.UserID) ([]*models.Draft, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM registration_drafts WHERE owner_id = $1 ORDER BY updated_at DESC`,
		uuid.UUID(owner))
	if err != nil {
		return nil, fmt.Errorf("list drafts by owner: %w", err)
	}
	defer rows.Close()

	var drafts []*models.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	for _, d := range drafts {
		if err := s.loadChildren(ctx, d); err != nil {
			return nil, err
		}
	}
	return drafts, nil
}

func (s *PostgresStore) Insert(ctx context.Context, d *models.Draft) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO registration_drafts (`+draftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(d.ID), uuid.UUID(d.OwnerID), d.Jurisdiction, d.JurisdictionFee, d.EntityName,
		d.EntityCategory, string(d.Status), int(d.CurrentStep), string(d.PaymentStatus),
		d.Version, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, d *models.Draft) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE registration_drafts SET
			jurisdiction = $3,
			jurisdiction_fee = $4,
			entity_name = $5,
			entity_category = $6,
			status = $7,
			current_step = $8,
			payment_status = $9,
			updated_at = $10,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		uuid.UUID(d.ID), d.Version, d.Jurisdiction, d.JurisdictionFee, d.EntityName,
		d.EntityCategory, string(d.Status), int(d.CurrentStep), string(d.PaymentStatus), d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM registration_drafts WHERE id = $1)`, uuid.UUID(d.ID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check draft: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	d.Version++
	return nil
}

// ReplaceOwners deletes the owner set and inserts the new one in a single
// batched statement.
func (s *PostgresStore) ReplaceOwners(ctx context.Context, draftID id.DraftID, owners []models.Owner) error {
	if err := s.DeleteOwners(ctx, draftID); err != nil {
		return err
	}
	if len(owners) == 0 {
		return nil
	}
	positions := make([]int64, len(owners))
	names := make([]string, len(owners))
	percentages := make([]sql.NullString, len(owners))
	for i, o := range owners {
		positions[i] = int64(i)
		names[i] = o.FullName
		if o.Percentage.Valid {
			percentages[i] = sql.NullString{String: o.Percentage.Decimal.String(), Valid: true}
		}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO draft_owners (draft_id, position, full_name, percentage)
		SELECT $1, t.position, t.full_name, t.percentage::numeric
		FROM unnest($2::int[], $3::text[], $4::text[]) AS t(position, full_name, percentage)`,
		uuid.UUID(draftID), pq.Array(positions), pq.Array(names), pq.Array(percentages),
	)
	if err != nil {
		return fmt.Errorf("insert owners: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertAddress(ctx context.Context, draftID id.DraftID, a models.Address) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO draft_addresses (draft_id, street, city, region, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (draft_id) DO UPDATE SET
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			region = EXCLUDED.region,
			postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country`,
		uuid.UUID(draftID), a.Street, a.City, a.Region, a.PostalCode, a.Country,
	)
	if err != nil {
		return fmt.Errorf("upsert address: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, ref models.AttachmentRef) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO draft_attachments
			(id, draft_id, slot, file_name, location, storage_key, kind, content_type, size_bytes, checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(ref.ID), uuid.UUID(ref.DraftID), string(ref.Slot), ref.FileName, ref.Location,
		ref.StorageKey, string(ref.Kind), ref.ContentType, ref.Size, ref.Checksum, ref.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePrimaryAttachment(ctx context.Context, draftID id.DraftID) (*models.AttachmentRef, error) {
	row := s.q.QueryRowContext(ctx, `
		DELETE FROM draft_attachments WHERE draft_id = $1 AND slot = 'primary'
		RETURNING `+attachmentColumns, uuid.UUID(draftID))
	ref, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete primary attachment: %w", err)
	}
	return &ref, nil
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, draftID id.DraftID, attachmentID id.AttachmentID) (models.AttachmentRef, error) {
	row := s.q.QueryRowContext(ctx, `
		DELETE FROM draft_attachments WHERE draft_id = $1 AND id = $2
		RETURNING `+attachmentColumns, uuid.UUID(draftID), uuid.UUID(attachmentID))
	ref, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttachmentRef{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AttachmentRef{}, fmt.Errorf("delete attachment: %w", err)
	}
	return ref, nil
}

func (s *PostgresStore) SavePaymentLink(ctx context.Context, link models.PaymentLink) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO draft_payment_links (draft_id, provider_reference, amount, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (draft_id) DO UPDATE SET
			provider_reference = EXCLUDED.provider_reference,
			amount = EXCLUDED.amount,
			created_at = EXCLUDED.created_at`,
		uuid.UUID(link.DraftID), link.ProviderReference, link.Amount, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save payment link: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteOwners(ctx context.Context, draftID id.DraftID) error {
	return s.exec(ctx, "delete owners", `DELETE FROM draft_owners WHERE draft_id = $1`, draftID)
}

func (s *PostgresStore) DeleteAddress(ctx context.Context, draftID id.DraftID) error {
	return s.exec(ctx, "delete address", `DELETE FROM draft_addresses WHERE draft_id = $1`, draftID)
}

func (s *PostgresStore) DeleteAttachments(ctx context.Context, draftID id.DraftID) error {
	return s.exec(ctx, "delete attachments", `DELETE FROM draft_attachments WHERE draft_id = $1`, draftID)
}

func (s *PostgresStore) DeletePaymentLink(ctx context.Context, draftID id.DraftID) error {
	return s.exec(ctx, "delete payment link", `DELETE FROM draft_payment_links WHERE draft_id = $1`, draftID)
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, draftID id.DraftID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM registration_drafts WHERE id = $1`, uuid.UUID(draftID))
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, draftID id.DraftID) error {
	if _, err := s.q.ExecContext(ctx, query, uuid.UUID(draftID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) load(ctx context.Context, draftID id.DraftID, query string) (*models.Draft, error) {
	d, err := scanDraft(s.q.QueryRowContext(ctx, query, uuid.UUID(draftID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	if err := s.loadChildren(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) loadChildren(ctx context.Context, d *models.Draft) error {
	if err := s.loadOwners(ctx, d); err != nil {
		return err
	}
	if err := s.loadAddress(ctx, d); err != nil {
		return err
	}
	if err := s.loadAttachments(ctx, d); err != nil {
		return err
	}
	return s.loadPayment(ctx, d)
}

func (s *PostgresStore) loadOwners(ctx context.Context, d *models.Draft) error {
	rows, err := s.q.QueryContext(ctx,
		`SELECT full_name, percentage FROM draft_owners WHERE draft_id = $1 ORDER BY position`,
		uuid.UUID(d.ID))
	if err != nil {
		return fmt.Errorf("load owners: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o models.Owner
		if err := rows.Scan(&o.FullName, &o.Percentage); err != nil {
			return fmt.Errorf("scan owner: %w", err)
		}
		d.Owners = append(d.Owners, o)
	}
	return rows.Err()
}

func (s *PostgresStore) loadAddress(ctx context.Context, d *models.Draft) error {
	var a models.Address
	err := s.q.QueryRowContext(ctx,
		`SELECT street, city, region, postal_code, country FROM draft_addresses WHERE draft_id = $1`,
		uuid.UUID(d.ID),
	).Scan(&a.Street, &a.City, &a.Region, &a.PostalCode, &a.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load address: %w", err)
	}
	d.Address = &a
	return nil
}

const attachmentColumns = `id, draft_id, slot, file_name, location, storage_key, kind, content_type, size_bytes, checksum, created_at`

func (s *PostgresStore) loadAttachments(ctx context.Context, d *models.Draft) error {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM draft_attachments WHERE draft_id = $1 ORDER BY created_at, id`,
		uuid.UUID(d.ID))
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		ref, err := scanAttachment(rows)
		if err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		if ref.Slot == models.SlotPrimary {
			d.Documents.Primary = &ref
			continue
		}
		d.Documents.Supplementary = append(d.Documents.Supplementary, ref)
	}
	return rows.Err()
}

func (s *PostgresStore) loadPayment(ctx context.Context, d *models.Draft) error {
	var link models.PaymentLink
	err := s.q.QueryRowContext(ctx,
		`SELECT provider_reference, amount, created_at FROM draft_payment_links WHERE draft_id = $1`,
		uuid.UUID(d.ID),
	).Scan(&link.ProviderReference, &link.Amount, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payment link: %w", err)
	}
	link.DraftID = d.ID
	d.Payment = &link
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(row scanner) (*models.Draft, error) {
	var (
		draftID, ownerID uuid.UUID
		fee              decimal.Decimal
		status, payment  string
		step             int
		d                models.Draft
		createdAt        time.Time
		updatedAt        time.Time
	)
	err := row.Scan(&draftID, &ownerID, &d.Jurisdiction, &fee, &d.EntityName, &d.EntityCategory,
		&status, &step, &payment, &d.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	d.ID = id.DraftID(draftID)
	d.OwnerID = id.UserID(ownerID)
	d.JurisdictionFee = fee
	d.Status = models.Status(status)
	d.CurrentStep = models.Step(step)
	d.PaymentStatus = models.PaymentStatus(payment)
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt
	return &d, nil
}

func scanAttachment(row scanner) (models.AttachmentRef, error) {
	var (
		ref        models.AttachmentRef
		refID, dID uuid.UUID
		slot, kind string
	)
	err := row.Scan(&refID, &dID, &slot, &ref.FileName, &ref.Location, &ref.StorageKey,
		&kind, &ref.ContentType, &ref.Size, &ref.Checksum, &ref.CreatedAt)
	if err != nil {
		return models.AttachmentRef{}, err
	}
	ref.ID = id.AttachmentID(refID)
	ref.DraftID = id.DraftID(dID)
	ref.Slot = models.Slot(slot)
	ref.Kind = models.Kind(kind)
	return ref, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
