// Package attachment validates identification documents, writes their bytes to
// object storage and maintains the primary/supplementary slots of a draft.
package attachment

//go:generate mockgen -source=attachment.go -destination=mocks/mocks.go -package=mocks ObjectStore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"

	"bizreg/internal/draft/models"
	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/sentinel"
)

// DefaultMaxSize is the per-file upload limit.
const DefaultMaxSize int64 = 5 << 20

// accepted maps each accepted MIME type to the extensions allowed to carry it.
var accepted = map[string][]string{
	"image/jpeg":      {".jpg", ".jpeg"},
	"image/png":       {".png"},
	"application/pdf": {".pdf"},
}

// ObjectStore is the byte store the manager writes to.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Writer is the slice of the draft store that owns attachment references.
type Writer interface {
	InsertAttachment(ctx context.Context, ref models.AttachmentRef) error
	DeletePrimaryAttachment(ctx context.Context, draftID id.DraftID) (*models.AttachmentRef, error)
	DeleteAttachment(ctx context.Context, draftID id.DraftID, attachmentID id.AttachmentID) (models.AttachmentRef, error)
}

// Upload is a file received from the client, not yet stored.
type Upload struct {
	FileName string
	Data     []byte
}

type Manager struct {
	store   ObjectStore
	maxSize int64
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Manager)

func WithMaxSize(n int64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store ObjectStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		maxSize: DefaultMaxSize,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validate checks size and type without touching storage and returns the
// sniffed content type.
func (m *Manager) Validate(u Upload) (string, error) {
	if int64(len(u.Data)) > m.maxSize {
		m.reject("too_large")
		return "", dErrors.New(dErrors.CodeFileTooLarge,
			fmt.Sprintf("%s exceeds the %d byte limit", displayName(u.FileName), m.maxSize))
	}
	ext := strings.ToLower(path.Ext(u.FileName))
	detected := mimetype.Detect(u.Data).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	exts, ok := accepted[detected]
	if !ok || !contains(exts, ext) {
		m.reject("unsupported_type")
		return "", dErrors.New(dErrors.CodeUnsupportedFile,
			fmt.Sprintf("%s must be a JPEG, PNG or PDF file", displayName(u.FileName)))
	}
	return detected, nil
}

// Store validates u and writes it under a key unique to this attachment.
func (m *Manager) Store(ctx context.Context, draftID id.DraftID, slot models.Slot, u Upload) (models.AttachmentRef, error) {
	contentType, err := m.Validate(u)
	if err != nil {
		return models.AttachmentRef{}, err
	}
	attachmentID := id.NewAttachmentID()
	key := fmt.Sprintf("drafts/%s/%s/%s", draftID, attachmentID, path.Base(u.FileName))
	sum := blake2b.Sum256(u.Data)

	location, err := m.store.Put(ctx, key, contentType, u.Data)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to write attachment",
			"draft_id", draftID.String(),
			"slot", string(slot),
			"error", err,
		)
		return models.AttachmentRef{}, dErrors.Wrap(err, dErrors.CodeStorage, "failed to store "+displayName(u.FileName))
	}
	if m.metrics != nil {
		m.metrics.IncrementStored(slot)
	}
	return models.AttachmentRef{
		ID:          attachmentID,
		DraftID:     draftID,
		Slot:        slot,
		FileName:    u.FileName,
		Location:    location,
		StorageKey:  key,
		Kind:        models.KindOf(u.FileName),
		ContentType: contentType,
		Size:        int64(len(u.Data)),
		Checksum:    hex.EncodeToString(sum[:]),
		CreatedAt:   m.now(),
	}, nil
}

// Attach records ref in its slot. A primary replaces the existing primary,
// which is returned so its bytes can be discarded after commit.
func (m *Manager) Attach(ctx context.Context, w Writer, ref models.AttachmentRef) (*models.AttachmentRef, error) {
	if !ref.Slot.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown attachment slot %q", ref.Slot))
	}
	var superseded *models.AttachmentRef
	if ref.Slot == models.SlotPrimary {
		old, err := w.DeletePrimaryAttachment(ctx, ref.DraftID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to replace primary document")
		}
		superseded = old
	}
	if err := w.InsertAttachment(ctx, ref); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to record attachment")
	}
	return superseded, nil
}

// Remove deletes exactly one attachment reference. Missing references return
// sentinel.ErrNotFound.
func (m *Manager) Remove(ctx context.Context, w Writer, draftID id.DraftID, attachmentID id.AttachmentID) (models.AttachmentRef, error) {
	ref, err := w.DeleteAttachment(ctx, draftID, attachmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.AttachmentRef{}, sentinel.ErrNotFound
		}
		return models.AttachmentRef{}, dErrors.Wrap(err, dErrors.CodeStorage, "failed to remove attachment")
	}
	return ref, nil
}

// Discard deletes stored bytes best-effort. Failures are logged; a leftover
// blob is unreachable once its reference is gone.
func (m *Manager) Discard(ctx context.Context, refs ...models.AttachmentRef) {
	for _, ref := range refs {
		if ref.StorageKey == "" {
			continue
		}
		if err := m.store.Delete(ctx, ref.StorageKey); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			m.logger.WarnContext(ctx, "failed to discard attachment bytes",
				"draft_id", ref.DraftID.String(),
				"attachment_id", ref.ID.String(),
				"error", err,
			)
		}
	}
}

func (m *Manager) reject(reason string) {
	if m.metrics != nil {
		m.metrics.IncrementRejected(reason)
	}
}

func displayName(name string) string {
	if name == "" {
		return "file"
	}
	return path.Base(name)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
