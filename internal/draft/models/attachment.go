package models

import (
	"net/url"
	"path"
	"strings"
	"time"

	id "bizreg/pkg/domain"
)

// Slot is a named attachment position within the identification bundle.
type Slot string

const (
	SlotPrimary       Slot = "primary"
	SlotSupplementary Slot = "supplementary"
)

func (s Slot) IsValid() bool {
	return s == SlotPrimary || s == SlotSupplementary
}

// Kind is the coarse content class used by presentation layers.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindOther Kind = "other"
)

// AttachmentRef references a stored file. The bytes live in object storage;
// only the reference is mutable here.
type AttachmentRef struct {
	ID          id.AttachmentID
	DraftID     id.DraftID
	Slot        Slot
	FileName    string
	Location    string
	StorageKey  string
	Kind        Kind
	ContentType string
	Size        int64
	Checksum    string
	CreatedAt   time.Time
}

// KindOf infers the content class from a file name or URL.
func KindOf(nameOrURL string) Kind {
	p := nameOrURL
	if u, err := url.Parse(nameOrURL); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return KindImage
	case ".pdf":
		return KindPDF
	default:
		return KindOther
	}
}
