package audit

import (
	"time"

	id "bizreg/pkg/domain"
)

// Action names a draft lifecycle event.
type Action string

const (
	ActionDraftCreated      Action = "draft_created"
	ActionDraftUpdated      Action = "draft_updated"
	ActionDraftDeleted      Action = "draft_deleted"
	ActionDraftPaid         Action = "draft_paid"
	ActionAttachmentRemoved Action = "attachment_removed"
	ActionSessionRevoked    Action = "session_revoked"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Action       Action    `json:"action"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       id.UserID `json:"user_id"`
	DraftID      string    `json:"draft_id,omitempty"`
	AttachmentID string    `json:"attachment_id,omitempty"`
	Version      int64     `json:"version,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	// ClientFamily is the parsed browser family and version, never the raw
	// User-Agent string.
	ClientFamily string `json:"client_family,omitempty"`
	OS           string `json:"os,omitempty"`
}
