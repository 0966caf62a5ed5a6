// Package domain holds typed identifiers shared across modules. Typed IDs keep
// a draft id from being passed where an owner id is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "bizreg/pkg/domain-errors"
)

type (
	UserID       uuid.UUID
	SessionID    uuid.UUID
	DraftID      uuid.UUID
	AttachmentID uuid.UUID
)

// maxIDLength bounds input before it reaches uuid.Parse.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is malformed")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is malformed")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be the nil UUID")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session id", s)
	return SessionID(u), err
}

func ParseDraftID(s string) (DraftID, error) {
	u, err := parseUUID("draft id", s)
	return DraftID(u), err
}

func ParseAttachmentID(s string) (AttachmentID, error) {
	u, err := parseUUID("attachment id", s)
	return AttachmentID(u), err
}

func NewDraftID() DraftID           { return DraftID(uuid.New()) }
func NewAttachmentID() AttachmentID { return AttachmentID(uuid.New()) }
func NewSessionID() SessionID       { return SessionID(uuid.New()) }

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id SessionID) String() string    { return uuid.UUID(id).String() }
func (id DraftID) String() string      { return uuid.UUID(id).String() }
func (id AttachmentID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DraftID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AttachmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id DraftID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *DraftID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = DraftID{}
		return nil
	}
	parsed, err := ParseDraftID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id AttachmentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *AttachmentID) UnmarshalText(b []byte) error {
	parsed, err := ParseAttachmentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id UserID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText accepts the nil UUID so events recorded before login decode.
func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is malformed")
	}
	*id = UserID(parsed)
	return nil
}
