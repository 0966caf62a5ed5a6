package models

import (
	"time"

	id "bizreg/pkg/domain"
)

// IssuedToken is a freshly signed access token and the session it opens.
type IssuedToken struct {
	AccessToken string
	TokenType   string
	SessionID   id.SessionID
	ExpiresAt   time.Time
}
