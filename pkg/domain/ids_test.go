package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "bizreg/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseDraftID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAttachmentID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseDraftID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, DraftID(validUUID), id)
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"SQL injection attempt", "'; DROP TABLE registration_drafts;--"},
		{"Path traversal", "../../../etc/passwd"},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000"},
		{"Oversized input", strings.Repeat("a", 1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestDraftID_JSON(t *testing.T) {
	t.Run("empty string decodes to nil id", func(t *testing.T) {
		var payload struct {
			ID DraftID `json:"id"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"id":""}`), &payload))
		assert.True(t, payload.ID.IsNil())
	})

	t.Run("nil id encodes as empty string", func(t *testing.T) {
		out, err := json.Marshal(struct {
			ID DraftID `json:"id"`
		}{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":""}`, string(out))
	})

	t.Run("malformed id is rejected", func(t *testing.T) {
		var payload struct {
			ID DraftID `json:"id"`
		}
		err := json.Unmarshal([]byte(`{"id":"nope"}`), &payload)
		require.Error(t, err)
	})
}
