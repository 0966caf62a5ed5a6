package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "bizreg/pkg/domain"
	dErrors "bizreg/pkg/domain-errors"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindImage, KindOf("passport.JPG"))
	assert.Equal(t, KindImage, KindOf("https://files.example.com/files/abc/scan.png?sig=1"))
	assert.Equal(t, KindPDF, KindOf("/files/abc/license.pdf"))
	assert.Equal(t, KindOther, KindOf("notes.txt"))
	assert.Equal(t, KindOther, KindOf(""))
}

func TestParseOwners(t *testing.T) {
	t.Run("empty percentage is null", func(t *testing.T) {
		owners, err := ParseOwners([]OwnerInput{{FullName: " Ada ", Percentage: ""}})
		require.NoError(t, err)
		require.Len(t, owners, 1)
		assert.Equal(t, "Ada", owners[0].FullName)
		assert.False(t, owners[0].Percentage.Valid)
	})

	t.Run("malformed percentage is a validation error", func(t *testing.T) {
		_, err := ParseOwners([]OwnerInput{{FullName: "Ada", Percentage: "60"}, {FullName: "Bob", Percentage: "forty"}})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "owners[1].percentage")
	})

	t.Run("round-trips through input form", func(t *testing.T) {
		owners, err := ParseOwners([]OwnerInput{{FullName: "Ada", Percentage: "62.5"}})
		require.NoError(t, err)
		assert.Equal(t, []OwnerInput{{FullName: "Ada", Percentage: "62.5"}}, OwnerInputs(owners))
	})
}

func TestDraft_Lifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := NewDraft(id.NewDraftID(), id.UserID(uuid.New()), now)

	assert.Equal(t, StatusDraft, d.Status)
	assert.Equal(t, StepJurisdiction, d.CurrentStep)
	assert.False(t, d.IsFinalized())

	d.PaymentStatus = PaymentPaid
	assert.False(t, d.IsFinalized(), "paid but still in draft status")
	d.Status = StatusPaid
	assert.True(t, d.IsFinalized())
}

func TestDraft_CloneDoesNotAlias(t *testing.T) {
	d := NewDraft(id.NewDraftID(), id.UserID(uuid.New()), time.Now())
	d.Owners = []Owner{{FullName: "Ada"}}
	d.Address = &Address{Street: "1 Main St"}
	d.Documents.Primary = &AttachmentRef{ID: id.NewAttachmentID(), FileName: "passport.png"}

	c := d.Clone()
	c.Owners[0].FullName = "Changed"
	c.Address.Street = "Elsewhere"
	c.Documents.Primary.FileName = "other.png"

	assert.Equal(t, "Ada", d.Owners[0].FullName)
	assert.Equal(t, "1 Main St", d.Address.Street)
	assert.Equal(t, "passport.png", d.Documents.Primary.FileName)
}

func TestDraft_GateView(t *testing.T) {
	d := NewDraft(id.NewDraftID(), id.UserID(uuid.New()), time.Now())
	assert.False(t, d.GateView().HasPrimary)

	d.Documents.Primary = &AttachmentRef{FileName: "passport.png"}
	assert.True(t, d.GateView().HasPrimary)
}
