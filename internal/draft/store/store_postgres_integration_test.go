//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"bizreg/internal/draft/models"
	"bizreg/internal/draft/store"
	id "bizreg/pkg/domain"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	owner    id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"draft_payment_links", "draft_attachments", "draft_addresses", "draft_owners", "registration_drafts")
	s.Require().NoError(err)
	owner, err := id.ParseUserID("0f5e8a52-7c3b-4d8e-a1f0-6b2c9d4e7a31")
	s.Require().NoError(err)
	s.owner = owner
}

func (s *PostgresStoreSuite) insertDraft() *models.Draft {
	d := models.NewDraft(id.NewDraftID(), s.owner, time.Now().UTC().Truncate(time.Microsecond))
	d.Version = 1
	s.Require().NoError(s.store.Insert(context.Background(), d))
	return d
}

func (s *PostgresStoreSuite) TestRoundTripAggregate() {
	ctx := context.Background()
	d := s.insertDraft()
	half := decimal.NewNullDecimal(decimal.NewFromInt(50))

	s.Require().NoError(s.store.ReplaceOwners(ctx, d.ID, []models.Owner{
		{FullName: "Ada", Percentage: half},
		{FullName: "Grace", Percentage: half},
		{FullName: "Pending"},
	}))
	s.Require().NoError(s.store.UpsertAddress(ctx, d.ID, models.Address{Street: "1 Main", City: "Cheyenne", Region: "WY", PostalCode: "82001"}))
	s.Require().NoError(s.store.InsertAttachment(ctx, models.AttachmentRef{
		ID: id.NewAttachmentID(), DraftID: d.ID, Slot: models.SlotPrimary, FileName: "passport.png",
		Location: "http://files.test/files/k", StorageKey: "k", Kind: models.KindImage,
		ContentType: "image/png", Size: 12, Checksum: "abc", CreatedAt: time.Now().UTC(),
	}))

	found, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.Require().Len(found.Owners, 3)
	s.Equal("Ada", found.Owners[0].FullName)
	s.True(found.Owners[0].Percentage.Decimal.Equal(decimal.NewFromInt(50)))
	s.False(found.Owners[2].Percentage.Valid)
	s.Require().NotNil(found.Address)
	s.Equal("Cheyenne", found.Address.City)
	s.Require().NotNil(found.Documents.Primary)
	s.Equal("passport.png", found.Documents.Primary.FileName)
}

func (s *PostgresStoreSuite) TestSecondPrimaryIsConflict() {
	ctx := context.Background()
	d := s.insertDraft()
	ref := models.AttachmentRef{
		DraftID: d.ID, Slot: models.SlotPrimary, FileName: "a.png", Location: "l", StorageKey: "k",
		Kind: models.KindImage, ContentType: "image/png", CreatedAt: time.Now().UTC(),
	}
	ref.ID = id.NewAttachmentID()
	s.Require().NoError(s.store.InsertAttachment(ctx, ref))
	ref.ID = id.NewAttachmentID()
	s.ErrorIs(s.store.InsertAttachment(ctx, ref), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestVersionRace() {
	ctx := context.Background()
	d := s.insertDraft()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := d.Clone()
			results <- s.store.Update(ctx, c)
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case err == sentinel.ErrConflict:
			conflicts++
		}
	}
	s.Equal(1, ok)
	s.Equal(1, conflicts)
}

func (s *PostgresStoreSuite) TestDeleteDraftBlockedByChildren() {
	ctx := context.Background()
	d := s.insertDraft()
	s.Require().NoError(s.store.UpsertAddress(ctx, d.ID, models.Address{Street: "1 Main"}))

	s.Error(s.store.DeleteDraft(ctx, d.ID), "foreign key keeps the parent")

	s.Require().NoError(s.store.DeleteAddress(ctx, d.ID))
	s.Require().NoError(s.store.DeleteDraft(ctx, d.ID))
	_, err := s.store.FindByID(ctx, d.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
