package customer

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
	"storefront-api/internal/storage"
)

func seedTiers(t *testing.T, s *TierStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, models.Tier{
		ID: "neutral", Name: "Standard", CreditBackPercent: 0,
	}))
	require.NoError(t, s.Save(ctx, models.Tier{
		ID: "gold", Name: "Gold", CreditBackPercent: 10,
		SpentMin: decimal.NewFromInt(1000), SpentMax: decimal.NewFromInt(5000),
	}))
}

func TestTierSaveGetList(t *testing.T) {
	s := NewTierStore(storage.NewMemoryKV())
	seedTiers(t, s)
	ctx := context.Background()

	got, err := s.Get(ctx, "gold")
	require.NoError(t, err)
	require.Equal(t, 10, got.CreditBackPercent)

	tiers, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	// Ordered by credit back.
	require.Equal(t, "neutral", tiers[0].ID)
	require.Equal(t, "gold", tiers[1].ID)
}

func TestTierSaveValidates(t *testing.T) {
	s := NewTierStore(storage.NewMemoryKV())

	err := s.Save(context.Background(), models.Tier{ID: "bad", Name: "Bad", CreditBackPercent: 120})
	require.True(t, apperr.IsKind(err, apperr.KindIncorrectInput))
}

func TestNeutralTierCannotBeDeleted(t *testing.T) {
	s := NewTierStore(storage.NewMemoryKV())
	seedTiers(t, s)
	ctx := context.Background()

	err := s.Delete(ctx, "neutral")
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))

	require.NoError(t, s.Delete(ctx, "gold"))
	_, err = s.Get(ctx, "gold")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestTierForFallsBackToNeutral(t *testing.T) {
	s := NewTierStore(storage.NewMemoryKV())
	seedTiers(t, s)
	ctx := context.Background()

	// Assigned tier resolves directly.
	tier, err := s.TierFor(ctx, models.Customer{ID: "c1", TierID: "gold"})
	require.NoError(t, err)
	require.Equal(t, "gold", tier.ID)

	// Unassigned falls back to the neutral tier.
	tier, err = s.TierFor(ctx, models.Customer{ID: "c2"})
	require.NoError(t, err)
	require.Equal(t, "neutral", tier.ID)

	// A dangling reference falls back too.
	tier, err = s.TierFor(ctx, models.Customer{ID: "c3", TierID: "deleted"})
	require.NoError(t, err)
	require.Equal(t, "neutral", tier.ID)
}

func TestTierForWithoutNeutralTier(t *testing.T) {
	s := NewTierStore(storage.NewMemoryKV())

	_, err := s.TierFor(context.Background(), models.Customer{ID: "c1"})
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))
}
