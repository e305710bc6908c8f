package customer

import (
	"context"
	"errors"
	"sort"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
	"storefront-api/internal/storage"
)

// TierStore keeps the loyalty tiers. Exactly one neutral tier (zero
// credit back) must exist at all times; it cannot be deleted.
type TierStore struct {
	kv storage.KVStore
}

// NewTierStore wires the tier store over the KV backend.
func NewTierStore(kv storage.KVStore) *TierStore {
	return &TierStore{kv: kv}
}

// Save validates and writes a tier.
func (s *TierStore) Save(ctx context.Context, t models.Tier) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.kv.Put(ctx, storage.PKTier, t.ID, storage.Attrs{"tier": t})
}

// Get returns one tier.
func (s *TierStore) Get(ctx context.Context, id string) (models.Tier, error) {
	attrs, err := s.kv.Get(ctx, storage.PKTier, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Tier{}, apperr.NotFound("tier %s not found", id)
	}
	if err != nil {
		return models.Tier{}, err
	}
	var t models.Tier
	if err := storage.AttrDecode(attrs, "tier", &t); err != nil {
		return models.Tier{}, err
	}
	return t, nil
}

// List returns all tiers ordered by credit-back percentage.
func (s *TierStore) List(ctx context.Context) ([]models.Tier, error) {
	records, err := s.kv.QueryByPK(ctx, storage.PKTier)
	if err != nil {
		return nil, err
	}
	tiers := make([]models.Tier, 0, len(records))
	for _, rec := range records {
		var t models.Tier
		if err := storage.AttrDecode(rec.Attrs, "tier", &t); err != nil {
			continue
		}
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].CreditBackPercent < tiers[j].CreditBackPercent
	})
	return tiers, nil
}

// Delete removes a tier. The neutral tier is protected because every
// customer without an assignment falls back to it.
func (s *TierStore) Delete(ctx context.Context, id string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.IsNeutral() {
		return apperr.Logic("tier %s is the neutral tier and cannot be deleted", id)
	}
	return s.kv.Delete(ctx, storage.PKTier, id)
}

// TierFor resolves the customer's tier; unassigned or dangling refs
// fall back to the neutral tier when one exists.
func (s *TierStore) TierFor(ctx context.Context, c models.Customer) (models.Tier, error) {
	if c.TierID != "" {
		t, err := s.Get(ctx, c.TierID)
		if err == nil {
			return t, nil
		}
		if !apperr.IsKind(err, apperr.KindNotFound) {
			return models.Tier{}, err
		}
	}
	tiers, err := s.List(ctx)
	if err != nil {
		return models.Tier{}, err
	}
	for _, t := range tiers {
		if t.IsNeutral() {
			return t, nil
		}
	}
	return models.Tier{}, apperr.Logic("no neutral tier configured")
}
