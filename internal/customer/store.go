// Package customer keeps account records, loyalty tiers, seen/wish
// lists and static pages in the KV store.
package customer

import (
	"context"
	"errors"
	"strings"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
	"storefront-api/internal/storage"
)

// Store provides customer-record access.
type Store struct {
	kv storage.KVStore
}

// NewStore wires the store over the KV backend.
func NewStore(kv storage.KVStore) *Store {
	return &Store{kv: kv}
}

// Save validates and writes the customer profile. Address hashes are
// recomputed so they always reflect the address content.
func (s *Store) Save(ctx context.Context, c models.Customer) error {
	for i := range c.Addresses {
		c.Addresses[i].Hash = c.Addresses[i].ComputeHash()
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return s.kv.Update(ctx, storage.PKCustomer, c.ID, storage.AttrUpdate{
		Set: storage.Attrs{"profile": c},
	})
}

// Get returns the customer profile.
func (s *Store) Get(ctx context.Context, id string) (models.Customer, error) {
	attrs, err := s.kv.Get(ctx, storage.PKCustomer, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Customer{}, apperr.NotFound("customer %s not found", id)
	}
	if err != nil {
		return models.Customer{}, err
	}
	var c models.Customer
	if err := storage.AttrDecode(attrs, "profile", &c); err != nil {
		return models.Customer{}, err
	}
	return c, nil
}

// FindByEmail scans the customer partition for an email match.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.Customer, error) {
	records, err := s.kv.QueryByPK(ctx, storage.PKCustomer)
	if err != nil {
		return models.Customer{}, err
	}
	for _, rec := range records {
		var c models.Customer
		if err := storage.AttrDecode(rec.Attrs, "profile", &c); err != nil {
			continue
		}
		if strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return models.Customer{}, apperr.NotFound("customer with email %s not found", email)
}

// SetPersonalizeInProgress flips the scoring-run flag on the customer
// row.
func (s *Store) SetPersonalizeInProgress(ctx context.Context, id string, inProgress bool) error {
	return s.kv.Update(ctx, storage.PKCustomer, id, storage.AttrUpdate{
		Set: storage.Attrs{"personalize_in_progress": inProgress},
	})
}

// PersonalizeInProgress reads the scoring-run flag; absent customers
// report false.
func (s *Store) PersonalizeInProgress(ctx context.Context, id string) (bool, error) {
	attrs, err := s.kv.Get(ctx, storage.PKCustomer, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return storage.AttrBool(attrs, "personalize_in_progress"), nil
}

// MarkClickedNow flags recent browsing activity so the scheduler can
// requeue a scoring run.
func (s *Store) MarkClickedNow(ctx context.Context, id string) error {
	return s.kv.Update(ctx, storage.PKCustomer, id, storage.AttrUpdate{
		Set: storage.Attrs{"clicked_now": true},
	})
}

// ClearClickedNow resets the activity flag.
func (s *Store) ClearClickedNow(ctx context.Context, id string) error {
	return s.kv.Update(ctx, storage.PKCustomer, id, storage.AttrUpdate{
		Set: storage.Attrs{"clicked_now": false},
	})
}

// ClickedNow reads the activity flag.
func (s *Store) ClickedNow(ctx context.Context, id string) (bool, error) {
	attrs, err := s.kv.Get(ctx, storage.PKCustomer, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return storage.AttrBool(attrs, "clicked_now"), nil
}

// SaveAnswers replaces the customer's declared preferences.
func (s *Store) SaveAnswers(ctx context.Context, id string, answers []models.Answer) error {
	return s.kv.Update(ctx, storage.PKCustomer, id, storage.AttrUpdate{
		Set: storage.Attrs{"answers": answers},
	})
}

// Answers returns the customer's declared preferences; absent rows
// yield none.
func (s *Store) Answers(ctx context.Context, id string) ([]models.Answer, error) {
	attrs, err := s.kv.Get(ctx, storage.PKCustomer, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var answers []models.Answer
	if err := storage.AttrDecode(attrs, "answers", &answers); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return answers, nil
}

// AddAddress appends a delivery address, enforcing the billing and
// shipping-default invariants.
func (s *Store) AddAddress(ctx context.Context, id string, addr models.DeliveryAddress) (models.Customer, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return models.Customer{}, err
	}
	addr.Hash = addr.ComputeHash()
	for _, existing := range c.Addresses {
		if existing.Hash == addr.Hash {
			return c, nil
		}
	}
	if addr.Billing {
		for i := range c.Addresses {
			c.Addresses[i].Billing = false
		}
	}
	if addr.ShippingDefault {
		for i := range c.Addresses {
			c.Addresses[i].ShippingDefault = false
		}
	}
	c.Addresses = append(c.Addresses, addr)
	if err := s.Save(ctx, c); err != nil {
		return models.Customer{}, err
	}
	return c, nil
}

// RemoveAddress drops the address with the given hash.
func (s *Store) RemoveAddress(ctx context.Context, id, hash string) (models.Customer, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return models.Customer{}, err
	}
	kept := c.Addresses[:0]
	removed := false
	for _, a := range c.Addresses {
		if a.Hash == hash {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	if !removed {
		return models.Customer{}, apperr.NotFound("address %s not found", hash)
	}
	c.Addresses = kept
	if err := s.Save(ctx, c); err != nil {
		return models.Customer{}, err
	}
	return c, nil
}
