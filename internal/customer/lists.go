package customer

import (
	"context"
	"errors"
	"sort"
	"time"

	"storefront-api/internal/storage"
)

// ListKind selects which per-customer product list a call targets.
type ListKind string

const (
	ListSeen ListKind = storage.PKSeen
	ListWish ListKind = storage.PKWish
)

// ProductList keeps the seen and wish lists as KV rows keyed by
// customer, one attribute per config SKU holding the add timestamp.
type ProductList struct {
	kv   storage.KVStore
	kind ListKind
}

// NewProductList wires a list of the given kind.
func NewProductList(kv storage.KVStore, kind ListKind) *ProductList {
	return &ProductList{kv: kv, kind: kind}
}

// Add records a product on the list. Re-adding refreshes the
// timestamp.
func (l *ProductList) Add(ctx context.Context, customerID, configSKU string, now time.Time) error {
	return l.kv.Update(ctx, string(l.kind), customerID, storage.AttrUpdate{
		Set: storage.Attrs{configSKU: now.UTC()},
	})
}

// Remove drops a product from the list. Removing an absent product is
// not an error.
func (l *ProductList) Remove(ctx context.Context, customerID, configSKU string) error {
	attrs, err := l.kv.Get(ctx, string(l.kind), customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := attrs[configSKU]; !ok {
		return nil
	}
	delete(attrs, configSKU)
	return l.kv.Put(ctx, string(l.kind), customerID, attrs)
}

// Entry is one list membership.
type Entry struct {
	ConfigSKU string    `json:"config_sku"`
	AddedAt   time.Time `json:"added_at"`
}

// List returns the customer's entries, most recent first.
func (l *ProductList) List(ctx context.Context, customerID string) ([]Entry, error) {
	attrs, err := l.kv.Get(ctx, string(l.kind), customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(attrs))
	for sku := range attrs {
		entries = append(entries, Entry{ConfigSKU: sku, AddedAt: storage.AttrTime(attrs, sku)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].AddedAt.After(entries[j].AddedAt)
		}
		return entries[i].ConfigSKU < entries[j].ConfigSKU
	})
	return entries, nil
}

// Contains reports list membership.
func (l *ProductList) Contains(ctx context.Context, customerID, configSKU string) (bool, error) {
	attrs, err := l.kv.Get(ctx, string(l.kind), customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, ok := attrs[configSKU]
	return ok, nil
}
