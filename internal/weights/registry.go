// Package weights keeps the versioned scoring weights: a mutable
// CURRENT pointer plus an immutable history with validity intervals.
package weights

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"storefront-api/internal/models"
	"storefront-api/internal/storage"
)

// Registry stores scoring weights in the KV store under the
// SCORING_WEIGHT partition.
type Registry struct {
	kv storage.KVStore
}

// NewRegistry wires the registry over the KV store.
func NewRegistry(kv storage.KVStore) *Registry {
	return &Registry{kv: kv}
}

func weightAttrs(w models.ScoringWeight) storage.Attrs {
	attrs := storage.Attrs{
		"version":    w.Version,
		"question":   w.Question,
		"order":      w.Order,
		"track":      w.Track,
		"created_at": w.CreatedAt,
	}
	if w.ExpiredAt != nil {
		attrs["expired_at"] = *w.ExpiredAt
	}
	return attrs
}

func weightFromAttrs(attrs storage.Attrs) models.ScoringWeight {
	w := models.ScoringWeight{
		Version:   storage.AttrInt(attrs, "version"),
		Question:  storage.AttrFloat(attrs, "question"),
		Order:     storage.AttrFloat(attrs, "order"),
		Track:     storage.AttrFloat(attrs, "track"),
		CreatedAt: storage.AttrTime(attrs, "created_at"),
	}
	if expired := storage.AttrTime(attrs, "expired_at"); !expired.IsZero() {
		w.ExpiredAt = &expired
	}
	return w
}

// Current returns the CURRENT weight, or the 1/1/1 default when none
// has ever been written.
func (r *Registry) Current(ctx context.Context) (models.ScoringWeight, error) {
	attrs, err := r.kv.Get(ctx, storage.PKScoringWeight, storage.SKCurrent)
	if errors.Is(err, storage.ErrNotFound) {
		return models.DefaultScoringWeight(), nil
	}
	if err != nil {
		return models.ScoringWeight{}, err
	}
	return weightFromAttrs(attrs), nil
}

// Set installs a new weight triple. Setting the same triple again is
// a no-op; otherwise the old CURRENT is expired at the new record's
// creation time, archived under its version, and superseded.
func (r *Registry) Set(ctx context.Context, question, order, track float64, now time.Time) (models.ScoringWeight, error) {
	incoming := models.ScoringWeight{
		Question:  question,
		Order:     order,
		Track:     track,
		CreatedAt: now.UTC(),
	}

	attrs, err := r.kv.Get(ctx, storage.PKScoringWeight, storage.SKCurrent)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		incoming.Version = 1
	case err != nil:
		return models.ScoringWeight{}, err
	default:
		current := weightFromAttrs(attrs)
		if current.SameValues(incoming) {
			return current, nil
		}
		expired := incoming.CreatedAt
		current.ExpiredAt = &expired
		if err := r.kv.Put(ctx, storage.PKScoringWeight, strconv.Itoa(current.Version), weightAttrs(current)); err != nil {
			return models.ScoringWeight{}, err
		}
		incoming.Version = current.Version + 1
	}

	if err := r.kv.Put(ctx, storage.PKScoringWeight, storage.SKCurrent, weightAttrs(incoming)); err != nil {
		return models.ScoringWeight{}, err
	}
	return incoming, nil
}

// Retrieve returns every weight whose validity window overlaps
// [from, to], CURRENT included, in version order.
func (r *Registry) Retrieve(ctx context.Context, from, to time.Time) ([]models.ScoringWeight, error) {
	records, err := r.kv.QueryByPK(ctx, storage.PKScoringWeight)
	if err != nil {
		return nil, err
	}
	var out []models.ScoringWeight
	for _, rec := range records {
		w := weightFromAttrs(rec.Attrs)
		if w.Version == 0 {
			continue
		}
		end := to
		if w.ExpiredAt != nil {
			end = *w.ExpiredAt
		}
		if w.CreatedAt.After(to) || end.Before(from) {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
