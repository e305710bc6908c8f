package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryKV is an in-process KVStore with the same observable
// semantics as RedisKV, used by tests and local runs.
type MemoryKV struct {
	mu   sync.RWMutex
	rows map[string]map[string]Attrs
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{rows: make(map[string]map[string]Attrs)}
}

// roundTrip copies a value through JSON so stored attributes have the
// same shapes the redis implementation yields (numbers as float64).
func roundTrip(v any) any {
	if t, ok := v.(time.Time); ok {
		v = t.UTC().Format(time.RFC3339Nano)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// Put writes the full record, replacing any previous attributes.
func (m *MemoryKV) Put(ctx context.Context, pk, sk string, attrs Attrs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[pk] == nil {
		m.rows[pk] = make(map[string]Attrs)
	}
	row := make(Attrs, len(attrs))
	for k, v := range attrs {
		row[k] = roundTrip(v)
	}
	m.rows[pk][sk] = row
	return nil
}

// Get returns a copy of the record attributes.
func (m *MemoryKV) Get(ctx context.Context, pk, sk string) (Attrs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[pk][sk]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(Attrs, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, nil
}

// Update applies sets and increments, creating the record when absent.
func (m *MemoryKV) Update(ctx context.Context, pk, sk string, upd AttrUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[pk] == nil {
		m.rows[pk] = make(map[string]Attrs)
	}
	row, ok := m.rows[pk][sk]
	if !ok {
		row = make(Attrs)
		m.rows[pk][sk] = row
	}
	for k, v := range upd.Set {
		row[k] = roundTrip(v)
	}
	for k, delta := range upd.Incr {
		current := int64(AttrInt(row, k))
		row[k] = float64(current + delta)
	}
	return nil
}

// QueryByPK returns all records of the partition, ordered by sort key.
func (m *MemoryKV) QueryByPK(ctx context.Context, pk string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sks := make([]string, 0, len(m.rows[pk]))
	for sk := range m.rows[pk] {
		sks = append(sks, sk)
	}
	sort.Strings(sks)
	records := make([]Record, 0, len(sks))
	for _, sk := range sks {
		row := m.rows[pk][sk]
		out := make(Attrs, len(row))
		for k, v := range row {
			out[k] = v
		}
		records = append(records, Record{PK: pk, SK: sk, Attrs: out})
	}
	return records, nil
}

// Delete removes the record. Removing an absent record is not an
// error.
func (m *MemoryKV) Delete(ctx context.Context, pk, sk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows[pk], sk)
	return nil
}
