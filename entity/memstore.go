package entity

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. It backs tests and embedding callers
// that already hold their entities in memory.
type MemStore struct {
	mu      sync.RWMutex
	records map[Ref]map[string]any
	links   map[Ref][]Ref
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[Ref]map[string]any),
		links:   make(map[Ref][]Ref),
	}
}

// Put inserts or replaces a record.
func (m *MemStore) Put(ref Ref, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[ref] = cloneFields(fields)
}

// Set changes one field on an existing record; no-op if absent.
func (m *MemStore) Set(ref Ref, field string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[ref]; ok {
		rec[field] = value
	}
}

// Delete removes a record. Links pointing at it are kept, so they dangle.
func (m *MemStore) Delete(ref Ref) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, ref)
}

// Link declares a foreign-key-style reference from -> to.
func (m *MemStore) Link(from, to Ref) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.links[from] {
		if existing == to {
			return
		}
	}
	m.links[from] = append(m.links[from], to)
}

// Get returns the record for ref.
func (m *MemStore) Get(ctx context.Context, ref Ref) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.records[ref]
	if !ok {
		return nil, NotFound(ref)
	}
	return &Record{Ref: ref, Fields: cloneFields(fields)}, nil
}

// Query returns records of entityType matching p, ordered by id.
func (m *MemStore) Query(ctx context.Context, entityType string, p Predicate) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for ref, fields := range m.records {
		if ref.Type != entityType {
			continue
		}
		rec := &Record{Ref: ref, Fields: cloneFields(fields)}
		if p.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ForeignKeysOf returns the references declared on ref.
func (m *MemStore) ForeignKeysOf(ctx context.Context, ref Ref) ([]Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.records[ref]; !ok {
		return nil, NotFound(ref)
	}
	out := make([]Ref, len(m.links[ref]))
	copy(out, m.links[ref])
	return out, nil
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
