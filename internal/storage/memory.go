package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

type MemoryStore struct {
	mu       sync.Mutex
	active   map[int64]models.Record
	archived []models.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[int64]models.Record)}
}

func (m *MemoryStore) Insert(r models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[r.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
	}
	m.active[r.ID] = r
	return nil
}

func (m *MemoryStore) UpdateField(id int64, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.active[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err := applyField(&r, field, value); err != nil {
		return err
	}
	m.active[id] = r
	return nil
}

func (m *MemoryStore) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.active[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(m.active, id)
	m.archived = append(m.archived, r)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range sortedRecords(m.active) {
		m.archived = append(m.archived, r)
	}
	m.active = make(map[int64]models.Record)
	return nil
}

func (m *MemoryStore) List() ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedRecords(m.active), nil
}

func (m *MemoryStore) ListArchived() ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Record(nil), m.archived...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortedRecords(byID map[int64]models.Record) []models.Record {
	out := make([]models.Record, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
