package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/TheMichaelB/echoseal/internal/models"
)

// MemoryStore keeps history in memory. It backs tests and one-shot runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.SealRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends rec.
func (m *MemoryStore) Record(rec models.SealRecord) error {
	rec = stamp(rec)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ID == rec.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
	}
	m.records = append(m.records, rec)
	return nil
}

// Get returns the entry with id.
func (m *MemoryStore) Get(id string) (*models.SealRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, ErrRecordNotFound
}

// List returns entries matching filter, newest first.
func (m *MemoryStore) List(filter Filter) ([]models.SealRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return apply(m.records, filter), nil
}

// Prune removes entries older than before.
func (m *MemoryStore) Prune(before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]models.SealRecord, 0, len(m.records))
	for _, r := range m.records {
		if !r.CreatedAt.Before(before) {
			kept = append(kept, r)
		}
	}
	removed := len(m.records) - len(kept)
	m.records = kept
	return removed, nil
}

// Migrate copies all entries into target.
func (m *MemoryStore) Migrate(target Store) error {
	m.mu.RLock()
	records := append([]models.SealRecord(nil), m.records...)
	m.mu.RUnlock()

	for _, r := range records {
		if err := target.Record(r); err != nil {
			return fmt.Errorf("migrate record %s: %w", r.ID, err)
		}
	}
	return nil
}

// Close releases resources.
func (m *MemoryStore) Close() error {
	return nil
}
