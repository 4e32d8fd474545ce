package state

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/TheMichaelB/echoseal/internal/config"
	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
)

// Store persists the seal history.
type Store interface {
	// Record appends a history entry. IDs are unique.
	Record(rec models.SealRecord) error

	// Get returns one entry.
	Get(id string) (*models.SealRecord, error)

	// List returns entries matching filter, newest first.
	List(filter Filter) ([]models.SealRecord, error)

	// Prune removes entries created before cutoff and returns the count.
	Prune(before time.Time) (int, error)

	// Migrate copies every entry into target.
	Migrate(target Store) error

	// Close releases resources.
	Close() error
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Kind  models.RecordKind
	Limit int
}

// Errors
var (
	ErrRecordNotFound = errors.New("history record not found")
	ErrDuplicateID    = errors.New("history record already exists")
	ErrStateCorrupt   = errors.New("history file is corrupt")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1

// Open creates the store selected by cfg. The returned Store is nil on
// error.
func Open(cfg config.StateConfig, logger *events.Logger) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := NewSQLiteStore(filepath.Join(cfg.Path, "history.db"), logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "json", "":
		store, err := NewJSONStore(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}

// stamp fills in a missing CreatedAt.
func stamp(rec models.SealRecord) models.SealRecord {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

// apply sorts records newest first and applies filter.
func apply(records []models.SealRecord, filter Filter) []models.SealRecord {
	out := make([]models.SealRecord, 0, len(records))
	for _, r := range records {
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}
