package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
)

const historyFile = "history.json"

// historyDoc is the on-disk layout of the JSON store.
type historyDoc struct {
	SchemaVersion int                 `json:"schema_version"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Records       []models.SealRecord `json:"records"`
	Checksum      string              `json:"checksum,omitempty"`
}

// JSONStore keeps the history in one checksummed JSON file with a backup
// of the previous version.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	mu sync.RWMutex
}

// NewJSONStore creates a JSON-based history store.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_history_store"),
	}, nil
}

// Record appends rec.
func (s *JSONStore) Record(rec models.SealRecord) error {
	rec = stamp(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	for _, r := range records {
		if r.ID == rec.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"seal_id": rec.ID,
		"kind":    rec.Kind,
	}).Debug("Recording history entry")

	return s.save(append(records, rec))
}

// Get returns the entry with id.
func (s *JSONStore) Get(id string) (*models.SealRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].ID == id {
			rec := records[i]
			return &rec, nil
		}
	}
	return nil, ErrRecordNotFound
}

// List returns entries matching filter, newest first.
func (s *JSONStore) List(filter Filter) ([]models.SealRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	return apply(records, filter), nil
}

// Prune removes entries older than before.
func (s *JSONStore) Prune(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return 0, err
	}

	kept := records[:0]
	for _, r := range records {
		if !r.CreatedAt.Before(before) {
			kept = append(kept, r)
		}
	}

	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	s.logger.WithField("removed", removed).Info("Pruned history")
	return removed, s.save(kept)
}

// Migrate copies all entries into target.
func (s *JSONStore) Migrate(target Store) error {
	records, err := s.List(Filter{})
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	s.logger.WithField("count", len(records)).Info("Migrating history")

	for i := len(records) - 1; i >= 0; i-- {
		if err := target.Record(records[i]); err != nil {
			return fmt.Errorf("migrate record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) path() string {
	return filepath.Join(s.baseDir, historyFile)
}

// load reads the history, falling back to the backup when the main file
// is corrupt. A missing file is an empty history.
func (s *JSONStore) load() ([]models.SealRecord, error) {
	doc, err := readDoc(s.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err == nil {
		return doc.Records, nil
	}

	s.logger.WithError(err).Warn("History file unreadable, trying backup")

	backup, berr := readDoc(s.path() + ".backup")
	if berr != nil {
		return nil, ErrStateCorrupt
	}

	s.logger.Warn("Loaded history from backup due to corruption")
	return backup.Records, nil
}

func (s *JSONStore) save(records []models.SealRecord) error {
	doc := historyDoc{
		SchemaVersion: CurrentSchemaVersion,
		UpdatedAt:     time.Now().UTC(),
		Records:       records,
	}

	sum, err := checksum(doc)
	if err != nil {
		return err
	}
	doc.Checksum = sum

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	path := s.path()

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".backup"); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename history file: %w", err)
	}

	return nil
}

func readDoc(path string) (*historyDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc historyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	if doc.Checksum != "" {
		want := doc.Checksum
		doc.Checksum = ""
		got, err := checksum(doc)
		if err != nil {
			return nil, err
		}
		if got != want {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrStateCorrupt)
		}
		doc.Checksum = want
	}

	return &doc, nil
}

// checksum hashes doc with its Checksum field empty.
func checksum(doc historyDoc) (string, error) {
	doc.Checksum = ""
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal history for checksum: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
