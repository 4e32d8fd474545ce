package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
)

// SQLiteStore implements SQLite-based history storage.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_history_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS seal_records (
        id TEXT PRIMARY KEY,
        kind TEXT NOT NULL,
        file TEXT NOT NULL DEFAULT '',
        protected INTEGER NOT NULL DEFAULT 0,
        token_length INTEGER NOT NULL DEFAULT 0,
        fingerprint TEXT NOT NULL DEFAULT '',
        strategy TEXT NOT NULL DEFAULT '',
        outcome TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMP NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_seal_records_created ON seal_records(created_at);
    CREATE INDEX IF NOT EXISTS idx_seal_records_kind ON seal_records(kind);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Record inserts rec.
func (s *SQLiteStore) Record(rec models.SealRecord) error {
	rec = stamp(rec)

	s.logger.WithFields(map[string]interface{}{
		"seal_id": rec.ID,
		"kind":    rec.Kind,
	}).Debug("Recording history entry in SQLite")

	_, err := s.db.Exec(`
        INSERT INTO seal_records
            (id, kind, file, protected, token_length, fingerprint, strategy, outcome, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, rec.ID, string(rec.Kind), rec.File, rec.Protected, rec.TokenLength,
		rec.Fingerprint, rec.Strategy, string(rec.Outcome), rec.CreatedAt.UTC())

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// Get returns the entry with id.
func (s *SQLiteStore) Get(id string) (*models.SealRecord, error) {
	row := s.db.QueryRow(selectRecords+" WHERE id = ?", id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	return rec, nil
}

// List returns entries matching filter, newest first.
func (s *SQLiteStore) List(filter Filter) ([]models.SealRecord, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	query := selectRecords
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.SealRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// Prune removes entries older than before.
func (s *SQLiteStore) Prune(before time.Time) (int, error) {
	res, err := s.db.Exec("DELETE FROM seal_records WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if n > 0 {
		s.logger.WithField("removed", n).Info("Pruned history")
	}
	return int(n), nil
}

// Migrate copies all entries into target, oldest first.
func (s *SQLiteStore) Migrate(target Store) error {
	records, err := s.List(Filter{})
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	for i := len(records) - 1; i >= 0; i-- {
		if err := target.Record(records[i]); err != nil {
			return fmt.Errorf("migrate record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectRecords = `
    SELECT id, kind, file, protected, token_length, fingerprint, strategy, outcome, created_at
    FROM seal_records`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.SealRecord, error) {
	var (
		rec     models.SealRecord
		kind    string
		outcome string
	)

	err := row.Scan(&rec.ID, &kind, &rec.File, &rec.Protected, &rec.TokenLength,
		&rec.Fingerprint, &rec.Strategy, &outcome, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.Kind = models.RecordKind(kind)
	rec.Outcome = models.RecoveryState(outcome)
	return &rec, nil
}
