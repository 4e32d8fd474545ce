package state_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/config"
	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/state"
)

func TestJSONStore(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := state.NewJSONStore(t.TempDir(), logger)
	require.NoError(t, err)
	defer store.Close()

	testStoreOperations(t, store)
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := state.NewSQLiteStore(dbPath, logger)
	require.NoError(t, err)
	defer store.Close()

	testStoreOperations(t, store)
}

func TestMemoryStore(t *testing.T) {
	testStoreOperations(t, state.NewMemoryStore())
}

func record(id string, kind models.RecordKind, at time.Time) models.SealRecord {
	return models.SealRecord{
		ID:          id,
		Kind:        kind,
		Protected:   true,
		TokenLength: 140,
		Fingerprint: models.Fingerprint(id),
		CreatedAt:   at,
	}
}

func testStoreOperations(t *testing.T, store state.Store) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("get non-existent", func(t *testing.T) {
		_, err := store.Get("missing")
		assert.ErrorIs(t, err, state.ErrRecordNotFound)
	})

	t.Run("record and get", func(t *testing.T) {
		rec := record("seal-1", models.KindCreated, base)
		rec.File = "sonic_seal_20240501_120000_seal1.png"
		require.NoError(t, store.Record(rec))

		got, err := store.Get("seal-1")
		require.NoError(t, err)
		assert.Equal(t, rec.Kind, got.Kind)
		assert.Equal(t, rec.File, got.File)
		assert.Equal(t, rec.Fingerprint, got.Fingerprint)
		assert.True(t, got.Protected)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := store.Record(record("seal-1", models.KindCreated, base))
		assert.ErrorIs(t, err, state.ErrDuplicateID)
	})

	t.Run("list newest first with filter", func(t *testing.T) {
		rec := record("read-1", models.KindRecovered, base.Add(time.Minute))
		rec.Strategy = "binarized"
		rec.Outcome = models.StateDecrypted
		require.NoError(t, store.Record(rec))
		require.NoError(t, store.Record(record("seal-2", models.KindCreated, base.Add(2*time.Minute))))

		all, err := store.List(state.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"seal-2", "read-1", "seal-1"}, ids(all))

		recovered, err := store.List(state.Filter{Kind: models.KindRecovered})
		require.NoError(t, err)
		require.Len(t, recovered, 1)
		assert.Equal(t, models.StateDecrypted, recovered[0].Outcome)
		assert.Equal(t, "binarized", recovered[0].Strategy)

		limited, err := store.List(state.Filter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"seal-2", "read-1"}, ids(limited))
	})

	t.Run("prune", func(t *testing.T) {
		n, err := store.Prune(base.Add(90 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		left, err := store.List(state.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"seal-2"}, ids(left))
	})

	t.Run("missing time is stamped", func(t *testing.T) {
		before := time.Now().Add(-time.Second)
		require.NoError(t, store.Record(record("undated", models.KindRecovered, time.Time{})))

		got, err := store.Get("undated")
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.After(before))
	})
}

func ids(records []models.SealRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestJSONStoreCorruption(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewJSONStore(dir, events.Discard())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), []byte("{not json"), 0600))

	_, err = store.List(state.Filter{})
	assert.ErrorIs(t, err, state.ErrStateCorrupt)
}

func TestJSONStoreBackupRecovery(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewJSONStore(dir, events.Discard())
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Record(record("first", models.KindCreated, base)))
	require.NoError(t, store.Record(record("second", models.KindCreated, base.Add(time.Second))))

	// Tamper with the main file; the checksum no longer matches.
	path := filepath.Join(dir, "history.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"token_length": 140`), []byte(`"token_length": 141`), 1)
	require.NotEqual(t, data, tampered)
	require.NoError(t, os.WriteFile(path, tampered, 0600))

	// The backup holds the state before the second record.
	records, err := store.List(state.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, ids(records))
}

func TestMigration(t *testing.T) {
	source, err := state.NewJSONStore(t.TempDir(), events.Discard())
	require.NoError(t, err)

	target, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), events.Discard())
	require.NoError(t, err)
	defer target.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, source.Record(record(fmt.Sprintf("seal-%d", i), models.KindCreated, base.Add(time.Duration(i)*time.Hour))))
	}

	require.NoError(t, source.Migrate(target))

	records, err := target.List(state.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"seal-4", "seal-3", "seal-2", "seal-1", "seal-0"}, ids(records))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := state.Open(config.StateConfig{Backend: "sqlite", Path: dir}, events.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.FileExists(t, filepath.Join(dir, "history.db"))

	store, err = state.Open(config.StateConfig{Backend: "json", Path: dir}, events.Discard())
	require.NoError(t, err)
	_, isJSON := store.(*state.JSONStore)
	assert.True(t, isJSON)

	_, err = state.Open(config.StateConfig{Backend: "redis", Path: dir}, events.Discard())
	assert.Error(t, err)
}
