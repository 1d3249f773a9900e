// ABOUTME: SQLite implementation of the identity Repository using modernc.org/sqlite
// ABOUTME: Single-row identity table with automatic schema creation

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (or creates) the identity database at the
// given path. Parent directories are created if needed.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	logger := slog.Default().With("component", "identity")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening identity database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	r := &SQLiteRepository{
		db:     db,
		logger: logger,
	}

	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepository) createSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS device_identity (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		device_id TEXT NOT NULL,
		device_token TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("creating identity schema: %w", err)
	}
	return nil
}

// LoadOrCreate returns the stored identity, minting and persisting a
// new device id only when the table is empty. Read errors propagate.
func (r *SQLiteRepository) LoadOrCreate(ctx context.Context) (*DeviceIdentity, error) {
	var id DeviceIdentity
	var token sql.NullString

	err := r.db.QueryRowContext(ctx,
		"SELECT device_id, device_token FROM device_identity WHERE id = 1",
	).Scan(&id.DeviceID, &token)

	switch {
	case err == nil:
		id.DeviceToken = token.String
		return &id, nil
	case errors.Is(err, sql.ErrNoRows):
		// No identity yet; fall through to create one.
	default:
		return nil, fmt.Errorf("loading device identity: %w", err)
	}

	id = DeviceIdentity{DeviceID: "dev-" + uuid.New().String()}
	if err := r.Save(ctx, &id); err != nil {
		return nil, err
	}

	r.logger.Info("created device identity", "device_id", id.DeviceID)
	return &id, nil
}

// Save persists the identity, replacing any stored one.
func (r *SQLiteRepository) Save(ctx context.Context, id *DeviceIdentity) error {
	var token any
	if id.DeviceToken != "" {
		token = id.DeviceToken
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_identity (id, device_id, device_token) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET device_id = excluded.device_id, device_token = excluded.device_token`,
		id.DeviceID, token)
	if err != nil {
		return fmt.Errorf("saving device identity: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
