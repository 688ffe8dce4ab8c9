// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides device trust and panic state persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/zero-gateway/internal/panicmode"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS devices (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			fingerprint TEXT NOT NULL UNIQUE,
			paired_at   TEXT NOT NULL,
			revoked_at  TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_devices_fingerprint ON devices(fingerprint);

		CREATE TABLE IF NOT EXISTS panic_state (
			id           INTEGER PRIMARY KEY CHECK (id = 1),
			active       INTEGER NOT NULL,
			activated_at TEXT,
			reason       TEXT
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// PairDevice records a newly paired device in the trust store.
func (s *SQLiteStore) PairDevice(ctx context.Context, device *Device) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (id, name, fingerprint, paired_at) VALUES (?, ?, ?, ?)`,
		device.ID, device.Name, device.Fingerprint, device.PairedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateDevice
		}
		return fmt.Errorf("pairing device: %w", err)
	}
	return nil
}

// GetDeviceByFingerprint looks up a device by its presented identity proof.
func (s *SQLiteStore) GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, fingerprint, paired_at, revoked_at FROM devices WHERE fingerprint = ?`,
		fingerprint)
	return scanDevice(row)
}

// ListDevices returns all paired devices, newest first.
func (s *SQLiteStore) ListDevices(ctx context.Context) ([]*Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, fingerprint, paired_at, revoked_at FROM devices ORDER BY paired_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// RevokeDevice marks a device as revoked. Revoked devices fail the
// connection-time identity check but stay listed for audit.
func (s *SQLiteStore) RevokeDevice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("revoking device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoking device: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// LoadPanicState implements panicmode.StateStore.
func (s *SQLiteStore) LoadPanicState() (panicmode.State, bool, error) {
	row := s.db.QueryRow(`SELECT active, activated_at, reason FROM panic_state WHERE id = 1`)

	var active int
	var activatedAt, reason sql.NullString
	err := row.Scan(&active, &activatedAt, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return panicmode.State{}, false, nil
	}
	if err != nil {
		return panicmode.State{}, false, fmt.Errorf("loading panic state: %w", err)
	}

	state := panicmode.State{Active: active != 0, Reason: reason.String}
	if activatedAt.Valid && activatedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, activatedAt.String)
		if err != nil {
			return panicmode.State{}, false, fmt.Errorf("loading panic state: %w", err)
		}
		state.ActivatedAt = t
	}
	return state, true, nil
}

// SavePanicState implements panicmode.StateStore.
func (s *SQLiteStore) SavePanicState(state panicmode.State) error {
	var activatedAt any
	if !state.ActivatedAt.IsZero() {
		activatedAt = state.ActivatedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.Exec(`
		INSERT INTO panic_state (id, active, activated_at, reason) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET active = excluded.active,
			activated_at = excluded.activated_at, reason = excluded.reason`,
		boolToInt(state.Active), activatedAt, state.Reason)
	if err != nil {
		return fmt.Errorf("saving panic state: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanDevice.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var pairedAt string
	var revokedAt sql.NullString

	err := row.Scan(&d.ID, &d.Name, &d.Fingerprint, &pairedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	if d.PairedAt, err = time.Parse(time.RFC3339Nano, pairedAt); err != nil {
		return nil, fmt.Errorf("parsing paired_at: %w", err)
	}
	if revokedAt.Valid && revokedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, revokedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing revoked_at: %w", err)
		}
		d.RevokedAt = &t
	}
	return &d, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
