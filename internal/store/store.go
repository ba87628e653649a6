package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/emsham/tethru/internal/crm"
	"github.com/emsham/tethru/internal/oauth"
)

// Store wraps the embedded SQLite database holding the engine's read-write
// records: sync settings, the mapping ledger, the encrypted OAuth credential,
// and pending OAuth state nonces.
type Store struct {
	conn   *sql.DB
	path   string
	cipher *oauth.TokenCipher
}

// Open creates a database connection at the specified path, creating the
// file and schema when missing. Tokens are encrypted with cipher before
// hitting disk. The caller must Close the store when done.
func Open(path string, cipher *oauth.TokenCipher) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// The engine is single-writer per user; one connection avoids lock
	// contention inside the process.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, path: path, cipher: cipher}
	if err := s.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) init() error {
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// --- settings ---

// GetSettings returns the per-user sync settings, creating the row with
// defaults on first read.
func (s *Store) GetSettings(ctx context.Context) (crm.Settings, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT connected, sync_tasks, sync_birthdays, sync_important_dates, sync_follow_ups, last_sync_at
		FROM settings WHERE id = 1`)

	var set crm.Settings
	var lastSync sql.NullInt64
	err := row.Scan(&set.Connected, &set.SyncTasks, &set.SyncBirthdays, &set.SyncImportantDates, &set.SyncFollowUps, &lastSync)
	if err == sql.ErrNoRows {
		set = crm.DefaultSettings()
		if err := s.PutSettings(ctx, set); err != nil {
			return crm.Settings{}, err
		}
		return set, nil
	}
	if err != nil {
		return crm.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	if lastSync.Valid {
		t := time.UnixMilli(lastSync.Int64)
		set.LastSyncAt = &t
	}
	return set, nil
}

// PutSettings replaces the per-user sync settings.
func (s *Store) PutSettings(ctx context.Context, set crm.Settings) error {
	var lastSync sql.NullInt64
	if set.LastSyncAt != nil {
		lastSync = sql.NullInt64{Int64: set.LastSyncAt.UnixMilli(), Valid: true}
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO settings (id, connected, sync_tasks, sync_birthdays, sync_important_dates, sync_follow_ups, last_sync_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			connected = excluded.connected,
			sync_tasks = excluded.sync_tasks,
			sync_birthdays = excluded.sync_birthdays,
			sync_important_dates = excluded.sync_important_dates,
			sync_follow_ups = excluded.sync_follow_ups,
			last_sync_at = excluded.last_sync_at`,
		set.Connected, set.SyncTasks, set.SyncBirthdays, set.SyncImportantDates, set.SyncFollowUps, lastSync)
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// --- mapping ledger ---

// InsertMapping adds a new ledger row. The (source_type, source_id, sub_id)
// tuple is unique; inserting a duplicate fails.
func (s *Store) InsertMapping(ctx context.Context, m crm.Mapping) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO mappings (id, source_type, source_id, important_date_sub_id, external_event_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.SourceType), m.SourceID, m.ImportantDateSubID, m.ExternalEventID, m.CreatedAt.UnixMilli())
	if err != nil {
		return &LedgerError{Op: "insert", Err: err}
	}
	return nil
}

// FindMapping looks up the ledger row for a source tuple. Returns (nil, nil)
// when no row exists.
func (s *Store) FindMapping(ctx context.Context, sourceType crm.SourceType, sourceID, subID string) (*crm.Mapping, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, source_type, source_id, important_date_sub_id, external_event_id, created_at
		FROM mappings
		WHERE source_type = ? AND source_id = ? AND important_date_sub_id = ?`,
		string(sourceType), sourceID, subID)

	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &LedgerError{Op: "lookup", Err: err}
	}
	return m, nil
}

// FindMappingsByRoot returns every ledger row whose source id matches,
// across all source types. Used for cascading cleanup when a contact is
// deleted.
func (s *Store) FindMappingsByRoot(ctx context.Context, sourceID string) ([]crm.Mapping, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, source_type, source_id, important_date_sub_id, external_event_id, created_at
		FROM mappings WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, &LedgerError{Op: "lookup-root", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []crm.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, &LedgerError{Op: "lookup-root", Err: err}
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, &LedgerError{Op: "lookup-root", Err: err}
	}
	return out, nil
}

// AllMappings returns every ledger row. Used on disconnect to delete the
// engine's external footprint.
func (s *Store) AllMappings(ctx context.Context) ([]crm.Mapping, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, source_type, source_id, important_date_sub_id, external_event_id, created_at
		FROM mappings`)
	if err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []crm.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, &LedgerError{Op: "list", Err: err}
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	return out, nil
}

// DeleteMapping removes a ledger row by id.
func (s *Store) DeleteMapping(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM mappings WHERE id = ?`, id); err != nil {
		return &LedgerError{Op: "delete", Err: err}
	}
	return nil
}

// DeleteAllMappings wipes the ledger. Used on disconnect.
func (s *Store) DeleteAllMappings(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM mappings`); err != nil {
		return &LedgerError{Op: "delete-all", Err: err}
	}
	return nil
}

// CountMappings returns the number of ledger rows.
func (s *Store) CountMappings(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM mappings`).Scan(&n); err != nil {
		return 0, &LedgerError{Op: "count", Err: err}
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*crm.Mapping, error) {
	var m crm.Mapping
	var sourceType string
	var createdMs int64
	if err := row.Scan(&m.ID, &sourceType, &m.SourceID, &m.ImportantDateSubID, &m.ExternalEventID, &createdMs); err != nil {
		return nil, err
	}
	m.SourceType = crm.SourceType(sourceType)
	m.CreatedAt = time.UnixMilli(createdMs)
	return &m, nil
}

// --- oauth token ---

// SaveToken replaces the persisted credential, encrypting it at rest.
func (s *Store) SaveToken(ctx context.Context, tok *oauth.Token) error {
	access, err := s.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := s.cipher.Encrypt(tok.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO oauth_token (id, access_token, refresh_token, expiry_ms)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expiry_ms = excluded.expiry_ms`,
		access, refresh, tok.ExpiryMillis())
	if err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

// LoadToken returns the persisted credential, or (nil, nil) when absent.
func (s *Store) LoadToken(ctx context.Context) (*oauth.Token, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT access_token, refresh_token, expiry_ms FROM oauth_token WHERE id = 1`)

	var access, refresh string
	var expiryMs int64
	err := row.Scan(&access, &refresh, &expiryMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	if access, err = s.cipher.Decrypt(access); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if refresh, err = s.cipher.Decrypt(refresh); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return oauth.TokenFromMillis(access, refresh, expiryMs), nil
}

// DeleteToken removes the persisted credential.
func (s *Store) DeleteToken(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM oauth_token`); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// --- oauth state nonces ---

// SaveAuthState records a pending OAuth state nonce.
func (s *Store) SaveAuthState(ctx context.Context, nonce string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO oauth_states (nonce, created_at) VALUES (?, ?)
		ON CONFLICT(nonce) DO NOTHING`,
		nonce, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to persist auth state: %w", err)
	}
	return nil
}

// ConsumeAuthState removes the nonce and reports whether it was pending.
func (s *Store) ConsumeAuthState(ctx context.Context, nonce string) (bool, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM oauth_states WHERE nonce = ?`, nonce)
	if err != nil {
		return false, fmt.Errorf("failed to consume auth state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to consume auth state: %w", err)
	}
	return n > 0, nil
}
