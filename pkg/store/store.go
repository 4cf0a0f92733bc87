// Package store persists relationship snapshots and the favorites set in a
// SQLite database. Snapshots are append-only: a scan inserts a new snapshot
// and never touches earlier ones.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no snapshot or profile exists for a query.
// Callers must treat it as "no data yet", not as a failure.
var ErrNotFound = errors.New("store: not found")

// Profile is a scanned account.
type Profile struct {
	ID            string
	Username      string
	FullName      string
	ProfilePicURL string
	CreatedAt     time.Time
}

// Snapshot is one immutable capture of an account's relationship lists.
type Snapshot struct {
	ID        string
	Username  string
	Timestamp time.Time
	Followers []string
	Following []string
}

// Store wraps the SQLite connection pool.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}

	// WAL allows the HTTP surface to read while a scan is being written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: enabling foreign keys: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL UNIQUE,
			full_name       TEXT NOT NULL DEFAULT '',
			profile_pic_url TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS scans (
			id         TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL REFERENCES profiles(id),
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scans_profile_created
			ON scans(profile_id, created_at);

		CREATE TABLE IF NOT EXISTS scan_entries (
			scan_id  TEXT NOT NULL REFERENCES scans(id),
			list     TEXT NOT NULL CHECK (list IN ('follower', 'following')),
			position INTEGER NOT NULL,
			username TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scan_entries_scan
			ON scan_entries(scan_id, list, position);

		CREATE TABLE IF NOT EXISTS favorites (
			username   TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// UpsertProfile creates the profile if unseen and updates its metadata
// otherwise. Returns the stored profile.
func (s *Store) UpsertProfile(ctx context.Context, username, fullName, picURL string) (*Profile, error) {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO profiles (id, username, full_name, profile_pic_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			full_name       = CASE WHEN excluded.full_name != '' THEN excluded.full_name ELSE profiles.full_name END,
			profile_pic_url = CASE WHEN excluded.profile_pic_url != '' THEN excluded.profile_pic_url ELSE profiles.profile_pic_url END
	`, xid.New().String(), username, fullName, picURL)
	if err != nil {
		return nil, fmt.Errorf("store: upserting profile: %w", err)
	}
	return s.Profile(ctx, username)
}

// Profile returns the stored profile for username, or ErrNotFound.
func (s *Store) Profile(ctx context.Context, username string) (*Profile, error) {
	var p Profile
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, username, full_name, profile_pic_url, created_at
		FROM profiles WHERE username = ?
	`, username).Scan(&p.ID, &p.Username, &p.FullName, &p.ProfilePicURL, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading profile: %w", err)
	}
	return &p, nil
}

// AddScan appends a new immutable snapshot for username, creating the
// profile on first sight. Existing snapshots are never modified. The profile
// and the scan commit together, so a failed insert leaves nothing behind.
func (s *Store) AddScan(ctx context.Context, username string, timestamp time.Time, followers, following []string) (*Snapshot, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: beginning scan transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (id, username) VALUES (?, ?)
		ON CONFLICT(username) DO NOTHING
	`, xid.New().String(), username); err != nil {
		return nil, fmt.Errorf("store: upserting profile: %w", err)
	}
	var profileID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM profiles WHERE username = ?`, username,
	).Scan(&profileID); err != nil {
		return nil, fmt.Errorf("store: reading profile id: %w", err)
	}

	scanID := xid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scans (id, profile_id, created_at) VALUES (?, ?, ?)`,
		scanID, profileID, timestamp.UTC(),
	); err != nil {
		return nil, fmt.Errorf("store: inserting scan: %w", err)
	}

	insert := func(list string, usernames []string) error {
		for i, u := range usernames {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO scan_entries (scan_id, list, position, username) VALUES (?, ?, ?, ?)`,
				scanID, list, i, u,
			); err != nil {
				return fmt.Errorf("store: inserting %s entry: %w", list, err)
			}
		}
		return nil
	}
	if err := insert("follower", followers); err != nil {
		return nil, err
	}
	if err := insert("following", following); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: committing scan: %w", err)
	}

	return &Snapshot{
		ID:        scanID,
		Username:  username,
		Timestamp: timestamp.UTC(),
		Followers: followers,
		Following: following,
	}, nil
}

// LatestScan returns the most recent snapshot for username, or, when
// username is empty, the most recent snapshot across all accounts.
// Returns ErrNotFound when no scan exists yet.
func (s *Store) LatestScan(ctx context.Context, username string) (*Snapshot, error) {
	query := `
		SELECT s.id, p.username, s.created_at
		FROM scans s JOIN profiles p ON p.id = s.profile_id
	`
	args := []interface{}{}
	if username != "" {
		query += ` WHERE p.username = ?`
		args = append(args, username)
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC LIMIT 1`

	var snap Snapshot
	err := s.conn.QueryRowContext(ctx, query, args...).Scan(&snap.ID, &snap.Username, &snap.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading latest scan: %w", err)
	}

	if err := s.loadEntries(ctx, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Scans returns all snapshots, newest first.
func (s *Store) Scans(ctx context.Context) ([]*Snapshot, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT s.id, p.username, s.created_at
		FROM scans s JOIN profiles p ON p.id = s.profile_id
		ORDER BY s.created_at DESC, s.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: listing scans: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Username, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scanning scan row: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating scans: %w", err)
	}

	for _, snap := range snaps {
		if err := s.loadEntries(ctx, snap); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

func (s *Store) loadEntries(ctx context.Context, snap *Snapshot) error {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT list, username FROM scan_entries
		WHERE scan_id = ?
		ORDER BY list, position
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("store: reading scan entries: %w", err)
	}
	defer rows.Close()

	snap.Followers = []string{}
	snap.Following = []string{}
	for rows.Next() {
		var list, username string
		if err := rows.Scan(&list, &username); err != nil {
			return fmt.Errorf("store: scanning entry row: %w", err)
		}
		if list == "follower" {
			snap.Followers = append(snap.Followers, username)
		} else {
			snap.Following = append(snap.Following, username)
		}
	}
	return rows.Err()
}

// Favorites returns the set of protected handles.
func (s *Store) Favorites(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT username FROM favorites ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("store: listing favorites: %w", err)
	}
	defer rows.Close()

	favorites := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("store: scanning favorite row: %w", err)
		}
		favorites = append(favorites, u)
	}
	return favorites, rows.Err()
}

// AddFavorite marks a handle as protected. Adding an existing favorite is a
// no-op.
func (s *Store) AddFavorite(ctx context.Context, username string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO favorites (username) VALUES (?)
		ON CONFLICT(username) DO NOTHING
	`, username)
	if err != nil {
		return fmt.Errorf("store: adding favorite: %w", err)
	}
	return nil
}

// RemoveFavorite unmarks a handle. Removing an absent favorite is a no-op.
func (s *Store) RemoveFavorite(ctx context.Context, username string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM favorites WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("store: removing favorite: %w", err)
	}
	return nil
}

// IsFavorite reports whether a handle is currently protected.
func (s *Store) IsFavorite(ctx context.Context, username string) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE username = ?`, username,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: checking favorite: %w", err)
	}
	return count > 0, nil
}
