package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/moonshade/internal/content"
	"github.com/chrissnell/moonshade/internal/log"
	"github.com/chrissnell/moonshade/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the versioned SQLite schema
func Migrations() fs.FS {
	sub, _ := fs.Sub(migrationFiles, "migrations")
	return sub
}

// NewMigrator returns a schema migrator for a database opened with OpenSQLite
func NewMigrator(db *sql.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(Migrations(), ""), log.Named("migrate"))
}

// SQLiteStore is a Store backed by a local SQLite file
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens the database file at dbPath without touching the schema
func OpenSQLite(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// one writer at a time keeps SQLITE_BUSY out of the picture
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}

// NewSQLiteStore opens or creates the database at dbPath and brings the
// schema up to date.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}
	if err := NewMigrator(db).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) AddHistory(ctx context.Context, e HistoryEntry) (HistoryEntry, error) {
	if err := ValidDate(e.Date); err != nil {
		return HistoryEntry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ViewedAt.IsZero() {
		e.ViewedAt = time.Now()
	}
	e.ViewedAt = e.ViewedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE date = ?`, e.Date); err != nil {
		return HistoryEntry{}, fmt.Errorf("failed to remove previous history entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (id, date, moon_age, phase_name, viewed_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Date, e.MoonAge, e.PhaseName, e.ViewedAt.UnixNano())
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("failed to insert history entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM history WHERE seq NOT IN (SELECT seq FROM history ORDER BY seq DESC LIMIT ?)`,
		MaxHistory)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("failed to trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return HistoryEntry{}, fmt.Errorf("failed to commit history entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) History(ctx context.Context) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, moon_age, phase_name, viewed_at FROM history ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var viewedAt int64
		if err := rows.Scan(&e.ID, &e.Date, &e.MoonAge, &e.PhaseName, &viewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.ViewedAt = time.Unix(0, viewedAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) AddFavorite(ctx context.Context, date string) error {
	if err := ValidDate(date); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO favorites (date) VALUES (?)`, date); err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveFavorite(ctx context.Context, date string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE date = ?`, date)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Favorites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date FROM favorites ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	dates := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan favorite row: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (s *SQLiteStore) IsFavorite(ctx context.Context, date string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE date = ?`, date).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query favorite: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) SaveSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SaveContent(ctx context.Context, date string, c content.Content) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO content_cache (date, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		date, string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to cache content for %s: %w", date, err)
	}
	return nil
}

func (s *SQLiteStore) Content(ctx context.Context, date string) (content.Content, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM content_cache WHERE date = ?`, date).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Content{}, ErrNotFound
	}
	if err != nil {
		return content.Content{}, fmt.Errorf("failed to read cached content for %s: %w", date, err)
	}

	var c content.Content
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return content.Content{}, fmt.Errorf("failed to unmarshal cached content: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"history", "favorites", "settings", "content_cache"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
