// Package store persists what a moonshade user accumulates: recently viewed
// dates, favorites, settings such as the Gemini API key, and a cache of
// generated content. SQLite is the default backend; PostgreSQL is available
// through gorm for shared deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/moonshade/internal/content"
)

// MaxHistory is the number of history entries kept
const MaxHistory = 10

// SettingAPIKey is the settings key holding the Gemini API key
const SettingAPIKey = "gemini_api_key"

// DateLayout is the layout of every date string the store handles
const DateLayout = "2006-01-02"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
)

// HistoryEntry is one viewed date
type HistoryEntry struct {
	ID        string    `json:"id" msgpack:"id"`
	Date      string    `json:"date" msgpack:"date"`
	MoonAge   float64   `json:"moon_age" msgpack:"moon_age"`
	PhaseName string    `json:"phase_name" msgpack:"phase_name"`
	ViewedAt  time.Time `json:"viewed_at" msgpack:"viewed_at"`
}

// Store is implemented by every backend. A Store also satisfies
// content.Cache.
type Store interface {
	// AddHistory records a view. An existing entry for the same date is
	// replaced, and only the MaxHistory newest entries are kept.
	AddHistory(ctx context.Context, e HistoryEntry) (HistoryEntry, error)
	// History returns entries newest first
	History(ctx context.Context) ([]HistoryEntry, error)

	AddFavorite(ctx context.Context, date string) error
	RemoveFavorite(ctx context.Context, date string) error
	// Favorites returns dates in the order they were added
	Favorites(ctx context.Context) ([]string, error)
	IsFavorite(ctx context.Context, date string) (bool, error)

	SaveSetting(ctx context.Context, key, value string) error
	// Setting returns ErrNotFound for unknown keys
	Setting(ctx context.Context, key string) (string, error)

	// SaveContent caches generated content under a content.Request cache
	// key, which starts with the date
	SaveContent(ctx context.Context, key string, c content.Content) error
	// Content returns ErrNotFound when nothing is cached for key
	Content(ctx context.Context, key string) (content.Content, error)

	// Clear removes all history, favorites, settings and cached content
	Clear(ctx context.Context) error
	Close() error
}

// ValidDate checks a YYYY-MM-DD date string
func ValidDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

var _ content.Cache = Store(nil)
