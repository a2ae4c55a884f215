package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/moonshade/internal/content"
	"github.com/chrissnell/moonshade/internal/log"
)

type historyRecord struct {
	Seq       uint      `gorm:"primaryKey;autoIncrement;column:seq"`
	EntryID   string    `gorm:"column:entry_id;uniqueIndex;not null"`
	Date      string    `gorm:"column:date;uniqueIndex;not null"`
	MoonAge   float64   `gorm:"column:moon_age;not null"`
	PhaseName string    `gorm:"column:phase_name;not null;default:''"`
	ViewedAt  time.Time `gorm:"column:viewed_at;not null"`
}

func (historyRecord) TableName() string {
	return "moon_history"
}

type favoriteRecord struct {
	Seq  uint   `gorm:"primaryKey;autoIncrement;column:seq"`
	Date string `gorm:"column:date;uniqueIndex;not null"`
}

func (favoriteRecord) TableName() string {
	return "moon_favorites"
}

type settingRecord struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value;not null"`
}

func (settingRecord) TableName() string {
	return "moon_settings"
}

type contentRecord struct {
	Date      string       `gorm:"primaryKey;column:date"`
	Data      pgtype.JSONB `gorm:"type:jsonb;not null"`
	CreatedAt time.Time    `gorm:"column:created_at"`
}

func (contentRecord) TableName() string {
	return "moon_content_cache"
}

// PostgresStore is a Store backed by PostgreSQL through gorm
type PostgresStore struct {
	DB     *gorm.DB
	logger *zap.SugaredLogger
}

// NewPostgresStore connects to connectionString and migrates the schema
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to PostgreSQL...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to create a PostgreSQL connection: %w", err)
	}

	if err := db.AutoMigrate(&historyRecord{}, &favoriteRecord{}, &settingRecord{}, &contentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Info("PostgreSQL connection successful")

	return &PostgresStore{
		DB:     db,
		logger: log.Named("store"),
	}, nil
}

func (p *PostgresStore) AddHistory(ctx context.Context, e HistoryEntry) (HistoryEntry, error) {
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

	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date = ?", e.Date).Delete(&historyRecord{}).Error; err != nil {
			return fmt.Errorf("failed to remove previous history entry: %w", err)
		}
		rec := historyRecord{
			EntryID:   e.ID,
			Date:      e.Date,
			MoonAge:   e.MoonAge,
			PhaseName: e.PhaseName,
			ViewedAt:  e.ViewedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
		err := tx.Exec(
			"DELETE FROM moon_history WHERE seq NOT IN (SELECT seq FROM moon_history ORDER BY seq DESC LIMIT ?)",
			MaxHistory).Error
		if err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
		return nil
	})
	if err != nil {
		return HistoryEntry{}, err
	}
	return e, nil
}

func (p *PostgresStore) History(ctx context.Context) ([]HistoryEntry, error) {
	var recs []historyRecord
	if err := p.DB.WithContext(ctx).Order("seq DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, HistoryEntry{
			ID:        r.EntryID,
			Date:      r.Date,
			MoonAge:   r.MoonAge,
			PhaseName: r.PhaseName,
			ViewedAt:  r.ViewedAt.UTC(),
		})
	}
	return entries, nil
}

func (p *PostgresStore) AddFavorite(ctx context.Context, date string) error {
	if err := ValidDate(date); err != nil {
		return err
	}
	err := p.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "date"}}, DoNothing: true}).
		Create(&favoriteRecord{Date: date}).Error
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (p *PostgresStore) RemoveFavorite(ctx context.Context, date string) error {
	res := p.DB.WithContext(ctx).Where("date = ?", date).Delete(&favoriteRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Favorites(ctx context.Context) ([]string, error) {
	dates := []string{}
	if err := p.DB.WithContext(ctx).Model(&favoriteRecord{}).Order("seq").Pluck("date", &dates).Error; err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	return dates, nil
}

func (p *PostgresStore) IsFavorite(ctx context.Context, date string) (bool, error) {
	var n int64
	if err := p.DB.WithContext(ctx).Model(&favoriteRecord{}).Where("date = ?", date).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to query favorite: %w", err)
	}
	return n > 0, nil
}

func (p *PostgresStore) SaveSetting(ctx context.Context, key, value string) error {
	err := p.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&settingRecord{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Setting(ctx context.Context, key string) (string, error) {
	var rec settingRecord
	err := p.DB.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return rec.Value, nil
}

func (p *PostgresStore) SaveContent(ctx context.Context, date string, c content.Content) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	rec := contentRecord{Date: date, CreatedAt: time.Now().UTC()}
	if err := rec.Data.Set(data); err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}

	err = p.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "created_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to cache content for %s: %w", date, err)
	}
	return nil
}

func (p *PostgresStore) Content(ctx context.Context, date string) (content.Content, error) {
	var rec contentRecord
	err := p.DB.WithContext(ctx).Where("date = ?", date).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return content.Content{}, ErrNotFound
	}
	if err != nil {
		return content.Content{}, fmt.Errorf("failed to read cached content for %s: %w", date, err)
	}

	var c content.Content
	if err := json.Unmarshal(rec.Data.Bytes, &c); err != nil {
		return content.Content{}, fmt.Errorf("failed to unmarshal cached content: %w", err)
	}
	return c, nil
}

func (p *PostgresStore) Clear(ctx context.Context) error {
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&historyRecord{}, &favoriteRecord{}, &settingRecord{}, &contentRecord{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		p.logger.Info("cleared all stored data")
		return nil
	})
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*PostgresStore)(nil)
