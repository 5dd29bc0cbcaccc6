package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type userLanguagePreference struct {
	DiscordID string    `gorm:"column:discord_id;primaryKey"`
	Language  string    `gorm:"column:language;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (userLanguagePreference) TableName() string {
	return "user_language_preferences"
}

type PreferenceStorage struct {
	db *gorm.DB
}

// Open opens (and migrates) the sqlite database holding user preferences.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(
		sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference db %s: %w", path, err)
	}
	return db, nil
}

func NewPreferenceStorage(db *gorm.DB) (*PreferenceStorage, error) {
	if err := db.AutoMigrate(&userLanguagePreference{}); err != nil {
		return nil, fmt.Errorf("failed to migrate preferences: %w", err)
	}
	return &PreferenceStorage{db: db}, nil
}

func (p *PreferenceStorage) GetLanguagePreference(ctx context.Context, discordID string) (model.UserLanguagePreference, error) {
	var row userLanguagePreference
	err := p.db.WithContext(ctx).Where("discord_id = ?", discordID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.UserLanguagePreference{}, model.ErrPreferenceNotFound
		}
		return model.UserLanguagePreference{}, fmt.Errorf("failed to get preference of %s: %w", discordID, err)
	}
	return model.UserLanguagePreference{
		DiscordID: row.DiscordID,
		Language:  row.Language,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (p *PreferenceStorage) SetLanguagePreference(ctx context.Context, pref model.UserLanguagePreference) error {
	row := userLanguagePreference{
		DiscordID: pref.DiscordID,
		Language:  pref.Language,
		UpdatedAt: pref.UpdatedAt,
	}
	err := p.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "discord_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"language", "updated_at"}),
		},
	).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save preference of %s: %w", pref.DiscordID, err)
	}
	return nil
}
