package key_value

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/redis/go-redis/v9"
)

type preferenceInternal struct {
	DiscordID string    `json:"discord_id"`
	Language  string    `json:"language"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PreferenceStorage struct {
	rdb *redis.Client
}

func NewPreferenceStorage(rdb *redis.Client) *PreferenceStorage {
	return &PreferenceStorage{
		rdb: rdb,
	}
}

func (p *PreferenceStorage) GetLanguagePreference(ctx context.Context, discordID string) (model.UserLanguagePreference, error) {
	key := getPreferenceKey(discordID)
	raw, err := p.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.UserLanguagePreference{}, model.ErrPreferenceNotFound
		}
		return model.UserLanguagePreference{}, fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	var pref preferenceInternal
	if err = json.Unmarshal([]byte(raw), &pref); err != nil {
		return model.UserLanguagePreference{}, fmt.Errorf("failed to unmarshal preference %s: %w", key, err)
	}
	return model.UserLanguagePreference{
		DiscordID: pref.DiscordID,
		Language:  pref.Language,
		UpdatedAt: pref.UpdatedAt,
	}, nil
}

func (p *PreferenceStorage) SetLanguagePreference(ctx context.Context, pref model.UserLanguagePreference) error {
	key := getPreferenceKey(pref.DiscordID)
	raw, err := json.Marshal(
		preferenceInternal{
			DiscordID: pref.DiscordID,
			Language:  pref.Language,
			UpdatedAt: pref.UpdatedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to marshal preference: %w", err)
	}
	if err = p.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

func getPreferenceKey(discordID string) string {
	return fmt.Sprintf("language_preference_%s", discordID)
}
