package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/local"
)

type PreferenceStorage interface {
	GetLanguagePreference(ctx context.Context, discordID string) (model.UserLanguagePreference, error)
	SetLanguagePreference(ctx context.Context, pref model.UserLanguagePreference) error
}

type PreferenceUsecaseDeps struct {
	Storage PreferenceStorage
}

type PreferenceUsecase struct {
	PreferenceUsecaseDeps
	now func() time.Time
}

func NewPreferenceUsecase(deps PreferenceUsecaseDeps) *PreferenceUsecase {
	return &PreferenceUsecase{
		PreferenceUsecaseDeps: deps,
		now:                   time.Now,
	}
}

// Get reports the stored language. Storage failures are logged and treated
// as "no preference".
func (p *PreferenceUsecase) Get(ctx context.Context, discordID string) (string, bool) {
	pref, err := p.Storage.GetLanguagePreference(ctx, discordID)
	if err != nil {
		if !errors.Is(err, model.ErrPreferenceNotFound) {
			log.Printf("[preferences] failed to get language for %s: %v", discordID, err)
		}
		return "", false
	}
	return pref.Language, pref.Language != ""
}

func (p *PreferenceUsecase) Set(ctx context.Context, discordID, language string) bool {
	err := p.Storage.SetLanguagePreference(
		ctx, model.UserLanguagePreference{
			DiscordID: discordID,
			Language:  language,
			UpdatedAt: p.now().UTC(),
		},
	)
	if err != nil {
		log.Printf("[preferences] failed to set language for %s: %v", discordID, err)
		return false
	}
	return true
}

// Language returns the stored preference or English.
func (p *PreferenceUsecase) Language(ctx context.Context, discordID string) local.Language {
	if stored, ok := p.Get(ctx, discordID); ok {
		if language, ok := local.ParseLanguage(stored); ok {
			return language
		}
	}
	return local.English
}

// LanguageForLocale falls back to the client locale when the stored
// preference is English, which is also the default.
func (p *PreferenceUsecase) LanguageForLocale(ctx context.Context, discordID, locale string) local.Language {
	language := p.Language(ctx, discordID)
	if language != local.English {
		return language
	}
	if fromLocale, ok := local.FromLocale(locale); ok {
		return fromLocale
	}
	return language
}
