package in_memory

import (
	"context"
	"sync"

	"github.com/iamvkosarev/amc-discord/internal/model"
)

type PreferenceStorage struct {
	mu          sync.RWMutex
	preferences map[string]model.UserLanguagePreference
}

func NewPreferenceStorage() *PreferenceStorage {
	return &PreferenceStorage{
		preferences: make(map[string]model.UserLanguagePreference),
	}
}

func (p *PreferenceStorage) GetLanguagePreference(_ context.Context, discordID string) (model.UserLanguagePreference, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pref, ok := p.preferences[discordID]
	if !ok {
		return model.UserLanguagePreference{}, model.ErrPreferenceNotFound
	}
	return pref, nil
}

func (p *PreferenceStorage) SetLanguagePreference(_ context.Context, pref model.UserLanguagePreference) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preferences[pref.DiscordID] = pref
	return nil
}
