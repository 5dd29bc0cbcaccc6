package model

import "time"

type UserLanguagePreference struct {
	DiscordID string
	Language  string
	UpdatedAt time.Time
}
