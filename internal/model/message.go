package model

import "time"

type Author struct {
	ID          string
	DisplayName string
	Bot         bool
	RoleIDs     []string
	Role        UserRole
}

type InboundMessage struct {
	ID           string
	ChannelID    string
	GuildID      string
	Content      string
	Author       Author
	MentionsSelf bool
	Mentions     []string
	Attachments  []Attachment
	Reactions    []Reaction
	CreatedAt    time.Time
}

type Attachment struct {
	Filename    string
	URL         string
	ContentType string
}

// Reaction is one emoji on a message. Users is only filled when the
// reacting users were fetched; Count is always set.
type Reaction struct {
	Emoji   string
	EmojiID string
	Count   int
	Users   []string
}

type MessageHandle struct {
	ID        string
	ChannelID string
}

type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// HistoryOptions bounds a history read. Before and After are message ids.
type HistoryOptions struct {
	Limit  int
	Before string
	After  string
}

type ScheduledEvent struct {
	ID          string
	Name        string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	URL         string
}
