package discord

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/iamvkosarev/amc-discord/internal/model"
)

const (
	historyPageSize = 100
	// only the first page of reacting users is read
	reactionUsersLimit = 100
	eventURLFormat  = "https://discord.com/events/%s/%s"
)

var ErrEmptyMessage = errors.New("message is empty")

// Session is the part of *discordgo.Session the transport needs.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(
		channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption,
	) ([]*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactions(
		channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption,
	) ([]*discordgo.User, error)
	GuildScheduledEventCreate(
		guildID string, event *discordgo.GuildScheduledEventParams, options ...discordgo.RequestOption,
	) (*discordgo.GuildScheduledEvent, error)
	GuildScheduledEvents(
		guildID string, userCount bool, options ...discordgo.RequestOption,
	) ([]*discordgo.GuildScheduledEvent, error)
	InteractionRespond(
		interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption,
	) error
	FollowupMessageCreate(
		interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

// Transport implements the usecase transport and guild action interfaces on
// top of a discordgo session.
type Transport struct {
	session Session
	selfID  string
}

func NewTransport(session Session, selfID string) *Transport {
	return &Transport{
		session: session,
		selfID:  selfID,
	}
}

func (t *Transport) Send(ctx context.Context, channelID, text string) (model.MessageHandle, error) {
	if text == "" {
		return model.MessageHandle{}, ErrEmptyMessage
	}
	msg, err := t.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return model.MessageHandle{}, fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}
	return model.MessageHandle{ID: msg.ID, ChannelID: msg.ChannelID}, nil
}

// History yields messages newest first, fetching pages of up to 100 lazily.
// A limit of zero reads a single page.
func (t *Transport) History(
	ctx context.Context,
	channelID string,
	opts model.HistoryOptions,
) iter.Seq2[model.InboundMessage, error] {
	return func(yield func(model.InboundMessage, error) bool) {
		remaining := opts.Limit
		if remaining <= 0 {
			remaining = historyPageSize
		}
		before := opts.Before
		for remaining > 0 {
			page, err := t.session.ChannelMessages(
				channelID, min(remaining, historyPageSize), before, opts.After, "", discordgo.WithContext(ctx),
			)
			if err != nil {
				yield(model.InboundMessage{}, fmt.Errorf("failed to fetch messages of %s: %w", channelID, err))
				return
			}
			for _, msg := range page {
				if !yield(toInboundMessage(msg, t.selfID), nil) {
					return
				}
			}
			remaining -= len(page)
			if len(page) < historyPageSize {
				return
			}
			before = page[len(page)-1].ID
		}
	}
}

func (t *Transport) Message(ctx context.Context, channelID, messageID string) (model.InboundMessage, error) {
	msg, err := t.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return model.InboundMessage{}, fmt.Errorf("failed to fetch message %s: %w", messageID, err)
	}
	if msg.ChannelID == "" {
		msg.ChannelID = channelID
	}
	return toInboundMessage(msg, t.selfID), nil
}

// ReactionUsers returns the display names of the users who reacted with
// emojiID, the API form of the emoji.
func (t *Transport) ReactionUsers(ctx context.Context, channelID, messageID, emojiID string) ([]string, error) {
	users, err := t.session.MessageReactions(
		channelID, messageID, emojiID, reactionUsersLimit, "", "", discordgo.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reactions %s on %s: %w", emojiID, messageID, err)
	}
	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, displayName(user, nil))
	}
	return names, nil
}

func (t *Transport) GetChannel(ctx context.Context, channelID string) (model.Channel, bool) {
	ch, err := t.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil || ch == nil {
		return model.Channel{}, false
	}
	return model.Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name}, true
}

func (t *Transport) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := t.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add reaction %s: %w", emoji, err)
	}
	return nil
}

func (t *Transport) CreateScheduledEvent(
	ctx context.Context,
	guildID string,
	event model.ScheduledEvent,
) (model.ScheduledEvent, error) {
	start, end := event.Start, event.End
	params := &discordgo.GuildScheduledEventParams{
		Name:               event.Name,
		Description:        event.Description,
		ScheduledStartTime: &start,
		ScheduledEndTime:   &end,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		EntityMetadata:     &discordgo.GuildScheduledEventEntityMetadata{Location: event.Location},
	}
	if params.EntityMetadata.Location == "" {
		// external events are rejected without a location
		params.EntityMetadata.Location = "In game"
	}
	created, err := t.session.GuildScheduledEventCreate(guildID, params, discordgo.WithContext(ctx))
	if err != nil {
		return model.ScheduledEvent{}, fmt.Errorf("failed to create scheduled event: %w", err)
	}
	return toScheduledEvent(created), nil
}

func (t *Transport) ScheduledEvents(ctx context.Context, guildID string) ([]model.ScheduledEvent, error) {
	events, err := t.session.GuildScheduledEvents(guildID, false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled events of %s: %w", guildID, err)
	}
	out := make([]model.ScheduledEvent, 0, len(events))
	for _, event := range events {
		out = append(out, toScheduledEvent(event))
	}
	return out, nil
}

func toScheduledEvent(event *discordgo.GuildScheduledEvent) model.ScheduledEvent {
	out := model.ScheduledEvent{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Location:    event.EntityMetadata.Location,
		Start:       event.ScheduledStartTime,
		URL:         fmt.Sprintf(eventURLFormat, event.GuildID, event.ID),
	}
	if event.ScheduledEndTime != nil {
		out.End = *event.ScheduledEndTime
	}
	return out
}

func toInboundMessage(msg *discordgo.Message, selfID string) model.InboundMessage {
	out := model.InboundMessage{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		Content:   msg.Content,
		CreatedAt: msg.Timestamp,
	}
	if msg.Author != nil {
		out.Author = model.Author{
			ID:          msg.Author.ID,
			DisplayName: displayName(msg.Author, msg.Member),
			Bot:         msg.Author.Bot,
		}
	}
	if msg.Member != nil {
		out.Author.RoleIDs = msg.Member.Roles
	}
	for _, user := range msg.Mentions {
		out.Mentions = append(out.Mentions, user.ID)
		if user.ID == selfID {
			out.MentionsSelf = true
		}
	}
	for _, attachment := range msg.Attachments {
		out.Attachments = append(
			out.Attachments, model.Attachment{
				Filename:    attachment.Filename,
				URL:         attachment.URL,
				ContentType: attachment.ContentType,
			},
		)
	}
	for _, reaction := range msg.Reactions {
		if reaction.Emoji == nil {
			continue
		}
		out.Reactions = append(
			out.Reactions, model.Reaction{
				Emoji:   reaction.Emoji.MessageFormat(),
				EmojiID: reaction.Emoji.APIName(),
				Count:   reaction.Count,
			},
		)
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	return out
}

// displayName prefers the guild nickname, then the global display name.
func displayName(user *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
