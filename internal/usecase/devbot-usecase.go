package usecase

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/textutil"
)

const (
	MessageDevBotHelp         = "How can I help you with the codebase? Ask me anything about the AMC server project!"
	MessageDevBotWrongChannel = "I can only respond in specific channels. Please @mention me in an allowed channel."
	MessageDevBotErrorFormat  = "❌ Sorry, I encountered an error processing your request: %v"
)

type DevBotUsecaseDeps struct {
	Agent     *AgentUsecase
	Transport Transport
}

// DevBotUsecase answers @mentions with the codebase exploration agent.
type DevBotUsecase struct {
	DevBotUsecaseDeps
	selfID  string
	allowed map[string]struct{}
}

func NewDevBotUsecase(deps DevBotUsecaseDeps, cfg config.DevBot, selfID string) *DevBotUsecase {
	allowed := make(map[string]struct{}, len(cfg.AllowedChannels))
	for _, channelID := range cfg.AllowedChannels {
		if channelID = strings.TrimSpace(channelID); channelID != "" {
			allowed[channelID] = struct{}{}
		}
	}
	return &DevBotUsecase{
		DevBotUsecaseDeps: deps,
		selfID:            selfID,
		allowed:           allowed,
	}
}

func (d *DevBotUsecase) Handle(ctx context.Context, msg model.InboundMessage) error {
	if msg.Author.ID == d.selfID || !msg.MentionsSelf {
		return nil
	}
	if len(d.allowed) > 0 {
		if _, ok := d.allowed[msg.ChannelID]; !ok {
			return d.reply(ctx, msg.ChannelID, MessageDevBotWrongChannel)
		}
	}

	query := stripMentions(msg.Content, append(slices.Clone(msg.Mentions), d.selfID))
	if query == "" {
		return d.reply(ctx, msg.ChannelID, MessageDevBotHelp)
	}

	log.Printf("[devbot] %s asks: %s", msg.Author.DisplayName, textutil.Truncate(query, 120))
	result, err := d.Agent.Run(
		ctx,
		model.NewConversation(promptDevBotSystem, fmt.Sprintf("User %s asks: %s", msg.Author.DisplayName, query)),
		model.ToolContext{
			UserID:    msg.Author.ID,
			UserName:  msg.Author.DisplayName,
			ChannelID: msg.ChannelID,
			GuildID:   msg.GuildID,
			Role:      msg.Author.Role,
		},
	)
	if err != nil {
		log.Printf("[devbot] failed to answer: %v", err)
		return d.reply(ctx, msg.ChannelID, fmt.Sprintf(MessageDevBotErrorFormat, err))
	}
	return d.reply(ctx, msg.ChannelID, result.Answer)
}

func (d *DevBotUsecase) reply(ctx context.Context, channelID, text string) error {
	for _, chunk := range textutil.SplitMarkdown(text, textutil.DiscordMessageLimit) {
		if _, err := d.Transport.Send(ctx, channelID, chunk); err != nil {
			return fmt.Errorf("failed to send reply to %s: %w", channelID, err)
		}
	}
	return nil
}

func stripMentions(content string, userIDs []string) string {
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		content = strings.ReplaceAll(content, "<@"+id+">", "")
		content = strings.ReplaceAll(content, "<@!"+id+">", "")
	}
	return strings.TrimSpace(content)
}
