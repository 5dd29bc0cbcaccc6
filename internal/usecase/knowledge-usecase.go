package usecase

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/ratelimit"
	"github.com/iamvkosarev/amc-discord/pkg/textutil"
)

const (
	MessageAgentFailed       = "Sorry, something went wrong while answering. Try again later."
	MessageRateLimitedFormat = "You're asking too quickly. Try again in %s."
	MessageEmptyQuestion     = "Ask me something, for example `/bot question: when is the next convoy?`"

	contextTimeLayout = "Monday, 2006-01-02 15:04"
)

// ReactionLister names the users behind a reaction. EmojiID is the API form
// of the emoji.
type ReactionLister interface {
	ReactionUsers(ctx context.Context, channelID, messageID, emojiID string) ([]string, error)
}

type KnowledgeUsecaseDeps struct {
	Agent     *AgentUsecase
	Transport Transport
	// Reactions is optional. Without it reactions are listed with counts only.
	Reactions ReactionLister
	Clock     func() time.Time
}

// KnowledgeUsecase answers /bot questions with the knowledge base, recent
// channel history and the Discord and game tools.
type KnowledgeUsecase struct {
	KnowledgeUsecaseDeps
	cfg       config.Agent
	location  *time.Location
	knowledge string
	limiter   *ratelimit.Keyed
}

func NewKnowledgeUsecase(
	deps KnowledgeUsecaseDeps,
	cfg config.Agent,
	limits []ratelimit.Window,
	knowledge string,
) (*KnowledgeUsecase, error) {
	location, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", cfg.LocalTimezone, err)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &KnowledgeUsecase{
		KnowledgeUsecaseDeps: deps,
		cfg:                  cfg,
		location:             location,
		knowledge:            knowledge,
		limiter:              ratelimit.NewKeyed(limits, ratelimit.WithClock(deps.Clock)),
	}, nil
}

func (k *KnowledgeUsecase) Ask(ctx context.Context, cmd model.Command) model.CommandReply {
	question := strings.TrimSpace(cmd.Option("question"))
	if question == "" {
		return model.CommandReply{Messages: []string{MessageEmptyQuestion}, Ephemeral: true}
	}
	if ok, wait := k.limiter.Check(cmd.User.ID); !ok {
		return model.CommandReply{
			Messages:  []string{fmt.Sprintf(MessageRateLimitedFormat, humanizeWait(wait))},
			Ephemeral: true,
		}
	}

	history, err := k.channelHistory(ctx, cmd.ChannelID)
	if err != nil {
		// answering without history is still useful
		log.Printf("[knowledge] %v", err)
	}

	conversation := model.NewConversation(
		k.systemPrompt(),
		fmt.Sprintf(
			"## Context\nThe current date and time (%s) is: %s",
			k.location, k.Clock().In(k.location).Format(contextTimeLayout),
		),
	)
	if history != "" {
		conversation = append(conversation, model.NewConversation("", "## Previous messages:\n"+history)...)
	}
	conversation = append(
		conversation,
		model.NewConversation("", fmt.Sprintf("### Message from %s\n%s", cmd.User.DisplayName, question))...,
	)

	result, err := k.Agent.Run(
		ctx, conversation, model.ToolContext{
			UserID:    cmd.User.ID,
			UserName:  cmd.User.DisplayName,
			ChannelID: cmd.ChannelID,
			GuildID:   cmd.GuildID,
			Role:      cmd.User.Role,
		},
	)
	if err != nil {
		log.Printf("[knowledge] failed to answer %s: %v", cmd.User.ID, err)
		return model.CommandReply{Messages: []string{MessageAgentFailed}}
	}
	return model.CommandReply{Messages: textutil.SplitMarkdown(result.Answer, textutil.DiscordMessageLimit)}
}

func (k *KnowledgeUsecase) systemPrompt() string {
	prompt := fmt.Sprintf(promptKnowledgeSystem, k.cfg.ServerName)
	if k.knowledge != "" {
		prompt += "\n\n" + k.knowledge
	}
	return prompt
}

// channelHistory renders the last messages oldest first.
func (k *KnowledgeUsecase) channelHistory(ctx context.Context, channelID string) (string, error) {
	var entries []string
	for msg, err := range k.Transport.History(ctx, channelID, model.HistoryOptions{Limit: k.cfg.HistoryLimit}) {
		if err != nil {
			return joinNewestFirst(entries), fmt.Errorf("failed to read history of %s: %w", channelID, err)
		}
		entry := fmt.Sprintf("### %s:\n%s\n", msg.Author.DisplayName, msg.Content)
		if len(msg.Reactions) > 0 {
			entry += "**Reactions**\n" + k.reactionLines(ctx, channelID, msg)
		}
		entries = append(entries, entry)
	}
	return joinNewestFirst(entries), nil
}

func (k *KnowledgeUsecase) reactionLines(ctx context.Context, channelID string, msg model.InboundMessage) string {
	lines := make([]string, 0, len(msg.Reactions))
	for _, reaction := range msg.Reactions {
		who := strconv.Itoa(reaction.Count)
		if k.Reactions != nil {
			users, err := k.Reactions.ReactionUsers(ctx, channelID, msg.ID, reaction.EmojiID)
			if err != nil {
				log.Printf("[knowledge] failed to list reactions on %s: %v", msg.ID, err)
			} else if len(users) > 0 {
				who = strings.Join(users, ", ")
			}
		}
		lines = append(lines, reaction.Emoji+": "+who)
	}
	return strings.Join(lines, "\n")
}

func joinNewestFirst(entries []string) string {
	var b strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		b.WriteString(entries[i])
		if i > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// humanizeWait rounds up to whole minutes, or seconds below one minute.
func humanizeWait(wait time.Duration) string {
	if wait < time.Minute {
		seconds := int(math.Ceil(wait.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%d min", int(math.Ceil(wait.Minutes())))
}
