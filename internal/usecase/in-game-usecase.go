package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/ratelimit"
	"github.com/iamvkosarev/amc-discord/pkg/textutil"
)

const (
	MessageInGameRateLimitedFormat = "%s: please wait %s before asking again."
	MessageInGameFailedFormat      = "%s: sorry, I can't answer that right now."

	inGameContextLines = 10
)

type PlayerLister interface {
	ActivePlayers(ctx context.Context) (string, error)
}

type EventLister interface {
	ScheduledEvents(ctx context.Context, guildID string) ([]model.ScheduledEvent, error)
}

type GameContextSource interface {
	GameContext(n int) []string
}

type InGameUsecaseDeps struct {
	Agent   *AgentUsecase
	Game    GameAnnouncer
	Players PlayerLister
	Events  EventLister
	Context GameContextSource
	Clock   func() time.Time
}

type InGameConfig struct {
	Agent     config.Agent
	GuildID   string
	Color     string
	Limits    []ratelimit.Window
	Knowledge string
}

// InGameUsecase answers questions players type into the game chat with the
// configured prefix. Answers go back to the game as announcements.
type InGameUsecase struct {
	InGameUsecaseDeps
	cfg      InGameConfig
	location *time.Location
	limiter  *ratelimit.Keyed
}

func NewInGameUsecase(deps InGameUsecaseDeps, cfg InGameConfig) (*InGameUsecase, error) {
	location, err := time.LoadLocation(cfg.Agent.LocalTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", cfg.Agent.LocalTimezone, err)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.Agent.InGamePrefix == "" {
		cfg.Agent.InGamePrefix = "/bot"
	}
	return &InGameUsecase{
		InGameUsecaseDeps: deps,
		cfg:               cfg,
		location:          location,
		limiter:           ratelimit.NewKeyed(cfg.Limits, ratelimit.WithClock(deps.Clock)),
	}, nil
}

// Question returns the text after the prefix. The prefix must be followed by
// whitespace or end the line.
func (g *InGameUsecase) Question(content string) (string, bool) {
	content = strings.TrimSpace(content)
	prefix := g.cfg.Agent.InGamePrefix
	if len(content) < len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return "", false
	}
	rest := content[len(prefix):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func (g *InGameUsecase) Answer(ctx context.Context, player, question string) error {
	if question == "" {
		return nil
	}
	if ok, wait := g.limiter.Check(player); !ok {
		log.Printf("[in-game] %s is rate limited for %s", player, wait)
		return g.announce(ctx, fmt.Sprintf(MessageInGameRateLimitedFormat, player, humanizeWait(wait)))
	}

	result, err := g.Agent.Run(
		ctx, g.conversation(ctx, player, question), model.ToolContext{
			UserName: player,
			GuildID:  g.cfg.GuildID,
			Role:     model.UserRoleDefault,
		},
	)
	if err != nil {
		log.Printf("[in-game] failed to answer %s: %v", player, err)
		return g.announce(ctx, fmt.Sprintf(MessageInGameFailedFormat, player))
	}
	return g.announce(ctx, fmt.Sprintf("%s: %s", player, flattenForGame(result.Answer)))
}

func (g *InGameUsecase) conversation(ctx context.Context, player, question string) model.Conversation {
	now := g.Clock().In(g.location)

	system := fmt.Sprintf(promptInGameSystem, g.cfg.Agent.ServerName)
	if g.cfg.Knowledge != "" {
		system += "\n\n" + g.cfg.Knowledge
	}
	conversation := model.NewConversation(system)

	if g.Events != nil && g.cfg.GuildID != "" {
		events, err := g.Events.ScheduledEvents(ctx, g.cfg.GuildID)
		if err != nil {
			log.Printf("[in-game] failed to list events: %v", err)
		}
		if upcoming := formatUpcomingEvents(events, now, g.location); upcoming != "" {
			conversation = append(conversation, model.NewConversation("", "# Upcoming events:\n\n"+upcoming)...)
		}
	}

	players := "unknown"
	if g.Players != nil {
		list, err := g.Players.ActivePlayers(ctx)
		switch {
		case err != nil:
			log.Printf("[in-game] failed to fetch active players: %v", err)
		case strings.TrimSpace(list) != "":
			players = list
		}
	}
	var previous []string
	if g.Context != nil {
		previous = g.Context.GameContext(inGameContextLines)
	}
	conversation = append(
		conversation, model.NewConversation(
			"",
			fmt.Sprintf(
				"## Context\nTime: %s\n\n### Online Players:\n%s\n\n### Previous messages:\n%s",
				now.Format(contextTimeLayout), players, strings.Join(previous, "\n"),
			),
			fmt.Sprintf("### Message from %s:\n%s", player, question),
		)...,
	)
	return conversation
}

func (g *InGameUsecase) announce(ctx context.Context, text string) error {
	text = textutil.Truncate(text, g.cfg.Agent.InGameAnswerLimit)
	if err := g.Game.Announce(ctx, text, g.cfg.Color); err != nil {
		return fmt.Errorf("failed to announce answer: %w", err)
	}
	return nil
}

// flattenForGame keeps the answer on one line. The game chat shows neither
// newlines nor markdown.
func flattenForGame(answer string) string {
	answer = strings.NewReplacer("**", "", "__", "", "`", "").Replace(answer)
	return strings.Join(strings.Fields(answer), " ")
}

func formatUpcomingEvents(events []model.ScheduledEvent, now time.Time, location *time.Location) string {
	var parts []string
	for _, event := range events {
		if !event.Start.After(now) {
			continue
		}
		part := fmt.Sprintf("## %s\nDate/Time: %s", event.Name, event.Start.In(location).Format(contextTimeLayout))
		if event.Location != "" {
			part += "\nLocation: " + event.Location
		}
		if event.Description != "" {
			part += "\n" + event.Description
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n\n")
}
