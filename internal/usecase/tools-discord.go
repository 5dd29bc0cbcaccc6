package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	ToolCreatePoll           = "create_poll"
	ToolCreateScheduledEvent = "create_scheduled_event"

	minPollOptions = 2
	maxPollOptions = 10

	defaultEventDuration = time.Hour
)

var (
	ErrPollOptions  = errors.New("a poll needs between 2 and 10 options")
	ErrNoGuild      = errors.New("scheduled events can only be created inside a server")
	eventTimeLayout = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}
)

// GuildActions are the Discord side effects the knowledge agent may trigger.
type GuildActions interface {
	Send(ctx context.Context, channelID, text string) (model.MessageHandle, error)
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	CreateScheduledEvent(ctx context.Context, guildID string, event model.ScheduledEvent) (model.ScheduledEvent, error)
	ScheduledEvents(ctx context.Context, guildID string) ([]model.ScheduledEvent, error)
}

func keycapEmoji(n int) string {
	if n == 10 {
		return "\U0001F51F"
	}
	return fmt.Sprintf("%d\uFE0F\u20E3", n)
}

func NewCreatePollTool(guild GuildActions) Tool {
	return Tool{
		Declaration: model.ToolDeclaration{
			Name:        ToolCreatePoll,
			Description: "Creates a poll in the Discord channel. Members vote with number reactions.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"question": {Type: jsonschema.String},
					"options": {
						Type:  jsonschema.Array,
						Items: &jsonschema.Definition{Type: jsonschema.String},
					},
					"channel_id": {Type: jsonschema.String, Description: "Defaults to the current channel"},
				},
				Required: []string{"question", "options"},
			},
		},
		Handler: func(ctx context.Context, args ToolArgs, tc model.ToolContext) (any, error) {
			question, err := args.RequireString("question")
			if err != nil {
				return nil, err
			}
			options := args.Strings("options")
			if len(options) < minPollOptions || len(options) > maxPollOptions {
				return nil, ErrPollOptions
			}
			channelID := args.String("channel_id")
			if channelID == "" {
				channelID = tc.ChannelID
			}

			var b strings.Builder
			fmt.Fprintf(&b, "**Poll:** %s\n\n", question)
			for i, option := range options {
				fmt.Fprintf(&b, "%d. %s\n", i+1, option)
			}
			b.WriteString("\nReact with the corresponding emoji to vote!")

			handle, err := guild.Send(ctx, channelID, b.String())
			if err != nil {
				return nil, fmt.Errorf("failed to post poll: %w", err)
			}
			for i := range options {
				if err = guild.AddReaction(ctx, handle.ChannelID, handle.ID, keycapEmoji(i+1)); err != nil {
					return nil, fmt.Errorf("failed to add poll reaction: %w", err)
				}
			}
			return fmt.Sprintf("Poll '%s' created!", question), nil
		},
	}
}

func NewCreateScheduledEventTool(guild GuildActions) Tool {
	return Tool{
		Declaration: model.ToolDeclaration{
			Name:        ToolCreateScheduledEvent,
			Description: "Creates a scheduled event in the Discord server. Times are local to timezone.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"name":        {Type: jsonschema.String},
					"description": {Type: jsonschema.String},
					"location":    {Type: jsonschema.String},
					"start_time":  {Type: jsonschema.String, Description: "ISO 8601 date-time"},
					"end_time":    {Type: jsonschema.String, Description: "ISO 8601 date-time, defaults to one hour after start"},
					"timezone":    {Type: jsonschema.String, Description: "IANA name, e.g. Asia/Bangkok"},
				},
				Required: []string{"name", "start_time", "timezone"},
			},
		},
		RequiredRole: model.UserRoleElevated,
		Handler: func(ctx context.Context, args ToolArgs, tc model.ToolContext) (any, error) {
			if tc.GuildID == "" {
				return nil, ErrNoGuild
			}
			name, err := args.RequireString("name")
			if err != nil {
				return nil, err
			}
			startRaw, err := args.RequireString("start_time")
			if err != nil {
				return nil, err
			}
			tzName, err := args.RequireString("timezone")
			if err != nil {
				return nil, err
			}
			loc, err := time.LoadLocation(tzName)
			if err != nil {
				return nil, fmt.Errorf("unknown timezone %q", tzName)
			}
			start, err := parseEventTime(startRaw, loc)
			if err != nil {
				return nil, err
			}
			end := start.Add(defaultEventDuration)
			if endRaw := args.String("end_time"); endRaw != "" {
				if end, err = parseEventTime(endRaw, loc); err != nil {
					return nil, err
				}
			}
			if !end.After(start) {
				return nil, errors.New("end_time must be after start_time")
			}

			event, err := guild.CreateScheduledEvent(
				ctx, tc.GuildID, model.ScheduledEvent{
					Name:        name,
					Description: args.String("description"),
					Location:    args.String("location"),
					Start:       start,
					End:         end,
				},
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create event: %w", err)
			}
			return fmt.Sprintf("Event '%s' created: %s", name, event.URL), nil
		},
	}
}

// parseEventTime reads the wall clock in loc. An explicit offset in the input
// is replaced by loc.
func parseEventTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range eventTimeLayout {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q", raw)
}
