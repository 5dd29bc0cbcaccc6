package discord

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/local"
)

const (
	intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildScheduledEvents |
		discordgo.IntentMessageContent

	MessageCommandFailed = "Something went wrong. Try again later."
)

type MessageHandler func(ctx context.Context, msg model.InboundMessage)

type CommandHandler func(ctx context.Context, cmd model.Command) model.CommandReply

type BotConfig struct {
	Token         string
	ApplicationID string
	GuildID       string
	Commands      []*discordgo.ApplicationCommand
}

// Bot owns the gateway connection and turns discordgo events into model
// values for the usecases.
type Bot struct {
	cfg       BotConfig
	session   *discordgo.Session
	transport *Transport
	onMessage MessageHandler
	onCommand CommandHandler
}

func NewBot(cfg BotConfig) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = intents
	return &Bot{
		cfg:     cfg,
		session: session,
	}, nil
}

// Open connects to the gateway. The returned transport is bound to the bot
// user and can be used once Open returns.
func (b *Bot) Open() (*Transport, error) {
	if err := b.session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open discord session: %w", err)
	}
	self := b.session.State.User
	if self == nil {
		var err error
		if self, err = b.session.User("@me"); err != nil {
			return nil, fmt.Errorf("failed to get bot user: %w", err)
		}
	}
	log.Printf("[discord] authorized as %s (%s)", self.Username, self.ID)
	b.transport = NewTransport(b.session, self.ID)
	return b.transport, nil
}

func (b *Bot) SelfID() string {
	if b.transport == nil {
		return ""
	}
	return b.transport.selfID
}

// Run registers the handlers and the application commands and blocks until
// ctx is done.
func (b *Bot) Run(ctx context.Context, onMessage MessageHandler, onCommand CommandHandler) error {
	if b.transport == nil {
		return fmt.Errorf("discord session is not open")
	}
	b.onMessage = onMessage
	b.onCommand = onCommand

	removeMessages := b.session.AddHandler(
		func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			if b.onMessage != nil && m.Message != nil {
				b.onMessage(ctx, toInboundMessage(m.Message, b.transport.selfID))
			}
		},
	)
	defer removeMessages()
	removeInteractions := b.session.AddHandler(
		func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			if b.onCommand == nil {
				return
			}
			switch {
			case i.Type == discordgo.InteractionApplicationCommand && opensModal(i.ApplicationCommandData().Name):
				go respondInteraction(ctx, b.session, i.Interaction, b.onCommand)
			case i.Type == discordgo.InteractionApplicationCommand, i.Type == discordgo.InteractionModalSubmit:
				go handleInteraction(ctx, b.session, i.Interaction, b.onCommand)
			}
		},
	)
	defer removeInteractions()

	if len(b.cfg.Commands) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(b.cfg.ApplicationID, b.cfg.GuildID, b.cfg.Commands)
		if err != nil {
			return fmt.Errorf("failed to register commands: %w", err)
		}
		log.Printf("[discord] registered %d command(s)", len(registered))
	}

	<-ctx.Done()
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// handleInteraction defers right away because the usecases take longer than
// the three seconds Discord waits for a first response.
func handleInteraction(ctx context.Context, session Session, interaction *discordgo.Interaction, handle CommandHandler) {
	cmd := toCommand(interaction)
	var flags discordgo.MessageFlags
	if ephemeralCommand(cmd.Name) {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(
		interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: flags},
		},
	)
	if err != nil {
		log.Printf("[discord] failed to defer %s: %v", cmd.Name, err)
		return
	}

	reply := handle(ctx, cmd)
	if len(reply.Messages) == 0 {
		reply.Messages = []string{MessageCommandFailed}
	}
	if reply.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	for _, text := range reply.Messages {
		_, err = session.FollowupMessageCreate(
			interaction, true, &discordgo.WebhookParams{Content: text, Flags: flags},
			discordgo.WithContext(ctx),
		)
		if err != nil {
			log.Printf("[discord] failed to send followup for %s: %v", cmd.Name, err)
			return
		}
	}
}

// respondInteraction answers without deferring, which a modal requires.
// The usecase has to reply within three seconds.
func respondInteraction(ctx context.Context, session Session, interaction *discordgo.Interaction, handle CommandHandler) {
	cmd := toCommand(interaction)
	reply := handle(ctx, cmd)

	var resp *discordgo.InteractionResponse
	switch {
	case reply.Modal != nil:
		resp = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: reply.Modal.CustomID,
				Title:    reply.Modal.Title,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.TextInput{
								CustomID:    reply.Modal.InputID,
								Label:       reply.Modal.Label,
								Style:       discordgo.TextInputParagraph,
								Placeholder: reply.Modal.Placeholder,
								Required:    true,
							},
						},
					},
				},
			},
		}
	default:
		text := MessageCommandFailed
		if len(reply.Messages) > 0 {
			text = reply.Messages[0]
		}
		var flags discordgo.MessageFlags
		if reply.Ephemeral {
			flags = discordgo.MessageFlagsEphemeral
		}
		resp = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: text, Flags: flags},
		}
	}
	if err := session.InteractionRespond(interaction, resp, discordgo.WithContext(ctx)); err != nil {
		log.Printf("[discord] failed to respond to %s: %v", cmd.Name, err)
	}
}

func ephemeralCommand(name string) bool {
	return name != model.CommandBot && name != model.CommandImagePrompt
}

func opensModal(name string) bool {
	return name == model.CommandProcessImage
}

func toCommand(interaction *discordgo.Interaction) model.Command {
	cmd := model.Command{
		Options:   make(map[string]string),
		ChannelID: interaction.ChannelID,
		GuildID:   interaction.GuildID,
		Locale:    string(interaction.Locale),
	}
	switch {
	case interaction.Member != nil && interaction.Member.User != nil:
		cmd.User = model.Author{
			ID:          interaction.Member.User.ID,
			DisplayName: displayName(interaction.Member.User, interaction.Member),
			Bot:         interaction.Member.User.Bot,
			RoleIDs:     interaction.Member.Roles,
		}
	case interaction.User != nil:
		cmd.User = model.Author{
			ID:          interaction.User.ID,
			DisplayName: displayName(interaction.User, nil),
			Bot:         interaction.User.Bot,
		}
	}
	if interaction.Type == discordgo.InteractionModalSubmit {
		fillModalCommand(&cmd, interaction.ModalSubmitData())
		return cmd
	}

	data := interaction.ApplicationCommandData()
	cmd.Name = data.Name
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			cmd.Options[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			cmd.Options[opt.Name] = strconv.FormatInt(opt.IntValue(), 10)
		default:
			cmd.Options[opt.Name] = fmt.Sprint(opt.Value)
		}
	}
	if data.TargetID != "" && data.Resolved != nil {
		if target, ok := data.Resolved.Messages[data.TargetID]; ok {
			if target.ChannelID == "" {
				target.ChannelID = interaction.ChannelID
			}
			msg := toInboundMessage(target, "")
			cmd.Target = &msg
		}
	}
	return cmd
}

// fillModalCommand maps a submitted modal to the command named by the prefix
// of its custom id. The rest of the id becomes the "message_id" option and
// every text input becomes an option named after its custom id.
func fillModalCommand(cmd *model.Command, data discordgo.ModalSubmitInteractionData) {
	name, messageID, _ := strings.Cut(data.CustomID, ":")
	cmd.Name = name
	if messageID != "" {
		cmd.Options["message_id"] = messageID
	}
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				cmd.Options[input.CustomID] = input.Value
			}
		}
	}
}

// Commands describes the slash commands and context menus of the main bot.
func Commands() []*discordgo.ApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(local.Supported))
	for _, language := range local.Supported {
		choices = append(
			choices, &discordgo.ApplicationCommandOptionChoice{Name: string(language), Value: string(language)},
		)
	}
	toLanguage := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "to_language",
		Description: "Target language (defaults to your saved language)",
		Choices:     choices,
	}
	minCount := 1.0

	return []*discordgo.ApplicationCommand{
		{
			Name:        model.CommandBot,
			Description: "Ask the server assistant",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "Your question",
					Required:    true,
				},
			},
		},
		{
			Name:        model.CommandSetLanguage,
			Description: "Set your preferred language for translations",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "language",
					Description: "Your preferred language",
					Required:    true,
					Choices:     choices,
				},
			},
		},
		{
			Name:        model.CommandTranslate,
			Description: "Translate text to a language",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "The text to translate",
					Required:    true,
				},
				toLanguage,
			},
		},
		{
			Name:        model.CommandTranslateThread,
			Description: "Translate recent messages in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "Number of messages to translate (default: 10)",
					MinValue:    &minCount,
					MaxValue:    25,
				},
				toLanguage,
			},
		},
		{Name: model.CommandTranslateMsg, Type: discordgo.MessageApplicationCommand},
		{Name: model.CommandTranslateBatch, Type: discordgo.MessageApplicationCommand},
		{Name: model.CommandProcessImage, Type: discordgo.MessageApplicationCommand},
	}
}
