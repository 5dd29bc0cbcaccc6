package app

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/codebase"
	"github.com/iamvkosarev/amc-discord/internal/gamebridge"
	"github.com/iamvkosarev/amc-discord/internal/gamedb"
	"github.com/iamvkosarev/amc-discord/internal/model"
	in_memory "github.com/iamvkosarev/amc-discord/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/amc-discord/internal/storage/key-value"
	"github.com/iamvkosarev/amc-discord/internal/storage/sql"
	"github.com/iamvkosarev/amc-discord/internal/transport/discord"
	"github.com/iamvkosarev/amc-discord/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RunBot runs the main community bot until ctx is cancelled.
func RunBot(ctx context.Context, cfg *config.Config) error {
	if cfg.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is not set")
	}
	openAIUsecase, err := usecase.NewOpenAIUsecase(cfg.OpenAI)
	if err != nil {
		return fmt.Errorf("failed to create openai usecase: %w", err)
	}

	bot, err := discord.NewBot(
		discord.BotConfig{
			Token:         cfg.Discord.Token,
			ApplicationID: cfg.Discord.ApplicationID,
			GuildID:       cfg.Discord.GuildID,
			Commands:      discord.Commands(),
		},
	)
	if err != nil {
		return err
	}
	transport, err := bot.Open()
	if err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Printf("[app] failed to close discord session: %v", err)
		}
	}()

	preferenceStorage, closeStorage, err := newPreferenceStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStorage()

	game := gamebridge.New(cfg.Game)
	knowledge := loadKnowledge(cfg.Agent.KnowledgePath)

	var gameTools []usecase.Tool
	gameDB, err := gamedb.Open(cfg.Game.DBPath, cfg.Game.QueryTimeout)
	if err != nil {
		// the bot is still useful without game data
		log.Printf("[app] game database unavailable: %v", err)
	} else {
		defer gameDB.Close()
		gameTools = []usecase.Tool{
			usecase.NewQueryGameDBTool(gameDB, gameDB.SchemaDescription(ctx)),
			usecase.NewGameQueryTool(gameDB),
		}
	}

	translationUsecase := usecase.NewTranslationUsecase(
		usecase.TranslationUsecaseDeps{LLM: openAIUsecase},
		usecase.TranslationConfig{
			Model:              cfg.OpenAI.TranslationModel,
			ContextTokenBudget: cfg.OpenAI.ContextTokenBudget,
		},
	)

	relayUsecase, err := usecase.NewRelayUsecase(
		cfg.Relay, usecase.RelayUsecaseDeps{
			Transport:  transport,
			Translator: translationUsecase,
			Game:       game,
		}, bot.SelfID(),
	)
	if err != nil {
		return fmt.Errorf("failed to create relay usecase: %w", err)
	}
	if err = relayUsecase.Warmup(ctx); err != nil {
		log.Printf("[app] %v", err)
	}

	knowledgeTools, err := usecase.NewToolRegistry(
		append(
			[]usecase.Tool{
				usecase.NewCreatePollTool(transport),
				usecase.NewCreateScheduledEventTool(transport),
				usecase.NewAnnounceInGameTool(game, cfg.Relay.AnnounceColor),
			}, gameTools...,
		)...,
	)
	if err != nil {
		return fmt.Errorf("failed to register knowledge tools: %w", err)
	}
	knowledgeUsecase, err := usecase.NewKnowledgeUsecase(
		usecase.KnowledgeUsecaseDeps{
			Agent: usecase.NewAgentUsecase(
				usecase.AgentUsecaseDeps{LLM: openAIUsecase, Tools: knowledgeTools},
				usecase.AgentConfig{
					Name:            "knowledge",
					Model:           cfg.OpenAI.DefaultModel,
					MaxIterations:   cfg.Agent.MaxIterations,
					ReasoningEffort: cfg.OpenAI.ReasoningEffort,
				},
			),
			Transport: transport,
			Reactions: transport,
		}, cfg.Agent, cfg.RateLimits.Knowledge, knowledge,
	)
	if err != nil {
		return fmt.Errorf("failed to create knowledge usecase: %w", err)
	}

	inGameTools, err := usecase.NewToolRegistry(gameTools...)
	if err != nil {
		return fmt.Errorf("failed to register in-game tools: %w", err)
	}
	inGameUsecase, err := usecase.NewInGameUsecase(
		usecase.InGameUsecaseDeps{
			Agent: usecase.NewAgentUsecase(
				usecase.AgentUsecaseDeps{LLM: openAIUsecase, Tools: inGameTools},
				usecase.AgentConfig{
					Name:            "in-game",
					Model:           cfg.OpenAI.DefaultModel,
					MaxIterations:   cfg.Agent.InGameMaxIterations,
					ReasoningEffort: cfg.OpenAI.ReasoningEffort,
				},
			),
			Game:    game,
			Players: game,
			Events:  transport,
			Context: relayUsecase,
		}, usecase.InGameConfig{
			Agent:     cfg.Agent,
			GuildID:   cfg.Discord.GuildID,
			Color:     cfg.Relay.AnnounceColor,
			Limits:    cfg.RateLimits.InGame,
			Knowledge: knowledge,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create in-game usecase: %w", err)
	}

	announcerUsecase, err := usecase.NewAnnouncerUsecase(
		usecase.AnnouncerUsecaseDeps{Game: game, Events: transport},
		cfg.Announcer, cfg.Discord.GuildID, cfg.Agent.LocalTimezone,
	)
	if err != nil {
		return fmt.Errorf("failed to create announcer usecase: %w", err)
	}
	if err = announcerUsecase.Start(ctx); err != nil {
		return err
	}
	defer announcerUsecase.Stop()

	discordUsecase := usecase.NewDiscordUsecase(
		usecase.DiscordUsecaseDeps{
			User:      usecase.NewUserUsecase(cfg.Discord),
			Relay:     relayUsecase,
			Knowledge: knowledgeUsecase,
			InGame:    inGameUsecase,
			Commands: usecase.NewCommandUsecase(
				usecase.CommandUsecaseDeps{
					Translator:       translationUsecase,
					ThreadTranslator: translationUsecase,
					Preferences:      usecase.NewPreferenceUsecase(usecase.PreferenceUsecaseDeps{Storage: preferenceStorage}),
					Transport:        transport,
					Vision:           openAIUsecase,
				}, usecase.CommandConfig{VisionModel: cfg.OpenAI.VisionModel},
			),
		},
	)
	defer discordUsecase.Wait()

	log.Printf("[app] bot is running")
	return bot.Run(ctx, discordUsecase.OnMessage, discordUsecase.OnCommand)
}

// RunDevBot runs the codebase assistant until ctx is cancelled.
func RunDevBot(ctx context.Context, cfg *config.Config) error {
	if cfg.Discord.DevToken == "" {
		return fmt.Errorf("DISCORD_TOKEN_DEV is not set")
	}
	explorer, err := codebase.New(cfg.DevBot.RepoPath)
	if err != nil {
		return fmt.Errorf("failed to open repository %s: %w", cfg.DevBot.RepoPath, err)
	}
	openAIUsecase, err := usecase.NewOpenAIUsecase(cfg.OpenAI)
	if err != nil {
		return fmt.Errorf("failed to create openai usecase: %w", err)
	}
	tools, err := usecase.NewToolRegistry(usecase.NewCodebaseTools(explorer, codebase.NewNixHasher(nil))...)
	if err != nil {
		return fmt.Errorf("failed to register codebase tools: %w", err)
	}

	bot, err := discord.NewBot(discord.BotConfig{Token: cfg.Discord.DevToken})
	if err != nil {
		return err
	}
	transport, err := bot.Open()
	if err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Printf("[app] failed to close discord session: %v", err)
		}
	}()

	devBotUsecase := usecase.NewDevBotUsecase(
		usecase.DevBotUsecaseDeps{
			Agent: usecase.NewAgentUsecase(
				usecase.AgentUsecaseDeps{LLM: openAIUsecase, Tools: tools},
				usecase.AgentConfig{
					Name:          "devbot",
					Model:         cfg.DevBot.Model,
					MaxIterations: cfg.DevBot.MaxIterations,
				},
			),
			Transport: transport,
		}, cfg.DevBot, bot.SelfID(),
	)

	log.Printf("[app] dev bot is running on %s", explorer.Root())
	return bot.Run(
		ctx, func(ctx context.Context, msg model.InboundMessage) {
			go func() {
				if err := devBotUsecase.Handle(context.WithoutCancel(ctx), msg); err != nil {
					log.Printf("[app] devbot: %v", err)
				}
			}()
		}, nil,
	)
}

func newPreferenceStorage(cfg config.Storage) (usecase.PreferenceStorage, func(), error) {
	switch cfg.Backend {
	case config.StorageBackendRedis:
		rdb := redis.NewClient(
			&redis.Options{
				Addr: cfg.RedisEndpoint,
			},
		)
		return key_value.NewPreferenceStorage(rdb), func() { _ = rdb.Close() }, nil
	case config.StorageBackendSQLite:
		db, err := sql.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		storage, err := sql.NewPreferenceStorage(db)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {
			if conn, err := db.DB(); err == nil {
				_ = conn.Close()
			}
		}, nil
	default:
		return in_memory.NewPreferenceStorage(), func() {}, nil
	}
}

func loadKnowledge(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[app] failed to read knowledge file %s: %v", path, err)
		return ""
	}
	return string(data)
}
