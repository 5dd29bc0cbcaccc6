package config

import (
	"fmt"
	"time"

	"github.com/iamvkosarev/amc-discord/pkg/ratelimit"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	RelayModeMesh = "mesh"
	RelayModeHub  = "hub"

	StorageBackendMemory = "memory"
	StorageBackendRedis  = "redis"
	StorageBackendSQLite = "sqlite"
)

type OpenAI struct {
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY_OPENROUTER" env-required:"true"`
	OpenAIBaseURL      string        `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://openrouter.ai/api/v1"`
	DefaultModel       string        `yaml:"default_model" env:"DEFAULT_AI_MODEL" env-default:"google/gemini-3-flash-preview"`
	TranslationModel   string        `yaml:"translation_model" env:"TRANSLATION_AI_MODEL" env-default:"openai/gpt-4.1-mini"`
	VisionModel        string        `yaml:"vision_model" env:"VISION_AI_MODEL" env-default:"openai/gpt-4o"`
	ReasoningEffort    string        `yaml:"reasoning_effort" env:"REASONING_EFFORT" env-default:"medium"`
	RequestTimeout     time.Duration `yaml:"request_timeout" env:"OPENAI_REQUEST_TIMEOUT" env-default:"2m"`
	ContextTokenBudget int           `yaml:"context_token_budget" env:"CONTEXT_TOKEN_BUDGET" env-default:"1500"`
}

type Discord struct {
	Token           string   `env:"DISCORD_TOKEN"`
	DevToken        string   `env:"DISCORD_TOKEN_DEV"`
	ApplicationID   string   `yaml:"application_id" env:"APPLICATION_ID"`
	GuildID         string   `yaml:"guild_id" env:"GUILD_ID"`
	ElevatedRoleIDs []string `yaml:"elevated_role_ids" env:"ELEVATED_ROLE_IDS" env-separator:","`
	AdminUserIDs    []string `yaml:"admin_user_ids" env:"ADMIN_USER_IDS" env-separator:","`
}

// RelayGroup is one set of channels translated into each other. Channels maps
// a language key ("english", "thai", ...) to a Discord channel id.
type RelayGroup struct {
	Name           string            `yaml:"name"`
	Mode           string            `yaml:"mode"`
	Pivot          string            `yaml:"pivot"`
	Channels       map[string]string `yaml:"channels"`
	ContextSize    int               `yaml:"context_size"`
	AnnounceInGame bool              `yaml:"announce_in_game"`
	AcceptBots     bool              `yaml:"accept_bots"`
}

type Relay struct {
	GameChatChannelID   string        `yaml:"game_chat_channel_id" env:"GAME_CHAT_CHANNEL_ID"`
	GameChatBotID       string        `yaml:"game_chat_bot_id" env:"GAME_CHAT_BOT_ID"`
	GameChatGroup       string        `yaml:"game_chat_group" env:"GAME_CHAT_GROUP" env-default:"game"`
	GameChatContextSize int           `yaml:"game_chat_context_size" env-default:"10"`
	ContextCapacity     int           `yaml:"context_capacity" env-default:"15"`
	AnnounceColor       string        `yaml:"announce_color" env-default:"FFFFFF"`
	TaskTimeout         time.Duration `yaml:"task_timeout" env-default:"2m"`
	Groups              []RelayGroup  `yaml:"groups"`
}

type Game struct {
	APIURL           string        `yaml:"api_url" env:"GAME_SERVER_API_URL" env-default:"http://asean-mt-server:8080"`
	APIPassword      string        `env:"GAME_API_PASSWORD"`
	DBPath           string        `yaml:"db_path" env:"GAME_DB_PATH" env-default:"/var/lib/motortown/gamedata.db"`
	ActivePlayersURL string        `yaml:"active_players_url" env:"ACTIVE_PLAYERS_URL"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env-default:"10s"`
	QueryTimeout     time.Duration `yaml:"query_timeout" env-default:"5s"`
}

type Storage struct {
	Backend       string `yaml:"backend" env:"PREFERENCE_STORAGE" env-default:"sqlite"`
	RedisEndpoint string `yaml:"redis_endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
	SQLitePath    string `yaml:"sqlite_path" env:"RADIO_DB_PATH" env-default:"/var/lib/radio/radio.db"`
}

type Agent struct {
	MaxIterations       int    `yaml:"max_iterations" env-default:"20"`
	InGameMaxIterations int    `yaml:"in_game_max_iterations" env-default:"10"`
	KnowledgePath       string `yaml:"knowledge_path" env:"KNOWLEDGE_PATH"`
	LocalTimezone       string `yaml:"local_timezone" env:"LOCAL_TIMEZONE" env-default:"Asia/Bangkok"`
	ServerName          string `yaml:"server_name" env-default:"ASEAN Motor Club"`
	InGamePrefix        string `yaml:"in_game_prefix" env-default:"/bot"`
	InGameAnswerLimit   int    `yaml:"in_game_answer_limit" env-default:"300"`
	HistoryLimit        int    `yaml:"history_limit" env-default:"20"`
}

type DevBot struct {
	RepoPath        string   `yaml:"repo_path" env:"JARVIS_REPO_PATH"`
	Model           string   `yaml:"model" env:"JARVIS_AI_MODEL" env-default:"anthropic/claude-sonnet-4"`
	AllowedChannels []string `yaml:"allowed_channels" env:"JARVIS_ALLOWED_CHANNELS" env-separator:","`
	MaxIterations   int      `yaml:"max_iterations" env-default:"20"`
}

type Announcer struct {
	Disabled bool     `yaml:"disabled" env:"ANNOUNCER_DISABLED"`
	Schedule string   `yaml:"schedule" env-default:"@every 15m"`
	Color    string   `yaml:"color" env-default:"53EAFD"`
	Messages []string `yaml:"messages"`
}

type RateLimits struct {
	InGame    []ratelimit.Window `yaml:"in_game"`
	Knowledge []ratelimit.Window `yaml:"knowledge"`
}

type Config struct {
	OpenAI     OpenAI     `yaml:"openai"`
	Discord    Discord    `yaml:"discord"`
	Relay      Relay      `yaml:"relay"`
	Game       Game       `yaml:"game"`
	Storage    Storage    `yaml:"storage"`
	Agent      Agent      `yaml:"agent"`
	DevBot     DevBot     `yaml:"devbot"`
	Announcer  Announcer  `yaml:"announcer"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath != "" {
		if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.RateLimits.InGame) == 0 {
		c.RateLimits.InGame = []ratelimit.Window{
			{MaxCalls: 3, Period: 5 * time.Minute},
			{MaxCalls: 4, Period: 15 * time.Minute},
		}
	}
	if len(c.RateLimits.Knowledge) == 0 {
		c.RateLimits.Knowledge = []ratelimit.Window{
			{MaxCalls: 5, Period: 10 * time.Minute},
		}
	}
	for i := range c.Relay.Groups {
		group := &c.Relay.Groups[i]
		if group.Mode == "" {
			group.Mode = RelayModeMesh
		}
		if group.Pivot == "" {
			group.Pivot = "english"
		}
		if group.ContextSize == 0 {
			group.ContextSize = 5
		}
	}
}

func (c *Config) validate() error {
	for _, group := range c.Relay.Groups {
		if group.Mode != RelayModeMesh && group.Mode != RelayModeHub {
			return fmt.Errorf("relay group %s: unknown mode %q", group.Name, group.Mode)
		}
		if _, ok := group.Channels[group.Pivot]; !ok {
			return fmt.Errorf("relay group %s: pivot %q has no channel", group.Name, group.Pivot)
		}
	}
	switch c.Storage.Backend {
	case StorageBackendMemory, StorageBackendRedis, StorageBackendSQLite:
	default:
		return fmt.Errorf("unknown preference storage backend %q", c.Storage.Backend)
	}
	return nil
}
