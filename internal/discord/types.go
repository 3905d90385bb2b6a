package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/hunterjsb/boardbot/internal/cache"
	"github.com/hunterjsb/boardbot/internal/engine"
)

// InteractionHandler handles one kind of Discord interaction
type InteractionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate)

// DiscordBot represents a Discord bot
type DiscordBot struct {
	Session   *discordgo.Session
	Config    *Config
	Engine    *engine.Engine
	OpenAI    *OpenAIClient
	BotUserID string
	GuildID   string
	Commands  []*discordgo.ApplicationCommand

	CommandHandlers      map[string]InteractionHandler
	AutocompleteHandlers map[string]InteractionHandler
	// ComponentHandlers and ModalHandlers are keyed by custom ID action
	ComponentHandlers    map[string]InteractionHandler
	ModalHandlers        map[string]InteractionHandler

	// pendingResets maps a confirmation token to a team name
	pendingResets *cache.Cache[string]
	// reviewed maps a review message ID to the helper who claimed it
	reviewed      *cache.Cache[string]
	stopJanitors  []func()

	log log.FieldLogger
}

// Config holds Discord bot configuration
type Config struct {
	DiscordToken       string
	OpenAIToken        string
	GuildID            string
	ReviewChannelID    string
	HelperRoleID       string
	OwnerID            string
	MaxTokens          int
	Temperature        float64
	ResetConfirmWindow time.Duration
}

// OpenAIClient wraps the OpenAI API client
type OpenAIClient struct {
	client      *openai.Client
	maxTokens   int
	temperature float32
}
