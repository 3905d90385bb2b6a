package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/hunterjsb/boardbot/internal/cache"
	"github.com/hunterjsb/boardbot/internal/engine"
)

// handlerTimeout bounds the engine work done for one interaction
const handlerTimeout = 30 * time.Second

// reviewClaimTTL is how long a pressed review button stays claimed
const reviewClaimTTL = 24 * time.Hour

var directionChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "North", Value: "north"},
	{Name: "South", Value: "south"},
	{Name: "East", Value: "east"},
	{Name: "West", Value: "west"},
}

var mapModeChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "Whole board", Value: string(engine.MapAll)},
	{Name: "My team", Value: string(engine.MapTeam)},
}

// Command definitions
var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "move",
		Description: "Move your team one tile",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "direction",
				Description: "Which way to go",
				Required:    true,
				Choices:     directionChoices,
			},
		},
	},
	{
		Name:        "transport",
		Description: "Take the transport link on your current tile",
	},
	{
		Name:        "status",
		Description: "Show your team's tile, current event and items",
	},
	{
		Name:        "map",
		Description: "Show the board",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "mode",
				Description: "Whole board or only what your team has explored (default: team)",
				Required:    false,
				Choices:     mapModeChoices,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "team",
				Description: "Team to show (default: this channel's team)",
				Required:    false,
			},
		},
	},
	{
		Name:        "submit",
		Description: "Submit a screenshot for your current event",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Name:        "screenshot",
				Description: "Proof of the screenshot or item drop",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "note",
				Description: "Anything the reviewers should know",
				Required:    false,
			},
		},
	},
	{
		Name:        "forfeit",
		Description: "Give up your current event and take a penalty",
	},
	{
		Name:        "inventory",
		Description: "List your team's rewards and penalties",
	},
	{
		Name:        "useitem",
		Description: "Use up a one-off reward or penalty",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "item",
				Description:  "The item to use",
				Required:     true,
				Autocomplete: true,
			},
		},
	},
	{
		Name:        "hint",
		Description: "Ask for a hint on your current event",
	},
	{
		Name:        "createteam",
		Description: "Create a team (owner only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "name",
				Description: "Team name",
				Required:    true,
				MaxLength:   engine.MaxTeamNameLength,
			},
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "The team's channel (default: this channel)",
				Required:     false,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
		},
	},
	{
		Name:        "resetteam",
		Description: "Reset a team to the start tile (owner only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "team",
				Description: "Team to reset",
				Required:    true,
			},
		},
	},
}

// NewDiscordBot creates a new Discord bot with the provided configuration
func NewDiscordBot(config *Config, eng *engine.Engine) (*DiscordBot, error) {
	session, err := discordgo.New("Bot " + config.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	bot := &DiscordBot{
		Session:              session,
		Config:               config,
		Engine:               eng,
		GuildID:              config.GuildID,
		CommandHandlers:      make(map[string]InteractionHandler),
		AutocompleteHandlers: make(map[string]InteractionHandler),
		ComponentHandlers:    make(map[string]InteractionHandler),
		ModalHandlers:        make(map[string]InteractionHandler),
		pendingResets:        cache.New[string](config.ResetConfirmWindow),
		reviewed:             cache.New[string](reviewClaimTTL),
		log:                  log.WithField("component", "discord"),
	}
	if config.OpenAIToken != "" {
		bot.OpenAI = NewOpenAIClient(config.OpenAIToken, config.MaxTokens, config.Temperature)
	}

	// Set up command handlers
	bot.CommandHandlers["move"] = bot.handleMoveCommand
	bot.CommandHandlers["transport"] = bot.handleTransportCommand
	bot.CommandHandlers["status"] = bot.handleStatusCommand
	bot.CommandHandlers["map"] = bot.handleMapCommand
	bot.CommandHandlers["submit"] = bot.handleSubmitCommand
	bot.CommandHandlers["forfeit"] = bot.handleForfeitCommand
	bot.CommandHandlers["inventory"] = bot.handleInventoryCommand
	bot.CommandHandlers["useitem"] = bot.handleUseItemCommand
	bot.CommandHandlers["hint"] = bot.handleHintCommand
	bot.CommandHandlers["createteam"] = bot.handleCreateTeamCommand
	bot.CommandHandlers["resetteam"] = bot.handleResetTeamCommand

	bot.AutocompleteHandlers["useitem"] = bot.handleUseItemAutocomplete

	bot.ComponentHandlers[actionApprove] = bot.handleApproveButton
	bot.ComponentHandlers[actionReject] = bot.handleRejectButton

	bot.ModalHandlers[actionRejectReason] = bot.handleRejectModal
	bot.ModalHandlers[actionReset] = bot.handleResetModal

	return bot, nil
}

// Login resolves the bot user, which is also the application ID
func (b *DiscordBot) Login() error {
	user, err := b.Session.User("@me")
	if err != nil {
		return fmt.Errorf("error getting bot user: %w", err)
	}
	b.BotUserID = user.ID
	return nil
}

// Start connects to Discord and registers the slash commands
func (b *DiscordBot) Start() error {
	if err := b.Login(); err != nil {
		return err
	}

	// Register interaction handler
	b.Session.AddHandler(b.interactionHandler)

	// Open a websocket connection to Discord
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening Discord session: %w", err)
	}

	if err := b.RegisterCommands(); err != nil {
		return err
	}

	b.stopJanitors = append(b.stopJanitors,
		b.pendingResets.StartJanitor(time.Minute),
		b.reviewed.StartJanitor(time.Hour),
	)

	b.log.WithField("commands", len(b.Commands)).Info("Bot is now running with slash commands registered")
	return nil
}

// Stop closes the Discord session
func (b *DiscordBot) Stop() error {
	for _, stop := range b.stopJanitors {
		stop()
	}
	b.stopJanitors = nil
	return b.Session.Close()
}

// Ready reports whether the gateway connection is up
func (b *DiscordBot) Ready() bool {
	return b.Session != nil && b.Session.DataReady
}

// RegisterCommands replaces the registered slash commands with the current set
func (b *DiscordBot) RegisterCommands() error {
	registered, err := b.Session.ApplicationCommandBulkOverwrite(b.BotUserID, b.GuildID, commands)
	if err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}
	b.Commands = registered
	return nil
}

// ClearCommands removes every slash command registered by the bot
func (b *DiscordBot) ClearCommands() error {
	if _, err := b.Session.ApplicationCommandBulkOverwrite(b.BotUserID, b.GuildID, []*discordgo.ApplicationCommand{}); err != nil {
		return fmt.Errorf("error clearing commands: %w", err)
	}
	b.Commands = nil
	return nil
}

// interactionHandler routes Discord interaction events
func (b *DiscordBot) interactionHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var (
		handler InteractionHandler
		ok      bool
	)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		handler, ok = b.CommandHandlers[i.ApplicationCommandData().Name]
	case discordgo.InteractionApplicationCommandAutocomplete:
		handler, ok = b.AutocompleteHandlers[i.ApplicationCommandData().Name]
	case discordgo.InteractionMessageComponent:
		handler, ok = b.ComponentHandlers[customIDAction(i.MessageComponentData().CustomID)]
	case discordgo.InteractionModalSubmit:
		handler, ok = b.ModalHandlers[customIDAction(i.ModalSubmitData().CustomID)]
	}

	if ok {
		handler(s, i)
	}
}

func handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

// deferResponse acknowledges the interaction so slow work can follow
func (b *DiscordBot) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) bool {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	if err := s.InteractionRespond(i.Interaction, resp); err != nil {
		b.log.Errorf("Error acknowledging interaction: %v", err)
		return false
	}
	return true
}

// respondEmbeds edits the deferred response
func (b *DiscordBot) respondEmbeds(s *discordgo.Session, i *discordgo.InteractionCreate, embeds ...*discordgo.MessageEmbed) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &embeds,
	}); err != nil {
		b.log.Errorf("Error editing interaction response: %v", err)
	}
}

// respondEphemeral answers immediately with a message only the user can see
func (b *DiscordBot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		b.log.Errorf("Error sending ephemeral response: %v", err)
	}
}

// sendError sends an error embed
func (b *DiscordBot) sendError(s *discordgo.Session, i *discordgo.InteractionCreate, title, description string) {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       0xff0000,
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	}); err != nil {
		b.log.Errorf("Error editing error response: %v", err)
	}
}

// sendEngineError maps an engine error to a user-facing error embed
func (b *DiscordBot) sendEngineError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	title, description := userError(err)
	if !engine.IsLogical(err) {
		b.log.WithField("user", interactionUserID(i)).Errorf("Interaction failed: %v", err)
	}
	b.sendError(s, i, title, description)
}
