package discord

import (
	"errors"
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/hunterjsb/boardbot/internal/engine"
)

// optionMap indexes command options by name
func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// stringOption returns the named string option, or fallback when it is absent
func stringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name, fallback string) string {
	if opt, ok := optionMap(options)[name]; ok {
		if v := opt.StringValue(); v != "" {
			return v
		}
	}
	return fallback
}

// focusedOption returns the option being typed in an autocomplete interaction
func focusedOption(options []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range options {
		if opt.Focused {
			return opt
		}
	}
	return nil
}

// interactionUser returns the user behind an interaction in a guild or DM
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if u := interactionUser(i); u != nil {
		return u.ID
	}
	return ""
}

func interactionUserName(i *discordgo.InteractionCreate) string {
	u := interactionUser(i)
	switch {
	case u == nil:
		return "unknown"
	case i.Member != nil && i.Member.Nick != "":
		return i.Member.Nick
	case u.GlobalName != "":
		return u.GlobalName
	default:
		return u.Username
	}
}

// isOwner reports whether the interaction came from the configured owner
func (b *DiscordBot) isOwner(i *discordgo.InteractionCreate) bool {
	return b.Config.OwnerID != "" && interactionUserID(i) == b.Config.OwnerID
}

// isHelper reports whether the member holds the helper role. The owner always counts.
func (b *DiscordBot) isHelper(i *discordgo.InteractionCreate) bool {
	if b.isOwner(i) {
		return true
	}
	return i.Member != nil && b.Config.HelperRoleID != "" && slices.Contains(i.Member.Roles, b.Config.HelperRoleID)
}

// userError turns an engine error into an embed title and description
func userError(err error) (string, string) {
	switch {
	case errors.Is(err, engine.ErrTeamNotFound):
		return "Team Not Found", "This channel is not linked to a team, or the team does not exist."
	case errors.Is(err, engine.ErrTeamExists):
		return "Team Exists", "A team with that name already exists."
	case errors.Is(err, engine.ErrOutOfBounds):
		return "Can't Move There", "That move would take you off the board."
	case errors.Is(err, engine.ErrEventsPending):
		return "Events Pending", "Complete or forfeit every event on your tile before moving."
	case errors.Is(err, engine.ErrNoTransport):
		return "No Transport Link", "There is no transport link on this tile."
	case errors.Is(err, engine.ErrNoActiveEvent):
		return "No Active Event", "That event is not open for your team right now."
	case errors.Is(err, engine.ErrAlreadyResolved):
		return "Already Resolved", "That event has already been completed or forfeited."
	case errors.Is(err, engine.ErrItemNotFound):
		return "Item Not Found", "That item does not exist or has already been used."
	case errors.Is(err, engine.ErrInvalidInput):
		return "Invalid Input", err.Error()
	default:
		return "Something Went Wrong", "The board could not be updated. Nothing was changed; please try again."
	}
}
