package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/hunterjsb/boardbot/internal/engine"
)

// maxAutocompleteChoices is Discord's limit per response
const maxAutocompleteChoices = 25

// channelTeam resolves the team that owns the interaction's channel.
// Returns nil error on success, or sends an error message to Discord on failure.
func (b *DiscordBot) channelTeam(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) (engine.Team, error) {
	team, err := b.Engine.TeamForChannel(ctx, i.ChannelID)
	if err != nil {
		if errors.Is(err, engine.ErrTeamNotFound) {
			b.sendError(s, i, "No Team Here", "Run this command in your team's channel.")
		} else {
			b.sendEngineError(s, i, err)
		}
		return engine.Team{}, err
	}
	return team, nil
}

// handleMoveCommand handles the /move command
func (b *DiscordBot) handleMoveCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Acknowledge the interaction immediately
	if !b.deferResponse(s, i, false) {
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	team, err := b.channelTeam(ctx, s, i)
	if err != nil {
		return // Error already sent to Discord
	}

	direction := stringOption(i.ApplicationCommandData().Options, "direction", "")
	res, err := b.Engine.Move(ctx, team.Name, direction)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}
	b.respondEmbeds(s, i, formatMoveEmbed(res))
}

// handleTransportCommand handles the /transport command
func (b *DiscordBot) handleTransportCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, false) {
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	team, err := b.channelTeam(ctx, s, i)
	if err != nil {
		return // Error already sent to Discord
	}

	res, err := b.Engine.Transport(ctx, team.Name)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}
	b.respondEmbeds(s, i, formatMoveEmbed(res))
}

// handleStatusCommand handles the /status command
func (b *DiscordBot) handleStatusCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, false) {
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	team, err := b.channelTeam(ctx, s, i)
	if err != nil {
		return // Error already sent to Discord
	}

	status, err := b.Engine.Status(ctx, team.Name)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}
	b.respondEmbeds(s, i, formatStatusEmbed(status))
}

// handleMapCommand renders the board and attaches it to the response
func (b *DiscordBot) handleMapCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, false) {
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	options := i.ApplicationCommandData().Options
	mode := engine.MapMode(stringOption(options, "mode", string(engine.MapTeam)))
	focus := stringOption(options, "team", "")

	if mode == engine.MapTeam && focus == "" {
		team, err := b.channelTeam(ctx, s, i)
		if err != nil {
			return // Error already sent to Discord
		}
		focus = team.Name
	}

	img, err := b.Engine.Render(ctx, mode, focus)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}

	title := "🗺️ The Board"
	if mode == engine.MapTeam {
		title = fmt.Sprintf("🗺️ %s's Map", focus)
	}
	embeds := []*discordgo.MessageEmbed{{
		Title: title,
		Color: colorMoved,
		Image: &discordgo.MessageEmbedImage{URL: "attachment://" + mapFileName},
	}}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &embeds,
		Files: []*discordgo.File{{
			Name:        mapFileName,
			ContentType: "image/png",
			Reader:      bytes.NewReader(img),
		}},
	}); err != nil {
		b.log.Errorf("Error editing interaction response: %v", err)
	}
}

// handleForfeitCommand handles the /forfeit command
func (b *DiscordBot) handleForfeitCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, false) {
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	team, err := b.channelTeam(ctx, s, i)
	if err != nil {
		return // Error already sent to Discord
	}

	res, err := b.Engine.Forfeit(ctx, team.Name)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}
	b.respondEmbeds(s, i, formatResolutionEmbed(res, true))
}

// handleInventoryCommand lists the team's unused items
func (b *DiscordBot) handleInventoryCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, false) {
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	team, err := b.channelTeam(ctx, s, i)
	if err != nil {
		return // Error already sent to Discord
	}

	items, err := b.Engine.Items(ctx, team.Name, false)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}
	b.respondEmbeds(s, i, formatInventoryEmbed(team.Name, items))
}

// handleUseItemCommand consumes a one-off item
func (b *DiscordBot) handleUseItemCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, false) {
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	team, err := b.channelTeam(ctx, s, i)
	if err != nil {
		return // Error already sent to Discord
	}

	itemID := stringOption(i.ApplicationCommandData().Options, "item", "")
	item, err := b.Engine.UseItem(ctx, team.Name, itemID)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s used", itemIcon(item), item.Name),
		Description: item.Description,
		Color:       colorSuccess,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Used by " + interactionUserName(i)},
	}
	b.respondEmbeds(s, i, embed)
}

// handleUseItemAutocomplete suggests the team's one-off items
func (b *DiscordBot) handleUseItemAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := handlerContext()
	defer cancel()

	var choices []*discordgo.ApplicationCommandOptionChoice
	if team, err := b.Engine.TeamForChannel(ctx, i.ChannelID); err == nil {
		typed := ""
		if opt := focusedOption(i.ApplicationCommandData().Options); opt != nil {
			typed = opt.StringValue()
		}
		if items, err := b.Engine.Items(ctx, team.Name, false); err == nil {
			choices = itemChoices(items, typed)
		}
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		b.log.Errorf("Error sending autocomplete: %v", err)
	}
}

// itemChoices filters one-off items by name for autocomplete
func itemChoices(items []engine.Item, typed string) []*discordgo.ApplicationCommandOptionChoice {
	typed = strings.ToLower(strings.TrimSpace(typed))
	choices := []*discordgo.ApplicationCommandOptionChoice{}
	for _, it := range items {
		if !it.OneOff || it.Consumed {
			continue
		}
		if typed != "" && !strings.Contains(strings.ToLower(it.Name), typed) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s (%s from %s)", it.Name, it.Kind, it.Tile),
			Value: it.ID,
		})
		if len(choices) == maxAutocompleteChoices {
			break
		}
	}
	return choices
}

// handleCreateTeamCommand creates a team bound to a channel
func (b *DiscordBot) handleCreateTeamCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, true) {
		return
	}
	if !b.isOwner(i) {
		b.sendError(s, i, "Not Allowed", "Only the event owner can create teams.")
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	options := optionMap(i.ApplicationCommandData().Options)
	name := ""
	if opt, ok := options["name"]; ok {
		name = opt.StringValue()
	}
	channelID := i.ChannelID
	if opt, ok := options["channel"]; ok {
		if ch := opt.ChannelValue(nil); ch != nil {
			channelID = ch.ID
		}
	}

	if _, err := b.Engine.TeamForChannel(ctx, channelID); err == nil {
		b.sendError(s, i, "Channel Taken", fmt.Sprintf("<#%s> already belongs to a team.", channelID))
		return
	}

	team, err := b.Engine.CreateTeam(ctx, name, channelID)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}

	b.respondEmbeds(s, i, &discordgo.MessageEmbed{
		Title:       "🏁 Team Created",
		Description: fmt.Sprintf("**%s** starts on **%s** and plays in <#%s>.", team.Name, team.Location, team.ChannelID),
		Color:       colorSuccess,
	})
}
