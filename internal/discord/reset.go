package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// resetToken returns the token part of a reset modal custom ID
func resetToken(customID string) string {
	_, token, _ := strings.Cut(customID, customIDSeparator)
	return token
}

// handleResetTeamCommand opens a confirmation modal for resetting a team.
// The pending confirmation expires after the configured window.
func (b *DiscordBot) handleResetTeamCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.isOwner(i) {
		b.respondEphemeral(s, i, "Only the event owner can reset teams.")
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	name := stringOption(i.ApplicationCommandData().Options, "team", "")
	team, err := b.Engine.Team(ctx, name)
	if err != nil {
		title, description := userError(err)
		b.respondEphemeral(s, i, fmt.Sprintf("**%s**: %s", title, description))
		return
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	b.pendingResets.Set(token, team.Name)

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: actionReset + customIDSeparator + token,
			Title:    "Reset " + team.Name,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "confirm",
							Label:       "Type the team name to confirm",
							Style:       discordgo.TextInputShort,
							Placeholder: team.Name,
							Required:    true,
							MaxLength:   64,
						},
					},
				},
			},
		},
	}); err != nil {
		b.pendingResets.Delete(token)
		b.log.Errorf("Error opening reset modal: %v", err)
	}
}

// handleResetModal performs the reset once the owner has confirmed it
func (b *DiscordBot) handleResetModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.isOwner(i) {
		b.respondEphemeral(s, i, "Only the event owner can reset teams.")
		return
	}

	data := i.ModalSubmitData()
	name, ok := b.pendingResets.Take(resetToken(data.CustomID))
	if !ok {
		b.respondEphemeral(s, i, "This confirmation has expired. Run `/resetteam` again.")
		return
	}
	if typed := modalValue(data, "confirm"); !strings.EqualFold(typed, name) {
		b.respondEphemeral(s, i, fmt.Sprintf("The name did not match **%s**. Nothing was reset.", name))
		return
	}

	if !b.deferResponse(s, i, true) {
		return
	}
	ctx, cancel := handlerContext()
	defer cancel()

	team, err := b.Engine.Reset(ctx, name)
	if err != nil {
		b.sendEngineError(s, i, err)
		return
	}

	b.log.WithField("team", team.Name).WithField("user", interactionUserID(i)).Warn("Team reset by owner")
	b.respondEmbeds(s, i, &discordgo.MessageEmbed{
		Title:       "♻️ Team Reset",
		Description: fmt.Sprintf("**%s** is back on **%s** with no progress or items.", team.Name, team.Location),
		Color:       colorPenalty,
	})
}
