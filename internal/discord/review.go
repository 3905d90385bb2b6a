package discord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/hunterjsb/boardbot/internal/catalog"
	"github.com/hunterjsb/boardbot/internal/engine"
	"github.com/hunterjsb/boardbot/internal/grid"
)

// Custom ID actions
const (
	actionApprove      = "approve"
	actionReject       = "reject"
	actionRejectReason = "rejectreason"
	actionReset        = "reset"
)

const customIDSeparator = ":"

// customIDAction returns the action prefix of a component or modal custom ID
func customIDAction(id string) string {
	action, _, _ := strings.Cut(id, customIDSeparator)
	return action
}

// reviewRef is the submission a review button or modal refers to
type reviewRef struct {
	Action string
	Team   string
	Tile   grid.Tile
	Slot   int
	Kind   catalog.EvidenceKind
}

// customID encodes the reference as action:team:tile:slot:kind
func (r reviewRef) customID() string {
	return strings.Join([]string{r.Action, r.Team, r.Tile.String(), strconv.Itoa(r.Slot), string(r.Kind)}, customIDSeparator)
}

func (r reviewRef) evidence() engine.Evidence {
	return engine.Evidence{Team: r.Team, Tile: r.Tile, Slot: r.Slot, Kind: r.Kind}
}

// parseReviewRef decodes a custom ID written by customID
func parseReviewRef(id string) (reviewRef, error) {
	parts := strings.Split(id, customIDSeparator)
	if len(parts) != 5 {
		return reviewRef{}, fmt.Errorf("malformed review id %q", id)
	}

	switch parts[0] {
	case actionApprove, actionReject, actionRejectReason:
	default:
		return reviewRef{}, fmt.Errorf("unknown review action %q", parts[0])
	}
	if parts[1] == "" {
		return reviewRef{}, fmt.Errorf("review id %q has no team", id)
	}
	tile, err := grid.ParseTile(parts[2])
	if err != nil {
		return reviewRef{}, err
	}
	slot, err := strconv.Atoi(parts[3])
	if err != nil || slot < 0 {
		return reviewRef{}, fmt.Errorf("bad slot in review id %q", id)
	}
	kind, err := catalog.ParseEvidenceKind(parts[4])
	if err != nil {
		return reviewRef{}, err
	}

	return reviewRef{Action: parts[0], Team: parts[1], Tile: tile, Slot: slot, Kind: kind}, nil
}

func reviewButtons(ref reviewRef) []discordgo.MessageComponent {
	approve, reject := ref, ref
	approve.Action = actionApprove
	reject.Action = actionReject

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Approve",
					Style:    discordgo.SuccessButton,
					CustomID: approve.customID(),
					Emoji:    &discordgo.ComponentEmoji{Name: "✅"},
				},
				discordgo.Button{
					Label:    "Reject",
					Style:    discordgo.DangerButton,
					CustomID: reject.customID(),
					Emoji:    &discordgo.ComponentEmoji{Name: "✖️"},
				},
			},
		},
	}
}

// handleSubmitCommand posts a screenshot to the review channel
func (b *DiscordBot) handleSubmitCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, true) {
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
	if status.Active == nil {
		b.sendError(s, i, "Nothing To Submit", "Every event on this tile is resolved. Use `/move` to continue.")
		return
	}

	data := i.ApplicationCommandData()
	options := data.Options
	attachmentID := stringOption(options, "screenshot", "")
	var imageURL string
	if data.Resolved != nil {
		if att, ok := data.Resolved.Attachments[attachmentID]; ok {
			imageURL = att.URL
		}
	}
	if imageURL == "" {
		b.sendError(s, i, "Invalid Input", "Attach a screenshot to submit.")
		return
	}

	ref := reviewRef{
		Team: team.Name,
		Tile: team.Location,
		Slot: status.Active.Index,
		Kind: status.Active.Slot.Kind,
	}
	embed := formatReviewEmbed(team.Name, status.Tile, *status.Active, interactionUserName(i), stringOption(options, "note", ""), imageURL)

	if _, err := s.ChannelMessageSendComplex(b.Config.ReviewChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: reviewButtons(ref),
	}); err != nil {
		b.log.WithField("team", team.Name).Errorf("Error posting submission: %v", err)
		b.sendError(s, i, "Submission Failed", "Could not reach the review channel. Please try again.")
		return
	}

	b.log.WithFields(log.Fields{"team": team.Name, "tile": team.Location.String(), "slot": ref.Slot}).Info("Submission posted for review")
	b.respondEmbeds(s, i, &discordgo.MessageEmbed{
		Title:       "📨 Submitted",
		Description: fmt.Sprintf("Your %s for **%s** is waiting for a helper.", status.Active.Slot.Kind, status.Active.Slot.Title),
		Color:       colorNeutral,
	})
}

// handleApproveButton records one approval for the submission on the message
func (b *DiscordBot) handleApproveButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ref, ok := b.reviewFromComponent(s, i)
	if !ok {
		return
	}
	if !b.claimReview(s, i) {
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		b.reviewed.Delete(i.Message.ID)
		b.log.Errorf("Error acknowledging review: %v", err)
		return
	}

	ctx, cancel := handlerContext()
	defer cancel()

	res, err := b.Engine.Approve(ctx, ref.evidence())
	if err != nil {
		b.finishReviewWithError(s, i, err)
		return
	}

	embed := reviewedEmbed(i.Message, colorSuccess, fmt.Sprintf("✅ Approved by %s · %d/%d", interactionUserName(i),
		res.Progress.Count(res.Slot.Kind), res.Slot.Required))
	b.closeReview(s, i, embed, formatResolutionEmbed(res, false))
}

// handleRejectButton asks the helper for an optional reason
func (b *DiscordBot) handleRejectButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ref, ok := b.reviewFromComponent(s, i)
	if !ok {
		return
	}
	ref.Action = actionRejectReason

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: ref.customID(),
			Title:    "Reject submission",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "reason",
							Label:       "Reason (shown to the team)",
							Style:       discordgo.TextInputParagraph,
							Placeholder: "e.g. the drop is not visible in the chat box",
							Required:    false,
							MaxLength:   300,
						},
					},
				},
			},
		},
	}); err != nil {
		b.log.Errorf("Error opening reject modal: %v", err)
	}
}

// handleRejectModal rejects the submission once the helper submits the reason
func (b *DiscordBot) handleRejectModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	ref, err := parseReviewRef(data.CustomID)
	if err != nil {
		b.respondEphemeral(s, i, "This review form is no longer valid.")
		return
	}
	if !b.isHelper(i) {
		b.respondEphemeral(s, i, "Only helpers can review submissions.")
		return
	}
	if i.Message == nil {
		b.respondEphemeral(s, i, "The submission message could not be found.")
		return
	}
	if !b.claimReview(s, i) {
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		b.reviewed.Delete(i.Message.ID)
		b.log.Errorf("Error acknowledging review: %v", err)
		return
	}

	ctx, cancel := handlerContext()
	defer cancel()

	reason := modalValue(data, "reason")
	if _, err := b.Engine.Reject(ctx, ref.evidence(), reason); err != nil {
		b.finishReviewWithError(s, i, err)
		return
	}

	footer := "✖️ Rejected by " + interactionUserName(i)
	if reason != "" {
		footer += ": " + reason
	}
	b.closeReview(s, i, reviewedEmbed(i.Message, colorRejected, footer), nil)
}

// reviewFromComponent parses the button and checks the presser may review
func (b *DiscordBot) reviewFromComponent(s *discordgo.Session, i *discordgo.InteractionCreate) (reviewRef, bool) {
	ref, err := parseReviewRef(i.MessageComponentData().CustomID)
	if err != nil {
		b.log.Warnf("Bad review button: %v", err)
		b.respondEphemeral(s, i, "This review button is no longer valid.")
		return reviewRef{}, false
	}
	if !b.isHelper(i) {
		b.respondEphemeral(s, i, "Only helpers can review submissions.")
		return reviewRef{}, false
	}
	return ref, true
}

// claimReview makes sure only one helper acts on a submission
func (b *DiscordBot) claimReview(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if b.reviewed.Add(i.Message.ID, interactionUserID(i)) {
		return true
	}
	b.respondEphemeral(s, i, "Another helper is already reviewing this submission.")
	return false
}

// finishReviewWithError reports a failed approval or rejection. Logical
// failures close the review; system failures leave it open for another try.
func (b *DiscordBot) finishReviewWithError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	title, description := userError(err)
	if !engine.IsLogical(err) {
		b.reviewed.Delete(i.Message.ID)
		b.log.WithField("message", i.Message.ID).Errorf("Review failed: %v", err)
		if _, ferr := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: fmt.Sprintf("**%s**: %s", title, description),
			Flags:   discordgo.MessageFlagsEphemeral,
		}); ferr != nil {
			b.log.Errorf("Error sending review followup: %v", ferr)
		}
		return
	}
	b.closeReview(s, i, reviewedEmbed(i.Message, colorNeutral, fmt.Sprintf("⚠️ Not applied: %s", strings.ToLower(title))), nil)
}

// closeReview replaces the review message embed and removes its buttons
func (b *DiscordBot) closeReview(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, extra *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if extra != nil {
		embeds = append(embeds, extra)
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds:     &embeds,
		Components: &[]discordgo.MessageComponent{},
	}); err != nil {
		b.log.Errorf("Error updating review message: %v", err)
	}
}

// reviewedEmbed copies the submission embed and stamps the outcome in the footer
func reviewedEmbed(msg *discordgo.Message, color int, footer string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: "Submission"}
	if msg != nil && len(msg.Embeds) > 0 {
		copied := *msg.Embeds[0]
		embed = &copied
	}
	embed.Color = color
	embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	return embed
}

// modalValue returns the value of the text input with the given custom ID
func modalValue(data discordgo.ModalSubmitInteractionData, id string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == id {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}
