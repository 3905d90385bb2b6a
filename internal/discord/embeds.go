package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hunterjsb/boardbot/internal/catalog"
	"github.com/hunterjsb/boardbot/internal/engine"
)

const (
	colorMoved    = 0x3498db
	colorSuccess  = 0x2ecc71
	colorPenalty  = 0xe67e22
	colorRejected = 0xe74c3c
	colorNeutral  = 0x95a5a6
)

// mapFileName is the attachment name embeds refer to
const mapFileName = "map.png"

// slotLine describes a slot and its progress on one line
func slotLine(slot catalog.Slot, p engine.Progress) string {
	return fmt.Sprintf("%s **%s** (%s) · %d/%d %s",
		slot.Type.Emoji(), slot.Title, slot.Type.Label(), p.Count(slot.Kind), slot.Required, plural(string(slot.Kind), slot.Required))
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// tileTitle names a tile with its catalog name when it has one
func tileTitle(def catalog.TileDefinition) string {
	if def.Name == "" {
		return def.Tile.String()
	}
	return fmt.Sprintf("%s · %s", def.Tile, def.Name)
}

// nextStepText tells the team what it can do after a state change
func nextStepText(active *engine.ActiveSlot, canMove, canTransport bool, def catalog.TileDefinition) string {
	switch {
	case active != nil:
		text := "Up next: " + slotLine(active.Slot, active.Progress)
		if active.Slot.Description != "" {
			text += "\n" + active.Slot.Description
		}
		return text
	case canTransport:
		return fmt.Sprintf("All events cleared. Use `/move` or `/transport` to jump to **%s**.", def.TransportTo)
	case canMove:
		return "All events cleared. Use `/move` to continue."
	default:
		return ""
	}
}

func formatMoveEmbed(res engine.MoveResult) *discordgo.MessageEmbed {
	how := fmt.Sprintf("moved **%s**", res.Direction)
	if res.Transport {
		how = "took the transport link"
	}
	desc := fmt.Sprintf("**%s** %s from %s to **%s**.", res.Team.Name, how, res.From, res.To)
	if res.FirstVisit {
		desc += "\nA new tile has been explored!"
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🧭 " + tileTitle(res.Tile),
		Description: desc,
		Color:       colorMoved,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if len(res.Tile.Slots) == 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Events",
			Value: "Nothing to do here. Keep moving!",
		})
		return embed
	}
	if res.Active != nil {
		embed.Color = res.Active.Slot.Type.Color()
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("Events (%d)", len(res.Tile.Slots)),
		Value: slotList(res.Tile, res.Active),
	})
	return embed
}

// slotList renders every slot on a tile, marking the open one
func slotList(def catalog.TileDefinition, active *engine.ActiveSlot) string {
	lines := make([]string, 0, len(def.Slots))
	for idx, slot := range def.Slots {
		marker := "▫️"
		switch {
		case active == nil || idx < active.Index:
			marker = "✅"
		case idx == active.Index:
			marker = "▶️"
		}
		line := fmt.Sprintf("%s %s **%s** · %d %s", marker, slot.Type.Emoji(), slot.Title, slot.Required, plural(string(slot.Kind), slot.Required))
		if active != nil && idx == active.Index {
			line = fmt.Sprintf("%s %s", marker, slotLine(slot, active.Progress))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatStatusEmbed(st engine.TeamStatus) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📍 %s", st.Team.Name),
		Description: fmt.Sprintf("On **%s** · %d %s explored", tileTitle(st.Tile), len(st.Team.Explored), plural("tile", len(st.Team.Explored))),
		Color:       colorNeutral,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if st.Active != nil {
		embed.Color = st.Active.Slot.Type.Color()
	}

	if len(st.Tile.Slots) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Events",
			Value: slotList(st.Tile, st.Active),
		})
	}

	next := nextStepText(nil, st.CanMove, st.CanTransport, st.Tile)
	if st.Active != nil && st.Active.Slot.Description != "" {
		next = st.Active.Slot.Description
	}
	if next != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Next", Value: next})
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("Items (%d)", len(st.Items)),
		Value: itemSummary(st.Items),
	})
	return embed
}

// itemSummary lists item names compactly, or a placeholder
func itemSummary(items []engine.Item) string {
	if len(items) == 0 {
		return "None"
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, itemIcon(it)+" "+it.Name)
	}
	return strings.Join(names, ", ")
}

func itemIcon(it engine.Item) string {
	if it.Kind == engine.Penalty {
		return "💀"
	}
	return "🎁"
}

func formatInventoryEmbed(team string, items []engine.Item) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("🎒 %s's Inventory", team),
		Color:     colorNeutral,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if len(items) == 0 {
		embed.Description = "No rewards or penalties yet."
		return embed
	}

	for _, it := range items {
		value := it.Description
		if value == "" {
			value = "No description"
		}
		usage := "permanent"
		if it.OneOff {
			usage = "one-off, use with `/useitem`"
		}
		value += fmt.Sprintf("\n*%s from %s · %s*", it.Kind, it.Tile, usage)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  itemIcon(it) + " " + it.Name,
			Value: value,
		})
	}
	if len(embed.Fields) > 25 {
		embed.Fields = embed.Fields[:25]
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Showing 25 of %d items", len(items))}
	}
	return embed
}

// formatResolutionEmbed describes an approval or forfeit to the helper or team
func formatResolutionEmbed(res engine.ResolutionResult, forfeited bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("%s %s", res.Slot.Type.Emoji(), res.Slot.Title),
		Color:     res.Slot.Type.Color(),
		Timestamp: time.Now().Format(time.RFC3339),
	}

	switch {
	case forfeited:
		embed.Description = fmt.Sprintf("**%s** forfeited this event on %s.", res.Team.Name, res.Tile.Tile)
		embed.Color = colorPenalty
	case res.Resolved:
		embed.Description = fmt.Sprintf("**%s** completed this event on %s!", res.Team.Name, res.Tile.Tile)
		embed.Color = colorSuccess
	default:
		embed.Description = fmt.Sprintf("Approved for **%s**: %d/%d %s.", res.Team.Name,
			res.Progress.Count(res.Slot.Kind), res.Slot.Required, plural(string(res.Slot.Kind), res.Slot.Required))
	}

	if res.Item != nil {
		embed.Fields = append(embed.Fields, itemField(*res.Item))
	}
	if res.Resolved {
		if next := nextStepText(res.Next, res.CanMove, res.CanTransport, res.Tile); next != "" {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Next", Value: next})
		}
	}
	return embed
}

func itemField(it engine.Item) *discordgo.MessageEmbedField {
	name := "🎁 Reward: " + it.Name
	if it.Kind == engine.Penalty {
		name = "💀 Penalty: " + it.Name
	}
	value := it.Description
	if value == "" {
		value = "\u200b"
	}
	return &discordgo.MessageEmbedField{Name: name, Value: value}
}

// formatReviewEmbed is posted to the review channel for helpers
func formatReviewEmbed(team string, def catalog.TileDefinition, active engine.ActiveSlot, submitter, note, imageURL string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📥 Submission from %s", team),
		Description: fmt.Sprintf("%s\non %s", slotLine(active.Slot, active.Progress), tileTitle(def)),
		Color:       active.Slot.Type.Color(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Submitted by", Value: submitter, Inline: true},
			{Name: "Counts as", Value: "1 " + string(active.Slot.Kind), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if note != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Note", Value: note})
	}
	if imageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: imageURL}
	}
	return embed
}

// formatNotificationEmbed renders an engine notification for a team channel
func formatNotificationEmbed(n engine.Notification) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Text,
		Color:       notificationColor(n.Kind),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if n.Item != nil {
		embed.Fields = append(embed.Fields, itemField(*n.Item))
	}
	if n.Map != nil {
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + mapFileName}
	}
	return embed
}

func notificationColor(kind engine.NotificationKind) int {
	switch kind {
	case engine.NotifyMoved:
		return colorMoved
	case engine.NotifyCompleted:
		return colorSuccess
	case engine.NotifyForfeited:
		return colorPenalty
	case engine.NotifyRejected:
		return colorRejected
	default:
		return colorNeutral
	}
}
