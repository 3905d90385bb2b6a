package discord

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/hunterjsb/boardbot/internal/engine"
)

// messageSender is the part of *discordgo.Session the notifier uses
type messageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts engine notifications to team channels
type Notifier struct {
	sender messageSender
}

var _ engine.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier that posts through session
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{sender: session}
}

// Notify implements engine.Notifier
func (n *Notifier) Notify(ctx context.Context, note engine.Notification) error {
	if note.ChannelID == "" {
		return fmt.Errorf("notification for %s has no channel", note.Team)
	}

	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{formatNotificationEmbed(note)},
	}
	if note.Map != nil {
		msg.Files = []*discordgo.File{{
			Name:        mapFileName,
			ContentType: "image/png",
			Reader:      bytes.NewReader(note.Map),
		}}
	}

	if _, err := n.sender.ChannelMessageSendComplex(note.ChannelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("error sending notification: %w", err)
	}
	return nil
}
