package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sashabaranov/go-openai"

	"github.com/hunterjsb/boardbot/internal/catalog"
	"github.com/hunterjsb/boardbot/internal/engine"
)

// hintSystemPrompt frames every hint request
const hintSystemPrompt = "You help teams in an Old School RuneScape bingo board event. " +
	"Give short, practical advice (at most four sentences) on how to complete the task. " +
	"Do not invent rules for the event."

func NewOpenAIClient(apiKey string, maxTokens int, temperature float64) *OpenAIClient {
	client := openai.NewClient(apiKey)
	return &OpenAIClient{
		client:      client,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

func (o *OpenAIClient) GenerateResponse(ctx context.Context, system, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       openai.GPT4oMini,
			Messages:    messages,
			MaxTokens:   o.maxTokens,
			Temperature: o.temperature,
		},
	)

	if err != nil {
		return "", fmt.Errorf("ChatCompletion error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}

// hintPrompt describes the open slot to the model
func hintPrompt(def catalog.TileDefinition, active engine.ActiveSlot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task type: %s\n", active.Slot.Type.Label())
	fmt.Fprintf(&sb, "Task: %s\n", active.Slot.Title)
	if active.Slot.Description != "" {
		fmt.Fprintf(&sb, "Details: %s\n", active.Slot.Description)
	}
	if def.Name != "" {
		fmt.Fprintf(&sb, "Board tile: %s (%s)\n", def.Name, def.Tile)
	}
	fmt.Fprintf(&sb, "Needed: %d %s, %d approved so far.\n",
		active.Slot.Required, plural(string(active.Slot.Kind), active.Slot.Required), active.Progress.Count(active.Slot.Kind))
	sb.WriteString("How should the team approach this?")
	return sb.String()
}

// handleHintCommand asks the LLM for advice on the team's open event
func (b *DiscordBot) handleHintCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferResponse(s, i, false) {
		return
	}
	if b.OpenAI == nil {
		b.sendError(s, i, "Hints Unavailable", "No OpenAI key is configured for this bot.")
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
		b.sendError(s, i, "No Active Event", "Every event on this tile is resolved. Use `/move` to continue.")
		return
	}

	hint, err := b.OpenAI.GenerateResponse(ctx, hintSystemPrompt, hintPrompt(status.Tile, *status.Active))
	if err != nil {
		b.log.WithField("team", team.Name).Errorf("Hint failed: %v", err)
		b.sendError(s, i, "AI Error", "Could not get a hint right now. Try again later.")
		return
	}

	b.respondEmbeds(s, i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("💡 Hint: %s", status.Active.Slot.Title),
		Description: hint,
		Color:       status.Active.Slot.Type.Color(),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Hints are AI generated and may be wrong"},
	})
}
