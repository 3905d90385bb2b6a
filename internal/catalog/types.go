package catalog

import (
	"fmt"
	"strings"

	"github.com/hunterjsb/boardbot/internal/grid"
)

// EventType is the canonical set of tile events
type EventType string

const (
	Quest         EventType = "quest"
	Challenge     EventType = "challenge"
	Boss          EventType = "boss"
	Puzzle        EventType = "puzzle"
	TransportLink EventType = "transportLink"
	Dungeon       EventType = "dungeon"
)

// EventTypes lists every event type. eventTypeInfo must have an entry for each.
var EventTypes = []EventType{Quest, Challenge, Boss, Puzzle, TransportLink, Dungeon}

// typeInfo holds per-type presentation data
type typeInfo struct {
	Label string
	Emoji string
	Color int
}

var eventTypeInfo = map[EventType]typeInfo{
	Quest:         {Label: "Quest", Emoji: "📜", Color: 0x3498db},
	Challenge:     {Label: "Challenge", Emoji: "⚔️", Color: 0xe67e22},
	Boss:          {Label: "Boss", Emoji: "🐉", Color: 0xe74c3c},
	Puzzle:        {Label: "Puzzle", Emoji: "🧩", Color: 0x9b59b6},
	TransportLink: {Label: "Transport Link", Emoji: "🌀", Color: 0x1abc9c},
	Dungeon:       {Label: "Dungeon", Emoji: "🏰", Color: 0x7f8c8d},
}

// ParseEventType accepts the canonical names case-insensitively
func ParseEventType(s string) (EventType, error) {
	for _, t := range EventTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Label returns the display name of the event type
func (t EventType) Label() string {
	if info, ok := eventTypeInfo[t]; ok {
		return info.Label
	}
	return string(t)
}

// Emoji returns the icon used in embeds
func (t EventType) Emoji() string {
	if info, ok := eventTypeInfo[t]; ok {
		return info.Emoji
	}
	return "❔"
}

// Color returns the embed color for the event type
func (t EventType) Color() int {
	if info, ok := eventTypeInfo[t]; ok {
		return info.Color
	}
	return 0x95a5a6
}

// EvidenceKind is what a helper approves: a screenshot or a collected item
type EvidenceKind string

const (
	Screenshot EvidenceKind = "screenshot"
	Item       EvidenceKind = "item"
)

// ParseEvidenceKind parses "screenshot" or "item"
func ParseEvidenceKind(s string) (EvidenceKind, error) {
	switch EvidenceKind(strings.ToLower(strings.TrimSpace(s))) {
	case Screenshot:
		return Screenshot, nil
	case Item:
		return Item, nil
	}
	return "", fmt.Errorf("unknown evidence kind %q", s)
}

// Slot is one event on a tile
type Slot struct {
	Type        EventType
	Title       string
	Description string
	Kind        EvidenceKind
	Required    int
}

// TileDefinition describes everything that happens on a tile
type TileDefinition struct {
	Tile        grid.Tile
	Name        string
	Slots       []Slot
	TransportTo *grid.Tile
}

// Outcome is a reward or penalty that can be rolled
type Outcome struct {
	Name        string
	Description string
	OneOff      bool
}
