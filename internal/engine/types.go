package engine

import (
	"context"
	"time"

	"github.com/hunterjsb/boardbot/internal/catalog"
	"github.com/hunterjsb/boardbot/internal/grid"
)

// SlotStatus is the progression state of one event slot
type SlotStatus string

const (
	NotStarted SlotStatus = "not_started"
	InProgress SlotStatus = "in_progress"
	Completed  SlotStatus = "completed"
	Forfeited  SlotStatus = "forfeited"
)

// Resolved reports whether the status is terminal
func (s SlotStatus) Resolved() bool {
	return s == Completed || s == Forfeited
}

// Team is a snapshot of a team as stored
type Team struct {
	Name      string
	ChannelID string
	Location  grid.Tile
	// Explored keeps first-visit order
	Explored  []grid.Tile
	CreatedAt time.Time
}

// HasExplored reports whether the team has ever occupied t
func (t Team) HasExplored(tile grid.Tile) bool {
	for _, e := range t.Explored {
		if e == tile {
			return true
		}
	}
	return false
}

// Progress is the record for one (team, tile, slot)
type Progress struct {
	Team        string
	Tile        grid.Tile
	Slot        int
	Screenshots int
	Items       int
	Status      SlotStatus
	UpdatedAt   time.Time
}

// Count returns the approved count for the given evidence kind
func (p Progress) Count(kind catalog.EvidenceKind) int {
	if kind == catalog.Item {
		return p.Items
	}
	return p.Screenshots
}

// ItemKind separates rewards from penalties
type ItemKind string

const (
	Reward  ItemKind = "reward"
	Penalty ItemKind = "penalty"
)

// Item is a reward or penalty held by a team
type Item struct {
	ID          string
	Team        string
	Kind        ItemKind
	Name        string
	Description string
	OneOff      bool
	Consumed    bool
	Tile        grid.Tile
	Slot        int
	CreatedAt   time.Time
}

// Store is the authoritative team state. Implementations return ErrTeamNotFound,
// ErrTeamExists and ErrItemNotFound for logical misses and wrap retryable
// failures with ErrTransient.
type Store interface {
	CreateTeam(ctx context.Context, team Team) error
	GetTeam(ctx context.Context, name string) (Team, error)
	TeamByChannel(ctx context.Context, channelID string) (Team, error)
	ListTeams(ctx context.Context) ([]Team, error)

	// SetLocation writes the location and explored set together
	SetLocation(ctx context.Context, name string, tile grid.Tile, explored []grid.Tile) error

	// GetEventProgress returns a NotStarted record when none exists yet
	GetEventProgress(ctx context.Context, name string, tile grid.Tile, slot int) (Progress, error)
	// SetEventProgress writes the record and, when awarded is non-nil, the item in one transaction
	SetEventProgress(ctx context.Context, p Progress, awarded *Item) error

	ListItems(ctx context.Context, team string, includeConsumed bool) ([]Item, error)
	ConsumeItem(ctx context.Context, team, id string) error

	ResetTeam(ctx context.Context, name string, start grid.Tile) error
}

// Roller rolls outcomes when a slot is resolved
type Roller interface {
	RollCompletion(t catalog.EventType) (catalog.Outcome, bool)
	RollForfeit(t catalog.EventType) (catalog.Outcome, bool)
}

// NotificationKind tells the shell how to present a notification
type NotificationKind string

const (
	NotifyMoved     NotificationKind = "moved"
	NotifyProgress  NotificationKind = "progress"
	NotifyCompleted NotificationKind = "completed"
	NotifyForfeited NotificationKind = "forfeited"
	NotifyRejected  NotificationKind = "rejected"
	NotifyReset     NotificationKind = "reset"
)

// Notification is a message for a team's channel
type Notification struct {
	ChannelID string
	Team      string
	Kind      NotificationKind
	Title     string
	Text      string
	Item      *Item
	// Map is a PNG, nil when rendering failed or was not requested
	Map []byte
}

// Notifier delivers notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// MapMode selects what the renderer draws
type MapMode string

const (
	// MapAll shows every team on a fully revealed board
	MapAll MapMode = "all"
	// MapTeam shows one team and hides tiles it has not explored
	MapTeam MapMode = "team"
)

// RenderRequest is the input to a Renderer
type RenderRequest struct {
	Teams []Team
	Mode  MapMode
	Focus string
}

// Renderer draws the board as a PNG
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// ActiveSlot is the slot a team is currently working on
type ActiveSlot struct {
	Index    int
	Slot     catalog.Slot
	Progress Progress
}

// TeamStatus is everything the shell needs to describe a team
type TeamStatus struct {
	Team         Team
	Tile         catalog.TileDefinition
	Active       *ActiveSlot
	CanMove      bool
	CanTransport bool
	Items        []Item
}

// MoveResult is returned by Move and Transport
type MoveResult struct {
	Team       Team
	From       grid.Tile
	To         grid.Tile
	Direction  grid.Direction
	Transport  bool
	FirstVisit bool
	Tile       catalog.TileDefinition
	Active     *ActiveSlot
}

// Evidence identifies the slot a submission was made for
type Evidence struct {
	Team string
	Tile grid.Tile
	Slot int
	Kind catalog.EvidenceKind
}

// ResolutionResult is returned by Approve, Reject and Forfeit
type ResolutionResult struct {
	Team     Team
	Tile     catalog.TileDefinition
	Slot     catalog.Slot
	Index    int
	Progress Progress
	// Resolved is true when this call moved the slot to a terminal state
	Resolved bool
	Item     *Item
	Next     *ActiveSlot
	CanMove  bool
	// CanTransport is true when the tile's transport link is now usable
	CanTransport bool
}
