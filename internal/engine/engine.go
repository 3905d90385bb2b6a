package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hunterjsb/boardbot/internal/catalog"
	"github.com/hunterjsb/boardbot/internal/grid"
	"github.com/hunterjsb/boardbot/internal/rewards"
)

// MaxTeamNameLength keeps names usable inside Discord custom IDs
const MaxTeamNameLength = 32

// notifyTimeout bounds best-effort side effects after a commit
const notifyTimeout = 10 * time.Second

// Engine runs the board for every team. Operations on the same team are
// serialized; different teams proceed in parallel.
type Engine struct {
	store    Store
	catalog  *catalog.Catalog
	roller   Roller
	notifier Notifier
	renderer Renderer
	retry    RetryPolicy
	locks    *teamLocks
	log      log.FieldLogger
	now      func() time.Time
	newID    func() string
}

// Option configures an Engine
type Option func(*Engine)

// WithRoller sets the reward/penalty roller
func WithRoller(r Roller) Option {
	return func(e *Engine) { e.roller = r }
}

// WithNotifier sets where team notifications go
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRenderer enables map images on location changes
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithRetry sets the store retry policy
func WithRetry(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p.normalized() }
}

// WithLogger sets the logger
func WithLogger(l log.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides item ID generation
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an engine over store and the immutable catalog
func New(store Store, cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		catalog: cat,
		retry:   DefaultRetryPolicy,
		locks:   newTeamLocks(),
		log:     log.StandardLogger(),
		now:     time.Now,
		newID:   newItemID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.roller == nil {
		e.roller = rewards.NewRoller(cat, nil)
	}
	return e
}

// Catalog returns the board definition
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// CreateTeam places a new team on the start tile
func (e *Engine) CreateTeam(ctx context.Context, name, channelID string) (Team, error) {
	name = strings.TrimSpace(name)
	if err := validateTeamName(name); err != nil {
		return Team{}, err
	}

	unlock := e.locks.lock(name)
	defer unlock()

	start := e.catalog.StartTile()
	team := Team{
		Name:      name,
		ChannelID: channelID,
		Location:  start,
		Explored:  []grid.Tile{start},
		CreatedAt: e.now(),
	}
	if err := e.do(ctx, "create team", func(ctx context.Context) error {
		return e.store.CreateTeam(ctx, team)
	}); err != nil {
		return Team{}, err
	}

	e.log.WithFields(log.Fields{"team": name, "tile": start.String()}).Info("Team created")
	return team, nil
}

func validateTeamName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: team name is required", ErrInvalidInput)
	}
	if len(name) > MaxTeamNameLength {
		return fmt.Errorf("%w: team name longer than %d characters", ErrInvalidInput, MaxTeamNameLength)
	}
	if strings.ContainsAny(name, ":|") {
		return fmt.Errorf("%w: team name may not contain ':' or '|'", ErrInvalidInput)
	}
	return nil
}

// Team returns a team snapshot
func (e *Engine) Team(ctx context.Context, name string) (Team, error) {
	var team Team
	err := e.do(ctx, "get team", func(ctx context.Context) error {
		var err error
		team, err = e.store.GetTeam(ctx, name)
		return err
	})
	return team, err
}

// TeamForChannel returns the team that owns a channel
func (e *Engine) TeamForChannel(ctx context.Context, channelID string) (Team, error) {
	var team Team
	err := e.do(ctx, "team by channel", func(ctx context.Context) error {
		var err error
		team, err = e.store.TeamByChannel(ctx, channelID)
		return err
	})
	return team, err
}

// Teams returns every team
func (e *Engine) Teams(ctx context.Context) ([]Team, error) {
	var teams []Team
	err := e.do(ctx, "list teams", func(ctx context.Context) error {
		var err error
		teams, err = e.store.ListTeams(ctx)
		return err
	})
	return teams, err
}

// Status describes where a team is and what it has to do next
func (e *Engine) Status(ctx context.Context, name string) (TeamStatus, error) {
	unlock := e.locks.lock(name)
	defer unlock()

	team, err := e.Team(ctx, name)
	if err != nil {
		return TeamStatus{}, err
	}

	def, active, err := e.activeSlot(ctx, team)
	if err != nil {
		return TeamStatus{}, err
	}

	var items []Item
	if err := e.do(ctx, "list items", func(ctx context.Context) error {
		var err error
		items, err = e.store.ListItems(ctx, team.Name, false)
		return err
	}); err != nil {
		return TeamStatus{}, err
	}

	return TeamStatus{
		Team:         team,
		Tile:         def,
		Active:       active,
		CanMove:      active == nil,
		CanTransport: active == nil && def.TransportTo != nil,
		Items:        items,
	}, nil
}

// Items lists a team's items
func (e *Engine) Items(ctx context.Context, name string, includeConsumed bool) ([]Item, error) {
	var items []Item
	err := e.do(ctx, "list items", func(ctx context.Context) error {
		var err error
		items, err = e.store.ListItems(ctx, name, includeConsumed)
		return err
	})
	return items, err
}

// UseItem consumes a one-off reward or penalty
func (e *Engine) UseItem(ctx context.Context, name, itemID string) (Item, error) {
	unlock := e.locks.lock(name)
	defer unlock()

	items, err := e.Items(ctx, name, false)
	if err != nil {
		return Item{}, err
	}

	var item *Item
	for i := range items {
		if items[i].ID == itemID {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if !item.OneOff {
		return Item{}, fmt.Errorf("%w: %s is permanent and cannot be used up", ErrInvalidInput, item.Name)
	}

	if err := e.do(ctx, "consume item", func(ctx context.Context) error {
		return e.store.ConsumeItem(ctx, name, itemID)
	}); err != nil {
		return Item{}, err
	}

	item.Consumed = true
	e.log.WithFields(log.Fields{"team": name, "item": item.Name}).Info("Item used")
	return *item, nil
}

// Reset returns a team to the start tile and clears its explored set,
// progress and items. Callers must only invoke it after explicit confirmation.
func (e *Engine) Reset(ctx context.Context, name string) (Team, error) {
	unlock := e.locks.lock(name)

	team, err := e.Team(ctx, name)
	if err != nil {
		unlock()
		return Team{}, err
	}

	start := e.catalog.StartTile()
	if err := e.do(ctx, "reset team", func(ctx context.Context) error {
		return e.store.ResetTeam(ctx, team.Name, start)
	}); err != nil {
		unlock()
		e.log.WithFields(log.Fields{"team": name}).Errorf("Reset failed: %v", err)
		return Team{}, err
	}
	team.Location = start
	team.Explored = []grid.Tile{start}
	unlock()

	e.log.WithFields(log.Fields{"team": team.Name, "tile": start.String()}).Info("Team reset")
	e.publish(team, Notification{
		Kind:  NotifyReset,
		Title: "Team reset",
		Text:  fmt.Sprintf("%s has been reset to %s.", team.Name, start),
	}, true)
	return team, nil
}

// Render draws the board for the given mode. focus names the team for MapTeam.
func (e *Engine) Render(ctx context.Context, mode MapMode, focus string) ([]byte, error) {
	if e.renderer == nil {
		return nil, fmt.Errorf("map rendering is not configured")
	}
	if mode != MapAll && mode != MapTeam {
		return nil, fmt.Errorf("%w: unknown map mode %q", ErrInvalidInput, mode)
	}

	teams, err := e.Teams(ctx)
	if err != nil {
		return nil, err
	}
	if mode == MapTeam {
		found := false
		for _, t := range teams {
			if strings.EqualFold(t.Name, focus) {
				found = true
				focus = t.Name
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, focus)
		}
	}
	return e.renderer.Render(ctx, RenderRequest{Teams: teams, Mode: mode, Focus: focus})
}

// activeSlot returns the tile definition and the first unresolved slot on the
// team's current tile, or nil when every slot is resolved.
func (e *Engine) activeSlot(ctx context.Context, team Team) (catalog.TileDefinition, *ActiveSlot, error) {
	def, _ := e.catalog.Tile(team.Location)
	for i, slot := range def.Slots {
		p, err := e.progress(ctx, team.Name, team.Location, i)
		if err != nil {
			return def, nil, err
		}
		if !p.Status.Resolved() {
			return def, &ActiveSlot{Index: i, Slot: slot, Progress: p}, nil
		}
	}
	return def, nil, nil
}

func (e *Engine) progress(ctx context.Context, team string, tile grid.Tile, slot int) (Progress, error) {
	var p Progress
	err := e.do(ctx, "get progress", func(ctx context.Context) error {
		var err error
		p, err = e.store.GetEventProgress(ctx, team, tile, slot)
		return err
	})
	if err != nil {
		return p, err
	}
	if p.Status == "" {
		p.Status = NotStarted
	}
	p.Team, p.Tile, p.Slot = team, tile, slot
	return p, nil
}

// publish sends a notification to the team's channel, optionally with a
// freshly rendered map. Failures are logged and never returned.
func (e *Engine) publish(team Team, n Notification, withMap bool) {
	if e.notifier == nil || team.ChannelID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	n.ChannelID = team.ChannelID
	n.Team = team.Name
	entry := e.log.WithFields(log.Fields{"team": team.Name, "tile": team.Location.String(), "kind": string(n.Kind)})

	if withMap && e.renderer != nil {
		img, err := e.Render(ctx, MapTeam, team.Name)
		if err != nil {
			entry.Warnf("Map render failed: %v", err)
		} else {
			n.Map = img
		}
	}

	if err := e.notifier.Notify(ctx, n); err != nil {
		entry.Warnf("Notification failed: %v", err)
	}
}
