package engine

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/hunterjsb/boardbot/internal/grid"
)

// Move steps a team one tile in direction once its current tile is cleared
func (e *Engine) Move(ctx context.Context, name, direction string) (MoveResult, error) {
	d, err := grid.ParseDirection(direction)
	if err != nil {
		return MoveResult{}, invalidInput(err)
	}

	return e.relocate(ctx, name, func(team Team, pending bool) (grid.Tile, error) {
		if pending {
			return grid.Tile{}, ErrEventsPending
		}
		next, err := team.Location.Step(d)
		if err != nil {
			return grid.Tile{}, invalidInput(err)
		}
		return next, nil
	}, d)
}

// Transport jumps a team along its tile's transport link
func (e *Engine) Transport(ctx context.Context, name string) (MoveResult, error) {
	return e.relocate(ctx, name, func(team Team, pending bool) (grid.Tile, error) {
		def, _ := e.catalog.Tile(team.Location)
		if def.TransportTo == nil {
			return grid.Tile{}, fmt.Errorf("%w: %s", ErrNoTransport, team.Location)
		}
		if pending {
			return grid.Tile{}, ErrEventsPending
		}
		return *def.TransportTo, nil
	}, "")
}

// relocate performs a location change chosen by dest. The explored set is
// only updated after the store confirms the write.
func (e *Engine) relocate(ctx context.Context, name string, dest func(team Team, pending bool) (grid.Tile, error), d grid.Direction) (MoveResult, error) {
	unlock := e.locks.lock(name)

	team, err := e.Team(ctx, name)
	if err != nil {
		unlock()
		return MoveResult{}, err
	}
	_, active, err := e.activeSlot(ctx, team)
	if err != nil {
		unlock()
		return MoveResult{}, err
	}

	next, err := dest(team, active != nil)
	if err != nil {
		unlock()
		return MoveResult{}, err
	}

	explored, firstVisit := withTile(team.Explored, next)
	if err := e.do(ctx, "set location", func(ctx context.Context) error {
		return e.store.SetLocation(ctx, team.Name, next, explored)
	}); err != nil {
		unlock()
		e.log.WithFields(log.Fields{"team": team.Name, "tile": team.Location.String(), "to": next.String()}).Errorf("Move failed: %v", err)
		return MoveResult{}, err
	}

	from := team.Location
	team.Location = next
	team.Explored = explored

	def, active, err := e.activeSlot(ctx, team)
	unlock()
	if err != nil {
		// the move is committed; the caller can query status again
		e.log.WithFields(log.Fields{"team": team.Name, "tile": next.String()}).Warnf("Could not load next event: %v", err)
	}

	result := MoveResult{
		Team:       team,
		From:       from,
		To:         next,
		Direction:  d,
		Transport:  d == "",
		FirstVisit: firstVisit,
		Tile:       def,
		Active:     active,
	}

	e.log.WithFields(log.Fields{"team": team.Name, "from": from.String(), "tile": next.String()}).Info("Team moved")

	text := fmt.Sprintf("%s moved %s from %s to %s.", team.Name, d, from, next)
	if result.Transport {
		text = fmt.Sprintf("%s took the transport link from %s to %s.", team.Name, from, next)
	}
	e.publish(team, Notification{Kind: NotifyMoved, Title: "Moved to " + next.String(), Text: text}, true)

	return result, nil
}

// withTile returns a copy of explored with t appended if it is new
func withTile(explored []grid.Tile, t grid.Tile) ([]grid.Tile, bool) {
	out := make([]grid.Tile, 0, len(explored)+1)
	added := true
	for _, e := range explored {
		if e == t {
			added = false
		}
		out = append(out, e)
	}
	if added {
		out = append(out, t)
	}
	return out, added
}
