package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hunterjsb/boardbot/internal/catalog"
)

func newItemID() string {
	return uuid.NewString()
}

// resolution is the locked part of Approve, Reject and Forfeit
type resolution struct {
	team   Team
	def    catalog.TileDefinition
	index  int
	slot   catalog.Slot
	status Progress
}

// checkEvidence loads the slot named by ev and verifies it is the team's open slot
func (e *Engine) checkEvidence(ctx context.Context, ev Evidence) (resolution, error) {
	team, err := e.Team(ctx, ev.Team)
	if err != nil {
		return resolution{}, err
	}

	def, _ := e.catalog.Tile(ev.Tile)
	if ev.Slot < 0 || ev.Slot >= len(def.Slots) {
		return resolution{}, fmt.Errorf("%w: %s has no event %d", ErrNoActiveEvent, ev.Tile, ev.Slot+1)
	}

	p, err := e.progress(ctx, team.Name, ev.Tile, ev.Slot)
	if err != nil {
		return resolution{}, err
	}
	if p.Status.Resolved() {
		return resolution{}, fmt.Errorf("%w: %s event %d is %s", ErrAlreadyResolved, ev.Tile, ev.Slot+1, p.Status)
	}
	if ev.Tile != team.Location {
		return resolution{}, fmt.Errorf("%w: %s is no longer on %s", ErrNoActiveEvent, team.Name, ev.Tile)
	}

	_, active, err := e.activeSlot(ctx, team)
	if err != nil {
		return resolution{}, err
	}
	if active == nil || active.Index != ev.Slot {
		return resolution{}, fmt.Errorf("%w: event %d on %s is not open yet", ErrNoActiveEvent, ev.Slot+1, ev.Tile)
	}

	slot := def.Slots[ev.Slot]
	if ev.Kind != "" && ev.Kind != slot.Kind {
		return resolution{}, fmt.Errorf("%w: %s needs %s approvals, not %s", ErrInvalidInput, slot.Title, slot.Kind, ev.Kind)
	}

	return resolution{team: team, def: def, index: ev.Slot, slot: slot, status: p}, nil
}

// Approve records one approved screenshot or item for the team's open slot.
// Reaching the requirement completes the slot and rolls a reward.
func (e *Engine) Approve(ctx context.Context, ev Evidence) (ResolutionResult, error) {
	unlock := e.locks.lock(ev.Team)

	r, err := e.checkEvidence(ctx, ev)
	if err != nil {
		unlock()
		return ResolutionResult{}, err
	}

	p := r.status
	switch r.slot.Kind {
	case catalog.Item:
		p.Items++
	default:
		p.Screenshots++
	}
	p.Status = InProgress
	p.UpdatedAt = e.now()

	var item *Item
	resolved := p.Count(r.slot.Kind) >= r.slot.Required
	if resolved {
		p.Status = Completed
		if o, ok := e.roller.RollCompletion(r.slot.Type); ok {
			item = e.newItem(r, Reward, o)
		}
	}

	if err := e.do(ctx, "set progress", func(ctx context.Context) error {
		return e.store.SetEventProgress(ctx, p, item)
	}); err != nil {
		unlock()
		e.logSlot(r).Errorf("Approval failed: %v", err)
		return ResolutionResult{}, err
	}

	result := e.resolutionResult(ctx, r, p, resolved, item)
	unlock()

	e.logSlot(r).WithField("count", p.Count(r.slot.Kind)).Info("Evidence approved")

	n := Notification{
		Kind:  NotifyProgress,
		Title: r.slot.Title,
		Text:  fmt.Sprintf("%s approved: %d/%d.", r.slot.Kind, p.Count(r.slot.Kind), r.slot.Required),
		Item:  item,
	}
	if resolved {
		n.Kind = NotifyCompleted
		n.Text = fmt.Sprintf("%s %s completed on %s!", r.slot.Type.Emoji(), r.slot.Title, r.def.Tile)
	}
	e.publish(result.Team, n, false)

	return result, nil
}

// Reject reports a disapproved submission. Nothing is recorded.
func (e *Engine) Reject(ctx context.Context, ev Evidence, reason string) (ResolutionResult, error) {
	unlock := e.locks.lock(ev.Team)

	r, err := e.checkEvidence(ctx, ev)
	if err != nil {
		unlock()
		return ResolutionResult{}, err
	}
	result := e.resolutionResult(ctx, r, r.status, false, nil)
	unlock()

	e.logSlot(r).Info("Evidence rejected")

	text := fmt.Sprintf("A %s for %s was not accepted.", r.slot.Kind, r.slot.Title)
	if reason != "" {
		text += " Reason: " + reason
	}
	e.publish(result.Team, Notification{Kind: NotifyRejected, Title: r.slot.Title, Text: text}, false)

	return result, nil
}

// Forfeit gives up the team's open slot, rolling a penalty. Progression
// continues exactly as if the slot had been completed.
func (e *Engine) Forfeit(ctx context.Context, name string) (ResolutionResult, error) {
	unlock := e.locks.lock(name)

	team, err := e.Team(ctx, name)
	if err != nil {
		unlock()
		return ResolutionResult{}, err
	}
	def, active, err := e.activeSlot(ctx, team)
	if err != nil {
		unlock()
		return ResolutionResult{}, err
	}
	if active == nil {
		unlock()
		return ResolutionResult{}, fmt.Errorf("%w: nothing to forfeit on %s", ErrNoActiveEvent, team.Location)
	}

	r := resolution{team: team, def: def, index: active.Index, slot: active.Slot, status: active.Progress}
	p := r.status
	p.Status = Forfeited
	p.UpdatedAt = e.now()

	var item *Item
	if o, ok := e.roller.RollForfeit(r.slot.Type); ok {
		item = e.newItem(r, Penalty, o)
	}

	if err := e.do(ctx, "set progress", func(ctx context.Context) error {
		return e.store.SetEventProgress(ctx, p, item)
	}); err != nil {
		unlock()
		e.logSlot(r).Errorf("Forfeit failed: %v", err)
		return ResolutionResult{}, err
	}

	result := e.resolutionResult(ctx, r, p, true, item)
	unlock()

	e.logSlot(r).Info("Event forfeited")
	e.publish(result.Team, Notification{
		Kind:  NotifyForfeited,
		Title: r.slot.Title,
		Text:  fmt.Sprintf("%s forfeited %s on %s.", team.Name, r.slot.Title, r.def.Tile),
		Item:  item,
	}, false)

	return result, nil
}

func (e *Engine) newItem(r resolution, kind ItemKind, o catalog.Outcome) *Item {
	return &Item{
		ID:          e.newID(),
		Team:        r.team.Name,
		Kind:        kind,
		Name:        o.Name,
		Description: o.Description,
		OneOff:      o.OneOff,
		Tile:        r.def.Tile,
		Slot:        r.index,
		CreatedAt:   e.now(),
	}
}

// resolutionResult builds the result after a committed write, looking up
// the next open slot when this one was resolved.
func (e *Engine) resolutionResult(ctx context.Context, r resolution, p Progress, resolved bool, item *Item) ResolutionResult {
	result := ResolutionResult{
		Team:     r.team,
		Tile:     r.def,
		Slot:     r.slot,
		Index:    r.index,
		Progress: p,
		Resolved: resolved,
		Item:     item,
	}
	if !resolved {
		return result
	}

	_, next, err := e.activeSlot(ctx, r.team)
	if err != nil {
		e.logSlot(r).Warnf("Could not load next event: %v", err)
		return result
	}
	result.Next = next
	result.CanMove = next == nil
	result.CanTransport = next == nil && r.def.TransportTo != nil
	return result
}

func (e *Engine) logSlot(r resolution) *log.Entry {
	return e.log.WithFields(log.Fields{
		"team": r.team.Name,
		"tile": r.def.Tile.String(),
		"slot": r.index,
		"type": string(r.slot.Type),
	})
}
