package engine

import (
	"errors"
	"fmt"

	"github.com/hunterjsb/boardbot/internal/grid"
)

var (
	// ErrInvalidInput covers malformed tiles, unknown directions, bad names and mismatched evidence
	ErrInvalidInput = errors.New("invalid input")
	// ErrOutOfBounds is returned when a move would leave the board
	ErrOutOfBounds = grid.ErrOutOfBounds
	// ErrAlreadyResolved is returned for evidence on a completed or forfeited slot
	ErrAlreadyResolved = errors.New("event already resolved")
	// ErrNoActiveEvent is returned when there is no open slot matching the request
	ErrNoActiveEvent = errors.New("no active event")
	// ErrEventsPending blocks movement until every slot on the tile is resolved
	ErrEventsPending = errors.New("events pending on current tile")
	// ErrNoTransport is returned when the current tile has no transport link
	ErrNoTransport = errors.New("no transport link on this tile")

	ErrTeamNotFound = errors.New("team not found")
	ErrTeamExists   = errors.New("team already exists")
	ErrItemNotFound = errors.New("item not found")

	// ErrPersistence wraps store failures; callers must not assume partial success
	ErrPersistence = errors.New("persistence failure")
	// ErrTransient marks store errors worth retrying
	ErrTransient = errors.New("transient failure")
)

// invalidInput wraps grid parse errors so callers can match ErrInvalidInput
func invalidInput(err error) error {
	if errors.Is(err, grid.ErrOutOfBounds) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// IsLogical reports whether err is a rejection rather than a system failure
func IsLogical(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrOutOfBounds, ErrAlreadyResolved, ErrNoActiveEvent,
		ErrEventsPending, ErrNoTransport, ErrTeamNotFound, ErrTeamExists, ErrItemNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
