package grid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Board bounds. Columns are letters A..F, rows are 1..10.
const (
	Columns = 6
	Rows    = 10
)

var (
	// ErrInvalidTile is returned when a tile string does not match [A-F][1-10]
	ErrInvalidTile = errors.New("invalid tile")
	// ErrInvalidDirection is returned for anything but north/south/east/west
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrOutOfBounds is returned when a move would leave the board
	ErrOutOfBounds = errors.New("out of bounds")
)

// Tile is a board coordinate. Col is zero based (A=0), Row is one based.
type Tile struct {
	Col int
	Row int
}

// ParseTile parses a tile identifier such as "B5" or "c10"
func ParseTile(s string) (Tile, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 3 {
		return Tile{}, fmt.Errorf("%w: %q", ErrInvalidTile, s)
	}

	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	col := int(c) - 'A'
	row, err := strconv.Atoi(s[1:])
	if err != nil || s[1] == '0' || s[1] == '+' || s[1] == '-' {
		return Tile{}, fmt.Errorf("%w: %q", ErrInvalidTile, s)
	}

	t := Tile{Col: col, Row: row}
	if !t.Valid() {
		return Tile{}, fmt.Errorf("%w: %q", ErrInvalidTile, s)
	}
	return t, nil
}

// MustParseTile is ParseTile for constants and tests
func MustParseTile(s string) Tile {
	t, err := ParseTile(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Valid reports whether the tile lies inside the board
func (t Tile) Valid() bool {
	return t.Col >= 0 && t.Col < Columns && t.Row >= 1 && t.Row <= Rows
}

// String returns the tile identifier, e.g. "C10"
func (t Tile) String() string {
	return fmt.Sprintf("%c%d", 'A'+rune(t.Col), t.Row)
}

// Direction is one of the four compass moves
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
)

// Directions lists every direction in display order
var Directions = []Direction{North, South, East, West}

// ParseDirection parses a direction case-insensitively
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case North, South, East, West:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	}
	return d
}

// Step returns the neighbouring tile in direction d.
// The result is rejected, not clamped, when it falls off the board.
func (t Tile) Step(d Direction) (Tile, error) {
	if !t.Valid() {
		return Tile{}, fmt.Errorf("%w: %v", ErrInvalidTile, t)
	}

	next := t
	switch d {
	case North:
		next.Row--
	case South:
		next.Row++
	case West:
		next.Col--
	case East:
		next.Col++
	default:
		return Tile{}, fmt.Errorf("%w: %q", ErrInvalidDirection, string(d))
	}

	if !next.Valid() {
		return Tile{}, fmt.Errorf("%w: %s from %s", ErrOutOfBounds, d, t)
	}
	return next, nil
}

// ResolveMove parses both inputs and returns the destination tile identifier
func ResolveMove(current, direction string) (string, error) {
	t, err := ParseTile(current)
	if err != nil {
		return "", err
	}
	d, err := ParseDirection(direction)
	if err != nil {
		return "", err
	}
	next, err := t.Step(d)
	if err != nil {
		return "", err
	}
	return next.String(), nil
}
