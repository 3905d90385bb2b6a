package grid

import (
	"errors"
	"testing"
	"testing/quick"
)

func TestParseTile(t *testing.T) {
	tests := []struct {
		input    string
		expected Tile
		wantErr  bool
	}{
		{"A1", Tile{Col: 0, Row: 1}, false},
		{"B5", Tile{Col: 1, Row: 5}, false},
		{"c10", Tile{Col: 2, Row: 10}, false},
		{"F10", Tile{Col: 5, Row: 10}, false},
		{" A5 ", Tile{Col: 0, Row: 5}, false},
		{"G1", Tile{}, true},
		{"A0", Tile{}, true},
		{"A11", Tile{}, true},
		{"A05", Tile{}, true},
		{"A+5", Tile{}, true},
		{"A-1", Tile{}, true},
		{"5A", Tile{}, true},
		{"", Tile{}, true},
		{"A", Tile{}, true},
		{"AB1", Tile{}, true},
		{"A100", Tile{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTile(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTile) {
				t.Errorf("ParseTile(%q): expected ErrInvalidTile, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTile(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseTile(%q): expected %+v, got %+v", tt.input, tt.expected, got)
		}
	}
}

func TestTileString(t *testing.T) {
	if s := (Tile{Col: 2, Row: 10}).String(); s != "C10" {
		t.Errorf("Expected C10, got %s", s)
	}
	if s := MustParseTile("b5").String(); s != "B5" {
		t.Errorf("Expected B5, got %s", s)
	}
}

func TestResolveMove(t *testing.T) {
	tests := []struct {
		current   string
		direction string
		expected  string
		err       error
	}{
		{"A5", "east", "B5", nil},
		{"A5", "EAST", "B5", nil},
		{"B5", "South", "B6", nil},
		{"B6", "north", "B5", nil},
		{"B5", "west", "A5", nil},
		{"A5", "west", "", ErrOutOfBounds},
		{"F5", "east", "", ErrOutOfBounds},
		{"C1", "north", "", ErrOutOfBounds},
		{"C10", "south", "", ErrOutOfBounds},
		{"Z5", "north", "", ErrInvalidTile},
		{"A5", "up", "", ErrInvalidDirection},
		{"A5", "", "", ErrInvalidDirection},
	}

	for _, tt := range tests {
		got, err := ResolveMove(tt.current, tt.direction)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("ResolveMove(%s, %s): expected %v, got %v", tt.current, tt.direction, tt.err, err)
			}
			if got != "" {
				t.Errorf("ResolveMove(%s, %s): expected empty tile on rejection, got %q", tt.current, tt.direction, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveMove(%s, %s): unexpected error %v", tt.current, tt.direction, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ResolveMove(%s, %s): expected %s, got %s", tt.current, tt.direction, tt.expected, got)
		}
	}
}

func TestMoveIsInvertible(t *testing.T) {
	f := func(col, row, dir uint8) bool {
		start := Tile{Col: int(col) % Columns, Row: int(row)%Rows + 1}
		d := Directions[int(dir)%len(Directions)]

		next, err := start.Step(d)
		if err != nil {
			// only legal rejection for a valid tile
			return errors.Is(err, ErrOutOfBounds)
		}
		back, err := next.Step(d.Opposite())
		return err == nil && back == start
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestMoveNeverProducesMalformedTile(t *testing.T) {
	f := func(col, row int8, dir uint8) bool {
		start := Tile{Col: int(col), Row: int(row)}
		d := Directions[int(dir)%len(Directions)]

		next, err := start.Step(d)
		if err != nil {
			return next == Tile{}
		}
		_, perr := ParseTile(next.String())
		return start.Valid() && perr == nil
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestMoveIsDeterministic(t *testing.T) {
	for _, d := range Directions {
		a, errA := ResolveMove("C5", string(d))
		b, errB := ResolveMove("C5", string(d))
		if a != b || (errA == nil) != (errB == nil) {
			t.Errorf("Expected identical results for %s, got %s/%v and %s/%v", d, a, errA, b, errB)
		}
	}
}
