package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/hunterjsb/boardbot/internal/grid"
)

//go:embed board.yaml
var defaultBoard []byte

//go:embed catalog.schema.json
var schemaJSON string

// GeneralPool is the pool key used when an event type has no pool of its own
const GeneralPool = "general"

// DefaultStartTile is used when the catalog does not name a start tile
const DefaultStartTile = "A5"

// Catalog is the immutable board definition. It is safe for concurrent reads.
type Catalog struct {
	name      string
	start     grid.Tile
	tiles     map[grid.Tile]TileDefinition
	rewards   map[string][]Outcome
	penalties map[string][]Outcome
}

// file mirrors the YAML layout
type file struct {
	Name      string               `yaml:"name"`
	StartTile string               `yaml:"start_tile"`
	Tiles     map[string]tileEntry `yaml:"tiles"`
	Rewards   map[string][]outcome `yaml:"rewards"`
	Penalties map[string][]outcome `yaml:"penalties"`
}

type tileEntry struct {
	Name        string      `yaml:"name"`
	Events      []slotEntry `yaml:"events"`
	TransportTo string      `yaml:"transport_to"`
}

type slotEntry struct {
	Type                string `yaml:"type"`
	Title               string `yaml:"title"`
	Description         string `yaml:"description"`
	RequiredScreenshots int    `yaml:"required_screenshots"`
	RequiredItems       int    `yaml:"required_items"`
}

type outcome struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	OneOff      *bool  `yaml:"one_off"`
}

var compiledSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("catalog.schema.json", strings.NewReader(schemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile("catalog.schema.json")
}()

// Default returns the catalog compiled into the binary
func Default() *Catalog {
	c, err := Parse(defaultBoard)
	if err != nil {
		panic(fmt.Sprintf("embedded board is invalid: %v", err))
	}
	return c
}

// Load reads and parses a catalog file. An empty path yields the default board.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse validates raw YAML against the catalog schema and builds a Catalog
func Parse(raw []byte) (*Catalog, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("error decoding catalog: %w", err)
	}

	startID := f.StartTile
	if startID == "" {
		startID = DefaultStartTile
	}
	start, err := grid.ParseTile(startID)
	if err != nil {
		return nil, fmt.Errorf("start_tile: %w", err)
	}

	c := &Catalog{
		name:      f.Name,
		start:     start,
		tiles:     make(map[grid.Tile]TileDefinition, len(f.Tiles)),
		rewards:   convertPools(f.Rewards),
		penalties: convertPools(f.Penalties),
	}

	for id, entry := range f.Tiles {
		def, err := entry.definition(id)
		if err != nil {
			return nil, err
		}
		if _, dup := c.tiles[def.Tile]; dup {
			return nil, fmt.Errorf("tile %s defined twice", def.Tile)
		}
		c.tiles[def.Tile] = def
	}

	if len(c.rewards[GeneralPool]) == 0 {
		return nil, fmt.Errorf("rewards: %q pool is required", GeneralPool)
	}
	if len(c.penalties[GeneralPool]) == 0 {
		return nil, fmt.Errorf("penalties: %q pool is required", GeneralPool)
	}
	if err := checkPoolKeys("rewards", c.rewards); err != nil {
		return nil, err
	}
	if err := checkPoolKeys("penalties", c.penalties); err != nil {
		return nil, err
	}

	return c, nil
}

func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("error decoding catalog: %w", err)
	}
	// round trip through JSON so the validator sees JSON types
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error converting catalog: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("error converting catalog: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("catalog does not match schema: %w", err)
	}
	return nil
}

func (e tileEntry) definition(id string) (TileDefinition, error) {
	t, err := grid.ParseTile(id)
	if err != nil {
		return TileDefinition{}, fmt.Errorf("tiles: %w", err)
	}

	def := TileDefinition{Tile: t, Name: e.Name}
	for i, s := range e.Events {
		slot, err := s.slot()
		if err != nil {
			return TileDefinition{}, fmt.Errorf("tile %s event %d: %w", t, i, err)
		}
		def.Slots = append(def.Slots, slot)
	}

	if e.TransportTo != "" {
		dest, err := grid.ParseTile(e.TransportTo)
		if err != nil {
			return TileDefinition{}, fmt.Errorf("tile %s transport_to: %w", t, err)
		}
		if dest == t {
			return TileDefinition{}, fmt.Errorf("tile %s transports to itself", t)
		}
		def.TransportTo = &dest
	}
	return def, nil
}

func (s slotEntry) slot() (Slot, error) {
	typ, err := ParseEventType(s.Type)
	if err != nil {
		return Slot{}, err
	}

	slot := Slot{Type: typ, Title: s.Title, Description: s.Description}
	switch {
	case s.RequiredScreenshots > 0 && s.RequiredItems > 0:
		return Slot{}, fmt.Errorf("set required_screenshots or required_items, not both")
	case s.RequiredScreenshots > 0:
		slot.Kind, slot.Required = Screenshot, s.RequiredScreenshots
	case s.RequiredItems > 0:
		slot.Kind, slot.Required = Item, s.RequiredItems
	default:
		return Slot{}, fmt.Errorf("a positive requirement is required")
	}
	if slot.Title == "" {
		slot.Title = typ.Label()
	}
	return slot, nil
}

func convertPools(in map[string][]outcome) map[string][]Outcome {
	out := make(map[string][]Outcome, len(in))
	for key, list := range in {
		for _, o := range list {
			oneOff := true
			if o.OneOff != nil {
				oneOff = *o.OneOff
			}
			out[key] = append(out[key], Outcome{Name: o.Name, Description: o.Description, OneOff: oneOff})
		}
	}
	return out
}

func checkPoolKeys(section string, pools map[string][]Outcome) error {
	for key := range pools {
		if key == GeneralPool {
			continue
		}
		if _, err := ParseEventType(key); err != nil {
			return fmt.Errorf("%s: %w", section, err)
		}
	}
	return nil
}

// Name returns the board name
func (c *Catalog) Name() string {
	return c.name
}

// StartTile returns the tile every team starts on and returns to on reset
func (c *Catalog) StartTile() grid.Tile {
	return c.start
}

// Tile returns the definition for t. Tiles without a definition have no events.
func (c *Catalog) Tile(t grid.Tile) (TileDefinition, bool) {
	def, ok := c.tiles[t]
	if !ok {
		return TileDefinition{Tile: t}, false
	}
	def.Slots = append([]Slot(nil), def.Slots...)
	return def, true
}

// Tiles returns all defined tiles in board order
func (c *Catalog) Tiles() []TileDefinition {
	out := make([]TileDefinition, 0, len(c.tiles))
	for t := range c.tiles {
		def, _ := c.Tile(t)
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tile.Row != out[j].Tile.Row {
			return out[i].Tile.Row < out[j].Tile.Row
		}
		return out[i].Tile.Col < out[j].Tile.Col
	})
	return out
}

// RewardPool returns the rewards for t, falling back to the general pool
func (c *Catalog) RewardPool(t EventType) []Outcome {
	return pool(c.rewards, t)
}

// PenaltyPool returns the penalties for t, falling back to the general pool
func (c *Catalog) PenaltyPool(t EventType) []Outcome {
	return pool(c.penalties, t)
}

func pool(pools map[string][]Outcome, t EventType) []Outcome {
	if list := pools[string(t)]; len(list) > 0 {
		return append([]Outcome(nil), list...)
	}
	return append([]Outcome(nil), pools[GeneralPool]...)
}
