package mapimage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/hunterjsb/boardbot/internal/cache"
	"github.com/hunterjsb/boardbot/internal/catalog"
	"github.com/hunterjsb/boardbot/internal/engine"
	"github.com/hunterjsb/boardbot/internal/grid"
)

func newTestRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	r, err := New(catalog.Default(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func team(name, loc string, explored ...string) engine.Team {
	tm := engine.Team{Name: name, Location: grid.MustParseTile(loc)}
	for _, e := range explored {
		tm.Explored = append(tm.Explored, grid.MustParseTile(e))
	}
	return tm
}

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("Expected valid PNG: %v", err)
	}
	return img
}

// probe returns a pixel inside the tile clear of labels and markers
func probe(img image.Image, id string) color.RGBA {
	rect := cellRect(grid.MustParseTile(id))
	return color.RGBAModel.Convert(img.At(rect.Min.X+10, rect.Max.Y-10)).(color.RGBA)
}

func TestRenderAll(t *testing.T) {
	r := newTestRenderer(t)
	teams := []engine.Team{team("Zezima", "B5", "A5", "B5"), team("Woox", "A5", "A5")}

	b, err := r.Render(context.Background(), engine.RenderRequest{Teams: teams, Mode: engine.MapAll})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decode(t, b)

	if img.Bounds().Dx() != Width || img.Bounds().Dy() != Height {
		t.Errorf("Expected %dx%d, got %v", Width, Height, img.Bounds())
	}

	// nothing is hidden in all mode
	if got := probe(img, "F1"); got != emptyTile {
		t.Errorf("Expected empty tile colour on F1, got %v", got)
	}
	if got := probe(img, "B5"); got != tint(catalog.Quest.Color()) {
		t.Errorf("Expected quest tint on B5, got %v", got)
	}
}

func TestRenderTeamHidesUnexplored(t *testing.T) {
	r := newTestRenderer(t)
	teams := []engine.Team{team("Zezima", "B5", "A5", "B5"), team("Woox", "F10", "A5", "F10")}

	b, err := r.Render(context.Background(), engine.RenderRequest{Teams: teams, Mode: engine.MapTeam, Focus: "zezima"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decode(t, b)

	if got := probe(img, "C5"); got != fog {
		t.Errorf("Expected unexplored C5 to be fogged, got %v", got)
	}
	if got := probe(img, "F10"); got != fog {
		t.Errorf("Expected another team's tile to stay fogged, got %v", got)
	}
	if got := probe(img, "A5"); got == fog {
		t.Error("Expected explored A5 to be visible")
	}
	if got := probe(img, "B5"); got == fog {
		t.Error("Expected current tile B5 to be visible")
	}

	rect := cellRect(grid.MustParseTile("B5"))
	cx := rect.Min.X + CellSize/2
	cy := rect.Max.Y - markerRadius - 6
	got := color.RGBAModel.Convert(img.At(cx-10, cy)).(color.RGBA)
	if got != TeamColor("Zezima") {
		t.Errorf("Expected Zezima marker on B5, got %v", got)
	}
}

func TestRenderCache(t *testing.T) {
	c := cache.New[[]byte](time.Minute)
	r := newTestRenderer(t, WithCache(c))
	ctx := context.Background()
	req := engine.RenderRequest{Teams: []engine.Team{team("Zezima", "A5", "A5")}, Mode: engine.MapAll}

	first, err := r.Render(ctx, req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := r.Render(ctx, req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(first, second) || c.Len() != 1 {
		t.Errorf("Expected cached image, cache has %d entries", c.Len())
	}

	req.Teams = []engine.Team{team("Zezima", "B5", "A5", "B5")}
	if _, err := r.Render(ctx, req); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Expected a new entry after moving, got %d", c.Len())
	}
}

func TestRenderCancelled(t *testing.T) {
	r := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, engine.RenderRequest{Mode: engine.MapAll}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestRenderBackground(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 60, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 60; x++ {
			bg.Set(x, y, color.RGBA{0x10, 0x80, 0x10, 0xff})
		}
	}
	r := newTestRenderer(t, WithBackground(bg))

	b, err := r.Render(context.Background(), engine.RenderRequest{Mode: engine.MapAll})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decode(t, b)

	// undefined tiles show the background through
	if got := probe(img, "F1"); got == emptyTile {
		t.Errorf("Expected background on F1, got %v", got)
	}
}

func TestStateKey(t *testing.T) {
	teams := []engine.Team{team("Zezima", "B5", "A5", "B5"), team("Woox", "A5", "A5")}

	a := stateKey(engine.RenderRequest{Teams: teams, Mode: engine.MapTeam, Focus: "Zezima"})
	teams[1].Location = grid.MustParseTile("A4")
	b := stateKey(engine.RenderRequest{Teams: teams, Mode: engine.MapTeam, Focus: "zezima"})
	if a != b {
		t.Errorf("Expected other teams not to affect the team map key: %q vs %q", a, b)
	}

	c := stateKey(engine.RenderRequest{Teams: teams, Mode: engine.MapAll})
	teams[1].Location = grid.MustParseTile("A3")
	d := stateKey(engine.RenderRequest{Teams: teams, Mode: engine.MapAll})
	if c == d {
		t.Error("Expected any team move to change the full map key")
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Zezima", "ZE"},
		{"Iron Men", "IM"},
		{"q", "Q"},
		{"   ", "?"},
	}
	for _, tt := range tests {
		if got := initials(tt.name); got != tt.want {
			t.Errorf("initials(%q): Expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

func TestTeamColorStable(t *testing.T) {
	if TeamColor("Zezima") != TeamColor("zezima") {
		t.Error("Expected team colour to ignore case")
	}
}
