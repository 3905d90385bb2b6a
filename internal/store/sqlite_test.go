package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hunterjsb/boardbot/internal/engine"
	"github.com/hunterjsb/boardbot/internal/grid"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTeam(t *testing.T, s *SQLiteStore, name, channel string) engine.Team {
	t.Helper()
	start := grid.MustParseTile("A5")
	team := engine.Team{
		Name:      name,
		ChannelID: channel,
		Location:  start,
		Explored:  []grid.Tile{start},
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.CreateTeam(context.Background(), team); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	return team
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestCreateAndGetTeam(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := createTeam(t, s, "Zezima", "chan-1")

	got, err := s.GetTeam(ctx, "zezima")
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if got.Name != want.Name || got.ChannelID != want.ChannelID || got.Location != want.Location {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("Expected created %v, got %v", want.CreatedAt, got.CreatedAt)
	}
	if len(got.Explored) != 1 || got.Explored[0] != want.Location {
		t.Errorf("Expected explored [A5], got %v", got.Explored)
	}

	err = s.CreateTeam(ctx, engine.Team{Name: "ZEZIMA", Location: want.Location})
	if !errors.Is(err, engine.ErrTeamExists) {
		t.Errorf("Expected ErrTeamExists, got %v", err)
	}

	if _, err := s.GetTeam(ctx, "Woox"); !errors.Is(err, engine.ErrTeamNotFound) {
		t.Errorf("Expected ErrTeamNotFound, got %v", err)
	}
}

func TestTeamByChannel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTeam(t, s, "Zezima", "chan-1")
	createTeam(t, s, "Woox", "chan-2")

	got, err := s.TeamByChannel(ctx, "chan-2")
	if err != nil {
		t.Fatalf("TeamByChannel: %v", err)
	}
	if got.Name != "Woox" {
		t.Errorf("Expected Woox, got %s", got.Name)
	}

	if _, err := s.TeamByChannel(ctx, "chan-9"); !errors.Is(err, engine.ErrTeamNotFound) {
		t.Errorf("Expected ErrTeamNotFound, got %v", err)
	}

	teams, err := s.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 2 || teams[0].Name != "Woox" || teams[1].Name != "Zezima" {
		t.Errorf("Expected [Woox Zezima], got %v", teams)
	}
}

func TestSetLocation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTeam(t, s, "Zezima", "chan-1")

	explored := []grid.Tile{grid.MustParseTile("A5"), grid.MustParseTile("B5"), grid.MustParseTile("B6")}
	if err := s.SetLocation(ctx, "Zezima", grid.MustParseTile("B6"), explored); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}

	got, err := s.GetTeam(ctx, "Zezima")
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if got.Location.String() != "B6" {
		t.Errorf("Expected B6, got %s", got.Location)
	}
	if len(got.Explored) != 3 {
		t.Fatalf("Expected 3 explored tiles, got %v", got.Explored)
	}
	for i, tile := range explored {
		if got.Explored[i] != tile {
			t.Errorf("Expected explored[%d] = %s, got %s", i, tile, got.Explored[i])
		}
	}

	err = s.SetLocation(ctx, "Nobody", grid.MustParseTile("B6"), explored)
	if !errors.Is(err, engine.ErrTeamNotFound) {
		t.Errorf("Expected ErrTeamNotFound, got %v", err)
	}
}

func TestEventProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTeam(t, s, "Zezima", "chan-1")
	b5 := grid.MustParseTile("B5")

	p, err := s.GetEventProgress(ctx, "Zezima", b5, 0)
	if err != nil {
		t.Fatalf("GetEventProgress: %v", err)
	}
	if p.Status != engine.NotStarted || p.Items != 0 || p.Screenshots != 0 {
		t.Errorf("Expected empty not_started record, got %+v", p)
	}

	p.Items = 1
	p.Status = engine.InProgress
	p.UpdatedAt = time.Now()
	if err := s.SetEventProgress(ctx, p, nil); err != nil {
		t.Fatalf("SetEventProgress: %v", err)
	}

	p.Items = 2
	p.Status = engine.Completed
	item := &engine.Item{
		ID:        "item-1",
		Team:      "Zezima",
		Kind:      engine.Reward,
		Name:      "Extra Roll",
		OneOff:    true,
		Tile:      b5,
		CreatedAt: time.Now(),
	}
	if err := s.SetEventProgress(ctx, p, item); err != nil {
		t.Fatalf("SetEventProgress: %v", err)
	}

	got, err := s.GetEventProgress(ctx, "zezima", b5, 0)
	if err != nil {
		t.Fatalf("GetEventProgress: %v", err)
	}
	if got.Items != 2 || got.Status != engine.Completed {
		t.Errorf("Expected 2 items completed, got %+v", got)
	}

	items, err := s.ListItems(ctx, "Zezima", false)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Extra Roll" || !items[0].OneOff || items[0].Tile != b5 {
		t.Errorf("Expected the awarded item, got %+v", items)
	}
}

func TestSetEventProgressIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTeam(t, s, "Zezima", "chan-1")
	b5 := grid.MustParseTile("B5")

	seed := &engine.Item{ID: "dup", Team: "Zezima", Kind: engine.Reward, Name: "Seed", Tile: b5, CreatedAt: time.Now()}
	if err := s.SetEventProgress(ctx, engine.Progress{Team: "Zezima", Tile: b5, Slot: 1, Status: engine.Completed}, seed); err != nil {
		t.Fatalf("SetEventProgress: %v", err)
	}

	// duplicate item id fails the insert, so the progress write must not land
	p := engine.Progress{Team: "Zezima", Tile: b5, Slot: 0, Items: 2, Status: engine.Completed}
	if err := s.SetEventProgress(ctx, p, seed); err == nil {
		t.Fatal("Expected duplicate item error")
	}

	got, err := s.GetEventProgress(ctx, "Zezima", b5, 0)
	if err != nil {
		t.Fatalf("GetEventProgress: %v", err)
	}
	if got.Status != engine.NotStarted {
		t.Errorf("Expected progress rolled back, got %+v", got)
	}
}

func TestSetEventProgressUnknownTeam(t *testing.T) {
	s := openTestStore(t)
	p := engine.Progress{Team: "Nobody", Tile: grid.MustParseTile("B5"), Status: engine.InProgress}
	err := s.SetEventProgress(context.Background(), p, nil)
	if !errors.Is(err, engine.ErrTeamNotFound) {
		t.Errorf("Expected ErrTeamNotFound, got %v", err)
	}
}

func TestConsumeItem(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTeam(t, s, "Zezima", "chan-1")
	b5 := grid.MustParseTile("B5")

	item := &engine.Item{ID: "item-1", Team: "Zezima", Kind: engine.Penalty, Name: "Twisted Ankle", OneOff: true, Tile: b5, CreatedAt: time.Now()}
	if err := s.SetEventProgress(ctx, engine.Progress{Team: "Zezima", Tile: b5, Status: engine.Forfeited}, item); err != nil {
		t.Fatalf("SetEventProgress: %v", err)
	}

	if err := s.ConsumeItem(ctx, "Zezima", "item-1"); err != nil {
		t.Fatalf("ConsumeItem: %v", err)
	}
	if err := s.ConsumeItem(ctx, "Zezima", "item-1"); !errors.Is(err, engine.ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound on second use, got %v", err)
	}

	open, _ := s.ListItems(ctx, "Zezima", false)
	if len(open) != 0 {
		t.Errorf("Expected no unconsumed items, got %v", open)
	}
	all, _ := s.ListItems(ctx, "Zezima", true)
	if len(all) != 1 || !all[0].Consumed || all[0].Kind != engine.Penalty {
		t.Errorf("Expected one consumed penalty, got %+v", all)
	}
}

func TestResetTeam(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTeam(t, s, "Zezima", "chan-1")
	createTeam(t, s, "Woox", "chan-2")
	b5 := grid.MustParseTile("B5")
	a5 := grid.MustParseTile("A5")

	for _, name := range []string{"Zezima", "Woox"} {
		if err := s.SetLocation(ctx, name, b5, []grid.Tile{a5, b5}); err != nil {
			t.Fatalf("SetLocation: %v", err)
		}
		item := &engine.Item{ID: "item-" + name, Team: name, Kind: engine.Reward, Name: "Extra Roll", Tile: b5, CreatedAt: time.Now()}
		if err := s.SetEventProgress(ctx, engine.Progress{Team: name, Tile: b5, Items: 2, Status: engine.Completed}, item); err != nil {
			t.Fatalf("SetEventProgress: %v", err)
		}
	}

	if err := s.ResetTeam(ctx, "Zezima", a5); err != nil {
		t.Fatalf("ResetTeam: %v", err)
	}

	team, _ := s.GetTeam(ctx, "Zezima")
	if team.Location != a5 || len(team.Explored) != 1 {
		t.Errorf("Expected Zezima back on A5 with one explored tile, got %+v", team)
	}
	p, _ := s.GetEventProgress(ctx, "Zezima", b5, 0)
	if p.Status != engine.NotStarted {
		t.Errorf("Expected progress cleared, got %+v", p)
	}
	if items, _ := s.ListItems(ctx, "Zezima", true); len(items) != 0 {
		t.Errorf("Expected items cleared, got %v", items)
	}

	// other teams are untouched
	other, _ := s.GetTeam(ctx, "Woox")
	if other.Location != b5 {
		t.Errorf("Expected Woox still on B5, got %s", other.Location)
	}
	if items, _ := s.ListItems(ctx, "Woox", true); len(items) != 1 {
		t.Errorf("Expected Woox to keep its item, got %v", items)
	}

	if err := s.ResetTeam(ctx, "Nobody", a5); !errors.Is(err, engine.ErrTeamNotFound) {
		t.Errorf("Expected ErrTeamNotFound, got %v", err)
	}
}

func TestExportImport(t *testing.T) {
	src := openTestStore(t)
	ctx := context.Background()
	createTeam(t, src, "Zezima", "chan-1")
	createTeam(t, src, "Woox", "chan-2")
	a5, b5 := grid.MustParseTile("A5"), grid.MustParseTile("B5")

	if err := src.SetLocation(ctx, "Zezima", b5, []grid.Tile{a5, b5}); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	item := &engine.Item{ID: "item-1", Team: "Zezima", Kind: engine.Reward, Name: "Map Fragment", Description: "Reveal a tile", Tile: b5, CreatedAt: time.Now()}
	if err := src.SetEventProgress(ctx, engine.Progress{Team: "Zezima", Tile: b5, Items: 2, Status: engine.Completed, UpdatedAt: time.Now()}, item); err != nil {
		t.Fatalf("SetEventProgress: %v", err)
	}

	var buf bytes.Buffer
	n, err := src.Export(ctx, &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 teams exported, got %d", n)
	}

	dst := openTestStore(t)
	createTeam(t, dst, "Stale", "chan-9")

	n, err = dst.Import(ctx, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 teams imported, got %d", n)
	}

	if _, err := dst.GetTeam(ctx, "Stale"); !errors.Is(err, engine.ErrTeamNotFound) {
		t.Errorf("Expected import to replace existing teams, got %v", err)
	}
	team, err := dst.GetTeam(ctx, "Zezima")
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if team.Location != b5 || len(team.Explored) != 2 || team.ChannelID != "chan-1" {
		t.Errorf("Expected restored Zezima on B5, got %+v", team)
	}
	p, _ := dst.GetEventProgress(ctx, "Zezima", b5, 0)
	if p.Status != engine.Completed || p.Items != 2 {
		t.Errorf("Expected restored progress, got %+v", p)
	}
	items, _ := dst.ListItems(ctx, "Zezima", true)
	if len(items) != 1 || items[0].Description != "Reveal a tile" {
		t.Errorf("Expected restored item, got %+v", items)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	s := openTestStore(t)
	createTeam(t, s, "Zezima", "chan-1")

	if _, err := s.Import(context.Background(), bytes.NewReader([]byte("not zstd"))); err == nil {
		t.Fatal("Expected error for garbage input")
	}
	if _, err := s.GetTeam(context.Background(), "Zezima"); err != nil {
		t.Errorf("Expected existing data kept after failed import, got %v", err)
	}
}
