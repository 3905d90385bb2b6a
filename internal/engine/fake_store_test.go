package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hunterjsb/boardbot/internal/grid"
)

type progressKey struct {
	team string
	tile grid.Tile
	slot int
}

// fakeStore is an in-memory Store. Each call locks on its own, so the
// engine's read-modify-write cycles are only safe under the team lock.
type fakeStore struct {
	mu       sync.Mutex
	teams    map[string]Team
	progress map[progressKey]Progress
	items    []Item

	// failures injected by tests
	setLocationErr error
	setProgressErr error
	transientLeft  int
	calls          map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		teams:    make(map[string]Team),
		progress: make(map[progressKey]Progress),
		calls:    make(map[string]int),
	}
}

func (s *fakeStore) count(op string) {
	s.calls[op]++
}

func (s *fakeStore) CreateTeam(_ context.Context, team Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("CreateTeam")

	key := strings.ToLower(team.Name)
	if _, ok := s.teams[key]; ok {
		return ErrTeamExists
	}
	team.Explored = append([]grid.Tile(nil), team.Explored...)
	s.teams[key] = team
	return nil
}

func (s *fakeStore) GetTeam(_ context.Context, name string) (Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("GetTeam")

	team, ok := s.teams[strings.ToLower(name)]
	if !ok {
		return Team{}, ErrTeamNotFound
	}
	team.Explored = append([]grid.Tile(nil), team.Explored...)
	return team, nil
}

func (s *fakeStore) TeamByChannel(_ context.Context, channelID string) (Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, team := range s.teams {
		if team.ChannelID == channelID {
			return team, nil
		}
	}
	return Team{}, ErrTeamNotFound
}

func (s *fakeStore) ListTeams(_ context.Context) ([]Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Team
	for _, team := range s.teams {
		out = append(out, team)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) SetLocation(_ context.Context, name string, tile grid.Tile, explored []grid.Tile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("SetLocation")

	if s.transientLeft > 0 {
		s.transientLeft--
		return fmt.Errorf("%w: database is locked", ErrTransient)
	}
	if s.setLocationErr != nil {
		return s.setLocationErr
	}
	key := strings.ToLower(name)
	team, ok := s.teams[key]
	if !ok {
		return ErrTeamNotFound
	}
	team.Location = tile
	team.Explored = append([]grid.Tile(nil), explored...)
	s.teams[key] = team
	return nil
}

func (s *fakeStore) GetEventProgress(_ context.Context, name string, tile grid.Tile, slot int) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.progress[progressKey{strings.ToLower(name), tile, slot}]
	if !ok {
		return Progress{Team: name, Tile: tile, Slot: slot, Status: NotStarted}, nil
	}
	return p, nil
}

func (s *fakeStore) SetEventProgress(_ context.Context, p Progress, awarded *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("SetEventProgress")

	if s.setProgressErr != nil {
		return s.setProgressErr
	}
	s.progress[progressKey{strings.ToLower(p.Team), p.Tile, p.Slot}] = p
	if awarded != nil {
		s.items = append(s.items, *awarded)
	}
	return nil
}

func (s *fakeStore) ListItems(_ context.Context, team string, includeConsumed bool) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Item
	for _, it := range s.items {
		if !strings.EqualFold(it.Team, team) || (it.Consumed && !includeConsumed) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *fakeStore) ConsumeItem(_ context.Context, team, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id && strings.EqualFold(s.items[i].Team, team) && !s.items[i].Consumed {
			s.items[i].Consumed = true
			return nil
		}
	}
	return ErrItemNotFound
}

func (s *fakeStore) ResetTeam(_ context.Context, name string, start grid.Tile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(name)
	team, ok := s.teams[key]
	if !ok {
		return ErrTeamNotFound
	}
	team.Location = start
	team.Explored = []grid.Tile{start}
	s.teams[key] = team

	for k := range s.progress {
		if k.team == key {
			delete(s.progress, k)
		}
	}
	kept := s.items[:0]
	for _, it := range s.items {
		if !strings.EqualFold(it.Team, name) {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return nil
}

// recordingNotifier keeps every notification
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return n.err
}

func (n *recordingNotifier) last() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return Notification{}
	}
	return n.sent[len(n.sent)-1]
}

type stubRenderer struct {
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, req RenderRequest) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png:" + string(req.Mode) + ":" + req.Focus), nil
}

// fixedRoller always returns the configured outcomes
type fixedRoller struct {
	reward  bool
	penalty bool
}
