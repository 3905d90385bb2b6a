package rewards

import (
	"math/rand/v2"
	"testing"

	"github.com/hunterjsb/boardbot/internal/catalog"
)

type fixedPools struct {
	rewards   map[catalog.EventType][]catalog.Outcome
	penalties map[catalog.EventType][]catalog.Outcome
	general   []catalog.Outcome
}

func (p fixedPools) RewardPool(t catalog.EventType) []catalog.Outcome {
	if list, ok := p.rewards[t]; ok {
		return list
	}
	return p.general
}

func (p fixedPools) PenaltyPool(t catalog.EventType) []catalog.Outcome {
	if list, ok := p.penalties[t]; ok {
		return list
	}
	return p.general
}

// scripted returns the queued values in order
type scripted struct {
	values []int
}

func (s *scripted) IntN(n int) int {
	v := s.values[0]
	s.values = s.values[1:]
	return v % n
}

func testPools() fixedPools {
	return fixedPools{
		rewards: map[catalog.EventType][]catalog.Outcome{
			catalog.Boss: {{Name: "Cape"}},
		},
		penalties: map[catalog.EventType][]catalog.Outcome{
			catalog.Boss: {{Name: "Dragonfire"}},
		},
		general: []catalog.Outcome{{Name: "A"}, {Name: "B"}, {Name: "C"}},
	}
}

func TestRollCompletionScripted(t *testing.T) {
	src := &scripted{values: []int{0, 2, 1, 2}}
	r := NewRoller(testPools(), src)

	got, ok := r.RollCompletion(catalog.Quest)
	if !ok || got.Name != "C" {
		t.Errorf("Expected reward C, got %+v (%v)", got, ok)
	}

	if _, ok := r.RollCompletion(catalog.Quest); ok {
		t.Error("Expected no reward when the odds roll is non-zero")
	}
	if _, ok := r.RollCompletion(catalog.Quest); ok {
		t.Error("Expected no reward when the odds roll is non-zero")
	}
}

func TestRollUsesTypePool(t *testing.T) {
	r := NewRoller(testPools(), &scripted{values: []int{0, 0, 0}})

	if got, ok := r.RollCompletion(catalog.Boss); !ok || got.Name != "Cape" {
		t.Errorf("Expected Cape, got %+v", got)
	}
	if got, ok := r.RollForfeit(catalog.Boss); !ok || got.Name != "Dragonfire" {
		t.Errorf("Expected Dragonfire, got %+v", got)
	}
}

func TestRollForfeitAlwaysPenalizes(t *testing.T) {
	r := NewRoller(testPools(), rand.New(rand.NewPCG(7, 11)))

	for i := 0; i < 1000; i++ {
		if _, ok := r.RollForfeit(catalog.Puzzle); !ok {
			t.Fatalf("Forfeit %d produced no penalty", i)
		}
	}
}

func TestRollCompletionProbability(t *testing.T) {
	const trials = 10000
	r := NewRoller(testPools(), rand.New(rand.NewPCG(1, 2)))

	rewards := 0
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		if o, ok := r.RollCompletion(catalog.Quest); ok {
			rewards++
			counts[o.Name]++
		}
	}

	// mean 3333, sd ~47; five sd either side
	if rewards < 3097 || rewards > 3570 {
		t.Errorf("Expected ~1/3 rewards over %d trials, got %d", trials, rewards)
	}

	for _, name := range []string{"A", "B", "C"} {
		share := float64(counts[name]) / float64(rewards)
		if share < 0.28 || share > 0.39 {
			t.Errorf("Expected uniform pick, %s got share %.3f", name, share)
		}
	}
}

func TestEmptyPool(t *testing.T) {
	r := NewRoller(fixedPools{}, &scripted{values: []int{0}})
	if _, ok := r.RollForfeit(catalog.Quest); ok {
		t.Error("Expected no penalty from an empty pool")
	}
}
