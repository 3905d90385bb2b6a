package rewards

import (
	"math/rand/v2"
	"sync"

	"github.com/hunterjsb/boardbot/internal/catalog"
)

// RewardOdds is the 1-in-N chance of a reward on completion
const RewardOdds = 3

// Source is the random source the roller draws from
type Source interface {
	IntN(n int) int
}

// Pools supplies the outcome pools for an event type
type Pools interface {
	RewardPool(t catalog.EventType) []catalog.Outcome
	PenaltyPool(t catalog.EventType) []catalog.Outcome
}

// Roller rolls rewards and penalties from the catalog pools
type Roller struct {
	mu    sync.Mutex
	src   Source
	pools Pools
}

// NewRoller creates a roller. A nil source uses a randomly seeded PCG.
func NewRoller(pools Pools, src Source) *Roller {
	if src == nil {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Roller{src: src, pools: pools}
}

// RollCompletion returns a reward with probability 1/RewardOdds
func (r *Roller) RollCompletion(t catalog.EventType) (catalog.Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.src.IntN(RewardOdds) != 0 {
		return catalog.Outcome{}, false
	}
	return r.pick(r.pools.RewardPool(t))
}

// RollForfeit always returns a penalty when the pool is non-empty
func (r *Roller) RollForfeit(t catalog.EventType) (catalog.Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pick(r.pools.PenaltyPool(t))
}

func (r *Roller) pick(pool []catalog.Outcome) (catalog.Outcome, bool) {
	if len(pool) == 0 {
		return catalog.Outcome{}, false
	}
	return pool[r.src.IntN(len(pool))], true
}
