// Package voluntaryexits holds voluntary-exit requests the node has
// observed but not yet seen included in a block, bounded the same way
// core/blocks.ProcessVoluntaryExits bounds a block body's own list.
package voluntaryexits

import (
	"sync"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/blocks"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// Pool is the node's pending-voluntary-exit pool.
type Pool struct {
	mu    sync.Mutex
	exits []*types.VoluntaryExit
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{}
}

// Save adds exit to the pool, unless that validator already has one
// pending.
func (p *Pool) Save(exit *types.VoluntaryExit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.exits {
		if e.ValidatorIndex == exit.ValidatorIndex {
			return
		}
	}
	p.exits = append(p.exits, exit)
}

// PendingExits returns every pooled exit that still verifies against
// state, bounded to MAX_VOLUNTARY_EXITS.
func (p *Pool) PendingExits(state *types.BeaconState) []types.VoluntaryExit {
	cfg := params.BeaconConfig()
	p.mu.Lock()
	candidates := append([]*types.VoluntaryExit{}, p.exits...)
	p.mu.Unlock()

	var ready []types.VoluntaryExit
	for _, e := range candidates {
		if err := blocks.VerifyVoluntaryExit(state, e, false); err != nil {
			continue
		}
		ready = append(ready, *e)
		if uint64(len(ready)) == cfg.MaxVoluntaryExits {
			break
		}
	}
	return ready
}

// MarkIncluded removes a validator's exit once a processed block has
// included it.
func (p *Pool) MarkIncluded(validatorIndex uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.exits {
		if e.ValidatorIndex == validatorIndex {
			p.exits = append(p.exits[:i], p.exits[i+1:]...)
			return
		}
	}
}
