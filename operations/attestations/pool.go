// Package attestations holds every gossiped Attestation the node has not
// yet seen included in a block: the pool a proposer packs a block body
// from and fork choice folds into its vote tally.
package attestations

import (
	"sort"
	"sync"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/blocks"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// Pool is the node's pending-attestation pool.
type Pool struct {
	mu   sync.Mutex
	atts []*types.Attestation
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{}
}

// Save adds att to the pool. Save does not deduplicate: gossip naturally
// redelivers the same attestation from multiple peers, and both Aggregated
// and Prune tolerate duplicates.
func (p *Pool) Save(att *types.Attestation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.atts = append(p.atts, att)
}

// Prune drops every attestation whose inclusion window has closed: once
// state.slot has moved SLOTS_PER_EPOCH or more past the attestation's
// own slot, VerifyAttestation's bounds check can never pass for it again.
func (p *Pool) Prune(state *types.BeaconState) {
	cfg := params.BeaconConfig()
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.atts[:0]
	for _, a := range p.atts {
		if uint64(state.Slot) < uint64(a.Data.Slot)+cfg.SlotsPerEpoch {
			kept = append(kept, a)
		}
	}
	p.atts = kept
}

// Remove drops every attestation that now appears in a processed block's
// body, so a later proposer doesn't offer them again.
func (p *Pool) Remove(included []types.Attestation) {
	if len(included) == 0 {
		return
	}
	seen := make(map[[32]byte]bool, len(included))
	for i := range included {
		if root, err := included[i].Data.HashTreeRoot(); err == nil {
			seen[root] = true
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.atts[:0]
	for _, a := range p.atts {
		root, err := a.Data.HashTreeRoot()
		if err == nil && seen[root] {
			continue
		}
		kept = append(kept, a)
	}
	p.atts = kept
}

// Aggregated returns every pooled attestation currently eligible for
// inclusion against state, sorted oldest-slot-first (the order a proposer
// fills its MAX_ATTESTATIONS budget in) and bounded to that budget. Each
// candidate is run through VerifyAttestation with signature checking
// skipped, since a network attestation's aggregate signature is already
// checked at gossip time; a proposer including Aggregated's output
// verbatim still can't build a block that fails VerifyAttestation on the
// other grounds (inclusion delay, justified checkpoint, crosslink
// agreement).
func (p *Pool) Aggregated(state *types.BeaconState) []types.Attestation {
	cfg := params.BeaconConfig()

	p.mu.Lock()
	candidates := append([]*types.Attestation{}, p.atts...)
	p.mu.Unlock()

	var ready []types.Attestation
	for _, a := range candidates {
		if err := blocks.VerifyAttestation(state, a, false); err != nil {
			continue
		}
		ready = append(ready, *a)
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].Data.Slot < ready[j].Data.Slot })
	if uint64(len(ready)) > cfg.MaxAttestations {
		ready = ready[:cfg.MaxAttestations]
	}
	return ready
}
