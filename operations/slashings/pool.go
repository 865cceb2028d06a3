// Package slashings holds proposer- and attester-slashing evidence the
// node has observed but not yet seen included in a block, so a proposer
// can offer it and earn the whistleblower reward helpers.SlashValidator
// pays out.
package slashings

import (
	"sync"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/blocks"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// Pool is the node's pending-slashing-evidence pool.
type Pool struct {
	mu                sync.Mutex
	proposerSlashings []*types.ProposerSlashing
	attesterSlashings []*types.AttesterSlashing
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{}
}

// SaveProposerSlashing adds s to the pool.
func (p *Pool) SaveProposerSlashing(s *types.ProposerSlashing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proposerSlashings = append(p.proposerSlashings, s)
}

// SaveAttesterSlashing adds s to the pool.
func (p *Pool) SaveAttesterSlashing(s *types.AttesterSlashing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attesterSlashings = append(p.attesterSlashings, s)
}

// PendingProposerSlashings returns every pooled proposer slashing that
// still verifies against state, bounded to MAX_PROPOSER_SLASHINGS.
func (p *Pool) PendingProposerSlashings(state *types.BeaconState) []types.ProposerSlashing {
	cfg := params.BeaconConfig()
	p.mu.Lock()
	candidates := append([]*types.ProposerSlashing{}, p.proposerSlashings...)
	p.mu.Unlock()

	var ready []types.ProposerSlashing
	for _, s := range candidates {
		if err := blocks.VerifyProposerSlashing(state, s); err != nil {
			continue
		}
		ready = append(ready, *s)
		if uint64(len(ready)) == cfg.MaxProposerSlashings {
			break
		}
	}
	return ready
}

// PendingAttesterSlashings returns every pooled attester slashing that
// still verifies against state, bounded to MAX_ATTESTER_SLASHINGS.
func (p *Pool) PendingAttesterSlashings(state *types.BeaconState) []types.AttesterSlashing {
	cfg := params.BeaconConfig()
	p.mu.Lock()
	candidates := append([]*types.AttesterSlashing{}, p.attesterSlashings...)
	p.mu.Unlock()

	var ready []types.AttesterSlashing
	for _, s := range candidates {
		if err := blocks.VerifyAttesterSlashing(s); err != nil {
			continue
		}
		ready = append(ready, *s)
		if uint64(len(ready)) == cfg.MaxAttesterSlashings {
			break
		}
	}
	return ready
}

// MarkIncludedProposerSlashing removes a slashing once a processed block
// has included it, so a later proposer doesn't offer it again.
func (p *Pool) MarkIncludedProposerSlashing(s *types.ProposerSlashing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.proposerSlashings {
		if c.ProposerIndex == s.ProposerIndex {
			p.proposerSlashings = append(p.proposerSlashings[:i], p.proposerSlashings[i+1:]...)
			return
		}
	}
}

// MarkIncludedAttesterSlashing removes s from the pool once a processed
// block has included it.
func (p *Pool) MarkIncludedAttesterSlashing(s *types.AttesterSlashing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.attesterSlashings {
		if c.SlashableAttestation1.Data.Equal(&s.SlashableAttestation1.Data) &&
			c.SlashableAttestation2.Data.Equal(&s.SlashableAttestation2.Data) {
			p.attesterSlashings = append(p.attesterSlashings[:i], p.attesterSlashings[i+1:]...)
			return
		}
	}
}
