package slashings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

func TestPool_MarkIncludedProposerSlashing(t *testing.T) {
	p := NewPool()
	p.SaveProposerSlashing(&types.ProposerSlashing{ProposerIndex: 4})
	p.SaveProposerSlashing(&types.ProposerSlashing{ProposerIndex: 9})

	p.MarkIncludedProposerSlashing(&types.ProposerSlashing{ProposerIndex: 4})

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Len(t, p.proposerSlashings, 1)
	assert.Equal(t, uint64(9), p.proposerSlashings[0].ProposerIndex)
}

func TestPool_MarkIncludedAttesterSlashing(t *testing.T) {
	p := NewPool()
	s1 := &types.AttesterSlashing{
		SlashableAttestation1: types.SlashableAttestation{Data: types.AttestationData{Slot: 1}},
		SlashableAttestation2: types.SlashableAttestation{Data: types.AttestationData{Slot: 1, Shard: 1}},
	}
	s2 := &types.AttesterSlashing{
		SlashableAttestation1: types.SlashableAttestation{Data: types.AttestationData{Slot: 2}},
		SlashableAttestation2: types.SlashableAttestation{Data: types.AttestationData{Slot: 2, Shard: 1}},
	}
	p.SaveAttesterSlashing(s1)
	p.SaveAttesterSlashing(s2)

	p.MarkIncludedAttesterSlashing(s1)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Len(t, p.attesterSlashings, 1)
	assert.Equal(t, types.Slot(2), p.attesterSlashings[0].SlashableAttestation1.Data.Slot)
}
