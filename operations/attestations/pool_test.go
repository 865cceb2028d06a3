package attestations

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

func att(slot types.Slot, salt byte) *types.Attestation {
	bits := bitfield.NewBitlist(8)
	bits.SetBitAt(0, true)
	return &types.Attestation{
		Data:                types.AttestationData{Slot: slot, BeaconBlockRoot: types.Root{salt}},
		AggregationBitfield: bits,
		CustodyBitfield:     bitfield.NewBitlist(8),
	}
}

func TestPool_Prune_DropsExpiredAttestations(t *testing.T) {
	params.OverrideBeaconConfig(params.MinimalConfig())
	defer params.OverrideBeaconConfig(params.MainnetConfig())
	cfg := params.BeaconConfig()

	p := NewPool()
	p.Save(att(1, 1))
	p.Save(att(10, 2))

	st := &types.BeaconState{Slot: types.Slot(1 + cfg.SlotsPerEpoch)}
	p.Prune(st)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.atts, 1)
	assert.Equal(t, types.Slot(10), p.atts[0].Data.Slot)
}

func TestPool_Remove_DropsIncludedAttestations(t *testing.T) {
	p := NewPool()
	a1, a2 := att(5, 1), att(5, 2)
	p.Save(a1)
	p.Save(a2)

	p.Remove([]types.Attestation{*a1})

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.atts, 1)
	assert.Equal(t, a2.Data.BeaconBlockRoot, p.atts[0].Data.BeaconBlockRoot)
}
