package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

func TestTransitionType_String(t *testing.T) {
	assert.Equal(t, "slot", SlotTransition.String())
	assert.Equal(t, "block", BlockTransition.String())
	assert.Equal(t, "epoch", EpochTransition.String())
	assert.Equal(t, "unknown", TransitionType(99).String())
}

func TestLegalNext(t *testing.T) {
	assert.True(t, legalNext(SlotTransition, SlotTransition))
	assert.True(t, legalNext(SlotTransition, BlockTransition))
	assert.True(t, legalNext(SlotTransition, EpochTransition))
	assert.True(t, legalNext(BlockTransition, SlotTransition))
	assert.False(t, legalNext(BlockTransition, BlockTransition))
	assert.False(t, legalNext(BlockTransition, EpochTransition))
	assert.True(t, legalNext(EpochTransition, SlotTransition))
	assert.True(t, legalNext(EpochTransition, BlockTransition))
	assert.False(t, legalNext(EpochTransition, EpochTransition))
}

func TestTransitioner_Advance_RejectsIllegalSequence(t *testing.T) {
	tr := &Transitioner{}
	require.NoError(t, tr.advance(BlockTransition))
	err := tr.advance(BlockTransition)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal transition")
}

func TestTransitioner_Advance_FirstCallIsAlwaysLegal(t *testing.T) {
	tr := &Transitioner{}
	require.NoError(t, tr.advance(EpochTransition))
}

func testMinimalState(t *testing.T, numValidators int, slot types.Slot) *types.BeaconState {
	t.Helper()
	cfg := params.MinimalConfig()
	params.OverrideBeaconConfig(cfg)
	registry := make([]types.Validator, numValidators)
	balances := make([]types.Gwei, numValidators)
	for i := range registry {
		registry[i] = types.Validator{
			ActivationEpoch:            0,
			ActivationEligibilityEpoch: types.Epoch(cfg.FarFutureEpoch),
			ExitEpoch:                  types.Epoch(cfg.FarFutureEpoch),
			WithdrawableEpoch:          types.Epoch(cfg.FarFutureEpoch),
			EffectiveBalance:           types.Gwei(cfg.MaxEffectiveBalance),
		}
		registry[i].Pubkey[0] = byte(i)
		balances[i] = types.Gwei(cfg.MaxEffectiveBalance)
	}
	return &types.BeaconState{
		Slot:                   slot,
		ValidatorRegistry:      registry,
		ValidatorBalances:      balances,
		LatestRandaoMixes:      make([]types.Root, cfg.EpochsPerHistoricalVector),
		LatestActiveIndexRoots: make([]types.Root, cfg.EpochsPerHistoricalVector),
		LatestSlashedBalances:  make([]types.Gwei, cfg.EpochsPerSlashingsVector),
		LatestBlockRoots:       make([]types.Root, cfg.SlotsPerHistoricalRoot),
		LatestCrosslinks:       make([]types.Crosslink, cfg.ShardCount),
	}
}

func TestProcessSlot_CopiesBlockRootForward(t *testing.T) {
	defer params.OverrideBeaconConfig(params.MainnetConfig())
	st := testMinimalState(t, 8, 3)
	var want types.Root
	want[0] = 0xAB
	n := uint64(len(st.LatestBlockRoots))
	st.LatestBlockRoots[uint64(st.Slot)%n] = want

	tr := &Transitioner{}
	require.NoError(t, tr.ProcessSlot(st))

	assert.Equal(t, types.Slot(4), st.Slot)
	assert.Equal(t, want, st.LatestBlockRoots[uint64(st.Slot)%n])
}

func TestProcessSlot_EmbedsEpochTransitionAtBoundary(t *testing.T) {
	defer params.OverrideBeaconConfig(params.MainnetConfig())
	cfg := params.MinimalConfig()
	st := testMinimalState(t, 8, types.Slot(cfg.SlotsPerEpoch)-1)

	tr := &Transitioner{}
	require.NoError(t, tr.ProcessSlot(st))

	assert.Equal(t, EpochTransition, tr.last)
}
