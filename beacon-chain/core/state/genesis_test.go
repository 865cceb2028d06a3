package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

func genesisDeposits(t *testing.T, n int) []*types.Deposit {
	t.Helper()
	cfg := params.BeaconConfig()
	out := make([]*types.Deposit, n)
	for i := 0; i < n; i++ {
		var pubkey types.BLSPubkey
		pubkey[0] = byte(i + 1)
		out[i] = &types.Deposit{
			Index: uint64(i),
			Data: types.DepositData{
				Pubkey: pubkey,
				Amount: types.Gwei(cfg.MaxEffectiveBalance),
			},
		}
	}
	return out
}

// TestGenesisBeaconState_EightValidatorsThenAdvanceThreeSlots seeds a
// ChainStart with 8 full deposits under SLOTS_PER_EPOCH=8, producing a
// genesis state at GENESIS_SLOT with an 8-entry validator registry, and
// advancing 3 slots lands on GENESIS_SLOT+3 with the block-root ring
// updated.
func TestGenesisBeaconState_EightValidatorsThenAdvanceThreeSlots(t *testing.T) {
	params.OverrideBeaconConfig(params.MinimalConfig())
	defer params.OverrideBeaconConfig(params.MainnetConfig())
	cfg := params.BeaconConfig()
	require.Equal(t, uint64(8), cfg.SlotsPerEpoch)

	deposits := genesisDeposits(t, 8)
	var eth1Hash types.Root
	eth1Hash[0] = 0xEE

	st, err := GenesisBeaconState(deposits, 600, eth1Hash)
	require.NoError(t, err)

	assert.Equal(t, types.Slot(cfg.GenesisSlot), st.Slot)
	assert.Len(t, st.ValidatorRegistry, 8)
	assert.Len(t, st.ValidatorBalances, 8)
	assert.Equal(t, uint64(8), st.LatestEth1Data.DepositCount)
	assert.Equal(t, uint64(8), st.DepositIndex)

	genesisBlock, err := GenesisBlock(st)
	require.NoError(t, err)
	genesisRoot, err := genesisBlock.HeaderRoot()
	require.NoError(t, err)

	n := uint64(len(st.LatestBlockRoots))
	st.LatestBlockRoots[uint64(st.Slot)%n] = types.Root(genesisRoot)

	tr := &Transitioner{}
	require.NoError(t, tr.ProcessSlots(st, st.Slot+3))

	assert.Equal(t, types.Slot(cfg.GenesisSlot)+3, st.Slot)
	assert.Equal(t, types.Root(genesisRoot), st.LatestBlockRoots[uint64(cfg.GenesisSlot)%n])
}

func TestGenesisBeaconState_RejectsOutOfOrderDepositIndex(t *testing.T) {
	params.OverrideBeaconConfig(params.MinimalConfig())
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	deposits := genesisDeposits(t, 2)
	deposits[1].Index = 5

	var eth1Hash types.Root
	_, err := GenesisBeaconState(deposits, 0, eth1Hash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index")
}

func TestGenesisBeaconState_ActivatesFullDeposits(t *testing.T) {
	params.OverrideBeaconConfig(params.MinimalConfig())
	defer params.OverrideBeaconConfig(params.MainnetConfig())
	cfg := params.BeaconConfig()

	deposits := genesisDeposits(t, 4)
	var eth1Hash types.Root
	st, err := GenesisBeaconState(deposits, 0, eth1Hash)
	require.NoError(t, err)

	for _, v := range st.ValidatorRegistry {
		assert.Equal(t, types.Epoch(cfg.GenesisEpoch), v.ActivationEpoch)
		assert.Equal(t, types.Epoch(cfg.GenesisEpoch), v.ActivationEligibilityEpoch)
	}
}
