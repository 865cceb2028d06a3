package helpers

import (
	"crypto/sha256"
	"testing"

	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

func testState(t *testing.T, numValidators int) *types.BeaconState {
	t.Helper()
	cfg := params.BeaconConfig()
	registry := make([]types.Validator, numValidators)
	balances := make([]types.Gwei, numValidators)
	for i := range registry {
		registry[i] = types.Validator{
			ActivationEpoch:   0,
			ExitEpoch:         types.Epoch(cfg.FarFutureEpoch),
			WithdrawableEpoch: types.Epoch(cfg.FarFutureEpoch),
			EffectiveBalance:  types.Gwei(cfg.MaxEffectiveBalance),
		}
		registry[i].Pubkey[0] = byte(i)
		balances[i] = types.Gwei(cfg.MaxEffectiveBalance)
	}
	st := &types.BeaconState{
		Slot:                   types.Slot(cfg.SlotsPerEpoch),
		ValidatorRegistry:      registry,
		ValidatorBalances:      balances,
		LatestRandaoMixes:      make([]types.Root, cfg.EpochsPerHistoricalVector),
		LatestActiveIndexRoots: make([]types.Root, cfg.EpochsPerHistoricalVector),
		LatestSlashedBalances:  make([]types.Gwei, cfg.EpochsPerSlashingsVector),
		LatestBlockRoots:       make([]types.Root, cfg.SlotsPerHistoricalRoot),
	}
	for i := range st.LatestActiveIndexRoots {
		st.LatestActiveIndexRoots[i] = types.Root{byte(i), byte(i >> 8)}
	}
	return st
}

func TestActiveValidatorIndices(t *testing.T) {
	st := testState(t, 10)
	st.ValidatorRegistry[3].ActivationEpoch = 5
	st.ValidatorRegistry[3].ExitEpoch = types.Epoch(params.BeaconConfig().FarFutureEpoch)

	active := ActiveValidatorIndices(st.ValidatorRegistry, 1)
	assert.Len(t, active, 9)
	for _, idx := range active {
		assert.NotEqual(t, uint64(3), idx)
	}
}

func TestShuffleListIsAPermutation(t *testing.T) {
	list := make([]uint64, 100)
	for i := range list {
		list[i] = uint64(i)
	}
	seed := [32]byte{1, 2, 3}
	shuffled, err := ShuffleList(append([]uint64{}, list...), seed)
	require.NoError(t, err)
	assert.NotEqual(t, list, shuffled)

	seen := make(map[uint64]bool, len(shuffled))
	for _, v := range shuffled {
		assert.False(t, seen[v], "value %d appeared twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, len(list))
}

func TestShuffleListInvalidSize(t *testing.T) {
	old := maxShuffleListSize
	defer func() { maxShuffleListSize = old }()
	maxShuffleListSize = 5

	_, err := ShuffleList(make([]uint64, 6), [32]byte{})
	assert.Error(t, err)
}

func TestShuffledIndexMatchesShuffleList(t *testing.T) {
	listSize := uint64(50)
	seed := [32]byte{9, 9, 9}
	list := make([]uint64, listSize)
	for i := range list {
		list[i] = uint64(i)
	}
	shuffled, err := ShuffleList(append([]uint64{}, list...), seed)
	require.NoError(t, err)

	for i := uint64(0); i < listSize; i++ {
		pos, err := ShuffledIndex(i, listSize, seed)
		require.NoError(t, err)
		assert.Equal(t, shuffled[pos], list[i])
	}
}

func TestSplitIndices(t *testing.T) {
	list := make([]uint64, 128)
	for i := range list {
		list[i] = uint64(i)
	}
	split := SplitIndices(list, 32)
	require.Len(t, split, 32)
	for _, s := range split {
		assert.Len(t, s, 4)
	}
}

func TestCrosslinkCommitteesAtSlotCoverActiveSet(t *testing.T) {
	st := testState(t, 128)
	cfg := params.BeaconConfig()

	total := 0
	seen := make(map[uint64]bool)
	for s := uint64(0); s < cfg.SlotsPerEpoch; s++ {
		committees, err := CrosslinkCommitteesAtSlot(st, types.Slot(s))
		require.NoError(t, err)
		require.NotEmpty(t, committees)
		for _, c := range committees {
			total += len(c.Committee)
			for _, idx := range c.Committee {
				assert.False(t, seen[idx], "validator %d assigned to two committees", idx)
				seen[idx] = true
			}
		}
	}
	assert.Equal(t, 128, total)
}

func TestBeaconProposerIndexIsCommitteeMember(t *testing.T) {
	st := testState(t, 128)
	idx, err := BeaconProposerIndex(st, st.Slot)
	require.NoError(t, err)
	assert.Less(t, idx, uint64(128))
}

func TestAttestationParticipants(t *testing.T) {
	st := testState(t, 128)
	committees, err := CrosslinkCommitteesAtSlot(st, st.Slot)
	require.NoError(t, err)
	committee := committees[0]

	bits := bitfield.NewBitlist(uint64(len(committee.Committee)))
	bits.SetBitAt(0, true)

	data := &types.AttestationData{Slot: st.Slot, Shard: committee.Shard}
	participants, err := AttestationParticipants(st, data, bits)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, committee.Committee[0], participants[0])
}

func TestDomainSelectsForkVersion(t *testing.T) {
	fork := &types.Fork{
		PreviousVersion: [4]byte{0, 0, 0, 1},
		CurrentVersion:  [4]byte{0, 0, 0, 2},
		Epoch:           10,
	}
	before := Domain(fork, 5, 1)
	after := Domain(fork, 10, 1)
	assert.NotEqual(t, before, after)
}

func TestSlashValidator(t *testing.T) {
	st := testState(t, 128)
	before := st.ValidatorBalances[0]

	require.NoError(t, SlashValidator(st, 0, 1))
	assert.True(t, st.ValidatorRegistry[0].Slashed)
	assert.Less(t, st.ValidatorBalances[0], before)
	assert.NotEqual(t, types.Epoch(params.BeaconConfig().FarFutureEpoch), st.ValidatorRegistry[0].ExitEpoch)

	assert.Error(t, SlashValidator(st, 0, 1))
}

func TestVerifyMerkleBranchRoundTrip(t *testing.T) {
	leaf := types.Root{1}
	sibling := types.Root{2}
	var combined [64]byte
	copy(combined[:32], leaf[:])
	copy(combined[32:], sibling[:])
	root := types.Root(sha256.Sum256(combined[:]))

	ok := VerifyMerkleBranch(leaf, [][]byte{sibling[:]}, 1, 0, root)
	assert.True(t, ok)
	assert.False(t, VerifyMerkleBranch(leaf, [][]byte{sibling[:]}, 1, 1, root))
}
