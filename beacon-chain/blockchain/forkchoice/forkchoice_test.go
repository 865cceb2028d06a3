package forkchoice

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/blockchain/storage"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

func testBlock(slot types.Slot, parent types.Root, salt byte) *types.BeaconBlock {
	return &types.BeaconBlock{
		Slot:       slot,
		ParentRoot:   parent,
		RandaoReveal: types.BLSSignature{salt},
		Body:         &types.BeaconBlockBody{},
	}
}

func testState(numValidators int, balance types.Gwei) *types.BeaconState {
	registry := make([]types.Validator, numValidators)
	for i := range registry {
		registry[i].EffectiveBalance = balance
	}
	return &types.BeaconState{ValidatorRegistry: registry}
}

// vote records validator idx's latest attestation target directly in the
// cache, sidestepping committee expansion so tests control the tally
// exactly.
func vote(fc *ForkChoice, idx uint64, root types.Root, slot types.Slot) {
	fc.atts.mu.Lock()
	defer fc.atts.mu.Unlock()
	prev, ok := fc.atts.targets[idx]
	if !ok || slot > prev.Slot {
		fc.atts.targets[idx] = Target{Root: root, Slot: slot}
	}
}

func TestHead_DescendsIntoHeaviestChild(t *testing.T) {
	store := storage.New()
	fc := New(store)

	genesisRoot, err := store.Put(testBlock(0, types.Root{}, 1))
	require.NoError(t, err)
	store.AddJustifiedHash(genesisRoot, 0)

	aRoot, err := store.Put(testBlock(1, genesisRoot, 2))
	require.NoError(t, err)
	bRoot, err := store.Put(testBlock(1, genesisRoot, 3))
	require.NoError(t, err)

	st := testState(3, 32)
	vote(fc, 0, aRoot, 1)
	vote(fc, 1, bRoot, 1)
	vote(fc, 2, bRoot, 1)

	head, err := fc.Head(st)
	require.NoError(t, err)
	assert.Equal(t, bRoot, head)
}

func TestHead_VotesForDescendantsCountTowardAncestor(t *testing.T) {
	store := storage.New()
	fc := New(store)

	genesisRoot, err := store.Put(testBlock(0, types.Root{}, 1))
	require.NoError(t, err)
	store.AddJustifiedHash(genesisRoot, 0)

	aRoot, err := store.Put(testBlock(1, genesisRoot, 2))
	require.NoError(t, err)
	bRoot, err := store.Put(testBlock(1, genesisRoot, 3))
	require.NoError(t, err)
	// A vote for a block built on top of a counts for a in the slot-1
	// sibling comparison even though nobody voted for a directly.
	aChildRoot, err := store.Put(testBlock(2, aRoot, 4))
	require.NoError(t, err)

	st := testState(3, 32)
	vote(fc, 0, aChildRoot, 2)
	vote(fc, 1, aChildRoot, 2)
	vote(fc, 2, bRoot, 1)

	head, err := fc.Head(st)
	require.NoError(t, err)
	assert.Equal(t, aChildRoot, head)
}

func TestHead_TieBreaksOnLexicographicRoot(t *testing.T) {
	store := storage.New()
	fc := New(store)

	genesisRoot, err := store.Put(testBlock(0, types.Root{}, 1))
	require.NoError(t, err)
	store.AddJustifiedHash(genesisRoot, 0)

	aRoot, err := store.Put(testBlock(1, genesisRoot, 2))
	require.NoError(t, err)
	bRoot, err := store.Put(testBlock(1, genesisRoot, 3))
	require.NoError(t, err)

	// No votes at all: every child weighs zero, so the lexicographically
	// smaller root must win, regardless of insertion order.
	want := aRoot
	if lexLess(bRoot, aRoot) {
		want = bRoot
	}
	head, err := fc.Head(testState(0, 0))
	require.NoError(t, err)
	assert.Equal(t, want, head)
}

func TestHead_IsDeterministicAcrossCalls(t *testing.T) {
	store := storage.New()
	fc := New(store)

	genesisRoot, err := store.Put(testBlock(0, types.Root{}, 1))
	require.NoError(t, err)
	store.AddJustifiedHash(genesisRoot, 0)
	aRoot, err := store.Put(testBlock(1, genesisRoot, 2))
	require.NoError(t, err)
	_, err = store.Put(testBlock(1, genesisRoot, 3))
	require.NoError(t, err)

	st := testState(2, 32)
	vote(fc, 0, aRoot, 1)

	first, err := fc.Head(st)
	require.NoError(t, err)
	second, err := fc.Head(st)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAttestationCache_LaterSlotSupersedes(t *testing.T) {
	params.OverrideBeaconConfig(params.MinimalConfig())
	defer params.OverrideBeaconConfig(params.MainnetConfig())
	cfg := params.BeaconConfig()

	st := testState(128, types.Gwei(cfg.MaxEffectiveBalance))
	st.Slot = 9
	st.LatestRandaoMixes = make([]types.Root, cfg.EpochsPerHistoricalVector)
	st.LatestActiveIndexRoots = make([]types.Root, cfg.EpochsPerHistoricalVector)
	for i := range st.ValidatorRegistry {
		st.ValidatorRegistry[i].ExitEpoch = types.Epoch(cfg.FarFutureEpoch)
	}

	committees, err := helpers.CrosslinkCommitteesAtSlot(st, st.Slot)
	require.NoError(t, err)
	require.NotEmpty(t, committees)
	committee := committees[0]
	target := committee.Committee[0]

	bits := bitfield.NewBitlist(uint64(len(committee.Committee)))
	bits.SetBitAt(0, true)

	c := NewAttestationCache()
	first := &types.AttestationData{Slot: st.Slot, Shard: committee.Shard, BeaconBlockRoot: types.Root{1}}
	require.NoError(t, c.ProcessAttestation(st, first, bits))
	assert.Equal(t, Target{Root: types.Root{1}, Slot: st.Slot}, c.targets[target])

	// An older vote from the same validator must not displace the newer
	// one already recorded.
	older := &types.AttestationData{Slot: st.Slot - types.Slot(cfg.SlotsPerEpoch), Shard: committee.Shard, BeaconBlockRoot: types.Root{2}}
	bitsOld := bitfield.NewBitlist(uint64(len(committee.Committee)))
	bitsOld.SetBitAt(0, true)
	_ = c.ProcessAttestation(st, older, bitsOld)
	assert.Equal(t, Target{Root: types.Root{1}, Slot: st.Slot}, c.targets[target])
}

func TestAttestationCache_PurgeDropsOldVotes(t *testing.T) {
	c := NewAttestationCache()
	c.targets[0] = Target{Root: types.Root{1}, Slot: 3}
	c.targets[1] = Target{Root: types.Root{2}, Slot: 5}
	c.targets[2] = Target{Root: types.Root{3}, Slot: 8}

	c.PurgeAttestations(5)

	assert.Len(t, c.targets, 1)
	_, ok := c.targets[2]
	assert.True(t, ok)
}

func TestBlockAncestor_WalksParentLinks(t *testing.T) {
	store := storage.New()
	fc := New(store)

	genesisRoot, err := store.Put(testBlock(0, types.Root{}, 1))
	require.NoError(t, err)
	b1Root, err := store.Put(testBlock(1, genesisRoot, 2))
	require.NoError(t, err)
	b2Root, err := store.Put(testBlock(2, b1Root, 3))
	require.NoError(t, err)

	got, ok := fc.BlockAncestor(b2Root, 0)
	require.True(t, ok)
	assert.Equal(t, genesisRoot, got)

	// Memoized second call must agree.
	again, ok := fc.BlockAncestor(b2Root, 0)
	require.True(t, ok)
	assert.Equal(t, got, again)

	_, ok = fc.BlockAncestor(types.Root{0xff}, 0)
	assert.False(t, ok)
}
