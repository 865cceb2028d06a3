package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

func block(slot types.Slot, parent types.Root, salt byte) *types.BeaconBlock {
	return &types.BeaconBlock{
		Slot:       slot,
		ParentRoot:   parent,
		RandaoReveal: types.BLSSignature{salt},
		Body:         &types.BeaconBlockBody{},
	}
}

func TestStore_Put_GenesisIsAutomaticallyCanonical(t *testing.T) {
	s := New()
	genesis := block(0, types.Root{}, 1)
	root, err := s.Put(genesis)
	require.NoError(t, err)

	got, ok := s.GetSlotCanonicalBlock(0)
	require.True(t, ok)
	assert.Equal(t, genesis, got)

	b, ok := s.Get(root)
	require.True(t, ok)
	assert.Equal(t, genesis, b)
}

func TestStore_Put_IsIdempotent(t *testing.T) {
	s := New()
	genesis := block(0, types.Root{}, 1)
	root1, err := s.Put(genesis)
	require.NoError(t, err)
	root2, err := s.Put(genesis)
	require.NoError(t, err)
	assert.Equal(t, root1, root2)

	sb := s.GetSlotBlocks(0)
	assert.Len(t, sb.Roots, 1)
}

func TestStore_Put_SecondBlockAtSlotIsNotAutomaticallyCanonical(t *testing.T) {
	s := New()
	genesis := block(0, types.Root{}, 1)
	genesisRoot, err := s.Put(genesis)
	require.NoError(t, err)

	b1 := block(1, genesisRoot, 2)
	b1Root, err := s.Put(b1)
	require.NoError(t, err)

	b2 := block(1, genesisRoot, 3)
	_, err = s.Put(b2)
	require.NoError(t, err)

	sb := s.GetSlotBlocks(1)
	require.Len(t, sb.Roots, 2)
	assert.Contains(t, sb.Roots, b1Root)
	assert.Equal(t, NoCanonical, sb.CanonicalIndex)
	_, ok := s.GetSlotCanonicalBlock(1)
	assert.False(t, ok)
}

func mustRoot(t *testing.T, b *types.BeaconBlock) types.Root {
	t.Helper()
	root, err := b.HeaderRoot()
	require.NoError(t, err)
	return types.Root(root)
}

func TestStore_Remove_RejectsCanonicalBlock(t *testing.T) {
	s := New()
	genesis := block(0, types.Root{}, 1)
	root, err := s.Put(genesis)
	require.NoError(t, err)

	err = s.Remove(root)
	assert.Error(t, err)
}

func TestStore_Remove_NonCanonicalSucceeds(t *testing.T) {
	s := New()
	genesisRoot, err := s.Put(block(0, types.Root{}, 1))
	require.NoError(t, err)
	b1 := block(1, genesisRoot, 2)
	b1Root, err := s.Put(b1)
	require.NoError(t, err)
	b2Root, err := s.Put(block(1, genesisRoot, 3))
	require.NoError(t, err)

	require.NoError(t, s.ReorgTo(b1Root))
	require.NoError(t, s.Remove(b2Root))

	_, ok := s.Get(b2Root)
	assert.False(t, ok)
	sb := s.GetSlotBlocks(1)
	assert.Len(t, sb.Roots, 1)
}

func TestStore_ReorgTo_WalksAncestryAndStopsAtAlreadyCanonical(t *testing.T) {
	s := New()
	genesisRoot, err := s.Put(block(0, types.Root{}, 1))
	require.NoError(t, err)

	a1 := block(1, genesisRoot, 2)
	a1Root, err := s.Put(a1)
	require.NoError(t, err)
	a2 := block(2, a1Root, 3)
	a2Root, err := s.Put(a2)
	require.NoError(t, err)

	b1 := block(1, genesisRoot, 4)
	b1Root, err := s.Put(b1)
	require.NoError(t, err)
	b2 := block(2, b1Root, 5)
	b2Root, err := s.Put(b2)
	require.NoError(t, err)

	require.NoError(t, s.ReorgTo(a2Root))
	got, ok := s.GetSlotCanonicalBlock(1)
	require.True(t, ok)
	assert.Equal(t, a1Root, mustRoot(t, got))

	require.NoError(t, s.ReorgTo(b2Root))
	got, ok = s.GetSlotCanonicalBlock(1)
	require.True(t, ok)
	assert.Equal(t, b1Root, mustRoot(t, got))
	got, ok = s.GetSlotCanonicalBlock(2)
	require.True(t, ok)
	assert.Equal(t, b2Root, mustRoot(t, got))
}

func TestStore_JustifiedAndFinalized(t *testing.T) {
	s := New()
	root := types.Root{7}
	s.AddJustifiedHash(root, 3)
	s.AddFinalizedHash(root, 2)

	gotRoot, gotEpoch := s.Justified()
	assert.Equal(t, root, gotRoot)
	assert.Equal(t, types.Epoch(3), gotEpoch)

	gotRoot, gotEpoch = s.Finalized()
	assert.Equal(t, root, gotRoot)
	assert.Equal(t, types.Epoch(2), gotEpoch)
}

func TestStore_GetMaxSlot(t *testing.T) {
	s := New()
	genesisRoot, err := s.Put(block(0, types.Root{}, 1))
	require.NoError(t, err)
	_, err = s.Put(block(5, genesisRoot, 2))
	require.NoError(t, err)
	assert.Equal(t, types.Slot(5), s.GetMaxSlot())
}

func TestStore_GetSlotBlocks_UnknownSlotIsEmpty(t *testing.T) {
	s := New()
	sb := s.GetSlotBlocks(42)
	assert.Empty(t, sb.Roots)
	assert.Equal(t, NoCanonical, sb.CanonicalIndex)
}

func TestStore_PutState_RequiresKnownBlock(t *testing.T) {
	s := New()
	err := s.PutState(types.Root{9}, &types.BeaconState{})
	assert.Error(t, err)
}

func TestStore_GetTuple_ReturnsBothHalvesOnlyWhenStatePresent(t *testing.T) {
	s := New()
	genesis := block(0, types.Root{}, 1)
	root, err := s.Put(genesis)
	require.NoError(t, err)

	_, _, ok := s.GetTuple(root)
	assert.False(t, ok, "state not yet attached")

	st := &types.BeaconState{Slot: 0}
	require.NoError(t, s.PutState(root, st))

	gotBlock, gotState, ok := s.GetTuple(root)
	require.True(t, ok)
	assert.Equal(t, genesis, gotBlock)
	assert.Same(t, st, gotState)
}

func TestStore_Remove_ClearsAttachedState(t *testing.T) {
	s := New()
	genesisRoot, err := s.Put(block(0, types.Root{}, 1))
	require.NoError(t, err)
	b1Root, err := s.Put(block(1, genesisRoot, 2))
	require.NoError(t, err)
	require.NoError(t, s.PutState(b1Root, &types.BeaconState{Slot: 1}))

	require.NoError(t, s.Remove(b1Root))

	_, _, ok := s.GetTuple(b1Root)
	assert.False(t, ok)
}
