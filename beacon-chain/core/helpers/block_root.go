package helpers

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// BlockRoot returns state.latest_block_roots[slot mod N], the cached root
// of the block that was canonical at slot, failing once slot falls
// outside the ring's window (more than SLOTS_PER_HISTORICAL_ROOT behind
// the current slot, or not yet reached).
func BlockRoot(state *types.BeaconState, slot types.Slot) (types.Root, error) {
	n := uint64(len(state.LatestBlockRoots))
	if n == 0 {
		return types.Root{}, errors.New("helpers: latest block roots is empty")
	}
	if slot >= state.Slot {
		return types.Root{}, errors.Errorf("helpers: slot %d has not happened yet", slot)
	}
	if uint64(state.Slot)-uint64(slot) > n {
		return types.Root{}, errors.Errorf("helpers: slot %d outside block root ring window", slot)
	}
	return state.LatestBlockRoots[uint64(slot)%n], nil
}

// EpochStartSlotBlockRoot is a convenience wrapper used by the attestation
// verifier, which looks up the block root at an epoch boundary rather
// than an arbitrary slot.
func EpochStartSlotBlockRoot(state *types.BeaconState, epoch types.Epoch) (types.Root, error) {
	return BlockRoot(state, EpochStartSlot(epoch))
}

// SetBlockRoot records root as the canonical block root for slot, called
// once a block for that slot has been fully processed so the next block's
// ProcessBlockHeader can resolve its parent.
func SetBlockRoot(state *types.BeaconState, slot types.Slot, root types.Root) {
	n := uint64(len(state.LatestBlockRoots))
	if n == 0 {
		return
	}
	state.LatestBlockRoots[uint64(slot)%n] = root
}
