// Package helpers implements the pure, state-reading functions every
// transition and verifier builds on: epoch/slot arithmetic, validator set
// queries, committee derivation, domain computation, and the mutations
// slashing and deposit processing apply to a BeaconState. None of these
// functions retain a reference to the state they're called with; callers
// own mutation.
package helpers

import (
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// CurrentEpoch returns slot_to_epoch(state.slot).
func CurrentEpoch(state *types.BeaconState) types.Epoch {
	return state.Slot.ToEpoch()
}

// PrevEpoch returns the epoch before CurrentEpoch, floored at genesis so
// callers never have to special-case the first epoch of the chain.
func PrevEpoch(state *types.BeaconState) types.Epoch {
	current := CurrentEpoch(state)
	if current == 0 {
		return 0
	}
	return current - 1
}

// EpochStartSlot returns get_epoch_start_slot(e) = e * SLOTS_PER_EPOCH.
func EpochStartSlot(e types.Epoch) types.Slot {
	return e.StartSlot()
}
