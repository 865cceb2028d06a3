package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// ProcessBlockHeader verifies block's header fields against state before
// any operation in its body is processed: the block must be for the
// state's current slot, its parent_root must match the root already
// recorded for the previous slot, and (unless checkSignature is false,
// the mode used to replay blocks whose validity was already established)
// the proposer's signature over tree_hash_truncate(block, "signature")
// must verify under domain PROPOSAL.
func ProcessBlockHeader(state *types.BeaconState, block *types.BeaconBlock, checkSignature bool) error {
	if block.Slot != state.Slot {
		return errors.Errorf("blocks: block slot %d does not match state slot %d", block.Slot, state.Slot)
	}
	if state.Slot > 0 {
		parent, err := helpers.BlockRoot(state, state.Slot-1)
		if err != nil {
			return errors.Wrap(err, "blocks: could not resolve parent block root")
		}
		if block.ParentRoot != parent {
			return errors.New("blocks: block parent root does not match recorded ancestor")
		}
	}

	if !checkSignature {
		return nil
	}
	proposerIndex, err := helpers.BeaconProposerIndex(state, state.Slot)
	if err != nil {
		return errors.Wrap(err, "blocks: could not resolve proposer index")
	}
	if proposerIndex >= uint64(len(state.ValidatorRegistry)) {
		return errors.New("blocks: proposer index out of range")
	}
	proposer := state.ValidatorRegistry[proposerIndex]
	root, err := block.SigningRoot()
	if err != nil {
		return errors.Wrap(err, "blocks: could not compute block signing root")
	}
	domain := helpers.Domain(&state.Fork, helpers.CurrentEpoch(state), params.BeaconConfig().DomainProposal)
	if err := verifySignature(proposer.Pubkey, root, domain, block.Signature); err != nil {
		return errors.Wrap(err, "blocks: invalid proposer signature")
	}
	return nil
}
