// Package state implements the beacon chain's state transition function:
// the per-slot transition that runs every slot regardless of whether a
// block arrives, the per-block transition that applies a proposer's six
// operation lists, and the per-epoch transition that runs justification,
// registry rotation, and final bookkeeping at every epoch boundary.
package state

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/blocks"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

var log = logrus.WithField("prefix", "core/state")

// TransitionType names one leg of the transition cycle a Transitioner
// enforces. A chain advances SLOT by SLOT, optionally folding in an EPOCH
// transition at an epoch boundary, and optionally applying a BLOCK once
// the target slot is reached.
type TransitionType int

const (
	// SlotTransition advances state by exactly one slot.
	SlotTransition TransitionType = iota
	// BlockTransition applies a single block's operations to state.
	BlockTransition
	// EpochTransition runs the justification, registry, and bookkeeping
	// pass that happens once per epoch.
	EpochTransition
)

func (t TransitionType) String() string {
	switch t {
	case SlotTransition:
		return "slot"
	case BlockTransition:
		return "block"
	case EpochTransition:
		return "epoch"
	default:
		return "unknown"
	}
}

// legalNext reports whether next may immediately follow current. A slot
// transition may repeat (an empty slot), fold in its epoch transition, or
// hand off to a block once the target slot is reached. An epoch
// transition, run from inside slot processing, hands back to the next
// slot or straight to a block for the slot it just completed. A block
// transition always hands back to the next slot's processing.
func legalNext(current, next TransitionType) bool {
	switch current {
	case SlotTransition:
		return next == SlotTransition || next == EpochTransition || next == BlockTransition
	case EpochTransition:
		return next == SlotTransition || next == BlockTransition
	case BlockTransition:
		return next == SlotTransition
	default:
		return false
	}
}

// Transitioner drives a BeaconState through the mandated
// slot-then-epoch-then-block cycle, rejecting any call made out of order.
// The zero value is ready to use, starting fresh at genesis.
type Transitioner struct {
	last    TransitionType
	started bool
}

func (tr *Transitioner) advance(next TransitionType) error {
	if tr.started && !legalNext(tr.last, next) {
		return errors.Errorf("core/state: illegal transition %s -> %s", tr.last, next)
	}
	tr.last = next
	tr.started = true
	return nil
}

// ProcessSlot advances state by exactly one slot. It copies the current
// slot's block root forward into the ring slot the new slot occupies (so
// an empty slot still leaves ProcessBlockHeader something to resolve a
// future parent_root against), processes the epoch boundary if the new
// slot starts one, and resets the Eth1 vote tally if its voting period has
// elapsed.
func (tr *Transitioner) ProcessSlot(state *types.BeaconState) error {
	if err := tr.advance(SlotTransition); err != nil {
		return err
	}
	n := uint64(len(state.LatestBlockRoots))
	if n == 0 {
		return errors.New("core/state: latest block roots is empty")
	}

	cfg := params.BeaconConfig()
	currentSlot := state.Slot
	previousRoot := state.LatestBlockRoots[uint64(currentSlot)%n]

	if (uint64(currentSlot)+1)%cfg.SlotsPerEpoch == 0 {
		if err := tr.ProcessEpoch(state); err != nil {
			return errors.Wrap(err, "core/state: could not process epoch")
		}
	}

	state.Slot = currentSlot + 1
	state.LatestBlockRoots[uint64(state.Slot)%n] = previousRoot
	blocks.MaybeResetEth1Data(state)
	return nil
}

// ProcessSlots advances state one slot at a time until it reaches
// targetSlot, folding in every epoch transition along the way.
func (tr *Transitioner) ProcessSlots(state *types.BeaconState, targetSlot types.Slot) error {
	if targetSlot < state.Slot {
		return errors.Errorf("core/state: target slot %d is behind state slot %d", targetSlot, state.Slot)
	}
	for state.Slot < targetSlot {
		if err := tr.ProcessSlot(state); err != nil {
			return err
		}
	}
	return nil
}

// ProcessBlock applies block's six operation lists to state, in the fixed
// order the blocks package's verifiers expect, then caches block's root as
// the canonical root for its slot so the next block's header can resolve
// its parent.
func (tr *Transitioner) ProcessBlock(state *types.BeaconState, block *types.BeaconBlock, verifySignatures bool) error {
	if err := tr.advance(BlockTransition); err != nil {
		return err
	}
	if block.Body == nil {
		return errors.New("core/state: block body is nil")
	}

	if err := blocks.ProcessBlockHeader(state, block, verifySignatures); err != nil {
		return errors.Wrap(err, "core/state: invalid block header")
	}
	if err := blocks.ProcessRandao(state, block, verifySignatures); err != nil {
		return errors.Wrap(err, "core/state: invalid randao reveal")
	}
	blocks.ProcessEth1Data(state, block)
	if err := blocks.ProcessProposerSlashings(state, block.Body.ProposerSlashings); err != nil {
		return errors.Wrap(err, "core/state: invalid proposer slashings")
	}
	if err := blocks.ProcessAttesterSlashings(state, block.Body.AttesterSlashings); err != nil {
		return errors.Wrap(err, "core/state: invalid attester slashings")
	}
	if err := blocks.ProcessAttestations(state, block.Body.Attestations, verifySignatures); err != nil {
		return errors.Wrap(err, "core/state: invalid attestations")
	}
	if err := blocks.ProcessDeposits(state, block.Body.Deposits, verifySignatures); err != nil {
		return errors.Wrap(err, "core/state: invalid deposits")
	}
	if err := blocks.ProcessVoluntaryExits(state, block.Body.VoluntaryExits, verifySignatures); err != nil {
		return errors.Wrap(err, "core/state: invalid voluntary exits")
	}
	if err := blocks.ProcessTransfers(state, block.Body.Transfers, verifySignatures); err != nil {
		return errors.Wrap(err, "core/state: invalid transfers")
	}

	root, err := block.HeaderRoot()
	if err != nil {
		return errors.Wrap(err, "core/state: could not hash block")
	}
	helpers.SetBlockRoot(state, state.Slot, root)
	return nil
}

// ExecuteStateTransition advances state to block's slot, applies block,
// and, if verifyStateRoot is set, checks the resulting state's tree-hash
// root against the one block claims. It drives a fresh Transitioner, so it
// is only appropriate for applying one block to a state already caught up
// to that block's parent; a node replaying a chain of blocks should drive
// its own Transitioner across calls to ProcessSlots/ProcessBlock instead.
func ExecuteStateTransition(state *types.BeaconState, block *types.BeaconBlock, verifySignatures, verifyStateRoot bool) (*types.BeaconState, error) {
	tr := &Transitioner{}
	if err := tr.ProcessSlots(state, block.Slot); err != nil {
		return nil, errors.Wrap(err, "core/state: could not process slots")
	}
	if err := tr.ProcessBlock(state, block, verifySignatures); err != nil {
		return nil, errors.Wrap(err, "core/state: could not process block")
	}
	if verifyStateRoot {
		root, err := state.HashTreeRoot()
		if err != nil {
			return nil, errors.Wrap(err, "core/state: could not hash post-state")
		}
		if types.Root(root) != block.StateRoot {
			return nil, errors.New("core/state: block state root does not match computed post-state root")
		}
	}
	return state, nil
}
