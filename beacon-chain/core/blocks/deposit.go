package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// VerifyDepositList checks that deposits appear in strictly increasing
// index order starting at state.deposit_index, the block-level check
// helpers.ProcessDeposit deliberately leaves out since it only sees one
// deposit at a time.
func VerifyDepositList(state *types.BeaconState, deposits []types.Deposit) error {
	cfg := params.BeaconConfig()
	if uint64(len(deposits)) > cfg.MaxDeposits {
		return errors.Errorf("blocks: block contains %d deposits, max is %d", len(deposits), cfg.MaxDeposits)
	}
	expected := state.DepositIndex
	for i := range deposits {
		if deposits[i].Index != expected {
			return errors.Errorf("blocks: deposit at position %d has index %d, expected %d", i, deposits[i].Index, expected)
		}
		expected++
	}
	return nil
}

// ProcessDeposits verifies the deposit list's index ordering, then applies
// each deposit to state in order, advancing state.deposit_index for every
// deposit processed regardless of the number actually included so a later
// block's deposits continue from the correct index.
func ProcessDeposits(state *types.BeaconState, deposits []types.Deposit, verifySignature bool) error {
	if err := VerifyDepositList(state, deposits); err != nil {
		return err
	}
	for i := range deposits {
		if err := helpers.ProcessDeposit(state, &deposits[i], verifySignature); err != nil {
			return errors.Wrapf(err, "blocks: could not process deposit at index %d", i)
		}
		state.DepositIndex++
	}
	return nil
}
