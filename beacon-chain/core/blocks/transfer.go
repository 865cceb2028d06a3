package blocks

import (
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// VerifyTransfer checks a balance-to-balance Transfer: the sender can
// cover amount+fee without going below the minimum deposit (unless it's
// emptying the account entirely), the sender is eligible to withdraw (has
// never activated, or is past its withdrawable epoch), the transfer is
// for the state's current slot, the supplied pubkey actually derives the
// sender's withdrawal credentials, and the transfer is signed by that
// pubkey under domain TRANSFER.
func VerifyTransfer(state *types.BeaconState, transfer *types.Transfer, checkSignature bool) error {
	cfg := params.BeaconConfig()
	if transfer.Sender >= uint64(len(state.ValidatorRegistry)) || transfer.Sender >= uint64(len(state.ValidatorBalances)) {
		return errors.New("blocks: transfer sender index out of range")
	}
	if transfer.Recipient >= uint64(len(state.ValidatorBalances)) {
		return errors.New("blocks: transfer recipient index out of range")
	}

	total := transfer.Amount + transfer.Fee
	senderBalance := state.ValidatorBalances[transfer.Sender]
	if senderBalance < total {
		return errors.Errorf("blocks: transfer sender balance %d is less than amount+fee %d", senderBalance, total)
	}
	if senderBalance != total && senderBalance-total < types.Gwei(cfg.MinDepositAmount) {
		return errors.New("blocks: transfer would leave sender balance below the minimum deposit")
	}

	if transfer.Slot != state.Slot {
		return errors.Errorf("blocks: transfer slot %d does not match state slot %d", transfer.Slot, state.Slot)
	}

	sender := state.ValidatorRegistry[transfer.Sender]
	currentEpoch := helpers.CurrentEpoch(state)
	neverActivated := sender.ActivationEligibilityEpoch == types.Epoch(cfg.FarFutureEpoch)
	if !neverActivated && currentEpoch < sender.WithdrawableEpoch {
		return errors.New("blocks: transfer sender is not yet withdrawable")
	}

	pubkeyHash := sha256.Sum256(transfer.Pubkey[:])
	var wantCredentials types.Root
	wantCredentials[0] = cfg.BLSWithdrawalPrefixByte
	copy(wantCredentials[1:], pubkeyHash[1:])
	if sender.WithdrawalCredentials != wantCredentials {
		return errors.New("blocks: transfer pubkey does not match sender withdrawal credentials")
	}

	if !checkSignature {
		return nil
	}
	root, err := transfer.SigningRoot()
	if err != nil {
		return errors.Wrap(err, "blocks: could not hash transfer")
	}
	domain := helpers.Domain(&state.Fork, currentEpoch, cfg.DomainTransfer)
	if err := verifySignature(transfer.Pubkey, root, domain, transfer.Signature); err != nil {
		return errors.Wrap(err, "blocks: invalid transfer signature")
	}
	return nil
}

// ProcessTransfers verifies and applies every Transfer in a block body,
// bounded by MAX_TRANSFERS, moving amount from sender to recipient and fee
// from sender to the block proposer.
func ProcessTransfers(state *types.BeaconState, transfers []types.Transfer, verifySignature bool) error {
	cfg := params.BeaconConfig()
	if uint64(len(transfers)) > cfg.MaxTransfers {
		return errors.Errorf("blocks: block contains %d transfers, max is %d", len(transfers), cfg.MaxTransfers)
	}
	proposerIndex, err := helpers.BeaconProposerIndex(state, state.Slot)
	if err != nil {
		return errors.Wrap(err, "blocks: could not resolve proposer for transfer fees")
	}
	for i := range transfers {
		if err := VerifyTransfer(state, &transfers[i], verifySignature); err != nil {
			return errors.Wrapf(err, "blocks: invalid transfer at index %d", i)
		}
		state.ValidatorBalances[transfers[i].Sender] -= transfers[i].Amount + transfers[i].Fee
		state.ValidatorBalances[transfers[i].Recipient] += transfers[i].Amount
		state.ValidatorBalances[proposerIndex] += transfers[i].Fee
	}
	return nil
}
