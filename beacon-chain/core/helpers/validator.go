package helpers

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// DelayedActivationExitEpoch returns the earliest epoch at which a
// validator activated or exited in epoch can take effect: one full
// ACTIVATION_EXIT_DELAY after the epoch following epoch, giving the
// network time to observe the change before it's load-bearing.
func DelayedActivationExitEpoch(epoch types.Epoch) types.Epoch {
	return epoch + 1 + types.Epoch(params.BeaconConfig().ActivationExitDelay)
}

// ChurnLimit bounds how many validators may activate or exit in a single
// epoch, scaling with the active validator count but never below
// MIN_PER_EPOCH_CHURN_LIMIT.
func ChurnLimit(state *types.BeaconState) uint64 {
	cfg := params.BeaconConfig()
	active := uint64(len(ActiveValidatorIndices(state.ValidatorRegistry, CurrentEpoch(state))))
	limit := active / cfg.ChurnLimitQuotient
	if limit < cfg.MinPerEpochChurnLimit {
		return cfg.MinPerEpochChurnLimit
	}
	return limit
}

// SlashValidator marks the validator at index slashed, applies the
// slashing balance penalty, credits whistleblowerIndex (the proposer of
// the block including the slashing) a whistleblower reward, and schedules
// the validator's withdrawal.
func SlashValidator(state *types.BeaconState, index, whistleblowerIndex uint64) error {
	cfg := params.BeaconConfig()
	if index >= uint64(len(state.ValidatorRegistry)) || index >= uint64(len(state.ValidatorBalances)) {
		return errors.New("helpers: slash validator index out of range")
	}
	if whistleblowerIndex >= uint64(len(state.ValidatorBalances)) {
		return errors.New("helpers: whistleblower index out of range")
	}

	currentEpoch := CurrentEpoch(state)
	validator := &state.ValidatorRegistry[index]
	if validator.Slashed {
		return errors.New("helpers: validator already slashed")
	}
	exitValidator(state, index)
	validator.Slashed = true
	validator.WithdrawableEpoch = currentEpoch + types.Epoch(cfg.EpochsPerSlashingsVector)

	slashingsIdx := uint64(currentEpoch) % cfg.EpochsPerSlashingsVector
	if slashingsIdx < uint64(len(state.LatestSlashedBalances)) {
		state.LatestSlashedBalances[slashingsIdx] += types.Gwei(validator.EffectiveBalance)
	}

	penalty := types.Gwei(uint64(validator.EffectiveBalance) / cfg.MinSlashingPenaltyQuotient)
	reward := types.Gwei(uint64(penalty) / cfg.WhistleblowerRewardQuotient)
	proposerReward := types.Gwei(uint64(reward) / cfg.ProposerRewardQuotient)

	decreaseBalance(state, index, penalty)
	increaseBalance(state, whistleblowerIndex, reward-proposerReward)
	proposerIndex, err := BeaconProposerIndex(state, state.Slot)
	if err == nil {
		increaseBalance(state, proposerIndex, proposerReward)
	}
	return nil
}

// exitValidator initiates a validator's exit if it hasn't already, used
// both by voluntary exits and by slashing (a slashed validator also
// exits).
func exitValidator(state *types.BeaconState, index uint64) {
	cfg := params.BeaconConfig()
	validator := &state.ValidatorRegistry[index]
	if validator.ExitEpoch != types.Epoch(cfg.FarFutureEpoch) {
		return
	}
	validator.ExitEpoch = DelayedActivationExitEpoch(CurrentEpoch(state))
	validator.WithdrawableEpoch = validator.ExitEpoch + types.Epoch(cfg.MinValidatorWithdrawabilityDelay)
}

// ExitValidator is the exported entry point for voluntary-exit processing.
func ExitValidator(state *types.BeaconState, index uint64) {
	exitValidator(state, index)
}

func increaseBalance(state *types.BeaconState, index uint64, delta types.Gwei) {
	if index < uint64(len(state.ValidatorBalances)) {
		state.ValidatorBalances[index] += delta
	}
}

func decreaseBalance(state *types.BeaconState, index uint64, delta types.Gwei) {
	if index >= uint64(len(state.ValidatorBalances)) {
		return
	}
	if state.ValidatorBalances[index] < delta {
		state.ValidatorBalances[index] = 0
		return
	}
	state.ValidatorBalances[index] -= delta
}
