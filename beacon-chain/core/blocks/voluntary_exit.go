package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// VerifyVoluntaryExit checks that the exiting validator is not already
// scheduled to exit, that the requested exit epoch has already arrived,
// and that the exit is signed by the validator under domain EXIT.
func VerifyVoluntaryExit(state *types.BeaconState, exit *types.VoluntaryExit, checkSignature bool) error {
	if exit.ValidatorIndex >= uint64(len(state.ValidatorRegistry)) {
		return errors.New("blocks: voluntary exit validator index out of range")
	}
	validator := state.ValidatorRegistry[exit.ValidatorIndex]
	currentEpoch := helpers.CurrentEpoch(state)
	entryExitEffectEpoch := helpers.DelayedActivationExitEpoch(currentEpoch)
	if validator.ExitEpoch <= entryExitEffectEpoch {
		return errors.Errorf("blocks: validator %d is already exiting or exited", exit.ValidatorIndex)
	}
	if currentEpoch < exit.Epoch {
		return errors.Errorf("blocks: voluntary exit epoch %d has not arrived, current epoch is %d", exit.Epoch, currentEpoch)
	}
	if !checkSignature {
		return nil
	}
	root, err := exit.SigningRoot()
	if err != nil {
		return errors.Wrap(err, "blocks: could not hash voluntary exit")
	}
	domain := helpers.Domain(&state.Fork, exit.Epoch, params.BeaconConfig().DomainExit)
	if err := verifySignature(validator.Pubkey, root, domain, exit.Signature); err != nil {
		return errors.Wrap(err, "blocks: invalid voluntary exit signature")
	}
	return nil
}

// ProcessVoluntaryExits verifies and applies every VoluntaryExit in a
// block body, bounded by MAX_VOLUNTARY_EXITS.
func ProcessVoluntaryExits(state *types.BeaconState, exits []types.VoluntaryExit, verifySignature bool) error {
	cfg := params.BeaconConfig()
	if uint64(len(exits)) > cfg.MaxVoluntaryExits {
		return errors.Errorf("blocks: block contains %d voluntary exits, max is %d", len(exits), cfg.MaxVoluntaryExits)
	}
	for i := range exits {
		if err := VerifyVoluntaryExit(state, &exits[i], verifySignature); err != nil {
			return errors.Wrapf(err, "blocks: invalid voluntary exit at index %d", i)
		}
		helpers.ExitValidator(state, exits[i].ValidatorIndex)
	}
	return nil
}
