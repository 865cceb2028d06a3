package blocks

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// VerifyProposerSlashing checks that slashing's two ProposalSignedData
// records describe the same slot and shard but different block roots
// (the only way two honest signatures can disagree), that the accused
// validator isn't already slashed, and that both signatures verify under
// domain PROPOSAL for the epoch each proposal's slot falls in.
func VerifyProposerSlashing(state *types.BeaconState, slashing *types.ProposerSlashing) error {
	if slashing.ProposalData1.Slot != slashing.ProposalData2.Slot {
		return errors.New("blocks: proposer slashing proposals are for different slots")
	}
	if slashing.ProposalData1.Shard != slashing.ProposalData2.Shard {
		return errors.New("blocks: proposer slashing proposals are for different shards")
	}
	if slashing.ProposalData1.BlockRoot == slashing.ProposalData2.BlockRoot {
		return errors.New("blocks: proposer slashing proposals do not conflict")
	}
	if slashing.ProposerIndex >= uint64(len(state.ValidatorRegistry)) {
		return errors.New("blocks: proposer slashing index out of range")
	}
	proposer := state.ValidatorRegistry[slashing.ProposerIndex]
	if proposer.Slashed {
		return errors.New("blocks: proposer already slashed")
	}

	cfg := params.BeaconConfig()
	epoch := slashing.ProposalData1.Slot.ToEpoch()
	domain := helpers.Domain(&state.Fork, epoch, cfg.DomainProposal)

	root1, err := slashing.ProposalData1.HashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "blocks: could not hash first proposal")
	}
	if err := verifySignature(proposer.Pubkey, root1, domain, slashing.Signature1); err != nil {
		return errors.Wrap(err, "blocks: invalid first proposal signature")
	}
	root2, err := slashing.ProposalData2.HashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "blocks: could not hash second proposal")
	}
	if err := verifySignature(proposer.Pubkey, root2, domain, slashing.Signature2); err != nil {
		return errors.Wrap(err, "blocks: invalid second proposal signature")
	}
	return nil
}

// ProcessProposerSlashings verifies and applies every ProposerSlashing in
// a block body, in list order, bounded by MAX_PROPOSER_SLASHINGS.
func ProcessProposerSlashings(state *types.BeaconState, slashings []types.ProposerSlashing) error {
	cfg := params.BeaconConfig()
	if uint64(len(slashings)) > cfg.MaxProposerSlashings {
		return errors.Errorf("blocks: block contains %d proposer slashings, max is %d", len(slashings), cfg.MaxProposerSlashings)
	}
	for i := range slashings {
		if err := VerifyProposerSlashing(state, &slashings[i]); err != nil {
			return errors.Wrapf(err, "blocks: invalid proposer slashing at index %d", i)
		}
		proposerIndex, err := helpers.BeaconProposerIndex(state, state.Slot)
		if err != nil {
			return errors.Wrap(err, "blocks: could not resolve whistleblower proposer")
		}
		if err := helpers.SlashValidator(state, slashings[i].ProposerIndex, proposerIndex); err != nil {
			return errors.Wrapf(err, "blocks: could not slash proposer at index %d", i)
		}
	}
	return nil
}
