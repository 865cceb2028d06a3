package validator

import (
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/blocks"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// Attester completes a single validator's attestation for one slot.
// Every input it needs from the beacon node arrives as a plain
// BeaconState argument; there is no RPC round trip.
type Attester struct {
	Signer Signer
}

// NewAttester returns an Attester signing through signer.
func NewAttester(signer Signer) *Attester {
	return &Attester{Signer: signer}
}

// committeeAndShard resolves validatorIndex's committee assignment for
// shard at state.slot, returning the committee and the validator's
// position within it.
func committeeAndShard(state *types.BeaconState, shard, validatorIndex uint64) (committee []uint64, indexInCommittee int, err error) {
	committees, err := helpers.CrosslinkCommitteesAtSlot(state, state.Slot)
	if err != nil {
		return nil, 0, errors.Wrap(err, "validator: could not resolve crosslink committees")
	}
	for ci, c := range committees {
		// An attestation to the beacon chain itself uses the slot's first
		// committee rather than a shard-assigned one.
		if shard == params.BeaconConfig().BeaconChainShardNumber {
			if ci != 0 {
				break
			}
		} else if c.Shard != shard {
			continue
		}
		for i, idx := range c.Committee {
			if idx == validatorIndex {
				return c.Committee, i, nil
			}
		}
		return nil, 0, errors.Errorf("validator: validator %d is not a member of shard %d's committee", validatorIndex, shard)
	}
	return nil, 0, errors.Errorf("validator: no committee assigned to shard %d at slot %d", shard, state.Slot)
}

// Attest builds, signs, and returns validatorIndex's Attestation for
// shard at state.slot. state is the validator's current view of the
// chain — its slot is the attester's assigned slot and its latest_block_
// roots/justified fields describe the head the attestation votes for.
func (a *Attester) Attest(state *types.BeaconState, validatorIndex, shard uint64) (*types.Attestation, error) {
	cfg := params.BeaconConfig()

	committee, indexInCommittee, err := committeeAndShard(state, shard, validatorIndex)
	if err != nil {
		return nil, err
	}
	if validatorIndex >= uint64(len(state.ValidatorRegistry)) {
		return nil, errors.New("validator: validator index out of range")
	}
	pubkey := state.ValidatorRegistry[validatorIndex].Pubkey

	headRoot, err := helpers.BlockRoot(state, state.Slot-1)
	if err != nil {
		return nil, errors.Wrap(err, "validator: could not resolve head block root")
	}

	boundaryEpoch := helpers.CurrentEpoch(state)
	boundarySlot := helpers.EpochStartSlot(boundaryEpoch)
	epochBoundaryRoot := headRoot
	if state.Slot != boundarySlot {
		epochBoundaryRoot, err = helpers.BlockRoot(state, boundarySlot)
		if err != nil {
			return nil, errors.Wrap(err, "validator: could not resolve epoch boundary root")
		}
	}

	justifiedRoot, err := helpers.EpochStartSlotBlockRoot(state, state.JustifiedEpoch)
	if err != nil {
		return nil, errors.Wrap(err, "validator: could not resolve justified block root")
	}

	var latestCrosslink types.Crosslink
	if shard != cfg.BeaconChainShardNumber {
		latestCrosslink = state.LatestCrosslinks[shard]
	}

	data := types.AttestationData{
		Slot:               state.Slot,
		Shard:              shard,
		BeaconBlockRoot:    headRoot,
		EpochBoundaryRoot:  epochBoundaryRoot,
		CrosslinkDataRoot:  types.ZeroRoot,
		LatestCrosslink:    latestCrosslink,
		JustifiedEpoch:     state.JustifiedEpoch,
		JustifiedBlockRoot: justifiedRoot,
	}

	aggregationBits := bitfield.NewBitlist(uint64(len(committee)))
	aggregationBits.SetBitAt(uint64(indexInCommittee), true)
	custodyBits := bitfield.NewBitlist(uint64(len(committee)))

	signingRoot, err := blocks.AttestationSigningRoot(&data, false)
	if err != nil {
		return nil, errors.Wrap(err, "validator: could not compute attestation signing root")
	}
	domain := helpers.Domain(&state.Fork, data.Slot.ToEpoch(), cfg.DomainAttestation)
	signature, err := a.Signer.Sign(pubkey, blocks.SigningMessage(signingRoot, domain))
	if err != nil {
		return nil, errors.Wrap(err, "validator: could not sign attestation")
	}

	return &types.Attestation{
		AggregationBitfield: aggregationBits,
		Data:                data,
		CustodyBitfield:     custodyBits,
		AggregateSignature:  signature,
	}, nil
}
