package blocks

import (
	ssz "github.com/ferranbt/fastssz"
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
	"github.com/sigmaprotocol/beacon-core/bls"
)

// attestationDataAndCustodyBit mirrors the wrapper phase-0's
// bls_verify_multiple signs: the attestation data plus the custody bit
// the signing participant claims, hashed together so each custody group
// signs a distinct message.
type attestationDataAndCustodyBit struct {
	Data       *types.AttestationData
	CustodyBit bool
}

func (c *attestationDataAndCustodyBit) hashTreeRoot() ([32]byte, error) {
	hh := ssz.DefaultHasherPool.Get()
	defer ssz.DefaultHasherPool.Put(hh)
	if err := c.HashTreeRootWith(hh); err != nil {
		return [32]byte{}, err
	}
	return hh.HashRoot()
}

func (c *attestationDataAndCustodyBit) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := c.Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBool(c.CustodyBit)
	hh.Merkleize(indx)
	return nil
}

// AttestationSigningRoot returns tree_hash(AttestationDataAndCustodyBit{data,
// custodyBit}), the message an attester signs and VerifyAttestation later
// re-derives to check the aggregate signature against.
func AttestationSigningRoot(data *types.AttestationData, custodyBit bool) ([32]byte, error) {
	return (&attestationDataAndCustodyBit{Data: data, CustodyBit: custodyBit}).hashTreeRoot()
}

// VerifyAttestation checks a single Attestation against state: inclusion-
// delay bounds, justified epoch/root agreement, crosslink agreement, the
// phase-0 zero-crosslink-data-root and zero-custody-bitfield invariants,
// and the two-message BLS aggregate signature split by custody bit.
func VerifyAttestation(state *types.BeaconState, att *types.Attestation, checkSignature bool) error {
	cfg := params.BeaconConfig()
	data := &att.Data

	if data.Slot+types.Slot(cfg.MinAttestationInclusionDelay) > state.Slot {
		return errors.Errorf("blocks: attestation slot %d + inclusion delay %d is after state slot %d", data.Slot, cfg.MinAttestationInclusionDelay, state.Slot)
	}
	if uint64(state.Slot) >= uint64(data.Slot)+cfg.SlotsPerEpoch {
		return errors.Errorf("blocks: attestation slot %d is more than an epoch behind state slot %d", data.Slot, state.Slot)
	}

	if (data.Slot + 1).ToEpoch() >= helpers.CurrentEpoch(state) {
		if data.JustifiedEpoch != state.JustifiedEpoch {
			return errors.Errorf("blocks: attestation justified epoch %d does not match state justified epoch %d", data.JustifiedEpoch, state.JustifiedEpoch)
		}
	} else if data.JustifiedEpoch != state.PreviousJustifiedEpoch {
		return errors.Errorf("blocks: attestation justified epoch %d does not match state previous justified epoch %d", data.JustifiedEpoch, state.PreviousJustifiedEpoch)
	}

	justifiedRoot, err := helpers.EpochStartSlotBlockRoot(state, data.JustifiedEpoch)
	if err != nil {
		return errors.Wrap(err, "blocks: could not resolve attestation's justified block root")
	}
	if data.JustifiedBlockRoot != justifiedRoot {
		return errors.New("blocks: attestation justified block root does not match recorded ancestor")
	}

	if data.Shard >= uint64(len(state.LatestCrosslinks)) {
		return errors.New("blocks: attestation shard out of range")
	}
	stateCrosslink := state.LatestCrosslinks[data.Shard]
	wantCrosslink := types.Crosslink{Epoch: data.Slot.ToEpoch(), CrosslinkDataRoot: data.CrosslinkDataRoot}
	if data.LatestCrosslink != stateCrosslink && wantCrosslink != stateCrosslink {
		return errors.New("blocks: attestation crosslink does not extend the recorded crosslink")
	}

	if data.CrosslinkDataRoot != types.ZeroRoot {
		return errors.New("blocks: attestation crosslink data root must be zero in phase 0")
	}
	if uint64(att.CustodyBitfield.Count()) != 0 {
		return errors.New("blocks: attestation custody bitfield must be all zero in phase 0")
	}
	if att.AggregationBitfield.Count() == 0 {
		return errors.New("blocks: attestation aggregation bitfield has no participants")
	}

	if !checkSignature {
		return nil
	}

	bit0Indices, err := helpers.AttestationParticipants(state, data, att.AggregationBitfield)
	if err != nil {
		return errors.Wrap(err, "blocks: could not resolve attestation participants")
	}
	if len(bit0Indices) == 0 {
		return errors.New("blocks: attestation has no participants to verify")
	}

	pubkeys := make([]*bls.PublicKey, len(bit0Indices))
	for i, idx := range bit0Indices {
		if idx >= uint64(len(state.ValidatorRegistry)) {
			return errors.New("blocks: attestation participant index out of range")
		}
		pk, err := bls.PublicKeyFromBytes(state.ValidatorRegistry[idx].Pubkey[:])
		if err != nil {
			return errors.Wrap(err, "blocks: invalid participant public key")
		}
		pubkeys[i] = pk
	}
	// Phase 0's bls_verify_multiple splits participants into a
	// custody-bit-0 group and a custody-bit-1 group, each signing a
	// distinct AttestationDataAndCustodyBit message. Since the custody
	// bitfield is required to be all zero above, every participant is in
	// the bit-0 group and the bit-1 group is always empty, collapsing the
	// two-message check to a single FastAggregateVerify.
	bit0Msg := &attestationDataAndCustodyBit{Data: data, CustodyBit: false}
	root0, err := bit0Msg.hashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "blocks: could not hash custody-bit-0 message")
	}
	sig, err := bls.SignatureFromBytes(att.AggregateSignature[:])
	if err != nil {
		return errors.Wrap(err, "blocks: invalid aggregate signature")
	}
	domain := helpers.Domain(&state.Fork, data.Slot.ToEpoch(), cfg.DomainAttestation)
	if !sig.FastAggregateVerify(pubkeys, signingMessage(root0, domain)) {
		return errors.New("blocks: attestation aggregate signature verification failed")
	}
	return nil
}

// ProcessAttestations verifies and records every Attestation in a block
// body, bounded by MAX_ATTESTATIONS, appending a PendingAttestationRecord
// for each to state.latest_attestations.
func ProcessAttestations(state *types.BeaconState, atts []types.Attestation, verifySignature bool) error {
	cfg := params.BeaconConfig()
	if uint64(len(atts)) > cfg.MaxAttestations {
		return errors.Errorf("blocks: block contains %d attestations, max is %d", len(atts), cfg.MaxAttestations)
	}
	for i := range atts {
		if err := VerifyAttestation(state, &atts[i], verifySignature); err != nil {
			return errors.Wrapf(err, "blocks: invalid attestation at index %d", i)
		}
		state.LatestAttestations = append(state.LatestAttestations, types.PendingAttestationRecord{
			Data:                atts[i].Data,
			AggregationBitfield: atts[i].AggregationBitfield,
			CustodyBitfield:     atts[i].CustodyBitfield,
			InclusionSlot:       state.Slot,
		})
	}
	return nil
}
