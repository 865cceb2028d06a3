package state

import (
	"sort"

	ssz "github.com/ferranbt/fastssz"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// ProcessEpoch runs the epoch boundary transition: justification and
// finalization first (so the new FinalizedEpoch is available to anything
// gating on it), then registry rotation, effective balance updates, and
// the final ring-buffer and attestation-pruning housekeeping.
//
// This deliberately does not compute attester/proposer reward and penalty
// balances; the epoch transition this module implements is scoped to
// justification, registry rotation, effective balance updates, slashing
// penalty distribution, and historical bookkeeping.
func (tr *Transitioner) ProcessEpoch(state *types.BeaconState) error {
	if err := tr.advance(EpochTransition); err != nil {
		return err
	}
	if err := processJustificationAndFinalization(state); err != nil {
		return errors.Wrap(err, "core/state: could not process justification and finalization")
	}
	processRegistryUpdates(state)
	processSlashings(state)
	updateEffectiveBalances(state)
	if err := processFinalUpdates(state); err != nil {
		return errors.Wrap(err, "core/state: could not process final updates")
	}

	reportEpochTransitionMetrics(state)
	log.WithFields(logrus.Fields{
		"epoch":          helpers.CurrentEpoch(state),
		"justifiedEpoch": state.JustifiedEpoch,
		"finalizedEpoch": state.FinalizedEpoch,
	}).Info("Processed epoch transition")
	return nil
}

// processJustificationAndFinalization updates the justification bitfield
// from current- and previous-epoch boundary-attesting balances, then
// advances FinalizedEpoch/Root whenever the bitfield shows two or three
// consecutive justified epochs ending at the previous epoch.
func processJustificationAndFinalization(state *types.BeaconState) error {
	currentEpoch := helpers.CurrentEpoch(state)
	previousEpoch := helpers.PrevEpoch(state)

	totalBalance := effectiveBalanceSum(state, helpers.ActiveValidatorIndices(state.ValidatorRegistry, currentEpoch))
	prevTotalBalance := effectiveBalanceSum(state, helpers.ActiveValidatorIndices(state.ValidatorRegistry, previousEpoch))

	currentBoundaryRoot, err := helpers.EpochStartSlotBlockRoot(state, currentEpoch)
	if err != nil {
		return errors.Wrap(err, "core/state: could not resolve current epoch boundary root")
	}
	previousBoundaryRoot, err := helpers.EpochStartSlotBlockRoot(state, previousEpoch)
	if err != nil {
		return errors.Wrap(err, "core/state: could not resolve previous epoch boundary root")
	}

	currentBoundaryAtts := filterByBoundaryRoot(filterByEpoch(state.LatestAttestations, currentEpoch), currentBoundaryRoot)
	previousBoundaryAtts := filterByBoundaryRoot(filterByEpoch(state.LatestAttestations, previousEpoch), previousBoundaryRoot)

	currentBoundaryIndices, err := attestingIndices(state, currentBoundaryAtts)
	if err != nil {
		return errors.Wrap(err, "core/state: could not resolve current boundary attesters")
	}
	previousBoundaryIndices, err := attestingIndices(state, previousBoundaryAtts)
	if err != nil {
		return errors.Wrap(err, "core/state: could not resolve previous boundary attesters")
	}
	currentBoundaryBalance := effectiveBalanceSum(state, currentBoundaryIndices)
	previousBoundaryBalance := effectiveBalanceSum(state, previousBoundaryIndices)

	newJustifiedEpoch := state.JustifiedEpoch
	newJustifiedRoot := state.JustifiedRoot
	state.JustificationBitfield <<= 1

	// A bit is set in the fresh low position whenever 2/3 of active balance
	// attested to that epoch's boundary block.
	if previousEpoch >= 1 && 3*previousBoundaryBalance >= 2*prevTotalBalance {
		state.JustificationBitfield |= 2
		newJustifiedEpoch = previousEpoch
		newJustifiedRoot = previousBoundaryRoot
	}
	if 3*currentBoundaryBalance >= 2*totalBalance {
		state.JustificationBitfield |= 1
		newJustifiedEpoch = currentEpoch
		newJustifiedRoot = currentBoundaryRoot
	}

	if previousEpoch >= 2 && state.PreviousJustifiedEpoch == previousEpoch-2 && (state.JustificationBitfield>>1)%8 == 0b111 {
		state.FinalizedEpoch = state.PreviousJustifiedEpoch
		state.FinalizedRoot = state.PreviousJustifiedRoot
	}
	if previousEpoch >= 1 && state.PreviousJustifiedEpoch == previousEpoch-1 && (state.JustificationBitfield>>1)%4 == 0b11 {
		state.FinalizedEpoch = state.PreviousJustifiedEpoch
		state.FinalizedRoot = state.PreviousJustifiedRoot
	}
	if previousEpoch >= 1 && state.JustifiedEpoch == previousEpoch-1 && (state.JustificationBitfield>>0)%8 == 0b111 {
		state.FinalizedEpoch = state.JustifiedEpoch
		state.FinalizedRoot = state.JustifiedRoot
	}
	if state.JustifiedEpoch == previousEpoch && (state.JustificationBitfield>>0)%4 == 0b11 {
		state.FinalizedEpoch = state.JustifiedEpoch
		state.FinalizedRoot = state.JustifiedRoot
	}

	state.PreviousJustifiedEpoch = state.JustifiedEpoch
	state.PreviousJustifiedRoot = state.JustifiedRoot
	state.JustifiedEpoch = newJustifiedEpoch
	state.JustifiedRoot = newJustifiedRoot
	return nil
}

// processRegistryUpdates marks newly-eligible validators, ejects any
// active validator whose balance has fallen below EJECTION_BALANCE, and
// activates eligible validators up to the epoch's churn limit, in
// registry order. Shard assignment for the resulting registry is not
// tracked as separate state: CrosslinkCommitteesAtSlot recomputes each
// epoch's committee-to-shard mapping from the live registry on every call.
func processRegistryUpdates(state *types.BeaconState) {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(state)

	for i := range state.ValidatorRegistry {
		v := &state.ValidatorRegistry[i]
		if v.ActivationEligibilityEpoch == types.Epoch(cfg.FarFutureEpoch) && v.EffectiveBalance >= types.Gwei(cfg.MaxEffectiveBalance) {
			v.ActivationEligibilityEpoch = currentEpoch
		}
		if v.IsActiveAtEpoch(currentEpoch) && v.EffectiveBalance < types.Gwei(cfg.EjectionBalance) {
			helpers.ExitValidator(state, uint64(i))
		}
	}

	limit := helpers.ChurnLimit(state)
	var activated uint64
	for i := range state.ValidatorRegistry {
		if activated >= limit {
			break
		}
		v := &state.ValidatorRegistry[i]
		if v.ActivationEpoch == types.Epoch(cfg.FarFutureEpoch) && v.ActivationEligibilityEpoch <= currentEpoch {
			v.ActivationEpoch = helpers.DelayedActivationExitEpoch(currentEpoch)
			activated++
		}
	}
}

// processSlashings charges each validator slashed half a slashing window
// ago its correlation penalty: the more total balance was slashed across
// the window, the larger the share of the offender's own effective balance
// burned, floored at effective_balance / MIN_SLASHING_PENALTY_QUOTIENT.
func processSlashings(state *types.BeaconState) {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(state)
	totalBalance := effectiveBalanceSum(state, helpers.ActiveValidatorIndices(state.ValidatorRegistry, currentEpoch))
	n := uint64(len(state.LatestSlashedBalances))
	if n == 0 || totalBalance == 0 {
		return
	}

	windowStart := uint64(state.LatestSlashedBalances[(uint64(currentEpoch)+1)%n])
	windowEnd := uint64(state.LatestSlashedBalances[uint64(currentEpoch)%n])
	totalPenalties := windowEnd - windowStart

	for i := range state.ValidatorRegistry {
		v := &state.ValidatorRegistry[i]
		if !v.Slashed || i >= len(state.ValidatorBalances) {
			continue
		}
		if uint64(v.WithdrawableEpoch) != uint64(currentEpoch)+cfg.EpochsPerSlashingsVector/2 {
			continue
		}
		scaled := uint64(v.EffectiveBalance) * min64(totalPenalties*3, totalBalance) / totalBalance
		penalty := max64(scaled, uint64(v.EffectiveBalance)/cfg.MinSlashingPenaltyQuotient)
		if types.Gwei(penalty) > state.ValidatorBalances[i] {
			penalty = uint64(state.ValidatorBalances[i])
		}
		state.ValidatorBalances[i] -= types.Gwei(penalty)
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// updateEffectiveBalances brings each validator's cached EffectiveBalance
// back in line with its actual balance, rounded down to the nearest
// EFFECTIVE_BALANCE_INCREMENT and capped at MAX_EFFECTIVE_BALANCE. The
// asymmetric trigger (any decrease, but only an increase of more than 1.5
// increments on the way up) damps the effective balance against small
// fluctuations around the maximum.
func updateEffectiveBalances(state *types.BeaconState) {
	cfg := params.BeaconConfig()
	increment := types.Gwei(cfg.EffectiveBalanceIncrement)
	halfIncrement := increment / 2
	for i := range state.ValidatorRegistry {
		if i >= len(state.ValidatorBalances) {
			continue
		}
		v := &state.ValidatorRegistry[i]
		balance := state.ValidatorBalances[i]
		if balance < v.EffectiveBalance || v.EffectiveBalance+3*halfIncrement < balance {
			newEffective := balance - balance%increment
			if newEffective > types.Gwei(cfg.MaxEffectiveBalance) {
				newEffective = types.Gwei(cfg.MaxEffectiveBalance)
			}
			v.EffectiveBalance = newEffective
		}
	}
}

// processFinalUpdates performs the per-epoch ring-buffer rotations: it
// populates the active-index root ACTIVATION_EXIT_DELAY epochs ahead of
// the next epoch (so a validator activating then already has its
// committee-eligible index set cached), carries the slashed-balance and
// randao-mix ring entries forward into the next epoch's slot, and purges
// attestations older than the previous epoch.
func processFinalUpdates(state *types.BeaconState) error {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(state)
	nextEpoch := currentEpoch + 1
	targetEpoch := nextEpoch + types.Epoch(cfg.ActivationExitDelay)

	activeIndices := helpers.ActiveValidatorIndices(state.ValidatorRegistry, targetEpoch)
	root, err := activeIndexRoot(activeIndices)
	if err != nil {
		return errors.Wrap(err, "core/state: could not compute active index root")
	}
	if n := uint64(len(state.LatestActiveIndexRoots)); n > 0 {
		state.LatestActiveIndexRoots[uint64(targetEpoch)%n] = root
	}

	if n := uint64(len(state.LatestSlashedBalances)); n > 0 {
		state.LatestSlashedBalances[uint64(nextEpoch)%n] = state.LatestSlashedBalances[uint64(currentEpoch)%n]
	}
	if n := uint64(len(state.LatestRandaoMixes)); n > 0 {
		state.LatestRandaoMixes[uint64(nextEpoch)%n] = state.LatestRandaoMixes[uint64(currentEpoch)%n]
	}

	var cutoff types.Epoch
	if currentEpoch >= 1 {
		cutoff = currentEpoch - 1
	}
	kept := state.LatestAttestations[:0]
	for _, att := range state.LatestAttestations {
		if att.Data.Slot.ToEpoch() >= cutoff {
			kept = append(kept, att)
		}
	}
	state.LatestAttestations = kept
	return nil
}

// filterByEpoch returns the subset of atts whose vote targets epoch.
func filterByEpoch(atts []types.PendingAttestationRecord, epoch types.Epoch) []types.PendingAttestationRecord {
	var out []types.PendingAttestationRecord
	for _, att := range atts {
		if att.Data.Slot.ToEpoch() == epoch {
			out = append(out, att)
		}
	}
	return out
}

// filterByBoundaryRoot returns the subset of atts whose claimed epoch
// boundary root matches root.
func filterByBoundaryRoot(atts []types.PendingAttestationRecord, root types.Root) []types.PendingAttestationRecord {
	var out []types.PendingAttestationRecord
	for _, att := range atts {
		if att.Data.EpochBoundaryRoot == root {
			out = append(out, att)
		}
	}
	return out
}

// attestingIndices returns the sorted, deduplicated set of validator
// indices that participated in any attestation in atts.
func attestingIndices(state *types.BeaconState, atts []types.PendingAttestationRecord) ([]uint64, error) {
	seen := make(map[uint64]bool)
	var out []uint64
	for i := range atts {
		participants, err := helpers.AttestationParticipants(state, &atts[i].Data, atts[i].AggregationBitfield)
		if err != nil {
			return nil, errors.Wrap(err, "core/state: could not resolve attestation participants")
		}
		for _, idx := range participants {
			if !seen[idx] {
				seen[idx] = true
				out = append(out, idx)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// effectiveBalanceSum sums the registered effective balance of indices,
// the denominator the justification thresholds compare against.
func effectiveBalanceSum(state *types.BeaconState, indices []uint64) uint64 {
	var sum uint64
	for _, idx := range indices {
		if idx < uint64(len(state.ValidatorRegistry)) {
			sum += uint64(state.ValidatorRegistry[idx].EffectiveBalance)
		}
	}
	return sum
}

// activeIndexRoot tree-hashes a bare list of validator indices the way
// fastssz's Hasher merkleizes any other basic-type list, used here because
// no existing type wraps a raw []uint64 the way PendingAttestationRecord
// wraps an AttestationData.
func activeIndexRoot(indices []uint64) (types.Root, error) {
	hh := ssz.DefaultHasherPool.Get()
	defer ssz.DefaultHasherPool.Put(hh)
	indx := hh.Index()
	for _, idx := range indices {
		hh.PutUint64(idx)
	}
	hh.MerkleizeWithMixin(indx, uint64(len(indices)), params.BeaconConfig().ValidatorRegistryLimit)
	root, err := hh.HashRoot()
	if err != nil {
		return types.Root{}, err
	}
	return types.Root(root), nil
}
