package validator

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/blocks"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/state"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// Proposer builds and signs a candidate block for whichever of its
// validators is assigned to propose: it assembles the body from the
// pending-operation pools, runs the block transition to compute the
// state root, then signs, all in one in-process call.
type Proposer struct {
	Deposits     DepositContract
	Attestations AttestationPool
	Slashings    SlashingPool
	Exits        ExitPool
	Signer       Signer
}

// NewProposer returns a Proposer wired to the given collaborators.
func NewProposer(deposits DepositContract, atts AttestationPool, slashings SlashingPool, exits ExitPool, signer Signer) *Proposer {
	return &Proposer{Deposits: deposits, Attestations: atts, Slashings: slashings, Exits: exits, Signer: signer}
}

// pendingDeposits selects, in order, the pending deposits the contract
// oracle has observed that continue state.deposit_index without a gap,
// bounded by MAX_DEPOSITS: ProcessDeposits rejects any list that isn't a
// contiguous run starting exactly there.
func pendingDeposits(beaconState *types.BeaconState, all []*types.Deposit) []types.Deposit {
	cfg := params.BeaconConfig()
	sorted := append([]*types.Deposit{}, all...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var out []types.Deposit
	want := beaconState.DepositIndex
	for _, d := range sorted {
		if d.Index != want {
			break
		}
		out = append(out, *d)
		want++
		if uint64(len(out)) == cfg.MaxDeposits {
			break
		}
	}
	return out
}

// Propose builds, transitions, and signs a block for validatorIndex at
// state.slot. state must already be advanced to the assigned slot; Propose
// mutates it in place into the block's post-state and returns both.
func (p *Proposer) Propose(beaconState *types.BeaconState, validatorIndex uint64) (*types.BeaconBlock, *types.BeaconState, error) {
	cfg := params.BeaconConfig()

	proposerIndex, err := helpers.BeaconProposerIndex(beaconState, beaconState.Slot)
	if err != nil {
		return nil, nil, errors.Wrap(err, "validator: could not resolve proposer index")
	}
	if proposerIndex != validatorIndex {
		return nil, nil, errors.Errorf("validator: validator %d is not the proposer for slot %d", validatorIndex, beaconState.Slot)
	}
	if validatorIndex >= uint64(len(beaconState.ValidatorRegistry)) {
		return nil, nil, errors.New("validator: validator index out of range")
	}
	pubkey := beaconState.ValidatorRegistry[validatorIndex].Pubkey

	parentRoot, err := helpers.BlockRoot(beaconState, beaconState.Slot-1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "validator: could not resolve parent block root")
	}

	currentEpoch := helpers.CurrentEpoch(beaconState)
	randaoRoot := blocks.RandaoSigningRoot(currentEpoch)
	randaoDomain := helpers.Domain(&beaconState.Fork, currentEpoch, cfg.DomainRandao)
	randaoReveal, err := p.Signer.Sign(pubkey, blocks.SigningMessage(randaoRoot, randaoDomain))
	if err != nil {
		return nil, nil, errors.Wrap(err, "validator: could not sign randao reveal")
	}

	eth1Data := beaconState.LatestEth1Data
	if latest, ok := p.Deposits.LatestEth1Data(); ok {
		eth1Data = latest
	}

	// The peek window opens at the state's own deposit counter, not at the
	// state's eth1 vote: deposits the network knows about but the chain has
	// not consumed yet sit between the two.
	fromVote := types.Eth1Data{DepositCount: beaconState.DepositIndex}
	deposits := pendingDeposits(beaconState, p.Deposits.PeekDeposits(cfg.MaxDeposits, fromVote, eth1Data))
	atts := p.Attestations.Aggregated(beaconState)
	proposerSlashings := p.Slashings.PendingProposerSlashings(beaconState)
	attesterSlashings := p.Slashings.PendingAttesterSlashings(beaconState)
	exits := p.Exits.PendingExits(beaconState)

	block := &types.BeaconBlock{
		Slot:         beaconState.Slot,
		ParentRoot:   parentRoot,
		RandaoReveal: randaoReveal,
		Eth1Data:     eth1Data,
		Body: &types.BeaconBlockBody{
			RandaoReveal:      randaoReveal,
			Eth1Data:          eth1Data,
			ProposerSlashings: proposerSlashings,
			AttesterSlashings: attesterSlashings,
			Attestations:      atts,
			Deposits:          deposits,
			VoluntaryExits:    exits,
		},
	}

	tr := &state.Transitioner{}
	if err := tr.ProcessBlock(beaconState, block, false); err != nil {
		return nil, nil, errors.Wrap(err, "validator: could not compute candidate block's post-state")
	}

	postRoot, err := beaconState.HashTreeRoot()
	if err != nil {
		return nil, nil, errors.Wrap(err, "validator: could not hash post-state")
	}
	block.StateRoot = types.Root(postRoot)

	signingRoot, err := block.SigningRoot()
	if err != nil {
		return nil, nil, errors.Wrap(err, "validator: could not compute block signing root")
	}
	proposalDomain := helpers.Domain(&beaconState.Fork, currentEpoch, cfg.DomainProposal)
	signature, err := p.Signer.Sign(pubkey, blocks.SigningMessage(signingRoot, proposalDomain))
	if err != nil {
		return nil, nil, errors.Wrap(err, "validator: could not sign block")
	}
	block.Signature = signature

	return block, beaconState, nil
}
