// Package blockchain is the node's observable state processor: it owns
// the block store and fork-choice engine, drives the slot/block/epoch
// transition functions as new blocks and slot ticks arrive, and
// republishes the result as a stream of ObservableBeaconState values the
// validator scheduler (and any other in-process consumer) subscribes to.
package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sigmaprotocol/beacon-core/async"
	"github.com/sigmaprotocol/beacon-core/async/event"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/blockchain/forkchoice"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/blockchain/storage"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	corestate "github.com/sigmaprotocol/beacon-core/beacon-chain/core/state"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
	"github.com/sigmaprotocol/beacon-core/operations/attestations"
	"github.com/sigmaprotocol/beacon-core/operations/slashings"
	"github.com/sigmaprotocol/beacon-core/operations/voluntaryexits"
)

var log = logrus.WithField("prefix", "blockchain")

// ErrMissingBlock is returned when an operation names a block root this
// Service's storage has never seen.
var ErrMissingBlock = errors.New("blockchain: block not found in storage")

// ChainStart is the deposit-contract oracle's one-shot genesis event: the
// eth1 block the contract's minimum-validator-count threshold was
// crossed at, and every deposit logged up to it.
type ChainStart struct {
	GenesisTime     uint64
	Eth1BlockHash   types.Root
	InitialDeposits []*types.Deposit
}

// PendingOperations is the pool of operations bundled into each
// ObservableBeaconState: whatever a proposer assembling a block at the
// observed head would currently have available to include.
type PendingOperations struct {
	Attestations      []types.Attestation
	ProposerSlashings []types.ProposerSlashing
	AttesterSlashings []types.AttesterSlashing
	VoluntaryExits    []types.VoluntaryExit
}

// ObservableBeaconState is the current head block, the state at the
// node's latest processed slot, and the pending operations pool, as of
// the moment it was produced. It is a snapshot — nothing in it mutates
// after publication.
type ObservableBeaconState struct {
	Transition corestate.TransitionType
	HeadRoot   types.Root
	HeadBlock  *types.BeaconBlock
	State      *types.BeaconState
	Pending    PendingOperations
}

// Service wires block storage, fork choice, the state transition
// functions, and the pending-operation pools into the single source of
// ObservableBeaconState values the rest of the node (chiefly the
// validator scheduler) reacts to.
type Service struct {
	mu sync.Mutex

	Store        *storage.Store
	ForkChoice   *forkchoice.ForkChoice
	Attestations *attestations.Pool
	Slashings    *slashings.Pool
	Exits        *voluntaryexits.Pool

	transitioner *corestate.Transitioner
	recent       *types.BeaconState
	recentRoot   types.Root

	observable  *event.Feed
	headRefresh chan interface{}
}

// NewService returns a Service with fresh storage and pools, ready for
// Initialize to bootstrap from a ChainStart event.
func NewService() *Service {
	store := storage.New()
	return &Service{
		Store:        store,
		ForkChoice:   forkchoice.New(store),
		Attestations: attestations.NewPool(),
		Slashings:    slashings.NewPool(),
		Exits:        voluntaryexits.NewPool(),
		transitioner: &corestate.Transitioner{},
		observable:   new(event.Feed),
		headRefresh:  make(chan interface{}, 1),
	}
}

// headRefreshInterval bounds how often a burst of gossiped attestations
// can trigger a fork-choice head recomputation.
const headRefreshInterval = 500 * time.Millisecond

// Start drives the service's clock-driven work until ctx is canceled: a
// per-slot ticker advancing the observable state through empty slots, and
// a debounced refresh loop that coalesces bursts of gossiped attestations
// into a single fork-choice recomputation.
func (s *Service) Start(ctx context.Context) {
	cfg := params.BeaconConfig()
	async.RunEvery(ctx, time.Duration(cfg.SecondsPerSlot)*time.Second, func() {
		s.mu.Lock()
		recent := s.recent
		s.mu.Unlock()
		if recent == nil {
			return
		}
		if _, err := s.OnSlotTick(recent.Slot + 1); err != nil {
			log.WithError(err).Error("could not process slot tick")
		}
	})
	go async.Debounce(ctx, headRefreshInterval, s.headRefresh, func(interface{}) {
		s.refreshHead()
	})
}

// refreshHead recomputes the fork-choice head against the latest state
// and, if it moved, republishes the observation for the new head.
func (s *Service) refreshHead() {
	s.mu.Lock()
	recent := s.recent
	prevRoot := s.recentRoot
	s.mu.Unlock()
	if recent == nil {
		return
	}

	headRoot, err := s.ForkChoice.UpdateHead(recent.Copy())
	if err != nil {
		log.WithError(err).Error("could not recompute head from gossiped attestations")
		return
	}
	if headRoot == prevRoot {
		return
	}
	_, headState, ok := s.Store.GetTuple(headRoot)
	if !ok {
		log.Warn("recomputed head has no stored state")
		return
	}

	s.mu.Lock()
	s.recent = headState
	s.recentRoot = headRoot
	s.mu.Unlock()

	reportHeadMetrics(headState, headRoot)
	s.publish(corestate.SlotTransition, headRoot, headState)
}

// Observable returns the stream of published ObservableBeaconState
// values; subscribe with a chan *ObservableBeaconState.
func (s *Service) Observable() *event.Feed { return s.observable }

// Initialize bootstraps the Service's storage from a ChainStart event:
// it builds the genesis state and its zero block, stores both (Store.Put's
// own genesis rule marks the block canonical; Initialize then records it
// as justified and finalized), and publishes the resulting
// ObservableBeaconState.
func (s *Service) Initialize(cs ChainStart) (*ObservableBeaconState, error) {
	genesisState, err := corestate.GenesisBeaconState(cs.InitialDeposits, cs.GenesisTime, cs.Eth1BlockHash)
	if err != nil {
		return nil, errors.Wrap(err, "blockchain: could not build genesis state")
	}
	genesisBlock, err := corestate.GenesisBlock(genesisState)
	if err != nil {
		return nil, errors.Wrap(err, "blockchain: could not build genesis block")
	}
	genesisRoot, err := genesisBlock.HeaderRoot()
	if err != nil {
		return nil, errors.Wrap(err, "blockchain: could not hash genesis block")
	}
	// ProcessBlock normally records a block's own root into the ring once
	// it finishes applying it, so the next block's parent-root check can
	// resolve it; genesis never goes through ProcessBlock, so that ring
	// entry is seeded here instead.
	helpers.SetBlockRoot(genesisState, genesisState.Slot, types.Root(genesisRoot))

	root, err := s.Store.Put(genesisBlock)
	if err != nil {
		return nil, errors.Wrap(err, "blockchain: could not store genesis block")
	}
	if err := s.Store.PutState(root, genesisState); err != nil {
		return nil, errors.Wrap(err, "blockchain: could not store genesis state")
	}
	s.Store.AddJustifiedHash(root, genesisState.Slot.ToEpoch())
	s.Store.AddFinalizedHash(root, genesisState.Slot.ToEpoch())

	s.mu.Lock()
	s.recent = genesisState
	s.recentRoot = root
	s.mu.Unlock()

	log.WithField("root", root).Info("initialized chain from genesis")
	reportHeadMetrics(genesisState, root)
	return s.publish(corestate.SlotTransition, root, genesisState), nil
}

// OnSlotTick advances the most recently observed state up to targetSlot
// with no intervening block (an empty-slot tick), recomputes the head,
// and publishes the result.
func (s *Service) OnSlotTick(targetSlot types.Slot) (*ObservableBeaconState, error) {
	s.mu.Lock()
	recent := s.recent
	s.mu.Unlock()
	if recent == nil {
		return nil, errors.New("blockchain: cannot tick before Initialize")
	}

	working := recent.Copy()
	if err := s.transitioner.ProcessSlots(working, targetSlot); err != nil {
		return nil, errors.Wrap(err, "blockchain: could not advance slots")
	}

	headRoot, err := s.ForkChoice.UpdateHead(working)
	if err != nil {
		return nil, errors.Wrap(err, "blockchain: could not recompute head")
	}
	s.Attestations.Prune(working)

	s.mu.Lock()
	s.recent = working
	s.recentRoot = headRoot
	s.mu.Unlock()

	reportHeadMetrics(working, headRoot)
	return s.publish(corestate.SlotTransition, headRoot, working), nil
}

// OnBlock applies block to the state at its parent, verifying every
// operation in the process, stores the (block, post-state) tuple,
// recomputes head, prunes the pools of whatever the block just included,
// and publishes the result. A block that fails any verifier is never
// stored.
func (s *Service) OnBlock(block *types.BeaconBlock, verifySignatures bool) (*ObservableBeaconState, error) {
	_, parentState, ok := s.Store.GetTuple(block.ParentRoot)
	if !ok {
		return nil, errors.Wrapf(ErrMissingBlock, "parent root %x", block.ParentRoot)
	}

	working := parentState.Copy()
	if err := s.transitioner.ProcessSlots(working, block.Slot); err != nil {
		return nil, errors.Wrap(err, "blockchain: could not advance to block slot")
	}
	if err := s.transitioner.ProcessBlock(working, block, verifySignatures); err != nil {
		return nil, errors.Wrap(err, "blockchain: invalid block")
	}

	root, err := s.Store.Put(block)
	if err != nil {
		return nil, errors.Wrap(err, "blockchain: could not store block")
	}
	if err := s.Store.PutState(root, working); err != nil {
		return nil, errors.Wrap(err, "blockchain: could not store post-state")
	}

	for _, att := range block.Body.Attestations {
		data := att.Data
		if err := s.ForkChoice.ProcessAttestation(working, &data, att.AggregationBitfield); err != nil {
			log.WithError(err).Warn("could not fold block attestation into fork choice")
		}
	}
	s.Attestations.Remove(block.Body.Attestations)
	for i := range block.Body.ProposerSlashings {
		s.Slashings.MarkIncludedProposerSlashing(&block.Body.ProposerSlashings[i])
	}
	for i := range block.Body.AttesterSlashings {
		s.Slashings.MarkIncludedAttesterSlashing(&block.Body.AttesterSlashings[i])
	}
	for _, exit := range block.Body.VoluntaryExits {
		s.Exits.MarkIncluded(exit.ValidatorIndex)
	}

	headRoot, err := s.ForkChoice.UpdateHead(working)
	if err != nil {
		return nil, errors.Wrap(err, "blockchain: could not recompute head")
	}
	_, headState, ok := s.Store.GetTuple(headRoot)
	if !ok {
		return nil, errors.Wrap(ErrMissingBlock, "new head")
	}

	s.mu.Lock()
	s.recent = headState
	s.recentRoot = headRoot
	s.mu.Unlock()

	reportHeadMetrics(headState, headRoot)
	return s.publish(corestate.BlockTransition, headRoot, headState), nil
}

// ProcessGossipAttestation folds a gossiped attestation (one not yet
// included in any block) into both the pending-attestation pool and fork
// choice's vote tally, the add-attestation path outside of block
// processing.
func (s *Service) ProcessGossipAttestation(att *types.Attestation) error {
	s.mu.Lock()
	recent := s.recent
	s.mu.Unlock()
	if recent == nil {
		return errors.New("blockchain: cannot process attestation before Initialize")
	}
	if err := s.ForkChoice.ProcessAttestation(recent, &att.Data, att.AggregationBitfield); err != nil {
		return errors.Wrap(err, "blockchain: could not process attestation for fork choice")
	}
	s.Attestations.Save(att)

	// Ask the debounced refresh loop to fold the new vote into the head,
	// dropping the request if one is already queued.
	select {
	case s.headRefresh <- struct{}{}:
	default:
	}
	return nil
}

// publish builds and sends the ObservableBeaconState for (transition,
// headRoot, headState), reading head block and pending operations fresh
// at publish time.
func (s *Service) publish(transition corestate.TransitionType, headRoot types.Root, headState *types.BeaconState) *ObservableBeaconState {
	headBlock, _ := s.Store.Get(headRoot)
	obs := &ObservableBeaconState{
		Transition: transition,
		HeadRoot:   headRoot,
		HeadBlock:  headBlock,
		State:      headState,
		Pending: PendingOperations{
			Attestations:      s.Attestations.Aggregated(headState),
			ProposerSlashings: s.Slashings.PendingProposerSlashings(headState),
			AttesterSlashings: s.Slashings.PendingAttesterSlashings(headState),
			VoluntaryExits:    s.Exits.PendingExits(headState),
		},
	}
	s.observable.Send(obs)
	return obs
}
