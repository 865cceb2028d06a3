package validator

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sigmaprotocol/beacon-core/async"
	"github.com/sigmaprotocol/beacon-core/async/event"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/blockchain"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	corestate "github.com/sigmaprotocol/beacon-core/beacon-chain/core/state"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

var log = logrus.WithField("prefix", "validator")

// InitializedValidator is emitted the first time one of the scheduler's
// managed pubkeys is observed in a delivered state's validator registry.
type InitializedValidator struct {
	Index  uint64
	Pubkey types.BLSPubkey
}

// Scheduler drives every validator duty this process's keys owe, fed by
// a stream of externally delivered states. It is the single owner of all
// duty decisions for however many local keys the process holds: no other
// goroutine touches its bookkeeping.
type Scheduler struct {
	mu            sync.Mutex
	uninitialized map[types.BLSPubkey]bool
	initialized   map[uint64]types.BLSPubkey
	lastProcessed types.Slot
	started       bool
	recent        *types.BeaconState

	proposer *Proposer
	attester *Attester
	clock    Clock

	proposedBlocks        *event.Feed
	producedAttestations  *event.Feed
	initializedValidators *event.Feed

	errorHandler func(error)
}

// NewScheduler returns a Scheduler managing pubkeys, signing proposals
// and attestations through proposer/attester and timing duties off clock.
// A nil errorHandler logs and drops scheduled-task failures.
func NewScheduler(proposer *Proposer, attester *Attester, clock Clock, pubkeys []types.BLSPubkey, errorHandler func(error)) *Scheduler {
	uninitialized := make(map[types.BLSPubkey]bool, len(pubkeys))
	for _, pk := range pubkeys {
		uninitialized[pk] = true
	}
	if errorHandler == nil {
		errorHandler = func(err error) { log.WithError(err).Error("scheduled validator task failed") }
	}
	return &Scheduler{
		uninitialized:         uninitialized,
		initialized:           make(map[uint64]types.BLSPubkey),
		proposer:              proposer,
		attester:              attester,
		clock:                 clock,
		proposedBlocks:        new(event.Feed),
		producedAttestations:  new(event.Feed),
		initializedValidators: new(event.Feed),
		errorHandler:          errorHandler,
	}
}

// ProposedBlocks is the produced-blocks stream; subscribe with a chan
// *types.BeaconBlock.
func (s *Scheduler) ProposedBlocks() *event.Feed { return s.proposedBlocks }

// Attestations is the produced-attestations stream; subscribe with a
// chan *types.Attestation.
func (s *Scheduler) Attestations() *event.Feed { return s.producedAttestations }

// InitializedValidators is the initialized_validators stream; subscribe
// with a chan InitializedValidator.
func (s *Scheduler) InitializedValidators() *event.Feed { return s.initializedValidators }

// isCurrentSlot reports whether st's slot is the slot the wall clock is
// presently in, the re-entrant guard that discards a delivered state
// arriving after the scheduler's clock has already moved past its slot.
func isCurrentSlot(st *types.BeaconState, nowMillis int64) bool {
	cfg := params.BeaconConfig()
	elapsed := nowMillis/1000 - int64(st.GenesisTime)
	if elapsed < 0 {
		return false
	}
	return types.Slot(uint64(elapsed)/cfg.SecondsPerSlot) == st.Slot
}

// Deliver feeds one externally observed ObservableBeaconState into the
// scheduler: a fresh slot tick or a newly imported block, tagged with
// which kind of transition produced it. Deliver discards stale states,
// advances last-processed-slot bookkeeping, and runs the initialization,
// proposal, and attestation-scheduling steps.
func (s *Scheduler) Deliver(obs *blockchain.ObservableBeaconState) {
	st := obs.State
	if !isCurrentSlot(st, s.clock.NowMillis()) {
		return
	}

	s.mu.Lock()
	s.recent = st
	if s.started && st.Slot <= s.lastProcessed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.lastProcessed = st.Slot
	s.mu.Unlock()

	s.initializeValidators(st)

	if obs.Transition == corestate.SlotTransition && st.Slot != types.Slot(params.BeaconConfig().GenesisSlot) {
		s.maybePropose(st)
	}

	s.scheduleAttestations(st)
}

// initializeValidators moves every managed pubkey now visible in st's
// registry from uninitialized to initialized, one-shot per pubkey.
func (s *Scheduler) initializeValidators(st *types.BeaconState) {
	s.mu.Lock()
	if len(s.uninitialized) == 0 {
		s.mu.Unlock()
		return
	}
	var found []InitializedValidator
	for i := range st.ValidatorRegistry {
		pk := st.ValidatorRegistry[i].Pubkey
		if s.uninitialized[pk] {
			delete(s.uninitialized, pk)
			s.initialized[uint64(i)] = pk
			found = append(found, InitializedValidator{Index: uint64(i), Pubkey: pk})
		}
	}
	s.mu.Unlock()
	for _, iv := range found {
		s.initializedValidators.Send(iv)
	}
}

// maybePropose invokes the proposer immediately, on its own goroutine, if
// one of this scheduler's initialized validators is st's proposer. It
// works from a copy of st so the proposer's in-place state transition
// can't race the attestation scheduling that follows in the same Deliver.
func (s *Scheduler) maybePropose(st *types.BeaconState) {
	proposerIndex, err := helpers.BeaconProposerIndex(st, st.Slot)
	if err != nil {
		s.errorHandler(errors.Wrap(err, "validator: could not resolve proposer for slot"))
		return
	}
	s.mu.Lock()
	_, ok := s.initialized[proposerIndex]
	s.mu.Unlock()
	if !ok {
		return
	}

	candidate := st.Copy()
	go s.runTask(func() error {
		block, _, err := s.proposer.Propose(candidate, proposerIndex)
		if err != nil {
			return errors.Wrap(err, "validator: proposer task failed")
		}
		s.proposedBlocks.Send(block)
		return nil
	})
}

// scheduleAttestations posts one delayed task per initialized committee
// member at st.slot, timed for the slot's wall-clock midpoint.
func (s *Scheduler) scheduleAttestations(st *types.BeaconState) {
	cfg := params.BeaconConfig()
	committees, err := helpers.CrosslinkCommitteesAtSlot(st, st.Slot)
	if err != nil {
		s.errorHandler(errors.Wrap(err, "validator: could not resolve committees for slot"))
		return
	}

	s.mu.Lock()
	initialized := make(map[uint64]bool, len(s.initialized))
	for idx := range s.initialized {
		initialized[idx] = true
	}
	s.mu.Unlock()

	slotStartMillis := int64(st.GenesisTime+uint64(st.Slot)*cfg.SecondsPerSlot) * 1000
	midpointMillis := slotStartMillis + int64(cfg.SecondsPerSlot)*500
	delay := midpointMillis - s.clock.NowMillis()
	if delay < 0 {
		delay = 0
	}

	slot := st.Slot
	for _, committee := range committees {
		shard := committee.Shard
		for _, validatorIndex := range committee.Committee {
			if !initialized[validatorIndex] {
				continue
			}
			validatorIndex := validatorIndex
			s.clock.ScheduleAfter(delay, func() {
				s.runTask(func() error { return s.attestAtExecution(slot, shard, validatorIndex) })
			})
		}
	}
}

// attestAtExecution re-reads the most recently delivered state and
// re-checks committee membership before attesting: a re-org that has
// moved validatorIndex out of shard's committee by the time this fires
// causes the attestation to be silently skipped rather than stale. The
// per-(slot, validator) lock makes two tasks for the same duty run one
// after the other rather than concurrently; it does not record a
// completed duty, so a second task for it signs again.
func (s *Scheduler) attestAtExecution(slot types.Slot, shard, validatorIndex uint64) error {
	lock := async.NewMultilock(fmt.Sprintf("attest-%d-%d", slot, validatorIndex))
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	st := s.recent
	s.mu.Unlock()
	if st == nil || st.Slot != slot {
		return nil
	}
	if _, _, err := committeeAndShard(st, shard, validatorIndex); err != nil {
		return nil
	}

	att, err := s.attester.Attest(st.Copy(), validatorIndex, shard)
	if err != nil {
		return errors.Wrap(err, "validator: attester task failed")
	}
	s.producedAttestations.Send(att)
	return nil
}

// runTask reports f's error, if any, to the configured error handler.
// Failed duties are one-shot and never retried.
func (s *Scheduler) runTask(f func() error) {
	if err := f(); err != nil {
		s.errorHandler(err)
	}
}
