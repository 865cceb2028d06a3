package helpers

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// ActiveValidatorIndices returns the sorted indices of every validator in
// registry active at epoch: activation_epoch <= epoch < exit_epoch.
func ActiveValidatorIndices(registry []types.Validator, epoch types.Epoch) []uint64 {
	indices := make([]uint64, 0, len(registry))
	for i := range registry {
		if registry[i].IsActiveAtEpoch(epoch) {
			indices = append(indices, uint64(i))
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// Seed derives the shuffling seed for epoch, combining the randao mix from
// MIN_SEED_LOOKAHEAD+1 epochs back (epoch 0's mix while epoch is not yet
// past MIN_SEED_LOOKAHEAD) with the active-index root and epoch
// number so that the seed is unpredictable further than one lookahead
// period ahead of use but still reproducible from state alone.
func Seed(state *types.BeaconState, epoch types.Epoch) ([32]byte, error) {
	cfg := params.BeaconConfig()
	lookback := types.Epoch(0)
	if uint64(epoch) > cfg.MinSeedLookahead {
		lookback = epoch - types.Epoch(cfg.MinSeedLookahead+1)
	}
	mix, err := RandaoMix(state, lookback)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "helpers: could not compute seed")
	}
	activeRoot, err := ActiveIndexRoot(state, epoch)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "helpers: could not compute seed")
	}
	h := sha256.New()
	h.Write(mix[:])
	h.Write(activeRoot[:])
	var epochBytes [32]byte
	binary.LittleEndian.PutUint64(epochBytes[:8], uint64(epoch))
	h.Write(epochBytes[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// ActiveIndexRoot reads the cached active-validator-index root for epoch
// out of the ring buffer state.latest_active_index_roots.
func ActiveIndexRoot(state *types.BeaconState, epoch types.Epoch) (types.Root, error) {
	n := uint64(len(state.LatestActiveIndexRoots))
	if n == 0 {
		return types.Root{}, errors.New("helpers: latest active index roots is empty")
	}
	return state.LatestActiveIndexRoots[uint64(epoch)%n], nil
}

// committeeCount returns the number of crosslink committees active during
// an epoch with activeCount active validators, clamped to
// [1, SHARD_COUNT/SLOTS_PER_EPOCH] committees per slot.
func committeeCount(activeCount uint64) uint64 {
	cfg := params.BeaconConfig()
	perSlot := activeCount / cfg.SlotsPerEpoch / cfg.TargetCommitteeSize
	maxPerSlot := cfg.ShardCount / cfg.SlotsPerEpoch
	if perSlot > maxPerSlot {
		perSlot = maxPerSlot
	}
	if perSlot < 1 {
		perSlot = 1
	}
	return perSlot * cfg.SlotsPerEpoch
}

// CrosslinkCommittee is one disjoint slice of the active validator set
// assigned to vote on a single shard during a single slot.
type CrosslinkCommittee struct {
	Committee []uint64
	Shard     uint64
}

// shuffledEpochCommittees caches an epoch's full shuffled-and-split
// committee set keyed by seed, so the 32 (or more) slots in an epoch
// reuse one shuffle instead of recomputing it per slot.
var shuffledEpochCommittees = func() *lru.Cache {
	c, err := lru.New(128)
	if err != nil {
		panic(err)
	}
	return c
}()

type epochCommittees struct {
	allCommittees     [][]uint64
	committeesPerSlot uint64
}

// CrosslinkCommitteesAtSlot returns every committee assigned to slot,
// shuffled by that slot's epoch seed and split first by slot-within-epoch,
// then by shard.
func CrosslinkCommitteesAtSlot(state *types.BeaconState, slot types.Slot) ([]CrosslinkCommittee, error) {
	cfg := params.BeaconConfig()
	epoch := slot.ToEpoch()

	seed, err := Seed(state, epoch)
	if err != nil {
		return nil, err
	}

	ec, ok := shuffledEpochCommittees.Get(seed)
	if !ok {
		active := ActiveValidatorIndices(state.ValidatorRegistry, epoch)
		if len(active) == 0 {
			return nil, errors.New("helpers: no active validators for epoch")
		}
		shuffled, err := ShuffleList(append([]uint64{}, active...), seed)
		if err != nil {
			return nil, errors.Wrap(err, "helpers: could not shuffle active validators")
		}

		count := committeeCount(uint64(len(active)))
		ec = &epochCommittees{
			allCommittees:     SplitIndices(shuffled, count),
			committeesPerSlot: count / cfg.SlotsPerEpoch,
		}
		shuffledEpochCommittees.Add(seed, ec)
	}
	cached := ec.(*epochCommittees)

	// Committee i at slot s is assigned shard (s + i*SLOTS_PER_EPOCH) mod
	// SHARD_COUNT: the first committee's shard is always the slot's own
	// shard number (the proposer lookup depends on that), and the stride
	// keeps every (slot, committee) pair in an epoch on a distinct shard.
	offsetInEpoch := uint64(slot) % cfg.SlotsPerEpoch
	result := make([]CrosslinkCommittee, cached.committeesPerSlot)
	for i := uint64(0); i < cached.committeesPerSlot; i++ {
		globalIndex := offsetInEpoch*cached.committeesPerSlot + i
		result[i] = CrosslinkCommittee{
			Committee: cached.allCommittees[globalIndex],
			Shard:     (uint64(slot) + i*cfg.SlotsPerEpoch) % cfg.ShardCount,
		}
	}
	return result, nil
}

// BeaconProposerIndex returns the first index of the committee at slot
// whose shard equals slot mod SHARD_COUNT.
func BeaconProposerIndex(state *types.BeaconState, slot types.Slot) (uint64, error) {
	cfg := params.BeaconConfig()
	committees, err := CrosslinkCommitteesAtSlot(state, slot)
	if err != nil {
		return 0, errors.Wrap(err, "helpers: could not compute proposer index")
	}
	wantShard := uint64(slot) % cfg.ShardCount
	for _, c := range committees {
		if c.Shard == wantShard {
			if len(c.Committee) == 0 {
				return 0, errors.New("helpers: proposer committee is empty")
			}
			return c.Committee[0], nil
		}
	}
	return 0, errors.New("helpers: no committee assigned to slot's shard")
}

// AttestationParticipants returns the subset of the committee at
// data.slot/data.shard whose bit is set in bits, in committee order.
func AttestationParticipants(state *types.BeaconState, data *types.AttestationData, bits bitfield.Bitlist) ([]uint64, error) {
	committees, err := CrosslinkCommitteesAtSlot(state, types.Slot(data.Slot))
	if err != nil {
		return nil, errors.Wrap(err, "helpers: could not compute attestation participants")
	}
	var committee []uint64
	for _, c := range committees {
		if c.Shard == data.Shard {
			committee = c.Committee
			break
		}
	}
	if committee == nil {
		return nil, errors.New("helpers: no committee for attestation shard")
	}
	if bits.Len() < uint64(len(committee)) {
		return nil, errors.New("helpers: aggregation bitfield shorter than committee")
	}
	participants := make([]uint64, 0, len(committee))
	for i, idx := range committee {
		if bits.BitAt(uint64(i)) {
			participants = append(participants, idx)
		}
	}
	return participants, nil
}
