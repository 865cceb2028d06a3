// Package forkchoice implements LMD-GHOST, the rule the node uses to pick
// a head block out of every candidate chain its Store has observed:
// starting from the last justified block, it repeatedly descends into
// whichever child carries the most attesting weight.
package forkchoice

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"

	"github.com/sigmaprotocol/beacon-core/async"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/blockchain/storage"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// ancestorCacheSize bounds the BlockAncestor memoization table. Each head
// computation re-derives the ancestor-at-slot for every validator's vote,
// so caching pays for itself within a single call and across the several
// calls a chain makes per slot.
const ancestorCacheSize = 4096

// Target is the block a validator's most recent attestation voted for.
type Target struct {
	Root types.Root
	Slot types.Slot
}

// AttestationCache tracks the single most recent attestation target each
// validator has cast. LMD-GHOST ("latest message driven") counts only the
// newest vote per validator, so a later attestation silently supersedes an
// earlier one from the same participant.
type AttestationCache struct {
	mu      sync.RWMutex
	targets map[uint64]Target
}

// NewAttestationCache returns an empty AttestationCache.
func NewAttestationCache() *AttestationCache {
	return &AttestationCache{targets: make(map[uint64]Target)}
}

// ProcessAttestation folds a newly included attestation's participants
// into the cache, updating each one's recorded vote if data.Slot is newer
// than whatever that validator last voted for.
func (c *AttestationCache) ProcessAttestation(state *types.BeaconState, data *types.AttestationData, bits bitfield.Bitlist) error {
	participants, err := helpers.AttestationParticipants(state, data, bits)
	if err != nil {
		return errors.Wrap(err, "forkchoice: could not resolve attestation participants")
	}
	target := Target{Root: data.BeaconBlockRoot, Slot: data.Slot}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, idx := range participants {
		prev, ok := c.targets[idx]
		if !ok || target.Slot > prev.Slot {
			c.targets[idx] = target
		}
	}
	return nil
}

// PurgeAttestations drops every recorded vote targeting slot or earlier.
// Votes at or behind a promoted checkpoint can never change the outcome of
// a walk that starts at that checkpoint, so holding them only slows
// voteCount down.
func (c *AttestationCache) PurgeAttestations(slot types.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, target := range c.targets {
		if target.Slot <= slot {
			delete(c.targets, idx)
		}
	}
}

func (c *AttestationCache) snapshot() map[uint64]Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[uint64]Target, len(c.targets))
	for k, v := range c.targets {
		out[k] = v
	}
	return out
}

// ForkChoice runs LMD-GHOST against a Store, weighing candidate chains by
// the validators whose latest attestation descends from them.
type ForkChoice struct {
	store     *storage.Store
	atts      *AttestationCache
	ancestors *lru.Cache
}

// New returns a ForkChoice reading blocks from store.
func New(store *storage.Store) *ForkChoice {
	c, err := lru.New(ancestorCacheSize)
	if err != nil {
		panic(err)
	}
	return &ForkChoice{store: store, atts: NewAttestationCache(), ancestors: c}
}

// ProcessAttestation records an attestation's participants as votes for
// its target block.
func (fc *ForkChoice) ProcessAttestation(state *types.BeaconState, data *types.AttestationData, bits bitfield.Bitlist) error {
	return fc.atts.ProcessAttestation(state, data, bits)
}

// PurgeAttestations drops every recorded vote targeting slot or earlier.
func (fc *ForkChoice) PurgeAttestations(slot types.Slot) {
	fc.atts.PurgeAttestations(slot)
}

type ancestorKey struct {
	root types.Root
	slot types.Slot
}

// BlockAncestor returns the ancestor of root's block that occupies slot,
// walking parent links until it finds one, memoizing each hop. It reports
// false if root's chain has no block at exactly slot (the walk steps from
// a block after slot to one before it, as when slot was empty on this
// branch), or once it walks off the start of the store (a root along the
// way is not stored).
func (fc *ForkChoice) BlockAncestor(root types.Root, slot types.Slot) (types.Root, bool) {
	key := ancestorKey{root, slot}
	if v, ok := fc.ancestors.Get(key); ok {
		return v.(types.Root), true
	}

	block, ok := fc.store.Get(root)
	if !ok {
		return types.Root{}, false
	}
	if block.Slot == slot {
		fc.ancestors.Add(key, root)
		return root, true
	}
	if block.Slot < slot {
		return types.Root{}, false
	}
	ancestor, ok := fc.BlockAncestor(block.ParentRoot, slot)
	if !ok {
		return types.Root{}, false
	}
	fc.ancestors.Add(key, ancestor)
	return ancestor, true
}

// voteCount sums the effective balance of every validator whose latest
// attestation target's ancestor at root's slot is root itself: the weight
// LMD-GHOST assigns root in a sibling comparison. The ancestor walks are
// independent per vote, so they fan out across GOMAXPROCS workers; the
// ancestor LRU and the store are both safe for concurrent readers.
func (fc *ForkChoice) voteCount(state *types.BeaconState, root types.Root) uint64 {
	block, ok := fc.store.Get(root)
	if !ok {
		return 0
	}
	type vote struct {
		index  uint64
		target Target
	}
	var votes []vote
	for idx, target := range fc.atts.snapshot() {
		votes = append(votes, vote{index: idx, target: target})
	}
	if len(votes) == 0 {
		return 0
	}

	results, err := async.Scatter(len(votes), func(offset, entries int, _ *sync.RWMutex) (interface{}, error) {
		var sum uint64
		for _, v := range votes[offset : offset+entries] {
			ancestor, ok := fc.BlockAncestor(v.target.Root, block.Slot)
			if !ok || ancestor != root {
				continue
			}
			if v.index >= uint64(len(state.ValidatorRegistry)) {
				continue
			}
			sum += uint64(state.ValidatorRegistry[v.index].EffectiveBalance)
		}
		return sum, nil
	})
	if err != nil {
		return 0
	}
	var total uint64
	for _, r := range results {
		total += r.Extent.(uint64)
	}
	return total
}

// children returns every stored block whose parent is root, scanning
// forward from the slot after root's through the store's current tip.
func (fc *ForkChoice) children(root types.Root) []types.Root {
	block, ok := fc.store.Get(root)
	if !ok {
		return nil
	}
	var out []types.Root
	for slot := block.Slot + 1; slot <= fc.store.GetMaxSlot(); slot++ {
		sb := fc.store.GetSlotBlocks(slot)
		if sb == nil {
			continue
		}
		for _, r := range sb.Roots {
			b, ok := fc.store.Get(r)
			if ok && b.ParentRoot == root {
				out = append(out, r)
			}
		}
	}
	return out
}

// lexLess breaks a tie between two equally-weighted children
// deterministically, so every node computing Head from the same votes
// converges on the same answer.
func lexLess(a, b types.Root) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Head runs LMD-GHOST starting from the store's justified checkpoint,
// descending through whichever child carries the most votes at each step
// until it reaches a block with no known children.
func (fc *ForkChoice) Head(state *types.BeaconState) (types.Root, error) {
	current, _ := fc.store.Justified()
	if current == types.ZeroRoot {
		return types.Root{}, errors.New("forkchoice: no justified root recorded")
	}
	if _, ok := fc.store.Get(current); !ok {
		return types.Root{}, errors.New("forkchoice: justified root not found in store")
	}

	for {
		kids := fc.children(current)
		if len(kids) == 0 {
			return current, nil
		}
		best := kids[0]
		bestVotes := fc.voteCount(state, best)
		for _, k := range kids[1:] {
			v := fc.voteCount(state, k)
			if v > bestVotes || (v == bestVotes && lexLess(k, best)) {
				best = k
				bestVotes = v
			}
		}
		current = best
	}
}

// UpdateHead runs Head and, if it finds one, reorgs the store onto it and
// promotes the justified/finalized checkpoints if the new head has pulled
// far enough ahead of the current justified block: once
// head.Slot - justified.Slot >= SLOTS_PER_EPOCH, the new head becomes the
// justified checkpoint and the prior justified checkpoint becomes
// finalized.
func (fc *ForkChoice) UpdateHead(state *types.BeaconState) (types.Root, error) {
	justifiedRoot, _ := fc.store.Justified()
	justifiedBlock, ok := fc.store.Get(justifiedRoot)
	if !ok {
		return types.Root{}, errors.New("forkchoice: justified root not found in store")
	}

	head, err := fc.Head(state)
	if err != nil {
		return types.Root{}, err
	}
	if err := fc.store.ReorgTo(head); err != nil {
		return types.Root{}, errors.Wrap(err, "forkchoice: could not reorg to new head")
	}

	headBlock, ok := fc.store.Get(head)
	if !ok {
		return types.Root{}, errors.New("forkchoice: new head not found in store")
	}
	cfg := params.BeaconConfig()
	if uint64(headBlock.Slot-justifiedBlock.Slot) >= cfg.SlotsPerEpoch {
		_, justifiedEpoch := fc.store.Justified()
		fc.store.AddFinalizedHash(justifiedRoot, justifiedEpoch)
		fc.store.AddJustifiedHash(head, headBlock.Slot.ToEpoch())
		fc.atts.PurgeAttestations(justifiedBlock.Slot)
	}
	return head, nil
}
