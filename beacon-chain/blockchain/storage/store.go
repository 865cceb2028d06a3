// Package storage holds every block the node has received, keyed by its
// tree-hash root, alongside a per-slot index that tracks which of possibly
// several competing blocks at that slot is currently canonical. Fork choice
// reads this index to discover candidate chains and writes to it through
// ReorgTo once it has picked a new head.
package storage

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// NoCanonical marks a slot whose stored blocks have no canonical pick yet,
// either because fork choice hasn't run since they arrived or because the
// slot was skipped.
const NoCanonical = -1

// SlotBlocks is the secondary index entry for a single slot: every block
// root seen there, and which one (if any) is canonical.
type SlotBlocks struct {
	Roots          []types.Root
	CanonicalIndex int
}

// Store is the node's in-memory block store. Alongside the hash->block
// map it keeps a second map from the same hash to the post-state that
// applying that block produced, so a reader can recover the (block,
// post-state) tuple without recomputing the transition.
type Store struct {
	mu     sync.RWMutex
	blocks map[types.Root]*types.BeaconBlock
	states map[types.Root]*types.BeaconState
	slots  map[types.Slot]*SlotBlocks

	haveBlocks bool
	maxSlot    types.Slot

	justifiedRoot  types.Root
	justifiedEpoch types.Epoch
	finalizedRoot  types.Root
	finalizedEpoch types.Epoch
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		blocks: make(map[types.Root]*types.BeaconBlock),
		states: make(map[types.Root]*types.BeaconState),
		slots:  make(map[types.Slot]*SlotBlocks),
	}
}

// Put inserts block, returning its header root. Put is idempotent: a
// block already present is left untouched and its existing root returned.
// The very first block this Store ever receives has no sibling to
// arbitrate against, so it is marked canonical immediately rather than
// waiting for a fork choice run.
func (s *Store) Put(block *types.BeaconBlock) (types.Root, error) {
	root, err := block.HeaderRoot()
	if err != nil {
		return types.Root{}, errors.Wrap(err, "storage: could not hash block")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocks[root]; ok {
		return root, nil
	}
	s.blocks[root] = block

	sb, ok := s.slots[block.Slot]
	if !ok {
		sb = &SlotBlocks{CanonicalIndex: NoCanonical}
		s.slots[block.Slot] = sb
	}
	sb.Roots = append(sb.Roots, root)

	genesis := !s.haveBlocks
	if genesis || block.Slot > s.maxSlot {
		s.maxSlot = block.Slot
	}
	s.haveBlocks = true
	if genesis {
		sb.CanonicalIndex = len(sb.Roots) - 1
	}
	return root, nil
}

// Get returns the block stored at root, if any.
func (s *Store) Get(root types.Root) (*types.BeaconBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[root]
	return b, ok
}

// PutState records postState as the result of applying the block stored
// at root. A block must already be stored at root; PutState does not
// implicitly create one.
func (s *Store) PutState(root types.Root, postState *types.BeaconState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[root]; !ok {
		return errors.New("storage: cannot attach a post-state to an unknown block")
	}
	s.states[root] = postState
	return nil
}

// GetTuple returns the (block, post-state) pair stored at root, if both
// halves are present.
func (s *Store) GetTuple(root types.Root) (*types.BeaconBlock, *types.BeaconState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[root]
	if !ok {
		return nil, nil, false
	}
	st, ok := s.states[root]
	if !ok {
		return nil, nil, false
	}
	return b, st, true
}

// GetSlotBlocks returns a copy of slot's secondary index entry, or an
// empty entry (no roots, CanonicalIndex NoCanonical) if no block has ever
// been stored at that slot.
func (s *Store) GetSlotBlocks(slot types.Slot) *SlotBlocks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sb, ok := s.slots[slot]
	if !ok {
		return &SlotBlocks{CanonicalIndex: NoCanonical}
	}
	cp := *sb
	cp.Roots = append([]types.Root{}, sb.Roots...)
	return &cp
}

// GetSlotCanonicalBlock returns the block currently marked canonical at
// slot, if one has been chosen.
func (s *Store) GetSlotCanonicalBlock(slot types.Slot) (*types.BeaconBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sb, ok := s.slots[slot]
	if !ok || sb.CanonicalIndex == NoCanonical {
		return nil, false
	}
	return s.blocks[sb.Roots[sb.CanonicalIndex]], true
}

// Remove deletes root from the store. It refuses to remove a block
// currently marked canonical for its slot; the caller must reorg away from
// it first.
func (s *Store) Remove(root types.Root) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, ok := s.blocks[root]
	if !ok {
		return nil
	}
	sb := s.slots[block.Slot]
	if sb != nil && sb.CanonicalIndex != NoCanonical && sb.Roots[sb.CanonicalIndex] == root {
		return errors.New("storage: cannot remove the canonical block of its slot")
	}

	delete(s.blocks, root)
	delete(s.states, root)
	if sb == nil {
		return nil
	}
	for i, r := range sb.Roots {
		if r == root {
			sb.Roots = append(sb.Roots[:i], sb.Roots[i+1:]...)
			if sb.CanonicalIndex > i {
				sb.CanonicalIndex--
			}
			break
		}
	}
	if len(sb.Roots) == 0 {
		delete(s.slots, block.Slot)
	}
	return nil
}

// ReorgTo makes root's chain canonical: walking back through root's
// ancestors, it marks each slot's canonical pick until it reaches an
// ancestor whose slot is already marked canonical for that same root (the
// point where the new chain rejoins the old one) or a block whose parent
// this store never received (genesis).
func (s *Store) ReorgTo(root types.Root) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := root
	for {
		block, ok := s.blocks[current]
		if !ok {
			return errors.New("storage: reorg target not found")
		}
		sb := s.slots[block.Slot]
		if sb == nil {
			return errors.New("storage: slot index missing for stored block")
		}
		idx := -1
		for i, r := range sb.Roots {
			if r == current {
				idx = i
				break
			}
		}
		if idx == -1 {
			return errors.New("storage: block missing from its own slot index")
		}
		if sb.CanonicalIndex == idx {
			return nil
		}
		sb.CanonicalIndex = idx

		if _, ok := s.blocks[block.ParentRoot]; !ok {
			return nil
		}
		current = block.ParentRoot
	}
}

// AddJustifiedHash records root as the latest justified checkpoint fork
// choice should run from.
func (s *Store) AddJustifiedHash(root types.Root, epoch types.Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.justifiedRoot = root
	s.justifiedEpoch = epoch
}

// Justified returns the last checkpoint recorded by AddJustifiedHash.
func (s *Store) Justified() (types.Root, types.Epoch) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.justifiedRoot, s.justifiedEpoch
}

// AddFinalizedHash records root as the latest finalized checkpoint.
func (s *Store) AddFinalizedHash(root types.Root, epoch types.Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizedRoot = root
	s.finalizedEpoch = epoch
}

// Finalized returns the last checkpoint recorded by AddFinalizedHash.
func (s *Store) Finalized() (types.Root, types.Epoch) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalizedRoot, s.finalizedEpoch
}

// GetMaxSlot returns the highest slot any stored block occupies.
func (s *Store) GetMaxSlot() types.Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSlot
}
