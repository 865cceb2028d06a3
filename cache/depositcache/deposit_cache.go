// Package depositcache buffers deposit-contract log entries observed on
// eth1 between the time they're mined and the time a proposer is ready to
// include them, and separately tracks every deposit the chain has ever
// seen so a Merkle proof can be rebuilt for any of them on request. The
// cache keeps "all deposits" and "pending deposits still awaiting
// inclusion" as separate lists.
package depositcache

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// DepositContainer pairs a deposit with the bookkeeping the cache needs:
// the eth1 block height it was observed at and the Merkle index the
// deposit contract assigned it.
type DepositContainer struct {
	Deposit         *types.Deposit
	Index           uint64
	Eth1BlockHeight uint64
	DepositRoot     types.Root
}

// DepositFetcher reads the set of all deposits the cache has observed.
type DepositFetcher interface {
	AllDeposits(upToHeight *uint64) []*types.Deposit
	DepositByPubkey(pubkey []byte) (*types.Deposit, uint64)
}

// PendingDepositsFetcher reads the subset of deposits still awaiting
// inclusion in a block.
type PendingDepositsFetcher interface {
	PendingDeposits(upToHeight *uint64) []*types.Deposit
}

// DepositCache is the node's view of the eth1 deposit contract's log: an
// Index-ordered list of every deposit observed, plus a separate list of
// those not yet included in a block.
type DepositCache struct {
	mu              sync.RWMutex
	deposits        []*DepositContainer
	pendingDeposits []*DepositContainer
	latestEth1Data  *types.Eth1Data
	rootsByEth1Hash map[common.Hash]types.Root
}

// New returns an empty DepositCache.
func New() (*DepositCache, error) {
	return &DepositCache{rootsByEth1Hash: make(map[common.Hash]types.Root)}, nil
}

// SetLatestEth1Data records the most recent Eth1Data this node's eth1
// follower has observed, the value a proposer votes with until a newer
// one lands.
func (dc *DepositCache) SetLatestEth1Data(d types.Eth1Data) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.latestEth1Data = &d
	if dc.rootsByEth1Hash == nil {
		dc.rootsByEth1Hash = make(map[common.Hash]types.Root)
	}
	dc.rootsByEth1Hash[common.Hash(d.BlockHash)] = d.DepositRoot
}

// HasDepositRoot reports whether the eth1 block with the given hash was
// observed carrying the given deposit-contract root. A block hash this
// cache never saw reports false regardless of root.
func (dc *DepositCache) HasDepositRoot(blockHash common.Hash, depositRoot types.Root) bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	root, ok := dc.rootsByEth1Hash[blockHash]
	return ok && root == depositRoot
}

// LatestEth1Data returns the most recently recorded Eth1Data, or false if
// SetLatestEth1Data has never been called.
func (dc *DepositCache) LatestEth1Data() (types.Eth1Data, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	if dc.latestEth1Data == nil {
		return types.Eth1Data{}, false
	}
	return *dc.latestEth1Data, true
}

var _ DepositFetcher = (*DepositCache)(nil)
var _ PendingDepositsFetcher = (*DepositCache)(nil)

// InsertDeposit records a newly observed deposit. deposits must arrive in
// strictly increasing index order, since the cache has no other way to
// notice a gap left by a dropped eth1 log.
func (dc *DepositCache) InsertDeposit(d *types.Deposit, eth1BlockHeight, index uint64, root types.Root) error {
	if d == nil {
		return errors.New("depositcache: nil deposit inserted into the cache")
	}
	dc.mu.Lock()
	defer dc.mu.Unlock()

	want := uint64(len(dc.deposits))
	if index != want {
		return errors.Errorf("depositcache: wanted deposit with index %d to be inserted but received %d", want, index)
	}
	dc.deposits = append(dc.deposits, &DepositContainer{
		Deposit:         d,
		Index:           index,
		Eth1BlockHeight: eth1BlockHeight,
		DepositRoot:     root,
	})
	return nil
}

// InsertDepositContainers bulk-loads containers, used when hydrating the
// cache from a snapshot rather than a live eth1 log stream.
func (dc *DepositCache) InsertDepositContainers(ctrs []*DepositContainer) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.deposits = append(dc.deposits, ctrs...)
	sort.Slice(dc.deposits, func(i, j int) bool { return dc.deposits[i].Index < dc.deposits[j].Index })
}

// AllDeposits returns every deposit observed at or before upToHeight, or
// every deposit ever observed if upToHeight is nil.
func (dc *DepositCache) AllDeposits(upToHeight *uint64) []*types.Deposit {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	var out []*types.Deposit
	for _, c := range dc.deposits {
		if upToHeight == nil || c.Eth1BlockHeight <= *upToHeight {
			out = append(out, c.Deposit)
		}
	}
	return out
}

// DepositsNumberAndRootAtHeight returns how many deposits had landed by
// height and the deposit-contract root recorded alongside the last of
// them, the pair a proposer's eth1 vote reports.
func (dc *DepositCache) DepositsNumberAndRootAtHeight(height uint64) (uint64, types.Root) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	var count uint64
	var root types.Root
	for _, c := range dc.deposits {
		if c.Eth1BlockHeight > height {
			break
		}
		count++
		root = c.DepositRoot
	}
	return count, root
}

// PeekDeposits returns, in index order, up to max deposits observed after
// fromExclusive's deposit count and at or before toInclusive's. The two
// Eth1Data votes delimit the window a proposer is allowed to include
// deposits from: everything the chain has already consumed (fromExclusive,
// the state's latest vote) up to what the network has agreed exists
// (toInclusive, the vote the proposer is about to cast).
func (dc *DepositCache) PeekDeposits(max uint64, fromExclusive, toInclusive types.Eth1Data) []*types.Deposit {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	var out []*types.Deposit
	for _, c := range dc.deposits {
		if c.Index < fromExclusive.DepositCount || c.Index >= toInclusive.DepositCount {
			continue
		}
		out = append(out, c.Deposit)
		if uint64(len(out)) == max {
			break
		}
	}
	return out
}

// DepositByPubkey returns the first deposit made to pubkey and the eth1
// block height it was observed at.
func (dc *DepositCache) DepositByPubkey(pubkey []byte) (*types.Deposit, uint64) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	for _, c := range dc.deposits {
		if pubkeyMatches(c.Deposit.Data.Pubkey[:], pubkey) {
			return c.Deposit, c.Eth1BlockHeight
		}
	}
	return nil, 0
}

func pubkeyMatches(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PruneProofs drops the Merkle proof of every deposit at or below
// merkleTreeIndex: once a deposit is finalized, its proof will never be
// needed again and holding onto DEPOSIT_CONTRACT_TREE_DEPTH+1 hashes per
// deposit indefinitely would grow the cache without bound.
func (dc *DepositCache) PruneProofs(merkleTreeIndex uint64) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for _, c := range dc.deposits {
		if c.Index > merkleTreeIndex {
			continue
		}
		c.Deposit.Proof = nil
	}
	return nil
}

// InsertPendingDeposit adds a deposit to the pending pool, the set a
// proposer draws MAX_DEPOSITS worth of entries from when building a block
// body.
func (dc *DepositCache) InsertPendingDeposit(d *types.Deposit, eth1BlockHeight, index uint64, root types.Root) {
	if d == nil {
		return
	}
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.pendingDeposits = append(dc.pendingDeposits, &DepositContainer{
		Deposit:         d,
		Index:           index,
		Eth1BlockHeight: eth1BlockHeight,
		DepositRoot:     root,
	})
}

// RemovePendingDeposit removes d from the pending pool, called once a
// block including it has been processed.
func (dc *DepositCache) RemovePendingDeposit(d *types.Deposit) {
	if d == nil {
		return
	}
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for i, c := range dc.pendingDeposits {
		if c.Deposit == d {
			dc.pendingDeposits = append(dc.pendingDeposits[:i], dc.pendingDeposits[i+1:]...)
			return
		}
	}
}

// PendingDeposits returns every pending deposit observed at or before
// upToHeight, or all of them if upToHeight is nil.
func (dc *DepositCache) PendingDeposits(upToHeight *uint64) []*types.Deposit {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	var out []*types.Deposit
	for _, c := range dc.pendingDeposits {
		if upToHeight == nil || c.Eth1BlockHeight <= *upToHeight {
			out = append(out, c.Deposit)
		}
	}
	return out
}

// PrunePendingDeposits discards pending deposits with an index below
// merkleTreeIndex, called once state.deposit_index has advanced past them
// so they can never be included again.
func (dc *DepositCache) PrunePendingDeposits(merkleTreeIndex uint64) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	var kept []*DepositContainer
	for _, c := range dc.pendingDeposits {
		if c.Index >= merkleTreeIndex {
			kept = append(kept, c)
		}
	}
	dc.pendingDeposits = kept
}
