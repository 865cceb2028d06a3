package depositcache

import (
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// DepositTrie is an append-only sparse Merkle tree over deposit-data
// leaves, the same structure the eth1 deposit contract maintains and the
// structure a proposer must reproduce locally to prove a pending deposit
// against state.latest_eth1_data.deposit_root. It keeps one filled-subtree
// hash per level, in the contract's own incremental-tree style, for the
// root, and also records every leaf so MerkleProof can rebuild any branch.
type DepositTrie struct {
	depth          uint64
	zeroHashes     [][32]byte
	leaves         [][32]byte
	filledSubtrees [][32]byte
}

// NewDepositTrie returns an empty trie of the given depth, precomputing
// the zero-subtree hash at each level so an as-yet-unfilled branch can be
// combined with a real sibling without special-casing it.
func NewDepositTrie(depth uint64) *DepositTrie {
	zero := [32]byte{}
	zeroHashes := make([][32]byte, depth+1)
	zeroHashes[0] = zero
	for i := uint64(1); i <= depth; i++ {
		zeroHashes[i] = hashPair(zeroHashes[i-1], zeroHashes[i-1])
	}
	filled := make([][32]byte, depth)
	copy(filled, zeroHashes[:depth])
	return &DepositTrie{depth: depth, zeroHashes: zeroHashes, filledSubtrees: filled}
}

func hashPair(a, b [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return sha256.Sum256(buf[:])
}

// Insert appends leaf as the next deposit, updating the filled-subtree
// cache HashTreeRoot reads; MerkleProof works from the recorded leaves.
func (t *DepositTrie) Insert(leaf [32]byte) error {
	if uint64(len(t.leaves)) >= uint64(1)<<t.depth {
		return errors.New("depositcache: deposit trie is full")
	}
	index := uint64(len(t.leaves))
	t.leaves = append(t.leaves, leaf)

	node := leaf
	for level := uint64(0); level < t.depth; level++ {
		if index&1 == 0 {
			t.filledSubtrees[level] = node
			node = hashPair(node, t.zeroHashes[level])
		} else {
			node = hashPair(t.filledSubtrees[level], node)
		}
		index >>= 1
	}
	return nil
}

// HashTreeRoot returns the trie's current root.
func (t *DepositTrie) HashTreeRoot() [32]byte {
	node := t.zeroHashes[0]
	size := uint64(len(t.leaves))
	for level := uint64(0); level < t.depth; level++ {
		if size&1 == 1 {
			node = hashPair(t.filledSubtrees[level], node)
		} else {
			node = hashPair(node, t.zeroHashes[level])
		}
		size >>= 1
	}
	return node
}

// MerkleProof returns the sibling hash at each level of the path from
// index's leaf up to the root, the branch helpers.VerifyMerkleBranch
// expects.
func (t *DepositTrie) MerkleProof(index int) ([][]byte, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, errors.New("depositcache: index out of range for deposit trie")
	}
	proof := make([][]byte, t.depth)
	// Rebuild each level's full node list from the leaves recorded so far
	// so index's sibling at every level is available even when that
	// sibling sits in a not-yet-filled position.
	level := append([][32]byte{}, t.leaves...)
	idx := index
	for d := uint64(0); d < t.depth; d++ {
		var sibling [32]byte
		siblingIdx := idx ^ 1
		if siblingIdx < len(level) {
			sibling = level[siblingIdx]
		} else {
			sibling = t.zeroHashes[d]
		}
		branch := make([]byte, 32)
		copy(branch, sibling[:])
		proof[d] = branch

		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			var right [32]byte
			if i+1 < len(level) {
				right = level[i+1]
			} else {
				right = t.zeroHashes[d]
			}
			next = append(next, hashPair(level[i], right))
		}
		level = next
		idx /= 2
	}
	return proof, nil
}

// BuildDepositProof constructs a Deposit whose Proof branch verifies
// against trie's current root, using index's leaf as the deposit data.
// The final proof slot (mixing in the deposit count, per the contract's
// convention) is left zeroed: helpers.VerifyMerkleBranch only consumes
// DEPOSIT_CONTRACT_TREE_DEPTH branch entries and never reads it.
func BuildDepositProof(trie *DepositTrie, data types.DepositData, index uint64) (*types.Deposit, error) {
	branch, err := trie.MerkleProof(int(index))
	if err != nil {
		return nil, err
	}
	proof := make([][]byte, len(branch)+1)
	copy(proof, branch)
	proof[len(branch)] = make([]byte, 32)
	return &types.Deposit{Proof: proof, Index: index, Data: data}, nil
}
