// Package types defines the canonically-encodable records of the beacon
// chain: the beacon state, block, and their embedded operations. Every
// exported type carries hand-written MarshalSSZ/UnmarshalSSZ and
// HashTreeRoot methods rather than a reflection-based codec. The
// merkleization primitives backing HashTreeRoot are ferranbt/fastssz's
// Hasher.
package types

import (
	ssz "github.com/ferranbt/fastssz"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
)

// hashTreeRoot runs v's HashTreeRootWith against a pooled hasher. Every
// HashTreeRoot method in this package funnels through it, so the hasher
// pool is the only allocation on the hashing path.
func hashTreeRoot(v interface {
	HashTreeRootWith(hh *ssz.Hasher) error
}) ([32]byte, error) {
	hh := ssz.DefaultHasherPool.Get()
	defer ssz.DefaultHasherPool.Put(hh)
	if err := v.HashTreeRootWith(hh); err != nil {
		return [32]byte{}, err
	}
	return hh.HashRoot()
}

// Slot numbers a single atomic unit of consensus time, counted from
// GENESIS_SLOT.
type Slot uint64

// Epoch numbers SLOTS_PER_EPOCH consecutive slots.
type Epoch uint64

// Gwei is a balance or amount denominated in Gwei.
type Gwei uint64

// Root is a 32-byte tree-hash digest or block/state root.
type Root [32]byte

// BLSPubkey is a compressed BLS12-381 public key.
type BLSPubkey [48]byte

// BLSSignature is a compressed BLS12-381 signature.
type BLSSignature [96]byte

// ZeroRoot is the all-zero 32-byte digest used as a phase-0 stub value
// (crosslink_data_root, custody roots, genesis parent root).
var ZeroRoot = Root{}

// ToEpoch is shorthand for slot_to_epoch(s) = s / SLOTS_PER_EPOCH.
func (s Slot) ToEpoch() Epoch {
	return Epoch(uint64(s) / params.BeaconConfig().SlotsPerEpoch)
}

// StartSlot is shorthand for get_epoch_start_slot(e) = e * SLOTS_PER_EPOCH.
func (e Epoch) StartSlot() Slot {
	return Slot(uint64(e) * params.BeaconConfig().SlotsPerEpoch)
}
