package types

import (
	ssz "github.com/ferranbt/fastssz"
)

// VoluntaryExit is a validator's signed request to begin exiting, once
// PERSISTENT_COMMITTEE_PERIOD has elapsed since activation.
type VoluntaryExit struct {
	Epoch          Epoch
	ValidatorIndex uint64
	Signature      BLSSignature
}

// SizeSSZ returns the fixed encoded size of VoluntaryExit.
func (e *VoluntaryExit) SizeSSZ() int { return 8 + 8 + 96 }

// MarshalSSZTo appends the canonical encoding of e to dst.
func (e *VoluntaryExit) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = ssz.MarshalUint64(dst, uint64(e.Epoch))
	dst = ssz.MarshalUint64(dst, e.ValidatorIndex)
	dst = append(dst, e.Signature[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of e.
func (e *VoluntaryExit) MarshalSSZ() ([]byte, error) { return e.MarshalSSZTo(make([]byte, 0, e.SizeSSZ())) }

// UnmarshalSSZ decodes buf into e.
func (e *VoluntaryExit) UnmarshalSSZ(buf []byte) error {
	if len(buf) != e.SizeSSZ() {
		return ssz.ErrSize
	}
	e.Epoch = Epoch(ssz.UnmarshallUint64(buf[0:8]))
	e.ValidatorIndex = ssz.UnmarshallUint64(buf[8:16])
	copy(e.Signature[:], buf[16:112])
	return nil
}

// HashTreeRoot returns the tree-hash digest of e.
func (e *VoluntaryExit) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(e) }

// HashTreeRootWith merkleizes e's fields into hh.
func (e *VoluntaryExit) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(e.Epoch))
	hh.PutUint64(e.ValidatorIndex)
	hh.PutBytes(e.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// SigningRoot returns tree_hash_truncate(exit, "signature").
func (e *VoluntaryExit) SigningRoot() ([32]byte, error) {
	hh := ssz.DefaultHasherPool.Get()
	defer ssz.DefaultHasherPool.Put(hh)
	indx := hh.Index()
	hh.PutUint64(uint64(e.Epoch))
	hh.PutUint64(e.ValidatorIndex)
	hh.Merkleize(indx)
	return hh.HashRoot()
}

// Transfer moves a balance between two withdrawn-or-below-threshold
// validator accounts directly, bypassing the deposit contract.
type Transfer struct {
	Sender    uint64
	Recipient uint64
	Amount    Gwei
	Fee       Gwei
	Slot      Slot
	Pubkey    BLSPubkey
	Signature BLSSignature
}

// SizeSSZ returns the fixed encoded size of Transfer.
func (t *Transfer) SizeSSZ() int { return 8 + 8 + 8 + 8 + 8 + 48 + 96 }

// MarshalSSZTo appends the canonical encoding of t to dst.
func (t *Transfer) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = ssz.MarshalUint64(dst, t.Sender)
	dst = ssz.MarshalUint64(dst, t.Recipient)
	dst = ssz.MarshalUint64(dst, uint64(t.Amount))
	dst = ssz.MarshalUint64(dst, uint64(t.Fee))
	dst = ssz.MarshalUint64(dst, uint64(t.Slot))
	dst = append(dst, t.Pubkey[:]...)
	dst = append(dst, t.Signature[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of t.
func (t *Transfer) MarshalSSZ() ([]byte, error) { return t.MarshalSSZTo(make([]byte, 0, t.SizeSSZ())) }

// UnmarshalSSZ decodes buf into t.
func (t *Transfer) UnmarshalSSZ(buf []byte) error {
	if len(buf) != t.SizeSSZ() {
		return ssz.ErrSize
	}
	var o int
	t.Sender = ssz.UnmarshallUint64(buf[o : o+8])
	o += 8
	t.Recipient = ssz.UnmarshallUint64(buf[o : o+8])
	o += 8
	t.Amount = Gwei(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	t.Fee = Gwei(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	t.Slot = Slot(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	copy(t.Pubkey[:], buf[o:o+48])
	o += 48
	copy(t.Signature[:], buf[o:o+96])
	return nil
}

// HashTreeRoot returns the tree-hash digest of t.
func (t *Transfer) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(t) }

// HashTreeRootWith merkleizes t's fields into hh.
func (t *Transfer) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(t.Sender)
	hh.PutUint64(t.Recipient)
	hh.PutUint64(uint64(t.Amount))
	hh.PutUint64(uint64(t.Fee))
	hh.PutUint64(uint64(t.Slot))
	hh.PutBytes(t.Pubkey[:])
	hh.PutBytes(t.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// SigningRoot returns tree_hash_truncate(transfer, "signature").
func (t *Transfer) SigningRoot() ([32]byte, error) {
	hh := ssz.DefaultHasherPool.Get()
	defer ssz.DefaultHasherPool.Put(hh)
	indx := hh.Index()
	hh.PutUint64(t.Sender)
	hh.PutUint64(t.Recipient)
	hh.PutUint64(uint64(t.Amount))
	hh.PutUint64(uint64(t.Fee))
	hh.PutUint64(uint64(t.Slot))
	hh.PutBytes(t.Pubkey[:])
	hh.Merkleize(indx)
	return hh.HashRoot()
}
