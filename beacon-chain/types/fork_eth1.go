package types

import (
	ssz "github.com/ferranbt/fastssz"
)

// Fork records the fork version/epoch tuple used in domain derivation.
type Fork struct {
	PreviousVersion [4]byte
	CurrentVersion  [4]byte
	Epoch           Epoch
}

// SizeSSZ returns the fixed encoded size of Fork.
func (f *Fork) SizeSSZ() int { return 4 + 4 + 8 }

// MarshalSSZTo appends the canonical encoding of f to dst.
func (f *Fork) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = append(dst, f.PreviousVersion[:]...)
	dst = append(dst, f.CurrentVersion[:]...)
	dst = ssz.MarshalUint64(dst, uint64(f.Epoch))
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of f.
func (f *Fork) MarshalSSZ() ([]byte, error) { return f.MarshalSSZTo(make([]byte, 0, f.SizeSSZ())) }

// UnmarshalSSZ decodes buf into f.
func (f *Fork) UnmarshalSSZ(buf []byte) error {
	if len(buf) != f.SizeSSZ() {
		return ssz.ErrSize
	}
	copy(f.PreviousVersion[:], buf[0:4])
	copy(f.CurrentVersion[:], buf[4:8])
	f.Epoch = Epoch(ssz.UnmarshallUint64(buf[8:16]))
	return nil
}

// HashTreeRoot returns the tree-hash digest of f.
func (f *Fork) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(f) }

// HashTreeRootWith merkleizes f's fields, in declaration order, into hh.
func (f *Fork) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(f.PreviousVersion[:])
	hh.PutBytes(f.CurrentVersion[:])
	hh.PutUint64(uint64(f.Epoch))
	hh.Merkleize(indx)
	return nil
}

// Eth1Data is a proposer's vote on a recent deposit-contract block hash
// and deposit root.
type Eth1Data struct {
	DepositRoot  Root
	DepositCount uint64
	BlockHash    Root
}

// SizeSSZ returns the fixed encoded size of Eth1Data.
func (e *Eth1Data) SizeSSZ() int { return 32 + 8 + 32 }

// MarshalSSZTo appends the canonical encoding of e to dst.
func (e *Eth1Data) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = append(dst, e.DepositRoot[:]...)
	dst = ssz.MarshalUint64(dst, e.DepositCount)
	dst = append(dst, e.BlockHash[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of e.
func (e *Eth1Data) MarshalSSZ() ([]byte, error) { return e.MarshalSSZTo(make([]byte, 0, e.SizeSSZ())) }

// UnmarshalSSZ decodes buf into e.
func (e *Eth1Data) UnmarshalSSZ(buf []byte) error {
	if len(buf) != e.SizeSSZ() {
		return ssz.ErrSize
	}
	copy(e.DepositRoot[:], buf[0:32])
	e.DepositCount = ssz.UnmarshallUint64(buf[32:40])
	copy(e.BlockHash[:], buf[40:72])
	return nil
}

// HashTreeRoot returns the tree-hash digest of e.
func (e *Eth1Data) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(e) }

// HashTreeRootWith merkleizes e's fields into hh.
func (e *Eth1Data) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(e.DepositRoot[:])
	hh.PutUint64(e.DepositCount)
	hh.PutBytes(e.BlockHash[:])
	hh.Merkleize(indx)
	return nil
}

// Crosslink summarizes a shard's state at an epoch boundary. In phase 0,
// CrosslinkDataRoot is always the zero hash.
type Crosslink struct {
	Epoch             Epoch
	CrosslinkDataRoot Root
}

// SizeSSZ returns the fixed encoded size of Crosslink.
func (c *Crosslink) SizeSSZ() int { return 8 + 32 }

// MarshalSSZTo appends the canonical encoding of c to dst.
func (c *Crosslink) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = ssz.MarshalUint64(dst, uint64(c.Epoch))
	dst = append(dst, c.CrosslinkDataRoot[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of c.
func (c *Crosslink) MarshalSSZ() ([]byte, error) { return c.MarshalSSZTo(make([]byte, 0, c.SizeSSZ())) }

// UnmarshalSSZ decodes buf into c.
func (c *Crosslink) UnmarshalSSZ(buf []byte) error {
	if len(buf) != c.SizeSSZ() {
		return ssz.ErrSize
	}
	c.Epoch = Epoch(ssz.UnmarshallUint64(buf[0:8]))
	copy(c.CrosslinkDataRoot[:], buf[8:40])
	return nil
}

// HashTreeRoot returns the tree-hash digest of c.
func (c *Crosslink) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(c) }

// HashTreeRootWith merkleizes c's fields into hh.
func (c *Crosslink) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(c.Epoch))
	hh.PutBytes(c.CrosslinkDataRoot[:])
	hh.Merkleize(indx)
	return nil
}
