package types

import (
	"github.com/prysmaticlabs/go-bitfield"

	ssz "github.com/ferranbt/fastssz"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
)

// Attestation is an aggregated vote by a committee for a given slot and
// shard, signed by every validator whose bit is set in AggregationBitfield.
type Attestation struct {
	AggregationBitfield bitfield.Bitlist
	Data                AttestationData
	CustodyBitfield     bitfield.Bitlist
	AggregateSignature  BLSSignature
}

// SizeSSZ returns the current encoded size of a.
func (a *Attestation) SizeSSZ() int {
	return 4 + len(a.AggregationBitfield) + a.Data.SizeSSZ() + 4 + len(a.CustodyBitfield) + 96
}

// MarshalSSZTo appends the canonical encoding of a to dst, fastssz's
// fixed-part-then-offsets layout for a container with two variable-size
// bitlist fields straddling a fixed AttestationData.
func (a *Attestation) MarshalSSZTo(dst []byte) ([]byte, error) {
	offset := 4 + a.Data.SizeSSZ() + 96 + 4
	dst = ssz.WriteOffset(dst, offset)
	var err error
	dst, err = a.Data.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}
	dst = append(dst, a.AggregateSignature[:]...)
	dst = ssz.WriteOffset(dst, offset+len(a.AggregationBitfield))
	dst = append(dst, a.AggregationBitfield...)
	dst = append(dst, a.CustodyBitfield...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of a.
func (a *Attestation) MarshalSSZ() ([]byte, error) { return a.MarshalSSZTo(make([]byte, 0, a.SizeSSZ())) }

// UnmarshalSSZ decodes buf into a.
func (a *Attestation) UnmarshalSSZ(buf []byte) error {
	if len(buf) < 8 {
		return ssz.ErrSize
	}
	o1 := int(ssz.UnmarshallUint32(buf[0:4]))
	dataSize := a.Data.SizeSSZ()
	if len(buf) < 4+dataSize+96+4 {
		return ssz.ErrSize
	}
	if err := a.Data.UnmarshalSSZ(buf[4 : 4+dataSize]); err != nil {
		return err
	}
	copy(a.AggregateSignature[:], buf[4+dataSize:4+dataSize+96])
	o2 := int(ssz.UnmarshallUint32(buf[4+dataSize+96 : 4+dataSize+96+4]))
	if o1 > o2 || o2 > len(buf) {
		return ssz.ErrOffset
	}
	a.AggregationBitfield = append(bitfield.Bitlist{}, buf[o1:o2]...)
	a.CustodyBitfield = append(bitfield.Bitlist{}, buf[o2:]...)
	return nil
}

// HashTreeRoot returns the tree-hash digest of a.
func (a *Attestation) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(a) }

// HashTreeRootWith merkleizes a's fields, in declaration order, into hh.
func (a *Attestation) HashTreeRootWith(hh *ssz.Hasher) error {
	maxBits := params.BeaconConfig().MaxValidatorsPerCommittee
	indx := hh.Index()
	hh.PutBitlist(a.AggregationBitfield, maxBits)
	if err := a.Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBitlist(a.CustodyBitfield, maxBits)
	hh.PutBytes(a.AggregateSignature[:])
	hh.Merkleize(indx)
	return nil
}

// PendingAttestationRecord is an Attestation as recorded by the state
// machine once included in a block, tagged with its inclusion slot so
// rewards can be weighted by inclusion delay.
type PendingAttestationRecord struct {
	Data                AttestationData
	AggregationBitfield bitfield.Bitlist
	CustodyBitfield     bitfield.Bitlist
	InclusionSlot       Slot
}

// SizeSSZ returns the current encoded size of p.
func (p *PendingAttestationRecord) SizeSSZ() int {
	return 4 + p.Data.SizeSSZ() + 4 + len(p.AggregationBitfield) + len(p.CustodyBitfield) + 8
}

// MarshalSSZTo appends the canonical encoding of p to dst.
func (p *PendingAttestationRecord) MarshalSSZTo(dst []byte) ([]byte, error) {
	offset := 4 + p.Data.SizeSSZ() + 4 + 8
	dst = ssz.WriteOffset(dst, offset)
	var err error
	dst, err = p.Data.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}
	dst = ssz.WriteOffset(dst, offset+len(p.AggregationBitfield))
	dst = ssz.MarshalUint64(dst, uint64(p.InclusionSlot))
	dst = append(dst, p.AggregationBitfield...)
	dst = append(dst, p.CustodyBitfield...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of p.
func (p *PendingAttestationRecord) MarshalSSZ() ([]byte, error) {
	return p.MarshalSSZTo(make([]byte, 0, p.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into p.
func (p *PendingAttestationRecord) UnmarshalSSZ(buf []byte) error {
	if len(buf) < 8 {
		return ssz.ErrSize
	}
	o1 := int(ssz.UnmarshallUint32(buf[0:4]))
	dataSize := p.Data.SizeSSZ()
	if len(buf) < 4+dataSize+4+8 {
		return ssz.ErrSize
	}
	if err := p.Data.UnmarshalSSZ(buf[4 : 4+dataSize]); err != nil {
		return err
	}
	o2 := int(ssz.UnmarshallUint32(buf[4+dataSize : 4+dataSize+4]))
	p.InclusionSlot = Slot(ssz.UnmarshallUint64(buf[4+dataSize+4 : 4+dataSize+4+8]))
	if o1 > o2 || o2 > len(buf) {
		return ssz.ErrOffset
	}
	p.AggregationBitfield = append(bitfield.Bitlist{}, buf[o1:o2]...)
	p.CustodyBitfield = append(bitfield.Bitlist{}, buf[o2:]...)
	return nil
}

// HashTreeRoot returns the tree-hash digest of p.
func (p *PendingAttestationRecord) HashTreeRoot() ([32]byte, error) {
	return hashTreeRoot(p)
}

// HashTreeRootWith merkleizes p's fields, in declaration order, into hh.
func (p *PendingAttestationRecord) HashTreeRootWith(hh *ssz.Hasher) error {
	maxBits := params.BeaconConfig().MaxValidatorsPerCommittee
	indx := hh.Index()
	if err := p.Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBitlist(p.AggregationBitfield, maxBits)
	hh.PutBitlist(p.CustodyBitfield, maxBits)
	hh.PutUint64(uint64(p.InclusionSlot))
	hh.Merkleize(indx)
	return nil
}
