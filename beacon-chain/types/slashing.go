package types

import (
	ssz "github.com/ferranbt/fastssz"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
)

// ProposalSignedData is the minimal {slot, shard, block_root} tuple two
// conflicting block proposals are compared on for a ProposerSlashing. A
// fixed-size record reduces proposer-slashing detection to a single-root
// comparison.
type ProposalSignedData struct {
	Slot      Slot
	Shard     uint64
	BlockRoot Root
}

// SizeSSZ returns the fixed encoded size of ProposalSignedData.
func (p *ProposalSignedData) SizeSSZ() int { return 8 + 8 + 32 }

// MarshalSSZTo appends the canonical encoding of p to dst.
func (p *ProposalSignedData) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = ssz.MarshalUint64(dst, uint64(p.Slot))
	dst = ssz.MarshalUint64(dst, p.Shard)
	dst = append(dst, p.BlockRoot[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of p.
func (p *ProposalSignedData) MarshalSSZ() ([]byte, error) {
	return p.MarshalSSZTo(make([]byte, 0, p.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into p.
func (p *ProposalSignedData) UnmarshalSSZ(buf []byte) error {
	if len(buf) != p.SizeSSZ() {
		return ssz.ErrSize
	}
	p.Slot = Slot(ssz.UnmarshallUint64(buf[0:8]))
	p.Shard = ssz.UnmarshallUint64(buf[8:16])
	copy(p.BlockRoot[:], buf[16:48])
	return nil
}

// HashTreeRoot returns the tree-hash digest of p.
func (p *ProposalSignedData) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(p) }

// HashTreeRootWith merkleizes p's fields into hh.
func (p *ProposalSignedData) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(p.Slot))
	hh.PutUint64(p.Shard)
	hh.PutBytes(p.BlockRoot[:])
	hh.Merkleize(indx)
	return nil
}

// ProposerSlashing proves a single proposer signed two distinct proposals
// for the same slot.
type ProposerSlashing struct {
	ProposerIndex uint64
	ProposalData1 ProposalSignedData
	Signature1    BLSSignature
	ProposalData2 ProposalSignedData
	Signature2    BLSSignature
}

// SizeSSZ returns the fixed encoded size of ProposerSlashing.
func (p *ProposerSlashing) SizeSSZ() int {
	return 8 + p.ProposalData1.SizeSSZ() + 96 + p.ProposalData2.SizeSSZ() + 96
}

// MarshalSSZTo appends the canonical encoding of p to dst.
func (p *ProposerSlashing) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = ssz.MarshalUint64(dst, p.ProposerIndex)
	dst, err := p.ProposalData1.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}
	dst = append(dst, p.Signature1[:]...)
	dst, err = p.ProposalData2.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}
	dst = append(dst, p.Signature2[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of p.
func (p *ProposerSlashing) MarshalSSZ() ([]byte, error) {
	return p.MarshalSSZTo(make([]byte, 0, p.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into p.
func (p *ProposerSlashing) UnmarshalSSZ(buf []byte) error {
	if len(buf) != p.SizeSSZ() {
		return ssz.ErrSize
	}
	o := 0
	p.ProposerIndex = ssz.UnmarshallUint64(buf[o : o+8])
	o += 8
	pd1size := p.ProposalData1.SizeSSZ()
	if err := p.ProposalData1.UnmarshalSSZ(buf[o : o+pd1size]); err != nil {
		return err
	}
	o += pd1size
	copy(p.Signature1[:], buf[o:o+96])
	o += 96
	pd2size := p.ProposalData2.SizeSSZ()
	if err := p.ProposalData2.UnmarshalSSZ(buf[o : o+pd2size]); err != nil {
		return err
	}
	o += pd2size
	copy(p.Signature2[:], buf[o:o+96])
	return nil
}

// HashTreeRoot returns the tree-hash digest of p.
func (p *ProposerSlashing) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(p) }

// HashTreeRootWith merkleizes p's fields into hh.
func (p *ProposerSlashing) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(p.ProposerIndex)
	if err := p.ProposalData1.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(p.Signature1[:])
	if err := p.ProposalData2.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(p.Signature2[:])
	hh.Merkleize(indx)
	return nil
}

// SlashableAttestation is the variable-size attestation record compared
// pairwise inside an AttesterSlashing to prove a double or surround vote.
type SlashableAttestation struct {
	ValidatorIndices   []uint64
	Data               AttestationData
	CustodyBitfield    []byte
	AggregateSignature BLSSignature
}

// SizeSSZ returns the current encoded size of s (variable: depends on the
// length of ValidatorIndices and CustodyBitfield).
func (s *SlashableAttestation) SizeSSZ() int {
	return 4 + len(s.ValidatorIndices)*8 + s.Data.SizeSSZ() + 4 + len(s.CustodyBitfield) + 96
}

// MarshalSSZTo appends the canonical encoding of s to dst, using fastssz's
// fixed-part-then-offsets layout: two 4-byte offsets for the two variable
// fields, the fixed AttestationData and signature inline, then the
// variable payloads appended in field order.
func (s *SlashableAttestation) MarshalSSZTo(dst []byte) ([]byte, error) {
	offset := 4 + 4 + s.Data.SizeSSZ() + 96
	dst = ssz.WriteOffset(dst, offset)
	var err error
	dst, err = s.Data.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}
	dst = append(dst, s.AggregateSignature[:]...)
	offset2 := offset + len(s.ValidatorIndices)*8
	dst = ssz.WriteOffset(dst, offset2)

	for _, idx := range s.ValidatorIndices {
		dst = ssz.MarshalUint64(dst, idx)
	}
	dst = append(dst, s.CustodyBitfield...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of s.
func (s *SlashableAttestation) MarshalSSZ() ([]byte, error) {
	return s.MarshalSSZTo(make([]byte, 0, s.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into s.
func (s *SlashableAttestation) UnmarshalSSZ(buf []byte) error {
	if len(buf) < 8 {
		return ssz.ErrSize
	}
	o1 := int(ssz.UnmarshallUint32(buf[0:4]))
	dataSize := s.Data.SizeSSZ()
	if len(buf) < 4+dataSize+96+4 {
		return ssz.ErrSize
	}
	if err := s.Data.UnmarshalSSZ(buf[4 : 4+dataSize]); err != nil {
		return err
	}
	copy(s.AggregateSignature[:], buf[4+dataSize:4+dataSize+96])
	o2 := int(ssz.UnmarshallUint32(buf[4+dataSize+96 : 4+dataSize+96+4]))
	if o1 > o2 || o2 > len(buf) {
		return ssz.ErrOffset
	}
	indicesBytes := buf[o1:o2]
	if len(indicesBytes)%8 != 0 {
		return ssz.ErrBytesLength
	}
	count := len(indicesBytes) / 8
	s.ValidatorIndices = make([]uint64, count)
	for i := 0; i < count; i++ {
		s.ValidatorIndices[i] = ssz.UnmarshallUint64(indicesBytes[i*8 : i*8+8])
	}
	s.CustodyBitfield = append([]byte{}, buf[o2:]...)
	return nil
}

// HashTreeRoot returns the tree-hash digest of s.
func (s *SlashableAttestation) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(s) }

// HashTreeRootWith merkleizes s's fields into hh. ValidatorIndices is
// merkleized as a list bounded by MAX_VALIDATORS_PER_COMMITTEE;
// CustodyBitfield as a list of bytes bounded by the same limit in bits.
func (s *SlashableAttestation) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	{
		subIndx := hh.Index()
		for _, idx := range s.ValidatorIndices {
			hh.PutUint64(idx)
		}
		limit := (params.BeaconConfig().MaxValidatorsPerCommittee*8 + 31) / 32
		hh.MerkleizeWithMixin(subIndx, uint64(len(s.ValidatorIndices)), limit)
	}
	if err := s.Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		subIndx := hh.Index()
		hh.PutBytes(s.CustodyBitfield)
		limit := (params.BeaconConfig().MaxValidatorsPerCommittee + 255) / 256
		hh.MerkleizeWithMixin(subIndx, uint64(len(s.CustodyBitfield)), limit)
	}
	hh.PutBytes(s.AggregateSignature[:])
	hh.Merkleize(indx)
	return nil
}

// AttesterSlashing proves two SlashableAttestation records from the same
// attester(s) are mutually slashable (double vote or surround vote).
type AttesterSlashing struct {
	SlashableAttestation1 SlashableAttestation
	SlashableAttestation2 SlashableAttestation
}

// SizeSSZ returns the current encoded size of a.
func (a *AttesterSlashing) SizeSSZ() int {
	return 4 + a.SlashableAttestation1.SizeSSZ() + 4 + a.SlashableAttestation2.SizeSSZ()
}

// MarshalSSZTo appends the canonical encoding of a to dst.
func (a *AttesterSlashing) MarshalSSZTo(dst []byte) ([]byte, error) {
	fixedLen := 4 + 4
	s1, err := a.SlashableAttestation1.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	s2, err := a.SlashableAttestation2.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	dst = ssz.WriteOffset(dst, fixedLen)
	dst = ssz.WriteOffset(dst, fixedLen+len(s1))
	dst = append(dst, s1...)
	dst = append(dst, s2...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of a.
func (a *AttesterSlashing) MarshalSSZ() ([]byte, error) {
	return a.MarshalSSZTo(make([]byte, 0, a.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into a.
func (a *AttesterSlashing) UnmarshalSSZ(buf []byte) error {
	if len(buf) < 8 {
		return ssz.ErrSize
	}
	o1 := int(ssz.UnmarshallUint32(buf[0:4]))
	o2 := int(ssz.UnmarshallUint32(buf[4:8]))
	if o1 > o2 || o2 > len(buf) {
		return ssz.ErrOffset
	}
	if err := a.SlashableAttestation1.UnmarshalSSZ(buf[o1:o2]); err != nil {
		return err
	}
	return a.SlashableAttestation2.UnmarshalSSZ(buf[o2:])
}

// HashTreeRoot returns the tree-hash digest of a.
func (a *AttesterSlashing) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(a) }

// HashTreeRootWith merkleizes a's two SlashableAttestation fields into hh.
func (a *AttesterSlashing) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := a.SlashableAttestation1.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := a.SlashableAttestation2.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.Merkleize(indx)
	return nil
}
