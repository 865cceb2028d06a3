package types

import (
	ssz "github.com/ferranbt/fastssz"
)

// Validator is a single entry in the validator registry.
type Validator struct {
	Pubkey                     BLSPubkey
	WithdrawalCredentials      Root
	ActivationEligibilityEpoch Epoch
	ActivationEpoch            Epoch
	ExitEpoch                  Epoch
	WithdrawableEpoch          Epoch
	Slashed                    bool
	EffectiveBalance           Gwei
}

// SizeSSZ returns the fixed encoded size of Validator.
func (v *Validator) SizeSSZ() int { return 48 + 32 + 8 + 8 + 8 + 8 + 1 + 8 }

// MarshalSSZTo appends the canonical encoding of v to dst.
func (v *Validator) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = append(dst, v.Pubkey[:]...)
	dst = append(dst, v.WithdrawalCredentials[:]...)
	dst = ssz.MarshalUint64(dst, uint64(v.ActivationEligibilityEpoch))
	dst = ssz.MarshalUint64(dst, uint64(v.ActivationEpoch))
	dst = ssz.MarshalUint64(dst, uint64(v.ExitEpoch))
	dst = ssz.MarshalUint64(dst, uint64(v.WithdrawableEpoch))
	dst = ssz.MarshalBool(dst, v.Slashed)
	dst = ssz.MarshalUint64(dst, uint64(v.EffectiveBalance))
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of v.
func (v *Validator) MarshalSSZ() ([]byte, error) { return v.MarshalSSZTo(make([]byte, 0, v.SizeSSZ())) }

// UnmarshalSSZ decodes buf into v.
func (v *Validator) UnmarshalSSZ(buf []byte) error {
	if len(buf) != v.SizeSSZ() {
		return ssz.ErrSize
	}
	var offset int
	copy(v.Pubkey[:], buf[offset:offset+48])
	offset += 48
	copy(v.WithdrawalCredentials[:], buf[offset:offset+32])
	offset += 32
	v.ActivationEligibilityEpoch = Epoch(ssz.UnmarshallUint64(buf[offset : offset+8]))
	offset += 8
	v.ActivationEpoch = Epoch(ssz.UnmarshallUint64(buf[offset : offset+8]))
	offset += 8
	v.ExitEpoch = Epoch(ssz.UnmarshallUint64(buf[offset : offset+8]))
	offset += 8
	v.WithdrawableEpoch = Epoch(ssz.UnmarshallUint64(buf[offset : offset+8]))
	offset += 8
	v.Slashed = ssz.UnmarshalBool(buf[offset : offset+1])
	offset++
	v.EffectiveBalance = Gwei(ssz.UnmarshallUint64(buf[offset : offset+8]))
	return nil
}

// HashTreeRoot returns the tree-hash digest of v.
func (v *Validator) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(v) }

// HashTreeRootWith merkleizes v's fields, in declaration order, into hh.
func (v *Validator) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(v.Pubkey[:])
	hh.PutBytes(v.WithdrawalCredentials[:])
	hh.PutUint64(uint64(v.ActivationEligibilityEpoch))
	hh.PutUint64(uint64(v.ActivationEpoch))
	hh.PutUint64(uint64(v.ExitEpoch))
	hh.PutUint64(uint64(v.WithdrawableEpoch))
	hh.PutBool(v.Slashed)
	hh.PutUint64(uint64(v.EffectiveBalance))
	hh.Merkleize(indx)
	return nil
}

// IsActiveAtEpoch reports whether v is active at the given epoch, per
// is_active_validator(validator, epoch).
func (v *Validator) IsActiveAtEpoch(epoch Epoch) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// IsSlashableAtEpoch reports whether v is eligible to be slashed at the
// given epoch, per is_slashable_validator.
func (v *Validator) IsSlashableAtEpoch(epoch Epoch) bool {
	return !v.Slashed && v.ActivationEpoch <= epoch && epoch < v.WithdrawableEpoch
}

// AttestationData describes the FFG source/target checkpoints and shard
// crosslink an attestation votes for.
type AttestationData struct {
	Slot              Slot
	Shard             uint64
	BeaconBlockRoot   Root
	EpochBoundaryRoot Root
	CrosslinkDataRoot Root
	LatestCrosslink   Crosslink
	JustifiedEpoch    Epoch
	JustifiedBlockRoot Root
}

// SizeSSZ returns the fixed encoded size of AttestationData.
func (a *AttestationData) SizeSSZ() int {
	return 8 + 8 + 32 + 32 + 32 + a.LatestCrosslink.SizeSSZ() + 8 + 32
}

// MarshalSSZTo appends the canonical encoding of a to dst.
func (a *AttestationData) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = ssz.MarshalUint64(dst, uint64(a.Slot))
	dst = ssz.MarshalUint64(dst, a.Shard)
	dst = append(dst, a.BeaconBlockRoot[:]...)
	dst = append(dst, a.EpochBoundaryRoot[:]...)
	dst = append(dst, a.CrosslinkDataRoot[:]...)
	var err error
	dst, err = a.LatestCrosslink.MarshalSSZTo(dst)
	if err != nil {
		return nil, err
	}
	dst = ssz.MarshalUint64(dst, uint64(a.JustifiedEpoch))
	dst = append(dst, a.JustifiedBlockRoot[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of a.
func (a *AttestationData) MarshalSSZ() ([]byte, error) {
	return a.MarshalSSZTo(make([]byte, 0, a.SizeSSZ()))
}

// UnmarshalSSZ decodes buf into a.
func (a *AttestationData) UnmarshalSSZ(buf []byte) error {
	if len(buf) != a.SizeSSZ() {
		return ssz.ErrSize
	}
	var o int
	a.Slot = Slot(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	a.Shard = ssz.UnmarshallUint64(buf[o : o+8])
	o += 8
	copy(a.BeaconBlockRoot[:], buf[o:o+32])
	o += 32
	copy(a.EpochBoundaryRoot[:], buf[o:o+32])
	o += 32
	copy(a.CrosslinkDataRoot[:], buf[o:o+32])
	o += 32
	clSize := a.LatestCrosslink.SizeSSZ()
	if err := a.LatestCrosslink.UnmarshalSSZ(buf[o : o+clSize]); err != nil {
		return err
	}
	o += clSize
	a.JustifiedEpoch = Epoch(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	copy(a.JustifiedBlockRoot[:], buf[o:o+32])
	return nil
}

// HashTreeRoot returns the tree-hash digest of a.
func (a *AttestationData) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(a) }

// HashTreeRootWith merkleizes a's fields, in declaration order, into hh.
func (a *AttestationData) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(a.Slot))
	hh.PutUint64(a.Shard)
	hh.PutBytes(a.BeaconBlockRoot[:])
	hh.PutBytes(a.EpochBoundaryRoot[:])
	hh.PutBytes(a.CrosslinkDataRoot[:])
	if err := a.LatestCrosslink.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutUint64(uint64(a.JustifiedEpoch))
	hh.PutBytes(a.JustifiedBlockRoot[:])
	hh.Merkleize(indx)
	return nil
}

// Equal reports whether a and other describe the same vote, used by the
// fork-choice "latest message" cache and attestation pool dedup.
func (a *AttestationData) Equal(other *AttestationData) bool {
	if a == nil || other == nil {
		return a == other
	}
	ar, _ := a.HashTreeRoot()
	br, _ := other.HashTreeRoot()
	return ar == br
}
