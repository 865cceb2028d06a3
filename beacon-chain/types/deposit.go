package types

import (
	ssz "github.com/ferranbt/fastssz"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
)

// DepositData is the deposit-contract log payload a Deposit wraps.
type DepositData struct {
	Pubkey                BLSPubkey
	WithdrawalCredentials Root
	Amount                Gwei
	Signature             BLSSignature
}

// SizeSSZ returns the fixed encoded size of DepositData.
func (d *DepositData) SizeSSZ() int { return 48 + 32 + 8 + 96 }

// MarshalSSZTo appends the canonical encoding of d to dst.
func (d *DepositData) MarshalSSZTo(dst []byte) ([]byte, error) {
	dst = append(dst, d.Pubkey[:]...)
	dst = append(dst, d.WithdrawalCredentials[:]...)
	dst = ssz.MarshalUint64(dst, uint64(d.Amount))
	dst = append(dst, d.Signature[:]...)
	return dst, nil
}

// MarshalSSZ returns the canonical encoding of d.
func (d *DepositData) MarshalSSZ() ([]byte, error) { return d.MarshalSSZTo(make([]byte, 0, d.SizeSSZ())) }

// UnmarshalSSZ decodes buf into d.
func (d *DepositData) UnmarshalSSZ(buf []byte) error {
	if len(buf) != d.SizeSSZ() {
		return ssz.ErrSize
	}
	var o int
	copy(d.Pubkey[:], buf[o:o+48])
	o += 48
	copy(d.WithdrawalCredentials[:], buf[o:o+32])
	o += 32
	d.Amount = Gwei(ssz.UnmarshallUint64(buf[o : o+8]))
	o += 8
	copy(d.Signature[:], buf[o:o+96])
	return nil
}

// HashTreeRoot returns the tree-hash digest of d.
func (d *DepositData) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(d) }

// HashTreeRootWith merkleizes d's fields into hh.
func (d *DepositData) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(d.Pubkey[:])
	hh.PutBytes(d.WithdrawalCredentials[:])
	hh.PutUint64(uint64(d.Amount))
	hh.PutBytes(d.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// SigningRoot returns the tree-hash of d with Signature excluded, the
// tree_hash_truncate(deposit_data, "signature") value deposits are signed
// over.
func (d *DepositData) SigningRoot() ([32]byte, error) {
	truncated := &DepositData{
		Pubkey:                d.Pubkey,
		WithdrawalCredentials: d.WithdrawalCredentials,
		Amount:                d.Amount,
	}
	hh := ssz.DefaultHasherPool.Get()
	defer ssz.DefaultHasherPool.Put(hh)
	indx := hh.Index()
	hh.PutBytes(truncated.Pubkey[:])
	hh.PutBytes(truncated.WithdrawalCredentials[:])
	hh.PutUint64(uint64(truncated.Amount))
	hh.Merkleize(indx)
	return hh.HashRoot()
}

// Deposit is a single merkle-proven entry from the deposit-contract trie,
// included in a block body to add or top up a validator.
type Deposit struct {
	// Proof is the Merkle branch from DepositData's root up to the deposit
	// root, length DEPOSIT_CONTRACT_TREE_DEPTH+1 (index mixed in at the top).
	Proof [][]byte
	Index uint64
	Data  DepositData
}

func depositProofDepth() int {
	return int(params.BeaconConfig().DepositContractTreeDepth) + 1
}

// SizeSSZ returns the fixed encoded size of Deposit.
func (d *Deposit) SizeSSZ() int {
	return depositProofDepth()*32 + 8 + d.Data.SizeSSZ()
}

// MarshalSSZTo appends the canonical encoding of d to dst. Deposit is a
// fixed-size container: Proof is a fixed-length vector of 32-byte roots.
func (d *Deposit) MarshalSSZTo(dst []byte) ([]byte, error) {
	depth := depositProofDepth()
	if len(d.Proof) != depth {
		return nil, ssz.ErrVectorLength
	}
	for _, p := range d.Proof {
		if len(p) != 32 {
			return nil, ssz.ErrBytesLength
		}
		dst = append(dst, p...)
	}
	dst = ssz.MarshalUint64(dst, d.Index)
	return d.Data.MarshalSSZTo(dst)
}

// MarshalSSZ returns the canonical encoding of d.
func (d *Deposit) MarshalSSZ() ([]byte, error) { return d.MarshalSSZTo(make([]byte, 0, d.SizeSSZ())) }

// UnmarshalSSZ decodes buf into d.
func (d *Deposit) UnmarshalSSZ(buf []byte) error {
	depth := depositProofDepth()
	want := depth*32 + 8 + d.Data.SizeSSZ()
	if len(buf) != want {
		return ssz.ErrSize
	}
	d.Proof = make([][]byte, depth)
	o := 0
	for i := 0; i < depth; i++ {
		branch := make([]byte, 32)
		copy(branch, buf[o:o+32])
		d.Proof[i] = branch
		o += 32
	}
	d.Index = ssz.UnmarshallUint64(buf[o : o+8])
	o += 8
	return d.Data.UnmarshalSSZ(buf[o:])
}

// HashTreeRoot returns the tree-hash digest of d.
func (d *Deposit) HashTreeRoot() ([32]byte, error) { return hashTreeRoot(d) }

// HashTreeRootWith merkleizes d's fields into hh. Proof is hashed as a
// fixed-length vector of roots, not a merkleized list, since its length
// is a protocol constant rather than a bound.
func (d *Deposit) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	{
		subIndx := hh.Index()
		for _, p := range d.Proof {
			hh.AppendBytes32(p)
		}
		hh.Merkleize(subIndx)
	}
	hh.PutUint64(d.Index)
	if err := d.Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.Merkleize(indx)
	return nil
}
