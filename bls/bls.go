// Package bls wraps supranational/blst behind an opaque signing/
// verification oracle: callers never see curve points, only
// SecretKey/PublicKey/Signature handles and Sign/Verify/aggregate
// operations. The concrete scheme is the "MinPk" variant Ethereum
// uses (48-byte compressed G1 public keys, 96-byte compressed G2
// signatures).
package bls

import (
	"crypto/rand"

	"github.com/pkg/errors"
	blst "github.com/supranational/blst/bindings/go"
)

// dst is the domain separation tag the G2 hash-to-curve uses, matching the
// one Ethereum consensus clients use for proof-of-possession signatures.
var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

const (
	secretKeySize = 32
	publicKeySize = 48
	signatureSize = 96
)

// SecretKey is a BLS12-381 scalar, never serialized outside of tests.
type SecretKey struct {
	key *blst.SecretKey
}

// PublicKey is a compressed G1 point.
type PublicKey struct {
	point *blst.P1Affine
}

// Signature is a compressed G2 point.
type Signature struct {
	point *blst.P2Affine
}

// RandKey generates a fresh random secret key, used by the validator
// client's test and local-signing key store.
func RandKey() (*SecretKey, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, errors.Wrap(err, "bls: could not read randomness")
	}
	sk := blst.KeyGen(ikm[:])
	if sk == nil {
		return nil, errors.New("bls: key generation failed")
	}
	return &SecretKey{key: sk}, nil
}

// SecretKeyFromBytes deserializes a 32-byte scalar into a SecretKey.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	if len(b) != secretKeySize {
		return nil, errors.Errorf("bls: secret key must be %d bytes", secretKeySize)
	}
	sk := new(blst.SecretKey).Deserialize(b)
	if sk == nil {
		return nil, errors.New("bls: invalid secret key bytes")
	}
	return &SecretKey{key: sk}, nil
}

// Marshal serializes sk to its 32-byte scalar representation.
func (sk *SecretKey) Marshal() []byte {
	return sk.key.Serialize()
}

// PublicKey derives sk's corresponding public key.
func (sk *SecretKey) PublicKey() *PublicKey {
	pk := new(blst.P1Affine).From(sk.key)
	return &PublicKey{point: pk}
}

// Sign signs msg, which callers construct as a domain-scoped signing root
// (a tree-hash-truncate root combined with the active fork domain); BLS
// itself treats the domain as opaque message bytes.
func (sk *SecretKey) Sign(msg []byte) *Signature {
	sig := new(blst.P2Affine).Sign(sk.key, msg, dst)
	return &Signature{point: sig}
}

// PublicKeyFromBytes deserializes a 48-byte compressed G1 point.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != publicKeySize {
		return nil, errors.Errorf("bls: public key must be %d bytes", publicKeySize)
	}
	p := new(blst.P1Affine).Uncompress(b)
	if p == nil {
		return nil, errors.New("bls: invalid public key bytes")
	}
	return &PublicKey{point: p}, nil
}

// Marshal serializes pk to its 48-byte compressed representation.
func (pk *PublicKey) Marshal() []byte {
	return pk.point.Compress()
}

// Aggregate combines pk with others into a single public key, used to
// verify an Attestation's AggregateSignature against every participating
// validator's key at once.
func (pk *PublicKey) Aggregate(others ...*PublicKey) *PublicKey {
	agg := new(blst.P1Aggregate)
	points := make([]*blst.P1Affine, 0, len(others)+1)
	points = append(points, pk.point)
	for _, o := range others {
		points = append(points, o.point)
	}
	agg.Aggregate(points, true)
	return &PublicKey{point: agg.ToAffine()}
}

// SignatureFromBytes deserializes a 96-byte compressed G2 point.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != signatureSize {
		return nil, errors.Errorf("bls: signature must be %d bytes", signatureSize)
	}
	s := new(blst.P2Affine).Uncompress(b)
	if s == nil {
		return nil, errors.New("bls: invalid signature bytes")
	}
	return &Signature{point: s}, nil
}

// Marshal serializes sig to its 96-byte compressed representation.
func (sig *Signature) Marshal() []byte {
	return sig.point.Compress()
}

// Verify checks sig against a single public key and message.
func (sig *Signature) Verify(pub *PublicKey, msg []byte) bool {
	return sig.point.Verify(true, pub.point, true, msg, dst)
}

// FastAggregateVerify checks sig, an aggregate signature over the same
// message from every key in pubs, which is the common case for attestation
// verification (every participant votes for the same AttestationData).
func (sig *Signature) FastAggregateVerify(pubs []*PublicKey, msg []byte) bool {
	if len(pubs) == 0 {
		return false
	}
	points := make([]*blst.P1Affine, len(pubs))
	for i, p := range pubs {
		points[i] = p.point
	}
	return sig.point.FastAggregateVerify(true, points, msg, dst)
}

// AggregateSignatures combines multiple signatures into one, used both by
// the attestation pool (aggregating same-data votes) and when checking an
// AttesterSlashing's two conflicting SlashableAttestation records.
func AggregateSignatures(sigs []*Signature) (*Signature, error) {
	if len(sigs) == 0 {
		return nil, errors.New("bls: no signatures to aggregate")
	}
	agg := new(blst.P2Aggregate)
	points := make([]*blst.P2Affine, len(sigs))
	for i, s := range sigs {
		points[i] = s.point
	}
	if !agg.Aggregate(points, true) {
		return nil, errors.New("bls: signature aggregation failed")
	}
	return &Signature{point: agg.ToAffine()}, nil
}
