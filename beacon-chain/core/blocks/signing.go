// Package blocks implements the per-block operation processors and
// verifiers: header, RANDAO, Eth1 data, the six operation lists (proposer
// slashings, attester slashings, attestations, deposits, voluntary exits,
// transfers), each run against its own verifier before mutating state.
// Every verifier failure is fatal for the block; the six operation lists
// are always processed in that fixed order.
package blocks

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
	"github.com/sigmaprotocol/beacon-core/bls"
)

// signingMessage folds domain into root the way every verifier in this
// package expects a signed message to be built: the 32-byte tree-hash
// root the signature covers, followed by the little-endian 8-byte domain
// get_domain produces. BLS itself treats this as opaque message bytes;
// domain separation lives entirely in this concatenation.
func signingMessage(root [32]byte, domain uint64) []byte {
	msg := make([]byte, 40)
	copy(msg[:32], root[:])
	binary.LittleEndian.PutUint64(msg[32:], domain)
	return msg
}

// SigningMessage exposes signingMessage to callers outside this package
// that need to produce a message a verifier here will later check, chiefly
// a validator signing its own proposal, RANDAO reveal, or attestation.
func SigningMessage(root [32]byte, domain uint64) []byte {
	return signingMessage(root, domain)
}

// verifySignature checks sig against pubkey over root, folded with domain.
func verifySignature(pubkey types.BLSPubkey, root [32]byte, domain uint64, sig types.BLSSignature) error {
	pub, err := bls.PublicKeyFromBytes(pubkey[:])
	if err != nil {
		return errors.Wrap(err, "blocks: invalid public key")
	}
	s, err := bls.SignatureFromBytes(sig[:])
	if err != nil {
		return errors.Wrap(err, "blocks: invalid signature")
	}
	if !s.Verify(pub, signingMessage(root, domain)) {
		return errors.New("blocks: signature verification failed")
	}
	return nil
}
