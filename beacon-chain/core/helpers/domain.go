package helpers

import (
	"encoding/binary"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// Domain computes get_domain(fork, epoch, domain_kind): an 8-byte value
// with domainType in the low 4 bytes and the fork version active at epoch
// in the high 4 bytes, both little-endian, matching how every signature
// in this module folds fork versioning into the signed message domain.
func Domain(fork *types.Fork, epoch types.Epoch, domainType uint32) uint64 {
	version := fork.PreviousVersion
	if epoch >= fork.Epoch {
		version = fork.CurrentVersion
	}
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], domainType)
	copy(buf[4:], version[:])
	return binary.LittleEndian.Uint64(buf[:])
}
