package blocks

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// epochSigningRoot is the message a proposer's RANDAO reveal is signed
// over: the basic-type tree-hash of the current epoch, which for a single
// uint64 leaf is just its little-endian encoding followed by zero bytes
// up to 32 bytes.
func epochSigningRoot(epoch types.Epoch) [32]byte {
	var root [32]byte
	binary.LittleEndian.PutUint64(root[:8], uint64(epoch))
	return root
}

// RandaoSigningRoot exposes epochSigningRoot to callers outside this
// package, chiefly a proposer signing its own RANDAO reveal before
// submitting a block.
func RandaoSigningRoot(epoch types.Epoch) [32]byte {
	return epochSigningRoot(epoch)
}

// ProcessRandao verifies block's RANDAO reveal (unless checkSignature is
// false) against the current proposer's key, then mixes it into
// state.latest_randao_mixes[current_epoch mod N]:
// mix = sha256(old_mix ⊕ hash(randao_reveal)).
func ProcessRandao(state *types.BeaconState, block *types.BeaconBlock, checkSignature bool) error {
	currentEpoch := helpers.CurrentEpoch(state)
	if checkSignature {
		proposerIndex, err := helpers.BeaconProposerIndex(state, state.Slot)
		if err != nil {
			return errors.Wrap(err, "blocks: could not resolve proposer index")
		}
		if proposerIndex >= uint64(len(state.ValidatorRegistry)) {
			return errors.New("blocks: proposer index out of range")
		}
		proposer := state.ValidatorRegistry[proposerIndex]
		domain := helpers.Domain(&state.Fork, currentEpoch, params.BeaconConfig().DomainRandao)
		if err := verifySignature(proposer.Pubkey, epochSigningRoot(currentEpoch), domain, block.RandaoReveal); err != nil {
			return errors.Wrap(err, "blocks: invalid randao reveal")
		}
	}

	n := uint64(len(state.LatestRandaoMixes))
	if n == 0 {
		return errors.New("blocks: latest randao mixes is empty")
	}
	idx := uint64(currentEpoch) % n
	old := state.LatestRandaoMixes[idx]
	revealHash := sha256.Sum256(block.RandaoReveal[:])

	var mixed [32]byte
	for i := range mixed {
		mixed[i] = old[i] ^ revealHash[i]
	}
	state.LatestRandaoMixes[idx] = types.Root(sha256.Sum256(mixed[:]))
	return nil
}
