package helpers

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// RandaoMix returns state.latest_randao_mixes[epoch mod N], failing if
// epoch falls outside the ring's populated window (more than one full
// ring length behind the current epoch, or ahead of it).
func RandaoMix(state *types.BeaconState, epoch types.Epoch) (types.Root, error) {
	n := uint64(len(state.LatestRandaoMixes))
	if n == 0 {
		return types.Root{}, errors.New("helpers: latest randao mixes is empty")
	}
	current := CurrentEpoch(state)
	if uint64(current) >= n && uint64(epoch)+n <= uint64(current) {
		return types.Root{}, errors.Errorf("helpers: epoch %d outside randao mix ring window", epoch)
	}
	if epoch > current {
		return types.Root{}, errors.Errorf("helpers: epoch %d is in the future", epoch)
	}
	return state.LatestRandaoMixes[uint64(epoch)%n], nil
}
