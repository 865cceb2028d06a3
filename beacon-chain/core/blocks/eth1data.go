package blocks

import (
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// ProcessEth1Data appends block.Eth1Data to state.Eth1DataVotes. A vote's
// tally is simply how many times an equal Eth1Data appears in the list,
// so there is no separate count field to increment — this mirrors the
// phase-0 spec's own eth1_data_votes list exactly.
func ProcessEth1Data(state *types.BeaconState, block *types.BeaconBlock) {
	state.Eth1DataVotes = append(state.Eth1DataVotes, block.Eth1Data)
}

// Eth1DataVoteCount returns how many entries in votes equal data.
func Eth1DataVoteCount(votes []types.Eth1Data, data types.Eth1Data) int {
	count := 0
	for _, v := range votes {
		if v == data {
			count++
		}
	}
	return count
}

// MaybeResetEth1Data replaces state.latest_eth1_data with whichever vote
// has crossed a majority of the voting period and clears the vote list,
// called once per epoch at the eth1-voting-period boundary.
func MaybeResetEth1Data(state *types.BeaconState) {
	cfg := params.BeaconConfig()
	if uint64(state.Slot)%cfg.SlotsPerEth1VotingPeriod != 0 {
		return
	}
	for _, vote := range state.Eth1DataVotes {
		if 2*Eth1DataVoteCount(state.Eth1DataVotes, vote) > int(cfg.SlotsPerEth1VotingPeriod) {
			state.LatestEth1Data = vote
			break
		}
	}
	state.Eth1DataVotes = nil
}
