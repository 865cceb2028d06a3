package state

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
	"github.com/sigmaprotocol/beacon-core/cache/depositcache"
)

// GenesisBeaconState builds the state a chain starts from out of the
// ChainStart event's ingredients: the eth1 block the deposit contract
// emitted its start log against, and every deposit observed up to that
// block. It bootstraps an empty state, then folds in deposits one at a
// time so state.latest_eth1_data.deposit_root grows the same way the
// live contract's root did.
func GenesisBeaconState(deposits []*types.Deposit, genesisTime uint64, eth1BlockHash types.Root) (*types.BeaconState, error) {
	cfg := params.BeaconConfig()

	st := &types.BeaconState{
		Slot:        types.Slot(cfg.GenesisSlot),
		GenesisTime: genesisTime,
		Fork: types.Fork{
			PreviousVersion: cfg.GenesisForkVersion,
			CurrentVersion:  cfg.GenesisForkVersion,
			Epoch:           types.Epoch(cfg.GenesisEpoch),
		},
		LatestRandaoMixes:      make([]types.Root, cfg.EpochsPerHistoricalVector),
		LatestCrosslinks:       make([]types.Crosslink, cfg.ShardCount),
		LatestBlockRoots:       make([]types.Root, cfg.SlotsPerHistoricalRoot),
		LatestActiveIndexRoots: make([]types.Root, cfg.EpochsPerHistoricalVector),
		LatestSlashedBalances:  make([]types.Gwei, cfg.EpochsPerSlashingsVector),
		JustifiedEpoch:         types.Epoch(cfg.GenesisEpoch),
		FinalizedEpoch:         types.Epoch(cfg.GenesisEpoch),
		PreviousJustifiedEpoch: types.Epoch(cfg.GenesisEpoch),
	}
	for i := range st.LatestRandaoMixes {
		st.LatestRandaoMixes[i] = eth1BlockHash
	}

	trie := depositcache.NewDepositTrie(cfg.DepositContractTreeDepth)
	for i, d := range deposits {
		if d.Index != uint64(i) {
			return nil, errors.Errorf("core/state: genesis deposit at position %d carries index %d", i, d.Index)
		}
		leaf, err := d.Data.HashTreeRoot()
		if err != nil {
			return nil, errors.Wrap(err, "core/state: could not hash genesis deposit data")
		}
		if err := trie.Insert(leaf); err != nil {
			return nil, errors.Wrap(err, "core/state: could not insert genesis deposit into trie")
		}
		st.LatestEth1Data = types.Eth1Data{
			DepositRoot:  trie.HashTreeRoot(),
			DepositCount: uint64(i) + 1,
			BlockHash:    eth1BlockHash,
		}
		proven, err := depositcache.BuildDepositProof(trie, d.Data, uint64(i))
		if err != nil {
			return nil, errors.Wrap(err, "core/state: could not build genesis deposit proof")
		}
		if err := helpers.ProcessDeposit(st, proven, false); err != nil {
			return nil, errors.Wrapf(err, "core/state: could not process genesis deposit %d", i)
		}
		st.DepositIndex = uint64(i) + 1
	}

	for i := range st.ValidatorRegistry {
		v := &st.ValidatorRegistry[i]
		if v.EffectiveBalance == types.Gwei(cfg.MaxEffectiveBalance) {
			v.ActivationEligibilityEpoch = types.Epoch(cfg.GenesisEpoch)
			v.ActivationEpoch = types.Epoch(cfg.GenesisEpoch)
		}
	}

	return st, nil
}

// GenesisBlock returns the zero block a genesis state's first slot is
// identified by: an empty body, a zeroed parent (there is no prior
// block), and state_root set to the tree hash of genesisState, the same
// back-fill every later block gets after its post-state is computed.
func GenesisBlock(genesisState *types.BeaconState) (*types.BeaconBlock, error) {
	stateRoot, err := genesisState.HashTreeRoot()
	if err != nil {
		return nil, errors.Wrap(err, "core/state: could not hash genesis state")
	}
	return &types.BeaconBlock{
		Slot:       genesisState.Slot,
		ParentRoot: types.ZeroRoot,
		StateRoot:  types.Root(stateRoot),
		Eth1Data:   genesisState.LatestEth1Data,
		Body: &types.BeaconBlockBody{
			Eth1Data: genesisState.LatestEth1Data,
		},
	}, nil
}
