// Package params defines the chain-spec constants bundle consumed by every
// other package in this module. It deliberately does not load configuration
// from disk or the network; the loader that would populate a BeaconConfig
// from a YAML chain-spec file is treated as an external collaborator and is
// out of scope here.
package params

import "math"

// BeaconChainConfig bundles the protocol-wide constants used across state
// transitions, spec helpers, and fork choice.
type BeaconChainConfig struct {
	// Misc.
	ShardCount uint64
	// BeaconChainShardNumber is the sentinel shard an attestation to the
	// beacon chain itself carries instead of a real crosslink shard.
	BeaconChainShardNumber    uint64
	TargetCommitteeSize       uint64
	MaxValidatorsPerCommittee uint64
	MinPerEpochChurnLimit     uint64
	ChurnLimitQuotient        uint64
	ShuffleRoundCount         uint64

	// Gwei values.
	MinDepositAmount          uint64
	MaxEffectiveBalance       uint64
	EjectionBalance           uint64
	EffectiveBalanceIncrement uint64

	// Initial values.
	GenesisSlot       uint64
	GenesisEpoch      uint64
	FarFutureEpoch    uint64
	ZeroHash          [32]byte
	BLSWithdrawalPrefixByte byte

	// Time parameters.
	GenesisDelay                    uint64
	SecondsPerSlot                  uint64
	MinAttestationInclusionDelay    uint64
	SlotsPerEpoch                   uint64
	MinSeedLookahead                uint64
	ActivationExitDelay             uint64
	SlotsPerEth1VotingPeriod        uint64
	SlotsPerHistoricalRoot          uint64
	MinValidatorWithdrawabilityDelay uint64
	PersistentCommitteePeriod       uint64
	MinEpochsToInactivityPenalty    uint64

	// State vector lengths.
	EpochsPerHistoricalVector uint64
	EpochsPerSlashingsVector  uint64
	HistoricalRootsLimit      uint64
	ValidatorRegistryLimit    uint64

	// Reward and penalty quotients.
	BaseRewardFactor           uint64
	WhistleblowerRewardQuotient uint64
	ProposerRewardQuotient     uint64
	InactivityPenaltyQuotient  uint64
	MinSlashingPenaltyQuotient uint64

	// Max operations per block.
	MaxProposerSlashings uint64
	MaxAttesterSlashings uint64
	MaxAttestations      uint64
	MaxDeposits          uint64
	MaxVoluntaryExits    uint64
	MaxTransfers         uint64

	// Deposit contract.
	DepositContractTreeDepth      uint64
	MinGenesisActiveValidatorCount uint64
	MinGenesisTime                uint64
	Eth1FollowDistance            uint64

	// Fork choice.
	SlotsPerEpochForkChoice uint64

	// Signature domains (4-byte tags, as uint32 for arithmetic convenience).
	DomainDeposit     uint32
	DomainAttestation uint32
	DomainProposal    uint32
	DomainExit        uint32
	DomainRandao      uint32
	DomainTransfer    uint32

	GenesisForkVersion [4]byte
}

// MainnetConfig returns the production-sized constant bundle. Numeric
// choices follow the phase-0 beacon chain spec values.
func MainnetConfig() *BeaconChainConfig {
	return &BeaconChainConfig{
		ShardCount:                1024,
		BeaconChainShardNumber:    math.MaxUint64,
		TargetCommitteeSize:       128,
		MaxValidatorsPerCommittee: 4096,
		MinPerEpochChurnLimit:     4,
		ChurnLimitQuotient:        65536,
		ShuffleRoundCount:         90,

		MinDepositAmount:          1 * 1e9,
		MaxEffectiveBalance:       32 * 1e9,
		EjectionBalance:           16 * 1e9,
		EffectiveBalanceIncrement: 1 * 1e9,

		GenesisSlot:             0,
		GenesisEpoch:            0,
		FarFutureEpoch:          math.MaxUint64,
		BLSWithdrawalPrefixByte: 0x00,

		GenesisDelay:                     86400,
		SecondsPerSlot:                   12,
		MinAttestationInclusionDelay:     1,
		SlotsPerEpoch:                    32,
		MinSeedLookahead:                 1,
		ActivationExitDelay:              4,
		SlotsPerEth1VotingPeriod:         32 * 64,
		SlotsPerHistoricalRoot:           8192,
		MinValidatorWithdrawabilityDelay: 256,
		PersistentCommitteePeriod:        2048,
		MinEpochsToInactivityPenalty:     4,

		EpochsPerHistoricalVector: 65536,
		EpochsPerSlashingsVector:  8192,
		HistoricalRootsLimit:      16777216,
		ValidatorRegistryLimit:    1099511627776,

		BaseRewardFactor:            64,
		WhistleblowerRewardQuotient: 512,
		ProposerRewardQuotient:      8,
		InactivityPenaltyQuotient:   1 << 25,
		MinSlashingPenaltyQuotient:  32,

		MaxProposerSlashings: 16,
		MaxAttesterSlashings: 1,
		MaxAttestations:      128,
		MaxDeposits:          16,
		MaxVoluntaryExits:    16,
		MaxTransfers:         16,

		DepositContractTreeDepth:       32,
		MinGenesisActiveValidatorCount: 16384,
		MinGenesisTime:                 1578009600,
		Eth1FollowDistance:             1024,

		DomainDeposit:     3,
		DomainAttestation: 1,
		DomainProposal:    0,
		DomainExit:        4,
		DomainRandao:      2,
		DomainTransfer:    5,
	}
}

// MinimalConfig returns a scaled-down constant bundle suitable for unit
// tests and local networks, mirroring params/config_test.go's override
// pattern (small SlotsPerEpoch, small committee sizes).
func MinimalConfig() *BeaconChainConfig {
	c := MainnetConfig()
	c.ShardCount = 8
	c.TargetCommitteeSize = 4
	c.SlotsPerEpoch = 8
	c.SlotsPerHistoricalRoot = 64
	c.EpochsPerHistoricalVector = 64
	c.EpochsPerSlashingsVector = 64
	c.SlotsPerEth1VotingPeriod = 16
	c.MinGenesisActiveValidatorCount = 64
	c.MaxDeposits = 16
	return c
}

var beaconConfig = MainnetConfig()

// BeaconConfig returns the globally active chain-spec constant bundle.
// It is never mutated in place; callers needing a different bundle for
// tests should use OverrideBeaconConfig and restore it afterward.
func BeaconConfig() *BeaconChainConfig {
	return beaconConfig
}

// OverrideBeaconConfig replaces the active config wholesale. Intended for
// tests exercising minimal-config behavior; production code sets this once
// at startup via the (out-of-scope) chain-spec loader.
func OverrideBeaconConfig(c *BeaconChainConfig) {
	beaconConfig = c
}
