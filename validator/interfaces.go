// Package validator implements the validator-duty half of the system:
// proposing blocks, attesting, and scheduling those duties across however
// many local keys this process manages. It talks to the beacon-node half
// (storage, fork choice, pending-operation pools) entirely in-process
// through plain Go interfaces — there is no gRPC client/server split to
// reproduce.
package validator

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

// Signer is the external signing oracle a proposer or attester asks to
// sign on a validator's behalf. Implementations own the private key and
// never expose it; callers only ever see pubkey bytes and signatures.
type Signer interface {
	// Sign returns a signature over msg for the key identified by pubkey.
	Sign(pubkey types.BLSPubkey, msg []byte) (types.BLSSignature, error)
	// PublicKeys returns every pubkey this signer holds a key for.
	PublicKeys() []types.BLSPubkey
}

// DepositContract is the eth1 deposit-contract oracle a proposer reads
// to fill Eth1Data votes and pending deposits. It is satisfied by
// cache/depositcache.DepositCache, narrowed to the read surface a
// proposer needs.
type DepositContract interface {
	// LatestEth1Data returns the most recent Eth1Data this oracle has
	// observed, or false if it has not yet observed any eth1 block.
	LatestEth1Data() (types.Eth1Data, bool)
	// PeekDeposits returns up to max deposits between two Eth1Data votes,
	// exclusive of the first and inclusive of the second, in index order.
	PeekDeposits(max uint64, fromExclusive, toInclusive types.Eth1Data) []*types.Deposit
	// HasDepositRoot reports whether the eth1 block with the given hash
	// carried the given deposit-contract root.
	HasDepositRoot(blockHash common.Hash, depositRoot types.Root) bool
}

// Clock is the wall-clock abstraction the scheduler uses so tests can
// drive duties deterministically instead of sleeping in real time.
type Clock interface {
	// NowMillis returns the current time in milliseconds, monotonic and
	// non-decreasing.
	NowMillis() int64
	// ScheduleAfter runs task after delay has elapsed, returning
	// immediately. A controlled-clock implementation may instead run task
	// synchronously once its own advance() passes delay.
	ScheduleAfter(delayMillis int64, task func())
}

// AttestationPool is the subset of operations/attestations.Pool a
// proposer reads from and writes gossiped attestations into.
type AttestationPool interface {
	Save(att *types.Attestation)
	Aggregated(state *types.BeaconState) []types.Attestation
}

// SlashingPool is the subset of operations/slashings.Pool a proposer
// reads pending slashing evidence from.
type SlashingPool interface {
	PendingProposerSlashings(state *types.BeaconState) []types.ProposerSlashing
	PendingAttesterSlashings(state *types.BeaconState) []types.AttesterSlashing
}

// ExitPool is the subset of operations/voluntaryexits.Pool a proposer
// reads pending voluntary exits from.
type ExitPool interface {
	PendingExits(state *types.BeaconState) []types.VoluntaryExit
}
