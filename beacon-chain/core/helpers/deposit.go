package helpers

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
	"github.com/sigmaprotocol/beacon-core/bls"
)

// VerifyMerkleBranch checks that leaf, combined with branch along index's
// path, hashes up to root after depth levels.
func VerifyMerkleBranch(leaf types.Root, branch [][]byte, depth, index uint64, root types.Root) bool {
	value := leaf
	idx := index
	for i := uint64(0); i < depth; i++ {
		var combined [64]byte
		if idx%2 == 1 {
			copy(combined[:32], branch[i])
			copy(combined[32:], value[:])
		} else {
			copy(combined[:32], value[:])
			copy(combined[32:], branch[i])
		}
		value = sha256.Sum256(combined[:])
		idx /= 2
	}
	return value == root
}

// ProcessDeposit validates deposit's Merkle branch against
// state.latest_eth1_data.deposit_root and either tops up an existing
// validator's balance (when Pubkey matches one already registered) or
// appends a brand-new validator record. It does not verify deposit.Index
// contiguity; that's the deposit list verifier's job, since it must
// compare successive deposits within a block rather than just one.
func ProcessDeposit(state *types.BeaconState, deposit *types.Deposit, verifySignature bool) error {
	cfg := params.BeaconConfig()
	leaf, err := deposit.Data.HashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "helpers: could not hash deposit data")
	}
	if !VerifyMerkleBranch(leaf, deposit.Proof, cfg.DepositContractTreeDepth, deposit.Index, state.LatestEth1Data.DepositRoot) {
		return errors.New("helpers: invalid deposit merkle branch")
	}

	pubkey := deposit.Data.Pubkey
	amount := deposit.Data.Amount

	if verifySignature {
		root, err := deposit.Data.SigningRoot()
		if err != nil {
			return errors.Wrap(err, "helpers: could not hash deposit data for signing")
		}
		pub, err := bls.PublicKeyFromBytes(pubkey[:])
		if err != nil {
			return errors.Wrap(err, "helpers: invalid deposit public key")
		}
		sig, err := bls.SignatureFromBytes(deposit.Data.Signature[:])
		if err != nil {
			return errors.Wrap(err, "helpers: invalid deposit signature")
		}
		domain := Domain(&state.Fork, CurrentEpoch(state), cfg.DomainDeposit)
		msg := make([]byte, 40)
		copy(msg[:32], root[:])
		binary.LittleEndian.PutUint64(msg[32:], domain)
		if !sig.Verify(pub, msg) {
			return errors.New("helpers: deposit proof of possession verification failed")
		}
	}

	for i := range state.ValidatorRegistry {
		if state.ValidatorRegistry[i].Pubkey == pubkey {
			state.ValidatorBalances[i] += amount
			return nil
		}
	}

	effective := amount
	if effective > types.Gwei(cfg.MaxEffectiveBalance) {
		effective = types.Gwei(cfg.MaxEffectiveBalance)
	}
	effective -= effective % types.Gwei(cfg.EffectiveBalanceIncrement)

	state.ValidatorRegistry = append(state.ValidatorRegistry, types.Validator{
		Pubkey:                     pubkey,
		WithdrawalCredentials:      deposit.Data.WithdrawalCredentials,
		ActivationEligibilityEpoch: types.Epoch(cfg.FarFutureEpoch),
		ActivationEpoch:            types.Epoch(cfg.FarFutureEpoch),
		ExitEpoch:                  types.Epoch(cfg.FarFutureEpoch),
		WithdrawableEpoch:          types.Epoch(cfg.FarFutureEpoch),
		EffectiveBalance:           effective,
	})
	state.ValidatorBalances = append(state.ValidatorBalances, amount)
	return nil
}
