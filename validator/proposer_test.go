package validator

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/blocks"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
	"github.com/sigmaprotocol/beacon-core/bls"
	"github.com/sigmaprotocol/beacon-core/cache/depositcache"
	"github.com/sigmaprotocol/beacon-core/operations/attestations"
	"github.com/sigmaprotocol/beacon-core/operations/slashings"
	"github.com/sigmaprotocol/beacon-core/operations/voluntaryexits"
)

// keySigner signs with real BLS keys, keyed by pubkey, so a test can
// verify the signatures Propose attaches.
type keySigner struct {
	keys map[types.BLSPubkey]*bls.SecretKey
}

func newKeySigner() *keySigner {
	return &keySigner{keys: make(map[types.BLSPubkey]*bls.SecretKey)}
}

func (s *keySigner) add(t *testing.T) types.BLSPubkey {
	t.Helper()
	sk, err := bls.RandKey()
	require.NoError(t, err)
	var pk types.BLSPubkey
	copy(pk[:], sk.PublicKey().Marshal())
	s.keys[pk] = sk
	return pk
}

func (s *keySigner) Sign(pubkey types.BLSPubkey, msg []byte) (types.BLSSignature, error) {
	sk, ok := s.keys[pubkey]
	if !ok {
		return types.BLSSignature{}, errors.Errorf("no key held for pubkey %x", pubkey[:4])
	}
	var out types.BLSSignature
	copy(out[:], sk.Sign(msg).Marshal())
	return out, nil
}

func (s *keySigner) PublicKeys() []types.BLSPubkey {
	out := make([]types.BLSPubkey, 0, len(s.keys))
	for pk := range s.keys {
		out = append(out, pk)
	}
	return out
}

// TestPropose_RoundTrip runs the full proposal path: the produced block's
// state root must equal the tree hash of the post-state Propose computed,
// and the attached signature must verify over the block's signing root
// under the proposal domain.
func TestPropose_RoundTrip(t *testing.T) {
	params.OverrideBeaconConfig(params.MinimalConfig())
	defer params.OverrideBeaconConfig(params.MainnetConfig())
	cfg := params.BeaconConfig()

	st := schedulerTestState(t, 128, 15)
	proposerIndex, err := helpers.BeaconProposerIndex(st, st.Slot)
	require.NoError(t, err)

	signer := newKeySigner()
	pubkey := signer.add(t)
	st.ValidatorRegistry[proposerIndex].Pubkey = pubkey

	deposits, err := depositcache.New()
	require.NoError(t, err)
	proposer := NewProposer(deposits, attestations.NewPool(), slashings.NewPool(), voluntaryexits.NewPool(), signer)

	parentRoot, err := helpers.BlockRoot(st, st.Slot-1)
	require.NoError(t, err)
	currentEpoch := helpers.CurrentEpoch(st)
	fork := st.Fork

	block, postState, err := proposer.Propose(st, proposerIndex)
	require.NoError(t, err)

	assert.Equal(t, types.Slot(15), block.Slot)
	assert.Equal(t, parentRoot, block.ParentRoot)

	postRoot, err := postState.HashTreeRoot()
	require.NoError(t, err)
	assert.Equal(t, types.Root(postRoot), block.StateRoot)

	signingRoot, err := block.SigningRoot()
	require.NoError(t, err)
	domain := helpers.Domain(&fork, currentEpoch, cfg.DomainProposal)
	sig, err := bls.SignatureFromBytes(block.Signature[:])
	require.NoError(t, err)
	pub, err := bls.PublicKeyFromBytes(pubkey[:])
	require.NoError(t, err)
	assert.True(t, sig.Verify(pub, blocks.SigningMessage(signingRoot, domain)))
}

// TestPropose_RejectsNonProposer checks that a validator who is not the
// slot's assigned proposer cannot produce a block.
func TestPropose_RejectsNonProposer(t *testing.T) {
	params.OverrideBeaconConfig(params.MinimalConfig())
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	st := schedulerTestState(t, 128, 15)
	proposerIndex, err := helpers.BeaconProposerIndex(st, st.Slot)
	require.NoError(t, err)
	wrong := (proposerIndex + 1) % uint64(len(st.ValidatorRegistry))

	deposits, err := depositcache.New()
	require.NoError(t, err)
	proposer := NewProposer(deposits, attestations.NewPool(), slashings.NewPool(), voluntaryexits.NewPool(), newKeySigner())

	_, _, err = proposer.Propose(st, wrong)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not the proposer")
}
