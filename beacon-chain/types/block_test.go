package types

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedBlock() *BeaconBlock {
	aggBits := bitfield.NewBitlist(19)
	aggBits.SetBitAt(11, true)
	blk := &BeaconBlock{
		Slot:       42,
		ParentRoot: Root{1, 2, 3},
		StateRoot:  Root{4, 5, 6},
		Body: &BeaconBlockBody{
			ProposerSlashings: []ProposerSlashing{{
				ProposerIndex: 7,
				ProposalData1: ProposalSignedData{Slot: 42, Shard: 1, BlockRoot: Root{0xAA}},
				ProposalData2: ProposalSignedData{Slot: 42, Shard: 1, BlockRoot: Root{0xBB}},
			}},
			Attestations: []Attestation{{
				AggregationBitfield: aggBits,
				Data:                AttestationData{Slot: 40, Shard: 3, BeaconBlockRoot: Root{0xCC}},
				CustodyBitfield:     bitfield.NewBitlist(19),
			}},
			Deposits: []Deposit{{
				Proof: make([][]byte, depositProofDepth()),
				Index: 9,
				Data:  DepositData{Amount: 32 * 1e9},
			}},
			VoluntaryExits: []VoluntaryExit{{Epoch: 5, ValidatorIndex: 11}},
			Transfers:      []Transfer{{Sender: 1, Recipient: 2, Amount: 3, Fee: 4, Slot: 42}},
		},
	}
	blk.RandaoReveal[0] = 0xEE
	blk.Signature[0] = 0xFF
	for i := range blk.Body.Deposits[0].Proof {
		blk.Body.Deposits[0].Proof[i] = make([]byte, 32)
	}
	blk.Body.RandaoReveal = blk.RandaoReveal
	return blk
}

func TestBeaconBlock_EncodeDecodeRoundTrip(t *testing.T) {
	blk := populatedBlock()

	enc, err := blk.MarshalSSZ()
	require.NoError(t, err)

	var got BeaconBlock
	require.NoError(t, got.UnmarshalSSZ(enc))

	wantRoot, err := blk.HashTreeRoot()
	require.NoError(t, err)
	gotRoot, err := got.HashTreeRoot()
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)

	assert.Equal(t, blk.Slot, got.Slot)
	assert.Equal(t, blk.ParentRoot, got.ParentRoot)
	require.NotNil(t, got.Body)
	require.Len(t, got.Body.Attestations, 1)
	assert.Equal(t, blk.Body.Attestations[0].Data, got.Body.Attestations[0].Data)
	require.Len(t, got.Body.Deposits, 1)
	assert.Equal(t, uint64(9), got.Body.Deposits[0].Index)
}

func TestBeaconBlock_HeaderRootIgnoresStateRootAndSignature(t *testing.T) {
	a := populatedBlock()
	b := populatedBlock()
	b.StateRoot = Root{0x99}
	b.Signature = BLSSignature{0x98}

	aRoot, err := a.HeaderRoot()
	require.NoError(t, err)
	bRoot, err := b.HeaderRoot()
	require.NoError(t, err)
	assert.Equal(t, aRoot, bRoot)

	// The full tree hash must still see both fields.
	aFull, err := a.HashTreeRoot()
	require.NoError(t, err)
	bFull, err := b.HashTreeRoot()
	require.NoError(t, err)
	assert.NotEqual(t, aFull, bFull)
}

func TestBeaconBlock_SigningRootExcludesOnlySignature(t *testing.T) {
	a := populatedBlock()
	b := populatedBlock()
	b.Signature = BLSSignature{0x97}

	aRoot, err := a.SigningRoot()
	require.NoError(t, err)
	bRoot, err := b.SigningRoot()
	require.NoError(t, err)
	assert.Equal(t, aRoot, bRoot)

	b.StateRoot = Root{0x96}
	cRoot, err := b.SigningRoot()
	require.NoError(t, err)
	assert.NotEqual(t, aRoot, cRoot)
}

func TestBeaconState_CopyIsIndependent(t *testing.T) {
	st := &BeaconState{
		Slot:              10,
		ValidatorRegistry: []Validator{{EffectiveBalance: 32}},
		ValidatorBalances: []Gwei{32},
		LatestBlockRoots:  []Root{{1}},
	}
	cp := st.Copy()
	cp.ValidatorBalances[0] = 0
	cp.LatestBlockRoots[0] = Root{2}
	cp.Slot = 11

	assert.Equal(t, Gwei(32), st.ValidatorBalances[0])
	assert.Equal(t, Root{1}, st.LatestBlockRoots[0])
	assert.Equal(t, Slot(10), st.Slot)
}
