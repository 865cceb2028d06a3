package depositcache

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/core/helpers"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

func testDeposit(i byte) *types.Deposit {
	d := &types.Deposit{Index: uint64(i)}
	d.Data.Pubkey[0] = i + 1
	d.Data.Amount = types.Gwei(params.BeaconConfig().MaxEffectiveBalance)
	return d
}

func TestInsertDeposit_RejectsOutOfOrderIndex(t *testing.T) {
	dc, err := New()
	require.NoError(t, err)

	require.NoError(t, dc.InsertDeposit(testDeposit(0), 100, 0, types.Root{1}))
	err = dc.InsertDeposit(testDeposit(2), 100, 2, types.Root{2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wanted deposit with index 1")
}

func TestAllDeposits_FiltersByHeight(t *testing.T) {
	dc, err := New()
	require.NoError(t, err)
	require.NoError(t, dc.InsertDeposit(testDeposit(0), 100, 0, types.Root{1}))
	require.NoError(t, dc.InsertDeposit(testDeposit(1), 200, 1, types.Root{2}))
	require.NoError(t, dc.InsertDeposit(testDeposit(2), 300, 2, types.Root{3}))

	assert.Len(t, dc.AllDeposits(nil), 3)
	height := uint64(200)
	assert.Len(t, dc.AllDeposits(&height), 2)
}

func TestPeekDeposits_WindowAndMax(t *testing.T) {
	dc, err := New()
	require.NoError(t, err)
	for i := byte(0); i < 8; i++ {
		require.NoError(t, dc.InsertDeposit(testDeposit(i), 100+uint64(i), uint64(i), types.Root{i}))
	}

	from := types.Eth1Data{DepositCount: 2}
	to := types.Eth1Data{DepositCount: 6}

	got := dc.PeekDeposits(16, from, to)
	require.Len(t, got, 4)
	assert.Equal(t, uint64(2), got[0].Index)
	assert.Equal(t, uint64(5), got[3].Index)

	capped := dc.PeekDeposits(2, from, to)
	require.Len(t, capped, 2)
	assert.Equal(t, uint64(2), capped[0].Index)
	assert.Equal(t, uint64(3), capped[1].Index)

	// An empty window yields nothing rather than wrapping around.
	assert.Empty(t, dc.PeekDeposits(16, to, from))
}

func TestHasDepositRoot(t *testing.T) {
	dc, err := New()
	require.NoError(t, err)

	data := types.Eth1Data{DepositRoot: types.Root{7}, DepositCount: 4, BlockHash: types.Root{9}}
	dc.SetLatestEth1Data(data)

	assert.True(t, dc.HasDepositRoot(common.Hash(data.BlockHash), data.DepositRoot))
	assert.False(t, dc.HasDepositRoot(common.Hash(data.BlockHash), types.Root{8}))
	assert.False(t, dc.HasDepositRoot(common.Hash{0xaa}, data.DepositRoot))
}

func TestPendingDeposits_InsertRemovePrune(t *testing.T) {
	dc, err := New()
	require.NoError(t, err)

	d0, d1, d2 := testDeposit(0), testDeposit(1), testDeposit(2)
	dc.InsertPendingDeposit(d0, 100, 0, types.Root{1})
	dc.InsertPendingDeposit(d1, 200, 1, types.Root{2})
	dc.InsertPendingDeposit(d2, 300, 2, types.Root{3})
	require.Len(t, dc.PendingDeposits(nil), 3)

	dc.RemovePendingDeposit(d1)
	pending := dc.PendingDeposits(nil)
	require.Len(t, pending, 2)
	assert.Equal(t, d0, pending[0])
	assert.Equal(t, d2, pending[1])

	dc.PrunePendingDeposits(2)
	pending = dc.PendingDeposits(nil)
	require.Len(t, pending, 1)
	assert.Equal(t, d2, pending[0])
}

func TestDepositTrie_ProofVerifiesAgainstRoot(t *testing.T) {
	cfg := params.BeaconConfig()
	trie := NewDepositTrie(cfg.DepositContractTreeDepth)

	var leaves [][32]byte
	for i := byte(0); i < 5; i++ {
		data := types.DepositData{Amount: types.Gwei(cfg.MaxEffectiveBalance)}
		data.Pubkey[0] = i + 1
		leaf, err := data.HashTreeRoot()
		require.NoError(t, err)
		leaves = append(leaves, leaf)
		require.NoError(t, trie.Insert(leaf))
	}
	root := trie.HashTreeRoot()

	for i, leaf := range leaves {
		branch, err := trie.MerkleProof(i)
		require.NoError(t, err)
		ok := helpers.VerifyMerkleBranch(types.Root(leaf), branch, cfg.DepositContractTreeDepth, uint64(i), types.Root(root))
		assert.True(t, ok, "leaf %d must verify against the trie root", i)
	}
}

func TestBuildDepositProof_CarriesBranchAndIndex(t *testing.T) {
	cfg := params.BeaconConfig()
	trie := NewDepositTrie(cfg.DepositContractTreeDepth)

	data := types.DepositData{Amount: types.Gwei(cfg.MaxEffectiveBalance)}
	data.Pubkey[0] = 1
	leaf, err := data.HashTreeRoot()
	require.NoError(t, err)
	require.NoError(t, trie.Insert(leaf))

	dep, err := BuildDepositProof(trie, data, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), dep.Index)
	require.Len(t, dep.Proof, int(cfg.DepositContractTreeDepth)+1)
	ok := helpers.VerifyMerkleBranch(types.Root(leaf), dep.Proof[:cfg.DepositContractTreeDepth], cfg.DepositContractTreeDepth, 0, trie.HashTreeRoot())
	assert.True(t, ok)
}
