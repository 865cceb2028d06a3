package params_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/params"
)

func TestBeaconConfig_MainnetDefaults(t *testing.T) {
	c := params.BeaconConfig()
	require.NotNil(t, c)
	assert.Equal(t, uint64(32), c.SlotsPerEpoch)
	assert.Equal(t, uint64(1024), c.ShardCount)
	assert.Equal(t, uint64(16), c.MaxDeposits)
}

func TestOverrideBeaconConfig_MinimalRestoresOriginal(t *testing.T) {
	original := params.BeaconConfig()
	defer params.OverrideBeaconConfig(original)

	minimal := params.MinimalConfig()
	params.OverrideBeaconConfig(minimal)
	assert.Equal(t, uint64(8), params.BeaconConfig().SlotsPerEpoch)

	params.OverrideBeaconConfig(original)
	assert.Equal(t, uint64(32), params.BeaconConfig().SlotsPerEpoch)
}
