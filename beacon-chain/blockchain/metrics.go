package blockchain

import (
	"encoding/binary"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

var (
	headSlotGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beaconchain_head_slot",
		Help: "Slot of the current fork-choice head",
	})
	headRootGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beaconchain_head_root",
		Help: "First 8 bytes of the current fork-choice head root, for dashboard correlation",
	})
)

// reportHeadMetrics updates the package's head gauges once a new head has
// been computed and published.
func reportHeadMetrics(head *types.BeaconState, root types.Root) {
	headSlotGauge.Set(float64(head.Slot))
	headRootGauge.Set(float64(binary.BigEndian.Uint64(root[:8])))
}
