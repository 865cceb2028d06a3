package state

import (
	"encoding/hex"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sigmaprotocol/beacon-core/beacon-chain/types"
)

var (
	validatorBalancesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "beaconstate_validator_balances",
		Help: "Balances of validators, updated on epoch transition",
	}, []string{
		"validator",
	})
	lastSlotGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beaconstate_last_slot",
		Help: "Last slot number of the processed state",
	})
	lastJustifiedEpochGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beaconstate_last_justified_epoch",
		Help: "Last justified epoch of the processed state",
	})
	lastPrevJustifiedEpochGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beaconstate_last_prev_justified_epoch",
		Help: "Last previous justified epoch of the processed state",
	})
	lastFinalizedEpochGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beaconstate_last_finalized_epoch",
		Help: "Last finalized epoch of the processed state",
	})
)

// reportEpochTransitionMetrics updates every package-level gauge from
// state, called once an epoch transition has fully applied.
func reportEpochTransitionMetrics(state *types.BeaconState) {
	// Validator balances.
	for i, bal := range state.ValidatorBalances {
		if i >= len(state.ValidatorRegistry) {
			break
		}
		validatorBalancesGauge.WithLabelValues(
			"0x"+hex.EncodeToString(state.ValidatorRegistry[i].Pubkey[:]),
		).Set(float64(bal))
	}
	// Slot number.
	lastSlotGauge.Set(float64(state.Slot))
	// Last justified epoch.
	lastJustifiedEpochGauge.Set(float64(state.JustifiedEpoch))
	// Last previous justified epoch.
	lastPrevJustifiedEpochGauge.Set(float64(state.PreviousJustifiedEpoch))
	// Last finalized epoch.
	lastFinalizedEpochGauge.Set(float64(state.FinalizedEpoch))
}
