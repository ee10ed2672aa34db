package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FarmingMetrics tracks the staking pool engine.
type FarmingMetrics struct {
	operations   *prometheus.CounterVec
	totalStaked  *prometheus.GaugeVec
	totalBoosted *prometheus.GaugeVec
	rewardPool   *prometheus.GaugeVec
	epochs       *prometheus.GaugeVec
	harvested    *prometheus.CounterVec
}

var (
	farmingOnce     sync.Once
	farmingRegistry *FarmingMetrics
)

// Farming returns the process wide farming metrics registry.
func Farming() *FarmingMetrics {
	farmingOnce.Do(func() {
		farmingRegistry = newFarmingMetrics()
		prometheus.MustRegister(
			farmingRegistry.operations,
			farmingRegistry.totalStaked,
			farmingRegistry.totalBoosted,
			farmingRegistry.rewardPool,
			farmingRegistry.epochs,
			farmingRegistry.harvested,
		)
	})
	return farmingRegistry
}

func newFarmingMetrics() *FarmingMetrics {
	return &FarmingMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farm",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Pool operations segmented by operation and outcome.",
		}, []string{"operation", "outcome"}),
		totalStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "farm",
			Subsystem: "pool",
			Name:      "total_staked",
			Help:      "Raw stake held by each pool.",
		}, []string{"pool"}),
		totalBoosted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "farm",
			Subsystem: "pool",
			Name:      "total_boosted",
			Help:      "Boost weight granted by attached collateral per pool.",
		}, []string{"pool"}),
		rewardPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "farm",
			Subsystem: "pool",
			Name:      "reward_balance",
			Help:      "Reward balance held in custody per pool.",
		}, []string{"pool"}),
		epochs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "farm",
			Subsystem: "pool",
			Name:      "epochs",
			Help:      "Number of epochs recorded per pool, ghosts included.",
		}, []string{"pool"}),
		harvested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farm",
			Subsystem: "pool",
			Name:      "harvested_total",
			Help:      "Rewards paid out per pool.",
		}, []string{"pool"}),
	}
}

// ObserveOperation records the outcome of an engine operation. An empty
// reason counts as success.
func (m *FarmingMetrics) ObserveOperation(operation, reason string) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if reason = strings.TrimSpace(reason); reason != "" {
		outcome = reason
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

// SetPoolTotals publishes the aggregates of a committed pool.
func (m *FarmingMetrics) SetPoolTotals(pool string, staked, boosted, rewardBalance uint64, epochs int) {
	if m == nil {
		return
	}
	m.totalStaked.WithLabelValues(pool).Set(float64(staked))
	m.totalBoosted.WithLabelValues(pool).Set(float64(boosted))
	m.rewardPool.WithLabelValues(pool).Set(float64(rewardBalance))
	m.epochs.WithLabelValues(pool).Set(float64(epochs))
}

// AddHarvested increments the payout counter of a pool.
func (m *FarmingMetrics) AddHarvested(pool string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.harvested.WithLabelValues(pool).Add(float64(amount))
}
