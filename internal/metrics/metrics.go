package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DepositsApproved counts admin deposit approvals.
	DepositsApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_deposits_approved_total",
		Help: "The total number of approved deposits",
	})

	// WithdrawalsApproved counts admin withdrawal approvals.
	WithdrawalsApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_withdrawals_approved_total",
		Help: "The total number of approved withdrawals",
	})

	// WithdrawalAmountTotal accumulates the settled withdrawal volume in USDT.
	WithdrawalAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_withdrawal_amount_total",
		Help: "The cumulative approved withdrawal amount in USDT",
	})

	// SweepDuration tracks sweep run time by sweep kind.
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_sweep_duration_seconds",
			Help:    "Time taken by periodic sweeps",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)

	// SweepWalletsProcessed counts wallets flushed by the earnings sweep.
	SweepWalletsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_sweep_wallets_processed_total",
		Help: "The total number of wallets flushed by the earnings sweep",
	})

	// BatchesMatured counts deposit batches marked matured.
	BatchesMatured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_batches_matured_total",
		Help: "The total number of deposit batches marked matured",
	})

	// MiningClaims counts successful mining claims.
	MiningClaims = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mining_claims_total",
		Help: "The total number of successful mining claims",
	})
)
