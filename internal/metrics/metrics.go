package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CommissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ascend_commissions_total",
			Help: "Commissions recorded, by type",
		},
		[]string{"type"},
	)

	CommissionCentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ascend_commission_cents_total",
			Help: "Commission amounts recorded in cents, by type",
		},
		[]string{"type"},
	)

	PlacementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ascend_placements_total",
			Help: "Placement nodes created, by resolved leg",
		},
		[]string{"leg"},
	)

	TxRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ascend_tx_retries_total",
			Help: "Transactions retried after a serialization or slot conflict",
		},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ascend_withdrawals_total",
			Help: "Withdrawal state transitions, by resulting status",
		},
		[]string{"status"},
	)

	SweepUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ascend_sweep_users_total",
			Help: "Users processed by periodic sweeps, by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ascend_sweep_duration_seconds",
			Help:    "Wall time of periodic sweeps",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"job"},
	)
)
