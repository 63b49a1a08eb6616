package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApprovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_package_approvals_total",
			Help: "Package request approvals by result",
		},
		[]string{"result"},
	)

	ApprovalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mlm_package_approval_duration_seconds",
			Help:    "Duration of the approval transaction",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	ApprovalRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlm_package_approval_retries_total",
			Help: "Approval transactions retried after a lock conflict",
		},
	)

	CommissionPaid = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_commission_paid_total",
			Help: "Commission amount credited, by earning type",
		},
		[]string{"type"},
	)

	CommissionForfeited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlm_indirect_commission_forfeited_total",
			Help: "Indirect commission left unpaid after the rank ladder was exhausted",
		},
	)

	RankChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_rank_changes_total",
			Help: "Rank changes by target rank",
		},
		[]string{"rank"},
	)

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_outbox_messages_total",
			Help: "Outbox messages relayed to Kafka by result",
		},
		[]string{"result"},
	)
)
