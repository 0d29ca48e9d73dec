// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 业务指标，进程启动时通过 MustRegister 注册到默认 Registry
var (
	CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tomato_mall",
		Name:      "checkout_total",
		Help:      "Checkout attempts partitioned by order kind and result.",
	}, []string{"kind", "result"})

	CheckoutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tomato_mall",
		Name:      "checkout_duration_seconds",
		Help:      "Checkout latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	StockConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tomato_mall",
		Name:      "stock_version_conflicts_total",
		Help:      "Optimistic lock conflicts on stock rows by operation.",
	}, []string{"op"})

	SettlementLineFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tomato_mall",
		Name:      "settlement_line_failures_total",
		Help:      "Reservation lines that could not be committed after settlement.",
	}, []string{"reason"})

	PaymentCallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tomato_mall",
		Name:      "payment_callbacks_total",
		Help:      "Payment gateway callbacks by outcome.",
	}, []string{"outcome"})

	OrdersReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tomato_mall",
		Name:      "orders_reclaimed_total",
		Help:      "Pending orders moved to TIMEOUT by the sweeper.",
	})

	CouponTemplatesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tomato_mall",
		Name:      "coupon_templates_expired_total",
		Help:      "Coupon templates deactivated by the expiry sweep.",
	})
)

// MustRegister 将全部业务指标注册到 reg
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		CheckoutTotal,
		CheckoutDuration,
		StockConflicts,
		SettlementLineFailures,
		PaymentCallbacks,
		OrdersReclaimed,
		CouponTemplatesExpired,
	)
}
