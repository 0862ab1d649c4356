package ledger

import "github.com/prometheus/client_golang/prometheus"

var (
	reservationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reservations_total",
		Help: "Earning reservations by strategy and result.",
	}, []string{"strategy", "result"})

	releasedEarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_released_earnings_total",
		Help: "Earnings returned to AVAILABLE by compensation.",
	})

	clearedEarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_cleared_earnings_total",
		Help: "Earnings moved from PENDING_CLEARANCE to AVAILABLE.",
	})
)

func init() {
	prometheus.MustRegister(reservationsTotal, releasedEarningsTotal, clearedEarningsTotal)
}
