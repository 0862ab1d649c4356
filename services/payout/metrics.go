package payout

import "github.com/prometheus/client_golang/prometheus"

var (
	payoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_requests_total",
		Help: "Payout requests by initial outcome.",
	}, []string{"outcome"})

	transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_transitions_total",
		Help: "Payout status transitions by target status.",
	}, []string{"status"})

	disbursementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_disbursements_total",
		Help: "Disbursement attempts by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(payoutsTotal, transitionsTotal, disbursementsTotal)
}
