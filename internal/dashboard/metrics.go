package dashboard

import "github.com/prometheus/client_golang/prometheus"

var refreshesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "farmwatch",
		Subsystem: "dashboard",
		Name:      "refreshes_total",
		Help:      "Refresh cycles by outcome (published, stale, failed).",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(refreshesTotal)
}
