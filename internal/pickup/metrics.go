package pickup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_transitions_total",
		Help: "Lifecycle transitions by from/to status.",
	}, []string{"from", "to"})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_verifications_total",
		Help: "Gate verification attempts by outcome.",
	}, []string{"outcome"})
)
