package oauth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hubauth",
	Subsystem: "oauth",
	Name:      "attempts_total",
	Help:      "Login attempts, by the state they reached. awaiting_callback counts started logins",
}, []string{"state"})
