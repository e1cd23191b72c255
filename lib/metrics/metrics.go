// Package metrics exposes the process wide prometheus registry over http.
package metrics

import (
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricBuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hubauth",
		Subsystem: "bin",
		Name:      "build_info",
		Help:      "Info on how this binary was generated, always 1",
	}, []string{"version", "go_version"})

	metricStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hubauth",
		Subsystem: "runtime",
		Name:      "start_time",
		Help:      "When this instance started",
	})
)

// Version returns the module version embedded at build time, or "devel".
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "devel"
	}
	return info.Main.Version
}

// AddHandler registers the metrics handler on mux at endpoint.
func AddHandler(mux *http.ServeMux, endpoint string) {
	metricBuildInfo.WithLabelValues(Version(), runtime.Version()).Set(1)
	metricStartTime.SetToCurrentTime()

	mux.Handle(endpoint, promhttp.Handler())
}
