package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves reg in the OpenMetrics format, or the global default
// registry when reg is nil.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:          reg,
		EnableOpenMetrics: true,
	})
}

// NewServeMux routes /metrics to reg and answers /healthz with 200.
func NewServeMux(reg *prom.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", HTTPHandler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
