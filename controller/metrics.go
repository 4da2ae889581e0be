package controller

import (
	"net/http"
)

// MetricsHandler is a web handler serving the Prometheus collectors
func (hs *Handlers) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c := MakeContext(r, w)

	switch c.GetHTTPMethod() {
	case "OPTIONS":
		c.RespondWithOptions([]string{"OPTIONS", "GET"})
		return
	case "GET":
		// Gauges that are otherwise only refreshed by cron
		hs.Metrics.ObserveBreakerState(hs.Breaker.Name(), hs.Breaker.State())
		hs.Metrics.Handler().ServeHTTP(w, r)
	default:
		c.RespondWithStatus(http.StatusMethodNotAllowed)
		return
	}
}
