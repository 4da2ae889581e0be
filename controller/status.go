package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/golang/glog"
)

// StatusType reports the health of the service's dependencies
type StatusType struct {
	Breaker  BreakerStatusType `json:"breaker"`
	Cache    string            `json:"cache"`
	Database string            `json:"database"`
}

// BreakerStatusType describes the circuit breaker guarding the store
type BreakerStatusType struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	Failures            uint32 `json:"failures"`
	ConsecutiveFailures uint32 `json:"consecutiveFailures"`
}

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

// StatusHandler is a web handler
func (hs *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	c := MakeContext(r, w)

	switch c.GetHTTPMethod() {
	case "OPTIONS":
		c.RespondWithOptions([]string{"OPTIONS", "GET"})
		return
	case "GET":
		hs.readStatus(c)
	default:
		c.RespondWithStatus(http.StatusMethodNotAllowed)
		return
	}
}

// readStatus handles GET. The breaker is only inspected, asking for the
// status never counts as a call to the store.
func (hs *Handlers) readStatus(c *Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	counts := hs.Breaker.Counts()
	m := StatusType{
		Breaker: BreakerStatusType{
			Name:                hs.Breaker.Name(),
			State:               hs.Breaker.State().String(),
			Requests:            counts.Requests,
			Failures:            counts.Failures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		},
		Cache:    statusOK,
		Database: statusOK,
	}

	if err := hs.Cache.Ping(ctx); err != nil {
		glog.Warningf("cache.Ping() %+v", err)
		m.Cache = statusUnavailable
	}

	if err := hs.DB.PingContext(ctx); err != nil {
		glog.Warningf("db.Ping() %+v", err)
		m.Database = statusUnavailable
	}

	c.RespondWithData(m)
}
