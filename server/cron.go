package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/golang/glog"

	c "github.com/microcosm-collective/pantry/cache"
	"github.com/microcosm-collective/pantry/controller"
	h "github.com/microcosm-collective/pantry/helpers"
)

// Field name   | Mandatory? | Allowed values  | Allowed special characters
// ----------   | ---------- | --------------  | --------------------------
// Seconds      | Yes        | 0-59            | * / , -
// Minutes      | Yes        | 0-59            | * / , -
// Hours        | Yes        | 0-23            | * / , -
// Day of month | Yes        | 1-31            | * / , - ?
// Month        | Yes        | 1-12 or JAN-DEC | * / , -
// Day of week  | Yes        | 0-6 or SUN-SAT  | * / , - ?

// Jobs returns the periodic jobs keyed by schedule
func Jobs(hs *controller.Handlers, db *sql.DB, minIdle int) map[string]func() {
	return map[string]func(){
		//SS MI HH DOM MON DOW
		"  0  *  *   *   *   *": func() { publishStats(hs, db) }, // Every minute
		" 30  *  *   *   *   *": func() { warmPool(db, minIdle) }, // Every minute at 30s
	}
}

// publishStats refreshes the pool and breaker gauges
func publishStats(hs *controller.Handlers, db *sql.DB) {
	stats := db.Stats()
	hs.Metrics.ObserveDBStats(stats)

	state := hs.Breaker.State()
	hs.Metrics.ObserveBreakerState(hs.Breaker.Name(), state)

	if ps, ok := hs.Cache.(c.PoolStatter); ok {
		total, idle := ps.PoolStats()
		hs.Metrics.ObserveCachePool(total, idle)
	}

	if glog.V(2) {
		counts := hs.Breaker.Counts()
		glog.Infof(
			"db open=%d in_use=%d idle=%d; breaker %s %s requests=%d failures=%d",
			stats.OpenConnections,
			stats.InUse,
			stats.Idle,
			hs.Breaker.Name(),
			state,
			counts.Requests,
			counts.Failures,
		)
	}
}

// warmPool tops the database pool back up to minIdle after connections have
// been retired by their max lifetime
func warmPool(db *sql.DB, minIdle int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := h.WarmPool(ctx, db, minIdle)
	if err != nil {
		glog.Errorf("h.WarmPool(%d) %+v", minIdle, err)
	}
}
