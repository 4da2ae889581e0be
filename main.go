package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/microcosm-collective/pantry/breaker"
	"github.com/microcosm-collective/pantry/cache"
	conf "github.com/microcosm-collective/pantry/config"
	"github.com/microcosm-collective/pantry/controller"
	h "github.com/microcosm-collective/pantry/helpers"
	"github.com/microcosm-collective/pantry/metrics"
	"github.com/microcosm-collective/pantry/models"
	"github.com/microcosm-collective/pantry/server"
	"github.com/microcosm-collective/pantry/tracing"
)

const serviceName = "pantry"

var configPath = flag.String("config", conf.ConfigFilePath, "path to the config file")

func main() {
	// Also used to init glog
	flag.Parse()
	defer glog.Flush()

	// 100 megabytes max before rolling the log files
	glog.MaxSize = 1024 * 1024 * 100

	if err := run(); err != nil {
		glog.Errorf("%+v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := conf.Load(*configPath)
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.TracingEndpoint, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			glog.Warningf("tracing shutdown %+v", err)
		}
	}()

	// It is our responsibility to set up the database connection and the
	// cache before we start the server
	dbc := cfg.DBConfig()
	if glog.V(2) {
		glog.Infof(
			"Initialising %s DB connection on %s:%d for database %s",
			dbc.Driver,
			dbc.Host,
			dbc.Port,
			dbc.Database,
		)
	}
	db, err := h.OpenDB(dbc)
	if err != nil {
		return err
	}
	defer db.Close()

	cc := cfg.CacheConfig()
	if glog.V(2) {
		glog.Infof("Initialising %s cache connection to %s", cfg.CacheBackend, cc.Addr())
	}
	cacheClient, err := cache.New(cfg.CacheBackend, cc)
	if err != nil {
		return err
	}
	defer cacheClient.Close()

	m := metrics.New()

	st := cfg.BreakerSettings("store")
	st.IsExcluded = func(err error) bool {
		// A client that goes away says nothing about the store
		return errors.Is(err, context.Canceled)
	}
	st.OnStateChange = func(name string, from breaker.State, to breaker.State) {
		glog.Warningf("breaker %s changed from %s to %s", name, from, to)
		m.ObserveTransition(name, from, to)
	}
	cb := breaker.New(st)
	m.ObserveBreakerState(cb.Name(), cb.State())

	store := models.NewStore(db, dbc.Driver, h.NewWorkers(cfg.Workers))

	hs := &controller.Handlers{
		Foods:     models.NewFoodReader(cacheClient, store, cb, m),
		Catalogue: store,
		Breaker:   cb,
		Cache:     cacheClient,
		DB:        db,
		Metrics:   m,
	}

	if glog.V(2) {
		glog.Infof("Starting server on port %d", cfg.ListenPort)
	}
	return server.StartServer(
		ctx,
		cfg.ListenPort,
		cfg.MaxConnections,
		hs,
		server.Jobs(hs, db, dbc.MinIdle),
	)
}
