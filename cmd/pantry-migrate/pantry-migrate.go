package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	conf "github.com/microcosm-collective/pantry/config"
	h "github.com/microcosm-collective/pantry/helpers"
	"github.com/microcosm-collective/pantry/migrations"
)

var configPath = flag.String("config", conf.ConfigFilePath, "path to the config file")

func main() {
	// Also used to init glog
	flag.Parse()
	defer glog.Flush()

	cfg, err := conf.Load(*configPath)
	if err != nil {
		glog.Errorf("%+v", err)
		glog.Flush()
		os.Exit(1)
	}

	dbc := cfg.DBConfig()
	if glog.V(2) {
		glog.Infof(
			"Migrating %s database %s on %s:%d",
			dbc.Driver,
			dbc.Database,
			dbc.Host,
			dbc.Port,
		)
	}

	// Migrations need no warm connections
	dbc.MinIdle = 0
	db, err := h.OpenDB(dbc)
	if err != nil {
		glog.Errorf("%+v", err)
		glog.Flush()
		os.Exit(1)
	}
	defer db.Close()

	err = migrations.Up(context.Background(), dbc, db)
	if err != nil {
		glog.Errorf("migrations.Up() %+v", err)
		glog.Flush()
		os.Exit(1)
	}

	glog.Info("Schema is up to date")
}
