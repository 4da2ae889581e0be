// Package migrations holds the schema of the catalogue and applies it.
//
// Postgres is migrated with golang-migrate, which records the applied
// version. SQLite, used for local development and tests, has the up
// migrations applied directly.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/golang/glog"

	h "github.com/microcosm-collective/pantry/helpers"
)

//go:embed sql/*.sql
var files embed.FS

// Up brings the schema of the configured database up to date
func Up(ctx context.Context, c h.DBConfig, db *sql.DB) error {
	if c.Driver == h.DriverSQLite {
		return Apply(ctx, db)
	}

	src, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("iofs.New() %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, c.URL())
	if err != nil {
		return fmt.Errorf("migrate.NewWithSourceInstance() %w", err)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		if glog.V(2) {
			glog.Info("Schema already up to date")
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("m.Up() %w", err)
	}

	return nil
}

// Apply runs every up migration against db in order. The statements are
// idempotent so Apply may be run repeatedly.
func Apply(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(files, "sql/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := files.ReadFile(name)
		if err != nil {
			return err
		}

		for _, stmt := range strings.Split(string(b), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}

		if glog.V(2) {
			glog.Infof("Applied %s", name)
		}
	}

	return nil
}
