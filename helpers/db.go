package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/golang/glog"

	// Database drivers, selected by DBConfig.Driver
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database drivers understood by OpenDB
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBConfig stores the connection information used by OpenDB to establish a
// connection pool to the database
type DBConfig struct {
	Driver   string
	Host     string
	Port     int64
	Database string
	Username string
	Password string

	// Path is the database file when Driver is sqlite
	Path string

	MaxOpen     int
	MinIdle     int
	MaxLifetime time.Duration
}

// DataSourceName returns the connection string for the configured driver
func (c DBConfig) DataSourceName() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}

	return fmt.Sprintf(
		"user=%s dbname=%s host=%s port=%d password=%s sslmode=%s",
		c.Username,
		c.Database,
		c.Host,
		c.Port,
		c.Password,
		"disable",
	)
}

// URL returns the connection string in URL form, as used by migrations
func (c DBConfig) URL() string {
	if c.Driver == DriverSQLite {
		return "sqlite://" + c.Path
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// OpenDB establishes the connection pool to the database, checks that it is
// reachable and warms MinIdle connections
func OpenDB(c DBConfig) (*sql.DB, error) {
	driver := c.Driver
	if driver == "" {
		driver = DriverPostgres
	}

	db, err := sql.Open(driver, c.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	// PostgreSQL max is 100, MaxOpen should stay below that as there may be
	// connections from monitoring apps, migrations in process or active
	// debugging by staff
	if c.MaxOpen > 0 {
		db.SetMaxOpenConns(c.MaxOpen)
		db.SetMaxIdleConns(c.MaxOpen)
	}

	// Connections older than this are closed and replaced on next use, which
	// recycles connections over time
	if c.MaxLifetime > 0 {
		db.SetConnMaxLifetime(c.MaxLifetime)
	}

	err = WarmPool(ctx, db, c.MinIdle)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// WarmPool opens connections until at least minIdle are idle in the pool.
// database/sql only ever caps idle connections, so this is called at startup
// and again periodically to top the pool back up after connections retire.
func WarmPool(ctx context.Context, db *sql.DB, minIdle int) error {
	stats := db.Stats()
	if stats.Idle >= minIdle {
		return nil
	}

	// Holding want connections at once forces the pool to open new ones
	// rather than handing back the same idle connection
	want := minIdle
	if stats.MaxOpenConnections > 0 && want > stats.MaxOpenConnections {
		want = stats.MaxOpenConnections
	}

	conns := make([]*sql.Conn, 0, want)
	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()

	for i := 0; i < want; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("could not warm connection pool: %w", err)
		}
		conns = append(conns, conn)
	}

	if glog.V(2) {
		glog.Infof("Warmed %d database connections", len(conns))
	}

	return nil
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites postgres positional parameters ($1) for the given driver.
// SQLite takes ?1 as the equivalent.
func Rebind(driver string, query string) string {
	if driver != DriverSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}
