/*-------------------------------------------------------------------------
 *
 * connection.go
 *    Database connection management for NeuronBoard
 *
 * Opens PostgreSQL (lib/pq) or SQLite (glebarez/go-sqlite) through sqlx
 * with retry, pool sizing and embedded schema migrations.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/connection.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"context"
	"embed"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/neurondb/NeuronBoard/internal/metrics"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

/* DB manages the database handle */
type DB struct {
	*sqlx.DB
	driver   string
	connInfo string
}

/* PoolConfig sizes the connection pool */
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

/* NewDB creates a new database instance */
func NewDB(driver, dsn string, poolConfig PoolConfig) (*DB, error) {
	return NewDBWithRetry(driver, dsn, poolConfig, 3, 2*time.Second)
}

/* NewDBWithRetry creates a new database instance with retry logic */
func NewDBWithRetry(driver, dsn string, poolConfig PoolConfig, maxRetries int, retryDelay time.Duration) (*DB, error) {
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
		/* SQLite serializes writers; one connection avoids SQLITE_BUSY */
		poolConfig.MaxOpenConns = 1
		poolConfig.MaxIdleConns = 1
	}
	connInfo := describeDSN(driver, dsn)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		db, err := sqlx.Connect(driver, dsn)
		if err == nil {
			if poolConfig.MaxOpenConns > 0 {
				db.SetMaxOpenConns(poolConfig.MaxOpenConns)
			}
			if poolConfig.MaxIdleConns > 0 {
				db.SetMaxIdleConns(poolConfig.MaxIdleConns)
			}
			db.SetConnMaxLifetime(poolConfig.ConnMaxLifetime)
			db.SetConnMaxIdleTime(poolConfig.ConnMaxIdleTime)

			metrics.InfoWithContext(context.Background(), "Database connection established", map[string]interface{}{
				"attempt":    attempt + 1,
				"driver":     driver,
				"connection": connInfo,
			})
			return &DB{DB: db, driver: driver, connInfo: connInfo}, nil
		}
		lastErr = err

		metrics.WarnWithContext(context.Background(), "Database connection failed, will retry", map[string]interface{}{
			"attempt":     attempt + 1,
			"max_retries": maxRetries,
			"error":       err.Error(),
			"connection":  connInfo,
		})
		if attempt < maxRetries-1 {
			/* ±25% jitter */
			jitter := float64(retryDelay) * 0.25
			time.Sleep(retryDelay + time.Duration(jitter*(rand.Float64()*2-1)))
			retryDelay *= 2
		}
	}
	return nil, fmt.Errorf("database connection failed after %d attempts: driver='%s', connection='%s', error=%w",
		maxRetries, driver, connInfo, lastErr)
}

/* Driver returns the driver name */
func (d *DB) Driver() string {
	return d.driver
}

/* GetConnInfoString returns a password-free description of the connection */
func (d *DB) GetConnInfoString() string {
	return d.connInfo
}

/* HealthCheck pings the database */
func (d *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := d.PingContext(ctx); err != nil {
		return fmt.Errorf("health check failed: connection='%s', error=%w", d.connInfo, err)
	}
	return nil
}

/* Migrate applies the embedded schema for the active driver */
func (d *DB) Migrate(ctx context.Context) error {
	name := "migrations/postgres.sql"
	if d.driver == DriverSQLite {
		name = "migrations/sqlite.sql"
	}
	schema, err := migrationFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("migration read failed: file='%s', error=%w", name, err)
	}
	if _, err := d.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("migration failed: file='%s', connection='%s', error=%w", name, d.connInfo, err)
	}
	metrics.InfoWithContext(ctx, "Database schema applied", map[string]interface{}{
		"driver": d.driver,
	})
	return nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func describeDSN(driver, dsn string) string {
	if driver == DriverSQLite {
		if i := strings.Index(dsn, "?"); i >= 0 {
			return "sqlite:" + dsn[:i]
		}
		return "sqlite:" + dsn
	}
	var host, port, name string
	for _, part := range strings.Fields(dsn) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "host":
			host = kv[1]
		case "port":
			port = kv[1]
		case "dbname":
			name = kv[1]
		}
	}
	return fmt.Sprintf("%s:%s/%s", host, port, name)
}
