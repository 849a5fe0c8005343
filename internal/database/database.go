// Package database owns the Postgres connection pool and schema migrations
// backing the persistent store, built on pgx/v4 and pgxpool with a
// configurable OpenPool/OpenSingle pair.
package database

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
)

// Config names the Postgres instance backing the store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	PoolSize int
}

func (c Config) connString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return "host=" + c.Host +
		" port=" + strconv.Itoa(port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + sslMode
}

// OpenPool opens a pgxpool.Pool against cfg, suitable for the
// multi-threaded/multi-connection deployment mode.
func OpenPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}
	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return pool, nil
}

// OpenSingle opens a single pgx.Conn, suitable for a single-threaded
// embedded deployment where a pool would be overkill.
func OpenSingle(ctx context.Context, cfg Config) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, cfg.connString())
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return conn, nil
}
