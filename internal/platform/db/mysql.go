package db

import (
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// MySQLDSN builds a go-sql-driver DSN. DATE columns are returned as text so
// record dates never pass through a time zone conversion.
func MySQLDSN(opts Options) string {
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	cfg.DBName = opts.Name
	cfg.ParseTime = false
	return cfg.FormatDSN()
}

// NewMySQL opens a MySQL pool. database/sql dials lazily, so an unreachable
// server surfaces on the first query or Ping.
func NewMySQL(opts Options) (*sql.DB, error) {
	pool, err := sql.Open("mysql", MySQLDSN(opts))
	if err != nil {
		return nil, fmt.Errorf("platform/db: open mysql: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(opts.MaxOpenConns)
		pool.SetMaxIdleConns(opts.MaxOpenConns)
	}
	pool.SetConnMaxLifetime(connMaxLifetime)
	pool.SetConnMaxIdleTime(connMaxIdleTime)
	return pool, nil
}
