// Package db opens the stock database connection pools.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Options describes a database endpoint independent of the driver.
type Options struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
}

const (
	pingTimeout     = 5 * time.Second
	connMaxLifetime = 30 * time.Minute
	connMaxIdleTime = 5 * time.Minute
)

// ErrUnreachable reports a failed connectivity check.
var ErrUnreachable = errors.New("platform/db: database unreachable")

// Ping runs a pool's ping under a bounded timeout.
func Ping(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return nil
}
