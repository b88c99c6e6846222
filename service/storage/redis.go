package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	pkgerrors "github.com/pkg/errors"
)

// NewRedis connects and pings so misconfiguration fails at boot, not on
// the first presence write.
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "redis ping")
	}
	return rdb, nil
}
