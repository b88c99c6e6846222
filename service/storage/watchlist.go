package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"PMessenger/logger"
)

const watchlistKeyPrefix = "im:watchlist:"

// WatchlistCache holds recently computed watchlist id sets. It is advisory:
// a miss or a redis error just sends the caller back to the store, and
// entries expire short enough that membership changes surface quickly.
type WatchlistCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewWatchlistCache(rdb *redis.Client, ttl time.Duration) *WatchlistCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &WatchlistCache{rdb: rdb, ttl: ttl}
}

func watchlistKey(userID int64) string {
	return watchlistKeyPrefix + strconv.FormatInt(userID, 10)
}

func (c *WatchlistCache) GetWatchlist(ctx context.Context, userID int64) ([]int64, bool) {
	raw, err := c.rdb.Get(ctx, watchlistKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func (c *WatchlistCache) SetWatchlist(ctx context.Context, userID int64, ids []int64) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, watchlistKey(userID), raw, c.ttl).Err(); err != nil {
		logger.Warnf("[storage] watchlist cache set %d: %v", userID, err)
	}
}
