package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	pkgerrors "github.com/pkg/errors"
)

const presenceKeyPrefix = "im:presence:"

// Presence tracks who is online via per-user TTL keys in redis. The
// gateway refreshes the key on connect and heartbeat; absence of the key
// after the TTL means offline, so an unclean disconnect needs no cleanup.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresence(rdb *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Presence{rdb: rdb, ttl: ttl}
}

func presenceKey(userID int64) string {
	return presenceKeyPrefix + strconv.FormatInt(userID, 10)
}

// Online marks the user online, refreshing the TTL. Called on connect and
// on every heartbeat.
func (p *Presence) Online(ctx context.Context, userID int64) error {
	err := p.rdb.Set(ctx, presenceKey(userID), "1", p.ttl).Err()
	return pkgerrors.Wrap(err, "presence set")
}

// Offline removes the key immediately on a clean disconnect.
func (p *Presence) Offline(ctx context.Context, userID int64) error {
	err := p.rdb.Del(ctx, presenceKey(userID)).Err()
	return pkgerrors.Wrap(err, "presence del")
}

// OnlineSet checks a batch of users in one pipeline round trip and
// satisfies the service's Presence contract.
func (p *Presence) OnlineSet(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	pipe := p.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Exists(ctx, presenceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "presence exists")
	}
	for i, id := range userIDs {
		out[id] = cmds[i].Val() > 0
	}
	return out, nil
}
