package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TTL on presence keys. A live connection refreshes its key from the
// websocket ping loop, so a key only expires when the process dies
// without running the disconnect path.
const keyTTL = 90 * time.Second

// Tracker records which usernames currently have an open realtime
// connection. Presence is advisory UI state, so every method degrades
// to "offline" on Redis errors instead of failing the caller.
type Tracker struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewTracker(rdb *redis.Client, logger *zap.Logger) *Tracker {
	return &Tracker{rdb: rdb, logger: logger}
}

func key(username string) string {
	return "presence:" + username
}

// Online marks the user as connected. Also used as the heartbeat
// refresh.
func (t *Tracker) Online(ctx context.Context, username string) {
	if err := t.rdb.Set(ctx, key(username), "1", keyTTL).Err(); err != nil {
		t.logger.Warn("presence set failed", zap.String("username", username), zap.Error(err))
	}
}

// Offline clears the user's presence key. Connections with multiple
// tabs re-mark themselves on the next heartbeat, so a single tab
// closing flickers at worst.
func (t *Tracker) Offline(ctx context.Context, username string) {
	if err := t.rdb.Del(ctx, key(username)).Err(); err != nil {
		t.logger.Warn("presence del failed", zap.String("username", username), zap.Error(err))
	}
}

// ListOnline reports which of the given usernames are online, in one
// pipelined round trip.
func (t *Tracker) ListOnline(ctx context.Context, usernames []string) (map[string]bool, error) {
	online := make(map[string]bool, len(usernames))
	if len(usernames) == 0 {
		return online, nil
	}

	cmds := make([]*redis.IntCmd, len(usernames))
	pipe := t.rdb.Pipeline()
	for i, name := range usernames {
		cmds[i] = pipe.Exists(ctx, key(name))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("presence pipeline: %w", err)
	}

	for i, name := range usernames {
		online[name] = cmds[i].Val() > 0
	}
	return online, nil
}
