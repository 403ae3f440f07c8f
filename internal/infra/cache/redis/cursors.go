// Package redis keeps per-device read cursors in Redis so every instance
// behind the load balancer sees the same unread state.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"campusmarket/internal/app/unread"
)

// advanceScript stores ARGV[1] only when it is newer than the current value.
var advanceScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

type CursorStore struct {
	client *goredis.Client
	prefix string
}

// NewClient connects and pings; the caller owns Close.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func NewCursorStore(client *goredis.Client, prefix string) *CursorStore {
	if prefix == "" {
		prefix = "campusmarket"
	}
	return &CursorStore{client: client, prefix: prefix}
}

func (s *CursorStore) key(userID, deviceID string) string {
	return fmt.Sprintf("%s:cursor:%s:%s", s.prefix, userID, deviceID)
}

func (s *CursorStore) LastSeen(ctx context.Context, userID, deviceID string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.key(userID, deviceID)).Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis cursor %s: %w", s.key(userID, deviceID), err)
	}
	return time.Unix(0, ns).UTC(), true, nil
}

// SetLastSeen never moves a cursor backwards.
func (s *CursorStore) SetLastSeen(ctx context.Context, userID, deviceID string, at time.Time) error {
	return advanceScript.Run(ctx, s.client, []string{s.key(userID, deviceID)}, at.UTC().UnixNano()).Err()
}

// Ping backs the readiness check.
func (s *CursorStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ unread.CursorStore = (*CursorStore)(nil)
