package querystats

import (
	"context"
	"errors"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/drblury/apienvelope/scope"
)

// RedisHook counts cache hits and misses of read commands on the request
// scope. Install it with client.AddHook.
type RedisHook struct{}

var _ redis.Hook = RedisHook{}

// NewRedisHook returns a hook ready to be added to a go-redis client.
func NewRedisHook() RedisHook {
	return RedisHook{}
}

// DialHook implements redis.Hook.
func (RedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

// ProcessHook implements redis.Hook.
func (RedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		recordRedis(ctx, cmd)
		return err
	}
}

// ProcessPipelineHook implements redis.Hook.
func (RedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		for _, cmd := range cmds {
			recordRedis(ctx, cmd)
		}
		return err
	}
}

func recordRedis(ctx context.Context, cmd redis.Cmder) {
	s, ok := scope.FromContext(ctx)
	if !ok {
		return
	}
	switch cmd.Name() {
	case "get", "getex", "getdel", "hget":
		switch err := cmd.Err(); {
		case err == nil:
			s.RecordCacheHit()
		case errors.Is(err, redis.Nil):
			s.RecordCacheMiss()
		}
	case "mget", "hmget":
		slice, ok := cmd.(*redis.SliceCmd)
		if !ok || slice.Err() != nil {
			return
		}
		for _, v := range slice.Val() {
			if v == nil {
				s.RecordCacheMiss()
			} else {
				s.RecordCacheHit()
			}
		}
	}
}
