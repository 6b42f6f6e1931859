package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CommandDeduper 基于 SET NX 的命令去重，多个权威进程交接时也只执行一次
type CommandDeduper struct {
	client *redis.Client
	world  string
	ttl    time.Duration
}

// NewCommandDeduper 创建去重器
func NewCommandDeduper(client *redis.Client, world string, ttl time.Duration) *CommandDeduper {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CommandDeduper{
		client: client,
		world:  world,
		ttl:    ttl,
	}
}

// FirstSeen 首次出现返回 true
func (d *CommandDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, BuildCommandKey(d.world, key), 1, d.ttl).Result()
}
