// Package redis 权威会话租约与命令去重
package redis

import (
	"fmt"
	"time"
)

const (
	// AuthorityKeyPrefix 权威会话租约 Key 前缀
	AuthorityKeyPrefix = "doors:authority:"

	// CommandKeyPrefix 命令去重 Key 前缀
	CommandKeyPrefix = "doors:cmd:"

	// DefaultLeaseTTL 租约默认 TTL
	DefaultLeaseTTL = 15 * time.Second
)

// BuildAuthorityKey 构建租约 Key
// Key: doors:authority:{world}
func BuildAuthorityKey(world string) string {
	return AuthorityKeyPrefix + world
}

// BuildCommandKey 构建去重 Key
// Key: doors:cmd:{world}:{commandKey}
func BuildCommandKey(world, commandKey string) string {
	return fmt.Sprintf("%s%s:%s", CommandKeyPrefix, world, commandKey)
}
