// Package config 进程配置：configs/config.yaml + DOORS_* 环境变量覆盖
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Session   SessionConfig   `mapstructure:"session"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Authority AuthorityConfig `mapstructure:"authority"`
	Trap      TrapConfig      `mapstructure:"trap"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Settings  map[string]any  `mapstructure:"settings"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	World    string `mapstructure:"world"`
	System   string `mapstructure:"system"`
}

// SessionConfig 本进程代表的会话；角色和角色卡以用户目录为准
type SessionConfig struct {
	UserID       string            `mapstructure:"user_id"`
	Password     string            `mapstructure:"password"`
	AuthorityURL string            `mapstructure:"authority_url"` // 玩家会话向权威会话换取令牌
	NodeID       int64             `mapstructure:"node_id"`
	Keybindings  map[string]string `mapstructure:"keybindings"` // 动作名 -> 按键代码
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	BufferSize    int           `mapstructure:"buffer_size"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConns        int32         `mapstructure:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN PostgreSQL 连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// AuthConfig 令牌密钥，base64 编码；signing_key 只配置在权威会话上
type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	PublicKey  string        `mapstructure:"public_key"`
	Expire     time.Duration `mapstructure:"expire"`
}

// AuthorityConfig 权威会话租约
type AuthorityConfig struct {
	LeaseTTL        time.Duration `mapstructure:"lease_ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	DedupeTTL       time.Duration `mapstructure:"dedupe_ttl"`
}

type TrapConfig struct {
	Folder         string        `mapstructure:"folder"`
	Lifetime       time.Duration `mapstructure:"lifetime"`
	ExtendOnReuse  bool          `mapstructure:"extend_on_reuse"`
	CompendiumPath string        `mapstructure:"compendium_path"`
}

type SchedulerConfig struct {
	Workers int           `mapstructure:"workers"`
	Tick    time.Duration `mapstructure:"tick"`
}

type HTTPConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// Load 从指定路径加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 从环境变量覆盖配置
	cfg.applyEnv()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trapped-doors")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.world", "default")
	v.SetDefault("app.system", "dnd5e")
	v.SetDefault("session.authority_url", "http://localhost:8090")
	v.SetDefault("session.node_id", 1)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.buffer_size", 1024)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("auth.expire", 24*time.Hour)
	v.SetDefault("authority.lease_ttl", 15*time.Second)
	v.SetDefault("authority.refresh_interval", 5*time.Second)
	v.SetDefault("authority.dedupe_ttl", time.Minute)
	v.SetDefault("trap.folder", "Door Traps")
	v.SetDefault("trap.lifetime", 5*time.Minute)
	v.SetDefault("trap.extend_on_reuse", false)
	v.SetDefault("trap.compendium_path", "configs/compendium.yaml")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.tick", time.Second)
	v.SetDefault("http.port", 8090)
	v.SetDefault("http.mode", "release")
}

// applyEnv 从环境变量覆盖配置
func (c *Config) applyEnv() {
	// App
	c.App.LogLevel = GetEnv("DOORS_LOG_LEVEL", c.App.LogLevel)
	c.App.World = GetEnv("DOORS_WORLD", c.App.World)
	c.App.System = GetEnv("DOORS_SYSTEM", c.App.System)

	// Session
	c.Session.UserID = GetEnv("DOORS_USER_ID", c.Session.UserID)
	c.Session.Password = GetEnv("DOORS_PASSWORD", c.Session.Password)
	c.Session.AuthorityURL = GetEnv("DOORS_AUTHORITY_URL", c.Session.AuthorityURL)
	c.Session.NodeID = int64(GetEnvInt("DOORS_NODE_ID", int(c.Session.NodeID)))

	// NATS
	c.NATS.URL = GetEnv("DOORS_NATS_URL", c.NATS.URL)

	// Redis
	c.Redis.Host = GetEnv("DOORS_REDIS_HOST", c.Redis.Host)
	c.Redis.Port = GetEnvInt("DOORS_REDIS_PORT", c.Redis.Port)
	c.Redis.Password = GetEnv("DOORS_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = GetEnvInt("DOORS_REDIS_DB", c.Redis.DB)

	// Database
	c.Database.Host = GetEnv("DOORS_POSTGRES_HOST", c.Database.Host)
	c.Database.Port = GetEnvInt("DOORS_POSTGRES_PORT", c.Database.Port)
	c.Database.User = GetEnv("DOORS_POSTGRES_USER", c.Database.User)
	c.Database.Password = GetEnv("DOORS_POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Name = GetEnv("DOORS_POSTGRES_DB", c.Database.Name)

	// Auth
	c.Auth.SigningKey = GetEnv("DOORS_AUTH_SIGNING_KEY", c.Auth.SigningKey)
	c.Auth.PublicKey = GetEnv("DOORS_AUTH_PUBLIC_KEY", c.Auth.PublicKey)
	c.Auth.Expire = GetEnvDuration("DOORS_AUTH_EXPIRE", c.Auth.Expire)

	// Trap
	c.Trap.Lifetime = GetEnvDuration("DOORS_TRAP_LIFETIME", c.Trap.Lifetime)
	c.Trap.ExtendOnReuse = GetEnvBool("DOORS_TRAP_EXTEND_ON_REUSE", c.Trap.ExtendOnReuse)

	// HTTP
	c.HTTP.Port = GetEnvInt("DOORS_HTTP_PORT", c.HTTP.Port)
}

// SlogLevel 解析日志级别，无法识别时为 info
func (c AppConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
