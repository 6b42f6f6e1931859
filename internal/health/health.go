package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"sudooom.trapdoors/internal/task"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusDisabled     = "disabled" // 本会话未配置该依赖
)

// Status 健康状态
type Status struct {
	NATS      string      `json:"nats"`
	Redis     string      `json:"redis"`
	Database  string      `json:"database"`
	Authority bool        `json:"authority"`
	Scheduler *task.Stats `json:"scheduler,omitempty"`
	Buffer    *Buffer     `json:"buffer,omitempty"`
}

// Buffer 命令接收缓冲区
type Buffer struct {
	Current  int `json:"current"`
	Capacity int `json:"capacity"`
}

// Healthy 所有已配置的依赖都已连接
func (s *Status) Healthy() bool {
	return s.NATS != StatusDisconnected &&
		s.Redis != StatusDisconnected &&
		s.Database != StatusDisconnected
}

// Authority 权威标记
type Authority interface {
	IsAuthoritative() bool
}

// StatsSource 调度器状态
type StatsSource interface {
	Stats() task.Stats
}

// BufferSource 命令订阅者的缓冲区
type BufferSource interface {
	GetBufferUsage() (current int, capacity int)
}

// Checker 健康检查器，未配置的依赖传 nil
type Checker struct {
	nc          *nats.Conn
	redisClient *redis.Client
	db          *pgxpool.Pool
	authority   Authority
	scheduler   StatsSource
	buffer      BufferSource
}

// NewChecker 创建健康检查器
func NewChecker(nc *nats.Conn, redisClient *redis.Client, db *pgxpool.Pool) *Checker {
	return &Checker{
		nc:          nc,
		redisClient: redisClient,
		db:          db,
	}
}

// WithAuthority 在状态中附带本会话是否为权威会话
func (h *Checker) WithAuthority(a Authority) *Checker {
	h.authority = a
	return h
}

// WithScheduler 在状态中附带陷阱删除调度器的状态
func (h *Checker) WithScheduler(s StatsSource) *Checker {
	h.scheduler = s
	return h
}

// WithBuffer 在状态中附带命令缓冲区的使用情况
func (h *Checker) WithBuffer(b BufferSource) *Checker {
	h.buffer = b
	return h
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		NATS:     StatusDisabled,
		Redis:    StatusDisabled,
		Database: StatusDisabled,
	}

	// 检查 NATS
	if h.nc != nil {
		if h.nc.IsConnected() {
			status.NATS = StatusConnected
		} else {
			status.NATS = StatusDisconnected
		}
	}

	// 检查 Redis
	if h.redisClient != nil {
		redisCtx, redisCancel := context.WithTimeout(ctx, 2*time.Second)
		defer redisCancel()

		if err := h.redisClient.Ping(redisCtx).Err(); err == nil {
			status.Redis = StatusConnected
		} else {
			status.Redis = StatusDisconnected
		}
	}

	// 检查 PostgreSQL
	if h.db != nil {
		dbCtx, dbCancel := context.WithTimeout(ctx, 2*time.Second)
		defer dbCancel()

		if err := h.db.Ping(dbCtx); err == nil {
			status.Database = StatusConnected
		} else {
			status.Database = StatusDisconnected
		}
	}

	if h.authority != nil {
		status.Authority = h.authority.IsAuthoritative()
	}
	if h.scheduler != nil {
		stats := h.scheduler.Stats()
		status.Scheduler = &stats
	}
	if h.buffer != nil {
		current, capacity := h.buffer.GetBufferUsage()
		status.Buffer = &Buffer{Current: current, Capacity: capacity}
	}

	return status
}

// IsHealthy 检查是否健康
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Healthy()
}

// ServeHTTP HTTP 健康检查端点
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy() {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
