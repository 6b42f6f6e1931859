// Package nats 会话之间的命令总线
package nats

import (
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"sudooom.trapdoors/internal/config"
)

const (
	connectTimeout = 10 * time.Second
	drainTimeout   = 5 * time.Second
)

// Client 一个会话持有的 NATS 连接
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewClient 连接 NATS，name 用于在服务端区分会话
func NewClient(cfg config.NATSConfig, name string) (*Client, error) {
	logger := slog.Default().With("component", "NATS", "session", name)

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.DrainTimeout(drainTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			// 断线期间发往权威会话的命令会被丢弃
			logger.Warn("Command bus disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Command bus reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("Command bus error", "subject", subject, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn, logger: logger}, nil
}

// Conn 底层连接
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Drain 投递完已发布的命令和已收到的消息后关闭连接
func (c *Client) Drain() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if err := c.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}

// Close 立即关闭连接
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
