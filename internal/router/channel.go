package router

import (
	"context"
	"log/slog"
	"sync"

	"sudooom.trapdoors/internal/proto"
)

// Channel 会话间的消息通道，两种投递方式
type Channel interface {
	// ToAuthority 投递给当前的权威会话，没有权威会话时直接丢弃
	ToAuthority(ctx context.Context, env *proto.Envelope) error
	// ToEveryone 投递给所有在线会话（包括自己）
	ToEveryone(ctx context.Context, env *proto.Envelope) error
}

// Receiver 命令接收端
type Receiver interface {
	Receive(ctx context.Context, env *proto.Envelope) error
}

// LocalBus 进程内通道，单进程部署和测试使用
type LocalBus struct {
	mu        sync.RWMutex
	authority Receiver
	everyone  []Receiver
	logger    *slog.Logger
}

// NewLocalBus 创建进程内通道
func NewLocalBus() *LocalBus {
	return &LocalBus{
		logger: slog.Default(),
	}
}

// AttachAuthority 挂载权威会话的接收端，替换已有的
func (b *LocalBus) AttachAuthority(r Receiver) {
	b.mu.Lock()
	b.authority = r
	b.mu.Unlock()
}

// DetachAuthority 卸载权威会话
func (b *LocalBus) DetachAuthority() {
	b.mu.Lock()
	b.authority = nil
	b.mu.Unlock()
}

// Join 加入广播
func (b *LocalBus) Join(r Receiver) {
	b.mu.Lock()
	b.everyone = append(b.everyone, r)
	b.mu.Unlock()
}

// ToAuthority 同步投递给权威会话
func (b *LocalBus) ToAuthority(ctx context.Context, env *proto.Envelope) error {
	b.mu.RLock()
	r := b.authority
	b.mu.RUnlock()

	if r == nil {
		b.logger.Debug("No authority attached, dropping command",
			"command", env.Command.Name(),
			"interactionId", env.InteractionID)
		return nil
	}
	if err := r.Receive(ctx, env); err != nil {
		b.logger.Debug("Authority rejected command", "command", env.Command.Name(), "error", err)
	}
	return nil
}

// ToEveryone 依次投递给每个会话
func (b *LocalBus) ToEveryone(ctx context.Context, env *proto.Envelope) error {
	b.mu.RLock()
	receivers := make([]Receiver, len(b.everyone))
	copy(receivers, b.everyone)
	b.mu.RUnlock()

	for _, r := range receivers {
		if err := r.Receive(ctx, env); err != nil {
			b.logger.Debug("Session rejected broadcast", "command", env.Command.Name(), "error", err)
		}
	}
	return nil
}
