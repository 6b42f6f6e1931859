package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"sudooom.trapdoors/internal/proto"
	"sudooom.trapdoors/internal/router"
)

const maxNotices = 32

// Pauser 会话本地的暂停状态和陷阱通知，实现 router.Broadcaster
type Pauser struct {
	paused  atomic.Bool
	mu      sync.Mutex
	notices []proto.TrapSprung
	logger  *slog.Logger
}

// NewPauser 创建暂停状态
func NewPauser() *Pauser {
	return &Pauser{
		logger: slog.Default(),
	}
}

var _ router.Broadcaster = (*Pauser)(nil)

// PauseForEveryone 暂停游戏，重复调用无副作用
func (p *Pauser) PauseForEveryone(ctx context.Context) {
	if p.paused.CompareAndSwap(false, true) {
		p.logger.Info("Game paused")
	}
}

// TrapSprung 记录陷阱触发通知
func (p *Pauser) TrapSprung(ctx context.Context, sprung *proto.TrapSprung) {
	p.mu.Lock()
	p.notices = append(p.notices, *sprung)
	if len(p.notices) > maxNotices {
		p.notices = p.notices[len(p.notices)-maxNotices:]
	}
	p.mu.Unlock()

	p.logger.Info("Trap sprung",
		"doorId", sprung.DoorID,
		"trapId", sprung.TrapID,
		"trapName", sprung.TrapName,
		"effect", sprung.Effect)
}

// Paused 当前是否暂停
func (p *Pauser) Paused() bool {
	return p.paused.Load()
}

// ResumeForEveryone 主持人广播的恢复命令
func (p *Pauser) ResumeForEveryone(ctx context.Context) {
	p.Resume()
}

// Resume 恢复本会话的游戏
func (p *Pauser) Resume() {
	if p.paused.CompareAndSwap(true, false) {
		p.logger.Info("Game resumed")
	}
}

// Notices 最近的陷阱通知
func (p *Pauser) Notices() []proto.TrapSprung {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]proto.TrapSprung, len(p.notices))
	copy(out, p.notices)
	return out
}
