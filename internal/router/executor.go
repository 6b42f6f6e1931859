package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sudooom.trapdoors/internal/auth"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/proto"
)

// Sender 命令发送者（由令牌解析得到）
type Sender struct {
	UserID      string
	CharacterID string
	IsGM        bool
}

// DoorHandler 权威会话上执行的门操作
type DoorHandler interface {
	OpenDoor(ctx context.Context, sender Sender, doorID string) error
	PeekTheDoor(ctx context.Context, sender Sender, doorID string) error
	DisarmTrap(ctx context.Context, sender Sender, doorID string, rearm bool) error
	TripTrap(ctx context.Context, sender Sender, doorID string) error
	ToggleLock(ctx context.Context, sender Sender, doorID string, state model.DoorState) error
	RevealDoor(ctx context.Context, sender Sender, doorID string) error
}

// Broadcaster 每个会话本地执行的广播命令
type Broadcaster interface {
	PauseForEveryone(ctx context.Context)
	ResumeForEveryone(ctx context.Context)
	TrapSprung(ctx context.Context, sprung *proto.TrapSprung)
}

// TokenVerifier 令牌校验
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Executor 接收端：校验、去重，再分发到门操作或广播处理
type Executor struct {
	verifier    TokenVerifier
	deduper     Deduper
	local       *MemoryDeduper
	doors       DoorHandler
	broadcaster Broadcaster
	authority   *Authority
	mu          sync.Mutex // 权威命令串行执行
	logger      *slog.Logger
}

// NewExecutor 创建接收端；deduper 为 nil 时使用进程内去重
func NewExecutor(verifier TokenVerifier, deduper Deduper, doors DoorHandler, broadcaster Broadcaster) *Executor {
	local := NewMemoryDeduper(time.Minute)
	if deduper == nil {
		deduper = local
	}
	return &Executor{
		verifier:    verifier,
		deduper:     deduper,
		local:       local,
		doors:       doors,
		broadcaster: broadcaster,
		authority:   &Authority{},
		logger:      slog.Default(),
	}
}

// WithAuthority 与其他组件共享权威标记
func (e *Executor) WithAuthority(a *Authority) *Executor {
	e.authority = a
	return e
}

// SetAuthoritative 设置本会话是否为权威会话
func (e *Executor) SetAuthoritative(v bool) {
	e.authority.Set(v)
}

// IsAuthoritative 本会话是否为权威会话
func (e *Executor) IsAuthoritative() bool {
	return e.authority.IsAuthoritative()
}

// Receive 处理一条命令
func (e *Executor) Receive(ctx context.Context, env *proto.Envelope) error {
	cmd := env.Command
	if cmd.Name() == "" {
		e.logger.Warn("Received empty command", "senderId", env.SenderID)
		return ErrEmptyCommand
	}
	if env.Mode != cmd.Mode() {
		e.logger.Warn("Delivery mode mismatch",
			"command", cmd.Name(),
			"mode", env.Mode,
			"senderId", env.SenderID)
		return ErrModeMismatch
	}

	sender, err := e.identify(env)
	if err != nil {
		e.logger.Warn("Rejected command with invalid token",
			"command", cmd.Name(),
			"senderId", env.SenderID,
			"error", err)
		return err
	}

	// 广播命令只在本会话去重；权威命令可以使用共享去重
	dedupe := Deduper(e.local)
	if env.Mode == proto.ModeAuthority {
		dedupe = e.deduper
	}
	key := fmt.Sprintf("%s:%d:%s", sender.UserID, env.InteractionID, cmd.Key())
	first, err := dedupe.FirstSeen(ctx, key)
	if err != nil {
		e.logger.Warn("Dedupe lookup failed, executing anyway", "key", key, "error", err)
		first = true
	}
	if !first {
		e.logger.Debug("Duplicate command dropped", "command", cmd.Name(), "key", key)
		return ErrDuplicateCommand
	}

	if env.Mode == proto.ModeEveryone {
		return e.broadcast(ctx, sender, cmd)
	}

	if !e.IsAuthoritative() {
		e.logger.Warn("Authority command received on non-authoritative session",
			"command", cmd.Name(),
			"doorId", cmd.DoorID(),
			"senderId", sender.UserID)
		return ErrNotAuthoritative
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.execute(ctx, sender, cmd); err != nil {
		e.logger.Warn("Command failed",
			"command", cmd.Name(),
			"doorId", cmd.DoorID(),
			"senderId", sender.UserID,
			"error", err)
		return err
	}
	return nil
}

func (e *Executor) identify(env *proto.Envelope) (Sender, error) {
	if e.verifier == nil {
		return Sender{UserID: env.SenderID}, nil
	}
	if env.Token == "" {
		return Sender{}, ErrUnauthenticated
	}
	claims, err := e.verifier.Verify(env.Token)
	if err != nil {
		return Sender{}, errors.Join(ErrUnauthenticated, err)
	}
	if env.SenderID != "" && env.SenderID != claims.UserID {
		return Sender{}, ErrUnauthenticated
	}
	return Sender{
		UserID:      claims.UserID,
		CharacterID: claims.CharacterID,
		IsGM:        claims.IsGM(),
	}, nil
}

func (e *Executor) broadcast(ctx context.Context, sender Sender, cmd proto.Command) error {
	if e.broadcaster == nil {
		return ErrNoHandler
	}
	switch {
	case cmd.PauseAll != nil:
		e.broadcaster.PauseForEveryone(ctx)
	case cmd.ResumeAll != nil:
		if !sender.IsGM {
			e.logger.Warn("Resume refused from non-GM sender", "senderId", sender.UserID)
			return ErrForbidden
		}
		e.broadcaster.ResumeForEveryone(ctx)
	case cmd.TrapSprung != nil:
		e.broadcaster.TrapSprung(ctx, cmd.TrapSprung)
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, sender Sender, cmd proto.Command) error {
	if e.doors == nil {
		return ErrNoHandler
	}
	switch {
	case cmd.OpenDoor != nil:
		return e.doors.OpenDoor(ctx, sender, cmd.OpenDoor.DoorID)
	case cmd.PeekDoor != nil:
		return e.doors.PeekTheDoor(ctx, sender, cmd.PeekDoor.DoorID)
	case cmd.DisarmTrap != nil:
		return e.doors.DisarmTrap(ctx, sender, cmd.DisarmTrap.DoorID, cmd.DisarmTrap.Rearm)
	case cmd.TripTrap != nil:
		return e.doors.TripTrap(ctx, sender, cmd.TripTrap.DoorID)
	case cmd.ToggleLock != nil:
		return e.doors.ToggleLock(ctx, sender, cmd.ToggleLock.DoorID, cmd.ToggleLock.State)
	case cmd.RevealDoor != nil:
		return e.doors.RevealDoor(ctx, sender, cmd.RevealDoor.DoorID)
	}
	return ErrEmptyCommand
}
