// Package session 单个客户端会话：按键状态、暂停状态和门交互策略
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sudooom.trapdoors/internal/keybind"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/policy"
	"sudooom.trapdoors/internal/router"
)

var ErrUnknownEvent = errors.New("UNKNOWN_EVENT")

// 输入事件类型
const (
	EventKeyDown     = "keydown"
	EventKeyUp       = "keyup"
	EventPointerDown = "pointerdown"
	EventRightDown   = "rightdown"
	EventResume      = "resume"
	EventBlur        = "blur" // 窗口失焦，所有按键视为抬起
)

// Event 一条输入事件
type Event struct {
	Type   string `json:"type"`
	Key    string `json:"key,omitempty"`
	DoorID string `json:"doorId,omitempty"`
}

// Authority 权威标记
type Authority interface {
	IsAuthoritative() bool
}

// Resumer 向所有会话广播恢复命令
type Resumer interface {
	ResumeEveryone(ctx context.Context, in *router.Interaction) error
}

// Session 客户端会话；事件按顺序处理
type Session struct {
	user      model.User
	keys      *keybind.Registry
	pauser    *Pauser
	policy    *policy.Policy
	authority Authority
	resumer   Resumer
	logger    *slog.Logger
}

// New 创建会话
func New(user model.User, pol *policy.Policy, pauser *Pauser, authority Authority) *Session {
	return &Session{
		user:      user,
		keys:      keybind.NewRegistry(user.IsGM),
		pauser:    pauser,
		policy:    pol,
		authority: authority,
		logger:    slog.Default().With("userId", user.ID),
	}
}

// WithResumer 设置恢复广播，权威会话使用
func (s *Session) WithResumer(r Resumer) *Session {
	s.resumer = r
	return s
}

// User 会话用户
func (s *Session) User() model.User {
	return s.user
}

// Keys 按键绑定
func (s *Session) Keys() *keybind.Registry {
	return s.keys
}

// Pauser 暂停状态
func (s *Session) Pauser() *Pauser {
	return s.pauser
}

// Rebind 按配置覆盖按键绑定，key 为动作名
func (s *Session) Rebind(bindings map[string]string) error {
	for action, key := range bindings {
		if err := s.keys.Rebind(keybind.Action(action), key); err != nil {
			return fmt.Errorf("rebind %s: %w", action, err)
		}
	}
	return nil
}

func (s *Session) interaction(doorID string) *policy.Interaction {
	return &policy.Interaction{
		User:          s.user,
		DoorID:        doorID,
		Modifiers:     s.keys.Snapshot(),
		Paused:        s.pauser.Paused(),
		Authoritative: s.authority.IsAuthoritative(),
	}
}

// PointerDown 左键点击门
func (s *Session) PointerDown(ctx context.Context, doorID string) policy.Outcome {
	out := s.policy.Evaluate(ctx, s.interaction(doorID))
	s.logger.Debug("Pointer down", "doorId", doorID, "handled", out.Handled, "stage", out.Stage)
	return out
}

// RightDown 右键点击门
func (s *Session) RightDown(ctx context.Context, doorID string) policy.Outcome {
	out := s.policy.EvaluateSecondary(ctx, s.interaction(doorID))
	s.logger.Debug("Right down", "doorId", doorID, "handled", out.Handled, "stage", out.Stage)
	return out
}

// resume 只有权威会话可以恢复游戏，恢复命令广播给所有会话
func (s *Session) resume(ctx context.Context) policy.Outcome {
	if !s.authority.IsAuthoritative() || !s.user.IsGM {
		s.logger.Warn("Resume ignored on non-authoritative session")
		return policy.Outcome{}
	}

	s.pauser.Resume()
	if s.resumer != nil {
		if err := s.resumer.ResumeEveryone(ctx, nil); err != nil {
			s.logger.Error("Failed to broadcast resume", "error", err)
		}
	}
	return policy.Outcome{Handled: true}
}

// Handle 处理一条输入事件
func (s *Session) Handle(ctx context.Context, ev Event) (policy.Outcome, error) {
	switch ev.Type {
	case EventKeyDown:
		return policy.Outcome{Handled: s.keys.KeyDown(ev.Key)}, nil
	case EventKeyUp:
		return policy.Outcome{Handled: s.keys.KeyUp(ev.Key)}, nil
	case EventPointerDown:
		return s.PointerDown(ctx, ev.DoorID), nil
	case EventRightDown:
		return s.RightDown(ctx, ev.DoorID), nil
	case EventResume:
		return s.resume(ctx), nil
	case EventBlur:
		s.keys.Reset()
		return policy.Outcome{Handled: true}, nil
	default:
		return policy.Outcome{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}

var _ Authority = (*router.Authority)(nil)
