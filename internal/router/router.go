package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/proto"
	"sudooom.trapdoors/internal/snowflake"
)

// AuthorityProbe 查询是否有权威会话在线
type AuthorityProbe interface {
	AuthorityOnline(ctx context.Context) (bool, error)
}

// Identity 发送方身份
type Identity struct {
	UserID string
	Token  string
}

// Interaction 一次指针事件，同一事件内的重复命令只发送一次
type Interaction struct {
	ID int64

	mu   sync.Mutex
	sent map[string]struct{}
}

// mark 记录命令，已发送过返回 false
func (in *Interaction) mark(key string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.sent[key]; ok {
		return false
	}
	in.sent[key] = struct{}{}
	return true
}

// Sent 本次事件已发送的命令数
func (in *Interaction) Sent() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.sent)
}

// Router 发送端路由：把门操作包装成命令并选择投递方式
//
// 权威会话自己触发的操作也走这里，不做特殊处理。
type Router struct {
	channel  Channel
	node     *snowflake.Node
	identity Identity
	probe    AuthorityProbe
	logger   *slog.Logger
}

// NewRouter 创建路由
func NewRouter(channel Channel, node *snowflake.Node, identity Identity) *Router {
	return &Router{
		channel:  channel,
		node:     node,
		identity: identity,
		logger:   slog.Default(),
	}
}

// WithProbe 设置权威会话探测，仅用于在命令被丢弃前记录日志
func (r *Router) WithProbe(probe AuthorityProbe) *Router {
	r.probe = probe
	return r
}

// Begin 开始一次交互
func (r *Router) Begin() *Interaction {
	return &Interaction{
		ID:   int64(r.node.Generate()),
		sent: make(map[string]struct{}),
	}
}

// OpenDoor 请求权威会话打开门
func (r *Router) OpenDoor(ctx context.Context, in *Interaction, doorID string) error {
	return r.send(ctx, in, proto.Command{OpenDoor: &proto.OpenDoor{DoorID: doorID}})
}

// PauseEveryone 所有会话暂停
func (r *Router) PauseEveryone(ctx context.Context, in *Interaction) error {
	return r.send(ctx, in, proto.Command{PauseAll: &proto.PauseAll{}})
}

// ResumeEveryone 所有会话恢复游戏
func (r *Router) ResumeEveryone(ctx context.Context, in *Interaction) error {
	return r.send(ctx, in, proto.Command{ResumeAll: &proto.ResumeAll{}})
}

// TripTrap 请求权威会话触发陷阱
func (r *Router) TripTrap(ctx context.Context, in *Interaction, doorID string) error {
	return r.send(ctx, in, proto.Command{TripTrap: &proto.TripTrap{DoorID: doorID}})
}

// ToggleLock 请求权威会话写入锁状态
func (r *Router) ToggleLock(ctx context.Context, in *Interaction, doorID string, state model.DoorState) error {
	return r.send(ctx, in, proto.Command{ToggleLock: &proto.ToggleLock{DoorID: doorID, State: state}})
}

// PeekDoor 请求权威会话偷看 / 取消偷看
func (r *Router) PeekDoor(ctx context.Context, in *Interaction, doorID string) error {
	return r.send(ctx, in, proto.Command{PeekDoor: &proto.PeekDoor{DoorID: doorID}})
}

// DisarmTrap 请求权威会话解除（rearm 为 true 时重新激活）陷阱
func (r *Router) DisarmTrap(ctx context.Context, in *Interaction, doorID string, rearm bool) error {
	return r.send(ctx, in, proto.Command{DisarmTrap: &proto.DisarmTrap{DoorID: doorID, Rearm: rearm}})
}

// RevealDoor 请求权威会话让暗门显形
func (r *Router) RevealDoor(ctx context.Context, in *Interaction, doorID string) error {
	return r.send(ctx, in, proto.Command{RevealDoor: &proto.RevealDoor{DoorID: doorID}})
}

// AnnounceTrap 广播陷阱触发通知
func (r *Router) AnnounceTrap(ctx context.Context, in *Interaction, sprung proto.TrapSprung) error {
	return r.send(ctx, in, proto.Command{TrapSprung: &sprung})
}

// send 投递命令；in 为 nil 时不做交互内去重
func (r *Router) send(ctx context.Context, in *Interaction, cmd proto.Command) error {
	if cmd.Name() == "" {
		return ErrEmptyCommand
	}

	if in == nil {
		in = r.Begin()
	}
	if !in.mark(cmd.Key()) {
		r.logger.Debug("Duplicate command suppressed",
			"command", cmd.Name(),
			"doorId", cmd.DoorID(),
			"interactionId", in.ID)
		return nil
	}

	env := &proto.Envelope{
		InteractionID: in.ID,
		SenderID:      r.identity.UserID,
		Token:         r.identity.Token,
		Mode:          cmd.Mode(),
		Command:       cmd,
	}

	var err error
	switch env.Mode {
	case proto.ModeEveryone:
		err = r.channel.ToEveryone(ctx, env)
	default:
		r.checkAuthority(ctx, cmd)
		err = r.channel.ToAuthority(ctx, env)
	}
	if err != nil {
		return fmt.Errorf("send %s: %w", cmd.Name(), err)
	}

	r.logger.Debug("Command sent",
		"command", cmd.Name(),
		"doorId", cmd.DoorID(),
		"mode", env.Mode,
		"interactionId", in.ID)
	return nil
}

func (r *Router) checkAuthority(ctx context.Context, cmd proto.Command) {
	if r.probe == nil {
		return
	}
	online, err := r.probe.AuthorityOnline(ctx)
	if err != nil {
		r.logger.Warn("Failed to probe authority", "error", err)
		return
	}
	if !online {
		r.logger.Warn("No authoritative session online, command will be dropped",
			"command", cmd.Name(),
			"doorId", cmd.DoorID())
	}
}
