// Package policy 门交互策略：每次指针事件按固定顺序评估各阶段
package policy

import (
	"context"
	"log/slog"

	"sudooom.trapdoors/internal/keybind"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/router"
	"sudooom.trapdoors/internal/store"
)

// Dispatcher 通过路由器发送命令，由 *router.Router 实现
type Dispatcher interface {
	Begin() *router.Interaction
	OpenDoor(ctx context.Context, in *router.Interaction, doorID string) error
	PauseEveryone(ctx context.Context, in *router.Interaction) error
	TripTrap(ctx context.Context, in *router.Interaction, doorID string) error
	ToggleLock(ctx context.Context, in *router.Interaction, doorID string, state model.DoorState) error
	PeekDoor(ctx context.Context, in *router.Interaction, doorID string) error
	DisarmTrap(ctx context.Context, in *router.Interaction, doorID string, rearm bool) error
	RevealDoor(ctx context.Context, in *router.Interaction, doorID string) error
}

// Direct 权威会话上直接执行的门操作，由 *doors.Service 实现
type Direct interface {
	PeekTheDoor(ctx context.Context, sender router.Sender, doorID string) error
	DisarmTrap(ctx context.Context, sender router.Sender, doorID string, rearm bool) error
}

// Settings 陷阱触发后的行为设置
type Settings interface {
	PauseOnTrap() bool
	OpenOnTrap() bool
}

// Interaction 一次指针事件的输入
type Interaction struct {
	User          model.User
	DoorID        string
	Modifiers     keybind.Modifiers
	Paused        bool
	Authoritative bool
	Trace         *router.Interaction
}

func (in *Interaction) sender() router.Sender {
	return router.Sender{
		UserID:      in.User.ID,
		CharacterID: in.User.CharacterID,
		IsGM:        in.User.IsGM,
	}
}

// Policy 门交互策略
type Policy struct {
	doors     store.DoorStore
	items     store.ItemStore
	dispatch  Dispatcher
	direct    Direct
	settings  Settings
	primary   []Stage
	secondary []Stage
	logger    *slog.Logger
}

// New 创建策略；direct 可为 nil（非权威会话从不直接执行）
func New(doors store.DoorStore, items store.ItemStore, dispatch Dispatcher, direct Direct, settings Settings) *Policy {
	p := &Policy{
		doors:    doors,
		items:    items,
		dispatch: dispatch,
		direct:   direct,
		settings: settings,
		logger:   slog.Default().With("component", "DoorPolicy"),
	}
	p.primary = []Stage{
		{Name: StageReveal, Applies: p.revealApplies, Run: p.reveal},
		{Name: StageDisarm, Applies: p.disarmApplies, Run: p.disarm},
		{Name: StageTrip, Applies: p.tripApplies, Run: p.trip},
		{Name: StagePeek, Applies: p.peekApplies, Run: p.peek},
		{Name: StagePause, Applies: p.pauseApplies, Run: p.pause},
	}
	p.secondary = []Stage{
		{Name: StageLock, Applies: p.lockApplies, Run: p.lock},
	}
	return p
}

// Primary 左键阶段链
func (p *Policy) Primary() []Stage {
	return p.primary
}

// Secondary 右键阶段链
func (p *Policy) Secondary() []Stage {
	return p.secondary
}

// Evaluate 评估左键事件
func (p *Policy) Evaluate(ctx context.Context, in *Interaction) Outcome {
	if !in.User.CanUseDoors {
		return Outcome{}
	}
	if in.Paused && !in.Authoritative {
		return Outcome{}
	}
	return p.run(ctx, in, p.primary)
}

// EvaluateSecondary 评估右键事件；权威会话交给宿主自己的锁界面
func (p *Policy) EvaluateSecondary(ctx context.Context, in *Interaction) Outcome {
	if in.Authoritative {
		return Outcome{}
	}
	return p.run(ctx, in, p.secondary)
}

func (p *Policy) run(ctx context.Context, in *Interaction, stages []Stage) Outcome {
	door, err := p.doors.GetDoor(ctx, in.DoorID)
	if err != nil {
		p.logger.Debug("Door not available", "doorId", in.DoorID, "error", err)
		return Outcome{}
	}
	if in.Trace == nil {
		in.Trace = p.dispatch.Begin()
	}

	for _, stage := range stages {
		ok, err := stage.Applies(ctx, in, door)
		if err != nil {
			p.logger.Warn("Stage check failed", "stage", stage.Name, "doorId", in.DoorID, "error", err)
			return Outcome{}
		}
		if !ok {
			continue
		}

		if err := stage.Run(ctx, in, door); err != nil {
			p.logger.Warn("Stage failed",
				"stage", stage.Name,
				"doorId", in.DoorID,
				"userId", in.User.ID,
				"error", err)
			return Outcome{Stage: stage.Name}
		}

		p.logger.Debug("Stage handled event", "stage", stage.Name, "doorId", in.DoorID, "userId", in.User.ID)
		return Outcome{Handled: true, Stage: stage.Name}
	}
	return Outcome{}
}

func (p *Policy) revealApplies(_ context.Context, in *Interaction, door *model.Door) (bool, error) {
	return in.Modifiers.Reveal && in.Authoritative && door.Kind == model.KindSecret, nil
}

func (p *Policy) reveal(ctx context.Context, in *Interaction, door *model.Door) error {
	return p.dispatch.RevealDoor(ctx, in.Trace, door.ID)
}

func (p *Policy) disarmApplies(_ context.Context, in *Interaction, _ *model.Door) (bool, error) {
	return in.Modifiers.Disarm, nil
}

// disarm 没有陷阱的门也消费这次点击，按住解除键时不会开门
func (p *Policy) disarm(ctx context.Context, in *Interaction, door *model.Door) error {
	if !door.Flags.HasTrap() {
		p.logger.Debug("Disarm on door without trap", "doorId", door.ID, "userId", in.User.ID)
		return nil
	}
	rearm := !door.Flags.TrapActive
	if in.Authoritative && p.direct != nil {
		return p.direct.DisarmTrap(ctx, in.sender(), door.ID, rearm)
	}
	return p.dispatch.DisarmTrap(ctx, in.Trace, door.ID, rearm)
}

func (p *Policy) tripApplies(_ context.Context, _ *Interaction, door *model.Door) (bool, error) {
	return door.State == model.DoorClosed && door.Flags.HasTrap() && door.Flags.TrapActive, nil
}

func (p *Policy) trip(ctx context.Context, in *Interaction, door *model.Door) error {
	if err := p.dispatch.TripTrap(ctx, in.Trace, door.ID); err != nil {
		return err
	}
	if p.settings.OpenOnTrap() {
		if err := p.dispatch.OpenDoor(ctx, in.Trace, door.ID); err != nil {
			return err
		}
	}
	if p.settings.PauseOnTrap() {
		return p.dispatch.PauseEveryone(ctx, in.Trace)
	}
	return nil
}

func (p *Policy) peekApplies(_ context.Context, in *Interaction, door *model.Door) (bool, error) {
	if !in.Modifiers.Peek || door.State != model.DoorClosed {
		return false, nil
	}
	return in.Authoritative || door.Flags.PeekingAllowed(), nil
}

func (p *Policy) peek(ctx context.Context, in *Interaction, door *model.Door) error {
	if in.Authoritative && p.direct != nil {
		return p.direct.PeekTheDoor(ctx, in.sender(), door.ID)
	}
	return p.dispatch.PeekDoor(ctx, in.Trace, door.ID)
}

func (p *Policy) pauseApplies(_ context.Context, in *Interaction, door *model.Door) (bool, error) {
	if in.Modifiers.Any() || door.State != model.DoorClosed {
		return false, nil
	}
	return door.Flags.PauseGameOnce || door.Flags.PauseGame, nil
}

func (p *Policy) pause(ctx context.Context, in *Interaction, door *model.Door) error {
	if err := p.dispatch.OpenDoor(ctx, in.Trace, door.ID); err != nil {
		return err
	}
	return p.dispatch.PauseEveryone(ctx, in.Trace)
}

func (p *Policy) lockApplies(ctx context.Context, in *Interaction, door *model.Door) (bool, error) {
	if in.User.CharacterID == "" {
		return false, nil
	}
	if door.State != model.DoorClosed && door.State != model.DoorLocked {
		return false, nil
	}
	keys, err := p.items.KeysFor(ctx, in.User.CharacterID, door.ID)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func (p *Policy) lock(ctx context.Context, in *Interaction, door *model.Door) error {
	next := model.DoorLocked
	if door.State == model.DoorLocked {
		next = model.DoorClosed
	}
	return p.dispatch.ToggleLock(ctx, in.Trace, door.ID, next)
}
