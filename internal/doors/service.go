// Package doors 权威会话上执行的门操作
package doors

import (
	"context"
	"fmt"
	"log/slog"

	"sudooom.trapdoors/internal/geometry"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/proto"
	"sudooom.trapdoors/internal/router"
	"sudooom.trapdoors/internal/store"
	"sudooom.trapdoors/internal/trap"
)

// Authority 本会话是否持有权威
type Authority interface {
	IsAuthoritative() bool
}

// PeekSettings 偷看相关的全局设置
type PeekSettings interface {
	PeekDegrees() float64
	HingeSide() geometry.Rotation
	OpenDirection() geometry.Rotation
}

// TrapTripper 陷阱实例注册表
type TrapTripper interface {
	Trip(ctx context.Context, trapID string) (trap.Result, error)
}

// Announcer 广播陷阱触发通知
type Announcer interface {
	AnnounceTrap(ctx context.Context, in *router.Interaction, sprung proto.TrapSprung) error
}

// Service 门操作服务，实现 router.DoorHandler
type Service struct {
	doors     store.DoorStore
	items     store.ItemStore
	users     store.UserStore
	settings  PeekSettings
	traps     TrapTripper
	announcer Announcer
	authority Authority
	logger    *slog.Logger
}

// NewService 创建门操作服务；users 可为 nil，此时使用令牌中的身份
func NewService(doors store.DoorStore, items store.ItemStore, users store.UserStore, settings PeekSettings, traps TrapTripper, authority Authority) *Service {
	return &Service{
		doors:     doors,
		items:     items,
		users:     users,
		settings:  settings,
		traps:     traps,
		authority: authority,
		logger:    slog.Default().With("component", "DoorService"),
	}
}

// WithAnnouncer 设置陷阱通知的广播通道
func (s *Service) WithAnnouncer(a Announcer) *Service {
	s.announcer = a
	return s
}

var _ router.DoorHandler = (*Service)(nil)

// guard 非权威会话上的调用只记录日志
func (s *Service) guard(op, doorID string) error {
	if s.authority.IsAuthoritative() {
		return nil
	}
	s.logger.Warn("Door operation called on non-authoritative session", "op", op, "doorId", doorID)
	return ErrNotAuthoritative
}

func (s *Service) load(ctx context.Context, doorID string) (*model.Door, error) {
	door, err := s.doors.GetDoor(ctx, doorID)
	if err != nil {
		return nil, NewDoorError("DOOR_LOOKUP_FAILED", doorID, "load door", err)
	}
	return door, nil
}

func (s *Service) update(ctx context.Context, doorID string, patch model.DoorPatch) (*model.Door, error) {
	door, err := s.doors.UpdateDoor(ctx, doorID, patch)
	if err != nil {
		return nil, NewDoorError("DOOR_UPDATE_FAILED", doorID, "update door", err)
	}
	return door, nil
}

// resolve 主持人身份和角色卡以用户目录为准，查不到的用户按无权限处理
func (s *Service) resolve(ctx context.Context, sender router.Sender) router.Sender {
	if s.users == nil {
		return sender
	}
	resolved := router.Sender{UserID: sender.UserID}
	if sender.UserID == "" {
		return resolved
	}
	user, err := s.users.GetUser(ctx, sender.UserID)
	if err != nil {
		s.logger.Warn("Sender not in user directory", "userId", sender.UserID, "error", err)
		return resolved
	}
	if sender.IsGM != user.IsGM || (sender.CharacterID != "" && sender.CharacterID != user.CharacterID) {
		s.logger.Warn("Token claims differ from user directory",
			"userId", sender.UserID,
			"claimedGM", sender.IsGM,
			"claimedCharacterId", sender.CharacterID)
	}
	resolved.IsGM = user.IsGM
	resolved.CharacterID = user.CharacterID
	return resolved
}

// OpenDoor 打开门并清除一次性暂停标记
func (s *Service) OpenDoor(ctx context.Context, sender router.Sender, doorID string) error {
	if err := s.guard(proto.NameOpenDoor, doorID); err != nil {
		return err
	}

	door, err := s.load(ctx, doorID)
	if err != nil {
		return err
	}
	if door.State == model.DoorLocked {
		return ErrInvalidTransition
	}

	if _, err := s.update(ctx, doorID, model.DoorPatch{
		State: model.Ptr(model.DoorOpen),
		Flags: model.FlagsPatch{PauseGameOnce: model.Ptr(false)},
	}); err != nil {
		return err
	}

	s.logger.Info("Door opened", "doorId", doorID, "senderId", sender.UserID)
	return nil
}

// PeekTheDoor 偷看：已偷看时还原坐标，否则按铰链旋转
func (s *Service) PeekTheDoor(ctx context.Context, sender router.Sender, doorID string) error {
	if err := s.guard(proto.NamePeekDoor, doorID); err != nil {
		return err
	}

	door, err := s.load(ctx, doorID)
	if err != nil {
		return err
	}

	if door.Flags.Peeked {
		patch := model.DoorPatch{
			Flags: model.FlagsPatch{Peeked: model.Ptr(false), ClearOriginal: true},
		}
		if orig := door.Flags.OriginalCoordinates; orig != nil {
			patch.Coordinates = model.Ptr(*orig)
		}
		if _, err := s.update(ctx, doorID, patch); err != nil {
			return err
		}
		s.logger.Info("Door unpeeked", "doorId", doorID, "senderId", sender.UserID)
		return nil
	}

	if door.State != model.DoorClosed {
		return ErrDoorNotClosed
	}
	if !door.Flags.PeekingAllowed() && !s.resolve(ctx, sender).IsGM {
		return ErrPeekNotAllowed
	}

	hinge, open := s.rotations(door)
	original := door.Coordinates
	peeked := geometry.ComputePeek(original, hinge, open, s.settings.PeekDegrees())

	if _, err := s.update(ctx, doorID, model.DoorPatch{
		Coordinates: &peeked,
		Flags: model.FlagsPatch{
			Peeked:              model.Ptr(true),
			OriginalCoordinates: &original,
		},
	}); err != nil {
		return err
	}

	s.logger.Info("Door peeked",
		"doorId", doorID,
		"senderId", sender.UserID,
		"hinge", hinge,
		"open", open)
	return nil
}

// rotations 门上的覆盖值优先，否则使用全局设置
func (s *Service) rotations(door *model.Door) (geometry.Rotation, geometry.Rotation) {
	hinge, ok := geometry.ParseRotation(string(door.Flags.HingeSide))
	if !ok {
		hinge = s.settings.HingeSide()
	}
	open, ok := geometry.ParseRotation(string(door.Flags.OpenDirection))
	if !ok {
		open = s.settings.OpenDirection()
	}
	return hinge, open
}

// DisarmTrap 解除（或重新激活）陷阱，只有主持人可以
func (s *Service) DisarmTrap(ctx context.Context, sender router.Sender, doorID string, rearm bool) error {
	if err := s.guard(proto.NameDisarmTrap, doorID); err != nil {
		return err
	}
	if !s.resolve(ctx, sender).IsGM {
		return ErrNotGM
	}

	door, err := s.load(ctx, doorID)
	if err != nil {
		return err
	}
	if rearm && !door.Flags.HasTrap() {
		return ErrNoTrap
	}

	if _, err := s.update(ctx, doorID, model.DoorPatch{
		Flags: model.FlagsPatch{TrapActive: model.Ptr(rearm)},
	}); err != nil {
		return err
	}

	s.logger.Info("Trap toggled", "doorId", doorID, "active", rearm, "senderId", sender.UserID)
	return nil
}

// TripTrap 触发门上的陷阱，广播通知后使陷阱失效
func (s *Service) TripTrap(ctx context.Context, sender router.Sender, doorID string) error {
	if err := s.guard(proto.NameTripTrap, doorID); err != nil {
		return err
	}

	door, err := s.load(ctx, doorID)
	if err != nil {
		return err
	}
	if !door.Flags.HasTrap() {
		return ErrNoTrap
	}
	if !door.Flags.TrapActive {
		return ErrTrapInactive
	}

	res, err := s.traps.Trip(ctx, door.Flags.TrapID)
	if err != nil {
		return NewDoorError("TRAP_FAILED", doorID, "trip trap", err)
	}

	if s.announcer != nil {
		sprung := proto.TrapSprung{
			DoorID:   doorID,
			TrapID:   door.Flags.TrapID,
			TrapName: res.Instance.Actor.Name,
			Effect:   formatEffect(res.Activation),
		}
		if err := s.announcer.AnnounceTrap(ctx, nil, sprung); err != nil {
			s.logger.Warn("Failed to announce trap", "doorId", doorID, "error", err)
		}
	}

	if _, err := s.update(ctx, doorID, model.DoorPatch{
		Flags: model.FlagsPatch{TrapActive: model.Ptr(false)},
	}); err != nil {
		return err
	}

	s.logger.Info("Trap tripped",
		"doorId", doorID,
		"trapId", door.Flags.TrapID,
		"actorId", res.Instance.Actor.ID,
		"reused", res.Reused,
		"senderId", sender.UserID)
	return nil
}

func formatEffect(a trap.Activation) string {
	if a.Description == "" {
		return fmt.Sprintf("%s: %s", a.Name, a.Roll)
	}
	return fmt.Sprintf("%s: %s (%s)", a.Name, a.Roll, a.Description)
}

// ToggleLock 写入锁状态：只允许 CLOSED ⇄ LOCKED，非主持人需持有钥匙
func (s *Service) ToggleLock(ctx context.Context, sender router.Sender, doorID string, state model.DoorState) error {
	if err := s.guard(proto.NameToggleLock, doorID); err != nil {
		return err
	}
	if state != model.DoorClosed && state != model.DoorLocked {
		return ErrInvalidTransition
	}

	door, err := s.load(ctx, doorID)
	if err != nil {
		return err
	}
	if door.State == model.DoorOpen {
		return ErrInvalidTransition
	}

	sender = s.resolve(ctx, sender)
	if !sender.IsGM {
		if err := s.checkKey(ctx, sender, doorID); err != nil {
			s.logger.Warn("Lock toggle refused", "doorId", doorID, "senderId", sender.UserID, "error", err)
			return err
		}
	}

	if door.State == state {
		return nil
	}
	if _, err := s.update(ctx, doorID, model.DoorPatch{State: &state}); err != nil {
		return err
	}

	s.logger.Info("Door lock toggled", "doorId", doorID, "state", state, "senderId", sender.UserID)
	return nil
}

func (s *Service) checkKey(ctx context.Context, sender router.Sender, doorID string) error {
	if sender.CharacterID == "" {
		return ErrNoCharacter
	}
	keys, err := s.items.KeysFor(ctx, sender.CharacterID, doorID)
	if err != nil {
		return NewDoorError("KEY_LOOKUP_FAILED", doorID, "look up keys", err)
	}
	if len(keys) == 0 {
		return ErrNoKey
	}
	return nil
}

// RevealDoor 暗门显形，只有主持人可以
func (s *Service) RevealDoor(ctx context.Context, sender router.Sender, doorID string) error {
	if err := s.guard(proto.NameRevealDoor, doorID); err != nil {
		return err
	}
	if !s.resolve(ctx, sender).IsGM {
		return ErrNotGM
	}

	door, err := s.load(ctx, doorID)
	if err != nil {
		return err
	}
	if door.Kind != model.KindSecret {
		return ErrNotSecret
	}

	if _, err := s.update(ctx, doorID, model.DoorPatch{Kind: model.Ptr(model.KindDoor)}); err != nil {
		return err
	}

	s.logger.Info("Secret door revealed", "doorId", doorID, "senderId", sender.UserID)
	return nil
}
