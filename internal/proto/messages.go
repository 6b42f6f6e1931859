// Package proto 会话之间传递的门操作命令
package proto

import "sudooom.trapdoors/internal/model"

// DeliveryMode 投递方式
type DeliveryMode string

const (
	// ModeAuthority 只由权威会话执行一次
	ModeAuthority DeliveryMode = "authority"
	// ModeEveryone 所有在线会话都执行
	ModeEveryone DeliveryMode = "everyone"
)

// 命令名称（线上协议名）
const (
	NameOpenDoor   = "openDoor"
	NamePeekDoor   = "peekTheDoor"
	NameDisarmTrap = "disarmTrap"
	NameTripTrap   = "tripTrap"
	NameToggleLock = "toggleLock"
	NameRevealDoor = "revealDoor"
	NamePauseAll   = "pauseForEveryone"
	NameResumeAll  = "resumeForEveryone"
	NameTrapSprung = "trapSprung"
)

// Envelope 命令信封
type Envelope struct {
	InteractionID int64        `json:"InteractionId"`
	SenderID      string       `json:"SenderId"`
	Token         string       `json:"Token,omitempty"`
	Mode          DeliveryMode `json:"Mode"`
	Command       Command      `json:"Command"`
}

// Command 命令载荷，同一时间只设置一个字段
type Command struct {
	OpenDoor   *OpenDoor   `json:"OpenDoor,omitempty"`
	PeekDoor   *PeekDoor   `json:"PeekDoor,omitempty"`
	DisarmTrap *DisarmTrap `json:"DisarmTrap,omitempty"`
	TripTrap   *TripTrap   `json:"TripTrap,omitempty"`
	ToggleLock *ToggleLock `json:"ToggleLock,omitempty"`
	RevealDoor *RevealDoor `json:"RevealDoor,omitempty"`
	PauseAll   *PauseAll   `json:"PauseAll,omitempty"`
	ResumeAll  *ResumeAll  `json:"ResumeAll,omitempty"`
	TrapSprung *TrapSprung `json:"TrapSprung,omitempty"`
}

// OpenDoor 打开门
type OpenDoor struct {
	DoorID string `json:"DoorId"`
}

// PeekDoor 偷看 / 取消偷看
type PeekDoor struct {
	DoorID string `json:"DoorId"`
}

// DisarmTrap 解除陷阱；Rearm 为 true 时重新激活
type DisarmTrap struct {
	DoorID string `json:"DoorId"`
	Rearm  bool   `json:"Rearm,omitempty"`
}

// TripTrap 触发门上的陷阱
type TripTrap struct {
	DoorID string `json:"DoorId"`
}

// ToggleLock 切换锁状态
type ToggleLock struct {
	DoorID string          `json:"DoorId"`
	State  model.DoorState `json:"State"`
}

// RevealDoor 暗门显形
type RevealDoor struct {
	DoorID string `json:"DoorId"`
}

// PauseAll 所有会话暂停游戏
type PauseAll struct{}

// ResumeAll 所有会话恢复游戏，只接受主持人发出的
type ResumeAll struct{}

// TrapSprung 陷阱触发的公开通知
type TrapSprung struct {
	DoorID   string `json:"DoorId"`
	TrapID   string `json:"TrapId"`
	TrapName string `json:"TrapName"`
	Effect   string `json:"Effect"`
}

// Name 命令名称，未设置任何字段时返回空串
func (c Command) Name() string {
	switch {
	case c.OpenDoor != nil:
		return NameOpenDoor
	case c.PeekDoor != nil:
		return NamePeekDoor
	case c.DisarmTrap != nil:
		return NameDisarmTrap
	case c.TripTrap != nil:
		return NameTripTrap
	case c.ToggleLock != nil:
		return NameToggleLock
	case c.RevealDoor != nil:
		return NameRevealDoor
	case c.PauseAll != nil:
		return NamePauseAll
	case c.ResumeAll != nil:
		return NameResumeAll
	case c.TrapSprung != nil:
		return NameTrapSprung
	default:
		return ""
	}
}

// DoorID 命令作用的门，广播类命令返回空串
func (c Command) DoorID() string {
	switch {
	case c.OpenDoor != nil:
		return c.OpenDoor.DoorID
	case c.PeekDoor != nil:
		return c.PeekDoor.DoorID
	case c.DisarmTrap != nil:
		return c.DisarmTrap.DoorID
	case c.TripTrap != nil:
		return c.TripTrap.DoorID
	case c.ToggleLock != nil:
		return c.ToggleLock.DoorID
	case c.RevealDoor != nil:
		return c.RevealDoor.DoorID
	case c.TrapSprung != nil:
		return c.TrapSprung.DoorID
	default:
		return ""
	}
}

// Mode 命令应使用的投递方式
func (c Command) Mode() DeliveryMode {
	if c.PauseAll != nil || c.ResumeAll != nil || c.TrapSprung != nil {
		return ModeEveryone
	}
	return ModeAuthority
}

// Key 交互内去重用的键
func (c Command) Key() string {
	return c.Name() + ":" + c.DoorID()
}
