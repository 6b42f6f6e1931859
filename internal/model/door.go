package model

import "sudooom.trapdoors/internal/geometry"

// DoorState 门状态，取值与宿主引擎常量保持一致
type DoorState int

const (
	DoorClosed DoorState = 0
	DoorOpen   DoorState = 1
	DoorLocked DoorState = 2
)

func (s DoorState) String() string {
	switch s {
	case DoorClosed:
		return "CLOSED"
	case DoorOpen:
		return "OPEN"
	case DoorLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// DoorKind 门类型
type DoorKind int

const (
	KindNone   DoorKind = 0
	KindDoor   DoorKind = 1
	KindSecret DoorKind = 2
)

func (k DoorKind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindDoor:
		return "DOOR"
	case KindSecret:
		return "SECRET"
	default:
		return "UNKNOWN"
	}
}

// TrapFlags 门上挂载的陷阱/偷看元数据（存放在宿主文档的 flags.trappedDoors 下）
type TrapFlags struct {
	TrapID              string            `json:"trapID,omitempty"`
	TrapActive          bool              `json:"trapActive"`
	PauseGame           bool              `json:"pauseGame"`
	PauseGameOnce       bool              `json:"pauseGameOnce"`
	AllowPeeking        *bool             `json:"allowPeeking,omitempty"` // nil 表示默认允许
	HingeSide           geometry.Rotation `json:"hingeSide,omitempty"`
	OpenDirection       geometry.Rotation `json:"openDirection,omitempty"`
	Peeked              bool              `json:"peeked"`
	OriginalCoordinates *geometry.Segment `json:"originalC,omitempty"`
}

// PeekingAllowed 玩家是否允许偷看这扇门
func (f TrapFlags) PeekingAllowed() bool {
	return f.AllowPeeking == nil || *f.AllowPeeking
}

// HasTrap 是否配置了陷阱模板
func (f TrapFlags) HasTrap() bool {
	return f.TrapID != ""
}

// Door 门（宿主引擎中的墙体文档）
type Door struct {
	ID          string           `json:"id"`
	Coordinates geometry.Segment `json:"c"`
	State       DoorState        `json:"ds"`
	Kind        DoorKind         `json:"door"`
	Flags       TrapFlags        `json:"flags"`
}

// Clone 深拷贝
func (d *Door) Clone() *Door {
	c := *d
	if d.Flags.AllowPeeking != nil {
		v := *d.Flags.AllowPeeking
		c.Flags.AllowPeeking = &v
	}
	if d.Flags.OriginalCoordinates != nil {
		v := *d.Flags.OriginalCoordinates
		c.Flags.OriginalCoordinates = &v
	}
	return &c
}
