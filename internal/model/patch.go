package model

import "sudooom.trapdoors/internal/geometry"

// DoorPatch 门文档的局部更新，nil 字段保持原值（与宿主的合并更新语义一致）
type DoorPatch struct {
	State       *DoorState
	Kind        *DoorKind
	Coordinates *geometry.Segment
	Flags       FlagsPatch
}

// FlagsPatch flags.trappedDoors 的局部更新
type FlagsPatch struct {
	TrapID              *string
	TrapActive          *bool
	PauseGame           *bool
	PauseGameOnce       *bool
	AllowPeeking        *bool
	HingeSide           *geometry.Rotation
	OpenDirection       *geometry.Rotation
	Peeked              *bool
	OriginalCoordinates *geometry.Segment
	ClearOriginal       bool
}

// Ptr 返回值的指针，便于构造 patch
func Ptr[T any](v T) *T {
	return &v
}

// Apply 将 patch 合并到门上
func (d *Door) Apply(p DoorPatch) {
	if p.State != nil {
		d.State = *p.State
	}
	if p.Kind != nil {
		d.Kind = *p.Kind
	}
	if p.Coordinates != nil {
		d.Coordinates = *p.Coordinates
	}

	f := p.Flags
	if f.TrapID != nil {
		d.Flags.TrapID = *f.TrapID
	}
	if f.TrapActive != nil {
		d.Flags.TrapActive = *f.TrapActive
	}
	if f.PauseGame != nil {
		d.Flags.PauseGame = *f.PauseGame
	}
	if f.PauseGameOnce != nil {
		d.Flags.PauseGameOnce = *f.PauseGameOnce
	}
	if f.AllowPeeking != nil {
		d.Flags.AllowPeeking = Ptr(*f.AllowPeeking)
	}
	if f.HingeSide != nil {
		d.Flags.HingeSide = *f.HingeSide
	}
	if f.OpenDirection != nil {
		d.Flags.OpenDirection = *f.OpenDirection
	}
	if f.Peeked != nil {
		d.Flags.Peeked = *f.Peeked
	}
	if f.ClearOriginal {
		d.Flags.OriginalCoordinates = nil
	} else if f.OriginalCoordinates != nil {
		d.Flags.OriginalCoordinates = Ptr(*f.OriginalCoordinates)
	}
}

// IsEmpty patch 是否没有任何修改
func (p DoorPatch) IsEmpty() bool {
	f := p.Flags
	return p.State == nil && p.Kind == nil && p.Coordinates == nil &&
		f.TrapID == nil && f.TrapActive == nil && f.PauseGame == nil && f.PauseGameOnce == nil &&
		f.AllowPeeking == nil && f.HingeSide == nil && f.OpenDirection == nil &&
		f.Peeked == nil && f.OriginalCoordinates == nil && !f.ClearOriginal
}
