package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sudooom.trapdoors/internal/geometry"
)

func TestDoor_Apply(t *testing.T) {
	door := &Door{
		ID:          "wall-1",
		Coordinates: geometry.Segment{0, 0, 100, 0},
		State:       DoorClosed,
		Kind:        KindDoor,
		Flags:       TrapFlags{TrapID: "trap-1", TrapActive: true, PauseGameOnce: true},
	}

	door.Apply(DoorPatch{
		State: Ptr(DoorOpen),
		Flags: FlagsPatch{PauseGameOnce: Ptr(false)},
	})

	assert.Equal(t, DoorOpen, door.State)
	assert.False(t, door.Flags.PauseGameOnce)
	assert.True(t, door.Flags.TrapActive)
	assert.Equal(t, "trap-1", door.Flags.TrapID)
}

func TestDoor_ApplyOriginalCoordinates(t *testing.T) {
	door := &Door{ID: "wall-1", Coordinates: geometry.Segment{0, 0, 100, 0}}
	original := door.Coordinates

	door.Apply(DoorPatch{
		Coordinates: Ptr(geometry.Segment{6.03, -34.2, 100, 0}),
		Flags: FlagsPatch{
			Peeked:              Ptr(true),
			OriginalCoordinates: &original,
		},
	})
	assert.True(t, door.Flags.Peeked)
	if assert.NotNil(t, door.Flags.OriginalCoordinates) {
		assert.Equal(t, original, *door.Flags.OriginalCoordinates)
	}

	// patch 中的指针不能泄漏到门上
	original[0] = 999
	assert.Equal(t, 0.0, door.Flags.OriginalCoordinates[0])

	door.Apply(DoorPatch{
		Coordinates: door.Flags.OriginalCoordinates,
		Flags:       FlagsPatch{Peeked: Ptr(false), ClearOriginal: true},
	})
	assert.False(t, door.Flags.Peeked)
	assert.Nil(t, door.Flags.OriginalCoordinates)
	assert.Equal(t, geometry.Segment{0, 0, 100, 0}, door.Coordinates)
}

func TestDoorPatch_IsEmpty(t *testing.T) {
	assert.True(t, DoorPatch{}.IsEmpty())
	assert.False(t, DoorPatch{Kind: Ptr(KindDoor)}.IsEmpty())
	assert.False(t, DoorPatch{Flags: FlagsPatch{ClearOriginal: true}}.IsEmpty())
	assert.False(t, DoorPatch{Flags: FlagsPatch{HingeSide: Ptr(geometry.CounterClockwise)}}.IsEmpty())
}

func TestDoor_Clone(t *testing.T) {
	door := &Door{
		ID: "wall-1",
		Flags: TrapFlags{
			AllowPeeking:        Ptr(false),
			OriginalCoordinates: &geometry.Segment{1, 2, 3, 4},
		},
	}

	c := door.Clone()
	*c.Flags.AllowPeeking = true
	c.Flags.OriginalCoordinates[0] = 42

	assert.False(t, *door.Flags.AllowPeeking)
	assert.Equal(t, 1.0, door.Flags.OriginalCoordinates[0])
}

func TestTrapFlags_PeekingAllowed(t *testing.T) {
	assert.True(t, TrapFlags{}.PeekingAllowed())
	assert.True(t, TrapFlags{AllowPeeking: Ptr(true)}.PeekingAllowed())
	assert.False(t, TrapFlags{AllowPeeking: Ptr(false)}.PeekingAllowed())
}

func TestStateAndKindString(t *testing.T) {
	assert.Equal(t, "CLOSED", DoorClosed.String())
	assert.Equal(t, "OPEN", DoorOpen.String())
	assert.Equal(t, "LOCKED", DoorLocked.String())
	assert.Equal(t, "UNKNOWN", DoorState(9).String())
	assert.Equal(t, "SECRET", KindSecret.String())
	assert.Equal(t, "DOOR", KindDoor.String())
}
