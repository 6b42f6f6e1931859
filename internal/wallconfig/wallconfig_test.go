package wallconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.trapdoors/internal/compendium"
	"sudooom.trapdoors/internal/geometry"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/settings"
	"sudooom.trapdoors/internal/snowflake"
	"sudooom.trapdoors/internal/store"
)

const testPack = `
packs:
  td-traps:
    entries:
      - id: spikes
        name: Spike Trap
        type: hazard
      - id: glyph
        name: Fire Glyph
        type: hazard
  td-items:
    entries:
      - id: doorKey
        name: Key
        type: loot
`

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	catalog, err := compendium.Parse([]byte(testPack))
	require.NoError(t, err)
	mem := store.NewMemoryStore()
	return NewService(mem, mem, catalog, settings.New(nil), snowflake.NewNode(3)), mem
}

func TestView_Defaults(t *testing.T) {
	svc, mem := newTestService(t)
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor})

	view, err := svc.View(context.Background(), "d1")
	require.NoError(t, err)

	assert.Equal(t, "d1", view.DoorID)
	assert.Equal(t, []Choice{
		{ID: "spikes", Name: "Spike Trap"},
		{ID: "glyph", Name: "Fire Glyph"},
	}, view.Traps)
	assert.Equal(t, geometry.Clockwise, view.HingeSide)
	assert.Equal(t, geometry.Clockwise, view.OpenDirection)
	assert.True(t, view.AllowPeeking)
	assert.False(t, view.KeyExists)
}

func TestView_DoorOverrides(t *testing.T) {
	svc, mem := newTestService(t)
	mem.PutDoor(&model.Door{
		ID:   "d1",
		Kind: model.KindDoor,
		Flags: model.TrapFlags{
			TrapID:        "glyph",
			TrapActive:    true,
			HingeSide:     geometry.CounterClockwise,
			OpenDirection: "bogus",
			AllowPeeking:  model.Ptr(false),
		},
	})
	require.NoError(t, mem.CreateItem(context.Background(), model.KeyItem{ID: "k1", Name: "Key - d1", ActorID: "char-9", WallID: "d1"}))

	view, err := svc.View(context.Background(), "d1")
	require.NoError(t, err)

	assert.Equal(t, "glyph", view.TrapID)
	assert.True(t, view.Traps[1].Selected)
	assert.False(t, view.Traps[0].Selected)
	assert.Equal(t, geometry.CounterClockwise, view.HingeSide)
	assert.Equal(t, geometry.Clockwise, view.OpenDirection)
	assert.False(t, view.AllowPeeking)
	assert.True(t, view.KeyExists)
}

func TestView_MissingDoor(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.View(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrDoorNotFound)
}

func TestApply_WritesEveryTarget(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor})
	mem.PutDoor(&model.Door{ID: "d2", Kind: model.KindDoor, Flags: model.TrapFlags{Peeked: true}})

	res, err := svc.Apply(ctx, []string{"d1", "d2"}, Form{
		TrapID:        "spikes",
		PauseGameOnce: true,
		HingeSide:     "ccw",
		AllowPeeking:  model.Ptr(false),
	})
	require.NoError(t, err)
	require.Len(t, res.Doors, 2)
	assert.Empty(t, res.Keys)

	for _, id := range []string{"d1", "d2"} {
		door, err := mem.GetDoor(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "spikes", door.Flags.TrapID)
		assert.True(t, door.Flags.TrapActive)
		assert.True(t, door.Flags.PauseGameOnce)
		assert.False(t, door.Flags.PauseGame)
		assert.Equal(t, geometry.CounterClockwise, door.Flags.HingeSide)
		assert.False(t, door.Flags.PeekingAllowed())
	}

	// 偷看状态不受影响
	door, _ := mem.GetDoor(ctx, "d2")
	assert.True(t, door.Flags.Peeked)
}

func TestApply_ClearTrapDeactivates(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor, Flags: model.TrapFlags{TrapID: "spikes", TrapActive: true}})

	_, err := svc.Apply(ctx, []string{"d1"}, Form{})
	require.NoError(t, err)

	door, _ := mem.GetDoor(ctx, "d1")
	assert.Empty(t, door.Flags.TrapID)
	assert.False(t, door.Flags.TrapActive)
}

func TestApply_Validation(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor})

	_, err := svc.Apply(ctx, nil, Form{})
	assert.ErrorIs(t, err, ErrNoTargets)

	_, err = svc.Apply(ctx, []string{"d1"}, Form{TrapID: "dragon"})
	assert.ErrorIs(t, err, ErrUnknownTrap)

	_, err = svc.Apply(ctx, []string{"d1"}, Form{OpenDirection: "up"})
	assert.ErrorIs(t, err, ErrInvalidRotation)

	_, err = svc.Apply(ctx, []string{"missing"}, Form{})
	assert.ErrorIs(t, err, store.ErrDoorNotFound)

	door, _ := mem.GetDoor(ctx, "d1")
	assert.Empty(t, door.Flags.TrapID)
}

func TestApply_GenerateKeys(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor})
	mem.PutDoor(&model.Door{ID: "d2", Kind: model.KindDoor})
	require.NoError(t, mem.CreateItem(ctx, model.KeyItem{ID: "old", Name: "Key - d2", WallID: "d2"}))

	res, err := svc.Apply(ctx, []string{"d1", "d2"}, Form{GenerateKey: true})
	require.NoError(t, err)
	require.Len(t, res.Keys, 1)

	key := res.Keys[0]
	assert.Equal(t, "Key - d1", key.Name)
	assert.Equal(t, "d1", key.WallID)
	assert.Empty(t, key.ActorID)
	assert.Equal(t, "Compendium.trapped-doors.td-items.doorKey", key.Source)
	assert.NotEmpty(t, key.ID)
	assert.Len(t, mem.Items(), 2)

	// 再次生成不会重复
	keys, err := svc.GenerateKeys(ctx, []string{"d1", "d2"})
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGenerateKeys_NoTemplate(t *testing.T) {
	catalog, err := compendium.Parse([]byte(`
packs:
  td-traps:
    entries:
      - id: spikes
        name: Spike Trap
`))
	require.NoError(t, err)
	mem := store.NewMemoryStore()
	svc := NewService(mem, mem, catalog, settings.New(nil), snowflake.NewNode(3))

	_, err = svc.GenerateKeys(context.Background(), []string{"d1"})
	assert.ErrorIs(t, err, compendium.ErrPackNotFound)
}
