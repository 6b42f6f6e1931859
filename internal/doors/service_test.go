package doors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.trapdoors/internal/geometry"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/proto"
	"sudooom.trapdoors/internal/router"
	"sudooom.trapdoors/internal/settings"
	"sudooom.trapdoors/internal/store"
	"sudooom.trapdoors/internal/trap"
)

type fakeTripper struct {
	trips []string
	err   error
}

func (f *fakeTripper) Trip(ctx context.Context, trapID string) (trap.Result, error) {
	if f.err != nil {
		return trap.Result{}, f.err
	}
	f.trips = append(f.trips, trapID)
	return trap.Result{
		Instance: trap.Instance{
			TrapID: trapID,
			Actor:  model.TrapActor{ID: "actor-1", Name: "Spike Trap"},
			Trips:  len(f.trips),
		},
		Activation: trap.Activation{Name: "Effect", Roll: "2d6"},
		Reused:     len(f.trips) > 1,
	}, nil
}

type fakeAnnouncer struct {
	sprung []proto.TrapSprung
}

func (f *fakeAnnouncer) AnnounceTrap(ctx context.Context, in *router.Interaction, sprung proto.TrapSprung) error {
	f.sprung = append(f.sprung, sprung)
	return nil
}

var (
	gm     = router.Sender{UserID: "gm", IsGM: true}
	player = router.Sender{UserID: "p1", CharacterID: "char-1"}
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *fakeTripper, *fakeAnnouncer) {
	t.Helper()
	mem := store.NewMemoryStore()
	tripper := &fakeTripper{}
	announcer := &fakeAnnouncer{}
	mem.PutUser(model.User{ID: "gm", Name: "GM", IsGM: true})
	mem.PutUser(model.User{ID: "p1", Name: "Player", CharacterID: "char-1"})
	svc := NewService(mem, mem, mem, settings.New(nil), tripper, router.NewAuthority(true)).
		WithAnnouncer(announcer)
	return svc, mem, tripper, announcer
}

func getDoor(t *testing.T, mem *store.MemoryStore, id string) *model.Door {
	t.Helper()
	door, err := mem.GetDoor(context.Background(), id)
	require.NoError(t, err)
	return door
}

func TestOpenDoor_ClearsPauseOnce(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	mem.PutDoor(&model.Door{
		ID:    "d1",
		Kind:  model.KindDoor,
		State: model.DoorClosed,
		Flags: model.TrapFlags{PauseGame: true, PauseGameOnce: true},
	})

	require.NoError(t, svc.OpenDoor(context.Background(), player, "d1"))

	door := getDoor(t, mem, "d1")
	assert.Equal(t, model.DoorOpen, door.State)
	assert.False(t, door.Flags.PauseGameOnce)
	assert.True(t, door.Flags.PauseGame)
}

func TestOpenDoor_LockedRefused(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor, State: model.DoorLocked})

	err := svc.OpenDoor(context.Background(), player, "d1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.DoorLocked, getDoor(t, mem, "d1").State)
}

func TestOpenDoor_MissingDoor(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	err := svc.OpenDoor(context.Background(), player, "nope")
	assert.ErrorIs(t, err, store.ErrDoorNotFound)

	var de *DoorError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "DOOR_LOOKUP_FAILED", de.Code)
	assert.Equal(t, "nope", de.DoorID)
}

func TestService_NotAuthoritative(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor})
	svc := NewService(mem, mem, mem, settings.New(nil), &fakeTripper{}, router.NewAuthority(false))
	ctx := context.Background()

	assert.ErrorIs(t, svc.OpenDoor(ctx, gm, "d1"), ErrNotAuthoritative)
	assert.ErrorIs(t, svc.PeekTheDoor(ctx, gm, "d1"), ErrNotAuthoritative)
	assert.ErrorIs(t, svc.DisarmTrap(ctx, gm, "d1", false), ErrNotAuthoritative)
	assert.ErrorIs(t, svc.TripTrap(ctx, gm, "d1"), ErrNotAuthoritative)
	assert.ErrorIs(t, svc.ToggleLock(ctx, gm, "d1", model.DoorLocked), ErrNotAuthoritative)
	assert.ErrorIs(t, svc.RevealDoor(ctx, gm, "d1"), ErrNotAuthoritative)

	assert.Equal(t, model.DoorClosed, getDoor(t, mem, "d1").State)
}

func TestPeekTheDoor_RoundTrip(t *testing.T) {
	segments := []geometry.Segment{
		{0, 0, 100, 0},
		{100, 0, 0, 0},
		{0, 0, 0, 100},
		{0, 100, 0, 0},
		{10, 20, 310, 420},
		{500, 300, 200, 100},
		{-50, 75, 25, -125},
		{1000, 1000, 1100, 1000},
	}
	rotations := []geometry.Rotation{geometry.Clockwise, geometry.CounterClockwise}

	for _, seg := range segments {
		for _, hinge := range rotations {
			for _, open := range rotations {
				name := fmt.Sprintf("%v/%s/%s", seg, hinge, open)
				t.Run(name, func(t *testing.T) {
					svc, mem, _, _ := newTestService(t)
					ctx := context.Background()
					mem.PutDoor(&model.Door{
						ID:          "d1",
						Kind:        model.KindDoor,
						Coordinates: seg,
						Flags:       model.TrapFlags{HingeSide: hinge, OpenDirection: open},
					})

					require.NoError(t, svc.PeekTheDoor(ctx, player, "d1"))

					door := getDoor(t, mem, "d1")
					assert.True(t, door.Flags.Peeked)
					require.NotNil(t, door.Flags.OriginalCoordinates)
					assert.Equal(t, seg, *door.Flags.OriginalCoordinates)
					assert.Equal(t, geometry.ComputePeek(seg, hinge, open, 20), door.Coordinates)
					assert.Equal(t, model.KindDoor, door.Kind)

					require.NoError(t, svc.PeekTheDoor(ctx, player, "d1"))

					door = getDoor(t, mem, "d1")
					assert.False(t, door.Flags.Peeked)
					assert.Nil(t, door.Flags.OriginalCoordinates)
					assert.Equal(t, seg, door.Coordinates)
				})
			}
		}
	}
}

func TestPeekTheDoor_DoorOverrides(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	seg := geometry.Segment{0, 0, 100, 0}
	mem.PutDoor(&model.Door{
		ID:          "d1",
		Kind:        model.KindDoor,
		Coordinates: seg,
		Flags: model.TrapFlags{
			HingeSide:     geometry.CounterClockwise,
			OpenDirection: "sideways",
		},
	})

	require.NoError(t, svc.PeekTheDoor(context.Background(), player, "d1"))

	// 门上的非法覆盖值回退到全局设置
	want := geometry.ComputePeek(seg, geometry.CounterClockwise, geometry.Clockwise, 20)
	assert.Equal(t, want, getDoor(t, mem, "d1").Coordinates)
}

func TestPeekTheDoor_Refusals(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "open", Kind: model.KindDoor, State: model.DoorOpen, Coordinates: geometry.Segment{0, 0, 100, 0}})
	mem.PutDoor(&model.Door{
		ID:          "private",
		Kind:        model.KindDoor,
		Coordinates: geometry.Segment{0, 0, 100, 0},
		Flags:       model.TrapFlags{AllowPeeking: model.Ptr(false)},
	})

	assert.ErrorIs(t, svc.PeekTheDoor(ctx, player, "open"), ErrDoorNotClosed)
	assert.ErrorIs(t, svc.PeekTheDoor(ctx, player, "private"), ErrPeekNotAllowed)
	assert.False(t, getDoor(t, mem, "private").Flags.Peeked)

	require.NoError(t, svc.PeekTheDoor(ctx, gm, "private"))
	assert.True(t, getDoor(t, mem, "private").Flags.Peeked)
}

func TestDisarmTrap(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor, Flags: model.TrapFlags{TrapID: "spikes", TrapActive: true}})
	mem.PutDoor(&model.Door{ID: "plain", Kind: model.KindDoor})

	assert.ErrorIs(t, svc.DisarmTrap(ctx, player, "d1", false), ErrNotGM)
	assert.True(t, getDoor(t, mem, "d1").Flags.TrapActive)

	require.NoError(t, svc.DisarmTrap(ctx, gm, "d1", false))
	assert.False(t, getDoor(t, mem, "d1").Flags.TrapActive)

	require.NoError(t, svc.DisarmTrap(ctx, gm, "d1", true))
	assert.True(t, getDoor(t, mem, "d1").Flags.TrapActive)

	assert.ErrorIs(t, svc.DisarmTrap(ctx, gm, "plain", true), ErrNoTrap)
}

func TestDisarmTrap_GMFromUserStore(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	mem.PutUser(model.User{ID: "gm2", Name: "Second GM", IsGM: true})
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor, Flags: model.TrapFlags{TrapID: "spikes", TrapActive: true}})

	require.NoError(t, svc.DisarmTrap(context.Background(), router.Sender{UserID: "gm2"}, "d1", false))
	assert.False(t, getDoor(t, mem, "d1").Flags.TrapActive)
}

func TestService_SenderFromUserDirectory(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor, Flags: model.TrapFlags{TrapID: "spikes", TrapActive: true}})
	mem.PutDoor(&model.Door{ID: "s1", Kind: model.KindSecret})
	require.NoError(t, mem.CreateItem(ctx, model.KeyItem{ID: "k2", Name: "Key - d1", ActorID: "char-2", WallID: "d1"}))

	// 声明为主持人的玩家仍按玩家处理
	claimedGM := router.Sender{UserID: "p1", IsGM: true}
	assert.ErrorIs(t, svc.DisarmTrap(ctx, claimedGM, "d1", false), ErrNotGM)
	assert.ErrorIs(t, svc.RevealDoor(ctx, claimedGM, "s1"), ErrNotGM)
	assert.True(t, getDoor(t, mem, "d1").Flags.TrapActive)

	// 声明的角色卡被忽略，用目录中的 char-1 查钥匙
	claimedChar := router.Sender{UserID: "p1", CharacterID: "char-2"}
	assert.ErrorIs(t, svc.ToggleLock(ctx, claimedChar, "d1", model.DoorLocked), ErrNoKey)

	// 目录中没有的用户没有任何权限
	ghost := router.Sender{UserID: "ghost", IsGM: true, CharacterID: "char-2"}
	assert.ErrorIs(t, svc.DisarmTrap(ctx, ghost, "d1", false), ErrNotGM)
	assert.ErrorIs(t, svc.ToggleLock(ctx, ghost, "d1", model.DoorLocked), ErrNoCharacter)
	assert.Equal(t, model.DoorClosed, getDoor(t, mem, "d1").State)
}

func TestTripTrap(t *testing.T) {
	svc, mem, tripper, announcer := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor, Flags: model.TrapFlags{TrapID: "spikes", TrapActive: true}})
	mem.PutDoor(&model.Door{ID: "d2", Kind: model.KindDoor, Flags: model.TrapFlags{TrapID: "spikes", TrapActive: true}})

	require.NoError(t, svc.TripTrap(ctx, player, "d1"))
	require.NoError(t, svc.TripTrap(ctx, player, "d2"))

	assert.Equal(t, []string{"spikes", "spikes"}, tripper.trips)
	assert.False(t, getDoor(t, mem, "d1").Flags.TrapActive)
	assert.False(t, getDoor(t, mem, "d2").Flags.TrapActive)

	require.Len(t, announcer.sprung, 2)
	assert.Equal(t, "d1", announcer.sprung[0].DoorID)
	assert.Equal(t, "Spike Trap", announcer.sprung[0].TrapName)
	assert.Equal(t, "Effect: 2d6", announcer.sprung[0].Effect)

	// 已失效的陷阱不再触发
	assert.ErrorIs(t, svc.TripTrap(ctx, player, "d1"), ErrTrapInactive)
	assert.Len(t, tripper.trips, 2)
}

func TestTripTrap_FailureKeepsTrapActive(t *testing.T) {
	svc, mem, tripper, announcer := newTestService(t)
	tripper.err = trap.ErrNoEffect
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor, Flags: model.TrapFlags{TrapID: "gas", TrapActive: true}})

	err := svc.TripTrap(context.Background(), player, "d1")
	assert.ErrorIs(t, err, trap.ErrNoEffect)
	assert.True(t, getDoor(t, mem, "d1").Flags.TrapActive)
	assert.Empty(t, announcer.sprung)
}

func TestToggleLock_RequiresKey(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor, State: model.DoorClosed})

	err := svc.ToggleLock(ctx, player, "d1", model.DoorLocked)
	assert.ErrorIs(t, err, ErrNoKey)
	assert.Equal(t, model.DoorClosed, getDoor(t, mem, "d1").State)

	// 其他门的钥匙不算
	require.NoError(t, mem.CreateItem(ctx, model.KeyItem{ID: "k0", Name: "Key - d9", ActorID: "char-1", WallID: "d9"}))
	assert.ErrorIs(t, svc.ToggleLock(ctx, player, "d1", model.DoorLocked), ErrNoKey)

	require.NoError(t, mem.CreateItem(ctx, model.KeyItem{ID: "k1", Name: "Key - d1", ActorID: "char-1", WallID: "d1"}))
	require.NoError(t, svc.ToggleLock(ctx, player, "d1", model.DoorLocked))
	assert.Equal(t, model.DoorLocked, getDoor(t, mem, "d1").State)

	require.NoError(t, svc.ToggleLock(ctx, player, "d1", model.DoorClosed))
	assert.Equal(t, model.DoorClosed, getDoor(t, mem, "d1").State)
}

func TestToggleLock_NoCharacter(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor})

	err := svc.ToggleLock(context.Background(), router.Sender{UserID: "p2"}, "d1", model.DoorLocked)
	assert.ErrorIs(t, err, ErrNoCharacter)
}

func TestToggleLock_InvalidTransitions(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "open", Kind: model.KindDoor, State: model.DoorOpen})
	mem.PutDoor(&model.Door{ID: "closed", Kind: model.KindDoor, State: model.DoorClosed})

	assert.ErrorIs(t, svc.ToggleLock(ctx, gm, "open", model.DoorLocked), ErrInvalidTransition)
	assert.ErrorIs(t, svc.ToggleLock(ctx, gm, "closed", model.DoorOpen), ErrInvalidTransition)
	assert.Equal(t, model.DoorOpen, getDoor(t, mem, "open").State)

	require.NoError(t, svc.ToggleLock(ctx, gm, "closed", model.DoorLocked))
	assert.Equal(t, model.DoorLocked, getDoor(t, mem, "closed").State)
}

func TestRevealDoor(t *testing.T) {
	svc, mem, _, _ := newTestService(t)
	ctx := context.Background()
	mem.PutDoor(&model.Door{ID: "s1", Kind: model.KindSecret})
	mem.PutDoor(&model.Door{ID: "d1", Kind: model.KindDoor})

	assert.ErrorIs(t, svc.RevealDoor(ctx, player, "s1"), ErrNotGM)
	assert.Equal(t, model.KindSecret, getDoor(t, mem, "s1").Kind)

	require.NoError(t, svc.RevealDoor(ctx, gm, "s1"))
	assert.Equal(t, model.KindDoor, getDoor(t, mem, "s1").Kind)

	assert.ErrorIs(t, svc.RevealDoor(ctx, gm, "d1"), ErrNotSecret)
}
