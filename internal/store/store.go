// Package store 定义宿主文档存储的抽象接口，以及内存实现
package store

import (
	"context"
	"errors"

	"sudooom.trapdoors/internal/model"
)

var (
	ErrDoorNotFound  = errors.New("DOOR_NOT_FOUND")
	ErrUserNotFound  = errors.New("USER_NOT_FOUND")
	ErrActorNotFound = errors.New("ACTOR_NOT_FOUND")
)

// DoorStore 门文档存储
type DoorStore interface {
	GetDoor(ctx context.Context, id string) (*model.Door, error)
	UpdateDoor(ctx context.Context, id string, patch model.DoorPatch) (*model.Door, error)
}

// DoorWriter 整体写入门文档（场景导入）
type DoorWriter interface {
	Upsert(ctx context.Context, door *model.Door) error
}

// ItemStore 物品存储（钥匙）
type ItemStore interface {
	// KeysFor 返回角色物品栏中绑定到 wallID 的钥匙
	KeysFor(ctx context.Context, actorID, wallID string) ([]model.KeyItem, error)
	// KeyExists 世界物品栏或任意角色中是否存在绑定到 wallID 的钥匙
	KeyExists(ctx context.Context, wallID string) (bool, error)
	CreateItem(ctx context.Context, item model.KeyItem) error
}

// ActorStore 陷阱角色存储
type ActorStore interface {
	CreateActor(ctx context.Context, actor model.TrapActor) error
	DeleteActor(ctx context.Context, id string) error
	// ListActors 文件夹中的陷阱角色，按创建时间升序
	ListActors(ctx context.Context, folder string) ([]model.TrapActor, error)
}

// UserStore 用户目录
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}
