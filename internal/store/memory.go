package store

import (
	"context"
	"sort"
	"sync"

	"sudooom.trapdoors/internal/model"
)

// MemoryStore 内存实现，同时满足 DoorStore / ItemStore / ActorStore / UserStore
// 用于单进程运行和测试
type MemoryStore struct {
	mu     sync.RWMutex
	doors  map[string]*model.Door
	items  map[string]model.KeyItem
	actors map[string]model.TrapActor
	users  map[string]model.User
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doors:  make(map[string]*model.Door),
		items:  make(map[string]model.KeyItem),
		actors: make(map[string]model.TrapActor),
		users:  make(map[string]model.User),
	}
}

// PutDoor 写入（或覆盖）一扇门
func (s *MemoryStore) PutDoor(door *model.Door) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doors[door.ID] = door.Clone()
}

// PutUser 写入用户
func (s *MemoryStore) PutUser(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// Upsert 写入门，实现 DoorWriter
func (s *MemoryStore) Upsert(ctx context.Context, door *model.Door) error {
	s.PutDoor(door)
	return nil
}

// GetDoor 获取门的副本
func (s *MemoryStore) GetDoor(ctx context.Context, id string) (*model.Door, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	door, ok := s.doors[id]
	if !ok {
		return nil, ErrDoorNotFound
	}
	return door.Clone(), nil
}

// UpdateDoor 合并更新并返回更新后的副本
func (s *MemoryStore) UpdateDoor(ctx context.Context, id string, patch model.DoorPatch) (*model.Door, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	door, ok := s.doors[id]
	if !ok {
		return nil, ErrDoorNotFound
	}
	door.Apply(patch)
	return door.Clone(), nil
}

// KeysFor 查询角色持有的钥匙
func (s *MemoryStore) KeysFor(ctx context.Context, actorID, wallID string) ([]model.KeyItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []model.KeyItem
	for _, item := range s.items {
		if item.ActorID == actorID && item.WallID == wallID {
			keys = append(keys, item)
		}
	}
	return keys, nil
}

// KeyExists 是否存在任意绑定到该门的钥匙
func (s *MemoryStore) KeyExists(ctx context.Context, wallID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.WallID == wallID {
			return true, nil
		}
	}
	return false, nil
}

// CreateItem 创建物品
func (s *MemoryStore) CreateItem(ctx context.Context, item model.KeyItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

// Items 返回所有物品（测试用）
func (s *MemoryStore) Items() []model.KeyItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.KeyItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	return items
}

// CreateActor 创建陷阱角色
func (s *MemoryStore) CreateActor(ctx context.Context, actor model.TrapActor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[actor.ID] = actor
	return nil
}

// DeleteActor 删除陷阱角色
func (s *MemoryStore) DeleteActor(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actors[id]; !ok {
		return ErrActorNotFound
	}
	delete(s.actors, id)
	return nil
}

// ListActors 文件夹中的陷阱角色
func (s *MemoryStore) ListActors(ctx context.Context, folder string) ([]model.TrapActor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	actors := make([]model.TrapActor, 0, len(s.actors))
	for _, actor := range s.actors {
		if actor.Folder == folder {
			actors = append(actors, actor)
		}
	}
	sort.Slice(actors, func(i, j int) bool {
		return actors[i].CreatedAt.Before(actors[j].CreatedAt)
	})
	return actors, nil
}

// ActorCount 当前陷阱角色数量
func (s *MemoryStore) ActorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actors)
}

// GetUser 获取用户
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
