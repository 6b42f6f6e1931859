package model

import "time"

// User 连接到世界的用户
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsGM        bool   `json:"isGM"`
	CharacterID string `json:"characterId,omitempty"` // 用户当前操控的角色，可为空
	CanUseDoors bool   `json:"canUseDoors"`

	PasswordHash string `json:"-"` // bcrypt 哈希，为空的用户不能登录
}

// KeyItem 钥匙物品，通过 WallID 弱引用一扇门
type KeyItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	ActorID string `json:"actorId,omitempty"` // 为空表示世界物品栏
	WallID  string `json:"wallID"`
	Source  string `json:"sourceId,omitempty"`
}

// TrapActor 由陷阱模板导入的临时角色
type TrapActor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceID  string    `json:"sourceId"` // Compendium.trapped-doors.td-traps.<trapID>
	Folder    string    `json:"folder,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
