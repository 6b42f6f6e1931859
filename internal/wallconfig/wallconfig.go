// Package wallconfig 门配置对话框：读取视图、批量写入、生成钥匙
package wallconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sudooom.trapdoors/internal/compendium"
	"sudooom.trapdoors/internal/geometry"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/snowflake"
	"sudooom.trapdoors/internal/store"
)

var (
	ErrNoTargets       = errors.New("NO_TARGETS")
	ErrUnknownTrap     = errors.New("UNKNOWN_TRAP")
	ErrInvalidRotation = errors.New("INVALID_ROTATION")
)

const keyNamePrefix = "Key - "

// Catalog 模板包
type Catalog interface {
	Get(pack, id string) (compendium.Template, error)
	FindByName(pack, name string) (compendium.Template, error)
	Entries(pack string) []compendium.Template
}

// Defaults 全局的铰链/开门方向
type Defaults interface {
	HingeSide() geometry.Rotation
	OpenDirection() geometry.Rotation
}

// Choice 下拉选项
type Choice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// View 对话框展示的内容
type View struct {
	DoorID        string            `json:"doorId"`
	Traps         []Choice          `json:"traps"`
	TrapID        string            `json:"trapId"`
	TrapActive    bool              `json:"trapActive"`
	PauseGame     bool              `json:"pauseGame"`
	PauseGameOnce bool              `json:"pauseGameOnce"`
	HingeSide     geometry.Rotation `json:"hingeSide"`
	OpenDirection geometry.Rotation `json:"openDirection"`
	AllowPeeking  bool              `json:"allowPeeking"`
	KeyExists     bool              `json:"keyExists"` // 已有钥匙时不能再生成
}

// Form 提交的表单
type Form struct {
	TrapID        string `json:"trapId"`
	PauseGame     bool   `json:"pauseGame"`
	PauseGameOnce bool   `json:"pauseGameOnce"`
	HingeSide     string `json:"hingeSide,omitempty"`
	OpenDirection string `json:"openDirection,omitempty"`
	AllowPeeking  *bool  `json:"allowPeeking,omitempty"`
	GenerateKey   bool   `json:"generateKey"`
}

// Result 写入结果
type Result struct {
	Doors []*model.Door   `json:"doors"`
	Keys  []model.KeyItem `json:"keys,omitempty"`
}

// Service 门配置服务
type Service struct {
	doors    store.DoorStore
	items    store.ItemStore
	catalog  Catalog
	defaults Defaults
	node     *snowflake.Node
	logger   *slog.Logger
}

// NewService 创建门配置服务
func NewService(doors store.DoorStore, items store.ItemStore, catalog Catalog, defaults Defaults, node *snowflake.Node) *Service {
	return &Service{
		doors:    doors,
		items:    items,
		catalog:  catalog,
		defaults: defaults,
		node:     node,
		logger:   slog.Default().With("component", "WallConfig"),
	}
}

// View 读取一扇门的配置视图
func (s *Service) View(ctx context.Context, doorID string) (*View, error) {
	door, err := s.doors.GetDoor(ctx, doorID)
	if err != nil {
		return nil, fmt.Errorf("get door %s: %w", doorID, err)
	}

	exists, err := s.items.KeyExists(ctx, doorID)
	if err != nil {
		return nil, fmt.Errorf("check key %s: %w", doorID, err)
	}

	entries := s.catalog.Entries(compendium.PackTraps)
	traps := make([]Choice, 0, len(entries))
	for _, e := range entries {
		traps = append(traps, Choice{ID: e.ID, Name: e.Name, Selected: e.ID == door.Flags.TrapID})
	}

	hinge, ok := geometry.ParseRotation(string(door.Flags.HingeSide))
	if !ok {
		hinge = s.defaults.HingeSide()
	}
	open, ok := geometry.ParseRotation(string(door.Flags.OpenDirection))
	if !ok {
		open = s.defaults.OpenDirection()
	}

	return &View{
		DoorID:        door.ID,
		Traps:         traps,
		TrapID:        door.Flags.TrapID,
		TrapActive:    door.Flags.TrapActive,
		PauseGame:     door.Flags.PauseGame,
		PauseGameOnce: door.Flags.PauseGameOnce,
		HingeSide:     hinge,
		OpenDirection: open,
		AllowPeeking:  door.Flags.PeekingAllowed(),
		KeyExists:     exists,
	}, nil
}

func (s *Service) patch(form Form) (model.DoorPatch, error) {
	if form.TrapID != "" {
		if _, err := s.catalog.Get(compendium.PackTraps, form.TrapID); err != nil {
			return model.DoorPatch{}, fmt.Errorf("%w: %s", ErrUnknownTrap, form.TrapID)
		}
	}

	flags := model.FlagsPatch{
		TrapID:        model.Ptr(form.TrapID),
		TrapActive:    model.Ptr(form.TrapID != ""),
		PauseGame:     model.Ptr(form.PauseGame),
		PauseGameOnce: model.Ptr(form.PauseGameOnce),
	}
	if form.HingeSide != "" {
		r, ok := geometry.ParseRotation(form.HingeSide)
		if !ok {
			return model.DoorPatch{}, fmt.Errorf("%w: hingeSide=%q", ErrInvalidRotation, form.HingeSide)
		}
		flags.HingeSide = &r
	}
	if form.OpenDirection != "" {
		r, ok := geometry.ParseRotation(form.OpenDirection)
		if !ok {
			return model.DoorPatch{}, fmt.Errorf("%w: openDirection=%q", ErrInvalidRotation, form.OpenDirection)
		}
		flags.OpenDirection = &r
	}
	if form.AllowPeeking != nil {
		flags.AllowPeeking = model.Ptr(*form.AllowPeeking)
	}
	return model.DoorPatch{Flags: flags}, nil
}

// Apply 将表单写入所有被编辑的门；需要时为每扇门生成钥匙
func (s *Service) Apply(ctx context.Context, ids []string, form Form) (*Result, error) {
	if len(ids) == 0 {
		return nil, ErrNoTargets
	}

	patch, err := s.patch(form)
	if err != nil {
		return nil, err
	}

	result := &Result{Doors: make([]*model.Door, 0, len(ids))}
	for _, id := range ids {
		door, err := s.doors.UpdateDoor(ctx, id, patch)
		if err != nil {
			return result, fmt.Errorf("update door %s: %w", id, err)
		}
		result.Doors = append(result.Doors, door)
	}

	if form.GenerateKey {
		keys, err := s.GenerateKeys(ctx, ids)
		result.Keys = keys
		if err != nil {
			return result, err
		}
	}

	s.logger.Info("Wall config applied",
		"doors", len(result.Doors),
		"trapId", form.TrapID,
		"keys", len(result.Keys))
	return result, nil
}

// GenerateKeys 为每扇还没有钥匙的门导入一把钥匙
func (s *Service) GenerateKeys(ctx context.Context, ids []string) ([]model.KeyItem, error) {
	tmpl, err := s.catalog.FindByName(compendium.PackItems, compendium.KeyItemName)
	if err != nil {
		return nil, fmt.Errorf("find key template: %w", err)
	}

	var keys []model.KeyItem
	for _, id := range ids {
		exists, err := s.items.KeyExists(ctx, id)
		if err != nil {
			return keys, fmt.Errorf("check key %s: %w", id, err)
		}
		if exists {
			s.logger.Debug("Key already exists, skipping", "doorId", id)
			continue
		}

		key := model.KeyItem{
			ID:     s.node.Generate().Base36(),
			Name:   KeyName(id),
			WallID: id,
			Source: compendium.SourceRef(compendium.PackItems, tmpl.ID),
		}
		if err := s.items.CreateItem(ctx, key); err != nil {
			return keys, fmt.Errorf("create key %s: %w", id, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// KeyName 钥匙物品名
func KeyName(wallID string) string {
	return keyNamePrefix + wallID
}
