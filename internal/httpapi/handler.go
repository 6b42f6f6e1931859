package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sudooom.trapdoors/internal/compendium"
	"sudooom.trapdoors/internal/health"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/settings"
	"sudooom.trapdoors/internal/store"
	"sudooom.trapdoors/internal/trap"
	"sudooom.trapdoors/internal/wallconfig"
)

// Settings 世界设置
type Settings interface {
	All() map[string]any
	Get(key string) (any, error)
	Set(key string, value any) error
}

// WallConfig 门配置
type WallConfig interface {
	View(ctx context.Context, doorID string) (*wallconfig.View, error)
	Apply(ctx context.Context, ids []string, form wallconfig.Form) (*wallconfig.Result, error)
}

// Traps 陷阱实例
type Traps interface {
	Instances() []trap.Instance
	Dismiss(ctx context.Context, trapID string) error
}

// Catalog 模板包
type Catalog interface {
	Entries(pack string) []compendium.Template
}

// Doors 门文档
type Doors interface {
	store.DoorStore
	store.DoorWriter
}

// Handler 管理接口处理器
type Handler struct {
	checker  *health.Checker
	settings Settings
	walls    WallConfig
	traps    Traps
	catalog  Catalog
	doors    Doors
	logger   *slog.Logger
}

// NewHandler 创建处理器
func NewHandler(checker *health.Checker, settings Settings, walls WallConfig, traps Traps, catalog Catalog, doors Doors) *Handler {
	return &Handler{
		checker:  checker,
		settings: settings,
		walls:    walls,
		traps:    traps,
		catalog:  catalog,
		doors:    doors,
		logger:   slog.Default().With("component", "HTTPAPI"),
	}
}

// Health 健康检查
// GET /health
func (h *Handler) Health(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// GetSettings 获取全部设置
// GET /api/v1/settings
func (h *Handler) GetSettings(c *gin.Context) {
	Success(c, h.settings.All())
}

// SetSettingRequest 修改设置
type SetSettingRequest struct {
	Value any `json:"value"`
}

// SetSetting 修改一个设置
// PUT /api/v1/settings/:key
func (h *Handler) SetSetting(c *gin.Context) {
	var req SetSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorWithMsg(c, CodeInvalidParams, err.Error())
		return
	}
	if req.Value == nil {
		ErrorWithMsg(c, CodeInvalidParams, "value is required")
		return
	}

	key := c.Param("key")
	if err := h.settings.Set(key, req.Value); err != nil {
		switch {
		case errors.Is(err, settings.ErrUnknownSetting):
			Error(c, CodeUnknownSetting)
		case errors.Is(err, settings.ErrInvalidValue):
			ErrorWithMsg(c, CodeInvalidSetting, err.Error())
		default:
			Error(c, CodeServerError)
		}
		return
	}

	value, _ := h.settings.Get(key)
	h.logger.Info("Setting updated", "key", key, "value", value, "userId", GetUserID(c))
	Success(c, gin.H{"key": key, "value": value})
}

// GetDoor 获取门文档
// GET /api/v1/walls/:id
func (h *Handler) GetDoor(c *gin.Context) {
	door, err := h.doors.GetDoor(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.doorError(c, err)
		return
	}
	Success(c, door)
}

// PutDoor 写入门文档
// PUT /api/v1/walls/:id
func (h *Handler) PutDoor(c *gin.Context) {
	var door model.Door
	if err := c.ShouldBindJSON(&door); err != nil {
		ErrorWithMsg(c, CodeInvalidParams, err.Error())
		return
	}
	door.ID = c.Param("id")

	if err := h.doors.Upsert(c.Request.Context(), &door); err != nil {
		h.logger.Error("Failed to upsert door", "doorId", door.ID, "error", err)
		Error(c, CodeServerError)
		return
	}
	Success(c, &door)
}

// GetWallConfig 门配置视图
// GET /api/v1/walls/:id/config
func (h *Handler) GetWallConfig(c *gin.Context) {
	view, err := h.walls.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.doorError(c, err)
		return
	}
	Success(c, view)
}

// ApplyWallConfigRequest 批量写入门配置
type ApplyWallConfigRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
	wallconfig.Form
}

// ApplyWallConfig 批量写入门配置
// PUT /api/v1/wall-config
func (h *Handler) ApplyWallConfig(c *gin.Context) {
	var req ApplyWallConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorWithMsg(c, CodeInvalidParams, err.Error())
		return
	}

	res, err := h.walls.Apply(c.Request.Context(), req.IDs, req.Form)
	if err != nil {
		switch {
		case errors.Is(err, wallconfig.ErrUnknownTrap):
			Error(c, CodeTrapNotFound)
		case errors.Is(err, wallconfig.ErrInvalidRotation), errors.Is(err, wallconfig.ErrNoTargets):
			ErrorWithMsg(c, CodeInvalidParams, err.Error())
		default:
			h.doorError(c, err)
		}
		return
	}
	Success(c, res)
}

// ListTraps 陷阱模板
// GET /api/v1/traps
func (h *Handler) ListTraps(c *gin.Context) {
	Success(c, h.catalog.Entries(compendium.PackTraps))
}

// ListInstances 存活的陷阱实例
// GET /api/v1/traps/instances
func (h *Handler) ListInstances(c *gin.Context) {
	Success(c, h.traps.Instances())
}

// DismissInstance 立即删除陷阱实例
// DELETE /api/v1/traps/instances/:trapId
func (h *Handler) DismissInstance(c *gin.Context) {
	trapID := c.Param("trapId")
	if err := h.traps.Dismiss(c.Request.Context(), trapID); err != nil {
		if errors.Is(err, trap.ErrNoInstance) {
			Error(c, CodeTrapNotFound)
			return
		}
		h.logger.Error("Failed to dismiss trap", "trapId", trapID, "error", err)
		Error(c, CodeServerError)
		return
	}
	Success(c, nil)
}

func (h *Handler) doorError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrDoorNotFound) {
		Error(c, CodeDoorNotFound)
		return
	}
	h.logger.Error("Door request failed", "path", c.FullPath(), "error", err)
	Error(c, CodeServerError)
}
