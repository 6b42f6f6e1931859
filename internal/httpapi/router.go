// Package httpapi 权威会话的管理接口
package httpapi

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter(mode string, tokens TokenVerifier, h *Handler, a *AuthHandler) *gin.Engine {
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)

	r.POST("/api/v1/auth/token", a.Token)

	v1 := r.Group("/api/v1")
	v1.Use(GMAuth(tokens))
	{
		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings/:key", h.SetSetting)

		walls := v1.Group("/walls")
		{
			walls.GET("/:id", h.GetDoor)
			walls.PUT("/:id", h.PutDoor)
			walls.GET("/:id/config", h.GetWallConfig)
		}

		v1.PUT("/wall-config", h.ApplyWallConfig)

		traps := v1.Group("/traps")
		{
			traps.GET("", h.ListTraps)
			traps.GET("/instances", h.ListInstances)
			traps.DELETE("/instances/:trapId", h.DismissInstance)
		}
	}

	return r
}
