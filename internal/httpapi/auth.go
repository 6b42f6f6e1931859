package httpapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"sudooom.trapdoors/internal/auth"
)

// Login 用户目录登录
type Login interface {
	Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error)
}

// AuthHandler 令牌签发接口，只在权威会话上提供
type AuthHandler struct {
	login  Login
	logger *slog.Logger
}

// NewAuthHandler 创建令牌处理器
func NewAuthHandler(login Login) *AuthHandler {
	return &AuthHandler{
		login:  login,
		logger: slog.Default().With("component", "HTTPAPI"),
	}
}

// Token 用户凭证换取会话令牌
// POST /api/v1/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorWithMsg(c, CodeInvalidParams, err.Error())
		return
	}

	resp, err := h.login.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Warn("Token request rejected", "userId", req.UserID)
			Error(c, CodeInvalidCredentials)
			return
		}
		h.logger.Error("Failed to issue token", "userId", req.UserID, "error", err)
		Error(c, CodeServerError)
		return
	}

	h.logger.Info("Token issued", "userId", resp.UserID, "role", resp.Role)
	Success(c, resp)
}
