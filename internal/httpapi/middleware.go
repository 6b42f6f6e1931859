package httpapi

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"sudooom.trapdoors/internal/auth"
)

// TokenVerifier 令牌校验
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// GMAuth 只允许主持人令牌访问管理接口
func GMAuth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			Unauthorized(c, CodeTokenInvalid)
			c.Abort()
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				Unauthorized(c, CodeTokenExpired)
			} else {
				Unauthorized(c, CodeTokenInvalid)
			}
			c.Abort()
			return
		}
		if !claims.IsGM() {
			Forbidden(c)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// extractToken 从 Authorization header 提取 token
func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// GetUserID 从 context 获取 user_id
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	return userID.(string)
}
