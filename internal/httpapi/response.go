package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// 错误码
const (
	CodeSuccess = 0

	// 认证相关 10000-10999
	CodeInvalidCredentials = 10001
	CodeTokenInvalid       = 10003
	CodeTokenExpired       = 10004
	CodeForbidden          = 10005

	// 参数相关 11000-11999
	CodeInvalidParams = 11002

	// 门相关 13000-13999
	CodeDoorNotFound   = 13001
	CodeTrapNotFound   = 13002
	CodeUnknownSetting = 13003
	CodeInvalidSetting = 13004

	// 系统错误 50000-50999
	CodeServerError = 50000
)

var codeMessages = map[int]string{
	CodeSuccess:            "success",
	CodeInvalidCredentials: "用户或密码错误",
	CodeTokenInvalid:       "Token 无效",
	CodeTokenExpired:       "Token 已过期",
	CodeForbidden:          "需要主持人权限",
	CodeInvalidParams:      "参数校验失败",
	CodeDoorNotFound:       "门不存在",
	CodeTrapNotFound:       "陷阱不存在",
	CodeUnknownSetting:     "未知设置项",
	CodeInvalidSetting:     "设置值无效",
	CodeServerError:        "服务器内部错误",
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int) {
	message := codeMessages[code]
	if message == "" {
		message = "unknown error"
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithMsg 自定义错误消息
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// Unauthorized 未认证
func Unauthorized(c *gin.Context, code int) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    code,
		Message: codeMessages[code],
	})
}

// Forbidden 无权限
func Forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, Response{
		Code:    CodeForbidden,
		Message: codeMessages[CodeForbidden],
	})
}
