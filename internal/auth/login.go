package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid user id or password")

// LoginRequest 登录请求
type LoginRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应，角色和角色卡都以用户目录为准
type LoginResponse struct {
	Token       string `json:"token"`
	ExpiresIn   int64  `json:"expiresIn"`
	UserID      string `json:"userId"`
	Role        Role   `json:"role"`
	CharacterID string `json:"characterId,omitempty"`
}

// Login 用户目录登录，只能在持有签名私钥的权威会话上创建
type Login struct {
	users  store.UserStore
	tokens *Service
}

// NewLogin 创建登录服务
func NewLogin(users store.UserStore, tokens *Service) (*Login, error) {
	if !tokens.CanIssue() {
		return nil, ErrCannotIssue
	}
	return &Login{users: users, tokens: tokens}, nil
}

// Login 校验密码并签发令牌
func (l *Login) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := l.users.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return l.IssueFor(user)
}

// IssueFor 直接为目录中的用户签发令牌，权威会话给自己签发时使用
func (l *Login) IssueFor(user *model.User) (*LoginResponse, error) {
	role := RolePlayer
	if user.IsGM {
		role = RoleGM
	}
	token, err := l.tokens.Issue(user.ID, role, user.CharacterID)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token:       token,
		ExpiresIn:   int64(l.tokens.Expire().Seconds()),
		UserID:      user.ID,
		Role:        role,
		CharacterID: user.CharacterID,
	}, nil
}

// HashPassword 生成密码哈希，写入 users.password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
