// Package auth 会话令牌：每个命令信封都携带发送者的签名令牌
//
// 令牌用 Ed25519 签名。签名私钥只在权威会话上，其他会话只持有公钥，
// 可以校验令牌但不能签发。
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenExpired  = errors.New("token has expired")
	ErrCannotIssue   = errors.New("no signing key, tokens can only be verified")
	ErrKeyMalformed  = errors.New("key is malformed")
	ErrKeyNotPresent = errors.New("key is not configured")
)

// Role 会话角色
type Role string

const (
	RoleGM     Role = "gm"     // 主持人，可成为权威会话
	RolePlayer Role = "player" // 玩家
)

// Claims 会话声明
type Claims struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	CharacterID string `json:"character_id,omitempty"`
	jwt.RegisteredClaims
}

// IsGM 是否主持人
func (c *Claims) IsGM() bool {
	return c.Role == RoleGM
}

// Service 令牌服务
type Service struct {
	private ed25519.PrivateKey // 为空时只能校验
	public  ed25519.PublicKey
	expire  time.Duration
	issuer  string
}

// NewIssuer 由签名种子创建可签发令牌的服务，只在权威会话上使用
func NewIssuer(seed []byte, expire time.Duration) (*Service, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key: %w", ErrKeyMalformed)
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &Service{
		private: private,
		public:  private.Public().(ed25519.PublicKey),
		expire:  expire,
		issuer:  "trapped-doors",
	}, nil
}

// NewVerifier 创建只能校验令牌的服务
func NewVerifier(public ed25519.PublicKey) *Service {
	return &Service{
		public: public,
		issuer: "trapped-doors",
	}
}

// GenerateSeed 生成新的签名种子
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// EncodeKey base64 编码种子或公钥，与 DecodeSeed / DecodePublicKey 对应
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeSeed 解析 base64 编码的签名种子
func DecodeSeed(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrKeyNotPresent
	}
	seed, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key: %w", ErrKeyMalformed)
	}
	return seed, nil
}

// DecodePublicKey 解析 base64 编码的公钥
func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	if s == "" {
		return nil, ErrKeyNotPresent
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key: %w", ErrKeyMalformed)
	}
	return ed25519.PublicKey(key), nil
}

// PublicKey base64 编码的公钥，分发给其他会话
func (s *Service) PublicKey() string {
	return EncodeKey(s.public)
}

// CanIssue 是否持有签名私钥
func (s *Service) CanIssue() bool {
	return s.private != nil
}

// Issue 为会话签发令牌
func (s *Service) Issue(userID string, role Role, characterID string) (string, error) {
	if !s.CanIssue() {
		return "", ErrCannotIssue
	}

	now := time.Now()
	claims := &Claims{
		UserID:      userID,
		Role:        role,
		CharacterID: characterID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expire)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.private)
}

// Verify 校验令牌并返回声明
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, ErrTokenInvalid
		}
		return s.public, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Expire 令牌有效期
func (s *Service) Expire() time.Duration {
	return s.expire
}
