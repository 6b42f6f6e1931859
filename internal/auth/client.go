package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// 管理接口用户或密码错误时的响应码
const codeInvalidCredentials = 10001

// TokenClient 玩家会话向权威会话换取令牌
type TokenClient struct {
	url    string
	client *http.Client
}

// NewTokenClient 创建令牌客户端，baseURL 为权威会话管理接口地址
func NewTokenClient(baseURL string, client *http.Client) *TokenClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenClient{
		url:    strings.TrimRight(baseURL, "/") + "/api/v1/auth/token",
		client: client,
	}
}

type tokenEnvelope struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    *LoginResponse `json:"data"`
}

// RequestToken 用用户凭证换取令牌
func (c *TokenClient) RequestToken(ctx context.Context, userID, password string) (*LoginResponse, error) {
	body, err := json.Marshal(LoginRequest{UserID: userID, Password: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request returned %s", resp.Status)
	}

	var env tokenEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	switch {
	case env.Code == codeInvalidCredentials:
		return nil, ErrInvalidCredentials
	case env.Code != 0:
		return nil, fmt.Errorf("token request failed: %d %s", env.Code, env.Message)
	case env.Data == nil || env.Data.Token == "":
		return nil, fmt.Errorf("token response: %w", ErrTokenInvalid)
	}
	return env.Data, nil
}
