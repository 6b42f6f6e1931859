package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sudooom.trapdoors/internal/auth"
	"sudooom.trapdoors/internal/compendium"
	"sudooom.trapdoors/internal/health"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/settings"
	"sudooom.trapdoors/internal/snowflake"
	"sudooom.trapdoors/internal/store"
	"sudooom.trapdoors/internal/task"
	"sudooom.trapdoors/internal/trap"
	"sudooom.trapdoors/internal/wallconfig"
)

const testPack = `
packs:
  td-traps:
    entries:
      - id: spikes
        name: Spike Trap
        type: hazard
        items:
          - name: Effect
            roll: 2d6
  td-items:
    entries:
      - id: doorKey
        name: Key
        type: loot
`

// APIResponse 用于解析响应体
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	engine   *gin.Engine
	mem      *store.MemoryStore
	registry *trap.Registry
	seed     []byte
	gmToken  string
	pToken   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	catalog, err := compendium.Parse([]byte(testPack))
	require.NoError(t, err)

	scheduler := task.NewScheduler(1, 100*time.Millisecond)
	require.NoError(t, scheduler.Start())
	t.Cleanup(scheduler.Stop)

	mem := store.NewMemoryStore()
	node := snowflake.NewNode(2)
	conf := settings.New(nil)
	registry := trap.NewRegistry(catalog, mem, scheduler, trap.NewActivator("dnd5e"), node, trap.Options{})
	walls := wallconfig.NewService(mem, mem, catalog, conf, node)

	seed, err := auth.GenerateSeed()
	require.NoError(t, err)
	tokens, err := auth.NewIssuer(seed, time.Hour)
	require.NoError(t, err)
	gmToken, err := tokens.Issue("gm", auth.RoleGM, "")
	require.NoError(t, err)
	pToken, err := tokens.Issue("p1", auth.RolePlayer, "char-1")
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	mem.PutUser(model.User{ID: "gm", IsGM: true, PasswordHash: string(hash)})
	mem.PutUser(model.User{ID: "p1", CharacterID: "char-1", PasswordHash: string(hash)})
	login, err := auth.NewLogin(mem, tokens)
	require.NoError(t, err)

	h := NewHandler(health.NewChecker(nil, nil, nil), conf, walls, registry, catalog, mem)
	return &testServer{
		engine:   SetupRouter(gin.TestMode, tokens, h, NewAuthHandler(login)),
		mem:      mem,
		registry: registry,
		seed:     seed,
		gmToken:  gmToken,
		pToken:   pToken,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp APIResponse
	if w.Code != http.StatusServiceUnavailable && path != "/health" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var status health.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, health.StatusDisabled, status.NATS)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeTokenInvalid, resp.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/settings", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeTokenInvalid, resp.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/settings", s.pToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeForbidden, resp.Code)

	stale, err := auth.NewIssuer(s.seed, -time.Minute)
	require.NoError(t, err)
	expired, err := stale.Issue("gm", auth.RoleGM, "")
	require.NoError(t, err)
	w, resp = s.do(t, http.MethodGet, "/api/v1/settings", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeTokenExpired, resp.Code)

	// 其他私钥签发的 GM 令牌不被接受
	otherSeed, err := auth.GenerateSeed()
	require.NoError(t, err)
	other, err := auth.NewIssuer(otherSeed, time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue("p1", auth.RoleGM, "")
	require.NoError(t, err)
	w, resp = s.do(t, http.MethodGet, "/api/v1/settings", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeTokenInvalid, resp.Code)
}

func TestToken(t *testing.T) {
	s := newTestServer(t)

	_, resp := s.do(t, http.MethodPost, "/api/v1/auth/token", "", gin.H{"userId": "p1", "password": "hunter2"})
	require.Equal(t, CodeSuccess, resp.Code)
	var issued auth.LoginResponse
	require.NoError(t, json.Unmarshal(resp.Data, &issued))
	assert.Equal(t, auth.RolePlayer, issued.Role)
	assert.Equal(t, "char-1", issued.CharacterID)

	// 玩家令牌不能访问管理接口
	w, resp := s.do(t, http.MethodGet, "/api/v1/settings", issued.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeForbidden, resp.Code)

	_, resp = s.do(t, http.MethodPost, "/api/v1/auth/token", "", gin.H{"userId": "gm", "password": "hunter2"})
	require.Equal(t, CodeSuccess, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &issued))
	assert.Equal(t, auth.RoleGM, issued.Role)
	_, resp = s.do(t, http.MethodGet, "/api/v1/settings", issued.Token, nil)
	assert.Equal(t, CodeSuccess, resp.Code)

	_, resp = s.do(t, http.MethodPost, "/api/v1/auth/token", "", gin.H{"userId": "p1", "password": "wrong"})
	assert.Equal(t, CodeInvalidCredentials, resp.Code)
	_, resp = s.do(t, http.MethodPost, "/api/v1/auth/token", "", gin.H{"userId": "ghost", "password": "hunter2"})
	assert.Equal(t, CodeInvalidCredentials, resp.Code)
	_, resp = s.do(t, http.MethodPost, "/api/v1/auth/token", "", gin.H{"userId": "p1"})
	assert.Equal(t, CodeInvalidParams, resp.Code)

	// 玩家进程使用的客户端
	srv := httptest.NewServer(s.engine)
	defer srv.Close()
	client := auth.NewTokenClient(srv.URL, nil)
	got, err := client.RequestToken(context.Background(), "p1", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "char-1", got.CharacterID)
	_, err = client.RequestToken(context.Background(), "p1", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t)

	_, resp := s.do(t, http.MethodGet, "/api/v1/settings", s.gmToken, nil)
	require.Equal(t, CodeSuccess, resp.Code)
	var all map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	assert.Equal(t, 20.0, all["peekDegrees"])
	assert.Equal(t, "cw", all["hingeSide"])

	_, resp = s.do(t, http.MethodPut, "/api/v1/settings/peekDegrees", s.gmToken, gin.H{"value": 35})
	require.Equal(t, CodeSuccess, resp.Code)
	assert.JSONEq(t, `{"key":"peekDegrees","value":35}`, string(resp.Data))

	_, resp = s.do(t, http.MethodPut, "/api/v1/settings/hingeSide", s.gmToken, gin.H{"value": "up"})
	assert.Equal(t, CodeInvalidSetting, resp.Code)

	for _, bad := range []any{"NaN", "+Inf", 1e308, 0} {
		_, resp = s.do(t, http.MethodPut, "/api/v1/settings/peekDegrees", s.gmToken, gin.H{"value": bad})
		assert.Equal(t, CodeInvalidSetting, resp.Code, "value=%v", bad)
	}

	_, resp = s.do(t, http.MethodPut, "/api/v1/settings/volume", s.gmToken, gin.H{"value": 3})
	assert.Equal(t, CodeUnknownSetting, resp.Code)

	_, resp = s.do(t, http.MethodPut, "/api/v1/settings/openOnTrap", s.gmToken, gin.H{})
	assert.Equal(t, CodeInvalidParams, resp.Code)

	_, resp = s.do(t, http.MethodPut, "/api/v1/settings/openOnTrap", s.gmToken, gin.H{"value": false})
	assert.Equal(t, CodeSuccess, resp.Code)
}

func TestWalls(t *testing.T) {
	s := newTestServer(t)

	_, resp := s.do(t, http.MethodGet, "/api/v1/walls/d1", s.gmToken, nil)
	assert.Equal(t, CodeDoorNotFound, resp.Code)

	_, resp = s.do(t, http.MethodPut, "/api/v1/walls/d1", s.gmToken, gin.H{
		"c":    []float64{0, 0, 100, 0},
		"ds":   0,
		"door": 2,
	})
	require.Equal(t, CodeSuccess, resp.Code)

	door, err := s.mem.GetDoor(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, model.KindSecret, door.Kind)

	_, resp = s.do(t, http.MethodPut, "/api/v1/wall-config", s.gmToken, gin.H{
		"ids":         []string{"d1"},
		"trapId":      "spikes",
		"pauseGame":   true,
		"generateKey": true,
	})
	require.Equal(t, CodeSuccess, resp.Code)
	var res wallconfig.Result
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	require.Len(t, res.Keys, 1)
	assert.Equal(t, "Key - d1", res.Keys[0].Name)

	_, resp = s.do(t, http.MethodGet, "/api/v1/walls/d1/config", s.gmToken, nil)
	require.Equal(t, CodeSuccess, resp.Code)
	var view wallconfig.View
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "spikes", view.TrapID)
	assert.True(t, view.TrapActive)
	assert.True(t, view.PauseGame)
	assert.True(t, view.KeyExists)

	_, resp = s.do(t, http.MethodPut, "/api/v1/wall-config", s.gmToken, gin.H{"ids": []string{"d1"}, "trapId": "dragon"})
	assert.Equal(t, CodeTrapNotFound, resp.Code)

	_, resp = s.do(t, http.MethodPut, "/api/v1/wall-config", s.gmToken, gin.H{"trapId": "spikes"})
	assert.Equal(t, CodeInvalidParams, resp.Code)

	_, resp = s.do(t, http.MethodGet, "/api/v1/walls/nope/config", s.gmToken, nil)
	assert.Equal(t, CodeDoorNotFound, resp.Code)
}

func TestTraps(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, resp := s.do(t, http.MethodGet, "/api/v1/traps", s.gmToken, nil)
	require.Equal(t, CodeSuccess, resp.Code)
	var templates []compendium.Template
	require.NoError(t, json.Unmarshal(resp.Data, &templates))
	require.Len(t, templates, 1)
	assert.Equal(t, "Spike Trap", templates[0].Name)

	_, err := s.registry.Trip(ctx, "spikes")
	require.NoError(t, err)

	_, resp = s.do(t, http.MethodGet, "/api/v1/traps/instances", s.gmToken, nil)
	var instances []trap.Instance
	require.NoError(t, json.Unmarshal(resp.Data, &instances))
	require.Len(t, instances, 1)
	assert.Equal(t, "spikes", instances[0].TrapID)

	_, resp = s.do(t, http.MethodDelete, "/api/v1/traps/instances/spikes", s.gmToken, nil)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, 0, s.mem.ActorCount())

	_, resp = s.do(t, http.MethodDelete, "/api/v1/traps/instances/spikes", s.gmToken, nil)
	assert.Equal(t, CodeTrapNotFound, resp.Code)
}
