package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.trapdoors/internal/task"
)

type fixedAuthority bool

func (a fixedAuthority) IsAuthoritative() bool { return bool(a) }

func TestCheck_AllDisabled(t *testing.T) {
	h := NewChecker(nil, nil, nil).WithAuthority(fixedAuthority(true))

	status := h.Check(context.Background())
	assert.Equal(t, StatusDisabled, status.NATS)
	assert.Equal(t, StatusDisabled, status.Redis)
	assert.Equal(t, StatusDisabled, status.Database)
	assert.True(t, status.Authority)
	assert.True(t, status.Healthy())
}

func TestCheck_RedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	h := NewChecker(nil, client, nil)
	assert.False(t, h.IsHealthy(context.Background()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusDisconnected, status.Redis)
	assert.False(t, status.Authority)
}

func TestServeHTTP_OK(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

type fixedStats task.Stats

func (s fixedStats) Stats() task.Stats { return task.Stats(s) }

func TestCheck_SchedulerStats(t *testing.T) {
	h := NewChecker(nil, nil, nil).WithScheduler(fixedStats{Running: true, Pending: 2, Workers: 4})

	status := h.Check(context.Background())
	require.NotNil(t, status.Scheduler)
	assert.True(t, status.Scheduler.Running)
	assert.Equal(t, 2, status.Scheduler.Pending)

	assert.Nil(t, NewChecker(nil, nil, nil).Check(context.Background()).Scheduler)
}

type fixedBuffer [2]int

func (b fixedBuffer) GetBufferUsage() (int, int) { return b[0], b[1] }

func TestCheck_BufferUsage(t *testing.T) {
	status := NewChecker(nil, nil, nil).WithBuffer(fixedBuffer{3, 1024}).Check(context.Background())
	require.NotNil(t, status.Buffer)
	assert.Equal(t, Buffer{Current: 3, Capacity: 1024}, *status.Buffer)

	assert.Nil(t, NewChecker(nil, nil, nil).Check(context.Background()).Buffer)
}
