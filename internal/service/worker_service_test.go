package service

import (
	"context"
	"testing"
	"time"

	"benchhub/internal/core"
	"benchhub/internal/model"
	"benchhub/pkg/constants"
	redisstore "benchhub/pkg/store/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkerService(t *testing.T) (*WorkerService, *redisstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := redisstore.NewStoreWithClient(client)
	return NewWorkerService(store, time.Minute), store
}

func registerRequest(udid string) *model.RegisterRequest {
	return &model.RegisterRequest{
		UDID:         udid,
		DeviceName:   "mac-studio",
		IPAddress:    "192.168.1.20",
		Capabilities: []string{constants.ComputeUnitCPUONNX, constants.ComputeUnitGPUCoreML},
		DeviceInfo:   map[string]interface{}{"soc": "M2 Max", "ram": "64GB"},
	}
}

func TestRegisterIdempotentOnUDID(t *testing.T) {
	svc, _ := newTestWorkerService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, registerRequest("udid-123"))
	require.NoError(t, err)
	assert.Equal(t, model.RegisterActionCreated, first.Action)
	assert.NotEmpty(t, first.WorkerID)

	req := registerRequest("udid-123")
	req.IPAddress = "192.168.1.21"
	second, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.RegisterActionUpdated, second.Action)
	assert.Equal(t, first.WorkerID, second.WorkerID, "same device keeps its worker id")

	worker, err := svc.Get(ctx, first.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.21", worker.IPAddress)
	assert.Equal(t, constants.WorkerStatusActive, worker.Status)
}

func TestRegisterWithoutUDIDAlwaysCreates(t *testing.T) {
	svc, _ := newTestWorkerService(t)
	ctx := context.Background()

	req := registerRequest("")
	first, err := svc.Register(ctx, req)
	require.NoError(t, err)
	second, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.WorkerID, second.WorkerID)
}

func TestRegisterRejectsUnknownCapability(t *testing.T) {
	svc, _ := newTestWorkerService(t)

	req := registerRequest("udid-123")
	req.Capabilities = []string{"FPGA (Verilog)"}
	_, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestRegisterDoesNotResetBusy(t *testing.T) {
	svc, store := newTestWorkerService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerRequest("udid-123"))
	require.NoError(t, err)

	_, err = store.UpdateWorker(ctx, resp.WorkerID, func(w *model.Worker) (bool, error) {
		w.Status = constants.WorkerStatusBusy
		w.CurrentJobID = "campaign-a-job-0"
		return true, nil
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerRequest("udid-123"))
	require.NoError(t, err)

	worker, err := svc.Get(ctx, resp.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusBusy, worker.Status)
	assert.Equal(t, "campaign-a-job-0", worker.CurrentJobID)
}

func TestSetStatus(t *testing.T) {
	svc, _ := newTestWorkerService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerRequest("udid-123"))
	require.NoError(t, err)

	worker, err := svc.SetStatus(ctx, resp.WorkerID, constants.WorkerStatusCleanup)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusCleanup, worker.Status)

	_, err = svc.SetStatus(ctx, resp.WorkerID, constants.WorkerStatusBusy)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = svc.SetStatus(ctx, resp.WorkerID, "sleeping")
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = svc.SetStatus(ctx, "worker-missing", constants.WorkerStatusActive)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	svc, store := newTestWorkerService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerRequest("udid-123"))
	require.NoError(t, err)

	stale := time.Now().Add(-2 * time.Minute)
	_, err = store.UpdateWorker(ctx, resp.WorkerID, func(w *model.Worker) (bool, error) {
		w.LastHeartbeat = stale
		return true, nil
	})
	require.NoError(t, err)

	health, err := svc.Health(ctx, resp.WorkerID)
	require.NoError(t, err)
	assert.False(t, health.Healthy)

	health, err = svc.Heartbeat(ctx, resp.WorkerID)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Less(t, health.SecondsSinceBeat, 1.0)

	_, err = svc.Heartbeat(ctx, "worker-missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestResetReturnsFaultyWorkerToActive(t *testing.T) {
	svc, store := newTestWorkerService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerRequest("udid-123"))
	require.NoError(t, err)

	_, err = store.ReclaimWorker(ctx, resp.WorkerID, "")
	require.NoError(t, err)

	worker, err := svc.Reset(ctx, resp.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusActive, worker.Status)

	// Already active: no-op
	worker, err = svc.Reset(ctx, resp.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusActive, worker.Status)
}
