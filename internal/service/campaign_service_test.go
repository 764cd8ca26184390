package service

import (
	"context"
	"testing"
	"time"

	"benchhub/internal/core"
	"benchhub/internal/dispatch"
	"benchhub/internal/model"
	"benchhub/pkg/config"
	"benchhub/pkg/constants"
	redisstore "benchhub/pkg/store/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type campaignFixture struct {
	store     *redisstore.Store
	workers   *WorkerService
	campaigns *CampaignService
}

func newCampaignFixture(t *testing.T, policy config.TimeoutPolicy) *campaignFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := redisstore.NewStoreWithClient(client)
	dispatcher := dispatch.New(store, time.Second)
	workers := NewWorkerService(store, time.Minute)
	workers.SetDispatcher(dispatcher)
	campaigns := NewCampaignService(store, time.Hour, policy)
	campaigns.SetDispatcher(dispatcher)

	return &campaignFixture{store: store, workers: workers, campaigns: campaigns}
}

func (f *campaignFixture) registerWorker(t *testing.T, udid string, capabilities ...string) string {
	t.Helper()
	resp, err := f.workers.Register(context.Background(), &model.RegisterRequest{
		UDID:         udid,
		DeviceName:   "rig-" + udid,
		IPAddress:    "10.0.0.9",
		Capabilities: capabilities,
		DeviceInfo:   map[string]interface{}{"soc": "M3", "os": "macOS"},
	})
	require.NoError(t, err)
	return resp.WorkerID
}

func TestCreateCampaignDispatchesImmediately(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyFail)
	ctx := context.Background()

	workerID := f.registerWorker(t, "udid-1", constants.ComputeUnitCPUONNX)

	resp, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/resnet.onnx",
		Jobs: []model.JobSpec{
			{ComputeUnit: constants.ComputeUnitCPUONNX, NumInferenceRuns: 10},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalJobs)
	require.Len(t, resp.JobIDs, 1)

	// Registration and creation both tick dispatch: the job is running
	job, err := f.store.GetJob(ctx, resp.JobIDs[0])
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, job.Status)
	assert.Equal(t, workerID, job.AssignedWorkerID)
	assert.Equal(t, 5, job.NumWarmups, "warmups default applied")
	assert.Equal(t, 10, job.NumInferenceRuns)

	worker, err := f.workers.Get(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusBusy, worker.Status)
}

func TestCreateCampaignValidation(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyFail)
	ctx := context.Background()

	_, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/m.onnx",
		Jobs:     []model.JobSpec{{ComputeUnit: "Quantum (ONNX)"}},
	})
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/m.onnx",
		Jobs:     []model.JobSpec{{ComputeUnit: constants.ComputeUnitCPUONNX, WorkerID: "worker-ghost"}},
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestIngestResultCompletesCampaign(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyFail)
	ctx := context.Background()

	workerID := f.registerWorker(t, "udid-1", constants.ComputeUnitCPUONNX)
	resp, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/resnet.onnx",
		Jobs:     []model.JobSpec{{ComputeUnit: constants.ComputeUnitCPUONNX}},
	})
	require.NoError(t, err)
	jobID := resp.JobIDs[0]

	job, err := f.campaigns.IngestResult(ctx, &model.IngestRequest{
		JobID:             jobID,
		WorkerID:          workerID,
		Status:            constants.ResultStatusComplete,
		InferenceMsMedian: 12.5,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusComplete, job.Status)

	campaign, err := f.store.GetCampaign(ctx, resp.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, constants.CampaignStatusCompleted, campaign.Status)

	worker, err := f.workers.Get(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusActive, worker.Status)

	// Duplicate delivery is a no-op
	again, err := f.campaigns.IngestResult(ctx, &model.IngestRequest{
		JobID:  jobID,
		Status: constants.ResultStatusComplete,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusComplete, again.Status)
}

func TestFailedJobMakesCampaignPartial(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyFail)
	ctx := context.Background()

	f.registerWorker(t, "udid-1", constants.ComputeUnitCPUONNX)
	resp, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/resnet.onnx",
		Jobs: []model.JobSpec{
			{ComputeUnit: constants.ComputeUnitCPUONNX},
			{ComputeUnit: constants.ComputeUnitCPUONNX},
		},
	})
	require.NoError(t, err)

	// First job fails; the freed worker picks up the second
	_, err = f.campaigns.IngestResult(ctx, &model.IngestRequest{
		JobID:  resp.JobIDs[0],
		Status: constants.ResultStatusFailed,
		Remark: "model load crashed",
	})
	require.NoError(t, err)

	campaign, err := f.store.GetCampaign(ctx, resp.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, constants.CampaignStatusRunning, campaign.Status, "second job still in flight")

	_, err = f.campaigns.IngestResult(ctx, &model.IngestRequest{
		JobID:  resp.JobIDs[1],
		Status: constants.ResultStatusComplete,
	})
	require.NoError(t, err)

	campaign, err = f.store.GetCampaign(ctx, resp.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, constants.CampaignStatusPartial, campaign.Status)

	detail, err := f.campaigns.GetDetail(ctx, resp.CampaignID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Breakdown.Failed)
	assert.Equal(t, 1, detail.Breakdown.Complete)
}

func TestCancelPendingAndRunning(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyFail)
	ctx := context.Background()

	workerID := f.registerWorker(t, "udid-1", constants.ComputeUnitCPUONNX)
	resp, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/resnet.onnx",
		Jobs: []model.JobSpec{
			{ComputeUnit: constants.ComputeUnitCPUONNX},
			{ComputeUnit: constants.ComputeUnitGPUONNX}, // no capable worker: stays pending
		},
	})
	require.NoError(t, err)

	// Cancel the pending GPU job
	job, err := f.campaigns.CancelJob(ctx, resp.JobIDs[1], "")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCancelled, job.Status)

	// Cancel the running CPU job; its worker is freed
	job, err = f.campaigns.CancelJob(ctx, resp.JobIDs[0], "operator abort")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCancelled, job.Status)

	worker, err := f.workers.Get(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusActive, worker.Status)

	campaign, err := f.store.GetCampaign(ctx, resp.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, constants.CampaignStatusPartial, campaign.Status)
}

func TestSweepTimedOutJobsFailPolicy(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyFail)
	ctx := context.Background()

	workerID := f.registerWorker(t, "udid-1", constants.ComputeUnitCPUONNX)
	resp, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/resnet.onnx",
		Jobs:     []model.JobSpec{{ComputeUnit: constants.ComputeUnitCPUONNX, TimeoutSeconds: 60}},
	})
	require.NoError(t, err)

	// Not yet expired
	handled, err := f.campaigns.SweepTimedOutJobs(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, handled)

	handled, err = f.campaigns.SweepTimedOutJobs(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	job, err := f.store.GetJob(ctx, resp.JobIDs[0])
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, job.Status)

	result, err := f.store.GetResult(ctx, resp.JobIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "execution timeout", result.Remark)

	// Hung process on a live worker: the worker stays schedulable
	worker, err := f.workers.Get(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusActive, worker.Status)
}

func TestSweepTimedOutJobsRequeuePolicy(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyRequeue)
	ctx := context.Background()

	workerID := f.registerWorker(t, "udid-1", constants.ComputeUnitCPUONNX)
	resp, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/resnet.onnx",
		Jobs:     []model.JobSpec{{ComputeUnit: constants.ComputeUnitCPUONNX, TimeoutSeconds: 60}},
	})
	require.NoError(t, err)

	handled, err := f.campaigns.SweepTimedOutJobs(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	job, err := f.store.GetJob(ctx, resp.JobIDs[0])
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, job.Status)

	worker, err := f.workers.Get(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusFaulty, worker.Status)
}

func TestStaleTimeoutLosesToDeliveredResult(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyRequeue)
	ctx := context.Background()

	workerID := f.registerWorker(t, "udid-1", constants.ComputeUnitCPUONNX)
	resp, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/resnet.onnx",
		Jobs: []model.JobSpec{
			{ComputeUnit: constants.ComputeUnitCPUONNX, TimeoutSeconds: 60},
			{ComputeUnit: constants.ComputeUnitCPUONNX, TimeoutSeconds: 60},
		},
	})
	require.NoError(t, err)

	// Snapshot the running first job, as the timeout sweep would
	stale, err := f.store.GetJob(ctx, resp.JobIDs[0])
	require.NoError(t, err)
	require.Equal(t, constants.JobStatusRunning, stale.Status)

	// Its result lands and the freed worker picks up the second job
	_, err = f.campaigns.IngestResult(ctx, &model.IngestRequest{
		JobID:    resp.JobIDs[0],
		WorkerID: workerID,
		Status:   constants.ResultStatusComplete,
	})
	require.NoError(t, err)

	// Acting on the stale snapshot must not touch the worker or its new job
	err = f.campaigns.HandleJobTimeout(ctx, stale)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	worker, err := f.workers.Get(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkerStatusBusy, worker.Status)
	assert.Equal(t, resp.JobIDs[1], worker.CurrentJobID)

	second, err := f.store.GetJob(ctx, resp.JobIDs[1])
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, second.Status)

	first, err := f.store.GetJob(ctx, resp.JobIDs[0])
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusComplete, first.Status)
}

func TestReportRows(t *testing.T) {
	f := newCampaignFixture(t, config.TimeoutPolicyFail)
	ctx := context.Background()

	workerID := f.registerWorker(t, "udid-1", constants.ComputeUnitCPUONNX)
	resp, err := f.campaigns.CreateCampaign(ctx, &model.CreateCampaignRequest{
		ModelURL: "https://models.example.com/resnet.onnx",
		Jobs:     []model.JobSpec{{ComputeUnit: constants.ComputeUnitCPUONNX}},
	})
	require.NoError(t, err)

	_, err = f.campaigns.IngestResult(ctx, &model.IngestRequest{
		JobID:             resp.JobIDs[0],
		WorkerID:          workerID,
		Status:            constants.ResultStatusComplete,
		FileName:          "resnet.onnx",
		FileSize:          102400,
		InferenceMsMedian: 8.2,
	})
	require.NoError(t, err)

	rows, err := f.campaigns.ReportRows(ctx, resp.CampaignID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "complete", rows[0].Status)
	assert.Equal(t, resp.JobIDs[0], rows[0].JobID)
	assert.Equal(t, "resnet.onnx", rows[0].FileName)
	assert.Equal(t, "rig-udid-1", rows[0].DeviceName)
	assert.Equal(t, "M3", rows[0].Soc)
	assert.InDelta(t, 8.2, rows[0].InferenceMsMedian, 0.001)

	_, err = f.campaigns.ReportRows(ctx, "campaign-missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
