package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"benchhub/internal/core"
	"benchhub/internal/model"
	"benchhub/pkg/constants"

	"github.com/go-redis/redis/v8"
)

const defaultMaxTxRetries = 5

// Store owns the canonical copies of workers, campaigns, jobs and results.
// Every mutation goes through it; multi-entity invariants (job running iff
// worker busy) are maintained by updating the paired records inside a single
// WATCH/MULTI transaction, retried on conflict.
type Store struct {
	rdb          *redis.Client
	maxTxRetries int
}

// NewStore creates the state store on top of a Redis connection.
func NewStore(client *RedisClient, maxTxRetries int) *Store {
	if maxTxRetries <= 0 {
		maxTxRetries = defaultMaxTxRetries
	}
	return &Store{rdb: client.GetClient(), maxTxRetries: maxTxRetries}
}

// NewStoreWithClient is a test hook that skips the connection wrapper.
func NewStoreWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, maxTxRetries: defaultMaxTxRetries}
}

// Client exposes the underlying connection for locks and queue inspection.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

// watch runs fn under optimistic locking on keys, retrying bounded times on
// transaction conflict.
func (s *Store) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < s.maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return core.ErrConflict
}

func getJSON(ctx context.Context, c redis.Cmdable, key string, out interface{}) error {
	data, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

func marshal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	return string(data), nil
}

// pendingQueueKey names the queue a pending job waits on.
func pendingQueueKey(job *model.Job) string {
	if job.PinnedWorkerID != "" {
		return PinnedQueueKey(job.PinnedWorkerID)
	}
	return CapabilityQueueKey(job.ComputeUnit)
}

// AssignJob atomically binds a pending job to an active worker: the worker
// becomes busy, the job becomes running, the job leaves its pending queue and
// its descriptor is published on the worker's delivery channel. Returns
// ErrInvalidState if either record is no longer eligible when the
// transaction runs.
func (s *Store) AssignJob(ctx context.Context, jobID, workerID string) error {
	fn := func(tx *redis.Tx) error {
		var job model.Job
		if err := getJSON(ctx, tx, jobKey(jobID), &job); err != nil {
			return err
		}
		var worker model.Worker
		if err := getJSON(ctx, tx, workerKey(workerID), &worker); err != nil {
			return err
		}

		if job.Status != constants.JobStatusPending {
			return fmt.Errorf("job %s is %s: %w", jobID, job.Status, core.ErrInvalidState)
		}
		if worker.Status != constants.WorkerStatusActive {
			return fmt.Errorf("worker %s is %s: %w", workerID, worker.Status, core.ErrInvalidState)
		}
		if job.PinnedWorkerID != "" && job.PinnedWorkerID != workerID {
			return fmt.Errorf("job %s is pinned to %s: %w", jobID, job.PinnedWorkerID, core.ErrInvalidState)
		}
		if job.PinnedWorkerID == "" && !worker.HasCapability(job.ComputeUnit) {
			return fmt.Errorf("worker %s lacks capability %s: %w", workerID, job.ComputeUnit, core.ErrInvalidState)
		}

		var campaign model.Campaign
		if err := getJSON(ctx, tx, campaignKey(job.CampaignID), &campaign); err != nil {
			return err
		}

		now := time.Now()
		queue := pendingQueueKey(&job)

		job.Status = constants.JobStatusRunning
		job.AssignedWorkerID = workerID
		job.StartedAt = &now
		worker.Status = constants.WorkerStatusBusy
		worker.CurrentJobID = jobID

		jobData, err := marshal(&job)
		if err != nil {
			return err
		}
		workerData, err := marshal(&worker)
		if err != nil {
			return err
		}
		descriptor, err := marshal(&model.JobDescriptor{
			JobID:            job.ID,
			CampaignID:       job.CampaignID,
			ModelURL:         campaign.ModelURL,
			ComputeUnit:      job.ComputeUnit,
			NumWarmups:       job.NumWarmups,
			NumInferenceRuns: job.NumInferenceRuns,
		})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, jobKey(jobID), jobData, 0)
			pipe.Set(ctx, workerKey(workerID), workerData, 0)
			pipe.SAdd(ctx, runningSetKey, jobID)
			pipe.LRem(ctx, queue, 1, jobID)
			pipe.LPush(ctx, DeliveryQueueKey(workerID), descriptor)
			return nil
		})
		return err
	}

	return s.watch(ctx, fn, jobKey(jobID), workerKey(workerID))
}

// ReclaimWorker marks a worker faulty and, if it held a running job, resets
// that job to pending with its assignment cleared and requeues it at the
// head of its queue, all in one transaction. Returns the requeued job id,
// or "" when the worker held none.
//
// A non-empty expectedJobID makes the reclaim conditional: it only proceeds
// while the worker still holds that job, so a caller acting on a stale
// snapshot (the timeout sweep racing a result delivery) observes
// ErrInvalidState instead of tearing down whatever the worker picked up next.
func (s *Store) ReclaimWorker(ctx context.Context, workerID, expectedJobID string) (string, error) {
	requeued := ""
	fn := func(tx *redis.Tx) error {
		requeued = ""
		var worker model.Worker
		if err := getJSON(ctx, tx, workerKey(workerID), &worker); err != nil {
			return err
		}
		if worker.Status == constants.WorkerStatusFaulty {
			return nil // already reclaimed
		}
		if expectedJobID != "" && worker.CurrentJobID != expectedJobID {
			return fmt.Errorf("worker %s no longer holds job %s: %w", workerID, expectedJobID, core.ErrInvalidState)
		}

		var job *model.Job
		if worker.CurrentJobID != "" {
			if err := tx.Watch(ctx, jobKey(worker.CurrentJobID)).Err(); err != nil {
				return err
			}
			var j model.Job
			err := getJSON(ctx, tx, jobKey(worker.CurrentJobID), &j)
			if err != nil && !errors.Is(err, core.ErrNotFound) {
				return err
			}
			if err == nil && j.Status == constants.JobStatusRunning && j.AssignedWorkerID == workerID {
				job = &j
			}
		}

		worker.Status = constants.WorkerStatusFaulty
		worker.CurrentJobID = ""
		workerData, err := marshal(&worker)
		if err != nil {
			return err
		}

		var jobData, queue, jobID string
		if job != nil {
			jobID = job.ID
			queue = pendingQueueKey(job)
			job.Status = constants.JobStatusPending
			job.AssignedWorkerID = ""
			job.StartedAt = nil
			if jobData, err = marshal(job); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, workerKey(workerID), workerData, 0)
			if job != nil {
				pipe.Set(ctx, jobKey(jobID), jobData, 0)
				pipe.SRem(ctx, runningSetKey, jobID)
				pipe.LPush(ctx, queue, jobID)
			}
			return nil
		})
		if err == nil && job != nil {
			requeued = jobID
		}
		return err
	}

	if err := s.watch(ctx, fn, workerKey(workerID)); err != nil {
		return "", err
	}
	return requeued, nil
}

// FinishJob records a terminal result for a running job and frees its worker
// back to active, atomically. A duplicate submission that matches the stored
// terminal result is an idempotent no-op (noop=true); any other submission
// for a non-running job fails with ErrInvalidState. Exactly one of
// {FinishJob, ReclaimWorker} wins when they race: both watch the job record.
func (s *Store) FinishJob(ctx context.Context, jobID string, req *model.IngestRequest) (job *model.Job, freed *model.Worker, noop bool, err error) {
	fn := func(tx *redis.Tx) error {
		job, freed, noop = nil, nil, false

		var j model.Job
		if err := getJSON(ctx, tx, jobKey(jobID), &j); err != nil {
			return err
		}

		if j.Status.Terminal() {
			var stored model.Result
			resErr := getJSON(ctx, tx, resultKey(jobID), &stored)
			if resErr == nil && stored.Status == req.Status {
				job, noop = &j, true
				return nil
			}
			return fmt.Errorf("job %s already %s: %w", jobID, j.Status, core.ErrInvalidState)
		}
		if j.Status != constants.JobStatusRunning {
			return fmt.Errorf("job %s is %s: %w", jobID, j.Status, core.ErrInvalidState)
		}

		workerID := j.AssignedWorkerID
		var worker *model.Worker
		if workerID != "" {
			if err := tx.Watch(ctx, workerKey(workerID)).Err(); err != nil {
				return err
			}
			var w model.Worker
			werr := getJSON(ctx, tx, workerKey(workerID), &w)
			if werr != nil && !errors.Is(werr, core.ErrNotFound) {
				return werr
			}
			if werr == nil {
				worker = &w
			}
		}

		now := time.Now()
		result := req.ToResult(j.CampaignID, workerID)
		j.Status = req.Status.JobStatus()
		j.AssignedWorkerID = ""
		j.CompletedAt = &now

		jobData, err := marshal(&j)
		if err != nil {
			return err
		}
		resultData, err := marshal(result)
		if err != nil {
			return err
		}

		var workerData string
		freeWorker := worker != nil && worker.CurrentJobID == jobID
		if freeWorker {
			worker.CurrentJobID = ""
			if worker.Status == constants.WorkerStatusBusy {
				worker.Status = constants.WorkerStatusActive
			}
			if workerData, err = marshal(worker); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, jobKey(jobID), jobData, 0)
			pipe.Set(ctx, resultKey(jobID), resultData, 0)
			pipe.SRem(ctx, runningSetKey, jobID)
			if freeWorker {
				pipe.Set(ctx, workerKey(workerID), workerData, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		job = &j
		if freeWorker {
			freed = worker
		}
		return nil
	}

	err = s.watch(ctx, fn, jobKey(jobID))
	return job, freed, noop, err
}

// CancelJob cancels a pending or running job. A pending job is dropped from
// its queue; cancelling a running job frees the worker exactly as a terminal
// result would. Terminal jobs fail with ErrInvalidState.
func (s *Store) CancelJob(ctx context.Context, jobID, remark string) (job *model.Job, freed *model.Worker, err error) {
	fn := func(tx *redis.Tx) error {
		job, freed = nil, nil

		var j model.Job
		if err := getJSON(ctx, tx, jobKey(jobID), &j); err != nil {
			return err
		}

		switch j.Status {
		case constants.JobStatusPending:
			now := time.Now()
			queue := pendingQueueKey(&j)
			j.Status = constants.JobStatusCancelled
			j.CompletedAt = &now
			result := &model.Result{
				JobID:      j.ID,
				CampaignID: j.CampaignID,
				Status:     constants.ResultStatusCancelled,
				Remark:     remark,
				SavedAt:    now,
			}
			jobData, err := marshal(&j)
			if err != nil {
				return err
			}
			resultData, err := marshal(result)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, jobKey(jobID), jobData, 0)
				pipe.Set(ctx, resultKey(jobID), resultData, 0)
				pipe.LRem(ctx, queue, 1, jobID)
				return nil
			})
			if err == nil {
				job = &j
			}
			return err

		case constants.JobStatusRunning:
			// Same path as a terminal result delivery.
			return fmt.Errorf("running: %w", core.ErrInvalidState)

		default:
			return fmt.Errorf("job %s is %s: %w", jobID, j.Status, core.ErrInvalidState)
		}
	}

	err = s.watch(ctx, fn, jobKey(jobID))
	if err != nil && errors.Is(err, core.ErrInvalidState) {
		// Running jobs go through the ingest transaction so worker freeing
		// stays atomic with the status change.
		j, e := s.GetJob(ctx, jobID)
		if e == nil && j.Status == constants.JobStatusRunning {
			req := &model.IngestRequest{JobID: jobID, Status: constants.ResultStatusCancelled, Remark: remark}
			job, freed, _, err = s.FinishJob(ctx, jobID, req)
			return job, freed, err
		}
	}
	return job, freed, err
}
