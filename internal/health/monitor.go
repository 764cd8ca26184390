package health

import (
	"context"
	"errors"
	"time"

	"benchhub/internal/core"
	"benchhub/internal/service"
	"benchhub/pkg/constants"
	"benchhub/pkg/logger"
	redisstore "benchhub/pkg/store/redis"
)

// WorkerSweep marks workers faulty when their heartbeat lapses and reclaims
// any job they held. Workers in cleanup are intentionally offline and exempt.
type WorkerSweep struct {
	store    *redisstore.Store
	mutex    *redisstore.Mutex
	timeout  time.Duration
	interval time.Duration
}

func NewWorkerSweep(store *redisstore.Store, timeout, interval time.Duration) *WorkerSweep {
	return &WorkerSweep{
		store:    store,
		mutex:    redisstore.NewMutex(store.Client(), "worker-sweep", 2*interval),
		timeout:  timeout,
		interval: interval,
	}
}

func (w *WorkerSweep) Name() string            { return "worker-health-sweep" }
func (w *WorkerSweep) Interval() time.Duration { return w.interval }

func (w *WorkerSweep) Run(ctx context.Context) error {
	ok, err := w.mutex.TryLock(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer w.mutex.Unlock(ctx)

	_, err = w.Sweep(ctx, time.Now())
	return err
}

// Sweep runs one pass and returns the number of workers marked faulty.
func (w *WorkerSweep) Sweep(ctx context.Context, now time.Time) (int, error) {
	workers, err := w.store.GetAllWorkers(ctx)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, worker := range workers {
		if worker.Status != constants.WorkerStatusActive && worker.Status != constants.WorkerStatusBusy {
			continue
		}
		elapsed := now.Sub(worker.LastHeartbeat)
		if elapsed < w.timeout {
			continue
		}

		wasBusy := worker.Status == constants.WorkerStatusBusy
		requeued, err := w.store.ReclaimWorker(ctx, worker.ID, "")
		if err != nil {
			if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrConflict) {
				continue
			}
			return swept, err
		}
		swept++
		if requeued != "" {
			logger.Warnf("Worker %s unresponsive for %.0fs; marked faulty, job %s requeued", worker.ID, elapsed.Seconds(), requeued)
		} else if wasBusy {
			// Busy with no reclaimable job means the records disagreed.
			logger.Errorf("Worker %s was busy with no running job; marked faulty", worker.ID)
		} else {
			logger.Warnf("Worker %s unresponsive for %.0fs; marked faulty", worker.ID, elapsed.Seconds())
		}
	}
	return swept, nil
}

// JobTimeoutSweep fails or requeues running jobs that exceeded their
// deadline, per the configured timeout policy.
type JobTimeoutSweep struct {
	campaigns *service.CampaignService
	mutex     *redisstore.Mutex
	interval  time.Duration
}

func NewJobTimeoutSweep(store *redisstore.Store, campaigns *service.CampaignService, interval time.Duration) *JobTimeoutSweep {
	return &JobTimeoutSweep{
		campaigns: campaigns,
		mutex:     redisstore.NewMutex(store.Client(), "job-timeout-sweep", 2*interval),
		interval:  interval,
	}
}

func (j *JobTimeoutSweep) Name() string            { return "job-timeout-sweep" }
func (j *JobTimeoutSweep) Interval() time.Duration { return j.interval }

func (j *JobTimeoutSweep) Run(ctx context.Context) error {
	ok, err := j.mutex.TryLock(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer j.mutex.Unlock(ctx)

	handled, err := j.campaigns.SweepTimedOutJobs(ctx, time.Now())
	if handled > 0 {
		logger.Infof("Handled %d timed-out job(s)", handled)
	}
	return err
}
