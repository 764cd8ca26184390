package dispatch

import (
	"context"
	"errors"
	"time"

	"benchhub/internal/core"
	"benchhub/internal/model"
	"benchhub/pkg/constants"
	"benchhub/pkg/logger"
	redisstore "benchhub/pkg/store/redis"

	"github.com/go-redis/redis/v8"
)

const lockName = "dispatch"

// Dispatcher matches pending jobs to idle workers. Each tick runs under a
// distributed mutex so only one orchestrator instance dispatches at a time;
// the per-assignment transaction in the store is what actually guarantees a
// job is handed out at most once.
type Dispatcher struct {
	store    *redisstore.Store
	mutex    *redisstore.Mutex
	interval time.Duration
}

func New(store *redisstore.Store, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		store:    store,
		mutex:    redisstore.NewMutex(store.Client(), lockName, 2*interval),
		interval: interval,
	}
}

func (d *Dispatcher) Name() string            { return "dispatcher" }
func (d *Dispatcher) Interval() time.Duration { return d.interval }

// Run performs one dispatch tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	ok, err := d.mutex.TryLock(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil // another instance holds the tick
	}
	defer d.mutex.Unlock(ctx)

	assigned, err := d.Tick(ctx)
	if assigned > 0 {
		logger.Infof("Dispatched %d job(s)", assigned)
	}
	return err
}

// Tick walks idle workers in id order and hands each at most one job:
// pinned work first, then the oldest job of the first capability queue that
// has one. Returns the number of assignments made.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	workers, err := d.store.GetAllWorkers(ctx)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, worker := range workers {
		if worker.Status != constants.WorkerStatusActive {
			continue
		}
		jobID, err := d.nextJobFor(ctx, worker)
		if err != nil {
			return assigned, err
		}
		if jobID == "" {
			continue
		}
		if err := d.store.AssignJob(ctx, jobID, worker.ID); err != nil {
			// The candidate changed state between peek and transaction;
			// the next tick will see the fresh queue heads.
			if errors.Is(err, core.ErrInvalidState) || errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrNotFound) {
				logger.Debugf("Skipped assigning job %s to worker %s: %v", jobID, worker.ID, err)
				continue
			}
			return assigned, err
		}
		logger.Infof("Assigned job %s to worker %s", jobID, worker.ID)
		assigned++
	}
	return assigned, nil
}

// nextJobFor peeks the oldest eligible pending job for a worker without
// consuming it.
func (d *Dispatcher) nextJobFor(ctx context.Context, worker *model.Worker) (string, error) {
	queues := []string{redisstore.PinnedQueueKey(worker.ID)}
	for _, unit := range constants.AllowedComputeUnits {
		if worker.HasCapability(unit) {
			queues = append(queues, redisstore.CapabilityQueueKey(unit))
		}
	}
	for _, queue := range queues {
		jobID, err := d.store.Client().LIndex(ctx, queue, 0).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return "", err
		}
		return jobID, nil
	}
	return "", nil
}
