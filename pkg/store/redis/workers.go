package redis

import (
	"context"
	"encoding/json"
	"sort"

	"benchhub/internal/core"
	"benchhub/internal/model"

	"github.com/go-redis/redis/v8"
)

// SaveWorker writes a worker record and indexes it.
func (s *Store) SaveWorker(ctx context.Context, worker *model.Worker) error {
	data, err := marshal(worker)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, workerKey(worker.ID), data, 0)
		pipe.SAdd(ctx, workerIndexKey, worker.ID)
		if worker.UDID != "" {
			pipe.Set(ctx, workerUDIDKey(worker.UDID), worker.ID, 0)
		}
		return nil
	})
	return err
}

// GetWorker loads one worker, ErrNotFound when missing.
func (s *Store) GetWorker(ctx context.Context, workerID string) (*model.Worker, error) {
	var worker model.Worker
	if err := getJSON(ctx, s.rdb, workerKey(workerID), &worker); err != nil {
		return nil, err
	}
	return &worker, nil
}

// GetWorkerIDByUDID resolves the device hardware id to a registered worker.
func (s *Store) GetWorkerIDByUDID(ctx context.Context, udid string) (string, error) {
	id, err := s.rdb.Get(ctx, workerUDIDKey(udid)).Result()
	if err == redis.Nil {
		return "", core.ErrNotFound
	}
	return id, err
}

// GetAllWorkers loads every registered worker, sorted by id for stable
// listing and dispatch order.
func (s *Store) GetAllWorkers(ctx context.Context) ([]*model.Worker, error) {
	ids, err := s.rdb.SMembers(ctx, workerIndexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	cmds := make([]*redis.StringCmd, len(ids))
	pipe := s.rdb.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, workerKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	workers := make([]*model.Worker, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err == redis.Nil {
			continue // index entry without a record, skip
		}
		if err != nil {
			return nil, err
		}
		var worker model.Worker
		if err := json.Unmarshal([]byte(data), &worker); err != nil {
			return nil, err
		}
		workers = append(workers, &worker)
	}
	return workers, nil
}

// UpdateWorker applies mutate to the current record under optimistic locking.
// mutate returning false aborts without writing.
func (s *Store) UpdateWorker(ctx context.Context, workerID string, mutate func(*model.Worker) (bool, error)) (*model.Worker, error) {
	var updated *model.Worker
	fn := func(tx *redis.Tx) error {
		updated = nil
		var worker model.Worker
		if err := getJSON(ctx, tx, workerKey(workerID), &worker); err != nil {
			return err
		}
		write, err := mutate(&worker)
		if err != nil {
			return err
		}
		if !write {
			updated = &worker
			return nil
		}
		data, err := marshal(&worker)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, workerKey(workerID), data, 0)
			return nil
		})
		if err == nil {
			updated = &worker
		}
		return err
	}
	if err := s.watch(ctx, fn, workerKey(workerID)); err != nil {
		return nil, err
	}
	return updated, nil
}
