package redis

import (
	"context"
	"encoding/json"

	"benchhub/internal/model"

	"github.com/go-redis/redis/v8"
)

// QueueSnapshot describes one pending queue for the inspection API.
type QueueSnapshot struct {
	Queue  string   `json:"queue"`
	Length int64    `json:"length"`
	JobIDs []string `json:"job_ids"`
}

// PeekQueue returns a queue's jobs head-first without consuming them.
func (s *Store) PeekQueue(ctx context.Context, queue string) (*QueueSnapshot, error) {
	ids, err := s.rdb.LRange(ctx, queue, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return &QueueSnapshot{Queue: queue, Length: int64(len(ids)), JobIDs: ids}, nil
}

// ListQueues scans for every capability and pinned pending queue.
func (s *Store) ListQueues(ctx context.Context) ([]*QueueSnapshot, error) {
	var snapshots []*QueueSnapshot
	for _, prefix := range []string{capabilityQueuePrefix, pinnedQueuePrefix} {
		keys, err := s.scanKeys(ctx, prefix+"*")
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			snap, err := s.PeekQueue(ctx, key)
			if err != nil {
				return nil, err
			}
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots, nil
}

// PopDelivery takes the next job descriptor published for a worker, or nil
// when its delivery channel is empty.
func (s *Store) PopDelivery(ctx context.Context, workerID string) (*model.JobDescriptor, error) {
	data, err := s.rdb.RPop(ctx, DeliveryQueueKey(workerID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var descriptor model.JobDescriptor
	if err := json.Unmarshal([]byte(data), &descriptor); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
