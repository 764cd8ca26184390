package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Reset deletes every orchestrator key: workers, campaigns, jobs, results
// and all queues. The keys are collected first, then removed in one
// MULTI/EXEC block so concurrent readers see either the full store or an
// empty one, never a partial wipe. Locks are left alone so an in-flight
// sweep on another instance finishes cleanly.
func (s *Store) Reset(ctx context.Context) (int64, error) {
	keys := append([]string(nil), resetKeys...)
	for _, prefix := range resetPrefixes {
		found, err := s.scanKeys(ctx, prefix+"*")
		if err != nil {
			return 0, err
		}
		keys = append(keys, found...)
	}

	cmds := make([]*redis.IntCmd, 0, len(keys)/500+1)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// Chunked to keep single DEL commands bounded; one EXEC applies all.
		for rest := keys; len(rest) > 0; {
			n := len(rest)
			if n > 500 {
				n = 500
			}
			cmds = append(cmds, pipe.Del(ctx, rest[:n]...))
			rest = rest[n:]
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, cmd := range cmds {
		deleted += cmd.Val()
	}
	return deleted, nil
}
