package redis

import (
	"context"
	"encoding/json"
	"errors"

	"benchhub/internal/core"
	"benchhub/internal/model"

	"github.com/go-redis/redis/v8"
)

// CreateCampaignWithJobs persists a campaign, all of its jobs and the
// pending-queue entries in one pipeline so a crash never leaves a queued job
// without a record.
func (s *Store) CreateCampaignWithJobs(ctx context.Context, campaign *model.Campaign, jobs []*model.Job) error {
	campaignData, err := marshal(campaign)
	if err != nil {
		return err
	}
	jobData := make([]string, len(jobs))
	for i, job := range jobs {
		if jobData[i], err = marshal(job); err != nil {
			return err
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, campaignKey(campaign.ID), campaignData, 0)
		pipe.RPush(ctx, campaignIndexKey, campaign.ID)
		for i, job := range jobs {
			pipe.Set(ctx, jobKey(job.ID), jobData[i], 0)
			pipe.RPush(ctx, campaignJobsKey(campaign.ID), job.ID)
			pipe.RPush(ctx, pendingQueueKey(job), job.ID)
		}
		return nil
	})
	return err
}

// GetCampaign loads one campaign, ErrNotFound when missing.
func (s *Store) GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := getJSON(ctx, s.rdb, campaignKey(campaignID), &campaign); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// RecomputeCampaignStatus re-derives a campaign's status from its jobs and
// persists it when changed, under WATCH on the campaign key. Concurrent
// recomputes for the same campaign serialize here: a writer that read stale
// job states before another's save retries and re-derives, so the last
// committed status always reflects a fresh read of the jobs.
func (s *Store) RecomputeCampaignStatus(ctx context.Context, campaignID string) (*model.Campaign, error) {
	var campaign model.Campaign
	fn := func(tx *redis.Tx) error {
		if err := getJSON(ctx, tx, campaignKey(campaignID), &campaign); err != nil {
			return err
		}

		ids, err := tx.LRange(ctx, campaignJobsKey(campaignID), 0, -1).Result()
		if err != nil {
			return err
		}
		jobs := make([]*model.Job, 0, len(ids))
		for _, id := range ids {
			var job model.Job
			err := getJSON(ctx, tx, jobKey(id), &job)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			jobs = append(jobs, &job)
		}

		status := model.DeriveCampaignStatus(jobs)
		if status == campaign.Status {
			return nil
		}
		campaign.Status = status
		data, err := marshal(&campaign)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, campaignKey(campaignID), data, 0)
			return nil
		})
		return err
	}

	if err := s.watch(ctx, fn, campaignKey(campaignID)); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetAllCampaigns returns every campaign in creation order.
func (s *Store) GetAllCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	ids, err := s.rdb.LRange(ctx, campaignIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	campaigns := make([]*model.Campaign, 0, len(ids))
	for _, id := range ids {
		campaign, err := s.GetCampaign(ctx, id)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, nil
}

// GetJob loads one job, ErrNotFound when missing.
func (s *Store) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	if err := getJSON(ctx, s.rdb, jobKey(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobsByCampaign returns a campaign's jobs in creation (ordinal) order.
func (s *Store) GetJobsByCampaign(ctx context.Context, campaignID string) ([]*model.Job, error) {
	ids, err := s.rdb.LRange(ctx, campaignJobsKey(campaignID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	pipe := s.rdb.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, jobKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	jobs := make([]*model.Job, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var job model.Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// GetRunningJobIDs lists the jobs currently marked running.
func (s *Store) GetRunningJobIDs(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, runningSetKey).Result()
}

// GetResult loads the stored result for a job, ErrNotFound when none.
func (s *Store) GetResult(ctx context.Context, jobID string) (*model.Result, error) {
	var result model.Result
	if err := getJSON(ctx, s.rdb, resultKey(jobID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
