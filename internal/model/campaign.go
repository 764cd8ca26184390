package model

import (
	"fmt"
	"time"

	"benchhub/pkg/constants"
)

// Campaign is a client-submitted benchmarking request: one model, many jobs.
type Campaign struct {
	ID        string                   `json:"campaign_id"`
	ModelURL  string                   `json:"model_url"`
	TotalJobs int                      `json:"total_jobs"`
	Status    constants.CampaignStatus `json:"status"`
	CreatedAt time.Time                `json:"created_at"`
}

// Job is one (model, compute unit) execution request within a campaign.
type Job struct {
	ID          string `json:"job_id"`
	CampaignID  string `json:"campaign_id"`
	ComputeUnit string `json:"compute_unit"`

	// PinnedWorkerID statically assigns the job to one worker; empty means
	// capability-based routing.
	PinnedWorkerID string `json:"pinned_worker_id,omitempty"`

	NumWarmups       int `json:"num_warmups"`
	NumInferenceRuns int `json:"num_inference_runs"`

	Status constants.JobStatus `json:"status"`

	// AssignedWorkerID is non-empty iff Status == running.
	AssignedWorkerID string `json:"assigned_worker_id,omitempty"`

	TimeoutSeconds int        `json:"timeout_seconds,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// JobID derives the deterministic job id for a campaign ordinal.
func JobID(campaignID string, ordinal int) string {
	return fmt.Sprintf("%s-job-%d", campaignID, ordinal)
}

// JobSpec one job request inside a campaign submission
type JobSpec struct {
	ComputeUnit      string `json:"compute_unit" binding:"required"`
	WorkerID         string `json:"worker_id,omitempty"`
	NumWarmups       int    `json:"num_warmups,omitempty"`
	NumInferenceRuns int    `json:"num_inference_runs,omitempty"`
	TimeoutSeconds   int    `json:"timeout_seconds,omitempty"`
}

// CreateCampaignRequest campaign submission payload
type CreateCampaignRequest struct {
	ModelURL string    `json:"model_url" binding:"required"`
	Jobs     []JobSpec `json:"jobs" binding:"required,min=1"`
}

// CreateCampaignResponse campaign submission response
type CreateCampaignResponse struct {
	CampaignID string                   `json:"campaign_id"`
	TotalJobs  int                      `json:"total_jobs"`
	Status     constants.CampaignStatus `json:"status"`
	JobIDs     []string                 `json:"job_ids"`
}

// JobBreakdown per-status job counts for a campaign
type JobBreakdown struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Complete  int `json:"complete"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// CampaignDetail campaign joined with its job breakdown
type CampaignDetail struct {
	Campaign
	Breakdown JobBreakdown `json:"job_breakdown"`
	Jobs      []*Job       `json:"jobs,omitempty"`
}

// JobDescriptor is what gets published on a worker's delivery channel when a
// job is assigned.
type JobDescriptor struct {
	JobID            string `json:"job_id"`
	CampaignID       string `json:"campaign_id"`
	ModelURL         string `json:"model_url"`
	ComputeUnit      string `json:"compute_unit"`
	NumWarmups       int    `json:"num_warmups"`
	NumInferenceRuns int    `json:"num_inference_runs"`
}

// DeriveCampaignStatus computes campaign status as a pure function of job
// states: completed iff all complete, partial iff all terminal with at least
// one failure or cancellation, running otherwise.
func DeriveCampaignStatus(jobs []*Job) constants.CampaignStatus {
	if len(jobs) == 0 {
		return constants.CampaignStatusRunning
	}
	allComplete := true
	for _, j := range jobs {
		if !j.Status.Terminal() {
			return constants.CampaignStatusRunning
		}
		if j.Status != constants.JobStatusComplete {
			allComplete = false
		}
	}
	if allComplete {
		return constants.CampaignStatusCompleted
	}
	return constants.CampaignStatusPartial
}
