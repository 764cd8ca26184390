package model

import (
	"testing"

	"benchhub/pkg/constants"

	"github.com/stretchr/testify/assert"
)

func jobsWith(statuses ...constants.JobStatus) []*Job {
	jobs := make([]*Job, len(statuses))
	for i, s := range statuses {
		jobs[i] = &Job{ID: JobID("campaign-x", i), Status: s}
	}
	return jobs
}

func TestDeriveCampaignStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []constants.JobStatus
		want     constants.CampaignStatus
	}{
		{
			name:     "all complete",
			statuses: []constants.JobStatus{constants.JobStatusComplete, constants.JobStatusComplete},
			want:     constants.CampaignStatusCompleted,
		},
		{
			name:     "one still pending",
			statuses: []constants.JobStatus{constants.JobStatusComplete, constants.JobStatusPending},
			want:     constants.CampaignStatusRunning,
		},
		{
			name:     "one still running",
			statuses: []constants.JobStatus{constants.JobStatusFailed, constants.JobStatusRunning},
			want:     constants.CampaignStatusRunning,
		},
		{
			name:     "terminal with a failure",
			statuses: []constants.JobStatus{constants.JobStatusComplete, constants.JobStatusFailed},
			want:     constants.CampaignStatusPartial,
		},
		{
			name:     "terminal with a cancellation",
			statuses: []constants.JobStatus{constants.JobStatusCancelled},
			want:     constants.CampaignStatusPartial,
		},
		{
			name:     "all failed",
			statuses: []constants.JobStatus{constants.JobStatusFailed, constants.JobStatusFailed},
			want:     constants.CampaignStatusPartial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveCampaignStatus(jobsWith(tt.statuses...)))
		})
	}
}

func TestJobID(t *testing.T) {
	assert.Equal(t, "campaign-abc-job-0", JobID("campaign-abc", 0))
	assert.Equal(t, "campaign-abc-job-12", JobID("campaign-abc", 12))
}
