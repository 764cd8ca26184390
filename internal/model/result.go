package model

import (
	"time"

	"benchhub/pkg/constants"
)

// Result is the telemetry a worker reports for one terminal job. Created
// once, immutable thereafter, keyed 1:1 with the job.
type Result struct {
	JobID      string                 `json:"job_id"`
	CampaignID string                 `json:"campaign_id,omitempty"`
	WorkerID   string                 `json:"worker_id,omitempty"`
	Status     constants.ResultStatus `json:"status"`
	Remark     string                 `json:"remark,omitempty"` // Free-text diagnostic, set on failure

	FileName     string `json:"FileName,omitempty"`
	FileSize     int64  `json:"FileSize,omitempty"`
	ComputeUnits string `json:"ComputeUnits,omitempty"`

	// Model load timing (milliseconds) and peak RSS during load
	LoadMsMedian     float64 `json:"LoadMsMedian,omitempty"`
	LoadMsStdDev     float64 `json:"LoadMsStdDev,omitempty"`
	LoadMsAverage    float64 `json:"LoadMsAverage,omitempty"`
	LoadMsFirst      float64 `json:"LoadMsFirst,omitempty"`
	PeakLoadRamUsage float64 `json:"PeakLoadRamUsage,omitempty"`

	// Inference timing (milliseconds) and peak RSS during inference
	InferenceMsMedian     float64 `json:"InferenceMsMedian,omitempty"`
	InferenceMsStdDev     float64 `json:"InferenceMsStdDev,omitempty"`
	InferenceMsAverage    float64 `json:"InferenceMsAverage,omitempty"`
	InferenceMsFirst      float64 `json:"InferenceMsFirst,omitempty"`
	PeakInferenceRamUsage float64 `json:"PeakInferenceRamUsage,omitempty"`

	SavedAt time.Time `json:"saved_at"`
}

// IngestRequest result submission payload from a worker. Mirrors Result minus
// server-side fields.
type IngestRequest struct {
	JobID        string                 `json:"job_id" binding:"required"`
	WorkerID     string                 `json:"worker_id,omitempty"`
	Status       constants.ResultStatus `json:"status" binding:"required"`
	Remark       string                 `json:"remark,omitempty"`
	FileName     string                 `json:"FileName,omitempty"`
	FileSize     int64                  `json:"FileSize,omitempty"`
	ComputeUnits string                 `json:"ComputeUnits,omitempty"`

	LoadMsMedian     float64 `json:"LoadMsMedian,omitempty"`
	LoadMsStdDev     float64 `json:"LoadMsStdDev,omitempty"`
	LoadMsAverage    float64 `json:"LoadMsAverage,omitempty"`
	LoadMsFirst      float64 `json:"LoadMsFirst,omitempty"`
	PeakLoadRamUsage float64 `json:"PeakLoadRamUsage,omitempty"`

	InferenceMsMedian     float64 `json:"InferenceMsMedian,omitempty"`
	InferenceMsStdDev     float64 `json:"InferenceMsStdDev,omitempty"`
	InferenceMsAverage    float64 `json:"InferenceMsAverage,omitempty"`
	InferenceMsFirst      float64 `json:"InferenceMsFirst,omitempty"`
	PeakInferenceRamUsage float64 `json:"PeakInferenceRamUsage,omitempty"`
}

// ToResult builds the immutable Result record for a job.
func (r *IngestRequest) ToResult(campaignID, workerID string) *Result {
	return &Result{
		JobID:                 r.JobID,
		CampaignID:            campaignID,
		WorkerID:              workerID,
		Status:                r.Status,
		Remark:                r.Remark,
		FileName:              r.FileName,
		FileSize:              r.FileSize,
		ComputeUnits:          r.ComputeUnits,
		LoadMsMedian:          r.LoadMsMedian,
		LoadMsStdDev:          r.LoadMsStdDev,
		LoadMsAverage:         r.LoadMsAverage,
		LoadMsFirst:           r.LoadMsFirst,
		PeakLoadRamUsage:      r.PeakLoadRamUsage,
		InferenceMsMedian:     r.InferenceMsMedian,
		InferenceMsStdDev:     r.InferenceMsStdDev,
		InferenceMsAverage:    r.InferenceMsAverage,
		InferenceMsFirst:      r.InferenceMsFirst,
		PeakInferenceRamUsage: r.PeakInferenceRamUsage,
		SavedAt:               time.Now(),
	}
}

// ReportRow is one line of a campaign report: job joined with its result and
// the originating worker's device info.
type ReportRow struct {
	Status       string
	JobID        string
	FileName     string
	FileSize     int64
	ComputeUnits string

	DeviceName      string
	DeviceYear      string
	Soc             string
	Ram             string
	DiscreteGpu     string
	VRam            string
	DeviceOs        string
	DeviceOsVersion string

	LoadMsMedian          float64
	LoadMsStdDev          float64
	LoadMsAverage         float64
	LoadMsFirst           float64
	PeakLoadRamUsage      float64
	InferenceMsMedian     float64
	InferenceMsStdDev     float64
	InferenceMsAverage    float64
	InferenceMsFirst      float64
	PeakInferenceRamUsage float64
}
