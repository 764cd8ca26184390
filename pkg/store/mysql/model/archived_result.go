package model

import (
	"time"
)

// ArchivedResult MySQL row for the archived_results table: one terminal job
// with its telemetry, retained beyond Redis resets.
type ArchivedResult struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID      string `gorm:"column:job_id;type:varchar(255);not null;uniqueIndex:idx_job_id_unique" json:"job_id"`
	CampaignID string `gorm:"column:campaign_id;type:varchar(255);not null;index:idx_campaign_id" json:"campaign_id"`
	WorkerID   string `gorm:"column:worker_id;type:varchar(255);index:idx_worker_id" json:"worker_id"`
	Status     string `gorm:"column:status;type:varchar(50);not null;index:idx_status" json:"status"`
	Remark     string `gorm:"column:remark;type:text" json:"remark"`

	ComputeUnits string `gorm:"column:compute_units;type:varchar(100)" json:"compute_units"`
	DeviceName   string `gorm:"column:device_name;type:varchar(255)" json:"device_name"`
	FileName     string `gorm:"column:file_name;type:varchar(500)" json:"file_name"`
	FileSize     int64  `gorm:"column:file_size" json:"file_size"`

	LoadMsMedian     float64 `gorm:"column:load_ms_median" json:"load_ms_median"`
	LoadMsStdDev     float64 `gorm:"column:load_ms_std_dev" json:"load_ms_std_dev"`
	LoadMsAverage    float64 `gorm:"column:load_ms_average" json:"load_ms_average"`
	LoadMsFirst      float64 `gorm:"column:load_ms_first" json:"load_ms_first"`
	PeakLoadRamUsage float64 `gorm:"column:peak_load_ram_usage" json:"peak_load_ram_usage"`

	InferenceMsMedian     float64 `gorm:"column:inference_ms_median" json:"inference_ms_median"`
	InferenceMsStdDev     float64 `gorm:"column:inference_ms_std_dev" json:"inference_ms_std_dev"`
	InferenceMsAverage    float64 `gorm:"column:inference_ms_average" json:"inference_ms_average"`
	InferenceMsFirst      float64 `gorm:"column:inference_ms_first" json:"inference_ms_first"`
	PeakInferenceRamUsage float64 `gorm:"column:peak_inference_ram_usage" json:"peak_inference_ram_usage"`

	CompletedAt *time.Time `gorm:"column:completed_at;type:datetime(3);index:idx_completed_at" json:"completed_at"`
	ArchivedAt  time.Time  `gorm:"column:archived_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"archived_at"`
}

// TableName specifies the table name for ArchivedResult
func (ArchivedResult) TableName() string {
	return "archived_results"
}
