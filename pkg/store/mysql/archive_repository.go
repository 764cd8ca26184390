package mysql

import (
	"context"
	"time"

	internalmodel "benchhub/internal/model"
	"benchhub/pkg/store/mysql/model"

	"gorm.io/gorm/clause"
)

// ArchiveRepository writes terminal results through to MySQL for retention
// beyond Redis resets.
type ArchiveRepository struct {
	ds *Datastore
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(ds *Datastore) *ArchiveRepository {
	return &ArchiveRepository{ds: ds}
}

// Migrate creates the archive table if missing.
func (r *ArchiveRepository) Migrate() error {
	return r.ds.DB().AutoMigrate(&model.ArchivedResult{})
}

// ArchiveResult upserts the archive row for a terminal job. Keyed on job_id
// so a duplicate delivery re-archives instead of duplicating.
func (r *ArchiveRepository) ArchiveResult(ctx context.Context, job *internalmodel.Job, result *internalmodel.Result, worker *internalmodel.Worker) error {
	row := &model.ArchivedResult{
		JobID:        job.ID,
		CampaignID:   job.CampaignID,
		WorkerID:     result.WorkerID,
		Status:       string(job.Status),
		Remark:       result.Remark,
		ComputeUnits: job.ComputeUnit,
		FileName:     result.FileName,
		FileSize:     result.FileSize,

		LoadMsMedian:     result.LoadMsMedian,
		LoadMsStdDev:     result.LoadMsStdDev,
		LoadMsAverage:    result.LoadMsAverage,
		LoadMsFirst:      result.LoadMsFirst,
		PeakLoadRamUsage: result.PeakLoadRamUsage,

		InferenceMsMedian:     result.InferenceMsMedian,
		InferenceMsStdDev:     result.InferenceMsStdDev,
		InferenceMsAverage:    result.InferenceMsAverage,
		InferenceMsFirst:      result.InferenceMsFirst,
		PeakInferenceRamUsage: result.PeakInferenceRamUsage,

		CompletedAt: job.CompletedAt,
		ArchivedAt:  time.Now(),
	}
	if result.ComputeUnits != "" {
		row.ComputeUnits = result.ComputeUnits
	}
	if worker != nil {
		row.DeviceName = worker.DeviceName
	}

	return r.ds.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

// ListByCampaign returns a campaign's archived rows in completion order.
func (r *ArchiveRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*model.ArchivedResult, error) {
	var rows []*model.ArchivedResult
	err := r.ds.DB().WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("completed_at ASC").
		Find(&rows).Error
	return rows, err
}
