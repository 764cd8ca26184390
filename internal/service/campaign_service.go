package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"benchhub/internal/core"
	"benchhub/internal/model"
	"benchhub/pkg/config"
	"benchhub/pkg/constants"
	"benchhub/pkg/logger"
	redisstore "benchhub/pkg/store/redis"

	"github.com/google/uuid"
)

const (
	defaultNumWarmups       = 5
	defaultNumInferenceRuns = 10

	timeoutRemark = "execution timeout"
)

// Archiver writes terminal results through to long-term storage. nil
// disables archiving.
type Archiver interface {
	ArchiveResult(ctx context.Context, job *model.Job, result *model.Result, worker *model.Worker) error
}

// ReportEnqueuer schedules asynchronous report generation for a finished
// campaign. nil disables it; reports stay available on demand.
type ReportEnqueuer interface {
	EnqueueReport(ctx context.Context, campaignID string) error
}

// JobDetail is a job joined with its stored result, if any.
type JobDetail struct {
	Job    *model.Job    `json:"job"`
	Result *model.Result `json:"result,omitempty"`
}

// CampaignService implements the campaign/job lifecycle tracker.
type CampaignService struct {
	store         *redisstore.Store
	dispatcher    Ticker
	archiver      Archiver
	enqueuer      ReportEnqueuer
	jobTimeout    time.Duration
	timeoutPolicy config.TimeoutPolicy
}

func NewCampaignService(store *redisstore.Store, jobTimeout time.Duration, timeoutPolicy config.TimeoutPolicy) *CampaignService {
	return &CampaignService{store: store, jobTimeout: jobTimeout, timeoutPolicy: timeoutPolicy}
}

func (s *CampaignService) SetDispatcher(d Ticker)             { s.dispatcher = d }
func (s *CampaignService) SetArchiver(a Archiver)             { s.archiver = a }
func (s *CampaignService) SetReportEnqueuer(e ReportEnqueuer) { s.enqueuer = e }

func (s *CampaignService) tick(ctx context.Context) {
	if s.dispatcher == nil {
		return
	}
	if _, err := s.dispatcher.Tick(ctx); err != nil {
		logger.Warnf("Dispatch tick failed: %v", err)
	}
}

// CreateCampaign validates the job specs, persists the campaign with all of
// its jobs queued pending, and triggers a dispatch pass.
func (s *CampaignService) CreateCampaign(ctx context.Context, req *model.CreateCampaignRequest) (*model.CreateCampaignResponse, error) {
	if len(req.Jobs) == 0 {
		return nil, fmt.Errorf("campaign needs at least one job: %w", core.ErrInvalidState)
	}
	for i, spec := range req.Jobs {
		if !constants.ComputeUnitAllowed(spec.ComputeUnit) {
			return nil, fmt.Errorf("job %d: unknown compute unit %q: %w", i, spec.ComputeUnit, core.ErrInvalidState)
		}
		if spec.WorkerID != "" {
			if _, err := s.store.GetWorker(ctx, spec.WorkerID); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					return nil, fmt.Errorf("job %d: pinned worker %s not registered: %w", i, spec.WorkerID, core.ErrNotFound)
				}
				return nil, err
			}
		}
	}

	now := time.Now()
	campaign := &model.Campaign{
		ID:        "campaign-" + uuid.New().String(),
		ModelURL:  req.ModelURL,
		TotalJobs: len(req.Jobs),
		Status:    constants.CampaignStatusRunning,
		CreatedAt: now,
	}

	jobs := make([]*model.Job, len(req.Jobs))
	jobIDs := make([]string, len(req.Jobs))
	for i, spec := range req.Jobs {
		warmups := spec.NumWarmups
		if warmups <= 0 {
			warmups = defaultNumWarmups
		}
		runs := spec.NumInferenceRuns
		if runs <= 0 {
			runs = defaultNumInferenceRuns
		}
		timeout := spec.TimeoutSeconds
		if timeout <= 0 {
			timeout = int(s.jobTimeout.Seconds())
		}
		jobs[i] = &model.Job{
			ID:               model.JobID(campaign.ID, i),
			CampaignID:       campaign.ID,
			ComputeUnit:      spec.ComputeUnit,
			PinnedWorkerID:   spec.WorkerID,
			NumWarmups:       warmups,
			NumInferenceRuns: runs,
			Status:           constants.JobStatusPending,
			TimeoutSeconds:   timeout,
			CreatedAt:        now,
		}
		jobIDs[i] = jobs[i].ID
	}

	if err := s.store.CreateCampaignWithJobs(ctx, campaign, jobs); err != nil {
		return nil, err
	}
	logger.Infof("Campaign %s created with %d job(s)", campaign.ID, len(jobs))
	s.tick(ctx)

	return &model.CreateCampaignResponse{
		CampaignID: campaign.ID,
		TotalJobs:  campaign.TotalJobs,
		Status:     campaign.Status,
		JobIDs:     jobIDs,
	}, nil
}

// List returns every campaign in creation order.
func (s *CampaignService) List(ctx context.Context) ([]*model.Campaign, error) {
	return s.store.GetAllCampaigns(ctx)
}

// GetDetail returns a campaign with its per-status job breakdown and,
// optionally, the full job list.
func (s *CampaignService) GetDetail(ctx context.Context, campaignID string, includeJobs bool) (*model.CampaignDetail, error) {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.GetJobsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	detail := &model.CampaignDetail{Campaign: *campaign}
	for _, job := range jobs {
		switch job.Status {
		case constants.JobStatusPending:
			detail.Breakdown.Pending++
		case constants.JobStatusRunning:
			detail.Breakdown.Running++
		case constants.JobStatusComplete:
			detail.Breakdown.Complete++
		case constants.JobStatusFailed:
			detail.Breakdown.Failed++
		case constants.JobStatusCancelled:
			detail.Breakdown.Cancelled++
		}
	}
	if includeJobs {
		detail.Jobs = jobs
	}
	return detail, nil
}

// GetJob returns a job joined with its stored result.
func (s *CampaignService) GetJob(ctx context.Context, jobID string) (*JobDetail, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	result, err := s.store.GetResult(ctx, jobID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return &JobDetail{Job: job, Result: result}, nil
}

// IngestResult records a worker's terminal result: the job goes terminal and
// the worker returns to active in one transaction, then campaign status is
// recomputed, the result archived, report generation enqueued when the
// campaign finished, and a dispatch pass runs for the freed worker.
func (s *CampaignService) IngestResult(ctx context.Context, req *model.IngestRequest) (*model.Job, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("unknown result status %q: %w", req.Status, core.ErrInvalidState)
	}

	job, freed, noop, err := s.store.FinishJob(ctx, req.JobID, req)
	if err != nil {
		return nil, err
	}
	if noop {
		logger.Infof("Duplicate result for job %s ignored", req.JobID)
		return job, nil
	}
	logger.Infof("Job %s finished %s (worker %s)", job.ID, job.Status, req.WorkerID)

	s.afterTerminal(ctx, job)
	if freed != nil {
		s.tick(ctx)
	}
	return job, nil
}

// CancelJob cancels a pending or running job and runs the same terminal
// bookkeeping as a result delivery.
func (s *CampaignService) CancelJob(ctx context.Context, jobID, remark string) (*model.Job, error) {
	if remark == "" {
		remark = "cancelled by operator"
	}
	job, freed, err := s.store.CancelJob(ctx, jobID, remark)
	if err != nil {
		return nil, err
	}
	logger.Infof("Job %s cancelled", jobID)

	s.afterTerminal(ctx, job)
	if freed != nil {
		s.tick(ctx)
	}
	return job, nil
}

// HandleJobTimeout applies the configured timeout policy to a running job
// that exceeded its deadline. Under "fail" the job goes failed and the
// worker stays active; under "requeue" the job returns to its queue and the
// worker is marked faulty.
func (s *CampaignService) HandleJobTimeout(ctx context.Context, job *model.Job) error {
	if s.timeoutPolicy == config.TimeoutPolicyRequeue {
		if job.AssignedWorkerID == "" {
			return fmt.Errorf("running job %s has no worker: %w", job.ID, core.ErrInvalidState)
		}
		// Conditional on the worker still holding this job: a result that
		// landed after our snapshot must win over the stale timeout.
		requeued, err := s.store.ReclaimWorker(ctx, job.AssignedWorkerID, job.ID)
		if err != nil {
			return err
		}
		logger.Warnf("Job %s timed out; requeued as %q, worker %s marked faulty", job.ID, requeued, job.AssignedWorkerID)
		return nil
	}

	req := &model.IngestRequest{JobID: job.ID, Status: constants.ResultStatusFailed, Remark: timeoutRemark}
	finished, freed, noop, err := s.store.FinishJob(ctx, job.ID, req)
	if err != nil {
		return err
	}
	if noop {
		return nil
	}
	logger.Warnf("Job %s timed out; marked failed", job.ID)
	s.afterTerminal(ctx, finished)
	if freed != nil {
		s.tick(ctx)
	}
	return nil
}

// afterTerminal recomputes the campaign, archives the result and enqueues
// report generation when the campaign itself went terminal. All steps are
// best-effort: the job transition already committed.
func (s *CampaignService) afterTerminal(ctx context.Context, job *model.Job) {
	campaign, err := s.recomputeCampaign(ctx, job.CampaignID)
	if err != nil {
		logger.Errorf("Failed to recompute campaign %s: %v", job.CampaignID, err)
		return
	}

	if s.archiver != nil {
		result, err := s.store.GetResult(ctx, job.ID)
		if err == nil {
			var worker *model.Worker
			if result.WorkerID != "" {
				worker, _ = s.store.GetWorker(ctx, result.WorkerID)
			}
			if err := s.archiver.ArchiveResult(ctx, job, result, worker); err != nil {
				logger.Warnf("Failed to archive result for job %s: %v", job.ID, err)
			}
		}
	}

	if campaign.Status != constants.CampaignStatusRunning && s.enqueuer != nil {
		if err := s.enqueuer.EnqueueReport(ctx, campaign.ID); err != nil {
			logger.Warnf("Failed to enqueue report for campaign %s: %v", campaign.ID, err)
		}
	}
}

// recomputeCampaign re-derives campaign status from its jobs. The store runs
// the derivation under WATCH so concurrent terminal transitions cannot commit
// a stale status last.
func (s *CampaignService) recomputeCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	before, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	campaign, err := s.store.RecomputeCampaignStatus(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != before.Status {
		logger.Infof("Campaign %s is now %s", campaignID, campaign.Status)
	}
	return campaign, nil
}

// ReportRows snapshots a campaign's jobs joined with results and worker
// device info, in job ordinal order.
func (s *CampaignService) ReportRows(ctx context.Context, campaignID string) ([]*model.ReportRow, error) {
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	jobs, err := s.store.GetJobsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	workers := map[string]*model.Worker{}
	rows := make([]*model.ReportRow, 0, len(jobs))
	for _, job := range jobs {
		row := &model.ReportRow{
			Status:       string(job.Status),
			JobID:        job.ID,
			ComputeUnits: job.ComputeUnit,
		}
		result, err := s.store.GetResult(ctx, job.ID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		if result != nil {
			row.FileName = result.FileName
			row.FileSize = result.FileSize
			if result.ComputeUnits != "" {
				row.ComputeUnits = result.ComputeUnits
			}
			row.LoadMsMedian = result.LoadMsMedian
			row.LoadMsStdDev = result.LoadMsStdDev
			row.LoadMsAverage = result.LoadMsAverage
			row.LoadMsFirst = result.LoadMsFirst
			row.PeakLoadRamUsage = result.PeakLoadRamUsage
			row.InferenceMsMedian = result.InferenceMsMedian
			row.InferenceMsStdDev = result.InferenceMsStdDev
			row.InferenceMsAverage = result.InferenceMsAverage
			row.InferenceMsFirst = result.InferenceMsFirst
			row.PeakInferenceRamUsage = result.PeakInferenceRamUsage

			if result.WorkerID != "" {
				worker, ok := workers[result.WorkerID]
				if !ok {
					worker, _ = s.store.GetWorker(ctx, result.WorkerID)
					workers[result.WorkerID] = worker
				}
				if worker != nil {
					row.DeviceName = worker.DeviceName
					row.DeviceYear = worker.InfoString("device_year")
					row.Soc = worker.InfoString("soc")
					row.Ram = worker.InfoString("ram")
					row.DiscreteGpu = worker.InfoString("discrete_gpu")
					row.VRam = worker.InfoString("vram")
					row.DeviceOs = worker.InfoString("os")
					row.DeviceOsVersion = worker.InfoString("os_version")
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SweepTimedOutJobs finds running jobs past their deadline and applies the
// timeout policy to each. Returns the number handled.
func (s *CampaignService) SweepTimedOutJobs(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.store.GetRunningJobIDs(ctx)
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, id := range ids {
		job, err := s.store.GetJob(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return handled, err
		}
		if job.Status != constants.JobStatusRunning || job.StartedAt == nil {
			continue
		}
		timeout := time.Duration(job.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = s.jobTimeout
		}
		if now.Sub(*job.StartedAt) < timeout {
			continue
		}
		if err := s.HandleJobTimeout(ctx, job); err != nil {
			// Lost the race against a late result; the job is terminal now.
			if errors.Is(err, core.ErrInvalidState) || errors.Is(err, core.ErrConflict) {
				continue
			}
			return handled, err
		}
		handled++
	}
	return handled, nil
}
