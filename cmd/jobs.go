package main

import (
	"time"

	"benchhub/internal/health"
	"benchhub/internal/jobs"
	"benchhub/pkg/logger"
)

func (app *Application) initJobs() error {
	if app.workerService == nil || app.campaignService == nil {
		logger.WarnCtx(app.ctx, "Service layer not fully initialized yet, skipping background task registration")
		return nil
	}

	manager := jobs.NewManager(app.ctx)

	// Safety-net dispatch: event-driven ticks cover the common paths, this
	// one catches workers or jobs they missed.
	manager.Register(app.dispatcher)

	heartbeatTimeout := time.Duration(app.config.Worker.HeartbeatTimeout) * time.Second
	sweepInterval := time.Duration(app.config.Health.CheckInterval) * time.Second
	manager.Register(health.NewWorkerSweep(app.store, heartbeatTimeout, sweepInterval))

	jobSweepInterval := time.Duration(app.config.Health.JobCheckInterval) * time.Second
	manager.Register(health.NewJobTimeoutSweep(app.store, app.campaignService, jobSweepInterval))

	app.jobsManager = manager
	return nil
}
