package router

import (
	"benchhub/app/handler"
	"benchhub/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	workerHandler   *handler.WorkerHandler
	campaignHandler *handler.CampaignHandler
	jobHandler      *handler.JobHandler
	adminHandler    *handler.AdminHandler
	fleetHandler    *handler.FleetHandler
}

// NewRouter creates a new Router
func NewRouter(workerHandler *handler.WorkerHandler, campaignHandler *handler.CampaignHandler, jobHandler *handler.JobHandler, adminHandler *handler.AdminHandler, fleetHandler *handler.FleetHandler) *Router {
	return &Router{
		workerHandler:   workerHandler,
		campaignHandler: campaignHandler,
		jobHandler:      jobHandler,
		adminHandler:    adminHandler,
		fleetHandler:    fleetHandler,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	engine.GET("/health", r.adminHandler.Health)

	api := engine.Group("/api")
	api.Use(middleware.BearerAuth())
	{
		// Worker registry
		api.POST("/register", r.workerHandler.Register)
		api.GET("/workers", r.workerHandler.List)
		api.GET("/workers/:worker_id", r.workerHandler.Get)
		api.PUT("/workers/:worker_id/status", r.workerHandler.SetStatus)
		api.POST("/workers/:worker_id/heartbeat", r.workerHandler.Heartbeat)
		api.POST("/workers/:worker_id/reset", r.workerHandler.Reset)
		api.GET("/workers/:worker_id/jobs/next", r.workerHandler.NextJob)

		// Heartbeat alias for agents that only ping
		api.GET("/ping/:worker_id", r.workerHandler.Heartbeat)

		// Campaign lifecycle
		api.POST("/campaigns", r.campaignHandler.Create)
		api.GET("/campaigns", r.campaignHandler.List)
		api.GET("/campaigns/:campaign_id", r.campaignHandler.Get)
		api.GET("/campaigns/:campaign_id/results", r.campaignHandler.Results)
		api.GET("/campaigns/:campaign_id/archive", r.adminHandler.Archive)

		// Jobs and results
		api.GET("/jobs/:job_id", r.jobHandler.Get)
		api.POST("/jobs/:job_id/cancel", r.jobHandler.Cancel)
		api.POST("/results", r.jobHandler.Ingest)

		// Operations
		api.GET("/queues", r.adminHandler.Queues)
		api.GET("/reports", r.adminHandler.Reports)
		api.POST("/reset", r.adminHandler.Reset)
	}

	// Dashboard stream
	if r.fleetHandler != nil {
		engine.GET("/ws/fleet", r.fleetHandler.Stream)
	}
}
