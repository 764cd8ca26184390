package main

import (
	"fmt"
	"net/http"
	"time"

	"benchhub/app/handler"
	"benchhub/app/router"
	"benchhub/internal/dispatch"
	"benchhub/internal/report"
	"benchhub/internal/service"
	"benchhub/pkg/config"
	"benchhub/pkg/logger"
	queue "benchhub/pkg/queue/asynq"
	mysqlstore "benchhub/pkg/store/mysql"
	redisstore "benchhub/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
		logger.InfoCtx(app.ctx, "Logging system has been closed")
	})
	return nil
}

// initRedis initializes Redis and the state store
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.store = redisstore.NewStore(client, app.config.Dispatch.MaxTxRetries)
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initMySQL initializes the optional result archive
func (app *Application) initMySQL() error {
	if app.config.MySQL.Host == "" {
		logger.InfoCtx(app.ctx, "MySQL not configured, result archival disabled")
		return nil
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		app.config.MySQL.User,
		app.config.MySQL.Password,
		app.config.MySQL.Host,
		app.config.MySQL.Port,
		app.config.MySQL.Database,
	)

	ds, err := mysqlstore.NewDatastore(dsn)
	if err != nil {
		return err
	}

	app.datastore = ds
	app.archiveRepo = mysqlstore.NewArchiveRepository(ds)
	if err := app.archiveRepo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate archive schema: %w", err)
	}

	app.registerCleanup(func() {
		ds.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initQueue initializes the asynchronous report queue
func (app *Application) initQueue() error {
	mgr, err := queue.NewManager(app.config)
	if err != nil {
		return err
	}

	app.queueMgr = mgr
	app.registerCleanup(func() {
		mgr.Close()
		logger.InfoCtx(app.ctx, "Report queue client has been closed")
	})

	return nil
}

// initServices initializes the dispatcher and the service layer
func (app *Application) initServices() error {
	app.dispatcher = dispatch.New(app.store, time.Duration(app.config.Dispatch.TickInterval)*time.Second)

	heartbeatTimeout := time.Duration(app.config.Worker.HeartbeatTimeout) * time.Second
	app.workerService = service.NewWorkerService(app.store, heartbeatTimeout)
	app.workerService.SetDispatcher(app.dispatcher)

	jobTimeout := time.Duration(app.config.Health.JobTimeout) * time.Second
	app.campaignService = service.NewCampaignService(app.store, jobTimeout, app.config.Health.TimeoutPolicy)
	app.campaignService.SetDispatcher(app.dispatcher)
	if app.archiveRepo != nil {
		app.campaignService.SetArchiver(app.archiveRepo)
	}
	if app.queueMgr != nil {
		app.campaignService.SetReportEnqueuer(app.queueMgr)
		generator := report.NewGenerator(app.campaignService, app.config.Reports.Dir)
		app.queueMgr.RegisterHandler(queue.TypeReportGenerate, generator)
	}

	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.workerHandler = handler.NewWorkerHandler(app.workerService, app.store)
	app.campaignHandler = handler.NewCampaignHandler(app.campaignService)
	app.jobHandler = handler.NewJobHandler(app.campaignService)

	// Typed-nil guard: a nil *ArchiveRepository must stay a nil interface
	var archive handler.ArchiveReader
	if app.archiveRepo != nil {
		archive = app.archiveRepo
	}
	app.adminHandler = handler.NewAdminHandler(app.store, app.config.Reports.Dir, archive)
	app.fleetHandler = handler.NewFleetHandler(app.workerService, app.store, 2*time.Second)
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	// Initialize router
	r := router.NewRouter(app.workerHandler, app.campaignHandler, app.jobHandler, app.adminHandler, app.fleetHandler)

	// Set Gin mode
	gin.SetMode(app.config.Server.Mode)

	// Create Gin engine
	app.ginEngine = gin.New()
	app.ginEngine.Use(gin.Recovery())

	// Setup routes
	r.Setup(app.ginEngine)

	// Create HTTP server
	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}

	return nil
}
