package asynq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"benchhub/pkg/config"
	"benchhub/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	TypeReportGenerate = "report:generate"
)

// ReportPayload is the report:generate task body.
type ReportPayload struct {
	CampaignID string `json:"campaign_id"`
}

// Manager queue manager for asynchronous report generation
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewManager creates queue manager
func NewManager(cfg *config.Config) (*Manager, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Reports.Concurrency,
			Queues: map[string]int{
				"default": 10,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
		},
	)

	mux := asynq.NewServeMux()

	return &Manager{
		client: client,
		server: server,
		mux:    mux,
	}, nil
}

// EnqueueReport enqueues report generation for a campaign. The campaign id
// doubles as the task id so repeated terminal transitions of one campaign
// collapse into a single regeneration.
func (m *Manager) EnqueueReport(ctx context.Context, campaignID string) error {
	payload, err := json.Marshal(&ReportPayload{CampaignID: campaignID})
	if err != nil {
		return fmt.Errorf("failed to marshal report payload: %w", err)
	}

	task := asynq.NewTask(TypeReportGenerate, payload)

	opts := []asynq.Option{
		asynq.TaskID(campaignID),
		asynq.MaxRetry(config.GlobalConfig.Reports.MaxRetry),
	}

	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil // already queued
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue report: %w", err)
	}

	logger.InfoCtx(ctx, "report enqueued, campaign_id: %s, queue: %s", campaignID, info.Queue)

	return nil
}

// RegisterHandler registers task handler
func (m *Manager) RegisterHandler(pattern string, handler asynq.Handler) {
	m.mux.Handle(pattern, handler)
}

// Start starts queue processor
func (m *Manager) Start() error {
	logger.InfoCtx(context.Background(), "starting queue server")
	return m.server.Start(m.mux)
}

// Stop stops queue processor
func (m *Manager) Stop() {
	logger.InfoCtx(context.Background(), "stopping queue server")
	m.server.Stop()
	m.server.Shutdown()
}

// Close closes client
func (m *Manager) Close() error {
	return m.client.Close()
}
