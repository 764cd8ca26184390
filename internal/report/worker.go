package report

import (
	"context"
	"encoding/json"
	"fmt"

	"benchhub/internal/service"
	"benchhub/pkg/logger"
	queue "benchhub/pkg/queue/asynq"

	"github.com/hibiken/asynq"
)

// Generator is the report:generate task handler: it snapshots a campaign and
// writes its CSV into the reports directory.
type Generator struct {
	campaigns *service.CampaignService
	dir       string
}

func NewGenerator(campaigns *service.CampaignService, dir string) *Generator {
	return &Generator{campaigns: campaigns, dir: dir}
}

func (g *Generator) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload queue.ReportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal report payload: %w", err)
	}

	rows, err := g.campaigns.ReportRows(ctx, payload.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to snapshot campaign %s: %w", payload.CampaignID, err)
	}
	path, err := WriteFile(g.dir, payload.CampaignID, rows)
	if err != nil {
		return err
	}
	logger.InfoCtx(ctx, "report generated, campaign_id: %s, path: %s", payload.CampaignID, path)
	return nil
}
