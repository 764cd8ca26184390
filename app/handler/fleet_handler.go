package handler

import (
	"context"
	"net/http"
	"time"

	"benchhub/internal/model"
	"benchhub/internal/service"
	"benchhub/pkg/logger"
	"benchhub/pkg/store/redis"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var fleetUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FleetSnapshot is one frame of the fleet stream.
type FleetSnapshot struct {
	Timestamp time.Time              `json:"timestamp"`
	Workers   []*model.Worker        `json:"workers"`
	Queues    []*redis.QueueSnapshot `json:"queues"`
}

// FleetHandler streams periodic fleet and queue snapshots to dashboards
type FleetHandler struct {
	workerService *service.WorkerService
	store         *redis.Store
	interval      time.Duration
}

// NewFleetHandler creates a new fleet stream handler
func NewFleetHandler(workerService *service.WorkerService, store *redis.Store, interval time.Duration) *FleetHandler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &FleetHandler{workerService: workerService, store: store, interval: interval}
}

// Stream upgrades to websocket and pushes snapshots until the client leaves
// @Router /ws/fleet [get]
func (h *FleetHandler) Stream(c *gin.Context) {
	conn, err := fleetUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnCtx(c.Request.Context(), "websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Read pump only to observe the close handshake
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		snapshot, err := h.snapshot(ctx)
		if err != nil {
			logger.WarnCtx(ctx, "fleet snapshot failed: %v", err)
		} else if err := conn.WriteJSON(snapshot); err != nil {
			return
		}

		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *FleetHandler) snapshot(ctx context.Context) (*FleetSnapshot, error) {
	workers, err := h.workerService.List(ctx)
	if err != nil {
		return nil, err
	}
	queues, err := h.store.ListQueues(ctx)
	if err != nil {
		return nil, err
	}
	return &FleetSnapshot{Timestamp: time.Now(), Workers: workers, Queues: queues}, nil
}
