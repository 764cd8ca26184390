package handler

import (
	"net/http"

	"benchhub/internal/model"
	"benchhub/internal/service"
	"benchhub/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// WorkerHandler handles worker-related operations
type WorkerHandler struct {
	workerService *service.WorkerService
	store         *redis.Store
}

// NewWorkerHandler creates a new worker handler
func NewWorkerHandler(workerService *service.WorkerService, store *redis.Store) *WorkerHandler {
	return &WorkerHandler{workerService: workerService, store: store}
}

// Register handles device enrollment, idempotent on udid
// @Router /api/register [post]
func (h *WorkerHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.workerService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Action == model.RegisterActionUpdated {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// List returns the full fleet
// @Router /api/workers [get]
func (h *WorkerHandler) List(c *gin.Context) {
	workers, err := h.workerService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers, "count": len(workers)})
}

// Get returns one worker
// @Router /api/workers/:worker_id [get]
func (h *WorkerHandler) Get(c *gin.Context) {
	worker, err := h.workerService.Get(c.Request.Context(), c.Param("worker_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, worker)
}

// SetStatus applies an externally requested worker status
// @Router /api/workers/:worker_id/status [put]
func (h *WorkerHandler) SetStatus(c *gin.Context) {
	var req model.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	worker, err := h.workerService.SetStatus(c.Request.Context(), c.Param("worker_id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, worker)
}

// Heartbeat refreshes worker liveness
// @Router /api/workers/:worker_id/heartbeat [post]
// @Router /api/ping/:worker_id [get]
func (h *WorkerHandler) Heartbeat(c *gin.Context) {
	health, err := h.workerService.Heartbeat(c.Request.Context(), c.Param("worker_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, health)
}

// Reset returns a faulty or cleanup worker to active
// @Router /api/workers/:worker_id/reset [post]
func (h *WorkerHandler) Reset(c *gin.Context) {
	worker, err := h.workerService.Reset(c.Request.Context(), c.Param("worker_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, worker)
}

// NextJob pops the next delivered job descriptor for a worker; 204 when the
// delivery channel is empty
// @Router /api/workers/:worker_id/jobs/next [get]
func (h *WorkerHandler) NextJob(c *gin.Context) {
	descriptor, err := h.store.PopDelivery(c.Request.Context(), c.Param("worker_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if descriptor == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, descriptor)
}
