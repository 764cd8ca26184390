package handler

import (
	"net/http"

	"benchhub/internal/model"
	"benchhub/internal/service"

	"github.com/gin-gonic/gin"
)

// JobHandler handles single-job operations
type JobHandler struct {
	campaignService *service.CampaignService
}

// NewJobHandler creates a new job handler
func NewJobHandler(campaignService *service.CampaignService) *JobHandler {
	return &JobHandler{campaignService: campaignService}
}

// Get returns a job joined with its stored result
// @Router /api/jobs/:job_id [get]
func (h *JobHandler) Get(c *gin.Context) {
	detail, err := h.campaignService.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type cancelRequest struct {
	Remark string `json:"remark"`
}

// Cancel cancels a pending or running job
// @Router /api/jobs/:job_id/cancel [post]
func (h *JobHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req) // body optional

	job, err := h.campaignService.CancelJob(c.Request.Context(), c.Param("job_id"), req.Remark)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Ingest records a worker's terminal result for a job
// @Router /api/results [post]
func (h *JobHandler) Ingest(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.campaignService.IngestResult(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "status": job.Status})
}
