package handler

import (
	"fmt"
	"net/http"

	"benchhub/internal/model"
	"benchhub/internal/report"
	"benchhub/internal/service"

	"github.com/gin-gonic/gin"
)

// CampaignHandler handles campaign lifecycle operations
type CampaignHandler struct {
	campaignService *service.CampaignService
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService}
}

// Create submits a campaign
// @Router /api/campaigns [post]
func (h *CampaignHandler) Create(c *gin.Context) {
	var req model.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.campaignService.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List returns all campaigns
// @Router /api/campaigns [get]
func (h *CampaignHandler) List(c *gin.Context) {
	campaigns, err := h.campaignService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns, "count": len(campaigns)})
}

// Get returns one campaign with its job breakdown
// @Router /api/campaigns/:campaign_id [get]
func (h *CampaignHandler) Get(c *gin.Context) {
	includeJobs := c.Query("include_jobs") == "true"
	detail, err := h.campaignService.GetDetail(c.Request.Context(), c.Param("campaign_id"), includeJobs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Results streams the campaign report as a CSV attachment
// @Router /api/campaigns/:campaign_id/results [get]
func (h *CampaignHandler) Results(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	rows, err := h.campaignService.ReportRows(c.Request.Context(), campaignID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", report.FileName(campaignID)))
	c.Status(http.StatusOK)
	if err := report.WriteCSV(c.Writer, rows); err != nil {
		respondError(c, err)
	}
}
