package handler

import (
	"context"
	"net/http"

	"benchhub/internal/report"
	"benchhub/pkg/logger"
	mysqlmodel "benchhub/pkg/store/mysql/model"
	"benchhub/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// ArchiveReader reads archived results back out of long-term storage. nil
// when the MySQL archive is disabled.
type ArchiveReader interface {
	ListByCampaign(ctx context.Context, campaignID string) ([]*mysqlmodel.ArchivedResult, error)
}

// AdminHandler handles health, queue inspection and operator recovery
type AdminHandler struct {
	store      *redis.Store
	reportsDir string
	archive    ArchiveReader
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store *redis.Store, reportsDir string, archive ArchiveReader) *AdminHandler {
	return &AdminHandler{store: store, reportsDir: reportsDir, archive: archive}
}

// Health reports orchestrator and redis health
// @Router /health [get]
func (h *AdminHandler) Health(c *gin.Context) {
	if err := h.store.Client().Ping(c.Request.Context()).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Queues returns the depth and contents of every pending queue
// @Router /api/queues [get]
func (h *AdminHandler) Queues(c *gin.Context) {
	snapshots, err := h.store.ListQueues(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": snapshots, "count": len(snapshots)})
}

// Reports lists generated report files
// @Router /api/reports [get]
func (h *AdminHandler) Reports(c *gin.Context) {
	names, err := report.ListFiles(h.reportsDir)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": names, "count": len(names)})
}

// Archive returns a campaign's archived rows from long-term storage. They
// survive a Redis reset, unlike the live records.
// @Router /api/campaigns/:campaign_id/archive [get]
func (h *AdminHandler) Archive(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive not enabled"})
		return
	}
	rows, err := h.archive.ListByCampaign(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": rows, "count": len(rows)})
}

// Reset deletes all orchestrator state
// @Router /api/reset [post]
func (h *AdminHandler) Reset(c *gin.Context) {
	deleted, err := h.store.Reset(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	logger.WarnCtx(c.Request.Context(), "orchestrator state reset, %d key(s) deleted", deleted)
	c.JSON(http.StatusOK, gin.H{"deleted_keys": deleted})
}
