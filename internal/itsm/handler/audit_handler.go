package handler

import (
	"strconv"

	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志处理器（只读）
type AuditHandler struct {
	repo *repository.AuditLogRepository
}

// NewAuditHandler 创建审计日志处理器
func NewAuditHandler(repo *repository.AuditLogRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// Recent 最近的审计记录
func (h *AuditHandler) Recent(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	items, err := h.repo.FindRecent(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// ByEntity 某实体的审计记录
func (h *AuditHandler) ByEntity(c *gin.Context) {
	page, pageSize := GetPagination(c)

	entityType := c.Query("entity_type")
	entityID := c.Query("entity_id")
	if entityType == "" || entityID == "" {
		BadRequest(c, "entity_type and entity_id are required")
		return
	}

	items, total, err := h.repo.FindByEntity(c.Request.Context(), entityType, entityID, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}
