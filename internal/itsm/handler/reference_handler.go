package handler

import (
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/gin-gonic/gin"
)

// ReferenceHandler 参考数据处理器
type ReferenceHandler struct {
	svc *service.ReferenceService
}

// NewReferenceHandler 创建参考数据处理器
func NewReferenceHandler(svc *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{svc: svc}
}

// Enums 静态枚举集合
func (h *ReferenceHandler) Enums(c *gin.Context) {
	Success(c, gin.H{
		"asset_types":        h.svc.AssetTypes(),
		"asset_statuses":     h.svc.AssetStatuses(),
		"segments":           h.svc.Segments(),
		"relationship_types": h.svc.RelationshipTypes(),
		"ticket_priorities":  h.svc.TicketPriorities(),
		"roles":              h.svc.Roles(),
	})
}

// Departments 用户表中实际出现的部门
func (h *ReferenceHandler) Departments(c *gin.Context) {
	departments, err := h.svc.Departments(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"departments": departments})
}

// Locations 资产表中实际出现的地点
func (h *ReferenceHandler) Locations(c *gin.Context) {
	locations, err := h.svc.Locations(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"locations": locations})
}
