package handler

import (
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/gin-gonic/gin"
)

// RelationshipHandler 资产关系处理器
type RelationshipHandler struct {
	svc *service.RelationshipService
}

// NewRelationshipHandler 创建资产关系处理器
func NewRelationshipHandler(svc *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{svc: svc}
}

// List 获取资产的上下游关系
func (h *RelationshipHandler) List(c *gin.Context) {
	rels, err := h.svc.ListForAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, rels)
}

// Create 创建资产关系
func (h *RelationshipHandler) Create(c *gin.Context) {
	var req service.CreateRelationshipInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rel, err := h.svc.Create(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, rel)
}

// Delete 删除资产关系
func (h *RelationshipHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), c.Param("rel_id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"message": "Relationship deleted"})
}
