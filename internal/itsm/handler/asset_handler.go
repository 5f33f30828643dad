package handler

import (
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/gin-gonic/gin"
)

// AssetHandler 资产处理器
type AssetHandler struct {
	svc *service.AssetService
}

// NewAssetHandler 创建资产处理器
func NewAssetHandler(svc *service.AssetService) *AssetHandler {
	return &AssetHandler{svc: svc}
}

// List 获取资产列表
func (h *AssetHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]string{
		"status":      c.Query("status"),
		"type":        c.Query("type"),
		"segment":     c.Query("segment"),
		"location":    c.Query("location"),
		"assigned_to": c.Query("assigned_to"),
		"search":      c.Query("search"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		HandleError(c, err)
		return
	}

	Success(c, NewListResponse(items, page, pageSize, total))
}

// Get 获取资产详情
func (h *AssetHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Asset ID is required")
		return
	}

	asset, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	Success(c, asset)
}

// MyAssets 当前用户名下的资产
func (h *AssetHandler) MyAssets(c *gin.Context) {
	items, err := h.svc.ListByAssignee(c.Request.Context(), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Create 创建资产。request_id关联已审批的申请。
func (h *AssetHandler) Create(c *gin.Context) {
	var req service.CreateAssetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	asset, err := h.svc.Create(c.Request.Context(), GetUserID(c), c.Query("request_id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	Created(c, asset)
}

// Update 更新资产
func (h *AssetHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Asset ID is required")
		return
	}

	var req service.UpdateAssetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	asset, err := h.svc.Update(c.Request.Context(), id, GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	Success(c, asset)
}

// Assign 分配资产
func (h *AssetHandler) Assign(c *gin.Context) {
	id := c.Param("id")

	var req service.AssignAssetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	asset, err := h.svc.Assign(c.Request.Context(), id, c.Query("request_id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	Success(c, asset)
}

// Unassign 回收资产
func (h *AssetHandler) Unassign(c *gin.Context) {
	asset, err := h.svc.Unassign(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, asset)
}

// Delete 删除资产。默认软删除，hard=true物理删除。
func (h *AssetHandler) Delete(c *gin.Context) {
	hard := c.Query("hard") == "true"
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), GetUserID(c), hard); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"message": "Asset deleted"})
}

// RequestDisposal 发起处置
func (h *AssetHandler) RequestDisposal(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	asset, err := h.svc.RequestDisposal(c.Request.Context(), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, asset)
}

// ApproveDisposal 审批处置
func (h *AssetHandler) ApproveDisposal(c *gin.Context) {
	asset, err := h.svc.ApproveDisposal(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, asset)
}

// Events 资产审计历史
func (h *AssetHandler) Events(c *gin.Context) {
	page, pageSize := GetPagination(c)

	items, total, err := h.svc.Events(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}
