package handler

import (
	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/gin-gonic/gin"
)

// RequestHandler 资产申请处理器
type RequestHandler struct {
	svc *service.WorkflowService
}

// NewRequestHandler 创建资产申请处理器
func NewRequestHandler(svc *service.WorkflowService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

// List 获取申请列表。END_USER只能看到自己的申请。
func (h *RequestHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]string{
		"status":       c.Query("status"),
		"requester_id": c.Query("requester_id"),
		"search":       c.Query("search"),
	}
	if GetUserRole(c) == entity.RoleEndUser {
		filters["requester_id"] = GetUserID(c)
	}

	items, total, err := h.svc.ListRequests(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// Get 获取申请详情
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.svc.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	if GetUserRole(c) == entity.RoleEndUser && req.RequesterID != GetUserID(c) {
		Forbidden(c, "Not your request")
		return
	}
	Success(c, req)
}

// Create 创建资产申请
func (h *RequestHandler) Create(c *gin.Context) {
	var req service.CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	created, err := h.svc.CreateRequest(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, created)
}

// Approve IT审批通过
func (h *RequestHandler) Approve(c *gin.Context) {
	req, err := h.svc.Approve(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, req)
}

// Reject 审批驳回
func (h *RequestHandler) Reject(c *gin.Context) {
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "Rejection reason is required")
		return
	}

	req, err := h.svc.Reject(c.Request.Context(), c.Param("id"), GetUserID(c), body.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, req)
}

// RequireProcurement 转入采购流程
func (h *RequestHandler) RequireProcurement(c *gin.Context) {
	req, err := h.svc.RequireProcurement(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, req)
}

// Fulfill 满足申请并关联资产
func (h *RequestHandler) Fulfill(c *gin.Context) {
	var body struct {
		AssetID string `json:"asset_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "Asset ID is required")
		return
	}

	req, err := h.svc.Fulfill(c.Request.Context(), c.Param("id"), body.AssetID, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, req)
}
