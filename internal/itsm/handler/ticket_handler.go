package handler

import (
	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/gin-gonic/gin"
)

// TicketHandler 工单处理器
type TicketHandler struct {
	svc *service.TicketService
}

// NewTicketHandler 创建工单处理器
func NewTicketHandler(svc *service.TicketService) *TicketHandler {
	return &TicketHandler{svc: svc}
}

// List 获取工单列表。END_USER只能看到自己上报的工单。
func (h *TicketHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]string{
		"status":      c.Query("status"),
		"priority":    c.Query("priority"),
		"reported_by": c.Query("reported_by"),
		"asset_id":    c.Query("asset_id"),
	}
	if GetUserRole(c) == entity.RoleEndUser {
		filters["reported_by"] = GetUserID(c)
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// Get 获取工单详情
func (h *TicketHandler) Get(c *gin.Context) {
	ticket, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	if GetUserRole(c) == entity.RoleEndUser && ticket.ReportedBy != GetUserID(c) {
		Forbidden(c, "Not your ticket")
		return
	}
	Success(c, ticket)
}

// Create 创建工单
func (h *TicketHandler) Create(c *gin.Context) {
	var req service.CreateTicketInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ticket, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, ticket)
}

// UpdateStatus 工单状态流转
func (h *TicketHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateTicketStatusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ticket, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, ticket)
}
