package handler

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/gin-gonic/gin"
)

// ProcurementHandler 采购/财务处理器
type ProcurementHandler struct {
	svc *service.WorkflowService
}

// NewProcurementHandler 创建采购处理器
func NewProcurementHandler(svc *service.WorkflowService) *ProcurementHandler {
	return &ProcurementHandler{svc: svc}
}

// ListPOs 获取采购订单列表
func (h *ProcurementHandler) ListPOs(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]string{
		"status":           c.Query("status"),
		"asset_request_id": c.Query("asset_request_id"),
		"search":           c.Query("search"),
	}

	items, total, err := h.svc.ListPurchaseOrders(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// GetPO 获取采购订单详情
func (h *ProcurementHandler) GetPO(c *gin.Context) {
	po, err := h.svc.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, po)
}

// parseFloatForm 解析可选的金额表单字段
func parseFloatForm(c *gin.Context, key string) *float64 {
	raw := c.PostForm(key)
	if raw == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return &v
	}
	return nil
}

// UploadPO 上传PO单据（multipart）。先校验工作流阶段，再写对象存储，
// 避免被拒绝的上传在桶里留下孤儿对象。
func (h *ProcurementHandler) UploadPO(c *gin.Context) {
	requestID := c.Param("id")

	if err := h.svc.EnsurePOUploadAllowed(c.Request.Context(), requestID); err != nil {
		HandleError(c, err)
		return
	}

	in := &service.UploadPOInput{
		Vendor:    c.PostForm("vendor"),
		UnitCost:  parseFloatForm(c, "unit_cost"),
		TotalCost: parseFloatForm(c, "total_cost"),
	}
	if q := c.PostForm("quantity"); q != "" {
		if v, err := strconv.Atoi(q); err == nil {
			in.Quantity = v
		}
	}
	if raw := c.PostForm("extracted_data"); raw != "" {
		var data entity.JSONB
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			in.ExtractedData = data
		}
	}

	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			InternalError(c, "Open uploaded file: "+err.Error())
			return
		}
		defer f.Close()

		path, err := h.svc.StoreDocument(c.Request.Context(), "purchase-orders", file.Filename,
			f, file.Size, file.Header.Get("Content-Type"))
		if err != nil {
			HandleError(c, err)
			return
		}
		in.DocumentPath = path
	}

	po, err := h.svc.UploadPurchaseOrder(c.Request.Context(), requestID, GetUserID(c), in)
	if err != nil {
		// 并发下迁移仍可能被拒，清掉刚写入的对象
		_ = h.svc.RemoveDocument(c.Request.Context(), in.DocumentPath)
		HandleError(c, err)
		return
	}
	Created(c, po)
}

// UploadInvoice 上传发票（multipart）。同PO上传，先校验阶段再写存储。
func (h *ProcurementHandler) UploadInvoice(c *gin.Context) {
	requestID := c.Param("id")

	if err := h.svc.EnsureInvoiceUploadAllowed(c.Request.Context(), requestID); err != nil {
		HandleError(c, err)
		return
	}

	in := &service.UploadInvoiceInput{
		Amount:    parseFloatForm(c, "amount"),
		TaxAmount: parseFloatForm(c, "tax_amount"),
	}
	if raw := c.PostForm("purchase_date"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			in.PurchaseDate = &t
		}
	}

	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			InternalError(c, "Open uploaded file: "+err.Error())
			return
		}
		defer f.Close()

		path, err := h.svc.StoreDocument(c.Request.Context(), "invoices", file.Filename,
			f, file.Size, file.Header.Get("Content-Type"))
		if err != nil {
			HandleError(c, err)
			return
		}
		in.DocumentPath = path
	}

	inv, err := h.svc.UploadInvoice(c.Request.Context(), requestID, GetUserID(c), in)
	if err != nil {
		_ = h.svc.RemoveDocument(c.Request.Context(), in.DocumentPath)
		HandleError(c, err)
		return
	}
	Created(c, inv)
}

// Complete 财务确认采购完成
func (h *ProcurementHandler) Complete(c *gin.Context) {
	req, err := h.svc.CompleteProcurement(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, req)
}

// DocumentURL 生成PO单据的限时下载链接
func (h *ProcurementHandler) DocumentURL(c *gin.Context) {
	po, err := h.svc.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	url, err := h.svc.DocumentURL(c.Request.Context(), po.DocumentPath)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"url": url})
}
