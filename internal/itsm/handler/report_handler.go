package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/atlasops/atlas-itsm/internal/config"
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler 报表处理器
type ReportHandler struct {
	svc *service.ReportService
	cfg *config.Config
}

// NewReportHandler 创建报表处理器
func NewReportHandler(svc *service.ReportService, cfg *config.Config) *ReportHandler {
	return &ReportHandler{svc: svc, cfg: cfg}
}

// FinancialSummary 财务汇总
func (h *ReportHandler) FinancialSummary(c *gin.Context) {
	summary, err := h.svc.FinancialSummary(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, summary)
}

// Depreciation 折旧报表。useful_life_years与as_of可覆盖默认值。
func (h *ReportHandler) Depreciation(c *gin.Context) {
	years := h.cfg.Reference.UsefulLifeYears
	if raw := c.Query("useful_life_years"); raw != "" {
		var v int
		if _, err := fmt.Sscanf(raw, "%d", &v); err == nil && v > 0 {
			years = v
		}
	}

	var asOf time.Time
	if raw := c.Query("as_of"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			asOf = t
		}
	}

	report, err := h.svc.Depreciation(c.Request.Context(), years, asOf)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, report)
}

// Renewals 续费到期报表。days_ahead定制窗口长度，expiry_type限定到期类型。
func (h *ReportHandler) Renewals(c *gin.Context) {
	daysAhead := 0
	if raw := c.Query("days_ahead"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			daysAhead = v
		}
	}

	report, err := h.svc.Renewals(c.Request.Context(), time.Time{}, daysAhead, c.Query("expiry_type"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, report)
}

// CostByType 按资产类型的成本分布
func (h *ReportHandler) CostByType(c *gin.Context) {
	breakdown, err := h.svc.CostByType(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, breakdown)
}

// MonthlySpend 最近N个月采购支出，缺月补零
func (h *ReportHandler) MonthlySpend(c *gin.Context) {
	months := 0
	if raw := c.Query("months"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			months = v
		}
	}

	spend, err := h.svc.MonthlySpendHistory(c.Request.Context(), months)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, spend)
}

// ExportAssets 导出资产清单xlsx
func (h *ReportHandler) ExportAssets(c *gin.Context) {
	buf, err := h.svc.ExportAssetsXLSX(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	fileName := fmt.Sprintf("assets-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
