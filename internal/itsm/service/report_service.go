package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
)

// 报表缓存key与TTL
const (
	reportSummaryCacheKey = "itsm:report:financial_summary"
	reportByTypeCacheKey  = "itsm:report:by_type"
	reportCacheTTL        = 5 * time.Minute
)

// ReportService 财务与折旧报表服务
type ReportService struct {
	assetRepo    *repository.AssetRepository
	purchaseRepo *repository.PurchaseRepository
	rdb          *redis.Client
}

func NewReportService(assetRepo *repository.AssetRepository, purchaseRepo *repository.PurchaseRepository, rdb *redis.Client) *ReportService {
	return &ReportService{assetRepo: assetRepo, purchaseRepo: purchaseRepo, rdb: rdb}
}

// FinancialSummary 财务汇总
type FinancialSummary struct {
	TotalAssets   int64   `json:"total_assets"`
	TotalValue    float64 `json:"total_asset_value"`
	AssetsInUse   int64   `json:"assets_in_use"`
	AssetsInStock int64   `json:"assets_in_stock"`
	AssetsRetired int64   `json:"assets_retired"`

	// 成本分布（只统计有成本的资产）
	AverageAssetCost float64  `json:"average_asset_cost"`
	HighestAssetCost *float64 `json:"highest_value_asset"`
	LowestAssetCost  *float64 `json:"lowest_value_asset"`

	// 采购口径
	TotalProcurementCost float64 `json:"total_procurement_cost"`
	PendingPOCount       int64   `json:"pending_po_count"`

	// 续费口径：保修到期在窗口内的资产
	UpcomingRenewalCost float64 `json:"upcoming_renewal_cost"`
	RenewalsDue30       int64   `json:"renewals_due_30_days"`
	RenewalsDue90       int64   `json:"renewals_due_90_days"`

	// 板块口径：IT与非IT资产价值
	ITAssetsValue    float64 `json:"it_assets_value"`
	NonITAssetsValue float64 `json:"non_it_assets_value"`

	ByStatus      map[string]int64   `json:"by_status"`
	ValueByStatus map[string]float64 `json:"value_by_status"`
	ByType        map[string]int64   `json:"by_type"`
	ValueByType   map[string]float64 `json:"value_by_type"`
	MonthlySpend  []MonthlySpend     `json:"monthly_spend"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// MonthlySpend 按月采购支出（取自PO总价）
type MonthlySpend struct {
	Month string  `json:"month"` // YYYY-MM
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

// canonicalStatus 汇总口径：Active并入In Use
func canonicalStatus(status string) string {
	if status == entity.AssetStatusActive {
		return entity.AssetStatusInUse
	}
	return status
}

// FinancialSummary 财务汇总报表。空库返回全零而不是错误。
// 结果缓存在redis，资产写入时失效。
func (s *ReportService) FinancialSummary(ctx context.Context) (*FinancialSummary, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, reportSummaryCacheKey).Bytes(); err == nil {
			var cached FinancialSummary
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	assets, err := s.assetRepo.FindAllSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	pos, err := s.purchaseRepo.POSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	summary := &FinancialSummary{
		ByStatus:      map[string]int64{},
		ValueByStatus: map[string]float64{},
		ByType:        map[string]int64{},
		ValueByType:   map[string]float64{},
		MonthlySpend:  []MonthlySpend{},
		GeneratedAt:   time.Now().UTC(),
	}

	now := summary.GeneratedAt
	in30 := now.AddDate(0, 0, 30)
	in90 := now.AddDate(0, 0, 90)

	var costedAssets int64
	for i := range assets {
		a := &assets[i]
		summary.TotalAssets++
		status := canonicalStatus(a.Status)
		summary.ByStatus[status]++
		summary.ByType[a.Type]++
		switch a.Status {
		case entity.AssetStatusInStock:
			summary.AssetsInStock++
		case entity.AssetStatusRetired, entity.AssetStatusDisposed:
			summary.AssetsRetired++
		}
		if a.Cost != nil {
			summary.TotalValue += *a.Cost
			summary.ValueByStatus[status] += *a.Cost
			summary.ValueByType[a.Type] += *a.Cost
			if a.Segment == "IT" {
				summary.ITAssetsValue += *a.Cost
			} else {
				summary.NonITAssetsValue += *a.Cost
			}
			if *a.Cost > 0 {
				costedAssets++
				if summary.HighestAssetCost == nil || *a.Cost > *summary.HighestAssetCost {
					v := *a.Cost
					summary.HighestAssetCost = &v
				}
				if summary.LowestAssetCost == nil || *a.Cost < *summary.LowestAssetCost {
					v := *a.Cost
					summary.LowestAssetCost = &v
				}
			}
		}
		if a.WarrantyExpiry != nil && !a.WarrantyExpiry.Before(now) {
			if !a.WarrantyExpiry.After(in90) {
				summary.RenewalsDue90++
				summary.UpcomingRenewalCost += renewalEstimate(a)
			}
			if !a.WarrantyExpiry.After(in30) {
				summary.RenewalsDue30++
			}
		}
	}
	summary.AssetsInUse = summary.ByStatus[entity.AssetStatusInUse]
	if costedAssets > 0 {
		summary.AverageAssetCost = summary.TotalValue / float64(costedAssets)
	}

	for i := range pos {
		po := &pos[i]
		if po.Status == entity.POStatusCancelled {
			continue
		}
		if po.TotalCost != nil {
			summary.TotalProcurementCost += *po.TotalCost
		}
		if po.Status == entity.POStatusUploaded || po.Status == entity.POStatusPending {
			summary.PendingPOCount++
		}
	}

	monthly := groupSpendByMonth(pos)
	for _, m := range monthly {
		summary.MonthlySpend = append(summary.MonthlySpend, *m)
	}
	sort.Slice(summary.MonthlySpend, func(i, j int) bool {
		return summary.MonthlySpend[i].Month < summary.MonthlySpend[j].Month
	})

	if s.rdb != nil {
		if raw, err := json.Marshal(summary); err == nil {
			_ = s.rdb.Set(ctx, reportSummaryCacheKey, raw, reportCacheTTL).Err()
		}
	}
	return summary, nil
}

// groupSpendByMonth 按PO创建月份聚合支出，已取消的PO不计
func groupSpendByMonth(pos []entity.PurchaseOrder) map[string]*MonthlySpend {
	monthly := map[string]*MonthlySpend{}
	for i := range pos {
		po := &pos[i]
		if po.Status == entity.POStatusCancelled || po.TotalCost == nil {
			continue
		}
		month := po.CreatedAt.Format("2006-01")
		m, ok := monthly[month]
		if !ok {
			m = &MonthlySpend{Month: month}
			monthly[month] = m
		}
		m.Total += *po.TotalCost
		m.Count++
	}
	return monthly
}

// MonthlySpendHistory 最近N个月的采购支出，没有PO的月份补零行。
// months不合法时回退为12。
func (s *ReportService) MonthlySpendHistory(ctx context.Context, months int) ([]MonthlySpend, error) {
	if months <= 0 || months > 60 {
		months = 12
	}

	pos, err := s.purchaseRepo.POSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	monthly := groupSpendByMonth(pos)

	now := time.Now().UTC()
	result := make([]MonthlySpend, 0, months)
	for i := months - 1; i >= 0; i-- {
		month := now.AddDate(0, -i, 0).Format("2006-01")
		if m, ok := monthly[month]; ok {
			result = append(result, *m)
		} else {
			result = append(result, MonthlySpend{Month: month})
		}
	}
	return result, nil
}

// AssetCostBreakdown 按资产类型的成本分布行
type AssetCostBreakdown struct {
	AssetType    string  `json:"asset_type"`
	Count        int64   `json:"count"`
	TotalValue   float64 `json:"total_value"`
	AverageValue float64 `json:"average_value"`
}

// CostByType 按资产类型的成本分布，按总价值降序。
// 结果缓存在redis，资产写入时失效。
func (s *ReportService) CostByType(ctx context.Context) ([]AssetCostBreakdown, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, reportByTypeCacheKey).Bytes(); err == nil {
			var cached []AssetCostBreakdown
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	assets, err := s.assetRepo.FindAllSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	byType := map[string]*AssetCostBreakdown{}
	for i := range assets {
		a := &assets[i]
		assetType := a.Type
		if assetType == "" {
			assetType = "Unknown"
		}
		row, ok := byType[assetType]
		if !ok {
			row = &AssetCostBreakdown{AssetType: assetType}
			byType[assetType] = row
		}
		row.Count++
		if a.Cost != nil {
			row.TotalValue += *a.Cost
		}
	}

	breakdown := make([]AssetCostBreakdown, 0, len(byType))
	for _, row := range byType {
		row.AverageValue = row.TotalValue / float64(row.Count)
		breakdown = append(breakdown, *row)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].TotalValue > breakdown[j].TotalValue
	})

	if s.rdb != nil {
		if raw, err := json.Marshal(breakdown); err == nil {
			_ = s.rdb.Set(ctx, reportByTypeCacheKey, raw, reportCacheTTL).Err()
		}
	}
	return breakdown, nil
}

// DepreciationEntry 单资产折旧行
type DepreciationEntry struct {
	AssetID          string  `json:"asset_id"`
	AssetName        string  `json:"asset_name"`
	Type             string  `json:"type"`
	Cost             float64 `json:"cost"`
	AgeYears         float64 `json:"age_years"`
	UsefulLifeYears  int     `json:"useful_life_years"`
	AnnualRate       float64 `json:"annual_depreciation"`
	AccumulatedDepr  float64 `json:"accumulated_depreciation"`
	CurrentValue     float64 `json:"current_value"`
	FullyDepreciated bool    `json:"fully_depreciated"`
}

// DepreciationReport 折旧报表
type DepreciationReport struct {
	Entries           []DepreciationEntry `json:"entries"`
	TotalOriginalCost float64             `json:"total_original_cost"`
	TotalCurrentValue float64             `json:"total_current_value"`
	UsefulLifeYears   int                 `json:"useful_life_years"`
	AsOf              time.Time           `json:"as_of"`
}

// straightLineValue 直线折旧后的当前价值。
// 累计折旧 = min(成本/年限 × 已用年数, 成本)，当前价值不会为负。
func straightLineValue(cost, ageYears float64, usefulLifeYears int) (accumulated, current float64) {
	if usefulLifeYears <= 0 || cost <= 0 {
		return 0, cost
	}
	if ageYears < 0 {
		ageYears = 0
	}
	accumulated = cost / float64(usefulLifeYears) * ageYears
	if accumulated > cost {
		accumulated = cost
	}
	return accumulated, cost - accumulated
}

// Depreciation 折旧报表。无购置日期或无成本的资产跳过。
func (s *ReportService) Depreciation(ctx context.Context, usefulLifeYears int, asOf time.Time) (*DepreciationReport, error) {
	if usefulLifeYears <= 0 {
		usefulLifeYears = 5
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	assets, err := s.assetRepo.FindAllSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	report := &DepreciationReport{
		Entries:         []DepreciationEntry{},
		UsefulLifeYears: usefulLifeYears,
		AsOf:            asOf,
	}

	for _, a := range assets {
		if a.Cost == nil || a.PurchaseDate == nil {
			continue
		}
		ageYears := asOf.Sub(*a.PurchaseDate).Hours() / (24 * 365)
		accumulated, current := straightLineValue(*a.Cost, ageYears, usefulLifeYears)
		report.Entries = append(report.Entries, DepreciationEntry{
			AssetID:          a.ID,
			AssetName:        a.Name,
			Type:             a.Type,
			Cost:             *a.Cost,
			AgeYears:         ageYears,
			UsefulLifeYears:  usefulLifeYears,
			AnnualRate:       *a.Cost / float64(usefulLifeYears),
			AccumulatedDepr:  accumulated,
			CurrentValue:     current,
			FullyDepreciated: current == 0,
		})
		report.TotalOriginalCost += *a.Cost
		report.TotalCurrentValue += current
	}
	return report, nil
}

// RenewalEntry 续费到期行
type RenewalEntry struct {
	AssetID       string    `json:"asset_id"`
	AssetName     string    `json:"asset_name"`
	Type          string    `json:"type"`
	ExpiryKind    string    `json:"expiry_kind"` // warranty/contract/license
	ExpiryDate    time.Time `json:"expiry_date"`
	DaysRemaining int       `json:"days_remaining"`
	EstimatedCost float64   `json:"estimated_cost"`
}

// RenewalReport 续费报表。Upcoming为整个窗口内的到期项，
// DueIn30为其中30天内到期的子集。
type RenewalReport struct {
	DaysAhead int            `json:"days_ahead"`
	DueIn30   []RenewalEntry `json:"due_in_30"`
	Upcoming  []RenewalEntry `json:"upcoming"`
	Total30   float64        `json:"total_cost_30"`
	TotalCost float64        `json:"total_cost"`
	Generated time.Time      `json:"generated_at"`
}

// renewalEstimate 续费成本：优先renewal_cost，缺省按成本10%估算
func renewalEstimate(a *entity.Asset) float64 {
	if a.RenewalCost != nil {
		return *a.RenewalCost
	}
	if a.Cost != nil {
		return *a.Cost * 0.10
	}
	return 0
}

// Renewals 即将到期的保修/合同/许可证。
// daysAhead为窗口长度（缺省90天），kind限定到期类型（warranty/contract/license，空为全部）。
func (s *ReportService) Renewals(ctx context.Context, now time.Time, daysAhead int, kind string) (*RenewalReport, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if daysAhead <= 0 {
		daysAhead = 90
	}
	switch kind {
	case "", "warranty", "contract", "license":
	default:
		return nil, fmt.Errorf("%w: unknown expiry type %q", ErrValidation, kind)
	}
	horizon := now.AddDate(0, 0, daysAhead)

	assets, err := s.assetRepo.FindExpiring(ctx, now, horizon)
	if err != nil {
		return nil, err
	}

	report := &RenewalReport{
		DaysAhead: daysAhead,
		DueIn30:   []RenewalEntry{},
		Upcoming:  []RenewalEntry{},
		Generated: now,
	}

	appendEntry := func(a *entity.Asset, expiryKind string, expiry *time.Time) {
		if kind != "" && kind != expiryKind {
			return
		}
		if expiry == nil || expiry.Before(now) || expiry.After(horizon) {
			return
		}
		entry := RenewalEntry{
			AssetID:       a.ID,
			AssetName:     a.Name,
			Type:          a.Type,
			ExpiryKind:    expiryKind,
			ExpiryDate:    *expiry,
			DaysRemaining: int(expiry.Sub(now).Hours() / 24),
			EstimatedCost: renewalEstimate(a),
		}
		if entry.DaysRemaining <= 30 {
			report.DueIn30 = append(report.DueIn30, entry)
			report.Total30 += entry.EstimatedCost
		}
		report.Upcoming = append(report.Upcoming, entry)
		report.TotalCost += entry.EstimatedCost
	}

	for i := range assets {
		a := &assets[i]
		appendEntry(a, "warranty", a.WarrantyExpiry)
		appendEntry(a, "contract", a.ContractExpiry)
		appendEntry(a, "license", a.LicenseExpiry)
	}

	sort.Slice(report.Upcoming, func(i, j int) bool {
		return report.Upcoming[i].ExpiryDate.Before(report.Upcoming[j].ExpiryDate)
	})
	sort.Slice(report.DueIn30, func(i, j int) bool {
		return report.DueIn30[i].ExpiryDate.Before(report.DueIn30[j].ExpiryDate)
	})
	return report, nil
}

// ExportAssetsXLSX 导出资产清单为xlsx
func (s *ReportService) ExportAssetsXLSX(ctx context.Context) (*bytes.Buffer, error) {
	assets, err := s.assetRepo.FindAllSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Assets"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Name", "Type", "Serial Number", "Status", "Segment", "Location",
		"Assigned To", "Cost", "Renewal Cost", "Purchase Date", "Warranty Expiry", "Notes"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	fmtDate := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	fmtFloat := func(v *float64) interface{} {
		if v == nil {
			return ""
		}
		return *v
	}

	for row, a := range assets {
		assignedTo := ""
		if a.AssignedTo != nil {
			assignedTo = *a.AssignedTo
		}
		values := []interface{}{
			a.ID, a.Name, a.Type, a.SerialNumber, a.Status, a.Segment, a.Location,
			assignedTo, fmtFloat(a.Cost), fmtFloat(a.RenewalCost),
			fmtDate(a.PurchaseDate), fmtDate(a.WarrantyExpiry), a.Notes,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf, nil
}
