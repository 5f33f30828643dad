package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/itsm/testutil"
	"gorm.io/gorm"
)

func setupReportTest(t *testing.T) (*ReportService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewReportService(repos.Asset, repos.Purchase, nil)
	return svc, db
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestStraightLineDepreciation(t *testing.T) {
	// 1000 over 5 years, 2 years in: 400 depreciated, 600 remaining
	accumulated, current := straightLineValue(1000, 2, 5)
	if !almostEqual(accumulated, 400) || !almostEqual(current, 600) {
		t.Fatalf("expected 400/600, got %v/%v", accumulated, current)
	}

	// Past useful life the value floors at zero
	accumulated, current = straightLineValue(1000, 8, 5)
	if !almostEqual(accumulated, 1000) || !almostEqual(current, 0) {
		t.Fatalf("expected 1000/0, got %v/%v", accumulated, current)
	}

	// Brand new asset keeps full value
	accumulated, current = straightLineValue(1000, 0, 5)
	if !almostEqual(accumulated, 0) || !almostEqual(current, 1000) {
		t.Fatalf("expected 0/1000, got %v/%v", accumulated, current)
	}
}

func TestDepreciationReport(t *testing.T) {
	svc, db := setupReportTest(t)
	ctx := context.Background()

	purchase := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	asOf := purchase.Add(2 * 365 * 24 * time.Hour)
	cost := 1000.0

	asset := testutil.SeedTestAsset(t, db, "asset-depr-001", "Workstation", "Desktop", entity.AssetStatusInUse)
	db.Model(&entity.Asset{}).Where("id = ?", asset.ID).
		Updates(map[string]interface{}{"cost": cost, "purchase_date": purchase})

	// An asset without cost or purchase date is excluded
	testutil.SeedTestAsset(t, db, "asset-depr-002", "Keyboard", "Peripheral", entity.AssetStatusInStock)

	report, err := svc.Depreciation(ctx, 5, asOf)
	if err != nil {
		t.Fatalf("depreciation: %v", err)
	}
	if len(report.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(report.Entries))
	}

	entry := report.Entries[0]
	if !almostEqual(entry.AccumulatedDepr, 400) {
		t.Fatalf("expected accumulated 400, got %v", entry.AccumulatedDepr)
	}
	if !almostEqual(entry.CurrentValue, 600) {
		t.Fatalf("expected current value 600, got %v", entry.CurrentValue)
	}
	if entry.FullyDepreciated {
		t.Fatal("asset should not be fully depreciated at 2 of 5 years")
	}
	if !almostEqual(report.TotalCurrentValue, 600) {
		t.Fatalf("expected total current value 600, got %v", report.TotalCurrentValue)
	}
}

func TestFinancialSummaryEmptyDatabase(t *testing.T) {
	svc, _ := setupReportTest(t)

	summary, err := svc.FinancialSummary(context.Background())
	if err != nil {
		t.Fatalf("empty summary must not error: %v", err)
	}
	if summary.TotalAssets != 0 || summary.TotalValue != 0 {
		t.Fatalf("expected zeros, got %d assets / %v value", summary.TotalAssets, summary.TotalValue)
	}
	if summary.MonthlySpend == nil || len(summary.MonthlySpend) != 0 {
		t.Fatal("expected empty (non-nil) monthly spend")
	}
}

func TestFinancialSummaryMergesActiveIntoInUse(t *testing.T) {
	svc, db := setupReportTest(t)

	a1 := testutil.SeedTestAsset(t, db, "asset-sum-001", "Laptop A", "Laptop", entity.AssetStatusInUse)
	a2 := testutil.SeedTestAsset(t, db, "asset-sum-002", "Laptop B", "Laptop", entity.AssetStatusActive)
	testutil.SeedTestAsset(t, db, "asset-sum-003", "Laptop C", "Laptop", entity.AssetStatusInStock)

	db.Model(&entity.Asset{}).Where("id = ?", a1.ID).Update("cost", 1200.0)
	db.Model(&entity.Asset{}).Where("id = ?", a2.ID).Update("cost", 800.0)

	summary, err := svc.FinancialSummary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalAssets != 3 {
		t.Fatalf("expected 3 assets, got %d", summary.TotalAssets)
	}
	if summary.ByStatus[entity.AssetStatusInUse] != 2 {
		t.Fatalf("expected Active merged into In Use (2), got %d", summary.ByStatus[entity.AssetStatusInUse])
	}
	if _, ok := summary.ByStatus[entity.AssetStatusActive]; ok {
		t.Fatal("Active must not appear as its own bucket")
	}
	if !almostEqual(summary.ValueByStatus[entity.AssetStatusInUse], 2000) {
		t.Fatalf("expected merged value 2000, got %v", summary.ValueByStatus[entity.AssetStatusInUse])
	}
}

func TestRenewalsWindowsAndEstimates(t *testing.T) {
	svc, db := setupReportTest(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// Expires in 10 days with an explicit renewal cost
	soon := testutil.SeedTestAsset(t, db, "asset-ren-001", "AV License", "Software License", entity.AssetStatusActive)
	db.Model(&entity.Asset{}).Where("id = ?", soon.ID).Updates(map[string]interface{}{
		"license_expiry": now.AddDate(0, 0, 10),
		"renewal_cost":   150.0,
	})

	// Expires in 60 days, estimate falls back to 10% of cost
	later := testutil.SeedTestAsset(t, db, "asset-ren-002", "Support Contract", "Server", entity.AssetStatusActive)
	db.Model(&entity.Asset{}).Where("id = ?", later.ID).Updates(map[string]interface{}{
		"contract_expiry": now.AddDate(0, 0, 60),
		"cost":            5000.0,
	})

	// Outside the 90-day horizon
	far := testutil.SeedTestAsset(t, db, "asset-ren-003", "Warranty", "Laptop", entity.AssetStatusInUse)
	db.Model(&entity.Asset{}).Where("id = ?", far.ID).Update("warranty_expiry", now.AddDate(0, 6, 0))

	report, err := svc.Renewals(context.Background(), now, 90, "")
	if err != nil {
		t.Fatalf("renewals: %v", err)
	}

	if len(report.DueIn30) != 1 {
		t.Fatalf("expected 1 renewal due in 30 days, got %d", len(report.DueIn30))
	}
	if len(report.Upcoming) != 2 {
		t.Fatalf("expected 2 renewals in the 90-day window, got %d", len(report.Upcoming))
	}
	if !almostEqual(report.Total30, 150) {
		t.Fatalf("expected 30-day total 150, got %v", report.Total30)
	}
	if !almostEqual(report.TotalCost, 650) {
		t.Fatalf("expected window total 650 (150 + 10%% of 5000), got %v", report.TotalCost)
	}
}

func TestRenewalsConfigurableWindowAndKind(t *testing.T) {
	svc, db := setupReportTest(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	lic := testutil.SeedTestAsset(t, db, "asset-win-001", "CAD License", "Software License", entity.AssetStatusActive)
	db.Model(&entity.Asset{}).Where("id = ?", lic.ID).Updates(map[string]interface{}{
		"license_expiry": now.AddDate(0, 0, 20),
		"renewal_cost":   300.0,
	})

	warr := testutil.SeedTestAsset(t, db, "asset-win-002", "Rack Server", "Server", entity.AssetStatusInUse)
	db.Model(&entity.Asset{}).Where("id = ?", warr.ID).Update("warranty_expiry", now.AddDate(0, 0, 45))

	// 30-day window excludes the 45-day warranty
	report, err := svc.Renewals(ctx, now, 30, "")
	if err != nil {
		t.Fatalf("renewals 30d: %v", err)
	}
	if report.DaysAhead != 30 {
		t.Fatalf("expected days_ahead 30, got %d", report.DaysAhead)
	}
	if len(report.Upcoming) != 1 || report.Upcoming[0].AssetID != lic.ID {
		t.Fatalf("expected only the 20-day license in a 30-day window, got %d entries", len(report.Upcoming))
	}

	// kind filter keeps only warranty expiries
	report, err = svc.Renewals(ctx, now, 90, "warranty")
	if err != nil {
		t.Fatalf("renewals warranty: %v", err)
	}
	if len(report.Upcoming) != 1 || report.Upcoming[0].ExpiryKind != "warranty" {
		t.Fatalf("expected 1 warranty entry, got %d", len(report.Upcoming))
	}

	if _, err := svc.Renewals(ctx, now, 90, "subscription"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown expiry type, got %v", err)
	}
}

func TestFinancialSummaryCostAndProcurementMetrics(t *testing.T) {
	svc, db := setupReportTest(t)

	a1 := testutil.SeedTestAsset(t, db, "asset-fin-001", "Laptop A", "Laptop", entity.AssetStatusInUse)
	a2 := testutil.SeedTestAsset(t, db, "asset-fin-002", "Core Switch", "Network", entity.AssetStatusInUse)
	a3 := testutil.SeedTestAsset(t, db, "asset-fin-003", "Desk", "Furniture", entity.AssetStatusInStock)
	testutil.SeedTestAsset(t, db, "asset-fin-004", "Old Printer", "Printer", entity.AssetStatusRetired)

	db.Model(&entity.Asset{}).Where("id = ?", a1.ID).Updates(map[string]interface{}{
		"cost": 1000.0, "segment": "IT",
		"warranty_expiry": time.Now().AddDate(0, 0, 15),
		"renewal_cost":    120.0,
	})
	db.Model(&entity.Asset{}).Where("id = ?", a2.ID).Updates(map[string]interface{}{
		"cost": 3000.0, "segment": "IT",
		"warranty_expiry": time.Now().AddDate(0, 0, 60),
	})
	db.Model(&entity.Asset{}).Where("id = ?", a3.ID).Updates(map[string]interface{}{
		"cost": 500.0, "segment": "Facilities",
	})

	pendingCost := 2500.0
	invoicedCost := 1500.0
	if err := db.Create(&entity.PurchaseOrder{
		ID: "po-fin-001", POCode: "PO-2026-9001", AssetRequestID: "req-fin-001",
		Quantity: 1, TotalCost: &pendingCost, Status: entity.POStatusUploaded, UploadedBy: "proc-001",
	}).Error; err != nil {
		t.Fatalf("seed pending PO: %v", err)
	}
	if err := db.Create(&entity.PurchaseOrder{
		ID: "po-fin-002", POCode: "PO-2026-9002", AssetRequestID: "req-fin-002",
		Quantity: 1, TotalCost: &invoicedCost, Status: entity.POStatusInvoiced, UploadedBy: "proc-001",
	}).Error; err != nil {
		t.Fatalf("seed invoiced PO: %v", err)
	}

	summary, err := svc.FinancialSummary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if summary.AssetsInUse != 2 || summary.AssetsInStock != 1 || summary.AssetsRetired != 1 {
		t.Fatalf("status counts wrong: in use %d, in stock %d, retired %d",
			summary.AssetsInUse, summary.AssetsInStock, summary.AssetsRetired)
	}
	if !almostEqual(summary.AverageAssetCost, 1500) {
		t.Fatalf("expected average cost 1500, got %v", summary.AverageAssetCost)
	}
	if summary.HighestAssetCost == nil || !almostEqual(*summary.HighestAssetCost, 3000) {
		t.Fatalf("expected highest cost 3000, got %v", summary.HighestAssetCost)
	}
	if summary.LowestAssetCost == nil || !almostEqual(*summary.LowestAssetCost, 500) {
		t.Fatalf("expected lowest cost 500, got %v", summary.LowestAssetCost)
	}
	if !almostEqual(summary.ITAssetsValue, 4000) || !almostEqual(summary.NonITAssetsValue, 500) {
		t.Fatalf("segment split wrong: IT %v, non-IT %v", summary.ITAssetsValue, summary.NonITAssetsValue)
	}
	if !almostEqual(summary.TotalProcurementCost, 4000) {
		t.Fatalf("expected procurement total 4000, got %v", summary.TotalProcurementCost)
	}
	if summary.PendingPOCount != 1 {
		t.Fatalf("expected 1 pending PO, got %d", summary.PendingPOCount)
	}
	if summary.RenewalsDue30 != 1 || summary.RenewalsDue90 != 2 {
		t.Fatalf("renewal counts wrong: 30d %d, 90d %d", summary.RenewalsDue30, summary.RenewalsDue90)
	}
	// 120 explicit renewal cost + 10% of the 3000 switch
	if !almostEqual(summary.UpcomingRenewalCost, 420) {
		t.Fatalf("expected upcoming renewal cost 420, got %v", summary.UpcomingRenewalCost)
	}
}

func TestCostByTypeSortedDescendingWithAverages(t *testing.T) {
	svc, db := setupReportTest(t)

	l1 := testutil.SeedTestAsset(t, db, "asset-cbt-001", "Laptop A", "Laptop", entity.AssetStatusInUse)
	l2 := testutil.SeedTestAsset(t, db, "asset-cbt-002", "Laptop B", "Laptop", entity.AssetStatusInStock)
	srv := testutil.SeedTestAsset(t, db, "asset-cbt-003", "DB Server", "Server", entity.AssetStatusActive)

	db.Model(&entity.Asset{}).Where("id = ?", l1.ID).Update("cost", 1000.0)
	db.Model(&entity.Asset{}).Where("id = ?", l2.ID).Update("cost", 2000.0)
	db.Model(&entity.Asset{}).Where("id = ?", srv.ID).Update("cost", 8000.0)

	breakdown, err := svc.CostByType(context.Background())
	if err != nil {
		t.Fatalf("cost by type: %v", err)
	}
	if len(breakdown) != 2 {
		t.Fatalf("expected 2 types, got %d", len(breakdown))
	}
	if breakdown[0].AssetType != "Server" {
		t.Fatalf("expected Server first by total value, got %s", breakdown[0].AssetType)
	}
	if breakdown[1].AssetType != "Laptop" || breakdown[1].Count != 2 {
		t.Fatalf("expected 2 laptops second, got %s x%d", breakdown[1].AssetType, breakdown[1].Count)
	}
	if !almostEqual(breakdown[1].AverageValue, 1500) {
		t.Fatalf("expected laptop average 1500, got %v", breakdown[1].AverageValue)
	}
}

func TestMonthlySpendHistoryBackfillsEmptyMonths(t *testing.T) {
	svc, db := setupReportTest(t)

	cost := 900.0
	if err := db.Create(&entity.PurchaseOrder{
		ID: "po-ms-001", POCode: "PO-2026-9101", AssetRequestID: "req-ms-001",
		Quantity: 1, TotalCost: &cost, Status: entity.POStatusComplete, UploadedBy: "proc-001",
	}).Error; err != nil {
		t.Fatalf("seed PO: %v", err)
	}

	spend, err := svc.MonthlySpendHistory(context.Background(), 3)
	if err != nil {
		t.Fatalf("monthly spend: %v", err)
	}
	if len(spend) != 3 {
		t.Fatalf("expected 3 month rows, got %d", len(spend))
	}
	for i := 1; i < len(spend); i++ {
		if spend[i-1].Month >= spend[i].Month {
			t.Fatalf("months not ascending: %s then %s", spend[i-1].Month, spend[i].Month)
		}
	}

	current := time.Now().UTC().Format("2006-01")
	last := spend[len(spend)-1]
	if last.Month != current {
		t.Fatalf("expected last row %s, got %s", current, last.Month)
	}
	if !almostEqual(last.Total, 900) || last.Count != 1 {
		t.Fatalf("expected current month 900/1, got %v/%d", last.Total, last.Count)
	}
	if spend[0].Total != 0 || spend[0].Count != 0 {
		t.Fatalf("expected zero backfill row, got %v/%d", spend[0].Total, spend[0].Count)
	}
}
