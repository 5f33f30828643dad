package service

import (
	"context"
	"errors"
	"testing"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/itsm/testutil"
	"gorm.io/gorm"
)

func setupWorkflowTest(t *testing.T) (*WorkflowService, *repository.Repositories, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewWorkflowService(repos.Request, repos.Purchase, repos.Asset, repos.AuditLog, nil, db)

	testutil.SeedTestUser(t, db, "requester-001", "Requester", "requester@test.local", entity.RoleEndUser)
	testutil.SeedTestUser(t, db, "approver-001", "Approver", "approver@test.local", entity.RoleITManagement)

	return svc, repos, db
}

func createPendingRequest(t *testing.T, svc *WorkflowService) *entity.AssetRequest {
	t.Helper()
	req, err := svc.CreateRequest(context.Background(), "requester-001", &CreateRequestInput{
		AssetName:     "MacBook Pro 16",
		AssetType:     "Laptop",
		Justification: "New hire onboarding",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status != entity.RequestStatusPending {
		t.Fatalf("expected PENDING, got %s", req.Status)
	}
	return req
}

func auditCount(t *testing.T, repos *repository.Repositories, entityType, entityID string) int64 {
	t.Helper()
	count, err := repos.AuditLog.CountByEntity(context.Background(), entityType, entityID)
	if err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	return count
}

func TestCreateRequestWritesAuditRow(t *testing.T) {
	svc, repos, _ := setupWorkflowTest(t)
	req := createPendingRequest(t, svc)

	if got := auditCount(t, repos, "AssetRequest", req.ID); got != 1 {
		t.Fatalf("expected 1 audit row after create, got %d", got)
	}
	if req.RequestCode == "" {
		t.Fatal("expected generated request code")
	}
}

func TestApproveTransition(t *testing.T) {
	svc, repos, _ := setupWorkflowTest(t)
	req := createPendingRequest(t, svc)

	approved, err := svc.Approve(context.Background(), req.ID, "approver-001")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != entity.RequestStatusITApproved {
		t.Fatalf("expected IT_APPROVED, got %s", approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != "approver-001" {
		t.Fatal("expected approved_by to be set")
	}
	if approved.ApprovedAt == nil {
		t.Fatal("expected approved_at to be set")
	}
	if got := auditCount(t, repos, "AssetRequest", req.ID); got != 2 {
		t.Fatalf("expected 2 audit rows (create + approve), got %d", got)
	}
}

func TestApproveTwiceIsRejectedWithoutSideEffects(t *testing.T) {
	svc, repos, _ := setupWorkflowTest(t)
	req := createPendingRequest(t, svc)

	if _, err := svc.Approve(context.Background(), req.ID, "approver-001"); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	before := auditCount(t, repos, "AssetRequest", req.ID)

	_, err := svc.Approve(context.Background(), req.ID, "approver-001")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Illegal attempt must not change state or append audit rows
	reloaded, err := svc.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if reloaded.Status != entity.RequestStatusITApproved {
		t.Fatalf("status changed on illegal transition: %s", reloaded.Status)
	}
	if got := auditCount(t, repos, "AssetRequest", req.ID); got != before {
		t.Fatalf("audit rows changed on illegal transition: %d -> %d", before, got)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	svc, _, _ := setupWorkflowTest(t)
	req := createPendingRequest(t, svc)

	rejected, err := svc.Reject(context.Background(), req.ID, "approver-001", "no budget")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != entity.RequestStatusRejected {
		t.Fatalf("expected REJECTED, got %s", rejected.Status)
	}
	if rejected.RejectionReason != "no budget" {
		t.Fatalf("expected rejection reason to be persisted, got %q", rejected.RejectionReason)
	}

	if _, err := svc.Approve(context.Background(), req.ID, "approver-001"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on approving rejected request, got %v", err)
	}
}

func TestFullProcurementFlow(t *testing.T) {
	svc, repos, db := setupWorkflowTest(t)
	ctx := context.Background()
	req := createPendingRequest(t, svc)

	if _, err := svc.Approve(ctx, req.ID, "approver-001"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.RequireProcurement(ctx, req.ID, "approver-001"); err != nil {
		t.Fatalf("require procurement: %v", err)
	}

	reloaded, _ := svc.GetRequest(ctx, req.ID)
	if reloaded.ProcurementFinanceStatus != entity.ProcStageRequested {
		t.Fatalf("expected PROCUREMENT_REQUESTED stage, got %q", reloaded.ProcurementFinanceStatus)
	}

	cost := 2499.00
	po, err := svc.UploadPurchaseOrder(ctx, req.ID, "proc-001", &UploadPOInput{
		Vendor:    "Apple Inc",
		Quantity:  1,
		TotalCost: &cost,
	})
	if err != nil {
		t.Fatalf("upload PO: %v", err)
	}
	if po.POCode == "" {
		t.Fatal("expected generated PO code")
	}

	amount := 2499.00
	inv, err := svc.UploadInvoice(ctx, req.ID, "proc-001", &UploadInvoiceInput{Amount: &amount})
	if err != nil {
		t.Fatalf("upload invoice: %v", err)
	}
	if inv.PurchaseOrderID != po.ID {
		t.Fatal("invoice not linked to PO")
	}

	// PO must be marked INVOICED in the same transaction
	poReloaded, _ := repos.Purchase.FindPOByID(ctx, po.ID)
	if poReloaded.Status != entity.POStatusInvoiced {
		t.Fatalf("expected PO status INVOICED, got %s", poReloaded.Status)
	}

	if _, err := svc.CompleteProcurement(ctx, req.ID, "fin-001"); err != nil {
		t.Fatalf("complete procurement: %v", err)
	}

	asset := testutil.SeedTestAsset(t, db, "asset-flow-001", "MacBook Pro 16", "Laptop", entity.AssetStatusInStock)
	fulfilled, err := svc.Fulfill(ctx, req.ID, asset.ID, "approver-001")
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if fulfilled.Status != entity.RequestStatusFulfilled {
		t.Fatalf("expected FULFILLED, got %s", fulfilled.Status)
	}
	if fulfilled.AssetID == nil || *fulfilled.AssetID != asset.ID {
		t.Fatal("expected request linked to asset")
	}

	// Asset must be assigned to the requester
	assetReloaded, _ := repos.Asset.FindByID(ctx, asset.ID)
	if assetReloaded.Status != entity.AssetStatusInUse {
		t.Fatalf("expected asset In Use, got %s", assetReloaded.Status)
	}
	if assetReloaded.AssignedTo == nil || *assetReloaded.AssignedTo != "requester-001" {
		t.Fatal("expected asset assigned to requester")
	}

	// create + approve + procurement + PO + invoice + complete + fulfill
	if got := auditCount(t, repos, "AssetRequest", req.ID); got != 7 {
		t.Fatalf("expected 7 audit rows for the full flow, got %d", got)
	}
}

func TestStockFulfillSkipsProcurement(t *testing.T) {
	svc, _, db := setupWorkflowTest(t)
	ctx := context.Background()
	req := createPendingRequest(t, svc)

	if _, err := svc.Approve(ctx, req.ID, "approver-001"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	asset := testutil.SeedTestAsset(t, db, "asset-stock-001", "ThinkPad X1", "Laptop", entity.AssetStatusInStock)
	fulfilled, err := svc.Fulfill(ctx, req.ID, asset.ID, "approver-001")
	if err != nil {
		t.Fatalf("fulfill from stock: %v", err)
	}
	if fulfilled.Status != entity.RequestStatusFulfilled {
		t.Fatalf("expected FULFILLED, got %s", fulfilled.Status)
	}
	if fulfilled.ProcurementFinanceStatus != entity.ProcStageNone {
		t.Fatalf("expected empty procurement stage, got %q", fulfilled.ProcurementFinanceStatus)
	}
}

func TestUploadPOBeforeProcurementIsRejected(t *testing.T) {
	svc, repos, _ := setupWorkflowTest(t)
	ctx := context.Background()
	req := createPendingRequest(t, svc)

	_, err := svc.UploadPurchaseOrder(ctx, req.ID, "proc-001", &UploadPOInput{Vendor: "Dell"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// No PO row may exist after the rejected upload
	if _, err := repos.Purchase.FindPOByRequestID(ctx, req.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected no PO row, got err=%v", err)
	}
}

func TestCompanyStockRequestCannotEnterProcurement(t *testing.T) {
	svc, _, _ := setupWorkflowTest(t)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, "requester-001", &CreateRequestInput{
		AssetName:     "Spare monitor",
		AssetType:     "Monitor",
		OwnershipType: entity.OwnershipCompanyStock,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := svc.Approve(ctx, req.ID, "approver-001"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err = svc.RequireProcurement(ctx, req.ID, "approver-001")
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}
