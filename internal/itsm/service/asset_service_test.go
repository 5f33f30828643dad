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

func setupAssetTest(t *testing.T) (*AssetService, *WorkflowService, *repository.Repositories, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	assetSvc := NewAssetService(repos.Asset, repos.Request, repos.AuditLog, nil, db)
	workflowSvc := NewWorkflowService(repos.Request, repos.Purchase, repos.Asset, repos.AuditLog, nil, db)

	testutil.SeedTestUser(t, db, "requester-001", "Requester", "requester@test.local", entity.RoleEndUser)
	testutil.SeedTestUser(t, db, "manager-001", "Manager", "manager@test.local", entity.RoleAssetManager)

	return assetSvc, workflowSvc, repos, db
}

func TestCreateAssetWithoutRequest(t *testing.T) {
	svc, _, repos, _ := setupAssetTest(t)

	asset, err := svc.Create(context.Background(), "manager-001", "", &CreateAssetInput{
		Name: "Dell Latitude", Type: "Laptop", SerialNumber: "DL-001",
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	if asset.Status != entity.AssetStatusInStock {
		t.Fatalf("expected In Stock default, got %s", asset.Status)
	}
	if got, _ := repos.AuditLog.CountByEntity(context.Background(), "Asset", asset.ID); got != 1 {
		t.Fatalf("expected 1 audit row, got %d", got)
	}
}

func TestCreateAssetRequiresApprovedRequest(t *testing.T) {
	svc, workflow, _, _ := setupAssetTest(t)
	ctx := context.Background()

	req, err := workflow.CreateRequest(ctx, "requester-001", &CreateRequestInput{
		AssetName: "Monitor", AssetType: "Monitor",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	// Request is still PENDING, asset creation against it must be refused
	_, err = svc.Create(ctx, "manager-001", req.ID, &CreateAssetInput{Name: "Monitor", Type: "Monitor"})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}

	if _, err := workflow.Approve(ctx, req.ID, "manager-001"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	asset, err := svc.Create(ctx, "manager-001", req.ID, &CreateAssetInput{Name: "Monitor", Type: "Monitor"})
	if err != nil {
		t.Fatalf("create asset after approval: %v", err)
	}

	// The approved request must be linked to the new asset
	reloaded, _ := workflow.GetRequest(ctx, req.ID)
	if reloaded.AssetID == nil || *reloaded.AssetID != asset.ID {
		t.Fatal("expected request linked to created asset")
	}
}

func TestSoftDeleteRetiresAsset(t *testing.T) {
	svc, _, repos, db := setupAssetTest(t)
	ctx := context.Background()

	asset := testutil.SeedTestAsset(t, db, "asset-del-001", "Old Printer", "Printer", entity.AssetStatusInStock)

	if err := svc.Delete(ctx, asset.ID, "manager-001", false); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	reloaded, err := repos.Asset.FindByID(ctx, asset.ID)
	if err != nil {
		t.Fatalf("soft-deleted asset must remain readable: %v", err)
	}
	if reloaded.Status != entity.AssetStatusRetired {
		t.Fatalf("expected Retired, got %s", reloaded.Status)
	}
	if reloaded.DisposalStatus != entity.DisposalSoftDeleted {
		t.Fatalf("expected SOFT_DELETED, got %s", reloaded.DisposalStatus)
	}
	if got, _ := repos.AuditLog.CountByEntity(ctx, "Asset", asset.ID); got != 1 {
		t.Fatalf("expected exactly 1 audit row for soft delete, got %d", got)
	}
}

func TestDeleteAssignedAssetIsRefused(t *testing.T) {
	svc, _, _, db := setupAssetTest(t)
	ctx := context.Background()

	asset := testutil.SeedTestAsset(t, db, "asset-del-002", "Assigned Laptop", "Laptop", entity.AssetStatusInUse)
	assignee := "requester-001"
	db.Model(&entity.Asset{}).Where("id = ?", asset.ID).Update("assigned_to", assignee)

	err := svc.Delete(ctx, asset.ID, "manager-001", false)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed for assigned asset, got %v", err)
	}

	// Hard delete must be refused too
	err = svc.Delete(ctx, asset.ID, "manager-001", true)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed on hard delete, got %v", err)
	}
}

func TestHardDeleteRemovesRow(t *testing.T) {
	svc, _, repos, db := setupAssetTest(t)
	ctx := context.Background()

	asset := testutil.SeedTestAsset(t, db, "asset-del-003", "Broken Phone", "Phone", entity.AssetStatusRetired)

	if err := svc.Delete(ctx, asset.ID, "manager-001", true); err != nil {
		t.Fatalf("hard delete: %v", err)
	}

	if _, err := repos.Asset.FindByID(ctx, asset.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after hard delete, got %v", err)
	}

	// Audit trail survives the row
	if got, _ := repos.AuditLog.CountByEntity(ctx, "Asset", asset.ID); got != 1 {
		t.Fatalf("expected 1 audit row after hard delete, got %d", got)
	}
}

func TestAssignAndUnassign(t *testing.T) {
	svc, _, repos, db := setupAssetTest(t)
	ctx := context.Background()

	asset := testutil.SeedTestAsset(t, db, "asset-assign-001", "Spare Laptop", "Laptop", entity.AssetStatusInStock)

	assigned, err := svc.Assign(ctx, asset.ID, "", "manager-001", &AssignAssetInput{
		AssignedTo: "requester-001",
		Override:   true,
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Status != entity.AssetStatusInUse {
		t.Fatalf("expected In Use, got %s", assigned.Status)
	}
	if assigned.AssignedTo == nil || *assigned.AssignedTo != "requester-001" {
		t.Fatal("expected assignee set")
	}
	if assigned.AssignedDate == nil {
		t.Fatal("expected assignment date set")
	}

	unassigned, err := svc.Unassign(ctx, asset.ID, "manager-001")
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if unassigned.Status != entity.AssetStatusInStock {
		t.Fatalf("expected In Stock after unassign, got %s", unassigned.Status)
	}
	if unassigned.AssignedTo != nil {
		t.Fatal("expected assignee cleared")
	}

	if got, _ := repos.AuditLog.CountByEntity(ctx, "Asset", asset.ID); got != 2 {
		t.Fatalf("expected 2 audit rows (assign + unassign), got %d", got)
	}
}

func TestDisposalFlow(t *testing.T) {
	svc, _, _, db := setupAssetTest(t)
	ctx := context.Background()

	asset := testutil.SeedTestAsset(t, db, "asset-disp-001", "Old Server", "Server", entity.AssetStatusRetired)

	// Approving without a pending disposal is an invalid transition
	if _, err := svc.ApproveDisposal(ctx, asset.ID, "manager-001"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	pending, err := svc.RequestDisposal(ctx, asset.ID, "manager-001", "end of life")
	if err != nil {
		t.Fatalf("request disposal: %v", err)
	}
	if pending.DisposalStatus != entity.DisposalPending {
		t.Fatalf("expected PENDING_DISPOSAL, got %s", pending.DisposalStatus)
	}

	disposed, err := svc.ApproveDisposal(ctx, asset.ID, "manager-001")
	if err != nil {
		t.Fatalf("approve disposal: %v", err)
	}
	if disposed.Status != entity.AssetStatusDisposed {
		t.Fatalf("expected Disposed, got %s", disposed.Status)
	}
	if disposed.DisposalStatus != entity.DisposalDisposed {
		t.Fatalf("expected DISPOSED, got %s", disposed.DisposalStatus)
	}
}
