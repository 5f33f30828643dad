package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/atlasops/atlas-itsm/internal/itsm/testutil"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func setupProcurementTest(t *testing.T) (*gin.Engine, *service.WorkflowService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	testutil.SeedTestUser(t, db, "end-user-101", "End User", "user101@test.local", entity.RoleEndUser)
	testutil.SeedTestUser(t, db, "it-mgr-101", "IT Manager", "itmgr101@test.local", entity.RoleITManagement)
	testutil.SeedTestUser(t, db, "proc-101", "Procurement", "proc101@test.local", entity.RoleProcurementFinance)

	repos := repository.NewRepositories(db)
	workflowSvc := service.NewWorkflowService(repos.Request, repos.Purchase, repos.Asset, repos.AuditLog, nil, db)
	procHandler := NewProcurementHandler(workflowSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/requests/:id/purchase-orders", procHandler.UploadPO)
	api.POST("/requests/:id/invoices", procHandler.UploadInvoice)

	return router, workflowSvc, db
}

// doUpload posts a multipart form, optionally attaching a small PDF-like file.
func doUpload(t *testing.T, router *gin.Engine, path, token string, fields map[string]string, withFile bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			t.Fatalf("write form field: %v", err)
		}
	}
	if withFile {
		fw, err := form.CreateFormFile("file", "document.pdf")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte("%PDF-1.4 test"))
	}
	form.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createProcurementRequest(t *testing.T, svc *service.WorkflowService) *entity.AssetRequest {
	t.Helper()
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, "end-user-101", &service.CreateRequestInput{
		AssetName: "Plotter", AssetType: "Printer",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := svc.Approve(ctx, req.ID, "it-mgr-101"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.RequireProcurement(ctx, req.ID, "it-mgr-101"); err != nil {
		t.Fatalf("require procurement: %v", err)
	}
	return req
}

func TestUploadPOWrongStageRejectedBeforeStorage(t *testing.T) {
	router, svc, db := setupProcurementTest(t)
	procToken := testutil.GenerateTestToken("proc-101", "Procurement", "proc101@test.local", entity.RoleProcurementFinance)

	// Still PENDING, so the stage check must reject before any storage write
	req, err := svc.CreateRequest(context.Background(), "end-user-101", &service.CreateRequestInput{
		AssetName: "Plotter", AssetType: "Printer",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	w := doUpload(t, router, "/api/v1/requests/"+req.ID+"/purchase-orders", procToken,
		map[string]string{"vendor": "Acme"}, true)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for PENDING request, got %d: %s", w.Code, w.Body.String())
	}

	var poCount int64
	db.Model(&entity.PurchaseOrder{}).Where("asset_request_id = ?", req.ID).Count(&poCount)
	if poCount != 0 {
		t.Fatalf("rejected upload must not create a PO, found %d", poCount)
	}
}

func TestUploadPOWithFileButNoStorageConfigured(t *testing.T) {
	router, svc, db := setupProcurementTest(t)
	procToken := testutil.GenerateTestToken("proc-101", "Procurement", "proc101@test.local", entity.RoleProcurementFinance)

	req := createProcurementRequest(t, svc)

	// Stage is valid, but the store is not configured: the upload fails
	// without advancing the workflow
	w := doUpload(t, router, "/api/v1/requests/"+req.ID+"/purchase-orders", procToken,
		map[string]string{"vendor": "Acme"}, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without object storage, got %d: %s", w.Code, w.Body.String())
	}

	reloaded, err := svc.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if reloaded.ProcurementFinanceStatus != entity.ProcStageRequested {
		t.Fatalf("stage must stay PROCUREMENT_REQUESTED, got %s", reloaded.ProcurementFinanceStatus)
	}

	var poCount int64
	db.Model(&entity.PurchaseOrder{}).Where("asset_request_id = ?", req.ID).Count(&poCount)
	if poCount != 0 {
		t.Fatalf("failed upload must not create a PO, found %d", poCount)
	}
}

func TestUploadPOMetadataOnlySucceeds(t *testing.T) {
	router, svc, _ := setupProcurementTest(t)
	procToken := testutil.GenerateTestToken("proc-101", "Procurement", "proc101@test.local", entity.RoleProcurementFinance)

	req := createProcurementRequest(t, svc)

	w := doUpload(t, router, "/api/v1/requests/"+req.ID+"/purchase-orders", procToken,
		map[string]string{"vendor": "Acme", "quantity": "2", "total_cost": "1800.50"}, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	reloaded, err := svc.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if reloaded.ProcurementFinanceStatus != entity.ProcStagePOUploaded {
		t.Fatalf("expected stage PO_UPLOADED, got %s", reloaded.ProcurementFinanceStatus)
	}
}

func TestUploadInvoiceBeforePORejectedBeforeStorage(t *testing.T) {
	router, svc, db := setupProcurementTest(t)
	procToken := testutil.GenerateTestToken("proc-101", "Procurement", "proc101@test.local", entity.RoleProcurementFinance)

	req := createProcurementRequest(t, svc)

	// No PO uploaded yet: stage check rejects the invoice up front
	w := doUpload(t, router, "/api/v1/requests/"+req.ID+"/invoices", procToken,
		map[string]string{"amount": "1800.50"}, true)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before PO upload, got %d: %s", w.Code, w.Body.String())
	}

	var invCount int64
	db.Model(&entity.PurchaseInvoice{}).Count(&invCount)
	if invCount != 0 {
		t.Fatalf("rejected invoice upload must not create an invoice, found %d", invCount)
	}
}
