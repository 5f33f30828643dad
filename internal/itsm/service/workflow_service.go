package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// requestState 申请的复合状态 (status, procurement_finance_status)
type requestState struct {
	Status string
	Stage  string
}

// legalTransitions 合法状态迁移表。不在表中的迁移一律拒绝。
var legalTransitions = map[requestState][]requestState{
	{entity.RequestStatusPending, entity.ProcStageNone}: {
		{entity.RequestStatusITApproved, entity.ProcStageNone},
		{entity.RequestStatusRejected, entity.ProcStageNone},
	},
	{entity.RequestStatusITApproved, entity.ProcStageNone}: {
		{entity.RequestStatusProcurementRequired, entity.ProcStageRequested},
		{entity.RequestStatusFulfilled, entity.ProcStageNone}, // 直接从库存满足
	},
	{entity.RequestStatusProcurementRequired, entity.ProcStageRequested}: {
		{entity.RequestStatusProcurementRequired, entity.ProcStagePOUploaded},
	},
	{entity.RequestStatusProcurementRequired, entity.ProcStagePOUploaded}: {
		{entity.RequestStatusProcurementRequired, entity.ProcStageInvoiceUploaded},
	},
	{entity.RequestStatusProcurementRequired, entity.ProcStageInvoiceUploaded}: {
		{entity.RequestStatusProcurementRequired, entity.ProcStageComplete},
	},
	{entity.RequestStatusProcurementRequired, entity.ProcStageComplete}: {
		{entity.RequestStatusFulfilled, entity.ProcStageComplete},
	},
	// REJECTED与FULFILLED为终态
}

func canTransition(from, to requestState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WorkflowService 资产申请审批/采购/财务工作流引擎
type WorkflowService struct {
	requestRepo  *repository.RequestRepository
	purchaseRepo *repository.PurchaseRepository
	assetRepo    *repository.AssetRepository
	auditRepo    *repository.AuditLogRepository
	store        *storage.ObjectStore
	db           *gorm.DB
}

func NewWorkflowService(
	requestRepo *repository.RequestRepository,
	purchaseRepo *repository.PurchaseRepository,
	assetRepo *repository.AssetRepository,
	auditRepo *repository.AuditLogRepository,
	store *storage.ObjectStore,
	db *gorm.DB,
) *WorkflowService {
	return &WorkflowService{
		requestRepo:  requestRepo,
		purchaseRepo: purchaseRepo,
		assetRepo:    assetRepo,
		auditRepo:    auditRepo,
		store:        store,
		db:           db,
	}
}

// CreateRequestInput 创建申请请求
type CreateRequestInput struct {
	AssetName     string `json:"asset_name" binding:"required"`
	AssetType     string `json:"asset_type" binding:"required"`
	OwnershipType string `json:"ownership_type"`
	Justification string `json:"business_justification"`
}

// CreateRequest 创建资产申请（初始状态PENDING）
func (s *WorkflowService) CreateRequest(ctx context.Context, requesterID string, in *CreateRequestInput) (*entity.AssetRequest, error) {
	code, err := s.requestRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate request code: %w", err)
	}

	ownership := in.OwnershipType
	if ownership == "" {
		ownership = entity.OwnershipCompanyOwned
	}

	req := &entity.AssetRequest{
		ID:            uuid.New().String()[:32],
		RequestCode:   code,
		RequesterID:   requesterID,
		AssetName:     in.AssetName,
		AssetType:     in.AssetType,
		OwnershipType: ownership,
		Justification: in.Justification,
		Status:        entity.RequestStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "AssetRequest",
			EntityID:    req.ID,
			Action:      entity.AuditActionCreated,
			ToStatus:    req.Status,
			PerformedBy: requesterID,
			Details:     entity.JSONB{"request_code": req.RequestCode, "asset_name": req.AssetName},
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequest 申请详情
func (s *WorkflowService) GetRequest(ctx context.Context, id string) (*entity.AssetRequest, error) {
	return s.requestRepo.FindByID(ctx, id)
}

// ListRequests 申请列表
func (s *WorkflowService) ListRequests(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.AssetRequest, int64, error) {
	return s.requestRepo.FindAll(ctx, page, pageSize, filters)
}

// transition 执行一次状态迁移：校验迁移表，状态变更与审计记录在同一事务提交。
// 非法迁移返回ErrInvalidTransition且不产生任何写入。
func (s *WorkflowService) transition(ctx context.Context, req *entity.AssetRequest, to requestState, action, actorID string, details entity.JSONB, inTx func(tx *gorm.DB) error) error {
	from := requestState{Status: req.Status, Stage: req.ProcurementFinanceStatus}
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s/%s -> %s/%s", ErrInvalidTransition, from.Status, from.Stage, to.Status, to.Stage)
	}

	if details == nil {
		details = entity.JSONB{}
	}
	details["from_status"] = from.Status
	details["from_stage"] = from.Stage
	details["to_status"] = to.Status
	details["to_stage"] = to.Stage

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req.Status = to.Status
		req.ProcurementFinanceStatus = to.Stage
		if err := tx.Save(req).Error; err != nil {
			return err
		}
		if inTx != nil {
			if err := inTx(tx); err != nil {
				return err
			}
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "AssetRequest",
			EntityID:    req.ID,
			Action:      action,
			FromStatus:  from.Status,
			ToStatus:    to.Status,
			PerformedBy: actorID,
			Details:     details,
		})
	})
}

// Approve IT审批通过：PENDING -> IT_APPROVED
func (s *WorkflowService) Approve(ctx context.Context, requestID, actorID string) (*entity.AssetRequest, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	req.ApprovedBy = &actorID
	req.ApprovedAt = &now

	to := requestState{entity.RequestStatusITApproved, entity.ProcStageNone}
	if err := s.transition(ctx, req, to, entity.AuditActionApproved, actorID, nil, nil); err != nil {
		return nil, err
	}
	return req, nil
}

// Reject 审批驳回：PENDING -> REJECTED（终态）
func (s *WorkflowService) Reject(ctx context.Context, requestID, actorID, reason string) (*entity.AssetRequest, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	req.RejectionReason = reason

	to := requestState{entity.RequestStatusRejected, entity.ProcStageNone}
	details := entity.JSONB{"reason": reason}
	if err := s.transition(ctx, req, to, entity.AuditActionRejected, actorID, details, nil); err != nil {
		return nil, err
	}
	return req, nil
}

// RequireProcurement 进入采购流程：IT_APPROVED -> PROCUREMENT_REQUIRED/PROCUREMENT_REQUESTED。
// 库存直接可满足(COMPANY_STOCK)的申请不应走采购。
func (s *WorkflowService) RequireProcurement(ctx context.Context, requestID, actorID string) (*entity.AssetRequest, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.OwnershipType == entity.OwnershipCompanyStock {
		return nil, fmt.Errorf("%w: company-stock request is fulfilled from stock, not procurement", ErrPreconditionFailed)
	}

	to := requestState{entity.RequestStatusProcurementRequired, entity.ProcStageRequested}
	if err := s.transition(ctx, req, to, entity.AuditActionStatusChanged, actorID, nil, nil); err != nil {
		return nil, err
	}
	return req, nil
}

// UploadPOInput PO上传请求
type UploadPOInput struct {
	Vendor        string       `json:"vendor"`
	Quantity      int          `json:"quantity"`
	UnitCost      *float64     `json:"unit_cost"`
	TotalCost     *float64     `json:"total_cost"`
	ExtractedData entity.JSONB `json:"extracted_data"`
	DocumentPath  string       `json:"-"`
}

// UploadPurchaseOrder 采购上传PO单据：创建PO行并推进子状态到PO_UPLOADED，同一事务。
// 申请不在PROCUREMENT_REQUESTED时拒绝，既不创建PO也不写审计。
func (s *WorkflowService) UploadPurchaseOrder(ctx context.Context, requestID, actorID string, in *UploadPOInput) (*entity.PurchaseOrder, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	code, err := s.purchaseRepo.GeneratePOCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate PO code: %w", err)
	}

	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	po := &entity.PurchaseOrder{
		ID:             uuid.New().String()[:32],
		POCode:         code,
		AssetRequestID: req.ID,
		Vendor:         in.Vendor,
		Quantity:       quantity,
		UnitCost:       in.UnitCost,
		TotalCost:      in.TotalCost,
		DocumentPath:   in.DocumentPath,
		ExtractedData:  in.ExtractedData,
		Status:         entity.POStatusUploaded,
		UploadedBy:     actorID,
	}

	to := requestState{entity.RequestStatusProcurementRequired, entity.ProcStagePOUploaded}
	details := entity.JSONB{"po_code": po.POCode, "vendor": po.Vendor, "document_path": po.DocumentPath}
	err = s.transition(ctx, req, to, entity.AuditActionPOUploaded, actorID, details, func(tx *gorm.DB) error {
		return tx.Create(po).Error
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// UploadInvoiceInput 发票上传请求
type UploadInvoiceInput struct {
	Amount       *float64   `json:"amount"`
	TaxAmount    *float64   `json:"tax_amount"`
	PurchaseDate *time.Time `json:"purchase_date"`
	DocumentPath string     `json:"-"`
}

// UploadInvoice 上传采购发票：要求父PO存在且子状态为PO_UPLOADED。
// 创建发票行、PO置为INVOICED、子状态推进到INVOICE_UPLOADED，同一事务。
func (s *WorkflowService) UploadInvoice(ctx context.Context, requestID, actorID string, in *UploadInvoiceInput) (*entity.PurchaseInvoice, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	po, err := s.purchaseRepo.FindPOByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: no purchase order on request %s", ErrPreconditionFailed, req.RequestCode)
		}
		return nil, err
	}

	code, err := s.purchaseRepo.GenerateInvoiceCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate invoice code: %w", err)
	}

	inv := &entity.PurchaseInvoice{
		ID:              uuid.New().String()[:32],
		InvoiceCode:     code,
		PurchaseOrderID: po.ID,
		Amount:          in.Amount,
		TaxAmount:       in.TaxAmount,
		PurchaseDate:    in.PurchaseDate,
		DocumentPath:    in.DocumentPath,
		UploadedBy:      actorID,
	}

	to := requestState{entity.RequestStatusProcurementRequired, entity.ProcStageInvoiceUploaded}
	details := entity.JSONB{"invoice_code": inv.InvoiceCode, "po_code": po.POCode, "document_path": inv.DocumentPath}
	err = s.transition(ctx, req, to, entity.AuditActionInvoiceUpload, actorID, details, func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		return tx.Model(&entity.PurchaseOrder{}).Where("id = ?", po.ID).
			Update("status", entity.POStatusInvoiced).Error
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// EnsurePOUploadAllowed 校验申请当前状态允许上传PO。
// 在写入对象存储前调用，避免非法阶段的上传在存储桶里留下孤儿对象。
func (s *WorkflowService) EnsurePOUploadAllowed(ctx context.Context, requestID string) error {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	from := requestState{req.Status, req.ProcurementFinanceStatus}
	to := requestState{entity.RequestStatusProcurementRequired, entity.ProcStagePOUploaded}
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s/%s -> %s/%s", ErrInvalidTransition, from.Status, from.Stage, to.Status, to.Stage)
	}
	return nil
}

// EnsureInvoiceUploadAllowed 校验申请当前状态允许上传发票且父PO已存在
func (s *WorkflowService) EnsureInvoiceUploadAllowed(ctx context.Context, requestID string) error {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	from := requestState{req.Status, req.ProcurementFinanceStatus}
	to := requestState{entity.RequestStatusProcurementRequired, entity.ProcStageInvoiceUploaded}
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s/%s -> %s/%s", ErrInvalidTransition, from.Status, from.Stage, to.Status, to.Stage)
	}
	if _, err := s.purchaseRepo.FindPOByRequestID(ctx, requestID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: no purchase order on request %s", ErrPreconditionFailed, req.RequestCode)
		}
		return err
	}
	return nil
}

// StoreDocument 上传单据到对象存储，返回对象路径。
// kind区分单据目录（purchase-orders/invoices）。
func (s *WorkflowService) StoreDocument(ctx context.Context, kind, fileName string, reader io.Reader, size int64, contentType string) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("%w: object storage is not configured", ErrPreconditionFailed)
	}
	return s.store.Put(ctx, kind, fileName, reader, size, contentType)
}

// RemoveDocument 删除已上传的单据对象。工作流拒绝上传时的清理，
// 存储未配置或路径为空时什么都不做。
func (s *WorkflowService) RemoveDocument(ctx context.Context, documentPath string) error {
	if s.store == nil || documentPath == "" {
		return nil
	}
	return s.store.Remove(ctx, documentPath)
}

// DocumentURL 生成单据的限时下载链接
func (s *WorkflowService) DocumentURL(ctx context.Context, documentPath string) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("%w: object storage is not configured", ErrPreconditionFailed)
	}
	if documentPath == "" {
		return "", fmt.Errorf("%w: no document attached", ErrValidation)
	}
	return s.store.PresignedURL(ctx, documentPath, 15*time.Minute)
}

// ListPurchaseOrders 采购订单列表
func (s *WorkflowService) ListPurchaseOrders(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	return s.purchaseRepo.FindAllPOs(ctx, page, pageSize, filters)
}

// GetPurchaseOrder 采购订单详情
func (s *WorkflowService) GetPurchaseOrder(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return s.purchaseRepo.FindPOByID(ctx, id)
}

// CompleteProcurement 财务确认采购完成：INVOICE_UPLOADED -> PROCUREMENT_COMPLETE
func (s *WorkflowService) CompleteProcurement(ctx context.Context, requestID, actorID string) (*entity.AssetRequest, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	to := requestState{entity.RequestStatusProcurementRequired, entity.ProcStageComplete}
	err = s.transition(ctx, req, to, entity.AuditActionStatusChanged, actorID, nil, func(tx *gorm.DB) error {
		return tx.Model(&entity.PurchaseOrder{}).Where("asset_request_id = ?", req.ID).
			Update("status", entity.POStatusComplete).Error
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Fulfill 满足申请并关联资产（终态）。
// 库存满足走 IT_APPROVED -> FULFILLED；采购满足走 PROCUREMENT_COMPLETE -> FULFILLED。
// 资产会被分配给申请人。
func (s *WorkflowService) Fulfill(ctx context.Context, requestID, assetID, actorID string) (*entity.AssetRequest, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	asset, err := s.assetRepo.FindByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	req.AssetID = &asset.ID

	to := requestState{entity.RequestStatusFulfilled, req.ProcurementFinanceStatus}
	if req.Status == entity.RequestStatusITApproved {
		to.Stage = entity.ProcStageNone
	}

	now := time.Now()
	details := entity.JSONB{"asset_id": asset.ID, "asset_name": asset.Name}
	err = s.transition(ctx, req, to, entity.AuditActionFulfilled, actorID, details, func(tx *gorm.DB) error {
		return tx.Model(&entity.Asset{}).Where("id = ?", asset.ID).
			Updates(map[string]interface{}{
				"status":        entity.AssetStatusInUse,
				"assigned_to":   req.RequesterID,
				"assigned_date": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}
