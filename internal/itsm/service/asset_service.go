package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// AssetService 资产目录服务
type AssetService struct {
	assetRepo   *repository.AssetRepository
	requestRepo *repository.RequestRepository
	auditRepo   *repository.AuditLogRepository
	rdb         *redis.Client
	db          *gorm.DB
}

func NewAssetService(
	assetRepo *repository.AssetRepository,
	requestRepo *repository.RequestRepository,
	auditRepo *repository.AuditLogRepository,
	rdb *redis.Client,
	db *gorm.DB,
) *AssetService {
	return &AssetService{
		assetRepo:   assetRepo,
		requestRepo: requestRepo,
		auditRepo:   auditRepo,
		rdb:         rdb,
		db:          db,
	}
}

// invalidateReportCaches 资产写入后使报表缓存失效
func (s *AssetService) invalidateReportCaches(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	_ = s.rdb.Del(ctx, reportSummaryCacheKey, reportByTypeCacheKey).Err()
}

// List 资产列表
func (s *AssetService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Asset, int64, error) {
	return s.assetRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 资产详情
func (s *AssetService) Get(ctx context.Context, id string) (*entity.Asset, error) {
	return s.assetRepo.FindByID(ctx, id)
}

// ListByAssignee 我的资产
func (s *AssetService) ListByAssignee(ctx context.Context, userID string) ([]entity.Asset, error) {
	return s.assetRepo.FindByAssignee(ctx, userID)
}

// CreateAssetInput 创建资产请求
type CreateAssetInput struct {
	Name           string     `json:"name" binding:"required"`
	Type           string     `json:"type" binding:"required"`
	SerialNumber   string     `json:"serial_number"`
	Status         string     `json:"status"`
	Segment        string     `json:"segment"`
	Location       string     `json:"location"`
	Cost           *float64   `json:"cost"`
	RenewalCost    *float64   `json:"renewal_cost"`
	PurchaseDate   *time.Time `json:"purchase_date"`
	WarrantyExpiry *time.Time `json:"warranty_expiry"`
	ContractExpiry *time.Time `json:"contract_expiry"`
	LicenseExpiry  *time.Time `json:"license_expiry"`
	Notes          string     `json:"notes"`
}

// requireITApproved 校验申请存在且已获IT审批。requestID为空时跳过。
func (s *AssetService) requireITApproved(ctx context.Context, requestID string) (*entity.AssetRequest, error) {
	if requestID == "" {
		return nil, nil
	}
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != entity.RequestStatusITApproved {
		return nil, fmt.Errorf("%w: request %s is %s, not IT_APPROVED", ErrPreconditionFailed, req.RequestCode, req.Status)
	}
	return req, nil
}

// Create 创建资产。携带requestID时要求对应申请处于IT_APPROVED。
func (s *AssetService) Create(ctx context.Context, actorID, requestID string, in *CreateAssetInput) (*entity.Asset, error) {
	req, err := s.requireITApproved(ctx, requestID)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = entity.AssetStatusInStock
	}

	asset := &entity.Asset{
		ID:             uuid.New().String()[:32],
		Name:           in.Name,
		Type:           in.Type,
		SerialNumber:   in.SerialNumber,
		Status:         status,
		Segment:        in.Segment,
		Location:       in.Location,
		Cost:           in.Cost,
		RenewalCost:    in.RenewalCost,
		PurchaseDate:   in.PurchaseDate,
		WarrantyExpiry: in.WarrantyExpiry,
		ContractExpiry: in.ContractExpiry,
		LicenseExpiry:  in.LicenseExpiry,
		DisposalStatus: entity.DisposalNone,
		CreatedBy:      actorID,
		Notes:          in.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(asset).Error; err != nil {
			return err
		}
		if req != nil {
			if err := tx.Model(&entity.AssetRequest{}).Where("id = ?", req.ID).
				Update("asset_id", asset.ID).Error; err != nil {
				return err
			}
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "Asset",
			EntityID:    asset.ID,
			Action:      entity.AuditActionCreated,
			ToStatus:    asset.Status,
			PerformedBy: actorID,
			Details:     entity.JSONB{"name": asset.Name, "serial_number": asset.SerialNumber},
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCaches(ctx)
	return asset, nil
}

// UpdateAssetInput 更新资产请求（空字段不更新）
type UpdateAssetInput struct {
	Name           *string    `json:"name"`
	Type           *string    `json:"type"`
	SerialNumber   *string    `json:"serial_number"`
	Status         *string    `json:"status"`
	Segment        *string    `json:"segment"`
	Location       *string    `json:"location"`
	Cost           *float64   `json:"cost"`
	RenewalCost    *float64   `json:"renewal_cost"`
	PurchaseDate   *time.Time `json:"purchase_date"`
	WarrantyExpiry *time.Time `json:"warranty_expiry"`
	ContractExpiry *time.Time `json:"contract_expiry"`
	LicenseExpiry  *time.Time `json:"license_expiry"`
	Notes          *string    `json:"notes"`
}

// Update 更新资产
func (s *AssetService) Update(ctx context.Context, id, actorID string, in *UpdateAssetInput) (*entity.Asset, error) {
	asset, err := s.assetRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prevStatus := asset.Status

	if in.Name != nil {
		asset.Name = *in.Name
	}
	if in.Type != nil {
		asset.Type = *in.Type
	}
	if in.SerialNumber != nil {
		asset.SerialNumber = *in.SerialNumber
	}
	if in.Status != nil {
		asset.Status = *in.Status
	}
	if in.Segment != nil {
		asset.Segment = *in.Segment
	}
	if in.Location != nil {
		asset.Location = *in.Location
	}
	if in.Cost != nil {
		asset.Cost = in.Cost
	}
	if in.RenewalCost != nil {
		asset.RenewalCost = in.RenewalCost
	}
	if in.PurchaseDate != nil {
		asset.PurchaseDate = in.PurchaseDate
	}
	if in.WarrantyExpiry != nil {
		asset.WarrantyExpiry = in.WarrantyExpiry
	}
	if in.ContractExpiry != nil {
		asset.ContractExpiry = in.ContractExpiry
	}
	if in.LicenseExpiry != nil {
		asset.LicenseExpiry = in.LicenseExpiry
	}
	if in.Notes != nil {
		asset.Notes = *in.Notes
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(asset).Error; err != nil {
			return err
		}
		action := entity.AuditActionUpdated
		if in.Status != nil && *in.Status != prevStatus {
			action = entity.AuditActionStatusChanged
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "Asset",
			EntityID:    asset.ID,
			Action:      action,
			FromStatus:  prevStatus,
			ToStatus:    asset.Status,
			PerformedBy: actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCaches(ctx)
	return asset, nil
}

// AssignAssetInput 分配资产请求
type AssignAssetInput struct {
	AssignedTo     string     `json:"assigned_to" binding:"required"`
	Location       string     `json:"location"`
	AssignmentDate *time.Time `json:"assignment_date"`
	// Override 管理员绕过审批直接分配
	Override bool `json:"override"`
}

// Assign 分配资产给用户。需已审批的申请，或显式override。
// 未传requestID时按asset_id反查申请。
func (s *AssetService) Assign(ctx context.Context, assetID, requestID, actorID string, in *AssignAssetInput) (*entity.Asset, error) {
	if !in.Override {
		if requestID != "" {
			if _, err := s.requireITApproved(ctx, requestID); err != nil {
				return nil, err
			}
		} else {
			req, err := s.requestRepo.FindByAssetID(ctx, assetID)
			if err != nil {
				return nil, err
			}
			if req != nil && req.Status != entity.RequestStatusITApproved {
				return nil, fmt.Errorf("%w: request %s is %s, not IT_APPROVED", ErrPreconditionFailed, req.RequestCode, req.Status)
			}
		}
	}

	asset, err := s.assetRepo.FindByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	prevStatus := asset.Status
	prevAssignee := ""
	if asset.AssignedTo != nil {
		prevAssignee = *asset.AssignedTo
	}

	location := in.Location
	if location == "" {
		location = "Office"
	}
	assignDate := in.AssignmentDate
	if assignDate == nil {
		now := time.Now()
		assignDate = &now
	}

	asset.AssignedTo = &in.AssignedTo
	asset.AssignedDate = assignDate
	asset.Location = location
	asset.Status = entity.AssetStatusInUse

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(asset).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "Asset",
			EntityID:    asset.ID,
			Action:      entity.AuditActionAssigned,
			FromStatus:  prevStatus,
			ToStatus:    asset.Status,
			PerformedBy: actorID,
			Details: entity.JSONB{
				"assigned_to":       in.AssignedTo,
				"previous_assignee": prevAssignee,
				"location":          location,
				"override":          in.Override,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCaches(ctx)
	return asset, nil
}

// Unassign 回收资产（解除分配，回到库存）
func (s *AssetService) Unassign(ctx context.Context, assetID, actorID string) (*entity.Asset, error) {
	asset, err := s.assetRepo.FindByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	prevStatus := asset.Status
	prevAssignee := ""
	if asset.AssignedTo != nil {
		prevAssignee = *asset.AssignedTo
	}

	asset.AssignedTo = nil
	asset.AssignedDate = nil
	asset.Status = entity.AssetStatusInStock

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(asset).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "Asset",
			EntityID:    asset.ID,
			Action:      entity.AuditActionStatusChanged,
			FromStatus:  prevStatus,
			ToStatus:    asset.Status,
			PerformedBy: actorID,
			Details:     entity.JSONB{"previous_assignee": prevAssignee, "action": "unassign"},
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCaches(ctx)
	return asset, nil
}

// Delete 删除资产。默认软删除（Retired + SOFT_DELETED），hard=true时物理删除。
// 在用且已分配的资产拒绝删除。
func (s *AssetService) Delete(ctx context.Context, id, actorID string, hard bool) error {
	asset, err := s.assetRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if asset.AssignedTo != nil && (asset.Status == entity.AssetStatusInUse || asset.Status == entity.AssetStatusActive) {
		return fmt.Errorf("%w: asset is currently assigned, unassign it first", ErrPreconditionFailed)
	}

	if hard {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("id = ?", id).Delete(&entity.Asset{}).Error; err != nil {
				return err
			}
			return s.auditRepo.Append(tx, &entity.AuditLog{
				EntityType:  "Asset",
				EntityID:    asset.ID,
				Action:      entity.AuditActionHardDeleted,
				FromStatus:  asset.Status,
				PerformedBy: actorID,
				Details:     entity.JSONB{"asset_name": asset.Name, "serial_number": asset.SerialNumber},
			})
		})
	} else {
		prevStatus := asset.Status
		asset.Status = entity.AssetStatusRetired
		asset.DisposalStatus = entity.DisposalSoftDeleted

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(asset).Error; err != nil {
				return err
			}
			return s.auditRepo.Append(tx, &entity.AuditLog{
				EntityType:  "Asset",
				EntityID:    asset.ID,
				Action:      entity.AuditActionSoftDeleted,
				FromStatus:  prevStatus,
				ToStatus:    asset.Status,
				PerformedBy: actorID,
				Details:     entity.JSONB{"asset_name": asset.Name, "previous_status": prevStatus},
			})
		})
	}
	if err != nil {
		return err
	}

	s.invalidateReportCaches(ctx)
	return nil
}

// RequestDisposal 发起资产处置
func (s *AssetService) RequestDisposal(ctx context.Context, assetID, actorID, reason string) (*entity.Asset, error) {
	asset, err := s.assetRepo.FindByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	if asset.AssignedTo != nil && (asset.Status == entity.AssetStatusInUse || asset.Status == entity.AssetStatusActive) {
		return nil, fmt.Errorf("%w: asset is currently assigned", ErrPreconditionFailed)
	}
	if asset.DisposalStatus == entity.DisposalDisposed {
		return nil, fmt.Errorf("%w: asset already disposed", ErrPreconditionFailed)
	}

	prevDisposal := asset.DisposalStatus
	asset.DisposalStatus = entity.DisposalPending

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(asset).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "Asset",
			EntityID:    asset.ID,
			Action:      entity.AuditActionStatusChanged,
			FromStatus:  prevDisposal,
			ToStatus:    asset.DisposalStatus,
			PerformedBy: actorID,
			Details:     entity.JSONB{"reason": reason, "action": "disposal_requested"},
		})
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// ApproveDisposal 审批处置：PENDING_DISPOSAL -> DISPOSED，资产状态置为Disposed
func (s *AssetService) ApproveDisposal(ctx context.Context, assetID, actorID string) (*entity.Asset, error) {
	asset, err := s.assetRepo.FindByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	if asset.DisposalStatus != entity.DisposalPending {
		return nil, fmt.Errorf("%w: asset disposal is %s, not %s", ErrInvalidTransition, asset.DisposalStatus, entity.DisposalPending)
	}

	prevStatus := asset.Status
	asset.Status = entity.AssetStatusDisposed
	asset.DisposalStatus = entity.DisposalDisposed

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(asset).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "Asset",
			EntityID:    asset.ID,
			Action:      entity.AuditActionDisposed,
			FromStatus:  prevStatus,
			ToStatus:    asset.Status,
			PerformedBy: actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCaches(ctx)
	return asset, nil
}

// Events 资产审计历史
func (s *AssetService) Events(ctx context.Context, assetID string, page, pageSize int) ([]entity.AuditLog, int64, error) {
	if _, err := s.assetRepo.FindByID(ctx, assetID); err != nil {
		return nil, 0, err
	}
	return s.auditRepo.FindByEntity(ctx, "Asset", assetID, page, pageSize)
}
