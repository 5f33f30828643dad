package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"gorm.io/gorm"
)

// RequestRepository 资产申请仓库
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// FindAll 查询申请列表
func (r *RequestRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.AssetRequest, int64, error) {
	var items []entity.AssetRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AssetRequest{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if stage := filters["procurement_finance_status"]; stage != "" {
		query = query.Where("procurement_finance_status = ?", stage)
	}
	if requester := filters["requester_id"]; requester != "" {
		query = query.Where("requester_id = ?", requester)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("request_code ILIKE ? OR asset_name ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Requester").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找申请
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.AssetRequest, error) {
	var req entity.AssetRequest
	err := r.db.WithContext(ctx).
		Preload("Requester").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindByAssetID 根据已关联资产查找申请
func (r *RequestRepository) FindByAssetID(ctx context.Context, assetID string) (*entity.AssetRequest, error) {
	var req entity.AssetRequest
	err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// Create 创建申请
func (r *RequestRepository) Create(ctx context.Context, req *entity.AssetRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Update 更新申请
func (r *RequestRepository) Update(ctx context.Context, req *entity.AssetRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}

// GenerateCode 生成申请编码 REQ-{year}-{4位}
func (r *RequestRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("REQ-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.AssetRequest{}).
		Select("COALESCE(MAX(request_code), '')").
		Where("request_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "REQ-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("REQ-%s-%04d", year, seq), nil
}
