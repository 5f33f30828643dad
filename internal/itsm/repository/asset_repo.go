package repository

import (
	"context"
	"errors"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"gorm.io/gorm"
)

// AssetRepository 资产仓库
type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindAll 查询资产列表
func (r *AssetRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Asset, int64, error) {
	var items []entity.Asset
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Asset{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if assetType := filters["type"]; assetType != "" {
		query = query.Where("type = ?", assetType)
	}
	if segment := filters["segment"]; segment != "" {
		query = query.Where("segment = ?", segment)
	}
	if location := filters["location"]; location != "" {
		query = query.Where("location = ?", location)
	}
	if assignedTo := filters["assigned_to"]; assignedTo != "" {
		query = query.Where("assigned_to = ?", assignedTo)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR serial_number ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找资产
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*entity.Asset, error) {
	var asset entity.Asset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// FindByAssignee 查询分配给某用户的资产
func (r *AssetRepository) FindByAssignee(ctx context.Context, userID string) ([]entity.Asset, error) {
	var items []entity.Asset
	err := r.db.WithContext(ctx).
		Where("assigned_to = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindAllSnapshot 报表用全量快照（无分页，无同步保证）
func (r *AssetRepository) FindAllSnapshot(ctx context.Context) ([]entity.Asset, error) {
	var items []entity.Asset
	err := r.db.WithContext(ctx).Find(&items).Error
	return items, err
}

// FindExpiring 查询在窗口期内到期的资产
func (r *AssetRepository) FindExpiring(ctx context.Context, from, to time.Time) ([]entity.Asset, error) {
	var items []entity.Asset
	err := r.db.WithContext(ctx).
		Where("(warranty_expiry BETWEEN ? AND ?) OR (contract_expiry BETWEEN ? AND ?) OR (license_expiry BETWEEN ? AND ?)",
			from, to, from, to, from, to).
		Find(&items).Error
	return items, err
}

// DistinctLocations 资产表中实际出现的地点
func (r *AssetRepository) DistinctLocations(ctx context.Context) ([]string, error) {
	var locations []string
	err := r.db.WithContext(ctx).
		Model(&entity.Asset{}).
		Distinct("location").
		Where("location <> ''").
		Order("location").
		Pluck("location", &locations).Error
	return locations, err
}

// CountByLocation 某地点的资产数
func (r *AssetRepository) CountByLocation(ctx context.Context, location string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Asset{}).
		Where("location = ?", location).
		Count(&count).Error
	return count, err
}

// Create 创建资产
func (r *AssetRepository) Create(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// Update 更新资产
func (r *AssetRepository) Update(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Save(asset).Error
}

// HardDelete 物理删除资产
func (r *AssetRepository) HardDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Asset{}).Error
}
