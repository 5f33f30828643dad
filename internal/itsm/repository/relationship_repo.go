package repository

import (
	"context"
	"errors"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"gorm.io/gorm"
)

// RelationshipRepository CMDB关系仓库
type RelationshipRepository struct {
	db *gorm.DB
}

func NewRelationshipRepository(db *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// FindByID 根据ID查找关系
func (r *RelationshipRepository) FindByID(ctx context.Context, id string) (*entity.AssetRelationship, error) {
	var rel entity.AssetRelationship
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rel, nil
}

// FindBySource 以该资产为源的关系（下游出边）
func (r *RelationshipRepository) FindBySource(ctx context.Context, assetID string) ([]entity.AssetRelationship, error) {
	var rels []entity.AssetRelationship
	err := r.db.WithContext(ctx).
		Preload("TargetAsset").
		Where("source_asset_id = ?", assetID).
		Order("created_at DESC").
		Find(&rels).Error
	return rels, err
}

// FindByTarget 以该资产为目标的关系（上游入边）
func (r *RelationshipRepository) FindByTarget(ctx context.Context, assetID string) ([]entity.AssetRelationship, error) {
	var rels []entity.AssetRelationship
	err := r.db.WithContext(ctx).
		Preload("SourceAsset").
		Where("target_asset_id = ?", assetID).
		Order("created_at DESC").
		Find(&rels).Error
	return rels, err
}

// Exists 判断(source, target, type)边是否已存在
func (r *RelationshipRepository) Exists(ctx context.Context, sourceID, targetID, relType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.AssetRelationship{}).
		Where("source_asset_id = ? AND target_asset_id = ? AND relationship_type = ?", sourceID, targetID, relType).
		Count(&count).Error
	return count > 0, err
}

// Create 创建关系
func (r *RelationshipRepository) Create(ctx context.Context, rel *entity.AssetRelationship) error {
	return r.db.WithContext(ctx).Create(rel).Error
}

// Delete 删除关系（要求该资产是边的端点之一）
func (r *RelationshipRepository) Delete(ctx context.Context, relID, assetID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND (source_asset_id = ? OR target_asset_id = ?)", relID, assetID, assetID).
		Delete(&entity.AssetRelationship{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
