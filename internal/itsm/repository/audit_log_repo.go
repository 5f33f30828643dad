package repository

import (
	"context"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓库（只追加）
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append 追加一条审计记录。必须与业务变更在同一事务中调用，
// 所以这里接受事务句柄而不是仓库自己的连接。
func (r *AuditLogRepository) Append(tx *gorm.DB, log *entity.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()[:32]
	}
	return tx.Create(log).Error
}

// Create 在仓库自身连接上追加（非事务场景）
func (r *AuditLogRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	return r.Append(r.db.WithContext(ctx), log)
}

// FindByEntity 查询某实体的审计记录
func (r *AuditLogRepository) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.AuditLog, int64, error) {
	var items []entity.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)

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

// FindRecent 最近的审计记录
func (r *AuditLogRepository) FindRecent(ctx context.Context, limit int) ([]entity.AuditLog, error) {
	var items []entity.AuditLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// CountByEntity 某实体的审计记录数
func (r *AuditLogRepository) CountByEntity(ctx context.Context, entityType, entityID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Count(&count).Error
	return count, err
}
