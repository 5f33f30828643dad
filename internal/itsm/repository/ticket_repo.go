package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"gorm.io/gorm"
)

// TicketRepository 工单仓库
type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// FindAll 查询工单列表
func (r *TicketRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Ticket, int64, error) {
	var items []entity.Ticket
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Ticket{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := filters["priority"]; priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if reporter := filters["reported_by"]; reporter != "" {
		query = query.Where("reported_by = ?", reporter)
	}
	if assetID := filters["asset_id"]; assetID != "" {
		query = query.Where("asset_id = ?", assetID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Asset").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找工单
func (r *TicketRepository) FindByID(ctx context.Context, id string) (*entity.Ticket, error) {
	var ticket entity.Ticket
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Where("id = ?", id).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// Create 创建工单
func (r *TicketRepository) Create(ctx context.Context, ticket *entity.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

// Update 更新工单
func (r *TicketRepository) Update(ctx context.Context, ticket *entity.Ticket) error {
	return r.db.WithContext(ctx).Save(ticket).Error
}

// GenerateCode 生成工单编码 TCK-{year}-{4位}
func (r *TicketRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("TCK-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Ticket{}).
		Select("COALESCE(MAX(ticket_code), '')").
		Where("ticket_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "TCK-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("TCK-%s-%04d", year, seq), nil
}
