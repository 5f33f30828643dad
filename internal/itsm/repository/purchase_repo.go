package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"gorm.io/gorm"
)

// PurchaseRepository 采购单据仓库（PO与发票）
type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// FindAllPOs 查询采购订单列表
func (r *PurchaseRepository) FindAllPOs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	var items []entity.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if requestID := filters["asset_request_id"]; requestID != "" {
		query = query.Where("asset_request_id = ?", requestID)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("po_code ILIKE ? OR vendor ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Invoice").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindPOByID 根据ID查找采购订单
func (r *PurchaseRepository) FindPOByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Invoice").
		Where("id = ?", id).
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &po, nil
}

// FindPOByRequestID 根据申请查找采购订单
func (r *PurchaseRepository) FindPOByRequestID(ctx context.Context, requestID string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Invoice").
		Where("asset_request_id = ?", requestID).
		Order("created_at DESC").
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &po, nil
}

// POSnapshot 报表用全量PO快照
func (r *PurchaseRepository) POSnapshot(ctx context.Context) ([]entity.PurchaseOrder, error) {
	var items []entity.PurchaseOrder
	err := r.db.WithContext(ctx).Find(&items).Error
	return items, err
}

// FindInvoiceByID 根据ID查找发票
func (r *PurchaseRepository) FindInvoiceByID(ctx context.Context, id string) (*entity.PurchaseInvoice, error) {
	var inv entity.PurchaseInvoice
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// GeneratePOCode 生成PO编码 PO-{year}-{4位}
func (r *PurchaseRepository) GeneratePOCode(ctx context.Context) (string, error) {
	return r.generateCode(ctx, "PO", &entity.PurchaseOrder{}, "po_code")
}

// GenerateInvoiceCode 生成发票编码 INV-{year}-{4位}
func (r *PurchaseRepository) GenerateInvoiceCode(ctx context.Context) (string, error) {
	return r.generateCode(ctx, "INV", &entity.PurchaseInvoice{}, "invoice_code")
}

func (r *PurchaseRepository) generateCode(ctx context.Context, prefix string, model interface{}, column string) (string, error) {
	year := time.Now().Format("2006")
	like := fmt.Sprintf("%s-%s-", prefix, year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(model).
		Select(fmt.Sprintf("COALESCE(MAX(%s), '')", column)).
		Where(column+" LIKE ?", like+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, prefix+"-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("%s-%s-%04d", prefix, year, seq), nil
}
