package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketService 支持工单服务
type TicketService struct {
	ticketRepo *repository.TicketRepository
	assetRepo  *repository.AssetRepository
	auditRepo  *repository.AuditLogRepository
	db         *gorm.DB
}

func NewTicketService(ticketRepo *repository.TicketRepository, assetRepo *repository.AssetRepository, auditRepo *repository.AuditLogRepository, db *gorm.DB) *TicketService {
	return &TicketService{ticketRepo: ticketRepo, assetRepo: assetRepo, auditRepo: auditRepo, db: db}
}

// 工单状态机：线性推进，CLOSED终态
var ticketTransitions = map[string][]string{
	entity.TicketStatusOpen:       {entity.TicketStatusInProgress, entity.TicketStatusClosed},
	entity.TicketStatusInProgress: {entity.TicketStatusResolved, entity.TicketStatusClosed},
	entity.TicketStatusResolved:   {entity.TicketStatusClosed, entity.TicketStatusInProgress},
	entity.TicketStatusClosed:     {},
}

// List 工单列表
func (s *TicketService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Ticket, int64, error) {
	return s.ticketRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 工单详情
func (s *TicketService) Get(ctx context.Context, id string) (*entity.Ticket, error) {
	return s.ticketRepo.FindByID(ctx, id)
}

// CreateTicketInput 创建工单请求
type CreateTicketInput struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	AssetID     *string `json:"asset_id"`
}

// Create 创建工单。引用的资产必须存在。
func (s *TicketService) Create(ctx context.Context, reporterID string, in *CreateTicketInput) (*entity.Ticket, error) {
	if in.AssetID != nil && *in.AssetID != "" {
		if _, err := s.assetRepo.FindByID(ctx, *in.AssetID); err != nil {
			return nil, err
		}
	}

	code, err := s.ticketRepo.GenerateCode(ctx)
	if err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = "NORMAL"
	}

	ticket := &entity.Ticket{
		ID:          uuid.New().String()[:32],
		TicketCode:  code,
		Title:       in.Title,
		Description: in.Description,
		Priority:    priority,
		Status:      entity.TicketStatusOpen,
		AssetID:     in.AssetID,
		ReportedBy:  reporterID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ticket).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "Ticket",
			EntityID:    ticket.ID,
			Action:      entity.AuditActionCreated,
			ToStatus:    ticket.Status,
			PerformedBy: reporterID,
			Details:     entity.JSONB{"ticket_code": code, "title": in.Title},
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// UpdateStatusInput 工单流转请求
type UpdateTicketStatusInput struct {
	Status     string  `json:"status" binding:"required"`
	AssignedTo *string `json:"assigned_to"`
}

// UpdateStatus 工单状态流转
func (s *TicketService) UpdateStatus(ctx context.Context, id, actorID string, in *UpdateTicketStatusInput) (*entity.Ticket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, next := range ticketTransitions[ticket.Status] {
		if next == in.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: ticket %s -> %s", ErrInvalidTransition, ticket.Status, in.Status)
	}

	prevStatus := ticket.Status
	ticket.Status = in.Status
	if in.AssignedTo != nil {
		ticket.AssignedTo = in.AssignedTo
	}
	if in.Status == entity.TicketStatusResolved {
		now := time.Now()
		ticket.ResolvedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(ticket).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "Ticket",
			EntityID:    ticket.ID,
			Action:      entity.AuditActionStatusChanged,
			FromStatus:  prevStatus,
			ToStatus:    ticket.Status,
			PerformedBy: actorID,
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}
