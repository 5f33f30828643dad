package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories ITSM仓库集合
type Repositories struct {
	Asset        *AssetRepository
	Relationship *RelationshipRepository
	Request      *RequestRepository
	Purchase     *PurchaseRepository
	User         *UserRepository
	AuditLog     *AuditLogRepository
	Ticket       *TicketRepository
}

// NewRepositories 创建ITSM仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Asset:        NewAssetRepository(db),
		Relationship: NewRelationshipRepository(db),
		Request:      NewRequestRepository(db),
		Purchase:     NewPurchaseRepository(db),
		User:         NewUserRepository(db),
		AuditLog:     NewAuditLogRepository(db),
		Ticket:       NewTicketRepository(db),
	}
}
