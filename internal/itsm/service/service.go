package service

import (
	"errors"

	"github.com/atlasops/atlas-itsm/internal/config"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/storage"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 业务错误。handler层统一映射为业务码，调用方不重试。
var (
	ErrInvalidTransition  = errors.New("invalid workflow transition")
	ErrPreconditionFailed = errors.New("workflow precondition not met")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
)

// Services ITSM服务集合
type Services struct {
	Workflow     *WorkflowService
	Asset        *AssetService
	Relationship *RelationshipService
	Report       *ReportService
	Auth         *AuthService
	User         *UserService
	Ticket       *TicketService
	Reference    *ReferenceService
}

// NewServices 创建ITSM服务集合
func NewServices(repos *repository.Repositories, db *gorm.DB, rdb *redis.Client, store *storage.ObjectStore, cfg *config.Config) *Services {
	workflow := NewWorkflowService(repos.Request, repos.Purchase, repos.Asset, repos.AuditLog, store, db)
	asset := NewAssetService(repos.Asset, repos.Request, repos.AuditLog, rdb, db)
	return &Services{
		Workflow:     workflow,
		Asset:        asset,
		Relationship: NewRelationshipService(repos.Relationship, repos.Asset),
		Report:       NewReportService(repos.Asset, repos.Purchase, rdb),
		Auth:         NewAuthService(repos.User, rdb, cfg),
		User:         NewUserService(repos.User, repos.AuditLog, db),
		Ticket:       NewTicketService(repos.Ticket, repos.Asset, repos.AuditLog, db),
		Reference:    NewReferenceService(cfg, repos.User, repos.Asset),
	}
}
