package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService 用户管理服务（管理端）
type UserService struct {
	userRepo  *repository.UserRepository
	auditRepo *repository.AuditLogRepository
	db        *gorm.DB
}

func NewUserService(userRepo *repository.UserRepository, auditRepo *repository.AuditLogRepository, db *gorm.DB) *UserService {
	return &UserService{userRepo: userRepo, auditRepo: auditRepo, db: db}
}

// validRoles 可分配角色集合
var validRoles = map[string]bool{
	entity.RoleEndUser:            true,
	entity.RoleITManagement:       true,
	entity.RoleAssetManager:       true,
	entity.RoleInventoryManager:   true,
	entity.RoleProcurementFinance: true,
	entity.RoleFinance:            true,
	entity.RoleAdmin:              true,
	entity.RoleSystemAdmin:        true,
}

// List 用户列表
func (s *UserService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.User, int64, error) {
	return s.userRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 用户详情
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

// CreateUserInput 管理员创建用户请求
type CreateUserInput struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Domain     string `json:"domain"`
	Status     string `json:"status"`
}

// Create 管理员创建用户，默认ACTIVE
func (s *UserService) Create(ctx context.Context, actorID string, in *CreateUserInput) (*entity.User, error) {
	if _, err := s.userRepo.FindByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrValidation)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.FindByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", ErrValidation)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = entity.RoleEndUser
	}
	if !validRoles[role] {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	status := in.Status
	if status == "" {
		status = entity.UserStatusActive
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		ID:           uuid.New().String()[:32],
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         role,
		Department:   in.Department,
		Domain:       in.Domain,
		Status:       status,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "User",
			EntityID:    user.ID,
			Action:      entity.AuditActionCreated,
			ToStatus:    user.Status,
			PerformedBy: actorID,
			Details:     entity.JSONB{"username": user.Username, "role": user.Role},
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserInput 更新用户请求（空字段不更新）
type UpdateUserInput struct {
	Name       *string `json:"name"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	Domain     *string `json:"domain"`
	Status     *string `json:"status"`
	Password   *string `json:"password"`
}

// Update 更新用户
func (s *UserService) Update(ctx context.Context, id, actorID string, in *UpdateUserInput) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prevStatus := user.Status

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Role != nil {
		if !validRoles[*in.Role] {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *in.Role)
		}
		user.Role = *in.Role
	}
	if in.Department != nil {
		user.Department = *in.Department
	}
	if in.Domain != nil {
		user.Domain = *in.Domain
	}
	if in.Status != nil {
		switch *in.Status {
		case entity.UserStatusPending, entity.UserStatusActive, entity.UserStatusDisabled:
			user.Status = *in.Status
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
		}
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	action := entity.AuditActionUpdated
	if user.Status != prevStatus {
		action = entity.AuditActionStatusChanged
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "User",
			EntityID:    user.ID,
			Action:      action,
			FromStatus:  prevStatus,
			ToStatus:    user.Status,
			PerformedBy: actorID,
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Deactivate 软删除：置为DISABLED，保留记录与历史引用
func (s *UserService) Deactivate(ctx context.Context, id, actorID string) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if user.ID == actorID {
		return fmt.Errorf("%w: cannot deactivate your own account", ErrValidation)
	}
	if user.Status == entity.UserStatusDisabled {
		return nil
	}

	prevStatus := user.Status
	user.Status = entity.UserStatusDisabled
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "User",
			EntityID:    user.ID,
			Action:      entity.AuditActionSoftDeleted,
			FromStatus:  prevStatus,
			ToStatus:    user.Status,
			PerformedBy: actorID,
		})
	})
}

// Activate 激活PENDING或DISABLED用户
func (s *UserService) Activate(ctx context.Context, id, actorID string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Status == entity.UserStatusActive {
		return user, nil
	}

	prevStatus := user.Status
	user.Status = entity.UserStatusActive
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return s.auditRepo.Append(tx, &entity.AuditLog{
			EntityType:  "User",
			EntityID:    user.ID,
			Action:      entity.AuditActionStatusChanged,
			FromStatus:  prevStatus,
			ToStatus:    user.Status,
			PerformedBy: actorID,
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
