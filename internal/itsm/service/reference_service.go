package service

import (
	"context"

	"github.com/atlasops/atlas-itsm/internal/config"
	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
)

// ReferenceService 参考数据服务。
// 枚举类数据来自配置（运行期只读），部门与地点取自库中实际出现的值。
type ReferenceService struct {
	cfg       *config.Config
	userRepo  *repository.UserRepository
	assetRepo *repository.AssetRepository
}

func NewReferenceService(cfg *config.Config, userRepo *repository.UserRepository, assetRepo *repository.AssetRepository) *ReferenceService {
	return &ReferenceService{cfg: cfg, userRepo: userRepo, assetRepo: assetRepo}
}

// AssetTypes 资产类型
func (s *ReferenceService) AssetTypes() []string {
	return append([]string(nil), s.cfg.Reference.AssetTypes...)
}

// Segments 业务段
func (s *ReferenceService) Segments() []string {
	return append([]string(nil), s.cfg.Reference.Segments...)
}

// TicketPriorities 工单优先级
func (s *ReferenceService) TicketPriorities() []string {
	return append([]string(nil), s.cfg.Reference.TicketPriority...)
}

// RelationshipTypes 资产关系类型
func (s *ReferenceService) RelationshipTypes() []string {
	return append([]string(nil), entity.RelationshipTypes...)
}

// Roles 可分配角色
func (s *ReferenceService) Roles() []string {
	return []string{
		entity.RoleEndUser,
		entity.RoleITManagement,
		entity.RoleAssetManager,
		entity.RoleInventoryManager,
		entity.RoleProcurementFinance,
		entity.RoleFinance,
		entity.RoleAdmin,
		entity.RoleSystemAdmin,
	}
}

// AssetStatuses 资产状态
func (s *ReferenceService) AssetStatuses() []string {
	return []string{
		entity.AssetStatusInStock,
		entity.AssetStatusInUse,
		entity.AssetStatusActive,
		entity.AssetStatusMaintenance,
		entity.AssetStatusRepair,
		entity.AssetStatusRetired,
		entity.AssetStatusDisposed,
		entity.AssetStatusLost,
		entity.AssetStatusScrap,
	}
}

// Departments 用户表中实际出现的部门
func (s *ReferenceService) Departments(ctx context.Context) ([]string, error) {
	return s.userRepo.DistinctDepartments(ctx)
}

// Locations 资产表中实际出现的地点
func (s *ReferenceService) Locations(ctx context.Context) ([]string, error) {
	return s.assetRepo.DistinctLocations(ctx)
}
