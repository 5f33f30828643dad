package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/google/uuid"
)

// RelationshipService CMDB资产关系服务
type RelationshipService struct {
	relRepo   *repository.RelationshipRepository
	assetRepo *repository.AssetRepository
}

func NewRelationshipService(relRepo *repository.RelationshipRepository, assetRepo *repository.AssetRepository) *RelationshipService {
	return &RelationshipService{relRepo: relRepo, assetRepo: assetRepo}
}

// CreateRelationshipInput 创建关系请求
type CreateRelationshipInput struct {
	TargetAssetID    string   `json:"target_asset_id" binding:"required"`
	RelationshipType string   `json:"relationship_type" binding:"required"`
	Criticality      *float64 `json:"criticality"`
	Description      string   `json:"description"`
}

// Create 为资产创建一条出边关系。
// 校验顺序固定：类型合法、不可自环、目标存在、去重。
func (s *RelationshipService) Create(ctx context.Context, sourceID, actorID string, in *CreateRelationshipInput) (*entity.AssetRelationship, error) {
	if !entity.IsValidRelationshipType(in.RelationshipType) {
		return nil, fmt.Errorf("%w: unknown relationship type %q", ErrValidation, in.RelationshipType)
	}
	if sourceID == in.TargetAssetID {
		return nil, fmt.Errorf("%w: an asset cannot relate to itself", ErrValidation)
	}

	if _, err := s.assetRepo.FindByID(ctx, sourceID); err != nil {
		return nil, err
	}
	if _, err := s.assetRepo.FindByID(ctx, in.TargetAssetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: target asset %s does not exist", ErrValidation, in.TargetAssetID)
		}
		return nil, err
	}

	exists, err := s.relRepo.Exists(ctx, sourceID, in.TargetAssetID, in.RelationshipType)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: relationship already exists", ErrValidation)
	}

	criticality := 3.0
	if in.Criticality != nil {
		if *in.Criticality < 1 || *in.Criticality > 5 {
			return nil, fmt.Errorf("%w: criticality must be between 1 and 5", ErrValidation)
		}
		criticality = *in.Criticality
	}

	rel := &entity.AssetRelationship{
		ID:               uuid.New().String()[:32],
		SourceAssetID:    sourceID,
		TargetAssetID:    in.TargetAssetID,
		RelationshipType: in.RelationshipType,
		Criticality:      criticality,
		Description:      in.Description,
		CreatedBy:        actorID,
	}
	if err := s.relRepo.Create(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// AssetRelationships 某资产的邻接视图
type AssetRelationships struct {
	Downstream []entity.AssetRelationship `json:"downstream"`
	Upstream   []entity.AssetRelationship `json:"upstream"`
}

// ListForAsset 查询资产的上下游关系
func (s *RelationshipService) ListForAsset(ctx context.Context, assetID string) (*AssetRelationships, error) {
	if _, err := s.assetRepo.FindByID(ctx, assetID); err != nil {
		return nil, err
	}

	downstream, err := s.relRepo.FindBySource(ctx, assetID)
	if err != nil {
		return nil, err
	}
	upstream, err := s.relRepo.FindByTarget(ctx, assetID)
	if err != nil {
		return nil, err
	}

	if downstream == nil {
		downstream = []entity.AssetRelationship{}
	}
	if upstream == nil {
		upstream = []entity.AssetRelationship{}
	}
	return &AssetRelationships{Downstream: downstream, Upstream: upstream}, nil
}

// Delete 删除关系。关系必须以该资产为端点。
func (s *RelationshipService) Delete(ctx context.Context, assetID, relID string) error {
	if _, err := s.assetRepo.FindByID(ctx, assetID); err != nil {
		return err
	}
	return s.relRepo.Delete(ctx, relID, assetID)
}
