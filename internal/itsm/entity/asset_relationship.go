package entity

import "time"

// AssetRelationship CMDB资产关系（有向边）
type AssetRelationship struct {
	ID               string  `json:"id" gorm:"primaryKey;size:32"`
	SourceAssetID    string  `json:"source_asset_id" gorm:"size:32;not null;index:idx_rel_source;uniqueIndex:idx_rel_edge"`
	TargetAssetID    string  `json:"target_asset_id" gorm:"size:32;not null;index:idx_rel_target;uniqueIndex:idx_rel_edge"`
	RelationshipType string  `json:"relationship_type" gorm:"size:20;not null;uniqueIndex:idx_rel_edge"` // parent_of/child_of/depends_on/depended_by/connected_to/runs_on/backs_up_to
	Criticality      float64 `json:"criticality" gorm:"type:decimal(2,1);default:3"`                     // 1-5
	Description      string  `json:"description" gorm:"size:500"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`

	SourceAsset *Asset `json:"source_asset,omitempty" gorm:"foreignKey:SourceAssetID"`
	TargetAsset *Asset `json:"target_asset,omitempty" gorm:"foreignKey:TargetAssetID"`
}

func (AssetRelationship) TableName() string {
	return "itsm_asset_relationships"
}

// Relationship types
const (
	RelParentOf    = "parent_of"
	RelChildOf     = "child_of"
	RelDependsOn   = "depends_on"
	RelDependedBy  = "depended_by"
	RelConnectedTo = "connected_to"
	RelRunsOn      = "runs_on"
	RelBacksUpTo   = "backs_up_to"
)

// RelationshipTypes 合法关系类型集合
var RelationshipTypes = []string{
	RelParentOf, RelChildOf, RelDependsOn, RelDependedBy,
	RelConnectedTo, RelRunsOn, RelBacksUpTo,
}

// IsValidRelationshipType 校验关系类型
func IsValidRelationshipType(t string) bool {
	for _, v := range RelationshipTypes {
		if v == t {
			return true
		}
	}
	return false
}
