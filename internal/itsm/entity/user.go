package entity

import "time"

// User 用户
type User struct {
	ID           string `json:"id" gorm:"primaryKey;size:32"`
	Username     string `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Email        string `json:"email" gorm:"size:200;uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"size:100;not null"`
	Name         string `json:"name" gorm:"size:100"`

	Role       string `json:"role" gorm:"size:30;default:END_USER;index"` // END_USER/IT_MANAGEMENT/ASSET_MANAGER/ASSET_INVENTORY_MANAGER/PROCUREMENT_FINANCE/FINANCE/ADMIN/SYSTEM_ADMIN
	Department string `json:"department" gorm:"size:100"`
	Domain     string `json:"domain" gorm:"size:50"` // DATA_AI/CLOUD/SECURITY/DEVELOPMENT（END_USER专用）
	Status     string `json:"status" gorm:"size:20;default:PENDING"` // PENDING/ACTIVE/DISABLED

	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "itsm_users"
}

// User roles
const (
	RoleEndUser            = "END_USER"
	RoleITManagement       = "IT_MANAGEMENT"
	RoleAssetManager       = "ASSET_MANAGER"
	RoleInventoryManager   = "ASSET_INVENTORY_MANAGER"
	RoleProcurementFinance = "PROCUREMENT_FINANCE"
	RoleFinance            = "FINANCE"
	RoleAdmin              = "ADMIN"
	RoleSystemAdmin        = "SYSTEM_ADMIN"
)

// User status
const (
	UserStatusPending  = "PENDING"
	UserStatusActive   = "ACTIVE"
	UserStatusDisabled = "DISABLED"
)
