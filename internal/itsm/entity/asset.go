package entity

import "time"

// Asset 资产
type Asset struct {
	ID           string  `json:"id" gorm:"primaryKey;size:32"`
	Name         string  `json:"name" gorm:"size:200;not null"`
	Type         string  `json:"type" gorm:"size:50;not null;index"`
	SerialNumber string  `json:"serial_number" gorm:"size:100;uniqueIndex"`
	Status       string  `json:"status" gorm:"size:20;default:In Stock;index"` // In Stock/In Use/Active/Maintenance/Repair/Retired/Disposed/Lost/Scrap
	Segment      string  `json:"segment" gorm:"size:50"`                       // IT/Facilities/...
	Location     string  `json:"location" gorm:"size:100"`
	AssignedTo   *string `json:"assigned_to" gorm:"size:32;index"` // weak User reference
	AssignedDate *time.Time `json:"assigned_date"`

	// Financials
	Cost        *float64 `json:"cost" gorm:"type:decimal(12,2)"`
	RenewalCost *float64 `json:"renewal_cost" gorm:"type:decimal(12,2)"`

	// Lifecycle dates
	PurchaseDate   *time.Time `json:"purchase_date"`
	WarrantyExpiry *time.Time `json:"warranty_expiry"`
	ContractExpiry *time.Time `json:"contract_expiry"`
	LicenseExpiry  *time.Time `json:"license_expiry"`

	DisposalStatus string `json:"disposal_status" gorm:"size:20;default:NONE"` // NONE/SOFT_DELETED/PENDING_DISPOSAL/DISPOSED

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`
}

func (Asset) TableName() string {
	return "itsm_assets"
}

// Asset status
const (
	AssetStatusInStock     = "In Stock"
	AssetStatusInUse       = "In Use"
	AssetStatusActive      = "Active" // treated as synonym of In Use in aggregations
	AssetStatusMaintenance = "Maintenance"
	AssetStatusRepair      = "Repair"
	AssetStatusRetired     = "Retired"
	AssetStatusDisposed    = "Disposed"
	AssetStatusLost        = "Lost"
	AssetStatusScrap       = "Scrap"
)

// Disposal status
const (
	DisposalNone        = "NONE"
	DisposalSoftDeleted = "SOFT_DELETED"
	DisposalPending     = "PENDING_DISPOSAL"
	DisposalDisposed    = "DISPOSED"
)
