package entity

import "time"

// AssetRequest 资产申请单
type AssetRequest struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	RequestCode string `json:"request_code" gorm:"size:32;uniqueIndex;not null"`
	RequesterID string `json:"requester_id" gorm:"size:32;not null;index"`

	AssetName     string `json:"asset_name" gorm:"size:200;not null"`
	AssetType     string `json:"asset_type" gorm:"size:50;not null"`
	OwnershipType string `json:"ownership_type" gorm:"size:30;default:COMPANY_OWNED"` // COMPANY_OWNED/COMPANY_STOCK/BYOD
	Justification string `json:"business_justification" gorm:"type:text"`

	Status                   string `json:"status" gorm:"size:30;default:PENDING;index"`        // PENDING/IT_APPROVED/REJECTED/PROCUREMENT_REQUIRED/FULFILLED
	ProcurementFinanceStatus string `json:"procurement_finance_status" gorm:"size:30;default:"` // PROCUREMENT_REQUESTED/PO_UPLOADED/INVOICE_UPLOADED/PROCUREMENT_COMPLETE

	// Set when the request is fulfilled from stock or procurement
	AssetID *string `json:"asset_id" gorm:"size:32;index"`

	ApprovedBy      *string    `json:"approved_by" gorm:"size:32"`
	ApprovedAt      *time.Time `json:"approved_at"`
	RejectionReason string     `json:"rejection_reason" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Requester *User  `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
	Asset     *Asset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
}

func (AssetRequest) TableName() string {
	return "itsm_asset_requests"
}

// Request status（主状态）
const (
	RequestStatusPending             = "PENDING"
	RequestStatusITApproved          = "IT_APPROVED"
	RequestStatusRejected            = "REJECTED"
	RequestStatusProcurementRequired = "PROCUREMENT_REQUIRED"
	RequestStatusFulfilled           = "FULFILLED"
)

// Procurement/finance sub-status（采购子状态，仅在PROCUREMENT_REQUIRED下有值）
const (
	ProcStageNone            = ""
	ProcStageRequested       = "PROCUREMENT_REQUESTED"
	ProcStagePOUploaded      = "PO_UPLOADED"
	ProcStageInvoiceUploaded = "INVOICE_UPLOADED"
	ProcStageComplete        = "PROCUREMENT_COMPLETE"
)

// Ownership types
const (
	OwnershipCompanyOwned = "COMPANY_OWNED"
	OwnershipCompanyStock = "COMPANY_STOCK"
	OwnershipBYOD         = "BYOD"
)
