package entity

import "time"

// PurchaseOrder 采购订单（由采购上传PO单据创建）
type PurchaseOrder struct {
	ID             string `json:"id" gorm:"primaryKey;size:32"`
	POCode         string `json:"po_code" gorm:"size:32;uniqueIndex;not null"`
	AssetRequestID string `json:"asset_request_id" gorm:"size:32;not null;index"`

	Vendor    string   `json:"vendor" gorm:"size:200"`
	Quantity  int      `json:"quantity" gorm:"default:1"`
	UnitCost  *float64 `json:"unit_cost" gorm:"type:decimal(12,2)"`
	TotalCost *float64 `json:"total_cost" gorm:"type:decimal(12,2)"`

	// Uploaded document, referenced by object-storage path
	DocumentPath  string `json:"document_path" gorm:"size:500"`
	ExtractedData JSONB  `json:"extracted_data" gorm:"type:jsonb"`

	Status string `json:"status" gorm:"size:20;default:UPLOADED"` // UPLOADED/PENDING/INVOICED/COMPLETE/CANCELLED

	UploadedBy string    `json:"uploaded_by" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	AssetRequest *AssetRequest    `json:"asset_request,omitempty" gorm:"foreignKey:AssetRequestID"`
	Invoice      *PurchaseInvoice `json:"invoice,omitempty" gorm:"foreignKey:PurchaseOrderID"`
}

func (PurchaseOrder) TableName() string {
	return "itsm_purchase_orders"
}

// PO status
const (
	POStatusUploaded  = "UPLOADED"
	POStatusPending   = "PENDING"
	POStatusInvoiced  = "INVOICED"
	POStatusComplete  = "COMPLETE"
	POStatusCancelled = "CANCELLED"
)

// PurchaseInvoice 采购发票（上传后只读）
type PurchaseInvoice struct {
	ID              string `json:"id" gorm:"primaryKey;size:32"`
	InvoiceCode     string `json:"invoice_code" gorm:"size:32;uniqueIndex;not null"`
	PurchaseOrderID string `json:"purchase_order_id" gorm:"size:32;not null;uniqueIndex"`

	Amount       *float64   `json:"amount" gorm:"type:decimal(12,2)"`
	TaxAmount    *float64   `json:"tax_amount" gorm:"type:decimal(12,2)"`
	PurchaseDate *time.Time `json:"purchase_date"`

	DocumentPath string `json:"document_path" gorm:"size:500"`

	UploadedBy string    `json:"uploaded_by" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PurchaseInvoice) TableName() string {
	return "itsm_purchase_invoices"
}
