package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSONB: not []byte")
	}
	return json.Unmarshal(bytes, j)
}

// AuditLog 审计日志（只追加，禁止更新/删除）
type AuditLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_audit_entity"` // Asset/AssetRequest/PurchaseOrder/PurchaseInvoice/User/Ticket
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_audit_entity"`

	Action     string `json:"action" gorm:"size:50;not null"` // CREATED/STATUS_CHANGED/ASSIGNED/SOFT_DELETED/HARD_DELETED/...
	FromStatus string `json:"from_status" gorm:"size:30"`
	ToStatus   string `json:"to_status" gorm:"size:30"`

	PerformedBy string `json:"performed_by" gorm:"size:32"`
	Details     JSONB  `json:"details" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (AuditLog) TableName() string {
	return "itsm_audit_logs"
}

// Audit actions
const (
	AuditActionCreated       = "CREATED"
	AuditActionUpdated       = "UPDATED"
	AuditActionStatusChanged = "STATUS_CHANGED"
	AuditActionAssigned      = "ASSIGNED"
	AuditActionSoftDeleted   = "SOFT_DELETED"
	AuditActionHardDeleted   = "HARD_DELETED"
	AuditActionApproved      = "APPROVED"
	AuditActionRejected      = "REJECTED"
	AuditActionPOUploaded    = "PO_UPLOADED"
	AuditActionInvoiceUpload = "INVOICE_UPLOADED"
	AuditActionFulfilled     = "FULFILLED"
	AuditActionDisposed      = "DISPOSED"
)
