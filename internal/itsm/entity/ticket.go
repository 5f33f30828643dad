package entity

import "time"

// Ticket 支持工单
type Ticket struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	TicketCode string `json:"ticket_code" gorm:"size:32;uniqueIndex;not null"`

	Title       string  `json:"title" gorm:"size:200;not null"`
	Description string  `json:"description" gorm:"type:text"`
	Priority    string  `json:"priority" gorm:"size:20;default:NORMAL"` // URGENT/HIGH/NORMAL/LOW
	Status      string  `json:"status" gorm:"size:20;default:OPEN"`     // OPEN/IN_PROGRESS/RESOLVED/CLOSED
	AssetID     *string `json:"asset_id" gorm:"size:32;index"`

	ReportedBy string  `json:"reported_by" gorm:"size:32;not null;index"`
	AssignedTo *string `json:"assigned_to" gorm:"size:32"`

	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Asset *Asset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
}

func (Ticket) TableName() string {
	return "itsm_tickets"
}

// Ticket status
const (
	TicketStatusOpen       = "OPEN"
	TicketStatusInProgress = "IN_PROGRESS"
	TicketStatusResolved   = "RESOLVED"
	TicketStatusClosed     = "CLOSED"
)
