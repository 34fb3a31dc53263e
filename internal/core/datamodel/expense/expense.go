package expense

import "time"

type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

// Expense is a cost booked against a property, created by a guard or the
// property's owning client.
type Expense struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	PropertyID  int64     `gorm:"column:property_id;index;not null" json:"property_id"`
	CreatedBy   int64     `gorm:"column:created_by;index;not null" json:"created_by"`
	AmountCents int64     `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Description string    `gorm:"column:description" json:"description"`
	Status      Status    `gorm:"column:status;not null;default:pending_approval" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Expense) TableName() string { return "expenses" }

func (e *Expense) OwningPropertyID() (int64, bool) { return e.PropertyID, true }

// AssignedGuardID treats the creator as the owning guard for visibility
// filtering; expenses created by clients are matched via the property instead.
func (e *Expense) AssignedGuardID() (int64, bool) { return e.CreatedBy, true }
