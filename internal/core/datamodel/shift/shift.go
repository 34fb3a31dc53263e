package shift

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Shift is one guard's tour of duty on a property.
type Shift struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	PropertyID int64     `gorm:"column:property_id;index;not null" json:"property_id"`
	GuardID    int64     `gorm:"column:guard_id;index;not null" json:"guard_id"`
	StartsAt   time.Time `gorm:"column:starts_at;not null" json:"starts_at"`
	EndsAt     time.Time `gorm:"column:ends_at" json:"ends_at"`
	Status     Status    `gorm:"column:status;not null;default:scheduled" json:"status"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Shift) TableName() string { return "shifts" }

func (s *Shift) OwningPropertyID() (int64, bool) { return s.PropertyID, true }

func (s *Shift) AssignedGuardID() (int64, bool) { return s.GuardID, true }
