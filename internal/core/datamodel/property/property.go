package property

import "time"

// Property is a client-owned site that guards are assigned to. OwnerID is the
// principal id of the owning client.
type Property struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Address   string    `gorm:"column:address" json:"address"`
	OwnerID   int64     `gorm:"column:owner_id;index;not null" json:"owner_id"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Property) TableName() string { return "properties" }

// OwningPropertyID satisfies the collection-filter contract: a property
// belongs to itself.
func (p *Property) OwningPropertyID() (int64, bool) { return p.ID, true }

// AssignedGuardID reports no guard: properties are not guard-owned items.
func (p *Property) AssignedGuardID() (int64, bool) { return 0, false }
