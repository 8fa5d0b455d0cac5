package model

import "time"

// EquipmentStatus is the cached availability summary of an equipment item.
type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "available"
	EquipmentOnLoan      EquipmentStatus = "on-loan"
	EquipmentMaintenance EquipmentStatus = "maintenance"
)

// Valid reports whether the status is one of the known variants.
func (s EquipmentStatus) Valid() bool {
	switch s {
	case EquipmentAvailable, EquipmentOnLoan, EquipmentMaintenance:
		return true
	}
	return false
}

// Equipment represents a catalog item that can be loaned out.
//
// Status must equal on-loan iff at least one loan for the item is reserved
// or active; it is mutated only by the loan engine, except for the
// maintenance override which admins set directly and which blocks new
// reservations.
type Equipment struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	Code            string          `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Name            string          `gorm:"size:200;not null" json:"name"`
	Description     string          `gorm:"size:1000" json:"description"`
	Category        string          `gorm:"size:100;index;not null" json:"category"`
	Status          EquipmentStatus `gorm:"size:20;index;not null;default:'available'" json:"status"`
	Location        string          `gorm:"size:200;not null" json:"location"`
	AcquisitionDate time.Time       `gorm:"not null" json:"acquisitionDate"`
	EstimatedValue  float64         `gorm:"not null;check:estimated_value >= 0" json:"estimatedValue"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
