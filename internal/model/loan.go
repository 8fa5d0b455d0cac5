package model

import "time"

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanReserved LoanStatus = "reserved"
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
	LoanOverdue  LoanStatus = "overdue"
)

// OpenLoanStatuses are the states in which a loan occupies its equipment's
// date range. Overlap checks and equipment status derivation consider
// exactly these.
var OpenLoanStatuses = []LoanStatus{LoanReserved, LoanActive}

// Terminal reports whether no further transition may leave the state.
func (s LoanStatus) Terminal() bool { return s == LoanReturned }

// Loan binds one user to one equipment item for a bounded date range.
//
// CheckoutAt is set only on the reserved→active transition, ReturnedAt only
// on the transition into returned. EndDate is strictly after StartDate.
type Loan struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             string     `gorm:"type:uuid;index;not null" json:"userId"`
	EquipmentID        string     `gorm:"type:uuid;index:idx_loans_equipment_range;not null" json:"equipmentId"`
	ReservedAt         time.Time  `gorm:"not null" json:"reservedAt"`
	StartDate          time.Time  `gorm:"index:idx_loans_equipment_range;not null" json:"startDate"`
	EndDate            time.Time  `gorm:"index:idx_loans_equipment_range;not null" json:"endDate"`
	CheckoutAt         *time.Time `json:"checkoutAt,omitempty"`
	ReturnedAt         *time.Time `json:"returnedAt,omitempty"`
	Status             LoanStatus `gorm:"size:20;index;not null;default:'reserved'" json:"status"`
	ReservationRemarks string     `gorm:"size:500" json:"reservationRemarks,omitempty"`
	ReturnRemarks      string     `gorm:"size:500" json:"returnRemarks,omitempty"`

	// Associations
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Equipment Equipment `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
}
