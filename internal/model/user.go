package model

import "time"

// Role identifies what a user is allowed to do and how long they may
// borrow equipment for.
type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
	RoleAdmin     Role = "admin"
)

// MaxLoanDays returns the maximum reservation duration in whole days for
// the role. Admins get operational privileges (checkout, force-return),
// not longer loans.
func (r Role) MaxLoanDays() int {
	switch r {
	case RoleProfessor:
		return 7
	default:
		return 3
	}
}

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAdmin:
		return true
	}
	return false
}

// User represents an account in the user directory. The loan engine only
// ever reads users; account management lives elsewhere.
type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	FirstName    string    `gorm:"size:100;not null" json:"firstName"`
	LastName     string    `gorm:"size:100;not null" json:"lastName"`
	Role         Role      `gorm:"size:20;not null;default:'student'" json:"role"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccess   time.Time `json:"lastAccess"`
}
