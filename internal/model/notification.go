package model

import "time"

// NotificationType classifies why a notification was sent.
type NotificationType string

const (
	NotifyReservation NotificationType = "reservation-created"
	NotifyReminder    NotificationType = "reminder"
	NotifyOverdue     NotificationType = "overdue"
)

// Notification is the in-app record of a message sent to a user. Push
// delivery is best-effort on top of this record, never instead of it.
type Notification struct {
	ID      string           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  string           `gorm:"type:uuid;index;not null" json:"userId"`
	Type    NotificationType `gorm:"size:30;not null" json:"type"`
	Message string           `gorm:"size:500;not null" json:"message"`
	Read    bool             `gorm:"not null;default:false" json:"read"`
	SentAt  time.Time        `gorm:"index;not null" json:"sentAt"`
}
