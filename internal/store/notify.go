package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"lab-loan-backend/internal/model"
)

func (s *gormStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *gormStore) ListNotifications(ctx context.Context, userID string, page, size int) ([]model.Notification, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	query := s.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []model.Notification
	err := query.
		Order("sent_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&notifications).Error
	return notifications, total, err
}

func (s *gormStore) MarkNotificationRead(ctx context.Context, id, userID string) (*model.Notification, error) {
	var n model.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	n.Read = true
	if err := s.db.WithContext(ctx).Save(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// HasNotificationToday reports whether a notification of the given type whose
// message starts with pattern was already sent to the user within the
// calendar day containing now (midnight-to-midnight in now's location).
func (s *gormStore) HasNotificationToday(ctx context.Context, userID string, typ model.NotificationType, pattern string, now time.Time) (bool, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var n int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND type = ?", userID, typ).
		Where("message LIKE ?", pattern+"%").
		Where("sent_at >= ? AND sent_at < ?", dayStart, dayEnd).
		Count(&n).Error
	return n > 0, err
}

func (s *gormStore) FindSubscriptionsByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
