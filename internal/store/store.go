package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lab-loan-backend/internal/model"
)

// ErrOverlap is returned by CreateLoan when the transactional re-check finds
// a reserved or active loan whose date range touches the requested one.
var ErrOverlap = errors.New("overlapping loan exists")

// LoanQuery filters and paginates loan listings.
type LoanQuery struct {
	Status string
	UserID string
	Page   int
	Size   int
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Loans
	CreateLoan(ctx context.Context, loan *model.Loan) error
	FindLoanByID(ctx context.Context, id string) (*model.Loan, error)
	FindOverlappingLoans(ctx context.Context, equipmentID string, start, end time.Time) ([]model.Loan, error)
	FindLoansDueBefore(ctx context.Context, t time.Time) ([]model.Loan, error)
	FindUnreturnedLoans(ctx context.Context) ([]model.Loan, error)
	UpdateLoan(ctx context.Context, loan *model.Loan) error
	CompleteReturn(ctx context.Context, loan *model.Loan) error
	ListLoans(ctx context.Context, q LoanQuery) ([]model.Loan, int64, error)
	CountOpenLoans(ctx context.Context, equipmentID string) (int64, error)

	// Equipment
	FindEquipmentByID(ctx context.Context, id string) (*model.Equipment, error)
	FindEquipmentByCode(ctx context.Context, code string) (*model.Equipment, error)
	ListEquipment(ctx context.Context, category, status string) ([]model.Equipment, error)
	CreateEquipment(ctx context.Context, eq *model.Equipment) error
	UpdateEquipment(ctx context.Context, eq *model.Equipment) error
	SetEquipmentStatus(ctx context.Context, id string, status model.EquipmentStatus) error

	// Users
	FindUserByID(ctx context.Context, id string) (*model.User, error)

	// Notifications
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, page, size int) ([]model.Notification, int64, error)
	MarkNotificationRead(ctx context.Context, id, userID string) (*model.Notification, error)
	HasNotificationToday(ctx context.Context, userID string, typ model.NotificationType, pattern string, now time.Time) (bool, error)

	// Push subscriptions
	FindSubscriptionsByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// CreateLoan inserts a reservation and flips the equipment to on-loan as one
// transaction. The overlap condition is re-checked inside the transaction;
// callers serialize per equipment on top of this, so the re-check is a
// backstop, not the primary guard.
func (s *gormStore) CreateLoan(ctx context.Context, loan *model.Loan) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Loan{}).
			Where("equipment_id = ? AND status IN ?", loan.EquipmentID, model.OpenLoanStatuses).
			Where("start_date <= ? AND end_date >= ?", loan.EndDate, loan.StartDate).
			Count(&n).Error; err != nil {
			return fmt.Errorf("overlap re-check for equipment %s: %w", loan.EquipmentID, err)
		}
		if n > 0 {
			return ErrOverlap
		}

		if err := tx.Create(loan).Error; err != nil {
			return fmt.Errorf("insert loan for equipment %s: %w", loan.EquipmentID, err)
		}

		return tx.Model(&model.Equipment{}).
			Where("id = ?", loan.EquipmentID).
			Update("status", model.EquipmentOnLoan).Error
	})
}

func (s *gormStore) FindLoanByID(ctx context.Context, id string) (*model.Loan, error) {
	var loan model.Loan
	err := s.db.WithContext(ctx).
		Preload("User").Preload("Equipment").
		First(&loan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// FindOverlappingLoans returns reserved/active loans for the equipment whose
// closed date interval shares at least one instant with [start, end].
// Touching endpoints count as overlap.
func (s *gormStore) FindOverlappingLoans(ctx context.Context, equipmentID string, start, end time.Time) ([]model.Loan, error) {
	var loans []model.Loan
	err := s.db.WithContext(ctx).
		Where("equipment_id = ? AND status IN ?", equipmentID, model.OpenLoanStatuses).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Find(&loans).Error
	return loans, err
}

func (s *gormStore) FindLoansDueBefore(ctx context.Context, t time.Time) ([]model.Loan, error) {
	var loans []model.Loan
	err := s.db.WithContext(ctx).
		Preload("User").Preload("Equipment").
		Where("status IN ? AND end_date < ?", model.OpenLoanStatuses, t).
		Find(&loans).Error
	return loans, err
}

func (s *gormStore) FindUnreturnedLoans(ctx context.Context) ([]model.Loan, error) {
	var loans []model.Loan
	err := s.db.WithContext(ctx).
		Preload("User").Preload("Equipment").
		Where("status IN ? AND returned_at IS NULL", model.OpenLoanStatuses).
		Find(&loans).Error
	return loans, err
}

func (s *gormStore) UpdateLoan(ctx context.Context, loan *model.Loan) error {
	return s.db.WithContext(ctx).Omit("User", "Equipment").Save(loan).Error
}

// CompleteReturn persists the returned loan and re-derives the equipment
// status in one transaction. The status is recomputed from the remaining
// open-loan count rather than flipped, because queued future reservations
// keep the equipment on-loan. A maintenance override is left untouched.
func (s *gormStore) CompleteReturn(ctx context.Context, loan *model.Loan) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User", "Equipment").Save(loan).Error; err != nil {
			return fmt.Errorf("save returned loan %s: %w", loan.ID, err)
		}

		var remaining int64
		if err := tx.Model(&model.Loan{}).
			Where("equipment_id = ? AND status IN ?", loan.EquipmentID, model.OpenLoanStatuses).
			Count(&remaining).Error; err != nil {
			return fmt.Errorf("count open loans for equipment %s: %w", loan.EquipmentID, err)
		}

		if remaining == 0 {
			return tx.Model(&model.Equipment{}).
				Where("id = ? AND status = ?", loan.EquipmentID, model.EquipmentOnLoan).
				Update("status", model.EquipmentAvailable).Error
		}
		return nil
	})
}

func (s *gormStore) ListLoans(ctx context.Context, q LoanQuery) ([]model.Loan, int64, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 {
		q.Size = 20
	}

	query := s.db.WithContext(ctx).Model(&model.Loan{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var loans []model.Loan
	err := query.
		Preload("User").Preload("Equipment").
		Order("reserved_at DESC").
		Offset((q.Page - 1) * q.Size).Limit(q.Size).
		Find(&loans).Error
	return loans, total, err
}

func (s *gormStore) CountOpenLoans(ctx context.Context, equipmentID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Loan{}).
		Where("equipment_id = ? AND status IN ?", equipmentID, model.OpenLoanStatuses).
		Count(&n).Error
	return n, err
}
