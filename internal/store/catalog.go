package store

import (
	"context"
	"strings"

	"lab-loan-backend/internal/model"
)

func (s *gormStore) FindEquipmentByID(ctx context.Context, id string) (*model.Equipment, error) {
	var eq model.Equipment
	if err := s.db.WithContext(ctx).First(&eq, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &eq, nil
}

func (s *gormStore) FindEquipmentByCode(ctx context.Context, code string) (*model.Equipment, error) {
	var eq model.Equipment
	if err := s.db.WithContext(ctx).First(&eq, "code = ?", strings.ToUpper(code)).Error; err != nil {
		return nil, err
	}
	return &eq, nil
}

func (s *gormStore) ListEquipment(ctx context.Context, category, status string) ([]model.Equipment, error) {
	query := s.db.WithContext(ctx).Order("code ASC")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var items []model.Equipment
	err := query.Find(&items).Error
	return items, err
}

func (s *gormStore) CreateEquipment(ctx context.Context, eq *model.Equipment) error {
	eq.Code = strings.ToUpper(strings.TrimSpace(eq.Code))
	return s.db.WithContext(ctx).Create(eq).Error
}

func (s *gormStore) UpdateEquipment(ctx context.Context, eq *model.Equipment) error {
	eq.Code = strings.ToUpper(strings.TrimSpace(eq.Code))
	return s.db.WithContext(ctx).Save(eq).Error
}

func (s *gormStore) SetEquipmentStatus(ctx context.Context, id string, status model.EquipmentStatus) error {
	return s.db.WithContext(ctx).Model(&model.Equipment{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (s *gormStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
