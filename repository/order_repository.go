package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saichennu440/craft-store/models"
)

type OrderRepository interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	// UpdateStatusFrom transitions the order status only if the current status
	// equals the expected prior one, reporting whether a row transitioned.
	UpdateStatusFrom(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string) (bool, error)
}

type gormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepo(db *gorm.DB) OrderRepository {
	return &gormOrderRepo{db: db}
}

func (r *gormOrderRepo) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepo) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *gormOrderRepo) UpdateStatusFrom(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, fromStatus).
		Update("status", toStatus)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
