package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saichennu440/craft-store/models"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	// UpdateStatusFromPending transitions the payment to a terminal status only
	// if it is still pending, and reports whether a row actually transitioned.
	// Duplicate terminal writes are no-ops, which is what makes verification
	// idempotent under concurrent calls.
	UpdateStatusFromPending(ctx context.Context, transactionID, status string, gatewayPayload *string) (bool, error)
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("provider_transaction_id = ?", transactionID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusPending).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) UpdateStatusFromPending(ctx context.Context, transactionID, status string, gatewayPayload *string) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if gatewayPayload != nil {
		updates["gateway_payload"] = gatewayPayload
	}
	switch status {
	case models.PaymentStatusSuccess:
		updates["succeeded_at"] = &now
	case models.PaymentStatusFailed:
		updates["failed_at"] = &now
	}

	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("provider_transaction_id = ? AND status = ?", transactionID, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
