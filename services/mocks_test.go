package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/saichennu440/craft-store/gateway"
	"github.com/saichennu440/craft-store/models"
)

type paymentRepoMock struct{ mock.Mock }

func (m *paymentRepoMock) Create(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *paymentRepoMock) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	args := m.Called(ctx, transactionID)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *paymentRepoMock) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, orderID)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *paymentRepoMock) FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, orderID)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *paymentRepoMock) UpdateStatusFromPending(ctx context.Context, transactionID, status string, gatewayPayload *string) (bool, error) {
	args := m.Called(ctx, transactionID, status, gatewayPayload)
	return args.Bool(0), args.Error(1)
}

type orderRepoMock struct{ mock.Mock }

func (m *orderRepoMock) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *orderRepoMock) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *orderRepoMock) UpdateStatusFrom(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string) (bool, error) {
	args := m.Called(ctx, orderID, fromStatus, toStatus)
	return args.Bool(0), args.Error(1)
}

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) InitiatePayment(ctx context.Context, req gateway.InitiationRequest) (*gateway.InitiationResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*gateway.InitiationResult)
	return r, args.Error(1)
}

func (m *gatewayMock) QueryStatus(ctx context.Context, transactionID, merchantOrderID string) (*gateway.StatusResult, error) {
	args := m.Called(ctx, transactionID, merchantOrderID)
	r, _ := args.Get(0).(*gateway.StatusResult)
	return r, args.Error(1)
}

type eventsMock struct{ mock.Mock }

func (m *eventsMock) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
