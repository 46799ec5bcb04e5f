package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saichennu440/craft-store/gateway"
	"github.com/saichennu440/craft-store/models"
)

func newInitiation(payments *paymentRepoMock, orders *orderRepoMock, gw *gatewayMock, sandbox bool) *InitiationService {
	return NewInitiationService(payments, orders, gw, "phonepe", sandbox, "", zap.NewNop())
}

func pendingOrder(total float64) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		TotalAmount: total,
		Status:      models.OrderStatusPending,
		Phone:       "9876543210",
	}
}

func TestCreatePayment_Sandbox(t *testing.T) {
	payments := &paymentRepoMock{}
	orders := &orderRepoMock{}
	gw := &gatewayMock{}

	order := pendingOrder(500)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	payments.On("FindPendingByOrderID", mock.Anything, order.ID).Return(nil, gorm.ErrRecordNotFound)

	var created *models.Payment
	payments.On("Create", mock.Anything, mock.AnythingOfType("*models.Payment")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.Payment) }).
		Return(nil)

	svc := newInitiation(payments, orders, gw, true)
	res, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     order.ID.String(),
		Amount:      500,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})
	require.NoError(t, err)

	require.NotNil(t, created)
	require.Equal(t, order.ID, created.OrderID)
	require.Equal(t, models.PaymentStatusPending, created.Status)
	require.Equal(t, 500.0, created.Amount)
	require.Equal(t, "phonepe", created.Provider)
	require.NotEmpty(t, created.ProviderTransactionID)

	require.Equal(t, created.ProviderTransactionID, res.TransactionID)
	require.Equal(t,
		fmt.Sprintf("https://shop.test/payment/success?transactionId=%s&status=SUCCESS", res.TransactionID),
		res.PaymentURL,
	)

	gw.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestCreatePayment_PersistFailureSkipsGateway(t *testing.T) {
	payments := &paymentRepoMock{}
	orders := &orderRepoMock{}
	gw := &gatewayMock{}

	order := pendingOrder(500)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	payments.On("FindPendingByOrderID", mock.Anything, order.ID).Return(nil, gorm.ErrRecordNotFound)
	payments.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	svc := newInitiation(payments, orders, gw, false)
	_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     order.ID.String(),
		Amount:      500,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})

	var persistenceErr *PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	gw.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestCreatePayment_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CreatePaymentRequest
	}{
		{"missing order id", CreatePaymentRequest{Amount: 500, Phone: "9876543210", CallbackURL: "https://shop.test"}},
		{"missing phone", CreatePaymentRequest{OrderID: uuid.NewString(), Amount: 500, CallbackURL: "https://shop.test"}},
		{"missing callback", CreatePaymentRequest{OrderID: uuid.NewString(), Amount: 500, Phone: "9876543210"}},
		{"zero amount", CreatePaymentRequest{OrderID: uuid.NewString(), Amount: 0, Phone: "9876543210", CallbackURL: "https://shop.test"}},
		{"negative amount", CreatePaymentRequest{OrderID: uuid.NewString(), Amount: -1, Phone: "9876543210", CallbackURL: "https://shop.test"}},
		{"malformed order id", CreatePaymentRequest{OrderID: "O1", Amount: 500, Phone: "9876543210", CallbackURL: "https://shop.test"}},
		{"relative callback", CreatePaymentRequest{OrderID: uuid.NewString(), Amount: 500, Phone: "9876543210", CallbackURL: "/payment"}},
	}

	svc := newInitiation(&paymentRepoMock{}, &orderRepoMock{}, &gatewayMock{}, true)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePayment(context.Background(), tt.req)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestCreatePayment_OrderNotFound(t *testing.T) {
	payments := &paymentRepoMock{}
	orders := &orderRepoMock{}

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(nil, gorm.ErrRecordNotFound)

	svc := newInitiation(payments, orders, &gatewayMock{}, true)
	_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     orderID.String(),
		Amount:      500,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCreatePayment_RejectsNonPendingOrder(t *testing.T) {
	orders := &orderRepoMock{}
	order := pendingOrder(500)
	order.Status = models.OrderStatusPaid
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	svc := newInitiation(&paymentRepoMock{}, orders, &gatewayMock{}, true)
	_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     order.ID.String(),
		Amount:      500,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreatePayment_RejectsAmountMismatch(t *testing.T) {
	orders := &orderRepoMock{}
	order := pendingOrder(750)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	svc := newInitiation(&paymentRepoMock{}, orders, &gatewayMock{}, true)
	_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     order.ID.String(),
		Amount:      500,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCreatePayment_RejectsSecondPendingPayment(t *testing.T) {
	payments := &paymentRepoMock{}
	orders := &orderRepoMock{}

	order := pendingOrder(500)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	payments.On("FindPendingByOrderID", mock.Anything, order.ID).Return(&models.Payment{
		OrderID: order.ID,
		Status:  models.PaymentStatusPending,
	}, nil)

	svc := newInitiation(payments, orders, &gatewayMock{}, true)
	_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     order.ID.String(),
		Amount:      500,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreatePayment_ConcurrentInitiationLosesAtInsert(t *testing.T) {
	payments := &paymentRepoMock{}
	orders := &orderRepoMock{}
	gw := &gatewayMock{}

	// Both initiations pass the pending-payment pre-check; the partial
	// unique index rejects the second insert.
	order := pendingOrder(500)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	payments.On("FindPendingByOrderID", mock.Anything, order.ID).Return(nil, gorm.ErrRecordNotFound)
	payments.On("Create", mock.Anything, mock.Anything).Return(gorm.ErrDuplicatedKey)

	svc := newInitiation(payments, orders, gw, false)
	_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     order.ID.String(),
		Amount:      500,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	gw.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestCreatePayment_ProductionUsesGatewayURL(t *testing.T) {
	payments := &paymentRepoMock{}
	orders := &orderRepoMock{}
	gw := &gatewayMock{}

	order := pendingOrder(129.50)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	payments.On("FindPendingByOrderID", mock.Anything, order.ID).Return(nil, gorm.ErrRecordNotFound)
	payments.On("Create", mock.Anything, mock.Anything).Return(nil)

	var gwReq gateway.InitiationRequest
	gw.On("InitiatePayment", mock.Anything, mock.AnythingOfType("gateway.InitiationRequest")).
		Run(func(args mock.Arguments) { gwReq = args.Get(1).(gateway.InitiationRequest) }).
		Return(&gateway.InitiationResult{RedirectURL: "https://pay.example/x", TransactionID: "ignored"}, nil)

	svc := newInitiation(payments, orders, gw, false)
	res, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     order.ID.String(),
		Amount:      129.50,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/x", res.PaymentURL)

	// Amount is converted to minor units for the wire.
	require.EqualValues(t, 12950, gwReq.Amount)
	require.Equal(t, order.ID.String(), gwReq.OrderID)
	require.Contains(t, gwReq.RedirectURL, "transactionId="+gwReq.TransactionID)
}

func TestCreatePayment_GatewayFailureLeavesRowPending(t *testing.T) {
	payments := &paymentRepoMock{}
	orders := &orderRepoMock{}
	gw := &gatewayMock{}

	order := pendingOrder(500)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	payments.On("FindPendingByOrderID", mock.Anything, order.ID).Return(nil, gorm.ErrRecordNotFound)
	payments.On("Create", mock.Anything, mock.Anything).Return(nil)
	gw.On("InitiatePayment", mock.Anything, mock.Anything).
		Return(nil, &gateway.GatewayError{StatusCode: 400, Body: "rejected"})

	svc := newInitiation(payments, orders, gw, false)
	_, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		OrderID:     order.ID.String(),
		Amount:      500,
		Phone:       "9876543210",
		CallbackURL: "https://shop.test",
	})

	var gwErr *gateway.GatewayError
	require.ErrorAs(t, err, &gwErr)
	// The pending row is never rolled back or flipped on initiation failure.
	payments.AssertNotCalled(t, "UpdateStatusFromPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateTransactionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateTransactionID()
		require.True(t, len(id) > 20)
		require.Contains(t, id, "TXN_")
		require.False(t, seen[id], "duplicate transaction id generated")
		seen[id] = true
	}
}
