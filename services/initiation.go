package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saichennu440/craft-store/gateway"
	"github.com/saichennu440/craft-store/models"
	"github.com/saichennu440/craft-store/repository"
)

// GatewayClient is the slice of the gateway client the services depend on.
type GatewayClient interface {
	InitiatePayment(ctx context.Context, req gateway.InitiationRequest) (*gateway.InitiationResult, error)
	QueryStatus(ctx context.Context, transactionID, merchantOrderID string) (*gateway.StatusResult, error)
}

type CreatePaymentRequest struct {
	OrderID     string  `json:"order_id" binding:"required"`
	Amount      float64 `json:"amount" binding:"required"`
	Phone       string  `json:"phone" binding:"required"`
	CallbackURL string  `json:"callback_url" binding:"required"`
}

type CreatePaymentResult struct {
	PaymentURL    string
	TransactionID string
}

type InitiationService struct {
	payments      repository.PaymentRepository
	orders        repository.OrderRepository
	gateway       GatewayClient
	provider      string
	sandbox       bool
	publicBaseURL string
	logger        *zap.Logger
}

func NewInitiationService(
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	gw GatewayClient,
	provider string,
	sandbox bool,
	publicBaseURL string,
	logger *zap.Logger,
) *InitiationService {
	return &InitiationService{
		payments:      payments,
		orders:        orders,
		gateway:       gw,
		provider:      provider,
		sandbox:       sandbox,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// CreatePayment persists a pending Payment for the order and obtains the
// hosted checkout URL to redirect the buyer to. The Payment row is written
// before the gateway is ever contacted; if the gateway call then fails the
// row stays pending and a later verification poll reconciles it.
func (s *InitiationService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	orderID, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "order", Key: req.OrderID}
		}
		return nil, &PersistenceError{Op: "order lookup", Err: err}
	}
	if order.Status != models.OrderStatusPending {
		return nil, &ValidationError{Message: fmt.Sprintf("order is not payable (status %q)", order.Status)}
	}
	if math.Abs(order.TotalAmount-req.Amount) > 0.009 {
		return nil, &ValidationError{Message: "amount does not match order total"}
	}

	if _, err := s.payments.FindPendingByOrderID(ctx, orderID); err == nil {
		return nil, &ValidationError{Message: "order already has a payment in progress"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &PersistenceError{Op: "pending payment lookup", Err: err}
	}

	transactionID := GenerateTransactionID()

	payment := &models.Payment{
		ID:                    uuid.New(),
		OrderID:               orderID,
		Provider:              s.provider,
		ProviderTransactionID: transactionID,
		Amount:                req.Amount,
		Currency:              "inr",
		Status:                models.PaymentStatusPending,
		Phone:                 req.Phone,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		// A concurrent initiation can slip past the pre-check above; the
		// partial unique index on pending payments catches it here.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ValidationError{Message: "order already has a payment in progress"}
		}
		return nil, &PersistenceError{Op: "payment create", Err: err}
	}

	s.logger.Info("payment record created",
		zap.String("transaction_id", transactionID),
		zap.String("order_id", req.OrderID),
		zap.Float64("amount", req.Amount),
	)

	redirectURL := fmt.Sprintf("%s/payment/success?transactionId=%s",
		strings.TrimRight(req.CallbackURL, "/"), transactionID)

	if s.sandbox {
		// No real gateway in sandbox: send the buyer straight to the success
		// page; verification short-circuits the same way.
		return &CreatePaymentResult{
			PaymentURL:    redirectURL + "&status=SUCCESS",
			TransactionID: transactionID,
		}, nil
	}

	callbackURL := redirectURL
	if s.publicBaseURL != "" {
		callbackURL = strings.TrimRight(s.publicBaseURL, "/") + "/payments/webhook"
	}

	res, err := s.gateway.InitiatePayment(ctx, gateway.InitiationRequest{
		TransactionID: transactionID,
		OrderID:       orderID.String(),
		Amount:        int64(math.Round(req.Amount * 100)),
		RedirectURL:   redirectURL,
		CallbackURL:   callbackURL,
		Phone:         req.Phone,
	})
	if err != nil {
		// The pending row is deliberately left in place; see Verify for the
		// reconciliation path.
		s.logger.Error("gateway initiation failed",
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
		return nil, err
	}

	return &CreatePaymentResult{
		PaymentURL:    res.RedirectURL,
		TransactionID: res.TransactionID,
	}, nil
}

func (s *InitiationService) validate(req CreatePaymentRequest) (uuid.UUID, error) {
	if req.OrderID == "" || req.Phone == "" || req.CallbackURL == "" {
		return uuid.Nil, &ValidationError{Message: "missing required fields: orderId, amount, phone, callbackUrl"}
	}
	if req.Amount <= 0 {
		return uuid.Nil, &ValidationError{Message: "amount must be greater than zero"}
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return uuid.Nil, &ValidationError{Message: "invalid order id"}
	}
	u, err := url.Parse(req.CallbackURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return uuid.Nil, &ValidationError{Message: "callbackUrl must be an absolute URL"}
	}
	return orderID, nil
}
