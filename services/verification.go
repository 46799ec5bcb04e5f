package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saichennu440/craft-store/gateway"
	"github.com/saichennu440/craft-store/models"
	"github.com/saichennu440/craft-store/repository"
)

// EventPublisher publishes terminal payment events downstream. Best-effort:
// verification never fails because publication did.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

type VerifyResult struct {
	Success bool
	Status  string // "SUCCESS" or "FAILED"
	Message string
}

type VerificationService struct {
	payments repository.PaymentRepository
	orders   repository.OrderRepository
	gateway  GatewayClient
	events   EventPublisher // may be nil
	sandbox  bool
	logger   *zap.Logger

	maxAttempts   int
	baseDelay     time.Duration
	maxDelay      time.Duration
	commitRetries int
	commitDelay   time.Duration
}

func NewVerificationService(
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	gw GatewayClient,
	events EventPublisher,
	sandbox bool,
	maxAttempts int,
	baseDelay time.Duration,
	logger *zap.Logger,
) *VerificationService {
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &VerificationService{
		payments:      payments,
		orders:        orders,
		gateway:       gw,
		events:        events,
		sandbox:       sandbox,
		logger:        logger,
		maxAttempts:   maxAttempts,
		baseDelay:     baseDelay,
		maxDelay:      5 * time.Second,
		commitRetries: 5,
		commitDelay:   baseDelay,
	}
}

// Verify resolves the transaction to a terminal status and applies it to the
// Payment and Order rows. Safe to call repeatedly and concurrently: status
// transitions are conditional on the row still being pending, so duplicate
// terminal writes are no-ops and later calls simply report the stored result.
func (s *VerificationService) Verify(ctx context.Context, transactionID string) (*VerifyResult, error) {
	if transactionID == "" {
		return nil, &ValidationError{Message: "transactionId is required"}
	}

	payment, err := s.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "payment", Key: transactionID}
		}
		return nil, &PersistenceError{Op: "payment lookup", Err: err}
	}

	if payment.Terminal() {
		return s.resultForStored(payment.Status, "already verified"), nil
	}

	if s.sandbox {
		return s.commitSuccess(ctx, payment, nil)
	}

	var lastReason string
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		res, err := s.gateway.QueryStatus(ctx, transactionID, payment.OrderID.String())
		switch {
		case err == nil && res.Status == gateway.StatusSuccess:
			return s.commitSuccess(ctx, payment, res.Raw)
		case err == nil && res.Status == gateway.StatusFailed:
			return s.commitFailure(ctx, payment, res.Raw, "gateway reported payment failure")
		case err == nil:
			lastReason = "gateway reported status " + string(res.Status)
		default:
			var ge *gateway.GatewayError
			if errors.As(err, &ge) {
				// Terminal provider rejection; no point polling further.
				return s.commitFailure(ctx, payment, nil, err.Error())
			}
			lastReason = err.Error()
		}

		s.logger.Info("payment status not terminal yet, retrying",
			zap.String("transaction_id", transactionID),
			zap.Int("attempt", attempt),
			zap.String("reason", lastReason),
		)

		if attempt < s.maxAttempts {
			if err := sleepCtx(ctx, s.pollDelay(attempt)); err != nil {
				return nil, err
			}
		}
	}

	return s.commitFailure(ctx, payment, nil, "verification attempts exhausted: "+lastReason)
}

// pollDelay grows linearly with the attempt number, capped.
func (s *VerificationService) pollDelay(attempt int) time.Duration {
	d := s.baseDelay * time.Duration(attempt)
	if d > s.maxDelay {
		d = s.maxDelay
	}
	return d
}

// commitSuccess finalizes the Payment and marks the Order paid. The two
// conditional updates are retried as a pair until both have applied, so no
// stable state exists with Payment=success and Order still pending.
func (s *VerificationService) commitSuccess(ctx context.Context, payment *models.Payment, raw map[string]interface{}) (*VerifyResult, error) {
	payload := marshalPayload(raw)

	var paymentDone, orderDone bool
	var lastErr error
	for attempt := 1; attempt <= s.commitRetries; attempt++ {
		if !paymentDone {
			transitioned, err := s.payments.UpdateStatusFromPending(ctx, payment.ProviderTransactionID, models.PaymentStatusSuccess, payload)
			switch {
			case err != nil:
				lastErr = err
			case transitioned:
				paymentDone = true
			default:
				// A concurrent verification won the race. The order side is
				// only paired once the stored status is confirmed success; a
				// failed winner leaves the order pending, and a re-fetch
				// error is retried with the rest of the pair.
				stored, err := s.payments.GetByTransactionID(ctx, payment.ProviderTransactionID)
				switch {
				case err != nil:
					lastErr = err
				case stored.Status == models.PaymentStatusFailed:
					return s.resultForStored(stored.Status, "already verified"), nil
				case stored.Status == models.PaymentStatusSuccess:
					paymentDone = true
				}
			}
		}

		if paymentDone && !orderDone {
			// RowsAffected 0 here means the order already left pending
			// (a concurrent commit or admin action), which is fine.
			if _, err := s.orders.UpdateStatusFrom(ctx, payment.OrderID, models.OrderStatusPending, models.OrderStatusPaid); err != nil {
				lastErr = err
			} else {
				orderDone = true
			}
		}

		if paymentDone && orderDone {
			break
		}
		if err := sleepCtx(ctx, s.commitDelay); err != nil {
			return nil, err
		}
	}

	if !paymentDone || !orderDone {
		s.logger.Error("could not commit success pair",
			zap.String("transaction_id", payment.ProviderTransactionID),
			zap.Bool("payment_done", paymentDone),
			zap.Bool("order_done", orderDone),
			zap.Error(lastErr),
		)
		return nil, &PersistenceError{Op: "success commit", Err: lastErr}
	}

	s.publish(ctx, payment, "payment_succeeded", "SUCCESS", "")

	return &VerifyResult{Success: true, Status: "SUCCESS", Message: "payment verified successfully"}, nil
}

// commitFailure finalizes the Payment as failed. The Order deliberately stays
// pending so checkout can be retried with a fresh transaction id.
func (s *VerificationService) commitFailure(ctx context.Context, payment *models.Payment, raw map[string]interface{}, reason string) (*VerifyResult, error) {
	payload := marshalPayload(raw)

	transitioned, err := s.payments.UpdateStatusFromPending(ctx, payment.ProviderTransactionID, models.PaymentStatusFailed, payload)
	if err != nil {
		return nil, &PersistenceError{Op: "failure commit", Err: err}
	}
	if !transitioned {
		stored, err := s.payments.GetByTransactionID(ctx, payment.ProviderTransactionID)
		if err == nil {
			return s.resultForStored(stored.Status, "already verified"), nil
		}
	}

	s.logger.Warn("payment marked failed",
		zap.String("transaction_id", payment.ProviderTransactionID),
		zap.String("reason", reason),
	)

	s.publish(ctx, payment, "payment_failed", "FAILED", reason)

	return &VerifyResult{Success: false, Status: "FAILED", Message: reason}, nil
}

func (s *VerificationService) resultForStored(status, message string) *VerifyResult {
	if status == models.PaymentStatusSuccess {
		return &VerifyResult{Success: true, Status: "SUCCESS", Message: message}
	}
	return &VerifyResult{Success: false, Status: "FAILED", Message: message}
}

func (s *VerificationService) publish(ctx context.Context, payment *models.Payment, eventType, status, reason string) {
	if s.events == nil {
		return
	}
	event := models.PaymentEvent{
		Type:          eventType,
		OrderID:       payment.OrderID.String(),
		PaymentID:     payment.ID.String(),
		TransactionID: payment.ProviderTransactionID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Status:        status,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.events.PublishPaymentEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish payment event",
			zap.String("event_type", eventType),
			zap.String("transaction_id", payment.ProviderTransactionID),
			zap.Error(err),
		)
	}
}

func marshalPayload(raw map[string]interface{}) *string {
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
