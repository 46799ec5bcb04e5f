package models

import "time"

// PaymentEvent is the message published after a payment reaches a terminal
// status, consumed by downstream services (notifications, fulfilment).
type PaymentEvent struct {
	Type          string    `json:"type"` // "payment_succeeded" or "payment_failed"
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"` // currency units
	Currency      string    `json:"currency"`
	Status        string    `json:"status"` // "SUCCESS" or "FAILED"
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"` // UTC event time
}
