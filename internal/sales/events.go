package sales

import (
	"encoding/json"
	"time"
)

const (
	EventSaleCreated              = "SaleCreated"
	EventSaleUpdated              = "SaleUpdated"
	EventSaleStatusChanged        = "SaleStatusChanged"
	EventSalePaymentStatusChanged = "SalePaymentStatusChanged"
	EventSaleDeleted              = "SaleDeleted"
	EventSalePaymentProcessed     = "SalePaymentProcessed"
	EventSalePaymentRefunded      = "SalePaymentRefunded"
)

const EventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // sale id
	Payload       json.RawMessage `json:"payload"`
}

// SaleSnapshotPayload is used by created/updated/deleted events.
type SaleSnapshotPayload struct {
	SaleID        string        `json:"sale_id"`
	OrderNumber   string        `json:"order_number"`
	CustomerID    string        `json:"customer_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalAmount   int64         `json:"total_amount"`
	Currency      string        `json:"currency"`
	IsActive      bool          `json:"is_active"`
}

type StatusChangedPayload struct {
	SaleID            string        `json:"sale_id"`
	From              Status        `json:"from"`
	To                Status        `json:"to"`
	PaymentStatusFrom PaymentStatus `json:"payment_status_from,omitempty"`
	PaymentStatusTo   PaymentStatus `json:"payment_status_to,omitempty"`
}

type PaymentStatusChangedPayload struct {
	SaleID        string        `json:"sale_id"`
	From          PaymentStatus `json:"from"`
	To            PaymentStatus `json:"to"`
	Method        string        `json:"payment_method,omitempty"`
	Gateway       string        `json:"payment_gateway,omitempty"`
	TransactionID string        `json:"payment_transaction_id,omitempty"`
}

type PaymentProcessedPayload struct {
	SaleID        string `json:"sale_id"`
	OrderNumber   string `json:"order_number"`
	Gateway       string `json:"gateway"`
	Method        string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

type PaymentRefundedPayload struct {
	SaleID        string `json:"sale_id"`
	Gateway       string `json:"gateway"`
	TransactionID string `json:"transaction_id"`
	RefundID      string `json:"refund_id"`
	AmountCents   int64  `json:"amount_cents"`
}

func snapshot(s *Sale) SaleSnapshotPayload {
	return SaleSnapshotPayload{
		SaleID:        s.ID,
		OrderNumber:   s.OrderNumber,
		CustomerID:    s.CustomerID,
		Status:        s.Status,
		PaymentStatus: s.PaymentStatus,
		TotalAmount:   s.TotalAmount,
		Currency:      s.Currency,
		IsActive:      s.IsActive,
	}
}
