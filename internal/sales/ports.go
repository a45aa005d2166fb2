package sales

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-sales-orders/internal/payment"
)

var (
	ErrSaleNotFound         = errors.New("sale not found")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

// Repository persists sales. Implementations return ErrSaleNotFound for a
// missing row and ErrDuplicateOrderNumber on an order-number conflict.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	FindByID(ctx context.Context, id string) (*Sale, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Sale, error)
	FindAndCount(ctx context.Context, f Filter, p Page) ([]Sale, int, error)
	FindAll(ctx context.Context, f Filter) ([]Sale, error)
	Update(ctx context.Context, s *Sale) error
}

// Cache is a best-effort read-through cache keyed by sale id.
type Cache interface {
	Get(ctx context.Context, id string) (*Sale, bool)
	Set(ctx context.Context, s *Sale)
	Delete(ctx context.Context, id string)
}

type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Payments is the gateway adapter surface the service orchestrates.
type Payments interface {
	ValidatePaymentMethod(method string, amount int64) (payment.MethodValidation, error)
	ProcessPayment(ctx context.Context, c payment.Charge, gateway string) (payment.PaymentResult, error)
	RefundPayment(ctx context.Context, transactionID string, amount int64, gateway string) (payment.RefundResult, error)
	GetPaymentStatus(ctx context.Context, transactionID, gateway string) (payment.StatusResult, error)
	GetStatistics(ctx context.Context, gateway, period string) (payment.Statistics, error)
	CheckAllGatewaysHealth(ctx context.Context) []payment.Health
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*Sale, bool) { return nil, false }
func (noopCache) Set(context.Context, *Sale)                {}
func (noopCache) Delete(context.Context, string)            {}

type traceKey struct{}

// WithTraceID attaches the request id that published events carry.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
