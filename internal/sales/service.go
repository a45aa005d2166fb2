package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/payment"
)

const orderNumberAttempts = 3

type Deps struct {
	Repo     Repository
	Cache    Cache
	Events   EventPublisher
	Payments Payments
	Logger   *zap.Logger
	Producer string
}

// Service implements the sale use cases on top of the repository and the
// payment adapter.
type Service struct {
	repo     Repository
	cache    Cache
	events   EventPublisher
	payments Payments
	log      *zap.Logger
	producer string

	now   func() time.Time
	newID func() string
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:     d.Repo,
		cache:    d.Cache,
		events:   d.Events,
		payments: d.Payments,
		log:      d.Logger,
		producer: d.Producer,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.producer == "" {
		s.producer = "sales-api"
	}
	return s
}

func (s *Service) List(ctx context.Context, f Filter, p Page) (ListResult, error) {
	if f.IsActive == nil {
		active := true
		f.IsActive = &active
	}
	p = p.Normalize()
	rows, total, err := s.repo.FindAndCount(ctx, f, p)
	if err != nil {
		return ListResult{}, fmt.Errorf("list sales: %w", err)
	}
	if rows == nil {
		rows = []Sale{}
	}
	return ListResult{Data: rows, Meta: Meta{Total: total, Page: p.Page, Limit: p.Limit}}, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string, p Page) (ListResult, error) {
	active := true
	return s.List(ctx, Filter{CustomerID: customerID, IsActive: &active}, p)
}

func (s *Service) GetByID(ctx context.Context, id string) (*Sale, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	s.cache.Set(ctx, sale)
	return sale, nil
}

func (s *Service) GetByOrderNumber(ctx context.Context, orderNumber string) (*Sale, error) {
	sale, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, notFound(err)
	}
	return sale, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Sale, error) {
	if len(in.Items) == 0 {
		return nil, apperr.New(apperr.ErrValidation, "items must contain at least one item")
	}

	sale := &Sale{
		ID:                s.newID(),
		CustomerID:        in.CustomerID,
		CustomerName:      in.CustomerName,
		CustomerEmail:     in.CustomerEmail,
		CustomerPhone:     in.CustomerPhone,
		CustomerDocument:  in.CustomerDocument,
		Currency:          in.Currency,
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		PaymentMethod:     in.PaymentMethod,
		Items:             normalizeItems(in.Items),
		ShippingAddress:   in.ShippingAddress,
		BillingAddress:    in.BillingAddress,
		Source:            in.Source,
		IntegrationSource: in.IntegrationSource,
		ExternalID:        in.ExternalID,
		Metadata:          in.Metadata,
		Notes:             in.Notes,
		IsActive:          true,
	}
	if sale.Currency == "" {
		sale.Currency = "BRL"
	}
	if sale.Source == "" {
		sale.Source = SourceWeb
	}
	if err := CheckAmounts(sale.Items, in.DiscountAmount, in.ShippingAmount); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err)
	}
	CalculateAmounts(sale.Items, in.DiscountAmount, in.ShippingAmount).apply(sale)

	var err error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		sale.OrderNumber = GenerateOrderNumber(s.now())
		err = s.repo.Create(ctx, sale)
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			break
		}
		s.log.Warn("order number collision, regenerating",
			zap.String("order_number", sale.OrderNumber), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	s.log.Info("sale created", zap.String("sale_id", sale.ID), zap.String("order_number", sale.OrderNumber))
	s.publish(ctx, EventSaleCreated, sale.ID, snapshot(sale))
	return sale, nil
}

func (s *Service) Update(ctx context.Context, id string, p Patch) (*Sale, error) {
	sale, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.CustomerName != nil {
		sale.CustomerName = *p.CustomerName
	}
	if p.CustomerEmail != nil {
		sale.CustomerEmail = *p.CustomerEmail
	}
	if p.CustomerPhone != nil {
		sale.CustomerPhone = *p.CustomerPhone
	}
	if p.CustomerDocument != nil {
		sale.CustomerDocument = *p.CustomerDocument
	}
	if p.ShippingAddress != nil {
		sale.ShippingAddress = p.ShippingAddress
	}
	if p.BillingAddress != nil {
		sale.BillingAddress = p.BillingAddress
	}
	if p.Notes != nil {
		sale.Notes = *p.Notes
	}
	if p.Metadata != nil {
		sale.Metadata = p.Metadata
	}

	// amounts follow items, discount and shipping together
	if p.Items != nil || p.DiscountAmount != nil || p.ShippingAmount != nil {
		if p.Items != nil {
			sale.Items = normalizeItems(p.Items)
		}
		discount, shipping := sale.DiscountAmount, sale.ShippingAmount
		if p.DiscountAmount != nil {
			discount = *p.DiscountAmount
		}
		if p.ShippingAmount != nil {
			shipping = *p.ShippingAmount
		}
		if err := CheckAmounts(sale.Items, discount, shipping); err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, err)
		}
		CalculateAmounts(sale.Items, discount, shipping).apply(sale)
	}

	if err := s.save(ctx, sale); err != nil {
		return nil, err
	}
	s.publish(ctx, EventSaleUpdated, sale.ID, snapshot(sale))
	return sale, nil
}

// UpdateStatus overwrites the status (and optionally the payment status)
// with no transition check.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, paymentStatus *PaymentStatus) (*Sale, error) {
	sale, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	ev := StatusChangedPayload{SaleID: sale.ID, From: sale.Status, To: status}
	sale.Status = status
	if paymentStatus != nil {
		ev.PaymentStatusFrom, ev.PaymentStatusTo = sale.PaymentStatus, *paymentStatus
		sale.PaymentStatus = *paymentStatus
	}

	if err := s.save(ctx, sale); err != nil {
		return nil, err
	}
	s.publish(ctx, EventSaleStatusChanged, sale.ID, ev)
	return sale, nil
}

// UpdatePaymentStatus overwrites the payment status and only the metadata
// fields present in meta.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, ps PaymentStatus, meta PaymentMeta) (*Sale, error) {
	sale, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.writePaymentStatus(ctx, sale, ps, meta)
}

func (s *Service) writePaymentStatus(ctx context.Context, sale *Sale, ps PaymentStatus, meta PaymentMeta) (*Sale, error) {
	from := sale.PaymentStatus
	sale.PaymentStatus = ps
	if meta.Method != nil {
		sale.PaymentMethod = *meta.Method
	}
	if meta.Gateway != nil {
		sale.PaymentGateway = *meta.Gateway
	}
	if meta.TransactionID != nil {
		sale.PaymentTransactionID = *meta.TransactionID
	}

	if err := s.save(ctx, sale); err != nil {
		return nil, err
	}
	s.publish(ctx, EventSalePaymentStatusChanged, sale.ID, PaymentStatusChangedPayload{
		SaleID:        sale.ID,
		From:          from,
		To:            ps,
		Method:        sale.PaymentMethod,
		Gateway:       sale.PaymentGateway,
		TransactionID: sale.PaymentTransactionID,
	})
	return sale, nil
}

func (s *Service) SoftDelete(ctx context.Context, id string) (*Sale, error) {
	sale, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	sale.IsActive = false
	if err := s.save(ctx, sale); err != nil {
		return nil, err
	}
	s.publish(ctx, EventSaleDeleted, sale.ID, snapshot(sale))
	return sale, nil
}

// Summary aggregates active sales in one pass. The paid, pending and
// cancelled buckets are independent, so one sale may land in several.
func (s *Service) Summary(ctx context.Context, sf SummaryFilter) (Summary, error) {
	active := true
	rows, err := s.repo.FindAll(ctx, Filter{
		Status:        sf.Status,
		PaymentStatus: sf.PaymentStatus,
		IsActive:      &active,
		CreatedFrom:   sf.StartDate,
		CreatedTo:     sf.EndDate,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("sales summary: %w", err)
	}

	out := Summary{TotalSales: len(rows)}
	for _, r := range rows {
		out.TotalAmount += r.TotalAmount
		if r.PaymentStatus == PaymentPaid {
			out.TotalPaid += r.TotalAmount
		}
		if r.PaymentStatus == PaymentPending {
			out.TotalPending += r.TotalAmount
		}
		if r.Status == StatusCancelled {
			out.TotalCancelled += r.TotalAmount
		}
	}
	return out, nil
}

type PaymentOutcome struct {
	Payment payment.PaymentResult `json:"payment"`
	Sale    *Sale                 `json:"sale"`
}

// ProcessPayment charges the sale through gateway. The sale is only written
// after the gateway accepted the payment.
func (s *Service) ProcessPayment(ctx context.Context, saleID, gateway, method string) (PaymentOutcome, error) {
	if gateway == "" {
		gateway = payment.DefaultGateway
	}
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return PaymentOutcome{}, err
	}
	if !CanProcessPayment(sale) {
		return PaymentOutcome{}, apperr.New(apperr.ErrPaymentAlreadyProcessed, "Payment already processed for this sale")
	}

	v, err := s.payments.ValidatePaymentMethod(method, sale.TotalAmount)
	if err != nil {
		return PaymentOutcome{}, err
	}
	if !contains(v.SupportedGateways, gateway) {
		if !payment.IsSupportedGateway(gateway) {
			return PaymentOutcome{}, apperr.New(apperr.ErrGatewayNotSupported,
				fmt.Sprintf("Payment gateway %s not supported", gateway))
		}
		return PaymentOutcome{}, apperr.New(apperr.ErrMethodNotSupported,
			fmt.Sprintf("Payment method %s not supported by gateway %s", method, gateway))
	}

	res, err := s.payments.ProcessPayment(ctx, payment.Charge{
		OrderNumber:   sale.OrderNumber,
		CustomerID:    sale.CustomerID,
		CustomerName:  sale.CustomerName,
		CustomerEmail: sale.CustomerEmail,
		Amount:        sale.TotalAmount,
		Currency:      sale.Currency,
	}, gateway)
	if err != nil {
		return PaymentOutcome{}, err
	}

	updated, err := s.writePaymentStatus(ctx, sale, PaymentPaid, PaymentMeta{
		Method:        &method,
		Gateway:       &gateway,
		TransactionID: &res.TransactionID,
	})
	if err != nil {
		return PaymentOutcome{}, err
	}

	s.publish(ctx, EventSalePaymentProcessed, sale.ID, PaymentProcessedPayload{
		SaleID:        sale.ID,
		OrderNumber:   sale.OrderNumber,
		Gateway:       gateway,
		Method:        method,
		TransactionID: res.TransactionID,
		AmountCents:   res.Amount,
		Currency:      res.Currency,
	})
	return PaymentOutcome{Payment: res, Sale: updated}, nil
}

type RefundOutcome struct {
	Refund payment.RefundResult `json:"refund"`
	Sale   *Sale                `json:"sale"`
}

// RefundPayment refunds amount (the sale total when nil) and marks the
// payment REFUNDED.
func (s *Service) RefundPayment(ctx context.Context, saleID, gateway string, amount *int64) (RefundOutcome, error) {
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return RefundOutcome{}, err
	}
	if !CanRefund(sale) {
		return RefundOutcome{}, apperr.New(apperr.ErrPaymentNotProcessed, "Payment not processed for this sale")
	}

	value := sale.TotalAmount
	if amount != nil {
		value = *amount
	}
	if value < 1 || value > sale.TotalAmount {
		return RefundOutcome{}, apperr.New(apperr.ErrValidation,
			fmt.Sprintf("refund amount must be between 1 and %d", sale.TotalAmount))
	}
	gateway = s.gatewayFor(sale, gateway)

	res, err := s.payments.RefundPayment(ctx, sale.PaymentTransactionID, value, gateway)
	if err != nil {
		return RefundOutcome{}, err
	}

	updated, err := s.writePaymentStatus(ctx, sale, PaymentRefunded, PaymentMeta{})
	if err != nil {
		return RefundOutcome{}, err
	}
	s.publish(ctx, EventSalePaymentRefunded, sale.ID, PaymentRefundedPayload{
		SaleID:        sale.ID,
		Gateway:       gateway,
		TransactionID: sale.PaymentTransactionID,
		RefundID:      res.RefundID,
		AmountCents:   value,
	})
	return RefundOutcome{Refund: res, Sale: updated}, nil
}

// GetPaymentStatus asks the gateway about the sale's stored transaction.
func (s *Service) GetPaymentStatus(ctx context.Context, saleID, gateway string) (payment.StatusResult, error) {
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return payment.StatusResult{}, err
	}
	if sale.PaymentTransactionID == "" {
		return payment.StatusResult{}, apperr.New(apperr.ErrPaymentNotProcessed, "Payment not processed for this sale")
	}
	return s.payments.GetPaymentStatus(ctx, sale.PaymentTransactionID, s.gatewayFor(sale, gateway))
}

func (s *Service) PaymentStatistics(ctx context.Context, gateway, period string) (payment.Statistics, error) {
	return s.payments.GetStatistics(ctx, gateway, period)
}

func (s *Service) IntegrationsHealth(ctx context.Context) []payment.Health {
	return s.payments.CheckAllGatewaysHealth(ctx)
}

func (s *Service) gatewayFor(sale *Sale, requested string) string {
	switch {
	case requested != "":
		return requested
	case sale.PaymentGateway != "":
		return sale.PaymentGateway
	default:
		return payment.DefaultGateway
	}
}

// load always reads the repository; writes must not start from a cached copy.
func (s *Service) load(ctx context.Context, id string) (*Sale, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return sale, nil
}

func (s *Service) save(ctx context.Context, sale *Sale) error {
	if err := s.repo.Update(ctx, sale); err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			return notFound(err)
		}
		return fmt.Errorf("update sale %s: %w", sale.ID, err)
	}
	s.cache.Delete(ctx, sale.ID)
	return nil
}

func (s *Service) publish(ctx context.Context, eventType, saleID string, payload any) {
	if s.events == nil {
		return
	}
	ev := Envelope{
		EventID:       s.newID(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    s.now().UTC(),
		Producer:      s.producer,
		TraceID:       traceID(ctx),
		CorrelationID: saleID,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.events.Publish(PartitionKey(saleID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func notFound(err error) error {
	if errors.Is(err, ErrSaleNotFound) {
		return apperr.New(apperr.ErrNotFound, "Sale not found")
	}
	return err
}

func normalizeItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Quantity < 1 {
			out[i].Quantity = 1
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
