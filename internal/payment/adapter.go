package payment

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
	"github.com/ariefcatur/go-sales-orders/internal/integration"
)

// Client is the transport the adapter needs from one gateway;
// *integration.Client satisfies it.
type Client interface {
	Get(ctx context.Context, path string) (*integration.Response, error)
	Post(ctx context.Context, path string, body any) (*integration.Response, error)
	Probe(ctx context.Context, path string) (*integration.Response, error)
}

type PaymentResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Gateway       string `json:"gateway"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

type RefundResult struct {
	Success  bool   `json:"success"`
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Gateway  string `json:"gateway"`
}

type StatusResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"` // cents
	Currency      string `json:"currency"`
	Gateway       string `json:"gateway"`
}

type Statistics struct {
	Gateway                 string  `json:"gateway"`
	Period                  string  `json:"period"`
	TotalTransactions       int64   `json:"total_transactions"`
	TotalAmount             float64 `json:"total_amount"`
	SuccessRate             float64 `json:"success_rate"`
	AverageTransactionValue float64 `json:"average_transaction_value"`
}

type Health struct {
	Service      string `json:"service"`
	Gateway      string `json:"gateway"`
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"

	DefaultPeriod = "30d"
	serviceName   = "payment"
)

// Adapter holds one pre-built client per configured gateway and picks the
// target per call.
type Adapter struct {
	clients   map[string]Client
	formatter Formatter
	log       *zap.Logger
	now       func() time.Time
}

func NewAdapter(clients map[string]Client, formatter Formatter, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		clients:   clients,
		formatter: formatter,
		log:       logger.With(zap.String("component", "payment_adapter")),
		now:       time.Now,
	}
}

// NewClients builds an integration client for every supported gateway
// present in cfg.
func NewClients(gateways map[string]integration.Options) map[string]Client {
	out := make(map[string]Client, len(gateways))
	for name, opts := range gateways {
		if !IsSupportedGateway(name) {
			continue
		}
		opts.Service = serviceName
		opts.Gateway = name
		out[name] = integration.New(opts)
	}
	return out
}

func (a *Adapter) client(gateway string) (Client, error) {
	if IsSupportedGateway(gateway) {
		if c, ok := a.clients[gateway]; ok {
			return c, nil
		}
	}
	return nil, apperr.New(apperr.ErrGatewayNotSupported,
		fmt.Sprintf("Payment gateway %s not supported", gateway))
}

// ValidatePaymentMethod is exposed on the adapter for callers holding one.
func (a *Adapter) ValidatePaymentMethod(method string, amount int64) (MethodValidation, error) {
	return ValidatePaymentMethod(method, amount)
}

func (a *Adapter) FormatPaymentData(c Charge, gateway string) (any, error) {
	return a.formatter.FormatPaymentData(c, gateway)
}

func (a *Adapter) ProcessPayment(ctx context.Context, c Charge, gateway string) (PaymentResult, error) {
	client, err := a.client(gateway)
	if err != nil {
		return PaymentResult{}, err
	}
	body, err := a.formatter.FormatPaymentData(c, gateway)
	if err != nil {
		return PaymentResult{}, err
	}

	a.log.Info(fmt.Sprintf("processing payment for sale %s via %s", c.OrderNumber, gateway))
	resp, err := client.Post(ctx, "/payments", body)
	if err != nil {
		a.log.Error("payment processing failed",
			zap.String("order_number", c.OrderNumber), zap.String("gateway", gateway), zap.Error(err))
		return PaymentResult{}, apperr.Wrap(apperr.ErrPaymentProcessingFailed, err)
	}

	var out struct {
		ID string `json:"id"`
	}
	_ = resp.Decode(&out)
	if out.ID == "" {
		out.ID = fmt.Sprintf("txn_%d", a.now().UnixMilli())
	}
	return PaymentResult{
		Success:       true,
		TransactionID: out.ID,
		Status:        "authorized",
		Gateway:       gateway,
		Amount:        c.Amount,
		Currency:      c.currency(),
	}, nil
}

type refundRequest struct {
	Amount int64  `json:"amount" xml:"amount"`
	Reason string `json:"reason" xml:"reason"`
}

func (a *Adapter) RefundPayment(ctx context.Context, transactionID string, amount int64, gateway string) (RefundResult, error) {
	client, err := a.client(gateway)
	if err != nil {
		return RefundResult{}, err
	}

	a.log.Info(fmt.Sprintf("processing refund for transaction %s via %s", transactionID, gateway))
	resp, err := client.Post(ctx, "/refunds", refundRequest{Amount: amount, Reason: "requested_by_customer"})
	if err != nil {
		a.log.Error("refund processing failed",
			zap.String("transaction_id", transactionID), zap.String("gateway", gateway), zap.Error(err))
		return RefundResult{}, apperr.Wrap(apperr.ErrRefundProcessingFailed, err)
	}

	var out struct {
		ID string `json:"id"`
	}
	_ = resp.Decode(&out)
	if out.ID == "" {
		out.ID = fmt.Sprintf("ref_%d", a.now().UnixMilli())
	}
	return RefundResult{
		Success:  true,
		RefundID: out.ID,
		Status:   "succeeded",
		Amount:   amount,
		Gateway:  gateway,
	}, nil
}

func (a *Adapter) GetPaymentStatus(ctx context.Context, transactionID, gateway string) (StatusResult, error) {
	client, err := a.client(gateway)
	if err != nil {
		return StatusResult{}, err
	}

	a.log.Info(fmt.Sprintf("getting payment status for transaction %s via %s", transactionID, gateway))
	resp, err := client.Get(ctx, "/payments/"+url.PathEscape(transactionID))
	if err != nil {
		a.log.Error("payment status check failed",
			zap.String("transaction_id", transactionID), zap.String("gateway", gateway), zap.Error(err))
		return StatusResult{}, apperr.Wrap(apperr.ErrPaymentStatusCheckFailed, err)
	}

	var out struct {
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	if err := resp.Decode(&out); err != nil {
		return StatusResult{}, apperr.Wrap(apperr.ErrPaymentStatusCheckFailed, err)
	}
	if out.Status == "" {
		out.Status = "pending"
	}
	if out.Currency == "" {
		out.Currency = "BRL"
	}
	return StatusResult{
		TransactionID: transactionID,
		Status:        out.Status,
		Amount:        centsFrom(gateway, out.Amount),
		Currency:      out.Currency,
		Gateway:       gateway,
	}, nil
}

func (a *Adapter) GetStatistics(ctx context.Context, gateway, period string) (Statistics, error) {
	if gateway == "" {
		gateway = DefaultGateway
	}
	if period == "" {
		period = DefaultPeriod
	}
	client, err := a.client(gateway)
	if err != nil {
		return Statistics{}, err
	}

	resp, err := client.Get(ctx, "/statistics?period="+url.QueryEscape(period))
	if err != nil {
		a.log.Error("payment statistics failed", zap.String("gateway", gateway), zap.Error(err))
		return Statistics{}, apperr.Wrap(apperr.ErrPaymentStatisticsFailed, err)
	}

	var out struct {
		TotalTransactions       decimal.Decimal `json:"total_transactions"`
		TotalAmount             decimal.Decimal `json:"total_amount"`
		SuccessRate             decimal.Decimal `json:"success_rate"`
		AverageTransactionValue decimal.Decimal `json:"average_transaction_value"`
	}
	if err := resp.Decode(&out); err != nil {
		return Statistics{}, apperr.Wrap(apperr.ErrPaymentStatisticsFailed, err)
	}
	return Statistics{
		Gateway:                 gateway,
		Period:                  period,
		TotalTransactions:       out.TotalTransactions.IntPart(),
		TotalAmount:             out.TotalAmount.InexactFloat64(),
		SuccessRate:             out.SuccessRate.InexactFloat64(),
		AverageTransactionValue: out.AverageTransactionValue.InexactFloat64(),
	}, nil
}

// CheckAllGatewaysHealth probes each configured gateway in turn. A failing
// probe is recorded as unhealthy and never stops the others.
func (a *Adapter) CheckAllGatewaysHealth(ctx context.Context) []Health {
	results := make([]Health, 0, len(Gateways))
	for _, gateway := range Gateways {
		client, ok := a.clients[gateway]
		if !ok {
			continue
		}
		results = append(results, a.probe(ctx, gateway, client))
	}
	return results
}

func (a *Adapter) probe(ctx context.Context, gateway string, client Client) (h Health) {
	h = Health{Service: serviceName, Gateway: gateway}
	defer func() {
		if r := recover(); r != nil {
			h.Status = HealthUnhealthy
			h.ResponseTime = ""
			h.Error = fmt.Sprint(r)
		}
	}()

	resp, err := client.Probe(ctx, "/health")
	if err != nil {
		a.log.Warn("gateway health check failed", zap.String("gateway", gateway), zap.Error(err))
		h.Status = HealthUnhealthy
		h.Error = err.Error()
		return h
	}
	h.Status = HealthHealthy
	h.ResponseTime = resp.Header.Get("X-Response-Time")
	if h.ResponseTime == "" {
		h.ResponseTime = "unknown"
	}
	return h
}
