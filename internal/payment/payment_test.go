package payment

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
	"github.com/ariefcatur/go-sales-orders/internal/config"
	"github.com/ariefcatur/go-sales-orders/internal/integration"
)

func TestValidatePaymentMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		method   string
		amount   int64
		wantKey  string
		gateways []string
	}{
		{name: "pix at ceiling", method: MethodPix, amount: 1_000_000, gateways: []string{GatewayMercadoPago}},
		{name: "pix above ceiling", method: MethodPix, amount: 1_000_001, wantKey: "AMOUNT_OUT_OF_RANGE"},
		{name: "card at floor", method: MethodCreditCard, amount: 100, gateways: []string{GatewayStripe, GatewayPagSeguro}},
		{name: "card below floor", method: MethodCreditCard, amount: 99, wantKey: "AMOUNT_OUT_OF_RANGE"},
		{name: "boleto any amount", method: MethodBoleto, amount: 1, gateways: []string{GatewayMercadoPago, GatewayPagSeguro}},
		{name: "bank transfer", method: MethodBankTransfer, amount: 5_000_000, gateways: []string{GatewayPagSeguro}},
		{name: "unknown method", method: "CASH", amount: 1000, wantKey: "METHOD_NOT_SUPPORTED"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidatePaymentMethod(tt.method, tt.amount)
			if tt.wantKey != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKey, apperr.Key(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Valid)
			assert.Equal(t, tt.gateways, got.SupportedGateways)
		})
	}
}

var testCharge = Charge{
	OrderNumber:   "ORD-1700000000000-042",
	CustomerID:    "c1",
	CustomerName:  "Maria da Silva",
	CustomerEmail: "maria@example.com",
	Amount:        2750,
	Currency:      "BRL",
}

func TestFormatPaymentData(t *testing.T) {
	f := Formatter{FrontendURL: "https://shop.example", APIURL: "https://api.example"}

	t.Run("stripe keeps cents", func(t *testing.T) {
		got, err := f.FormatPaymentData(testCharge, GatewayStripe)
		require.NoError(t, err)
		p := got.(StripePayment)
		assert.Equal(t, int64(2750), p.Amount)
		assert.Equal(t, "brl", p.Currency)
		assert.Equal(t, "Order ORD-1700000000000-042", p.Description)
		assert.Equal(t, "maria@example.com", p.Metadata["customer_email"])
		assert.Equal(t, []string{"card"}, p.PaymentMethodTypes)
		assert.True(t, p.Confirm)
		assert.Equal(t, "https://shop.example/payment/return", p.ReturnURL)
	})

	t.Run("mercadopago uses major units", func(t *testing.T) {
		got, err := f.FormatPaymentData(testCharge, GatewayMercadoPago)
		require.NoError(t, err)
		p := got.(MercadoPagoPayment)
		assert.Equal(t, 27.5, p.TransactionAmount)
		assert.Equal(t, "pix", p.PaymentMethodID)
		assert.Equal(t, "Maria", p.Payer.FirstName)
		assert.Equal(t, "da Silva", p.Payer.LastName)
	})

	t.Run("pagseguro nests payment", func(t *testing.T) {
		got, err := f.FormatPaymentData(testCharge, GatewayPagSeguro)
		require.NoError(t, err)
		p := got.(PagSeguroRequest)
		assert.Equal(t, "27.50", p.Payment.Amount)
		assert.Equal(t, "BRL", p.Payment.Currency)
		assert.Equal(t, "creditCard", p.Payment.Method)
		assert.Equal(t, "https://api.example/webhooks/pagseguro", p.Payment.NotificationURL)

		b, err := xml.Marshal(p)
		require.NoError(t, err)
		assert.Contains(t, string(b), "<checkout><payment><mode>default</mode>")
	})

	t.Run("unknown gateway", func(t *testing.T) {
		_, err := f.FormatPaymentData(testCharge, "paypal")
		assert.True(t, errors.Is(err, apperr.ErrGatewayNotSupported))
	})
}

type fakeClient struct {
	resp  *integration.Response
	err   error
	panic bool

	paths []string
	body  any
}

func (f *fakeClient) Get(ctx context.Context, path string) (*integration.Response, error) {
	f.paths = append(f.paths, path)
	return f.resp, f.err
}

func (f *fakeClient) Post(ctx context.Context, path string, body any) (*integration.Response, error) {
	f.paths = append(f.paths, path)
	f.body = body
	return f.resp, f.err
}

func (f *fakeClient) Probe(ctx context.Context, path string) (*integration.Response, error) {
	if f.panic {
		panic("probe exploded")
	}
	f.paths = append(f.paths, path)
	return f.resp, f.err
}

func ok(body string) *integration.Response {
	return &integration.Response{Status: http.StatusOK, Header: http.Header{}, Body: []byte(body)}
}

func newAdapter(clients map[string]Client) *Adapter {
	a := NewAdapter(clients, Formatter{}, nil)
	a.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return a
}

func TestProcessPayment(t *testing.T) {
	stripe := &fakeClient{resp: ok(`{"id":"pi_123"}`)}
	a := newAdapter(map[string]Client{GatewayStripe: stripe})

	res, err := a.ProcessPayment(context.Background(), testCharge, GatewayStripe)
	require.NoError(t, err)
	assert.Equal(t, PaymentResult{
		Success: true, TransactionID: "pi_123", Status: "authorized",
		Gateway: GatewayStripe, Amount: 2750, Currency: "BRL",
	}, res)
	assert.Equal(t, []string{"/payments"}, stripe.paths)
	assert.IsType(t, StripePayment{}, stripe.body)
}

func TestProcessPaymentFallbackTransactionID(t *testing.T) {
	a := newAdapter(map[string]Client{GatewayStripe: &fakeClient{resp: ok(``)}})

	res, err := a.ProcessPayment(context.Background(), testCharge, GatewayStripe)
	require.NoError(t, err)
	assert.Equal(t, "txn_1700000000123", res.TransactionID)
}

func TestProcessPaymentWrapsIntegrationError(t *testing.T) {
	upstream := &integration.Error{Status: http.StatusBadGateway, Service: "payment", Gateway: GatewayStripe}
	a := newAdapter(map[string]Client{GatewayStripe: &fakeClient{err: upstream}})

	_, err := a.ProcessPayment(context.Background(), testCharge, GatewayStripe)
	require.Error(t, err)
	assert.Equal(t, "PAYMENT_PROCESSING_FAILED", apperr.Key(err))
	assert.True(t, errors.Is(err, apperr.ErrIntegration))
	assert.Contains(t, err.Error(), "INTEGRATION_ERROR")
}

func TestUnsupportedGateway(t *testing.T) {
	a := newAdapter(map[string]Client{GatewayStripe: &fakeClient{}})

	_, err := a.ProcessPayment(context.Background(), testCharge, "paypal")
	assert.Equal(t, "GATEWAY_NOT_SUPPORTED", apperr.Key(err))

	// supported but not configured
	_, err = a.RefundPayment(context.Background(), "txn_1", 100, GatewayPagSeguro)
	assert.Equal(t, "GATEWAY_NOT_SUPPORTED", apperr.Key(err))
}

func TestRefundPayment(t *testing.T) {
	mp := &fakeClient{resp: ok(`{}`)}
	a := newAdapter(map[string]Client{GatewayMercadoPago: mp})

	res, err := a.RefundPayment(context.Background(), "txn_1", 1500, GatewayMercadoPago)
	require.NoError(t, err)
	assert.Equal(t, "ref_1700000000123", res.RefundID)
	assert.Equal(t, "succeeded", res.Status)
	assert.Equal(t, int64(1500), res.Amount)
	assert.Equal(t, refundRequest{Amount: 1500, Reason: "requested_by_customer"}, mp.body)

	mp.err = errors.New("boom")
	_, err = a.RefundPayment(context.Background(), "txn_1", 1500, GatewayMercadoPago)
	assert.Equal(t, "REFUND_PROCESSING_FAILED", apperr.Key(err))
}

func TestGetPaymentStatus(t *testing.T) {
	stripe := &fakeClient{resp: ok(`{"amount":2750}`)}
	a := newAdapter(map[string]Client{GatewayStripe: stripe})

	res, err := a.GetPaymentStatus(context.Background(), "pi_123", GatewayStripe)
	require.NoError(t, err)
	assert.Equal(t, StatusResult{
		TransactionID: "pi_123", Status: "pending", Amount: 2750, Currency: "BRL", Gateway: GatewayStripe,
	}, res)
	assert.Equal(t, []string{"/payments/pi_123"}, stripe.paths)

	stripe.err = errors.New("timeout")
	_, err = a.GetPaymentStatus(context.Background(), "pi_123", GatewayStripe)
	assert.Equal(t, "PAYMENT_STATUS_CHECK_FAILED", apperr.Key(err))
}

func TestGetPaymentStatusAmountInCents(t *testing.T) {
	tests := []struct {
		gateway string
		body    string
		want    int64
	}{
		{gateway: GatewayStripe, body: `{"amount":2750}`, want: 2750},
		{gateway: GatewayMercadoPago, body: `{"amount":27.5}`, want: 2750},
		{gateway: GatewayPagSeguro, body: `{"amount":"27.50"}`, want: 2750},
		{gateway: GatewayMercadoPago, body: `{"amount":19.999}`, want: 2000},
	}
	for _, tt := range tests {
		t.Run(tt.gateway, func(t *testing.T) {
			a := newAdapter(map[string]Client{tt.gateway: &fakeClient{resp: ok(tt.body)}})
			res, err := a.GetPaymentStatus(context.Background(), "tx-1", tt.gateway)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Amount)
		})
	}
}

func TestGetStatisticsDefaults(t *testing.T) {
	stripe := &fakeClient{resp: ok(`{"total_transactions":12,"total_amount":"1500.50","success_rate":0.92}`)}
	a := newAdapter(map[string]Client{GatewayStripe: stripe})

	res, err := a.GetStatistics(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "stripe", res.Gateway)
	assert.Equal(t, "30d", res.Period)
	assert.Equal(t, int64(12), res.TotalTransactions)
	assert.Equal(t, 1500.5, res.TotalAmount)
	assert.Equal(t, 0.92, res.SuccessRate)
	assert.Zero(t, res.AverageTransactionValue)
	assert.Equal(t, []string{"/statistics?period=30d"}, stripe.paths)

	stripe.err = errors.New("down")
	_, err = a.GetStatistics(context.Background(), "stripe", "7d")
	assert.Equal(t, "PAYMENT_STATISTICS_FAILED", apperr.Key(err))
}

func TestCheckAllGatewaysHealthIsolatesFailures(t *testing.T) {
	healthy := ok(`{}`)
	healthy.Header.Set("X-Response-Time", "12ms")

	a := newAdapter(map[string]Client{
		GatewayStripe:      &fakeClient{resp: healthy},
		GatewayMercadoPago: &fakeClient{err: errors.New("connection refused")},
		GatewayPagSeguro:   &fakeClient{panic: true},
	})

	got := a.CheckAllGatewaysHealth(context.Background())
	require.Len(t, got, 3)

	assert.Equal(t, Health{Service: "payment", Gateway: "stripe", Status: "healthy", ResponseTime: "12ms"}, got[0])
	assert.Equal(t, "mercadopago", got[1].Gateway)
	assert.Equal(t, "unhealthy", got[1].Status)
	assert.Equal(t, "connection refused", got[1].Error)
	assert.Equal(t, "pagseguro", got[2].Gateway)
	assert.Equal(t, "unhealthy", got[2].Status)
	assert.Equal(t, "probe exploded", got[2].Error)
}

func TestAdapterOverRealClients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/payments":
			_, _ = w.Write([]byte(`{"id":"mp_9"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	opts := func(ctype string) integration.Options {
		return integration.Options{
			Config:    config.GatewayConfig{BaseURL: srv.URL, ContentType: ctype},
			Retries:   2,
			RetryBase: time.Millisecond,
		}
	}
	clients := NewClients(map[string]integration.Options{
		GatewayMercadoPago: opts("application/json"),
		"paypal":           opts("application/json"),
	})
	require.Len(t, clients, 1)

	a := NewAdapter(clients, Formatter{}, nil)
	res, err := a.ProcessPayment(context.Background(), testCharge, GatewayMercadoPago)
	require.NoError(t, err)
	assert.Equal(t, "mp_9", res.TransactionID)

	health := a.CheckAllGatewaysHealth(context.Background())
	require.Len(t, health, 1)
	assert.Equal(t, "unhealthy", health[0].Status)
	assert.Contains(t, health[0].Error, "503")
}
