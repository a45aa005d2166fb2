package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
	"github.com/ariefcatur/go-sales-orders/internal/observability"
	"github.com/ariefcatur/go-sales-orders/internal/payment"
	"github.com/ariefcatur/go-sales-orders/internal/sales"
)

const (
	saleID     = "6f1c1f5e-8a44-4c1b-9d7e-2b9f0f3c2a10"
	customerID = "0b8a3c58-5b0f-4b8f-a0a5-1f0c7a1b2c3d"
	productID  = "9a7d2c1e-3f4b-4e5d-8c6b-7a8f9e0d1c2b"
)

type fakeService struct {
	listFilter sales.Filter
	listPage   sales.Page
	created    sales.CreateInput
	patch      sales.Patch
	process    [3]string
	refund     *int64
	err        error
}

func (f *fakeService) List(ctx context.Context, fl sales.Filter, p sales.Page) (sales.ListResult, error) {
	f.listFilter, f.listPage = fl, p
	return sales.ListResult{Data: []sales.Sale{}, Meta: sales.Meta{Page: p.Page, Limit: p.Limit}}, f.err
}

func (f *fakeService) ListByCustomer(ctx context.Context, id string, p sales.Page) (sales.ListResult, error) {
	f.listFilter, f.listPage = sales.Filter{CustomerID: id}, p
	return sales.ListResult{Data: []sales.Sale{}}, f.err
}

func (f *fakeService) GetByID(ctx context.Context, id string) (*sales.Sale, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sales.Sale{ID: id, OrderNumber: "ORD-1-001"}, nil
}

func (f *fakeService) GetByOrderNumber(ctx context.Context, n string) (*sales.Sale, error) {
	return &sales.Sale{ID: saleID, OrderNumber: n}, f.err
}

func (f *fakeService) Create(ctx context.Context, in sales.CreateInput) (*sales.Sale, error) {
	f.created = in
	return &sales.Sale{ID: saleID, OrderNumber: "ORD-1-001", CustomerID: in.CustomerID}, f.err
}

func (f *fakeService) Update(ctx context.Context, id string, p sales.Patch) (*sales.Sale, error) {
	f.patch = p
	return &sales.Sale{ID: id}, f.err
}

func (f *fakeService) UpdateStatus(ctx context.Context, id string, s sales.Status, ps *sales.PaymentStatus) (*sales.Sale, error) {
	out := &sales.Sale{ID: id, Status: s}
	if ps != nil {
		out.PaymentStatus = *ps
	}
	return out, f.err
}

func (f *fakeService) UpdatePaymentStatus(ctx context.Context, id string, ps sales.PaymentStatus, m sales.PaymentMeta) (*sales.Sale, error) {
	out := &sales.Sale{ID: id, PaymentStatus: ps}
	if m.TransactionID != nil {
		out.PaymentTransactionID = *m.TransactionID
	}
	return out, f.err
}

func (f *fakeService) SoftDelete(ctx context.Context, id string) (*sales.Sale, error) {
	return &sales.Sale{ID: id}, f.err
}

func (f *fakeService) Summary(ctx context.Context, sf sales.SummaryFilter) (sales.Summary, error) {
	return sales.Summary{TotalSales: 2, TotalAmount: 500}, f.err
}

func (f *fakeService) ProcessPayment(ctx context.Context, id, gateway, method string) (sales.PaymentOutcome, error) {
	f.process = [3]string{id, gateway, method}
	return sales.PaymentOutcome{Payment: payment.PaymentResult{Success: true, TransactionID: "pi_1", Gateway: gateway}}, f.err
}

func (f *fakeService) RefundPayment(ctx context.Context, id, gateway string, amount *int64) (sales.RefundOutcome, error) {
	f.refund = amount
	return sales.RefundOutcome{Refund: payment.RefundResult{Success: true, RefundID: "re_1"}}, f.err
}

func (f *fakeService) GetPaymentStatus(ctx context.Context, id, gateway string) (payment.StatusResult, error) {
	return payment.StatusResult{TransactionID: "pi_1", Status: "succeeded", Gateway: gateway}, f.err
}

func (f *fakeService) PaymentStatistics(ctx context.Context, gateway, period string) (payment.Statistics, error) {
	return payment.Statistics{Gateway: gateway, Period: period}, f.err
}

func (f *fakeService) IntegrationsHealth(ctx context.Context) []payment.Health {
	return []payment.Health{{Service: "payment", Gateway: "stripe", Status: payment.HealthHealthy}}
}

func newTestServer(t *testing.T, svc *fakeService, auth func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	r := NewRouter(RouterOptions{Metrics: observability.NewMetrics("sales_test", prometheus.NewRegistry())})
	(&SalesHandler{Service: svc}).Register(r, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func TestCreateSale(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, nil)

	body := `{
		"customer_id": "` + customerID + `",
		"customer_name": "Maria Silva",
		"customer_email": "maria@example.com",
		"items": [{"product_id": "` + productID + `", "name": "Mouse", "price": 1000}],
		"shipping_address": {"street": "Rua A", "number": "10", "neighborhood": "Centro",
			"city": "Recife", "state": "PE", "zip_code": "50000-000"},
		"discount_amount": 100
	}`
	status, out := do(t, srv, http.MethodPost, "/api/v1/sales/", body)

	require.Equal(t, http.StatusCreated, status)
	data := out["data"].(map[string]any)
	assert.Equal(t, "ORD-1-001", data["order_number"])

	in := svc.created
	require.Len(t, in.Items, 1)
	assert.Equal(t, 1, in.Items[0].Quantity)
	assert.Equal(t, int64(1000), in.Items[0].Price)
	assert.Equal(t, int64(100), in.DiscountAmount)
	assert.Equal(t, sales.SourceWeb, in.Source)
	require.NotNil(t, in.ShippingAddress)
	assert.Equal(t, "Brasil", in.ShippingAddress.Country)
	assert.Nil(t, in.BillingAddress)
}

func TestCreateSaleValidation(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, nil)

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{
			name:   "missing everything",
			body:   `{}`,
			fields: []string{"customer_id", "customer_name", "customer_email", "items"},
		},
		{
			name: "bad values",
			body: `{"customer_id":"nope","customer_name":"M","customer_email":"not-an-email",
				"items":[{"product_id":"` + productID + `","name":"x","price":-1,"quantity":0}],
				"source":"FAX","shipping_amount":-5}`,
			fields: []string{"customer_id", "customer_name", "customer_email",
				"items[0].price", "items[0].quantity", "source", "shipping_amount"},
		},
		{
			name: "amounts out of range",
			body: `{"customer_id":"` + customerID + `","customer_name":"Maria","customer_email":"m@example.com",
				"items":[{"product_id":"` + productID + `","name":"x","price":4611686018427387904,"quantity":2000000}],
				"discount_amount":1000000000000000001}`,
			fields: []string{"items[0].price", "items[0].quantity", "discount_amount"},
		},
		{
			name: "empty items",
			body: `{"customer_id":"` + customerID + `","customer_name":"Maria","customer_email":"m@example.com",
				"items":[]}`,
			fields: []string{"items"},
		},
		{name: "unknown field", body: `{"total_amount": 1}`, fields: []string{"body"}},
		{name: "malformed", body: `{`, fields: []string{"body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := do(t, srv, http.MethodPost, "/api/v1/sales/", tt.body)

			require.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_ERROR", out["key"])
			assert.Equal(t, float64(1002), out["errorCode"])

			var got []string
			for _, e := range out["errors"].([]any) {
				got = append(got, e.(map[string]any)["field"].(string))
			}
			for _, f := range tt.fields {
				assert.Contains(t, got, f)
			}
		})
	}
}

func TestListSales(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, nil)

	status, _ := do(t, srv, http.MethodGet, "/api/v1/sales/", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, sales.Page{Page: 1, Limit: 20}, svc.listPage)
	assert.Nil(t, svc.listFilter.IsActive)

	status, _ = do(t, srv, http.MethodGet, "/api/v1/sales/?is_active=false&status=PAID&page=2&limit=5&start_date=2025-07-01", "")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, svc.listFilter.IsActive)
	assert.False(t, *svc.listFilter.IsActive)
	assert.Equal(t, sales.StatusPaid, svc.listFilter.Status)
	assert.Equal(t, sales.Page{Page: 2, Limit: 5}, svc.listPage)
	require.NotNil(t, svc.listFilter.CreatedFrom)

	status, out := do(t, srv, http.MethodGet, "/api/v1/sales/?limit=101&page=0&status=LOST", "")
	require.Equal(t, http.StatusBadRequest, status)
	assert.Len(t, out["errors"], 3)
}

func TestStaticRoutesWinOverID(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, nil)

	status, out := do(t, srv, http.MethodGet, "/api/v1/sales/summary", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), out["data"].(map[string]any)["total_sales"])

	status, out = do(t, srv, http.MethodGet, "/api/v1/sales/integrations/health", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	status, out = do(t, srv, http.MethodGet, "/api/v1/sales/order/ORD-9-123", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ORD-9-123", out["data"].(map[string]any)["order_number"])
}

func TestGetSaleErrors(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, nil)

	status, out := do(t, srv, http.MethodGet, "/api/v1/sales/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", out["key"])

	svc.err = apperr.New(apperr.ErrNotFound, "Sale not found")
	status, out = do(t, srv, http.MethodGet, "/api/v1/sales/"+saleID, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", out["key"])
	assert.Equal(t, "Sale not found", out["message"])
	assert.Equal(t, float64(1001), out["errorCode"])
}

func TestUpdateSale(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, nil)

	status, _ := do(t, srv, http.MethodPut, "/api/v1/sales/"+saleID, `{"notes":"gift","shipping_amount":500}`)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, svc.patch.Notes)
	assert.Equal(t, "gift", *svc.patch.Notes)
	require.NotNil(t, svc.patch.ShippingAmount)
	assert.Equal(t, int64(500), *svc.patch.ShippingAmount)
	assert.Nil(t, svc.patch.Items)
	assert.Nil(t, svc.patch.DiscountAmount)

	status, _ = do(t, srv, http.MethodPut, "/api/v1/sales/"+saleID, `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStatusRoutes(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, nil)

	status, out := do(t, srv, http.MethodPatch, "/api/v1/sales/"+saleID+"/status", `{"status":"SHIPPED","payment_status":"PAID"}`)
	require.Equal(t, http.StatusOK, status)
	data := out["data"].(map[string]any)
	assert.Equal(t, "SHIPPED", data["status"])
	assert.Equal(t, "PAID", data["payment_status"])

	status, _ = do(t, srv, http.MethodPatch, "/api/v1/sales/"+saleID+"/status", `{"status":"LOST"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = do(t, srv, http.MethodPatch, "/api/v1/sales/"+saleID+"/payment",
		`{"payment_status":"PAID","payment_transaction_id":"pi_9"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pi_9", out["data"].(map[string]any)["payment_transaction_id"])

	status, _ = do(t, srv, http.MethodDelete, "/api/v1/sales/"+saleID, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestPaymentRoutes(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, nil)

	status, out := do(t, srv, http.MethodPost, "/api/v1/sales/payments/process",
		`{"sale_id":"`+saleID+`","payment_method":"CREDIT_CARD"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, [3]string{saleID, "stripe", "CREDIT_CARD"}, svc.process)
	assert.Equal(t, "pi_1", out["data"].(map[string]any)["payment"].(map[string]any)["transaction_id"])

	status, _ = do(t, srv, http.MethodPost, "/api/v1/sales/payments/process",
		`{"sale_id":"`+saleID+`","gateway":"paypal","payment_method":"CASH"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/api/v1/sales/payments/refund", `{"sale_id":"`+saleID+`","amount":250}`)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, svc.refund)
	assert.Equal(t, int64(250), *svc.refund)

	status, _ = do(t, srv, http.MethodPost, "/api/v1/sales/payments/refund", `{"sale_id":"`+saleID+`","amount":0}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = do(t, srv, http.MethodGet, "/api/v1/sales/payments/status?sale_id="+saleID+"&gateway=mercadopago", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "mercadopago", out["data"].(map[string]any)["gateway"])

	status, out = do(t, srv, http.MethodGet, "/api/v1/sales/payments/statistics?period=7d", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "7d", out["data"].(map[string]any)["period"])

	svc.err = apperr.New(apperr.ErrPaymentAlreadyProcessed, "Payment already processed for this sale")
	status, out = do(t, srv, http.MethodPost, "/api/v1/sales/payments/process",
		`{"sale_id":"`+saleID+`","payment_method":"PIX","gateway":"mercadopago"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PAYMENT_ALREADY_PROCESSED", out["key"])
}

func TestAuthGuardsSalesRoutes(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, apperr.New(apperr.ErrTokenRequired, "TOKEN_REQUIRED"))
		})
	}
	srv := newTestServer(t, &fakeService{}, deny)

	status, out := do(t, srv, http.MethodGet, "/api/v1/sales/", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "TOKEN_REQUIRED", out["key"])
	assert.Equal(t, float64(4001), out["errorCode"])

	status, _ = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, nil)

	status, out := do(t, srv, http.MethodGet, "/api/v2/nothing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "API_ENDPOINT_NOT_FOUND", out["key"])
}

func TestWriteErrorHidesInternalCauses(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, assert.AnError)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body["key"])
	assert.Equal(t, "Internal server error", body["message"])
}
