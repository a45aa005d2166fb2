package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
	"github.com/ariefcatur/go-sales-orders/internal/payment"
	"github.com/ariefcatur/go-sales-orders/internal/sales"
)

// SalesService is the use-case surface the handlers depend on.
type SalesService interface {
	List(ctx context.Context, f sales.Filter, p sales.Page) (sales.ListResult, error)
	ListByCustomer(ctx context.Context, customerID string, p sales.Page) (sales.ListResult, error)
	GetByID(ctx context.Context, id string) (*sales.Sale, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*sales.Sale, error)
	Create(ctx context.Context, in sales.CreateInput) (*sales.Sale, error)
	Update(ctx context.Context, id string, p sales.Patch) (*sales.Sale, error)
	UpdateStatus(ctx context.Context, id string, status sales.Status, ps *sales.PaymentStatus) (*sales.Sale, error)
	UpdatePaymentStatus(ctx context.Context, id string, ps sales.PaymentStatus, meta sales.PaymentMeta) (*sales.Sale, error)
	SoftDelete(ctx context.Context, id string) (*sales.Sale, error)
	Summary(ctx context.Context, f sales.SummaryFilter) (sales.Summary, error)
	ProcessPayment(ctx context.Context, saleID, gateway, method string) (sales.PaymentOutcome, error)
	RefundPayment(ctx context.Context, saleID, gateway string, amount *int64) (sales.RefundOutcome, error)
	GetPaymentStatus(ctx context.Context, saleID, gateway string) (payment.StatusResult, error)
	PaymentStatistics(ctx context.Context, gateway, period string) (payment.Statistics, error)
	IntegrationsHealth(ctx context.Context) []payment.Health
}

const (
	readTimeout    = 5 * time.Second
	paymentTimeout = 2 * time.Minute
	defaultCountry = "Brasil"
)

var (
	statusValues        = []string{"PENDING", "PAID", "CANCELLED", "REFUNDED", "SHIPPED", "DELIVERED"}
	paymentStatusValues = []string{"PENDING", "AUTHORIZED", "PAID", "FAILED", "REFUNDED"}
	sourceValues        = []string{"WEB", "MOBILE", "API", "PHONE"}
	methodValues        = []string{payment.MethodCreditCard, payment.MethodPix, payment.MethodBankTransfer, payment.MethodBoleto}
)

type SalesHandler struct {
	Service SalesService
	Logger  *zap.Logger
}

// Register mounts the sales routes. auth guards every one of them.
func (h *SalesHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api/v1/sales", func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/summary", h.summary)
		r.Get("/order/{orderNumber}", h.getByOrderNumber)
		r.Get("/customer/{customerId}", h.listByCustomer)

		r.Post("/payments/process", h.processPayment)
		r.Post("/payments/refund", h.refundPayment)
		r.Get("/payments/status", h.paymentStatus)
		r.Get("/payments/statistics", h.paymentStatistics)
		r.Get("/integrations/health", h.integrationsHealth)

		r.Get("/{id}", h.getByID)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.softDelete)
		r.Patch("/{id}/status", h.updateStatus)
		r.Patch("/{id}/payment", h.updatePaymentStatus)
	})
}

// fail logs server-side failures and writes the error envelope.
func (h *SalesHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if h.Logger != nil {
		fields := []zap.Field{
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		}
		switch status := apperr.HTTPStatus(err); {
		case status >= http.StatusInternalServerError:
			h.Logger.Error("request failed", fields...)
		case status != http.StatusNotFound && status != http.StatusBadRequest:
			h.Logger.Warn("request rejected", fields...)
		}
	}
	WriteError(w, err)
}

type itemRequest struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     *int64 `json:"price"`
	Quantity  *int   `json:"quantity"`
	Discount  *int64 `json:"discount"`
}

type addressRequest struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Country      string `json:"country"`
}

type createRequest struct {
	CustomerID        string          `json:"customer_id"`
	CustomerName      string          `json:"customer_name"`
	CustomerEmail     string          `json:"customer_email"`
	CustomerPhone     string          `json:"customer_phone"`
	CustomerDocument  string          `json:"customer_document"`
	Items             []itemRequest   `json:"items"`
	ShippingAddress   *addressRequest `json:"shipping_address"`
	BillingAddress    *addressRequest `json:"billing_address"`
	DiscountAmount    *int64          `json:"discount_amount"`
	ShippingAmount    *int64          `json:"shipping_amount"`
	Currency          string          `json:"currency"`
	PaymentMethod     string          `json:"payment_method"`
	Source            string          `json:"source"`
	IntegrationSource string          `json:"integration_source"`
	ExternalID        string          `json:"external_id"`
	Notes             string          `json:"notes"`
	Metadata          map[string]any  `json:"metadata"`
}

type updateRequest struct {
	CustomerName     *string         `json:"customer_name"`
	CustomerEmail    *string         `json:"customer_email"`
	CustomerPhone    *string         `json:"customer_phone"`
	CustomerDocument *string         `json:"customer_document"`
	Items            []itemRequest   `json:"items"`
	ShippingAddress  *addressRequest `json:"shipping_address"`
	BillingAddress   *addressRequest `json:"billing_address"`
	DiscountAmount   *int64          `json:"discount_amount"`
	ShippingAmount   *int64          `json:"shipping_amount"`
	Notes            *string         `json:"notes"`
	Metadata         map[string]any  `json:"metadata"`
}

type statusRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

type paymentStatusRequest struct {
	PaymentStatus        string  `json:"payment_status"`
	PaymentMethod        *string `json:"payment_method"`
	PaymentGateway       *string `json:"payment_gateway"`
	PaymentTransactionID *string `json:"payment_transaction_id"`
}

type processPaymentRequest struct {
	SaleID        string `json:"sale_id"`
	Gateway       string `json:"gateway"`
	PaymentMethod string `json:"payment_method"`
}

type refundPaymentRequest struct {
	SaleID  string `json:"sale_id"`
	Gateway string `json:"gateway"`
	Amount  *int64 `json:"amount"`
}

func (h *SalesHandler) list(w http.ResponseWriter, r *http.Request) {
	var v validator
	q := r.URL.Query()
	page := h.page(&v, r)
	f := sales.Filter{
		Status:            sales.Status(q.Get("status")),
		PaymentStatus:     sales.PaymentStatus(q.Get("payment_status")),
		CustomerID:        q.Get("customer_id"),
		Source:            sales.Source(q.Get("source")),
		IntegrationSource: q.Get("integration_source"),
		IsActive:          v.queryBool(r, "is_active"),
		CreatedFrom:       v.queryDate(r, "start_date"),
		CreatedTo:         v.queryDate(r, "end_date"),
	}
	if f.Status != "" {
		v.oneOf("status", string(f.Status), statusValues...)
	}
	if f.PaymentStatus != "" {
		v.oneOf("payment_status", string(f.PaymentStatus), paymentStatusValues...)
	}
	if f.CustomerID != "" {
		v.uuid("customer_id", f.CustomerID)
	}
	if f.Source != "" {
		v.oneOf("source", string(f.Source), sourceValues...)
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	res, err := h.Service.List(ctx, f, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *SalesHandler) page(v *validator, r *http.Request) sales.Page {
	p := sales.Page{
		Page:  v.queryInt(r, "page", 1),
		Limit: v.queryInt(r, "limit", sales.DefaultLimit),
	}
	v.atLeast("page", int64(p.Page), 1)
	if p.Limit < 1 || p.Limit > sales.MaxLimit {
		v.add("limit", "must be between 1 and %d", sales.MaxLimit)
	}
	return p
}

func (h *SalesHandler) listByCustomer(w http.ResponseWriter, r *http.Request) {
	var v validator
	customerID := chi.URLParam(r, "customerId")
	v.uuid("customerId", customerID)
	page := h.page(&v, r)
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	res, err := h.Service.ListByCustomer(ctx, customerID, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *SalesHandler) getByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	sale, err := h.Service.GetByID(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sale)
}

func (h *SalesHandler) getByOrderNumber(w http.ResponseWriter, r *http.Request) {
	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	var v validator
	v.required("orderNumber", orderNumber)
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	sale, err := h.Service.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sale)
}

func (h *SalesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	var v validator
	if v.required("customer_id", req.CustomerID) {
		v.uuid("customer_id", req.CustomerID)
	}
	if v.required("customer_name", req.CustomerName) {
		v.length("customer_name", req.CustomerName, 2, 100)
	}
	if v.required("customer_email", req.CustomerEmail) {
		v.email("customer_email", req.CustomerEmail)
	}
	if req.Items == nil {
		v.add("items", "is required")
	}
	items := toItems(&v, req.Items)
	in := sales.CreateInput{
		CustomerID:        req.CustomerID,
		CustomerName:      req.CustomerName,
		CustomerEmail:     req.CustomerEmail,
		CustomerPhone:     req.CustomerPhone,
		CustomerDocument:  req.CustomerDocument,
		Items:             items,
		ShippingAddress:   toAddress(&v, "shipping_address", req.ShippingAddress),
		BillingAddress:    toAddress(&v, "billing_address", req.BillingAddress),
		DiscountAmount:    nonNegative(&v, "discount_amount", req.DiscountAmount),
		ShippingAmount:    nonNegative(&v, "shipping_amount", req.ShippingAmount),
		Currency:          req.Currency,
		PaymentMethod:     req.PaymentMethod,
		Source:            sales.Source(req.Source),
		IntegrationSource: req.IntegrationSource,
		ExternalID:        req.ExternalID,
		Notes:             req.Notes,
		Metadata:          req.Metadata,
	}
	if in.Source == "" {
		in.Source = sales.SourceWeb
	}
	v.oneOf("source", string(in.Source), sourceValues...)
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	sale, err := h.Service.Create(ctx, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, sale)
}

func (h *SalesHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	var v validator
	if req.CustomerName != nil {
		v.length("customer_name", *req.CustomerName, 2, 100)
	}
	if req.CustomerEmail != nil {
		v.email("customer_email", *req.CustomerEmail)
	}
	p := sales.Patch{
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		CustomerDocument: req.CustomerDocument,
		ShippingAddress:  toAddress(&v, "shipping_address", req.ShippingAddress),
		BillingAddress:   toAddress(&v, "billing_address", req.BillingAddress),
		DiscountAmount:   req.DiscountAmount,
		ShippingAmount:   req.ShippingAmount,
		Notes:            req.Notes,
		Metadata:         req.Metadata,
	}
	if req.Items != nil {
		p.Items = toItems(&v, req.Items)
	}
	if p.DiscountAmount != nil {
		v.between("discount_amount", *p.DiscountAmount, 0, sales.MaxAmount)
	}
	if p.ShippingAmount != nil {
		v.between("shipping_amount", *p.ShippingAmount, 0, sales.MaxAmount)
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	sale, err := h.Service.Update(ctx, id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sale)
}

func (h *SalesHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var v validator
	if v.required("status", req.Status) {
		v.oneOf("status", req.Status, statusValues...)
	}
	var ps *sales.PaymentStatus
	if req.PaymentStatus != "" {
		v.oneOf("payment_status", req.PaymentStatus, paymentStatusValues...)
		p := sales.PaymentStatus(req.PaymentStatus)
		ps = &p
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	sale, err := h.Service.UpdateStatus(ctx, id, sales.Status(req.Status), ps)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sale)
}

func (h *SalesHandler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	var req paymentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var v validator
	if v.required("payment_status", req.PaymentStatus) {
		v.oneOf("payment_status", req.PaymentStatus, paymentStatusValues...)
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	sale, err := h.Service.UpdatePaymentStatus(ctx, id, sales.PaymentStatus(req.PaymentStatus), sales.PaymentMeta{
		Method:        req.PaymentMethod,
		Gateway:       req.PaymentGateway,
		TransactionID: req.PaymentTransactionID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sale)
}

func (h *SalesHandler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	sale, err := h.Service.SoftDelete(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sale)
}

func (h *SalesHandler) summary(w http.ResponseWriter, r *http.Request) {
	var v validator
	q := r.URL.Query()
	f := sales.SummaryFilter{
		StartDate:     v.queryDate(r, "start_date"),
		EndDate:       v.queryDate(r, "end_date"),
		Status:        sales.Status(q.Get("status")),
		PaymentStatus: sales.PaymentStatus(q.Get("payment_status")),
	}
	if f.Status != "" {
		v.oneOf("status", string(f.Status), statusValues...)
	}
	if f.PaymentStatus != "" {
		v.oneOf("payment_status", string(f.PaymentStatus), paymentStatusValues...)
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	res, err := h.Service.Summary(ctx, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *SalesHandler) processPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var v validator
	if v.required("sale_id", req.SaleID) {
		v.uuid("sale_id", req.SaleID)
	}
	if req.Gateway == "" {
		req.Gateway = payment.DefaultGateway
	}
	v.oneOf("gateway", req.Gateway, payment.Gateways...)
	if v.required("payment_method", req.PaymentMethod) {
		v.oneOf("payment_method", req.PaymentMethod, methodValues...)
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentTimeout)
	defer cancel()

	res, err := h.Service.ProcessPayment(ctx, req.SaleID, req.Gateway, req.PaymentMethod)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *SalesHandler) refundPayment(w http.ResponseWriter, r *http.Request) {
	var req refundPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var v validator
	if v.required("sale_id", req.SaleID) {
		v.uuid("sale_id", req.SaleID)
	}
	if req.Gateway != "" {
		v.oneOf("gateway", req.Gateway, payment.Gateways...)
	}
	if req.Amount != nil {
		v.atLeast("amount", *req.Amount, 1)
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentTimeout)
	defer cancel()

	res, err := h.Service.RefundPayment(ctx, req.SaleID, req.Gateway, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *SalesHandler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	saleID, gateway := q.Get("sale_id"), q.Get("gateway")
	var v validator
	if v.required("sale_id", saleID) {
		v.uuid("sale_id", saleID)
	}
	if gateway != "" {
		v.oneOf("gateway", gateway, payment.Gateways...)
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentTimeout)
	defer cancel()

	res, err := h.Service.GetPaymentStatus(ctx, saleID, gateway)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *SalesHandler) paymentStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gateway := q.Get("gateway")
	var v validator
	if gateway != "" {
		v.oneOf("gateway", gateway, payment.Gateways...)
	}
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentTimeout)
	defer cancel()

	res, err := h.Service.PaymentStatistics(ctx, gateway, q.Get("period"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *SalesHandler) integrationsHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), paymentTimeout)
	defer cancel()

	writeData(w, http.StatusOK, h.Service.IntegrationsHealth(ctx))
}

func (h *SalesHandler) saleID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	var v validator
	v.uuid("id", id)
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return "", false
	}
	return id, true
}

func toItems(v *validator, in []itemRequest) []sales.Item {
	if in != nil && len(in) == 0 {
		v.add("items", "must contain at least 1 item")
	}
	out := make([]sales.Item, 0, len(in))
	for i, it := range in {
		field := func(name string) string { return "items[" + strconv.Itoa(i) + "]." + name }
		if v.required(field("product_id"), it.ProductID) {
			v.uuid(field("product_id"), it.ProductID)
		}
		v.required(field("name"), it.Name)

		item := sales.Item{ProductID: it.ProductID, Name: it.Name, SKU: it.SKU, Quantity: 1}
		if it.Price == nil {
			v.add(field("price"), "is required")
		} else {
			v.between(field("price"), *it.Price, 0, sales.MaxAmount)
			item.Price = *it.Price
		}
		if it.Quantity != nil {
			v.between(field("quantity"), int64(*it.Quantity), 1, sales.MaxQuantity)
			item.Quantity = *it.Quantity
		}
		if it.Discount != nil {
			v.atLeast(field("discount"), *it.Discount, 0)
			item.Discount = *it.Discount
		}
		out = append(out, item)
	}
	return out
}

func toAddress(v *validator, field string, in *addressRequest) *sales.Address {
	if in == nil {
		return nil
	}
	v.required(field+".street", in.Street)
	v.required(field+".number", in.Number)
	v.required(field+".neighborhood", in.Neighborhood)
	v.required(field+".city", in.City)
	v.required(field+".state", in.State)
	v.required(field+".zip_code", in.ZipCode)
	country := in.Country
	if country == "" {
		country = defaultCountry
	}
	return &sales.Address{
		Street:       in.Street,
		Number:       in.Number,
		Complement:   in.Complement,
		Neighborhood: in.Neighborhood,
		City:         in.City,
		State:        in.State,
		ZipCode:      in.ZipCode,
		Country:      country,
	}
}

func nonNegative(v *validator, field string, n *int64) int64 {
	if n == nil {
		return 0
	}
	v.between(field, *n, 0, sales.MaxAmount)
	return *n
}
