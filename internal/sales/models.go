package sales

import "time"

// Sale is the order aggregate. All amounts are in cents.
type Sale struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`

	CustomerID       string `json:"customer_id"`
	CustomerName     string `json:"customer_name"`
	CustomerEmail    string `json:"customer_email"`
	CustomerPhone    string `json:"customer_phone,omitempty"`
	CustomerDocument string `json:"customer_document,omitempty"`

	SubtotalAmount int64  `json:"subtotal_amount"`
	TaxAmount      int64  `json:"tax_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	ShippingAmount int64  `json:"shipping_amount"`
	TotalAmount    int64  `json:"total_amount"`
	Currency       string `json:"currency"`

	Status               Status        `json:"status"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	PaymentMethod        string        `json:"payment_method,omitempty"`
	PaymentGateway       string        `json:"payment_gateway,omitempty"`
	PaymentTransactionID string        `json:"payment_transaction_id,omitempty"`

	Items           []Item   `json:"items"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	BillingAddress  *Address `json:"billing_address,omitempty"`

	Source            Source         `json:"source"`
	IntegrationSource string         `json:"integration_source,omitempty"`
	ExternalID        string         `json:"external_id,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	Notes             string         `json:"notes,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Discount  int64  `json:"discount"`
}

type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Country      string `json:"country"`
}

// CreateInput is a validated create request.
type CreateInput struct {
	CustomerID       string
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	CustomerDocument string

	Items           []Item
	ShippingAddress *Address
	BillingAddress  *Address
	DiscountAmount  int64
	ShippingAmount  int64
	Currency        string
	PaymentMethod   string

	Source            Source
	IntegrationSource string
	ExternalID        string
	Notes             string
	Metadata          map[string]any
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	CustomerName     *string
	CustomerEmail    *string
	CustomerPhone    *string
	CustomerDocument *string

	Items           []Item
	ShippingAddress *Address
	BillingAddress  *Address
	DiscountAmount  *int64
	ShippingAmount  *int64

	Notes    *string
	Metadata map[string]any
}

// PaymentMeta is the optional metadata of a payment-status write.
type PaymentMeta struct {
	Method        *string
	Gateway       *string
	TransactionID *string
}

type Filter struct {
	Status            Status
	PaymentStatus     PaymentStatus
	CustomerID        string
	Source            Source
	IntegrationSource string
	IsActive          *bool
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Page struct {
	Page  int
	Limit int
}

// Normalize applies the 1-indexed page and the 1..100 limit bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type ListResult struct {
	Data []Sale `json:"data"`
	Meta Meta   `json:"meta"`
}

type Summary struct {
	TotalSales     int   `json:"total_sales"`
	TotalAmount    int64 `json:"total_amount"`
	TotalPaid      int64 `json:"total_paid"`
	TotalPending   int64 `json:"total_pending"`
	TotalCancelled int64 `json:"total_cancelled"`
}

type SummaryFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	Status        Status
	PaymentStatus PaymentStatus
}
